package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DeliveryService runs the local delivery leg of shipments. Picking up a task moves its
// shipment to OUT_FOR_DELIVERY and delivering it moves the shipment to DELIVERED; both go
// through ShipmentService so the shipment's own audit entry and notifications fire.
type DeliveryService interface {
	CreateTask(ctx context.Context, input CreateDeliveryTaskInput) (*DeliveryTask, error)
	GetTask(ctx context.Context, id int) (*DeliveryTask, error)
	ListTasks(ctx context.Context, filter DeliveryTaskFilter) ([]DeliveryTask, error)
	// AssignDispatcher hands the task to an active dispatcher. A task pending assignment
	// becomes ASSIGNED.
	AssignDispatcher(ctx context.Context, id, dispatcherID int, userID *int) (*DeliveryTask, error)
	// MarkPickedUp is allowed from ASSIGNED or AWAITING_PICKUP.
	MarkPickedUp(ctx context.Context, id int, userID *int) (*DeliveryTask, error)
	// MarkDelivered is allowed from IN_TRANSIT_LOCAL or ARRIVED_CUSTOMER.
	MarkDelivered(ctx context.Context, id int, proof DeliveryProof, userID *int) (*DeliveryTask, error)
	// UpdateTaskStatus covers the remaining transitions. Pickup, delivery and assignment
	// have their own operations and are rejected here.
	UpdateTaskStatus(ctx context.Context, id int, status DeliveryStatus, notes string, userID *int) (*DeliveryTask, error)
}

type deliveryService struct {
	pool      *pgxpool.Pool
	tx        txRunner
	audit     ActionLogger
	shipments ShipmentService
	hooks     DeliveryHooks
	log       *zap.Logger
}

// NewDeliveryService constructs a DeliveryService. hooks may be nil.
func NewDeliveryService(pool *pgxpool.Pool, audit ActionLogger, shipments ShipmentService, hooks DeliveryHooks, log *zap.Logger, lockTimeout time.Duration) DeliveryService {
	if hooks == nil {
		hooks = noopDeliveryHooks{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &deliveryService{
		pool:      pool,
		tx:        newTxRunner(pool, lockTimeout, log),
		audit:     audit,
		shipments: shipments,
		hooks:     hooks,
		log:       log,
	}
}

const deliverySelect = `
	SELECT d.id, d.shipment_id, s.tracking_code, s.status, d.dispatcher_id,
	       COALESCE(u.email, ''), COALESCE(u.first_name, ''), d.status,
	       d.pickup_address_override,
	       COALESCE(NULLIF(d.pickup_address_override, ''), NULLIF(w.location_address, ''), 'N/A'),
	       d.delivery_address_override,
	       COALESCE(NULLIF(d.delivery_address_override, ''), s.destination_address),
	       d.scheduled_pickup_at, d.actual_pickup_at, d.scheduled_delivery_at, d.actual_delivery_at,
	       d.recipient_name, d.signature_data, d.dispatcher_notes, d.internal_notes,
	       d.created_by, d.created_at, d.updated_at
	FROM delivery_tasks d
	JOIN shipments s ON s.id = d.shipment_id
	JOIN warehouses w ON w.id = s.origin_warehouse_id
	LEFT JOIN users u ON u.id = d.dispatcher_id`

func scanDeliveryTask(row pgx.Row, t *DeliveryTask) error {
	return row.Scan(&t.ID, &t.ShipmentID, &t.TrackingCode, &t.ShipmentStatus, &t.DispatcherID,
		&t.DispatcherEmail, &t.DispatcherName, &t.Status,
		&t.PickupAddressOverride, &t.PickupAddress,
		&t.DeliveryAddressOverride, &t.DeliveryAddress,
		&t.ScheduledPickupAt, &t.ActualPickupAt, &t.ScheduledDeliveryAt, &t.ActualDeliveryAt,
		&t.RecipientName, &t.SignatureData, &t.DispatcherNotes, &t.InternalNotes,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
}

func (s *deliveryService) GetTask(ctx context.Context, id int) (*DeliveryTask, error) {
	t := &DeliveryTask{}
	if err := scanDeliveryTask(s.pool.QueryRow(ctx, deliverySelect+" WHERE d.id = $1", id), t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("delivery task", id)
		}
		return nil, fmt.Errorf("failed to load delivery task %d: %w", id, err)
	}
	return t, nil
}

func (s *deliveryService) ListTasks(ctx context.Context, filter DeliveryTaskFilter) ([]DeliveryTask, error) {
	var where []string
	var args []any
	if filter.ShipmentID > 0 {
		args = append(args, filter.ShipmentID)
		where = append(where, fmt.Sprintf("d.shipment_id = $%d", len(args)))
	}
	if filter.DispatcherID > 0 {
		args = append(args, filter.DispatcherID)
		where = append(where, fmt.Sprintf("d.dispatcher_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if filter.Active {
		where = append(where, "d.status NOT IN ('DELIVERED', 'RETURNED', 'CANCELLED')")
	}

	query := deliverySelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Active {
		query += " ORDER BY d.scheduled_pickup_at NULLS LAST, d.scheduled_delivery_at NULLS LAST, d.id"
	} else {
		query += " ORDER BY d.created_at DESC, d.id DESC"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery tasks: %w", err)
	}
	defer rows.Close()

	var tasks []DeliveryTask
	for rows.Next() {
		var t DeliveryTask
		if err := scanDeliveryTask(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan delivery task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// checkDispatcher rejects anyone who is not an active dispatcher.
func checkDispatcher(ctx context.Context, q pgxQuerier, userID int) error {
	u, err := getUser(ctx, q, userID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return invalid("dispatcher_id", "user %d does not exist", userID)
		}
		return err
	}
	if u.Role != RoleDispatcher || !u.IsActive {
		return invalid("dispatcher_id", "user %d is not an active dispatcher", userID)
	}
	return nil
}

func (s *deliveryService) CreateTask(ctx context.Context, input CreateDeliveryTaskInput) (*DeliveryTask, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.DispatcherID != nil {
		if err := checkDispatcher(ctx, s.pool, *input.DispatcherID); err != nil {
			return nil, err
		}
	}
	status := DeliveryPendingAssignment
	if input.DispatcherID != nil {
		status = DeliveryAssigned
	}

	var id int
	err := s.tx.run(ctx, "create delivery task", func(tx pgx.Tx) error {
		var shipmentStatus ShipmentStatus
		err := tx.QueryRow(ctx, "SELECT status FROM shipments WHERE id = $1 FOR SHARE", input.ShipmentID).Scan(&shipmentStatus)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("shipment", input.ShipmentID)
			}
			return fmt.Errorf("failed to lock shipment %d: %w", input.ShipmentID, err)
		}
		if shipmentStatus == ShipmentCancelled {
			return invalid("shipment_id", "shipment %d is cancelled", input.ShipmentID)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO delivery_tasks (shipment_id, dispatcher_id, status, pickup_address_override,
			                            delivery_address_override, scheduled_pickup_at,
			                            scheduled_delivery_at, internal_notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			input.ShipmentID, input.DispatcherID, string(status),
			strings.TrimSpace(input.PickupAddressOverride), strings.TrimSpace(input.DeliveryAddressOverride),
			input.ScheduledPickupAt, input.ScheduledDeliveryAt, input.InternalNotes, input.CreatedBy,
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err, "delivery_tasks_shipment_id_key") {
				return invalid("shipment_id", "a delivery task already exists for shipment %d", input.ShipmentID)
			}
			return fmt.Errorf("failed to insert delivery task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("delivery task created",
		zap.Int("delivery_task_id", task.ID),
		zap.String("tracking_code", task.TrackingCode),
	)
	details := map[string]any{
		"tracking_code": task.TrackingCode,
		"status":        string(task.Status),
	}
	if task.DispatcherID != nil {
		details["dispatcher_id"] = *task.DispatcherID
	}
	s.audit.Record(ctx, input.CreatedBy, ActionDeliveryCreated, Ref(EntityDeliveryTask, task.ID), details)
	if task.DispatcherID != nil {
		s.hooks.DeliveryAssigned(ctx, task)
	}
	return task, nil
}

// lockTaskTx locks a task row and returns its status and dispatcher.
func lockTaskTx(ctx context.Context, tx pgx.Tx, id int) (DeliveryStatus, *int, error) {
	var status DeliveryStatus
	var dispatcherID *int
	err := tx.QueryRow(ctx, "SELECT status, dispatcher_id FROM delivery_tasks WHERE id = $1 FOR UPDATE", id).
		Scan(&status, &dispatcherID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, notFound("delivery task", id)
		}
		return "", nil, fmt.Errorf("failed to lock delivery task %d: %w", id, err)
	}
	return status, dispatcherID, nil
}

func (s *deliveryService) AssignDispatcher(ctx context.Context, id, dispatcherID int, userID *int) (*DeliveryTask, error) {
	if dispatcherID <= 0 {
		return nil, invalid("dispatcher_id", "is required")
	}
	if err := checkDispatcher(ctx, s.pool, dispatcherID); err != nil {
		return nil, err
	}

	var previous *int
	err := s.tx.run(ctx, "assign dispatcher", func(tx pgx.Tx) error {
		status, current, err := lockTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if status.Closed() {
			return invalid("status", "delivery task %d is %s and cannot be reassigned", id, status)
		}
		previous = current
		_, err = tx.Exec(ctx, `
			UPDATE delivery_tasks SET
				dispatcher_id = $1,
				status = CASE WHEN status = 'PENDING_ASSIGNMENT' THEN 'ASSIGNED' ELSE status END,
				updated_at = NOW()
			WHERE id = $2`,
			dispatcherID, id,
		)
		if err != nil {
			return fmt.Errorf("failed to assign delivery task %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous != nil && *previous == dispatcherID {
		return task, nil
	}
	details := map[string]any{
		"tracking_code": task.TrackingCode,
		"dispatcher_id": dispatcherID,
	}
	if previous != nil {
		details["previous_dispatcher_id"] = *previous
	}
	s.audit.Record(ctx, userID, ActionDeliveryAssigned, Ref(EntityDeliveryTask, id), details)
	s.hooks.DeliveryAssigned(ctx, task)
	return task, nil
}

func (s *deliveryService) MarkPickedUp(ctx context.Context, id int, userID *int) (*DeliveryTask, error) {
	return s.move(ctx, id, DeliveryPickedUp, userID, func(from DeliveryStatus, _ *int) error {
		if from != DeliveryAssigned && from != DeliveryAwaitingPickup {
			return invalid("status", "cannot mark as picked up from status %s", from)
		}
		return nil
	}, "actual_pickup_at = NOW()")
}

func (s *deliveryService) MarkDelivered(ctx context.Context, id int, proof DeliveryProof, userID *int) (*DeliveryTask, error) {
	return s.move(ctx, id, DeliveryDelivered, userID, func(from DeliveryStatus, _ *int) error {
		if from != DeliveryInTransitLocal && from != DeliveryArrivedCustomer {
			return invalid("status", "cannot mark as delivered from status %s", from)
		}
		return nil
	}, `actual_delivery_at = NOW(),
		recipient_name = CASE WHEN $3::text = '' THEN recipient_name ELSE $3::text END,
		signature_data = CASE WHEN $4::text = '' THEN signature_data ELSE $4::text END`,
		strings.TrimSpace(proof.RecipientName), proof.SignatureData)
}

func (s *deliveryService) UpdateTaskStatus(ctx context.Context, id int, status DeliveryStatus, notes string, userID *int) (*DeliveryTask, error) {
	status, err := ParseDeliveryStatus(string(status))
	if err != nil {
		return nil, err
	}
	switch status {
	case DeliveryPickedUp:
		return nil, invalid("status", "use mark-picked-up to record a pickup")
	case DeliveryDelivered:
		return nil, invalid("status", "use mark-delivered to record a delivery")
	case DeliveryPendingAssignment, DeliveryAssigned:
		return nil, invalid("status", "%s follows from dispatcher assignment", status)
	}
	return s.move(ctx, id, status, userID, func(from DeliveryStatus, dispatcherID *int) error {
		if from.Closed() {
			return invalid("status", "delivery task %d is %s and cannot change status", id, from)
		}
		if dispatcherID == nil && status != DeliveryCancelled {
			return invalid("dispatcher_id", "delivery task %d has no dispatcher", id)
		}
		return nil
	}, "dispatcher_notes = CASE WHEN $3::text = '' THEN dispatcher_notes ELSE $3::text END", strings.TrimSpace(notes))
}

// move locks the task, lets check veto the transition, then sets the status plus any
// extra assignments. Extra SQL refers to extraArgs as $3 onward.
func (s *deliveryService) move(ctx context.Context, id int, to DeliveryStatus, userID *int,
	check func(from DeliveryStatus, dispatcherID *int) error, extra string, extraArgs ...any) (*DeliveryTask, error) {
	var previous DeliveryStatus
	err := s.tx.run(ctx, "update delivery task", func(tx pgx.Tx) error {
		from, dispatcherID, err := lockTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		previous = from
		if err := check(from, dispatcherID); err != nil {
			return err
		}
		if from == to {
			return nil
		}
		set := "status = $1, updated_at = NOW()"
		if extra != "" {
			set += ", " + extra
		}
		args := append([]any{string(to), id}, extraArgs...)
		if _, err := tx.Exec(ctx, "UPDATE delivery_tasks SET "+set+" WHERE id = $2", args...); err != nil {
			return fmt.Errorf("failed to update delivery task %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous == to {
		return task, nil
	}
	s.audit.Record(ctx, userID, ActionDeliveryStatus, Ref(EntityDeliveryTask, id), map[string]any{
		"tracking_code": task.TrackingCode,
		"old_status":    string(previous),
		"new_status":    string(to),
	})
	s.syncShipment(ctx, task, userID)
	return task, nil
}

// syncShipment carries pickup and delivery over to the shipment. The task change has
// already committed, so a failure here is logged and the task is still returned.
func (s *deliveryService) syncShipment(ctx context.Context, task *DeliveryTask, userID *int) {
	var target ShipmentStatus
	switch task.Status {
	case DeliveryPickedUp:
		if task.ShipmentStatus == ShipmentOutForDelivery || task.ShipmentStatus == ShipmentDelivered {
			return
		}
		target = ShipmentOutForDelivery
	case DeliveryDelivered:
		if task.ShipmentStatus == ShipmentDelivered {
			return
		}
		target = ShipmentDelivered
	default:
		return
	}
	if task.ShipmentStatus == ShipmentCancelled {
		s.log.Warn("delivery task moved on a cancelled shipment",
			zap.Int("delivery_task_id", task.ID), zap.String("tracking_code", task.TrackingCode))
		return
	}

	sh, err := s.shipments.UpdateShipmentStatus(ctx, task.ShipmentID, target, userID)
	if err != nil {
		s.log.Warn("failed to update shipment after delivery task change",
			zap.Int("delivery_task_id", task.ID),
			zap.String("tracking_code", task.TrackingCode),
			zap.String("target_status", string(target)),
			zap.Error(err),
		)
		return
	}
	task.ShipmentStatus = sh.Status
}
