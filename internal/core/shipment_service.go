package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ShipmentService creates shipments against warehouse stock and tracks their delivery status.
type ShipmentService interface {
	// CreateShipment checks every item against origin stock, then in one transaction inserts
	// the shipment and its items and decrements stock. Either all of it persists or none of it.
	CreateShipment(ctx context.Context, input CreateShipmentInput) (*Shipment, error)
	GetShipment(ctx context.Context, id int) (*Shipment, error)
	ListShipments(ctx context.Context, filter ShipmentFilter) ([]Shipment, error)
	// UpdateShipmentStatus moves a shipment to a new status. Cancelling a shipment whose goods
	// are still at the origin warehouse returns them to stock.
	UpdateShipmentStatus(ctx context.Context, id int, status ShipmentStatus, userID *int) (*Shipment, error)
}

type shipmentService struct {
	pool  *pgxpool.Pool
	tx    txRunner
	audit ActionLogger
	hooks ShipmentHooks
	log   *zap.Logger
}

// NewShipmentService constructs a ShipmentService. hooks may be nil.
func NewShipmentService(pool *pgxpool.Pool, audit ActionLogger, hooks ShipmentHooks, log *zap.Logger, lockTimeout time.Duration) ShipmentService {
	if hooks == nil {
		hooks = noopShipmentHooks{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &shipmentService{
		pool:  pool,
		tx:    newTxRunner(pool, lockTimeout, log),
		audit: audit,
		hooks: hooks,
		log:   log,
	}
}

const trackingCodeAttempts = 5

// newTrackingCode returns "SHP-" followed by ten upper-case hex characters.
func newTrackingCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "SHP-" + strings.ToUpper(hex[:10])
}

func (s *shipmentService) CreateShipment(ctx context.Context, input CreateShipmentInput) (*Shipment, error) {
	input.DestinationAddress = strings.TrimSpace(input.DestinationAddress)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	customer, err := getUser(ctx, s.pool, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.Role != RoleCustomer || !customer.IsActive {
		return nil, invalid("customer_id", "user %d is not an active customer", input.CustomerID)
	}
	origin, err := getWarehouse(ctx, s.pool, input.OriginWarehouseID)
	if err != nil {
		return nil, err
	}
	if input.ContainerID != nil {
		if err := s.checkContainerFree(ctx, *input.ContainerID); err != nil {
			return nil, err
		}
	}
	products := make(map[int]*Product, len(input.Items))
	for _, item := range input.Items {
		product, err := getProduct(ctx, s.pool, item.ProductID)
		if err != nil {
			return nil, err
		}
		products[product.ID] = product
		available, err := stockQuantity(ctx, s.pool, item.ProductID, origin.ID)
		if err != nil {
			return nil, err
		}
		if available < item.Quantity {
			return nil, &InsufficientStockError{
				ProductID: product.ID, ProductSKU: product.SKU,
				WarehouseID: origin.ID, WarehouseName: origin.Name,
				Available: available, Requested: item.Quantity,
			}
		}
	}

	// Lock stock rows in product id order.
	items := append([]ShipmentItemInput(nil), input.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	var header shipmentHeader
	var itemIDs []int
	err = s.tx.run(ctx, "create shipment", func(tx pgx.Tx) error {
		h, err := insertShipmentTx(ctx, tx, input)
		if err != nil {
			return err
		}
		ids := make([]int, 0, len(items))
		for _, item := range items {
			var itemID int
			if err := tx.QueryRow(ctx,
				"INSERT INTO shipment_items (shipment_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id",
				h.ID, item.ProductID, item.Quantity,
			).Scan(&itemID); err != nil {
				return fmt.Errorf("failed to insert item for product %d: %w", item.ProductID, err)
			}
			if err := reserveTx(ctx, tx, item.ProductID, origin.ID, item.Quantity); err != nil {
				return err
			}
			ids = append(ids, itemID)
		}
		header, itemIDs = h, ids
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The transaction has committed, so a failed read-back must not report the shipment as lost.
	shipment, err := s.GetShipment(ctx, header.ID)
	if err != nil {
		s.log.Warn("failed to reload created shipment; returning the inserted values",
			zap.Int("shipment_id", header.ID), zap.Error(err))
		shipment = header.shipment(input, customer, origin, items, itemIDs, products)
	}

	s.log.Info("shipment created",
		zap.String("tracking_code", shipment.TrackingCode),
		zap.Int("customer_id", shipment.CustomerID),
		zap.Int("items", len(shipment.Items)),
	)
	s.audit.Record(ctx, input.CreatedBy, ActionShipmentCreated, Ref(EntityShipment, shipment.ID), map[string]any{
		"tracking_code":    shipment.TrackingCode,
		"customer_id":      shipment.CustomerID,
		"origin_warehouse": origin.Name,
		"items":            len(shipment.Items),
	})
	s.hooks.ShipmentCreated(ctx, shipment)
	return shipment, nil
}

func (s *shipmentService) checkContainerFree(ctx context.Context, containerID int) error {
	var exists, attached bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM containers WHERE id = $1),
		       EXISTS (SELECT 1 FROM shipments WHERE container_id = $1)`,
		containerID,
	).Scan(&exists, &attached)
	if err != nil {
		return fmt.Errorf("failed to check container %d: %w", containerID, err)
	}
	if !exists {
		return notFound("container", containerID)
	}
	if attached {
		return invalid("container_id", "container %d is already assigned to another shipment", containerID)
	}
	return nil
}

// shipmentHeader is what the insert returns about a new shipment row.
type shipmentHeader struct {
	ID           int
	TrackingCode string
	CreatedAt    time.Time
}

// shipment assembles a Shipment from the committed insert without re-reading it.
func (h shipmentHeader) shipment(input CreateShipmentInput, customer *User, origin *Warehouse,
	items []ShipmentItemInput, itemIDs []int, products map[int]*Product) *Shipment {
	sh := &Shipment{
		ID:                     h.ID,
		TrackingCode:           h.TrackingCode,
		CustomerID:             input.CustomerID,
		ContainerID:            input.ContainerID,
		OriginWarehouseID:      input.OriginWarehouseID,
		DestinationAddress:     input.DestinationAddress,
		Status:                 ShipmentPendingConfirmation,
		EstimatedDepartureDate: input.EstimatedDepartureDate,
		EstimatedDeliveryDate:  input.EstimatedDeliveryDate,
		Notes:                  input.Notes,
		CustomerNotes:          input.CustomerNotes,
		CreatedBy:              input.CreatedBy,
		Items:                  make([]ShipmentItem, 0, len(items)),
		CreatedAt:              h.CreatedAt,
		UpdatedAt:              h.CreatedAt,
	}
	if customer != nil {
		sh.CustomerEmail = customer.Email
	}
	if origin != nil {
		sh.OriginWarehouse = origin.Name
	}
	for i, it := range items {
		item := ShipmentItem{ProductID: it.ProductID, Quantity: it.Quantity}
		if i < len(itemIDs) {
			item.ID = itemIDs[i]
		}
		if p := products[it.ProductID]; p != nil {
			item.ProductSKU, item.ProductName = p.SKU, p.Name
		}
		sh.Items = append(sh.Items, item)
	}
	return sh
}

// insertShipmentTx inserts the shipment header, drawing a new tracking code on collision.
func insertShipmentTx(ctx context.Context, tx pgx.Tx, input CreateShipmentInput) (shipmentHeader, error) {
	for attempt := 0; attempt < trackingCodeAttempts; attempt++ {
		var h shipmentHeader
		err := tx.QueryRow(ctx, `
			INSERT INTO shipments (tracking_code, customer_id, container_id, origin_warehouse_id,
			                       destination_address, status, estimated_departure_date,
			                       estimated_delivery_date, notes, customer_notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (tracking_code) DO NOTHING
			RETURNING id, tracking_code, created_at`,
			newTrackingCode(), input.CustomerID, input.ContainerID, input.OriginWarehouseID,
			input.DestinationAddress, string(ShipmentPendingConfirmation), input.EstimatedDepartureDate,
			input.EstimatedDeliveryDate, input.Notes, input.CustomerNotes, input.CreatedBy,
		).Scan(&h.ID, &h.TrackingCode, &h.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			if isUniqueViolation(err, "shipments_container_id_key") {
				return shipmentHeader{}, invalid("container_id", "container %d is already assigned to another shipment", *input.ContainerID)
			}
			return shipmentHeader{}, fmt.Errorf("failed to insert shipment: %w", err)
		}
		return h, nil
	}
	return shipmentHeader{}, fmt.Errorf("failed to generate a unique tracking code after %d attempts", trackingCodeAttempts)
}

const shipmentSelect = `
	SELECT s.id, s.tracking_code, s.customer_id, COALESCE(c.email, ''), s.container_id,
	       s.origin_warehouse_id, w.name, s.destination_address, s.status,
	       s.estimated_departure_date, s.actual_departure_date,
	       s.estimated_delivery_date, s.actual_delivery_date,
	       s.notes, s.customer_notes, s.created_by, s.created_at, s.updated_at, d.dispatcher_id
	FROM shipments s
	JOIN warehouses w ON w.id = s.origin_warehouse_id
	LEFT JOIN users c ON c.id = s.customer_id
	LEFT JOIN delivery_tasks d ON d.shipment_id = s.id`

func scanShipment(row pgx.Row, sh *Shipment) error {
	return row.Scan(&sh.ID, &sh.TrackingCode, &sh.CustomerID, &sh.CustomerEmail, &sh.ContainerID,
		&sh.OriginWarehouseID, &sh.OriginWarehouse, &sh.DestinationAddress, &sh.Status,
		&sh.EstimatedDepartureDate, &sh.ActualDepartureDate,
		&sh.EstimatedDeliveryDate, &sh.ActualDeliveryDate,
		&sh.Notes, &sh.CustomerNotes, &sh.CreatedBy, &sh.CreatedAt, &sh.UpdatedAt, &sh.DispatcherID)
}

func (s *shipmentService) GetShipment(ctx context.Context, id int) (*Shipment, error) {
	sh := &Shipment{}
	if err := scanShipment(s.pool.QueryRow(ctx, shipmentSelect+" WHERE s.id = $1", id), sh); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("shipment", id)
		}
		return nil, fmt.Errorf("failed to load shipment %d: %w", id, err)
	}
	shipments := []Shipment{*sh}
	if err := s.loadItems(ctx, shipments); err != nil {
		return nil, err
	}
	return &shipments[0], nil
}

func (s *shipmentService) ListShipments(ctx context.Context, filter ShipmentFilter) ([]Shipment, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("s.status = $%d", len(args)))
	}
	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("s.customer_id = $%d", len(args)))
	}
	if filter.DispatcherID > 0 {
		args = append(args, filter.DispatcherID)
		where = append(where, fmt.Sprintf("d.dispatcher_id = $%d", len(args)))
	}

	query := shipmentSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.created_at DESC, s.id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipments: %w", err)
	}
	defer rows.Close()

	var shipments []Shipment
	for rows.Next() {
		var sh Shipment
		if err := scanShipment(rows, &sh); err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		shipments = append(shipments, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shipments: %w", err)
	}
	if err := s.loadItems(ctx, shipments); err != nil {
		return nil, err
	}
	return shipments, nil
}

// loadItems fills Items for every shipment with one query.
func (s *shipmentService) loadItems(ctx context.Context, shipments []Shipment) error {
	if len(shipments) == 0 {
		return nil
	}
	index := make(map[int]int, len(shipments))
	ids := make([]int, len(shipments))
	for i, sh := range shipments {
		index[sh.ID] = i
		ids[i] = sh.ID
		shipments[i].Items = []ShipmentItem{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT si.shipment_id, si.id, si.product_id, p.sku, p.name, si.quantity
		FROM shipment_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.shipment_id = ANY($1)
		ORDER BY si.shipment_id, si.product_id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("failed to query shipment items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var shipmentID int
		var item ShipmentItem
		if err := rows.Scan(&shipmentID, &item.ID, &item.ProductID, &item.ProductSKU, &item.ProductName, &item.Quantity); err != nil {
			return fmt.Errorf("failed to scan shipment item: %w", err)
		}
		i := index[shipmentID]
		shipments[i].Items = append(shipments[i].Items, item)
	}
	return rows.Err()
}

func (s *shipmentService) UpdateShipmentStatus(ctx context.Context, id int, status ShipmentStatus, userID *int) (*Shipment, error) {
	status, err := ParseShipmentStatus(string(status))
	if err != nil {
		return nil, err
	}

	var previous ShipmentStatus
	var restored int
	err = s.tx.run(ctx, "update shipment status", func(tx pgx.Tx) error {
		var originID int
		err := tx.QueryRow(ctx,
			"SELECT status, origin_warehouse_id FROM shipments WHERE id = $1 FOR UPDATE", id,
		).Scan(&previous, &originID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("shipment", id)
			}
			return fmt.Errorf("failed to lock shipment %d: %w", id, err)
		}
		if previous == status {
			return nil
		}
		if previous == ShipmentCancelled {
			return invalid("status", "shipment %d is cancelled and cannot change status", id)
		}

		if status == ShipmentCancelled && previous.holdsStockAtOrigin() {
			n, err := restoreItemsTx(ctx, tx, id, originID)
			if err != nil {
				return err
			}
			restored = n
		}

		_, err = tx.Exec(ctx, `
			UPDATE shipments SET
				status = $1::text,
				actual_departure_date = CASE WHEN $1::text = 'SHIPPED' THEN COALESCE(actual_departure_date, NOW()) ELSE actual_departure_date END,
				actual_delivery_date  = CASE WHEN $1::text = 'DELIVERED' THEN COALESCE(actual_delivery_date, NOW()) ELSE actual_delivery_date END,
				updated_at = NOW()
			WHERE id = $2`,
			string(status), id,
		)
		if err != nil {
			return fmt.Errorf("failed to update shipment %d status: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	shipment, err := s.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous == status {
		return shipment, nil
	}

	s.audit.Record(ctx, userID, ActionShipmentStatusChanged, Ref(EntityShipment, id), map[string]any{
		"tracking_code":  shipment.TrackingCode,
		"old_status":     string(previous),
		"new_status":     string(status),
		"items_restored": restored,
	})
	s.hooks.ShipmentStatusChanged(ctx, shipment, previous)
	return shipment, nil
}

// restoreItemsTx deposits every item of a cancelled shipment back into its origin warehouse.
func restoreItemsTx(ctx context.Context, tx pgx.Tx, shipmentID, originID int) (int, error) {
	rows, err := tx.Query(ctx,
		"SELECT product_id, quantity FROM shipment_items WHERE shipment_id = $1 ORDER BY product_id",
		shipmentID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to read items of shipment %d: %w", shipmentID, err)
	}
	var items []ShipmentItemInput
	for rows.Next() {
		var it ShipmentItemInput
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan shipment item: %w", err)
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate items of shipment %d: %w", shipmentID, err)
	}

	for _, it := range items {
		if err := depositTx(ctx, tx, it.ProductID, originID, it.Quantity); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}
