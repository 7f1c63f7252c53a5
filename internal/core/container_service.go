package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ContainerService manages containers: sequential codes, status, fees, location and cargo.
type ContainerService interface {
	// CreateContainer inserts a container. Without a supplied code it draws the next value
	// of the container counter in the same transaction, so concurrent creations never share a code.
	CreateContainer(ctx context.Context, input CreateContainerInput) (*Container, error)
	GetContainer(ctx context.Context, id int) (*Container, error)
	ListContainers(ctx context.Context, filter ContainerFilter) ([]Container, error)

	UpdateContainerStatus(ctx context.Context, id int, status ContainerStatus, userID *int) (*Container, error)
	UpdateContainerFees(ctx context.Context, id int, fees ContainerFees, userID *int) (*Container, error)
	// TransferContainerWarehouse relocates a container and records the old and new warehouse.
	TransferContainerWarehouse(ctx context.Context, id, warehouseID int, userID *int) (*Container, error)
	AssignProduct(ctx context.Context, containerID, productID int, userID *int) (*Product, error)
	// DeleteContainer removes the container. Its products remain, detached.
	DeleteContainer(ctx context.Context, id int, userID *int) error
}

type containerService struct {
	pool  *pgxpool.Pool
	tx    txRunner
	audit ActionLogger
	log   *zap.Logger
}

// NewContainerService constructs a ContainerService. lockTimeout <= 0 uses DefaultLockTimeout.
func NewContainerService(pool *pgxpool.Pool, audit ActionLogger, log *zap.Logger, lockTimeout time.Duration) ContainerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &containerService{pool: pool, tx: newTxRunner(pool, lockTimeout, log), audit: audit, log: log}
}

const containerCodeAttempts = 5

// nextContainerCodeTx increments the counter row. The row stays locked until the caller's
// transaction ends; a rollback returns the number.
func nextContainerCodeTx(ctx context.Context, tx pgx.Tx) (string, error) {
	var n int64
	err := tx.QueryRow(ctx, `
		INSERT INTO container_code_counter (id, last_value)
		VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET last_value = container_code_counter.last_value + 1
		RETURNING last_value`,
	).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to generate container code: %w", err)
	}
	return FormatContainerCode(n), nil
}

func (s *containerService) CreateContainer(ctx context.Context, input CreateContainerInput) (*Container, error) {
	if input.Status == "" {
		input.Status = ContainerAvailable
	}
	status, err := ParseContainerStatus(string(input.Status))
	if err != nil {
		return nil, err
	}
	input.Status = status
	if err := input.Fees.validate(); err != nil {
		return nil, err
	}
	input.Code = strings.TrimSpace(input.Code)
	if input.CurrentWarehouseID != nil {
		if _, err := getWarehouse(ctx, s.pool, *input.CurrentWarehouseID); err != nil {
			return nil, err
		}
	}
	if input.AssignedCustomerID != nil {
		if _, err := getUser(ctx, s.pool, *input.AssignedCustomerID); err != nil {
			return nil, err
		}
	}

	var id int
	err = s.tx.run(ctx, "create container", func(tx pgx.Tx) error {
		for attempt := 0; attempt < containerCodeAttempts; attempt++ {
			code := input.Code
			if code == "" {
				var err error
				if code, err = nextContainerCodeTx(ctx, tx); err != nil {
					return err
				}
			}
			err := tx.QueryRow(ctx, `
				INSERT INTO containers (code, type, status, current_location_description, current_warehouse_id,
				                        assigned_customer_id, bank_charges, duty_and_fees, transportation_fees,
				                        discharge, current_goods_description, last_known_origin, created_by)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				ON CONFLICT (code) DO NOTHING
				RETURNING id`,
				code, input.Type, string(input.Status), input.CurrentLocationDescription, input.CurrentWarehouseID,
				input.AssignedCustomerID, input.Fees.BankCharges, input.Fees.DutyAndFees, input.Fees.TransportationFees,
				input.Fees.Discharge, input.CurrentGoodsDescription, input.LastKnownOrigin, input.CreatedBy,
			).Scan(&id)
			if err == nil {
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to insert container: %w", err)
			}
			if input.Code != "" {
				return invalid("code", "container with code %q already exists", input.Code)
			}
			// A manually supplied code already took this counter value; draw the next one.
		}
		return fmt.Errorf("failed to find a free container code after %d attempts", containerCodeAttempts)
	})
	if err != nil {
		return nil, err
	}

	c, err := s.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("container created", zap.Int("container_id", c.ID), zap.String("code", c.Code))
	s.audit.Record(ctx, input.CreatedBy, ActionContainerCreated, Ref(EntityContainer, c.ID), map[string]any{
		"code":   c.Code,
		"status": string(c.Status),
	})
	return c, nil
}

const containerSelect = `
	SELECT c.id, c.code, c.type, c.status, c.current_location_description,
	       c.current_warehouse_id, COALESCE(w.name, ''), c.assigned_customer_id,
	       c.bank_charges, c.duty_and_fees, c.transportation_fees, c.discharge,
	       c.current_goods_description, c.last_known_origin, c.created_by, c.created_at, c.updated_at,
	       COALESCE(f.purchased, 0), COALESCE(f.revenue, 0), COALESCE(f.products, 0)
	FROM containers c
	LEFT JOIN warehouses w ON w.id = c.current_warehouse_id
	LEFT JOIN LATERAL (
		SELECT SUM(p.quantity * p.cost_price)    AS purchased,
		       SUM(p.quantity * p.selling_price) AS revenue,
		       COUNT(*)                          AS products
		FROM products p
		WHERE p.container_id = c.id
	) f ON true`

func scanContainer(row pgx.Row, c *Container) error {
	var purchased, revenue decimal.Decimal
	var products int
	err := row.Scan(&c.ID, &c.Code, &c.Type, &c.Status, &c.CurrentLocationDescription,
		&c.CurrentWarehouseID, &c.CurrentWarehouse, &c.AssignedCustomerID,
		&c.BankCharges, &c.DutyAndFees, &c.TransportationFees, &c.Discharge,
		&c.CurrentGoodsDescription, &c.LastKnownOrigin, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		&purchased, &revenue, &products)
	if err != nil {
		return err
	}
	c.Financials = computeFinancials(purchased, revenue, products, c.ContainerFees)
	return nil
}

func (s *containerService) GetContainer(ctx context.Context, id int) (*Container, error) {
	return getContainer(ctx, s.pool, id)
}

func getContainer(ctx context.Context, q pgxQuerier, id int) (*Container, error) {
	c := &Container{}
	if err := scanContainer(q.QueryRow(ctx, containerSelect+" WHERE c.id = $1", id), c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("container", id)
		}
		return nil, fmt.Errorf("failed to load container %d: %w", id, err)
	}
	return c, nil
}

func (s *containerService) ListContainers(ctx context.Context, filter ContainerFilter) ([]Container, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if filter.AssignedCustomerID > 0 {
		args = append(args, filter.AssignedCustomerID)
		where = append(where, fmt.Sprintf("c.assigned_customer_id = $%d", len(args)))
	}
	if filter.WarehouseID > 0 {
		args = append(args, filter.WarehouseID)
		where = append(where, fmt.Sprintf("c.current_warehouse_id = $%d", len(args)))
	}

	query := containerSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY c.code"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query containers: %w", err)
	}
	defer rows.Close()

	var containers []Container
	for rows.Next() {
		var c Container
		if err := scanContainer(rows, &c); err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		containers = append(containers, c)
	}
	return containers, rows.Err()
}

// lockContainerTx locks the container row and returns its code.
func lockContainerTx(ctx context.Context, tx pgx.Tx, id int) (string, error) {
	var code string
	if err := tx.QueryRow(ctx, "SELECT code FROM containers WHERE id = $1 FOR UPDATE", id).Scan(&code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", notFound("container", id)
		}
		return "", fmt.Errorf("failed to lock container %d: %w", id, err)
	}
	return code, nil
}

func (s *containerService) UpdateContainerStatus(ctx context.Context, id int, status ContainerStatus, userID *int) (*Container, error) {
	status, err := ParseContainerStatus(string(status))
	if err != nil {
		return nil, err
	}

	var previous ContainerStatus
	var code string
	err = s.tx.run(ctx, "update container status", func(tx pgx.Tx) error {
		var err error
		if code, err = lockContainerTx(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, "SELECT status FROM containers WHERE id = $1", id).Scan(&previous); err != nil {
			return fmt.Errorf("failed to read container %d status: %w", id, err)
		}
		if previous == status {
			return nil
		}
		_, err = tx.Exec(ctx, "UPDATE containers SET status = $1, updated_at = NOW() WHERE id = $2", string(status), id)
		if err != nil {
			return fmt.Errorf("failed to update container %d status: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != status {
		s.audit.Record(ctx, userID, ActionContainerStatus, Ref(EntityContainer, id), map[string]any{
			"code":       code,
			"old_status": string(previous),
			"new_status": string(status),
		})
	}
	return s.GetContainer(ctx, id)
}

func (s *containerService) UpdateContainerFees(ctx context.Context, id int, fees ContainerFees, userID *int) (*Container, error) {
	if err := fees.validate(); err != nil {
		return nil, err
	}

	var before *Container
	err := s.tx.run(ctx, "update container fees", func(tx pgx.Tx) error {
		if _, err := lockContainerTx(ctx, tx, id); err != nil {
			return err
		}
		var err error
		if before, err = getContainer(ctx, tx, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE containers
			SET bank_charges = $1, duty_and_fees = $2, transportation_fees = $3, discharge = $4, updated_at = NOW()
			WHERE id = $5`,
			fees.BankCharges, fees.DutyAndFees, fees.TransportationFees, fees.Discharge, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update container %d fees: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, userID, ActionContainerFees, Ref(EntityContainer, id), map[string]any{
		"code":           before.Code,
		"old_total_fees": before.Total().String(),
		"new_total_fees": fees.Total().String(),
	})
	return s.GetContainer(ctx, id)
}

func (s *containerService) TransferContainerWarehouse(ctx context.Context, id, warehouseID int, userID *int) (*Container, error) {
	if warehouseID <= 0 {
		return nil, invalid("new_warehouse_id", "is required")
	}
	target, err := getWarehouse(ctx, s.pool, warehouseID)
	if err != nil {
		return nil, err
	}

	var code, oldName string
	var oldID *int
	err = s.tx.run(ctx, "transfer container warehouse", func(tx pgx.Tx) error {
		var err error
		if code, err = lockContainerTx(ctx, tx, id); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			SELECT c.current_warehouse_id, COALESCE(w.name, '')
			FROM containers c LEFT JOIN warehouses w ON w.id = c.current_warehouse_id
			WHERE c.id = $1`, id,
		).Scan(&oldID, &oldName)
		if err != nil {
			return fmt.Errorf("failed to read container %d warehouse: %w", id, err)
		}
		if oldID != nil && *oldID == warehouseID {
			return invalid("new_warehouse_id", "container %s is already at warehouse %s", code, target.Name)
		}
		_, err = tx.Exec(ctx, `
			UPDATE containers
			SET current_warehouse_id = $1, current_location_description = $2, updated_at = NOW()
			WHERE id = $3`,
			warehouseID, target.Name, id,
		)
		if err != nil {
			return fmt.Errorf("failed to move container %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("container moved", zap.String("code", code), zap.String("from", oldName), zap.String("to", target.Name))
	s.audit.Record(ctx, userID, ActionContainerWarehouse, Ref(EntityContainer, id), map[string]any{
		"code":             code,
		"old_warehouse_id": oldID,
		"old_warehouse":    oldName,
		"new_warehouse_id": warehouseID,
		"new_warehouse":    target.Name,
	})
	return s.GetContainer(ctx, id)
}

func (s *containerService) AssignProduct(ctx context.Context, containerID, productID int, userID *int) (*Product, error) {
	var code string
	var previous *int
	err := s.tx.run(ctx, "assign product to container", func(tx pgx.Tx) error {
		var err error
		if code, err = lockContainerTx(ctx, tx, containerID); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, "SELECT container_id FROM products WHERE id = $1 FOR UPDATE", productID).Scan(&previous)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("product", productID)
			}
			return fmt.Errorf("failed to lock product %d: %w", productID, err)
		}
		_, err = tx.Exec(ctx, "UPDATE products SET container_id = $1, updated_at = NOW() WHERE id = $2", containerID, productID)
		if err != nil {
			return fmt.Errorf("failed to assign product %d: %w", productID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, userID, ActionContainerProduct, Ref(EntityContainer, containerID), map[string]any{
		"code":                  code,
		"product_id":            productID,
		"previous_container_id": previous,
	})
	return getProduct(ctx, s.pool, productID)
}

func (s *containerService) DeleteContainer(ctx context.Context, id int, userID *int) error {
	var code string
	var detached int64
	err := s.tx.run(ctx, "delete container", func(tx pgx.Tx) error {
		var err error
		if code, err = lockContainerTx(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM products WHERE container_id = $1", id).Scan(&detached); err != nil {
			return fmt.Errorf("failed to count products of container %d: %w", id, err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM containers WHERE id = $1", id); err != nil {
			return fmt.Errorf("failed to delete container %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, userID, ActionContainerDeleted, nil, map[string]any{
		"container_id":      id,
		"code":              code,
		"products_detached": detached,
	})
	return nil
}
