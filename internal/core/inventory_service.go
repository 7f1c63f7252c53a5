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

// InventoryService is the stock ledger: quantity on hand per (product, warehouse).
//
// Stock only enters through ReceiveStock and only moves through the TX-scoped
// methods, which the transfer and shipment services call inside their own transactions.
type InventoryService interface {
	// GetQuantity returns the quantity on hand, or 0 when no entry exists. It never creates an entry.
	GetQuantity(ctx context.Context, productID, warehouseID int) (int, error)
	GetStockLevels(ctx context.Context, filter StockFilter) ([]StockLevel, error)
	// ReceiveStock adds stock to a warehouse in its own transaction.
	ReceiveStock(ctx context.Context, input ReceiveStockInput) (*StockEntry, error)

	// ReserveTx locks the entry and decrements it. It fails with InsufficientStockError
	// when the entry is missing or holds less than amount.
	ReserveTx(ctx context.Context, tx pgx.Tx, productID, warehouseID, amount int) error
	// DepositTx creates the entry at zero if needed, locks it and increments it.
	DepositTx(ctx context.Context, tx pgx.Tx, productID, warehouseID, amount int) error
}

type inventoryService struct {
	pool  *pgxpool.Pool
	tx    txRunner
	audit ActionLogger
}

// NewInventoryService constructs the stock ledger. lockTimeout <= 0 uses DefaultLockTimeout.
func NewInventoryService(pool *pgxpool.Pool, audit ActionLogger, log *zap.Logger, lockTimeout time.Duration) InventoryService {
	return &inventoryService{pool: pool, tx: newTxRunner(pool, lockTimeout, log), audit: audit}
}

func (s *inventoryService) GetQuantity(ctx context.Context, productID, warehouseID int) (int, error) {
	return stockQuantity(ctx, s.pool, productID, warehouseID)
}

func (s *inventoryService) GetStockLevels(ctx context.Context, filter StockFilter) ([]StockLevel, error) {
	var where []string
	var args []any
	if filter.ProductID > 0 {
		args = append(args, filter.ProductID)
		where = append(where, fmt.Sprintf("se.product_id = $%d", len(args)))
	}
	if filter.WarehouseID > 0 {
		args = append(args, filter.WarehouseID)
		where = append(where, fmt.Sprintf("se.warehouse_id = $%d", len(args)))
	}

	query := `
		SELECT p.id, p.sku, p.name, w.id, w.name, se.quantity, se.updated_at
		FROM stock_entries se
		JOIN products p   ON p.id = se.product_id
		JOIN warehouses w ON w.id = se.warehouse_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.sku, w.name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.ProductSKU, &sl.ProductName,
			&sl.WarehouseID, &sl.WarehouseName, &sl.Quantity, &sl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

func (s *inventoryService) ReceiveStock(ctx context.Context, input ReceiveStockInput) (*StockEntry, error) {
	if input.Quantity <= 0 {
		return nil, invalid("quantity", "receive quantity must be positive, got %d", input.Quantity)
	}
	product, err := getProduct(ctx, s.pool, input.ProductID)
	if err != nil {
		return nil, err
	}
	warehouse, err := getWarehouse(ctx, s.pool, input.WarehouseID)
	if err != nil {
		return nil, err
	}

	var entry StockEntry
	err = s.tx.run(ctx, "receive stock", func(tx pgx.Tx) error {
		if err := depositTx(ctx, tx, input.ProductID, input.WarehouseID, input.Quantity); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			SELECT id, product_id, warehouse_id, quantity, updated_at
			FROM stock_entries WHERE product_id = $1 AND warehouse_id = $2`,
			input.ProductID, input.WarehouseID,
		).Scan(&entry.ID, &entry.ProductID, &entry.WarehouseID, &entry.Quantity, &entry.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, input.UserID, ActionStockReceived, Ref(EntityStock, entry.ID), map[string]any{
		"product_id":  product.ID,
		"product_sku": product.SKU,
		"warehouse":   warehouse.Name,
		"quantity":    input.Quantity,
		"new_total":   entry.Quantity,
		"note":        input.Note,
	})
	return &entry, nil
}

func (s *inventoryService) ReserveTx(ctx context.Context, tx pgx.Tx, productID, warehouseID, amount int) error {
	return reserveTx(ctx, tx, productID, warehouseID, amount)
}

func (s *inventoryService) DepositTx(ctx context.Context, tx pgx.Tx, productID, warehouseID, amount int) error {
	return depositTx(ctx, tx, productID, warehouseID, amount)
}

// ── Ledger primitives shared by transfers and shipments ──────────────────────

func stockQuantity(ctx context.Context, q pgxQuerier, productID, warehouseID int) (int, error) {
	var qty int
	err := q.QueryRow(ctx, `
		SELECT COALESCE((SELECT quantity FROM stock_entries WHERE product_id = $1 AND warehouse_id = $2), 0)`,
		productID, warehouseID,
	).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("failed to read stock for product %d in warehouse %d: %w", productID, warehouseID, err)
	}
	return qty, nil
}

// ensureEntryTx creates a zero entry if none exists. It takes no lock on an existing row.
func ensureEntryTx(ctx context.Context, tx pgx.Tx, productID, warehouseID int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_entries (product_id, warehouse_id, quantity)
		VALUES ($1, $2, 0)
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`,
		productID, warehouseID,
	)
	if err != nil {
		return fmt.Errorf("failed to create stock entry for product %d in warehouse %d: %w", productID, warehouseID, err)
	}
	return nil
}

// lockEntryTx locks the entry row and returns its id and quantity. found is false when no entry exists.
func lockEntryTx(ctx context.Context, tx pgx.Tx, productID, warehouseID int) (id, qty int, found bool, err error) {
	err = tx.QueryRow(ctx, `
		SELECT id, quantity FROM stock_entries
		WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE`,
		productID, warehouseID,
	).Scan(&id, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to lock stock for product %d in warehouse %d: %w", productID, warehouseID, err)
	}
	return id, qty, true, nil
}

func adjustEntryTx(ctx context.Context, tx pgx.Tx, entryID, delta int) error {
	_, err := tx.Exec(ctx,
		"UPDATE stock_entries SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2",
		delta, entryID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock entry %d: %w", entryID, err)
	}
	return nil
}

func reserveTx(ctx context.Context, tx pgx.Tx, productID, warehouseID, amount int) error {
	if amount <= 0 {
		return invalid("quantity", "must be positive, got %d", amount)
	}
	id, qty, found, err := lockEntryTx(ctx, tx, productID, warehouseID)
	if err != nil {
		return err
	}
	if !found || qty < amount {
		return shortage(ctx, tx, productID, warehouseID, qty, amount)
	}
	return adjustEntryTx(ctx, tx, id, -amount)
}

func depositTx(ctx context.Context, tx pgx.Tx, productID, warehouseID, amount int) error {
	if amount <= 0 {
		return invalid("quantity", "must be positive, got %d", amount)
	}
	if err := ensureEntryTx(ctx, tx, productID, warehouseID); err != nil {
		return err
	}
	id, _, found, err := lockEntryTx(ctx, tx, productID, warehouseID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("stock entry for product %d in warehouse %d vanished after insert", productID, warehouseID)
	}
	return adjustEntryTx(ctx, tx, id, amount)
}

// shortage builds an InsufficientStockError carrying display names for the product and warehouse.
func shortage(ctx context.Context, q pgxQuerier, productID, warehouseID, available, requested int) error {
	e := &InsufficientStockError{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Available:   available,
		Requested:   requested,
	}
	_ = q.QueryRow(ctx, `
		SELECT COALESCE((SELECT sku FROM products WHERE id = $1), ''),
		       COALESCE((SELECT name FROM warehouses WHERE id = $2), '')`,
		productID, warehouseID,
	).Scan(&e.ProductSKU, &e.WarehouseName)
	return e
}
