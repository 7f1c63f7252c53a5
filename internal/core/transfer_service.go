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

// TransferService moves stock of one product between two warehouses and keeps the transfer log.
type TransferService interface {
	// Transfer validates the request, then in one transaction decrements the source entry,
	// increments (creating if needed) the destination entry and appends a TransferRecord.
	// On any error nothing is written.
	Transfer(ctx context.Context, input TransferInput) (*TransferRecord, error)
	GetTransfer(ctx context.Context, id int) (*TransferRecord, error)
	ListTransfers(ctx context.Context, filter TransferFilter) ([]TransferRecord, error)
}

type transferService struct {
	pool  *pgxpool.Pool
	tx    txRunner
	audit ActionLogger
	log   *zap.Logger
}

// NewTransferService constructs a TransferService. lockTimeout <= 0 uses DefaultLockTimeout.
func NewTransferService(pool *pgxpool.Pool, audit ActionLogger, log *zap.Logger, lockTimeout time.Duration) TransferService {
	if log == nil {
		log = zap.NewNop()
	}
	return &transferService{pool: pool, tx: newTxRunner(pool, lockTimeout, log), audit: audit, log: log}
}

func (s *transferService) Transfer(ctx context.Context, input TransferInput) (*TransferRecord, error) {
	input.Note = strings.TrimSpace(input.Note)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Pre-checks against committed state; repeated under lock below.
	product, err := getProduct(ctx, s.pool, input.ProductID)
	if err != nil {
		return nil, err
	}
	from, err := getWarehouse(ctx, s.pool, input.FromWarehouseID)
	if err != nil {
		return nil, err
	}
	to, err := getWarehouse(ctx, s.pool, input.ToWarehouseID)
	if err != nil {
		return nil, err
	}
	available, err := stockQuantity(ctx, s.pool, input.ProductID, input.FromWarehouseID)
	if err != nil {
		return nil, err
	}
	if available < input.Quantity {
		return nil, &InsufficientStockError{
			ProductID: product.ID, ProductSKU: product.SKU,
			WarehouseID: from.ID, WarehouseName: from.Name,
			Available: available, Requested: input.Quantity,
		}
	}

	var record TransferRecord
	err = s.tx.run(ctx, "transfer stock", func(tx pgx.Tx) error {
		return executeTransferTx(ctx, tx, input, &record)
	})
	if err != nil {
		return nil, err
	}

	record.ProductSKU, record.ProductName = product.SKU, product.Name
	record.FromWarehouse, record.ToWarehouse = from.Name, to.Name

	s.log.Info("stock transferred",
		zap.Int("transfer_id", record.ID),
		zap.String("sku", product.SKU),
		zap.Int("quantity", record.Quantity),
		zap.String("from", from.Name),
		zap.String("to", to.Name),
		zap.Intp("user_id", input.UserID),
	)
	s.audit.Record(ctx, input.UserID, ActionStockTransferred, Ref(EntityTransfer, record.ID), map[string]any{
		"product_id":     product.ID,
		"product_sku":    product.SKU,
		"quantity":       record.Quantity,
		"from_warehouse": from.Name,
		"to_warehouse":   to.Name,
		"description":    record.Note,
	})
	return &record, nil
}

// executeTransferTx performs the locked part of a transfer. Entries are locked in
// ascending warehouse id order so two opposing transfers cannot deadlock.
func executeTransferTx(ctx context.Context, tx pgx.Tx, input TransferInput, record *TransferRecord) error {
	if err := ensureEntryTx(ctx, tx, input.ProductID, input.ToWarehouseID); err != nil {
		return err
	}

	type locked struct {
		id, qty int
		found   bool
	}
	entries := map[int]locked{}
	order := []int{input.FromWarehouseID, input.ToWarehouseID}
	if order[1] < order[0] {
		order[0], order[1] = order[1], order[0]
	}
	for _, wid := range order {
		id, qty, found, err := lockEntryTx(ctx, tx, input.ProductID, wid)
		if err != nil {
			return err
		}
		entries[wid] = locked{id: id, qty: qty, found: found}
	}

	src, dst := entries[input.FromWarehouseID], entries[input.ToWarehouseID]
	if !src.found || src.qty < input.Quantity {
		return shortage(ctx, tx, input.ProductID, input.FromWarehouseID, src.qty, input.Quantity)
	}
	if !dst.found {
		return fmt.Errorf("destination stock entry for product %d in warehouse %d missing after insert",
			input.ProductID, input.ToWarehouseID)
	}

	if err := adjustEntryTx(ctx, tx, src.id, -input.Quantity); err != nil {
		return err
	}
	if err := adjustEntryTx(ctx, tx, dst.id, input.Quantity); err != nil {
		return err
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO transfer_records (product_id, from_warehouse_id, to_warehouse_id, quantity, transferred_by, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, product_id, from_warehouse_id, to_warehouse_id, quantity, transferred_by, note, created_at`,
		input.ProductID, input.FromWarehouseID, input.ToWarehouseID, input.Quantity, input.UserID, input.Note,
	).Scan(&record.ID, &record.ProductID, &record.FromWarehouseID, &record.ToWarehouseID,
		&record.Quantity, &record.TransferredBy, &record.Note, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transfer record: %w", err)
	}
	return nil
}

const transferSelect = `
	SELECT t.id, t.product_id, p.sku, p.name,
	       t.from_warehouse_id, fw.name, t.to_warehouse_id, tw.name,
	       t.quantity, t.transferred_by, COALESCE(u.email, ''), t.note, t.created_at
	FROM transfer_records t
	JOIN products p    ON p.id = t.product_id
	JOIN warehouses fw ON fw.id = t.from_warehouse_id
	JOIN warehouses tw ON tw.id = t.to_warehouse_id
	LEFT JOIN users u  ON u.id = t.transferred_by`

func scanTransfer(row pgx.Row, t *TransferRecord) error {
	return row.Scan(&t.ID, &t.ProductID, &t.ProductSKU, &t.ProductName,
		&t.FromWarehouseID, &t.FromWarehouse, &t.ToWarehouseID, &t.ToWarehouse,
		&t.Quantity, &t.TransferredBy, &t.TransferredByEmail, &t.Note, &t.CreatedAt)
}

func (s *transferService) GetTransfer(ctx context.Context, id int) (*TransferRecord, error) {
	var t TransferRecord
	if err := scanTransfer(s.pool.QueryRow(ctx, transferSelect+" WHERE t.id = $1", id), &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("transfer", id)
		}
		return nil, fmt.Errorf("failed to load transfer %d: %w", id, err)
	}
	return &t, nil
}

func (s *transferService) ListTransfers(ctx context.Context, filter TransferFilter) ([]TransferRecord, error) {
	var where []string
	var args []any
	add := func(cond string, v int) {
		if v <= 0 {
			return
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	add("t.product_id = $%d", filter.ProductID)
	add("t.from_warehouse_id = $%d", filter.FromWarehouseID)
	add("t.to_warehouse_id = $%d", filter.ToWarehouseID)
	add("t.transferred_by = $%d", filter.UserID)

	query := transferSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.created_at DESC, t.id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var records []TransferRecord
	for rows.Next() {
		var t TransferRecord
		if err := scanTransfer(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		records = append(records, t)
	}
	return records, rows.Err()
}
