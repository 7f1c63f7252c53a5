package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConcurrencyConflict is returned when a stock transaction still loses a lock race
// (deadlock, serialization failure or lock timeout) after its single retry.
var ErrConcurrencyConflict = errors.New("concurrent update conflict, please retry")

// ValidationError reports a request that is malformed or violates a business rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError is returned when a warehouse holds less of a product than requested.
type InsufficientStockError struct {
	ProductID     int
	ProductSKU    string
	WarehouseID   int
	WarehouseName string
	Available     int
	Requested     int
}

func (e *InsufficientStockError) Error() string {
	product := e.ProductSKU
	if product == "" {
		product = fmt.Sprintf("#%d", e.ProductID)
	}
	warehouse := e.WarehouseName
	if warehouse == "" {
		warehouse = fmt.Sprintf("#%d", e.WarehouseID)
	}
	return fmt.Sprintf("insufficient stock for product %s in warehouse %s: available %d, requested %d",
		product, warehouse, e.Available, e.Requested)
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func notFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Postgres SQLSTATE codes the stock transactions react to.
const (
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isRetryable reports whether err is a lock-race failure worth one more attempt.
func isRetryable(err error) bool {
	switch pgErrorCode(err) {
	case pgDeadlockDetected, pgSerializationFailure, pgLockNotAvailable:
		return true
	}
	return false
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
