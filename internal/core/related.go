package core

import (
	"context"
	"fmt"
)

// EntityKind names the entity types an audit entry or notification may point at.
type EntityKind string

const (
	EntityProduct   EntityKind = "PRODUCT"
	EntityWarehouse EntityKind = "WAREHOUSE"
	EntityStock     EntityKind = "STOCK_ENTRY"
	EntityTransfer  EntityKind = "TRANSFER"
	EntityShipment  EntityKind = "SHIPMENT"
	EntityContainer EntityKind = "CONTAINER"
	EntitySupplier  EntityKind = "SUPPLIER"
	EntityUser      EntityKind = "USER"

	EntityDeliveryTask EntityKind = "DELIVERY_TASK"
)

// entityTables is the dispatch table from kind to the row that describes it.
// label is a SQL expression over that row used for display.
var entityTables = map[EntityKind]struct {
	table string
	label string
}{
	EntityProduct:   {"products", "sku || ' ' || name"},
	EntityWarehouse: {"warehouses", "name"},
	EntityStock:     {"stock_entries", "'stock #' || id"},
	EntityTransfer:  {"transfer_records", "'transfer #' || id"},
	EntityShipment:  {"shipments", "tracking_code"},
	EntityContainer: {"containers", "code"},
	EntitySupplier:  {"suppliers", "name"},
	EntityUser:      {"users", "email"},

	EntityDeliveryTask: {"delivery_tasks", "'delivery #' || id"},
}

// Valid reports whether k is one of the known kinds.
func (k EntityKind) Valid() bool {
	_, ok := entityTables[k]
	return ok
}

// ParseEntityKind validates a kind read from a request or a database column.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", invalid("entity_kind", "unknown entity kind %q", s)
	}
	return k, nil
}

// RelatedObject references any entity by kind and id.
type RelatedObject struct {
	Kind EntityKind `json:"kind"`
	ID   int        `json:"id"`
}

// Ref builds a RelatedObject.
func Ref(kind EntityKind, id int) *RelatedObject {
	return &RelatedObject{Kind: kind, ID: id}
}

// resolveLabel returns a display label for the referenced row,
// or an empty string when the row no longer exists.
func resolveLabel(ctx context.Context, q pgxQuerier, obj RelatedObject) (string, error) {
	entry, ok := entityTables[obj.Kind]
	if !ok {
		return "", invalid("entity_kind", "unknown entity kind %q", obj.Kind)
	}
	var label string
	query := fmt.Sprintf("SELECT COALESCE((SELECT %s FROM %s WHERE id = $1), '')", entry.label, entry.table)
	if err := q.QueryRow(ctx, query, obj.ID).Scan(&label); err != nil {
		return "", fmt.Errorf("failed to resolve %s %d: %w", obj.Kind, obj.ID, err)
	}
	return label, nil
}
