package core

import (
	"time"
)

// Warehouse is a physical storage location.
type Warehouse struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	LocationAddress string    `json:"location_address"`
	ContactEmail    string    `json:"contact_email"`
	ContactPhone    string    `json:"contact_phone"`
	CreatedAt       time.Time `json:"created_at"`
}

// StockEntry is the quantity on hand of one product in one warehouse.
// At most one entry exists per (product, warehouse) and its quantity is never negative.
type StockEntry struct {
	ID          int       `json:"id"`
	ProductID   int       `json:"product_id"`
	WarehouseID int       `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockLevel is a read view of a stock entry joined with product and warehouse info.
type StockLevel struct {
	ProductID     int       `json:"product_id"`
	ProductSKU    string    `json:"product_sku"`
	ProductName   string    `json:"product_name"`
	WarehouseID   int       `json:"warehouse_id"`
	WarehouseName string    `json:"warehouse_name"`
	Quantity      int       `json:"quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StockFilter narrows GetStockLevels. Zero values match everything.
type StockFilter struct {
	ProductID   int
	WarehouseID int
}

// ReceiveStockInput describes stock entering the system at a warehouse.
type ReceiveStockInput struct {
	ProductID   int
	WarehouseID int
	Quantity    int
	UserID      *int
	Note        string
}

// TransferRecord is an immutable log row for a completed warehouse-to-warehouse move.
type TransferRecord struct {
	ID                 int       `json:"id"`
	ProductID          int       `json:"product_id"`
	ProductSKU         string    `json:"product_sku"`
	ProductName        string    `json:"product_name"`
	FromWarehouseID    int       `json:"from_warehouse_id"`
	FromWarehouse      string    `json:"from_warehouse"`
	ToWarehouseID      int       `json:"to_warehouse_id"`
	ToWarehouse        string    `json:"to_warehouse"`
	Quantity           int       `json:"quantity"`
	TransferredBy      *int      `json:"transferred_by,omitempty"`
	TransferredByEmail string    `json:"transferred_by_email,omitempty"`
	Note               string    `json:"note"`
	CreatedAt          time.Time `json:"created_at"`
}

// TransferInput is a request to move stock of one product between two warehouses.
type TransferInput struct {
	ProductID       int
	FromWarehouseID int
	ToWarehouseID   int
	Quantity        int
	UserID          *int
	Note            string
}

// Validate checks the request shape before any lookup.
func (in TransferInput) Validate() error {
	if in.ProductID <= 0 {
		return invalid("product_id", "is required")
	}
	if in.FromWarehouseID <= 0 {
		return invalid("from_warehouse_id", "is required")
	}
	if in.ToWarehouseID <= 0 {
		return invalid("to_warehouse_id", "is required")
	}
	if in.FromWarehouseID == in.ToWarehouseID {
		return invalid("to_warehouse_id", "source and destination warehouses cannot be the same")
	}
	if in.Quantity <= 0 {
		return invalid("quantity", "must be positive, got %d", in.Quantity)
	}
	return nil
}

// TransferFilter narrows ListTransfers. Zero values match everything.
type TransferFilter struct {
	ProductID       int
	FromWarehouseID int
	ToWarehouseID   int
	UserID          int
	Limit           int
}
