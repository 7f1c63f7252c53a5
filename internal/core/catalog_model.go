package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item. ContainerID links it to the container it travels in;
// deleting the container leaves the product with a nil ContainerID.
type Product struct {
	ID           int             `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Quantity     int             `json:"quantity"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	ContainerID  *int            `json:"container_id,omitempty"`
	SupplierID   *int            `json:"supplier_id,omitempty"`
	CreatedBy    *int            `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProductInput is the input for creating a product.
type ProductInput struct {
	SKU          string
	Name         string
	Description  string
	Quantity     int
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	ContainerID  *int
	SupplierID   *int
	CreatedBy    *int
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.SKU) == "" {
		return invalid("sku", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	if in.Quantity < 0 {
		return invalid("quantity", "cannot be negative")
	}
	if in.CostPrice.IsNegative() {
		return invalid("cost_price", "cannot be negative")
	}
	if in.SellingPrice.IsNegative() {
		return invalid("selling_price", "cannot be negative")
	}
	return nil
}

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	ContainerID int
	SupplierID  int
	Search      string
}

// Supplier is a vendor that products are sourced from.
type Supplier struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	CreatedAt     time.Time `json:"created_at"`
}

// SupplierInput is the input for creating a supplier.
type SupplierInput struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
}

// WarehouseInput is the input for creating a warehouse.
type WarehouseInput struct {
	Name            string
	LocationAddress string
	ContactEmail    string
	ContactPhone    string
}
