package app

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request types double as HTTP bodies; their json tags are the wire format and the
// source of the published JSON Schemas.

// ReceiveStockRequest is the input for recording goods arriving at a warehouse.
type ReceiveStockRequest struct {
	ProductID   int    `json:"product_id" jsonschema:"required,minimum=1"`
	WarehouseID int    `json:"warehouse_id" jsonschema:"required,minimum=1"`
	Quantity    int    `json:"quantity" jsonschema:"required,minimum=1"`
	Note        string `json:"note,omitempty"`
}

// TransferRequest is the input for moving stock between warehouses.
type TransferRequest struct {
	ProductID       int    `json:"product_id" jsonschema:"required,minimum=1"`
	FromWarehouseID int    `json:"from_warehouse_id" jsonschema:"required,minimum=1"`
	ToWarehouseID   int    `json:"to_warehouse_id" jsonschema:"required,minimum=1"`
	Quantity        int    `json:"quantity" jsonschema:"required,minimum=1"`
	Note            string `json:"note,omitempty"`
}

// ShipmentItemRequest is a single line within a CreateShipmentRequest.
type ShipmentItemRequest struct {
	ProductID int `json:"product_id" jsonschema:"required,minimum=1"`
	Quantity  int `json:"quantity" jsonschema:"required,minimum=1"`
}

// CreateShipmentRequest is the input for creating a shipment.
type CreateShipmentRequest struct {
	CustomerID             int                   `json:"customer_id" jsonschema:"required,minimum=1"`
	OriginWarehouseID      int                   `json:"origin_warehouse_id" jsonschema:"required,minimum=1"`
	DestinationAddress     string                `json:"destination_address" jsonschema:"required,minLength=1"`
	ContainerID            *int                  `json:"container_id,omitempty"`
	EstimatedDepartureDate *time.Time            `json:"estimated_departure_date,omitempty"`
	EstimatedDeliveryDate  *time.Time            `json:"estimated_delivery_date,omitempty"`
	Notes                  string                `json:"notes,omitempty"`
	CustomerNotes          string                `json:"customer_notes,omitempty"`
	Items                  []ShipmentItemRequest `json:"items" jsonschema:"required,minItems=1"`
}

// StatusRequest is the body of a shipment or container status change.
type StatusRequest struct {
	Status string `json:"status" jsonschema:"required"`
}

// ContainerFeesRequest replaces all four container fees. An omitted fee is cleared.
type ContainerFeesRequest struct {
	BankCharges        *decimal.Decimal `json:"bank_charges,omitempty"`
	DutyAndFees        *decimal.Decimal `json:"duty_and_fees,omitempty"`
	TransportationFees *decimal.Decimal `json:"transportation_fees,omitempty"`
	Discharge          *decimal.Decimal `json:"discharge,omitempty"`
}

// CreateContainerRequest is the input for creating a container. An empty code
// draws the next sequential #C-NNNNN code.
type CreateContainerRequest struct {
	Code                       string `json:"code,omitempty"`
	Type                       string `json:"type,omitempty"`
	Status                     string `json:"status,omitempty"`
	CurrentLocationDescription string `json:"current_location_description,omitempty"`
	CurrentWarehouseID         *int   `json:"current_warehouse_id,omitempty"`
	AssignedCustomerID         *int   `json:"assigned_customer_id,omitempty"`
	CurrentGoodsDescription    string `json:"current_goods_description,omitempty"`
	LastKnownOrigin            string `json:"last_known_origin,omitempty"`
	ContainerFeesRequest
}

// ContainerWarehouseRequest is the body of a container warehouse transfer.
type ContainerWarehouseRequest struct {
	NewWarehouseID int `json:"new_warehouse_id" jsonschema:"required,minimum=1"`
}

// ContainerProductRequest is the body of a product-to-container assignment.
type ContainerProductRequest struct {
	ProductID int `json:"product_id" jsonschema:"required,minimum=1"`
}

// CreateProductRequest is the input for adding a catalog product.
type CreateProductRequest struct {
	SKU          string           `json:"sku" jsonschema:"required,minLength=1"`
	Name         string           `json:"name" jsonschema:"required,minLength=1"`
	Description  string           `json:"description,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	ContainerID  *int             `json:"container_id,omitempty"`
	SupplierID   *int             `json:"supplier_id,omitempty"`
}

// CreateWarehouseRequest is the input for adding a warehouse.
type CreateWarehouseRequest struct {
	Name            string `json:"name" jsonschema:"required,minLength=1"`
	LocationAddress string `json:"location_address,omitempty"`
	ContactEmail    string `json:"contact_email,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
}

// CreateSupplierRequest is the input for adding a supplier.
type CreateSupplierRequest struct {
	Name          string `json:"name" jsonschema:"required,minLength=1"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
}

// CreateDeliveryTaskRequest opens the local delivery leg of a shipment. With a
// dispatcher_id the task starts ASSIGNED.
type CreateDeliveryTaskRequest struct {
	ShipmentID              int        `json:"shipment_id" jsonschema:"required,minimum=1"`
	DispatcherID            *int       `json:"dispatcher_id,omitempty"`
	PickupAddressOverride   string     `json:"pickup_address_override,omitempty"`
	DeliveryAddressOverride string     `json:"delivery_address_override,omitempty"`
	ScheduledPickupAt       *time.Time `json:"scheduled_pickup_at,omitempty"`
	ScheduledDeliveryAt     *time.Time `json:"scheduled_delivery_at,omitempty"`
	InternalNotes           string     `json:"internal_notes,omitempty"`
}

// AssignDispatcherRequest is the body of a delivery task assignment.
type AssignDispatcherRequest struct {
	DispatcherID int `json:"dispatcher_id" jsonschema:"required,minimum=1"`
}

// MarkDeliveredRequest carries the proof of delivery. Empty fields keep what is stored.
type MarkDeliveredRequest struct {
	RecipientName string `json:"recipient_name,omitempty"`
	SignatureData string `json:"signature_data,omitempty"`
}

// DeliveryStatusRequest is the body of a generic delivery task status change.
type DeliveryStatusRequest struct {
	Status          string `json:"status" jsonschema:"required"`
	DispatcherNotes string `json:"dispatcher_notes,omitempty"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" jsonschema:"required"`
	Password string `json:"password" jsonschema:"required"`
}
