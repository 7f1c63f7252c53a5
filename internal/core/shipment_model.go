package core

import (
	"context"
	"strings"
	"time"
)

// ShipmentStatus is the delivery progress of a shipment.
type ShipmentStatus string

const (
	ShipmentPendingConfirmation ShipmentStatus = "PENDING_CONFIRMATION"
	ShipmentProcessing          ShipmentStatus = "PROCESSING"
	ShipmentAwaitingPickup      ShipmentStatus = "AWAITING_PICKUP"
	ShipmentShipped             ShipmentStatus = "SHIPPED"
	ShipmentInTransit           ShipmentStatus = "IN_TRANSIT"
	ShipmentArrivedHub          ShipmentStatus = "ARRIVED_HUB"
	ShipmentCustomsClearance    ShipmentStatus = "CUSTOMS_CLEARANCE"
	ShipmentOutForDelivery      ShipmentStatus = "OUT_FOR_DELIVERY"
	ShipmentDelivered           ShipmentStatus = "DELIVERED"
	ShipmentDelayed             ShipmentStatus = "DELAYED"
	ShipmentCancelled           ShipmentStatus = "CANCELLED"
	ShipmentPartiallyDelivered  ShipmentStatus = "PARTIALLY_DELIVERED"
)

var shipmentStatuses = []ShipmentStatus{
	ShipmentPendingConfirmation, ShipmentProcessing, ShipmentAwaitingPickup, ShipmentShipped,
	ShipmentInTransit, ShipmentArrivedHub, ShipmentCustomsClearance, ShipmentOutForDelivery,
	ShipmentDelivered, ShipmentDelayed, ShipmentCancelled, ShipmentPartiallyDelivered,
}

// ParseShipmentStatus validates a status name.
func ParseShipmentStatus(s string) (ShipmentStatus, error) {
	st := ShipmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range shipmentStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", invalid("status", "unknown shipment status %q", s)
}

// holdsStockAtOrigin reports whether the shipment's goods are still in the origin warehouse,
// so cancelling it returns them to stock.
func (s ShipmentStatus) holdsStockAtOrigin() bool {
	switch s {
	case ShipmentPendingConfirmation, ShipmentProcessing, ShipmentAwaitingPickup:
		return true
	}
	return false
}

// Shipment is a customer order of products leaving one origin warehouse.
type Shipment struct {
	ID                     int            `json:"id"`
	TrackingCode           string         `json:"tracking_code"`
	CustomerID             int            `json:"customer_id"`
	CustomerEmail          string         `json:"customer_email,omitempty"`
	ContainerID            *int           `json:"container_id,omitempty"`
	OriginWarehouseID      int            `json:"origin_warehouse_id"`
	OriginWarehouse        string         `json:"origin_warehouse,omitempty"`
	DestinationAddress     string         `json:"destination_address"`
	Status                 ShipmentStatus `json:"status"`
	EstimatedDepartureDate *time.Time     `json:"estimated_departure_date,omitempty"`
	ActualDepartureDate    *time.Time     `json:"actual_departure_date,omitempty"`
	EstimatedDeliveryDate  *time.Time     `json:"estimated_delivery_date,omitempty"`
	ActualDeliveryDate     *time.Time     `json:"actual_delivery_date,omitempty"`
	Notes                  string         `json:"notes"`
	CustomerNotes          string         `json:"customer_notes"`
	CreatedBy              *int           `json:"created_by,omitempty"`
	DispatcherID           *int           `json:"dispatcher_id,omitempty"`
	Items                  []ShipmentItem `json:"items"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// ShipmentItem is one product line of a shipment.
type ShipmentItem struct {
	ID          int    `json:"id"`
	ProductID   int    `json:"product_id"`
	ProductSKU  string `json:"product_sku,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
}

// ShipmentItemInput is one requested line of a new shipment.
type ShipmentItemInput struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// CreateShipmentInput is the input for CreateShipment.
type CreateShipmentInput struct {
	CustomerID             int
	OriginWarehouseID      int
	DestinationAddress     string
	ContainerID            *int
	EstimatedDepartureDate *time.Time
	EstimatedDeliveryDate  *time.Time
	Notes                  string
	CustomerNotes          string
	Items                  []ShipmentItemInput
	CreatedBy              *int
}

// Validate checks the request shape before any lookup.
func (in CreateShipmentInput) Validate() error {
	if in.CustomerID <= 0 {
		return invalid("customer_id", "is required")
	}
	if in.OriginWarehouseID <= 0 {
		return invalid("origin_warehouse_id", "is required")
	}
	if strings.TrimSpace(in.DestinationAddress) == "" {
		return invalid("destination_address", "is required")
	}
	if len(in.Items) == 0 {
		return invalid("items", "a shipment must include at least one item")
	}
	seen := make(map[int]bool, len(in.Items))
	for i, item := range in.Items {
		if item.ProductID <= 0 {
			return invalid("items", "item %d: product_id is required", i)
		}
		if item.Quantity <= 0 {
			return invalid("items", "item %d: quantity must be positive, got %d", i, item.Quantity)
		}
		if seen[item.ProductID] {
			return invalid("items", "duplicate products found in shipment items (product %d)", item.ProductID)
		}
		seen[item.ProductID] = true
	}
	if in.EstimatedDepartureDate != nil && in.EstimatedDeliveryDate != nil &&
		in.EstimatedDeliveryDate.Before(*in.EstimatedDepartureDate) {
		return invalid("estimated_delivery_date", "cannot be before the estimated departure date")
	}
	return nil
}

// ShipmentFilter narrows ListShipments. Zero values match everything.
type ShipmentFilter struct {
	Status       ShipmentStatus
	CustomerID   int
	// DispatcherID keeps shipments whose delivery task is assigned to this user.
	DispatcherID int
	Limit        int
}

// ShipmentHooks receives shipment events after their transaction commits.
// Implementations must not fail the caller; errors are theirs to log.
type ShipmentHooks interface {
	ShipmentCreated(ctx context.Context, s *Shipment)
	ShipmentStatusChanged(ctx context.Context, s *Shipment, previous ShipmentStatus)
}

type noopShipmentHooks struct{}

func (noopShipmentHooks) ShipmentCreated(context.Context, *Shipment) {}

func (noopShipmentHooks) ShipmentStatusChanged(context.Context, *Shipment, ShipmentStatus) {}
