package core

import (
	"context"
	"strings"
	"time"
)

// DeliveryStatus is the state of the local delivery leg of a shipment.
type DeliveryStatus string

const (
	DeliveryPendingAssignment DeliveryStatus = "PENDING_ASSIGNMENT"
	DeliveryAssigned          DeliveryStatus = "ASSIGNED"
	DeliveryAwaitingPickup    DeliveryStatus = "AWAITING_PICKUP"
	DeliveryPickedUp          DeliveryStatus = "PICKED_UP"
	DeliveryInTransitLocal    DeliveryStatus = "IN_TRANSIT_LOCAL"
	DeliveryArrivedCustomer   DeliveryStatus = "ARRIVED_CUSTOMER"
	DeliveryDelivered         DeliveryStatus = "DELIVERED"
	DeliveryFailedAttempt     DeliveryStatus = "FAILED_DELIVERY_ATTEMPT"
	DeliveryRescheduled       DeliveryStatus = "RESCHEDULED"
	DeliveryReturnToHub       DeliveryStatus = "RETURN_TO_HUB"
	DeliveryReturned          DeliveryStatus = "RETURNED"
	DeliveryCancelled         DeliveryStatus = "CANCELLED"
)

// DeliveryStatuses lists every delivery status in lifecycle order.
var DeliveryStatuses = []DeliveryStatus{
	DeliveryPendingAssignment, DeliveryAssigned, DeliveryAwaitingPickup, DeliveryPickedUp,
	DeliveryInTransitLocal, DeliveryArrivedCustomer, DeliveryDelivered, DeliveryFailedAttempt,
	DeliveryRescheduled, DeliveryReturnToHub, DeliveryReturned, DeliveryCancelled,
}

// ParseDeliveryStatus validates a status name.
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range DeliveryStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", invalid("status", "unknown delivery status %q", s)
}

// Closed reports whether a task in this status is finished and can no longer change.
func (s DeliveryStatus) Closed() bool {
	return s == DeliveryDelivered || s == DeliveryReturned || s == DeliveryCancelled
}

// DeliveryTask is the local delivery of one shipment. PickupAddress and DeliveryAddress
// are the overrides when set, else the origin warehouse and the shipment destination.
type DeliveryTask struct {
	ID                      int            `json:"id"`
	ShipmentID              int            `json:"shipment_id"`
	TrackingCode            string         `json:"tracking_code"`
	ShipmentStatus          ShipmentStatus `json:"shipment_status"`
	DispatcherID            *int           `json:"dispatcher_id,omitempty"`
	DispatcherEmail         string         `json:"dispatcher_email,omitempty"`
	DispatcherName          string         `json:"dispatcher_name,omitempty"`
	Status                  DeliveryStatus `json:"status"`
	PickupAddressOverride   string         `json:"pickup_address_override"`
	PickupAddress           string         `json:"pickup_address"`
	DeliveryAddressOverride string         `json:"delivery_address_override"`
	DeliveryAddress         string         `json:"delivery_address"`
	ScheduledPickupAt       *time.Time     `json:"scheduled_pickup_at,omitempty"`
	ActualPickupAt          *time.Time     `json:"actual_pickup_at,omitempty"`
	ScheduledDeliveryAt     *time.Time     `json:"scheduled_delivery_at,omitempty"`
	ActualDeliveryAt        *time.Time     `json:"actual_delivery_at,omitempty"`
	RecipientName           string         `json:"recipient_name"`
	SignatureData           string         `json:"signature_data,omitempty"`
	DispatcherNotes         string         `json:"dispatcher_notes"`
	InternalNotes           string         `json:"internal_notes,omitempty"`
	CreatedBy               *int           `json:"created_by,omitempty"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// AssignedTo reports whether userID is the task's dispatcher.
func (t *DeliveryTask) AssignedTo(userID int) bool {
	return userID > 0 && t.DispatcherID != nil && *t.DispatcherID == userID
}

// CreateDeliveryTaskInput is the input for CreateTask.
type CreateDeliveryTaskInput struct {
	ShipmentID              int
	DispatcherID            *int
	PickupAddressOverride   string
	DeliveryAddressOverride string
	ScheduledPickupAt       *time.Time
	ScheduledDeliveryAt     *time.Time
	InternalNotes           string
	CreatedBy               *int
}

func (in CreateDeliveryTaskInput) Validate() error {
	if in.ShipmentID <= 0 {
		return invalid("shipment_id", "is required")
	}
	if in.DispatcherID != nil && *in.DispatcherID <= 0 {
		return invalid("dispatcher_id", "must be a positive id")
	}
	if in.ScheduledPickupAt != nil && in.ScheduledDeliveryAt != nil &&
		in.ScheduledDeliveryAt.Before(*in.ScheduledPickupAt) {
		return invalid("scheduled_delivery_at", "cannot be before the scheduled pickup")
	}
	return nil
}

// DeliveryProof is what the dispatcher records on handover.
type DeliveryProof struct {
	RecipientName string
	SignatureData string
}

// DeliveryTaskFilter narrows ListTasks. Active drops closed tasks and orders by schedule.
type DeliveryTaskFilter struct {
	ShipmentID   int
	DispatcherID int
	Status       DeliveryStatus
	Active       bool
	Limit        int
}

// DeliveryHooks receives delivery events after their transaction commits.
// Implementations must not fail the caller; errors are theirs to log.
type DeliveryHooks interface {
	DeliveryAssigned(ctx context.Context, t *DeliveryTask)
}

type noopDeliveryHooks struct{}

func (noopDeliveryHooks) DeliveryAssigned(context.Context, *DeliveryTask) {}
