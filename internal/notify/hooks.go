package notify

import (
	"context"
	"fmt"

	"logistics-backend/internal/core"

	"go.uber.org/zap"
)

// ShipmentNotifier tells customers about their shipments. It implements core.ShipmentHooks.
type ShipmentNotifier struct {
	notifier core.Notifier
	log      *zap.Logger
}

// NewShipmentNotifier returns hooks that send customer notifications through notifier.
func NewShipmentNotifier(notifier core.Notifier, log *zap.Logger) *ShipmentNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShipmentNotifier{notifier: notifier, log: log}
}

func (h *ShipmentNotifier) ShipmentCreated(ctx context.Context, s *core.Shipment) {
	h.send(ctx, s, createdMessage(s))
}

func (h *ShipmentNotifier) ShipmentStatusChanged(ctx context.Context, s *core.Shipment, previous core.ShipmentStatus) {
	in, ok := statusMessage(s)
	if !ok {
		return
	}
	h.send(ctx, s, in)
}

func (h *ShipmentNotifier) send(ctx context.Context, s *core.Shipment, in core.NotificationInput) {
	if err := h.notifier.Notify(ctx, in); err != nil {
		h.log.Warn("failed to notify customer",
			zap.String("tracking_code", s.TrackingCode),
			zap.Int("customer_id", s.CustomerID),
			zap.Error(err),
		)
	}
}

func createdMessage(s *core.Shipment) core.NotificationInput {
	return core.NotificationInput{
		RecipientID: s.CustomerID,
		Title:       fmt.Sprintf("Shipment %s Confirmed", s.TrackingCode),
		Message: fmt.Sprintf("Your shipment with tracking ID %s has been confirmed and is now being processed.\n"+
			"Origin: %s\nDestination: %s\n\nYou can track its progress on our platform.",
			s.TrackingCode, s.OriginWarehouse, s.DestinationAddress),
		Channel: core.ChannelEmail,
		Related: core.Ref(core.EntityShipment, s.ID),
	}
}

// statusMessage returns the customer message for a status, or false when the status is not announced.
func statusMessage(s *core.Shipment) (core.NotificationInput, bool) {
	in := core.NotificationInput{
		RecipientID: s.CustomerID,
		Channel:     core.ChannelInApp,
		Related:     core.Ref(core.EntityShipment, s.ID),
	}
	switch s.Status {
	case core.ShipmentShipped:
		in.Title = fmt.Sprintf("Shipment %s Has Shipped!", s.TrackingCode)
		in.Message = fmt.Sprintf("Good news! Your shipment %s has left %s and is on its way.", s.TrackingCode, s.OriginWarehouse)
	case core.ShipmentOutForDelivery:
		eta := "Today"
		if s.EstimatedDeliveryDate != nil {
			eta = s.EstimatedDeliveryDate.Format("2006-01-02 15:04")
		}
		in.Title = fmt.Sprintf("Shipment %s is Out for Delivery", s.TrackingCode)
		in.Message = fmt.Sprintf("Your shipment %s is out for local delivery today. Estimated delivery: %s.", s.TrackingCode, eta)
	case core.ShipmentDelivered:
		in.Title = fmt.Sprintf("Shipment %s Delivered", s.TrackingCode)
		in.Message = fmt.Sprintf("Your shipment %s has been successfully delivered. Thank you for using our service!", s.TrackingCode)
	case core.ShipmentDelayed:
		in.Title = fmt.Sprintf("Shipment %s Delayed", s.TrackingCode)
		in.Message = fmt.Sprintf("We're sorry, your shipment %s is experiencing a delay. Please check the platform for more details or contact support.", s.TrackingCode)
	default:
		return in, false
	}
	return in, true
}

// DeliveryNotifier tells dispatchers about tasks handed to them. It implements core.DeliveryHooks.
type DeliveryNotifier struct {
	notifier core.Notifier
	log      *zap.Logger
}

// NewDeliveryNotifier returns hooks that email dispatchers through notifier.
func NewDeliveryNotifier(notifier core.Notifier, log *zap.Logger) *DeliveryNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeliveryNotifier{notifier: notifier, log: log}
}

func (h *DeliveryNotifier) DeliveryAssigned(ctx context.Context, t *core.DeliveryTask) {
	if t.DispatcherID == nil {
		return
	}
	if err := h.notifier.Notify(ctx, assignedMessage(t)); err != nil {
		h.log.Warn("failed to notify dispatcher",
			zap.Int("delivery_task_id", t.ID),
			zap.Int("dispatcher_id", *t.DispatcherID),
			zap.Error(err),
		)
	}
}

func assignedMessage(t *core.DeliveryTask) core.NotificationInput {
	name := t.DispatcherName
	if name == "" {
		name = t.DispatcherEmail
	}
	scheduled := "ASAP"
	if t.ScheduledDeliveryAt != nil {
		scheduled = t.ScheduledDeliveryAt.Format("2006-01-02 15:04")
	}
	return core.NotificationInput{
		RecipientID: *t.DispatcherID,
		Title:       fmt.Sprintf("New Delivery Task Assigned: %s", t.TrackingCode),
		Message: fmt.Sprintf("Hello %s,\n\nA new delivery task for shipment %s has been assigned to you.\n"+
			"Pickup from: %s\nDeliver to: %s\nScheduled Delivery: %s\n\nPlease check your task list on the platform.",
			name, t.TrackingCode, t.PickupAddress, t.DeliveryAddress, scheduled),
		Channel: core.ChannelEmail,
		Related: core.Ref(core.EntityDeliveryTask, t.ID),
	}
}
