package core_test

import (
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"logistics-backend/internal/core"

	"golang.org/x/sync/errgroup"
)

var trackingCodePattern = regexp.MustCompile(`^SHP-[0-9A-F]{10}$`)

func shipmentInput(items ...core.ShipmentItemInput) core.CreateShipmentInput {
	return core.CreateShipmentInput{
		CustomerID:         customerID,
		OriginWarehouseID:  lagosID,
		DestinationAddress: "12 Marina Rd, Lagos Island",
		Items:              items,
		CreatedBy:          intp(managerID),
	}
}

func TestShipment_CreateReservesStock(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)
	e.receive(t, gadgetID, lagosID, 4)

	sh, err := e.shipments.CreateShipment(e.ctx, shipmentInput(
		core.ShipmentItemInput{ProductID: gadgetID, Quantity: 1},
		core.ShipmentItemInput{ProductID: widgetID, Quantity: 6},
	))
	if err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}

	if !trackingCodePattern.MatchString(sh.TrackingCode) {
		t.Errorf("Unexpected tracking code %q", sh.TrackingCode)
	}
	if sh.Status != core.ShipmentPendingConfirmation {
		t.Errorf("Expected PENDING_CONFIRMATION, got %s", sh.Status)
	}
	if len(sh.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(sh.Items))
	}
	if sh.OriginWarehouse != "Lagos Central" || sh.CustomerEmail != "customer@example.com" {
		t.Errorf("Unexpected joined fields: %+v", sh)
	}
	if got := e.quantity(t, widgetID, lagosID); got != 4 {
		t.Errorf("Expected widget stock 4, got %d", got)
	}
	if got := e.quantity(t, gadgetID, lagosID); got != 3 {
		t.Errorf("Expected gadget stock 3, got %d", got)
	}

	if len(e.hooks.created) != 1 || e.hooks.created[0] != sh.TrackingCode {
		t.Errorf("Expected created hook for %s, got %v", sh.TrackingCode, e.hooks.created)
	}
	logs := e.actions(t, core.ActionShipmentCreated)
	if len(logs) != 1 || logs[0].RelatedLabel != sh.TrackingCode {
		t.Errorf("Expected one audit entry labelled %s, got %+v", sh.TrackingCode, logs)
	}
}

func TestShipment_InsufficientStockPersistsNothing(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 5)

	_, err := e.shipments.CreateShipment(e.ctx, shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 10}))
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 5 || insufficient.Requested != 10 || insufficient.ProductSKU != "WID-001" {
		t.Errorf("Unexpected error detail: %+v", insufficient)
	}

	if got := e.quantity(t, widgetID, lagosID); got != 5 {
		t.Errorf("Expected stock unchanged at 5, got %d", got)
	}
	if n := e.count(t, "SELECT COUNT(*) FROM shipments"); n != 0 {
		t.Errorf("Expected no shipments, got %d", n)
	}
	if len(e.hooks.created) != 0 {
		t.Errorf("Expected no created hook, got %v", e.hooks.created)
	}
}

func TestShipment_OneShortItemFailsTheWholeShipment(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)
	e.receive(t, gadgetID, lagosID, 1)

	_, err := e.shipments.CreateShipment(e.ctx, shipmentInput(
		core.ShipmentItemInput{ProductID: widgetID, Quantity: 5},
		core.ShipmentItemInput{ProductID: gadgetID, Quantity: 3},
	))
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) || insufficient.ProductID != gadgetID {
		t.Fatalf("Expected InsufficientStockError for gadget, got %v", err)
	}
	if got := e.quantity(t, widgetID, lagosID); got != 10 {
		t.Errorf("Expected widget stock untouched at 10, got %d", got)
	}
	if n := e.count(t, "SELECT COUNT(*) FROM shipment_items"); n != 0 {
		t.Errorf("Expected no shipment items, got %d", n)
	}
}

func TestShipment_RejectsBadRequests(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)

	var verr *core.ValidationError

	empty := shipmentInput()
	if _, err := e.shipments.CreateShipment(e.ctx, empty); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for empty items, got %v", err)
	}

	dup := shipmentInput(
		core.ShipmentItemInput{ProductID: widgetID, Quantity: 1},
		core.ShipmentItemInput{ProductID: widgetID, Quantity: 2},
	)
	if _, err := e.shipments.CreateShipment(e.ctx, dup); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for duplicate items, got %v", err)
	}

	staff := shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 1})
	staff.CustomerID = managerID
	if _, err := e.shipments.CreateShipment(e.ctx, staff); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for non-customer recipient, got %v", err)
	}

	var nf *core.NotFoundError
	noWarehouse := shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 1})
	noWarehouse.OriginWarehouseID = 999
	if _, err := e.shipments.CreateShipment(e.ctx, noWarehouse); !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError for missing warehouse, got %v", err)
	}

	if got := e.quantity(t, widgetID, lagosID); got != 10 {
		t.Errorf("Expected stock unchanged at 10, got %d", got)
	}
}

func TestShipment_ContainerCanOnlyCarryOneShipment(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)
	c, err := e.containers.CreateContainer(e.ctx, core.CreateContainerInput{Type: "40ft"})
	if err != nil {
		t.Fatalf("CreateContainer failed: %v", err)
	}

	first := shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 1})
	first.ContainerID = &c.ID
	if _, err := e.shipments.CreateShipment(e.ctx, first); err != nil {
		t.Fatalf("First shipment failed: %v", err)
	}

	second := shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 1})
	second.ContainerID = &c.ID
	_, err = e.shipments.CreateShipment(e.ctx, second)
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for reused container, got %v", err)
	}
	if got := e.quantity(t, widgetID, lagosID); got != 9 {
		t.Errorf("Expected stock 9 after one shipment, got %d", got)
	}
}

func TestShipment_ConcurrentShipmentsNeverOversell(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)
	e.receive(t, gadgetID, lagosID, 2)

	var (
		mu        sync.Mutex
		succeeded int
	)
	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, err := e.shipments.CreateShipment(e.ctx, shipmentInput(
				core.ShipmentItemInput{ProductID: widgetID, Quantity: 5},
				core.ShipmentItemInput{ProductID: gadgetID, Quantity: 1},
			))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return nil
			}
			var insufficient *core.InsufficientStockError
			if !errors.As(err, &insufficient) {
				t.Errorf("Expected InsufficientStockError, got %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if succeeded != 2 {
		t.Errorf("Expected exactly 2 shipments, got %d", succeeded)
	}
	if got := e.quantity(t, widgetID, lagosID); got != 0 {
		t.Errorf("Expected widget stock 0, got %d", got)
	}
	if got := e.quantity(t, gadgetID, lagosID); got != 0 {
		t.Errorf("Expected gadget stock 0, got %d", got)
	}
	if n := e.count(t, "SELECT COUNT(*) FROM shipments"); n != 2 {
		t.Errorf("Expected 2 shipments persisted, got %d", n)
	}
	if n := e.count(t, "SELECT COUNT(*) FROM shipment_items"); n != 4 {
		t.Errorf("Expected 4 shipment items persisted, got %d", n)
	}
}

func TestShipment_CancelRestoresOriginStock(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)

	sh, err := e.shipments.CreateShipment(e.ctx, shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 7}))
	if err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}
	if _, err := e.shipments.UpdateShipmentStatus(e.ctx, sh.ID, core.ShipmentProcessing, intp(managerID)); err != nil {
		t.Fatalf("UpdateShipmentStatus(PROCESSING) failed: %v", err)
	}

	cancelled, err := e.shipments.UpdateShipmentStatus(e.ctx, sh.ID, core.ShipmentCancelled, intp(managerID))
	if err != nil {
		t.Fatalf("UpdateShipmentStatus(CANCELLED) failed: %v", err)
	}
	if cancelled.Status != core.ShipmentCancelled {
		t.Errorf("Expected CANCELLED, got %s", cancelled.Status)
	}
	if got := e.quantity(t, widgetID, lagosID); got != 10 {
		t.Errorf("Expected stock restored to 10, got %d", got)
	}

	_, err = e.shipments.UpdateShipmentStatus(e.ctx, sh.ID, core.ShipmentShipped, intp(managerID))
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError leaving CANCELLED, got %v", err)
	}

	want := []string{"PENDING_CONFIRMATION->PROCESSING", "PROCESSING->CANCELLED"}
	if len(e.hooks.changed) != 2 || e.hooks.changed[0] != want[0] || e.hooks.changed[1] != want[1] {
		t.Errorf("Expected status hooks %v, got %v", want, e.hooks.changed)
	}
	logs := e.actions(t, core.ActionShipmentStatusChanged)
	if len(logs) != 2 || logs[0].Details["new_status"] != "CANCELLED" || logs[0].Details["old_status"] != "PROCESSING" {
		t.Errorf("Unexpected status audit entries: %+v", logs)
	}
}

func TestShipment_CancelAfterDepartureKeepsStock(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)

	sh, err := e.shipments.CreateShipment(e.ctx, shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 4}))
	if err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}
	shipped, err := e.shipments.UpdateShipmentStatus(e.ctx, sh.ID, core.ShipmentShipped, nil)
	if err != nil {
		t.Fatalf("UpdateShipmentStatus(SHIPPED) failed: %v", err)
	}
	if shipped.ActualDepartureDate == nil || time.Since(*shipped.ActualDepartureDate) > time.Minute {
		t.Errorf("Expected actual departure date stamped, got %v", shipped.ActualDepartureDate)
	}

	if _, err := e.shipments.UpdateShipmentStatus(e.ctx, sh.ID, core.ShipmentCancelled, nil); err != nil {
		t.Fatalf("UpdateShipmentStatus(CANCELLED) failed: %v", err)
	}
	if got := e.quantity(t, widgetID, lagosID); got != 6 {
		t.Errorf("Expected stock to stay at 6 once goods left the warehouse, got %d", got)
	}
}

func TestShipment_SameStatusIsNoop(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)
	sh, err := e.shipments.CreateShipment(e.ctx, shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 1}))
	if err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}

	if _, err := e.shipments.UpdateShipmentStatus(e.ctx, sh.ID, core.ShipmentPendingConfirmation, nil); err != nil {
		t.Fatalf("UpdateShipmentStatus failed: %v", err)
	}
	if len(e.hooks.changed) != 0 {
		t.Errorf("Expected no status hook, got %v", e.hooks.changed)
	}
	if n := len(e.actions(t, core.ActionShipmentStatusChanged)); n != 0 {
		t.Errorf("Expected no status audit entry, got %d", n)
	}

	_, err = e.shipments.UpdateShipmentStatus(e.ctx, 999, core.ShipmentShipped, nil)
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestShipment_ListFilters(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)

	mine, err := e.shipments.CreateShipment(e.ctx, shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 1}))
	if err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}
	other := shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 1})
	other.CustomerID = otherCustomerID
	if _, err := e.shipments.CreateShipment(e.ctx, other); err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}

	list, err := e.shipments.ListShipments(e.ctx, core.ShipmentFilter{CustomerID: customerID})
	if err != nil {
		t.Fatalf("ListShipments failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != mine.ID || len(list[0].Items) != 1 {
		t.Errorf("Expected only the customer's shipment with its item, got %+v", list)
	}

	all, err := e.shipments.ListShipments(e.ctx, core.ShipmentFilter{Status: core.ShipmentPendingConfirmation})
	if err != nil {
		t.Fatalf("ListShipments failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 pending shipments, got %d", len(all))
	}
}

func TestShipment_StatusIsNormalised(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)
	sh, err := e.shipments.CreateShipment(e.ctx, shipmentInput(core.ShipmentItemInput{ProductID: widgetID, Quantity: 1}))
	if err != nil {
		t.Fatalf("CreateShipment failed: %v", err)
	}

	shipped, err := e.shipments.UpdateShipmentStatus(e.ctx, sh.ID, core.ShipmentStatus(" shipped "), nil)
	if err != nil {
		t.Fatalf("UpdateShipmentStatus(shipped) failed: %v", err)
	}
	if shipped.Status != core.ShipmentShipped {
		t.Errorf("Expected SHIPPED, got %q", shipped.Status)
	}
	if shipped.ActualDepartureDate == nil {
		t.Error("Expected actual departure date stamped for lower-case input")
	}

	_, err = e.pool.Exec(e.ctx, "UPDATE shipments SET status = 'shipped' WHERE id = $1", sh.ID)
	if err == nil {
		t.Error("Expected the status CHECK constraint to reject lower-case text")
	}
}
