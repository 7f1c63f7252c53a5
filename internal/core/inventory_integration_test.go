package core_test

import (
	"context"
	"errors"
	"testing"

	"logistics-backend/internal/core"

	"github.com/jackc/pgx/v5"
)

func TestInventory_GetQuantityDoesNotCreateEntries(t *testing.T) {
	e := newTestEnv(t)

	if got := e.quantity(t, widgetID, kanoID); got != 0 {
		t.Errorf("Expected 0 for a pair with no entry, got %d", got)
	}
	if n := e.count(t, "SELECT COUNT(*) FROM stock_entries"); n != 0 {
		t.Errorf("Expected GetQuantity to leave stock_entries empty, got %d rows", n)
	}
}

func TestInventory_ReceiveStock(t *testing.T) {
	e := newTestEnv(t)

	first, err := e.inventory.ReceiveStock(e.ctx, core.ReceiveStockInput{
		ProductID: widgetID, WarehouseID: lagosID, Quantity: 25, UserID: intp(managerID), Note: "PO-17",
	})
	if err != nil {
		t.Fatalf("ReceiveStock failed: %v", err)
	}
	if first.Quantity != 25 {
		t.Errorf("Expected entry quantity 25, got %d", first.Quantity)
	}

	second, err := e.inventory.ReceiveStock(e.ctx, core.ReceiveStockInput{
		ProductID: widgetID, WarehouseID: lagosID, Quantity: 5,
	})
	if err != nil {
		t.Fatalf("Second ReceiveStock failed: %v", err)
	}
	if second.ID != first.ID || second.Quantity != 30 {
		t.Errorf("Expected same entry at 30, got %+v", second)
	}

	logs := e.actions(t, core.ActionStockReceived)
	if len(logs) != 2 {
		t.Fatalf("Expected 2 receive audit entries, got %d", len(logs))
	}
	if logs[1].Details["note"] != "PO-17" || logs[1].UserEmail != "manager@example.com" {
		t.Errorf("Unexpected first receive audit entry: %+v", logs[1])
	}
	if logs[0].Details["new_total"] != float64(30) {
		t.Errorf("Expected new_total 30, got %v", logs[0].Details["new_total"])
	}

	_, err = e.inventory.ReceiveStock(e.ctx, core.ReceiveStockInput{ProductID: widgetID, WarehouseID: lagosID, Quantity: 0})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for zero quantity, got %v", err)
	}
}

func TestInventory_StockLevels(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 3)
	e.receive(t, widgetID, abujaID, 4)
	e.receive(t, gadgetID, abujaID, 1)

	all, err := e.inventory.GetStockLevels(e.ctx, core.StockFilter{})
	if err != nil {
		t.Fatalf("GetStockLevels failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 stock levels, got %d", len(all))
	}

	abuja, err := e.inventory.GetStockLevels(e.ctx, core.StockFilter{WarehouseID: abujaID})
	if err != nil {
		t.Fatalf("GetStockLevels failed: %v", err)
	}
	if len(abuja) != 2 || abuja[0].WarehouseName != "Abuja Hub" {
		t.Errorf("Expected 2 Abuja levels, got %+v", abuja)
	}

	widget, err := e.inventory.GetStockLevels(e.ctx, core.StockFilter{ProductID: widgetID, WarehouseID: lagosID})
	if err != nil {
		t.Fatalf("GetStockLevels failed: %v", err)
	}
	if len(widget) != 1 || widget[0].Quantity != 3 || widget[0].ProductSKU != "WID-001" {
		t.Errorf("Unexpected widget level: %+v", widget)
	}
}

func TestInventory_TxPrimitivesJoinCallerTransaction(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 10)

	err := pgx.BeginFunc(e.ctx, e.pool, func(tx pgx.Tx) error {
		if err := e.inventory.ReserveTx(e.ctx, tx, widgetID, lagosID, 4); err != nil {
			return err
		}
		if err := e.inventory.DepositTx(e.ctx, tx, widgetID, kanoID, 4); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil || err.Error() != "abort" {
		t.Fatalf("Expected the caller's abort error, got %v", err)
	}
	if got := e.quantity(t, widgetID, lagosID); got != 10 {
		t.Errorf("Expected rollback to keep Lagos at 10, got %d", got)
	}
	if n := e.count(t, "SELECT COUNT(*) FROM stock_entries WHERE warehouse_id = $1", kanoID); n != 0 {
		t.Errorf("Expected rollback to drop the Kano entry, got %d", n)
	}

	err = pgx.BeginFunc(e.ctx, e.pool, func(tx pgx.Tx) error {
		return e.inventory.ReserveTx(e.ctx, tx, widgetID, lagosID, 11)
	})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) || insufficient.Available != 10 {
		t.Errorf("Expected InsufficientStockError with available 10, got %v", err)
	}
}

func TestInventory_StockCannotGoNegative(t *testing.T) {
	e := newTestEnv(t)
	e.receive(t, widgetID, lagosID, 1)

	_, err := e.pool.Exec(context.Background(),
		"UPDATE stock_entries SET quantity = -1 WHERE product_id = $1 AND warehouse_id = $2", widgetID, lagosID)
	if err == nil {
		t.Error("Expected the quantity check constraint to reject a negative value")
	}
}

func TestUsers_CreateAndAuthenticate(t *testing.T) {
	e := newTestEnv(t)

	u, err := e.users.CreateUser(e.ctx, core.UserInput{
		Email: " Dispatch@Example.com ", Password: "correct-horse", FirstName: "Dee", Role: core.RoleDispatcher,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.Email != "dispatch@example.com" || u.Role != core.RoleDispatcher {
		t.Errorf("Unexpected user: %+v", u)
	}

	got, err := e.users.Authenticate(e.ctx, "DISPATCH@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("Expected user %d, got %d", u.ID, got.ID)
	}

	if _, err := e.users.Authenticate(e.ctx, "dispatch@example.com", "wrong-password"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := e.users.Authenticate(e.ctx, "nobody@example.com", "correct-horse"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	_, err = e.users.CreateUser(e.ctx, core.UserInput{Email: "dispatch@example.com", Password: "another-pass", Role: core.RoleCustomer})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for duplicate email, got %v", err)
	}
	_, err = e.users.CreateUser(e.ctx, core.UserInput{Email: "short@example.com", Password: "short", Role: core.RoleCustomer})
	if !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for short password, got %v", err)
	}
}

func TestNotifications_Lifecycle(t *testing.T) {
	e := newTestEnv(t)

	n, err := e.notes.Create(e.ctx, core.NotificationInput{
		RecipientID: customerID, Title: "Hello", Message: "Welcome aboard",
		Related: core.Ref(core.EntityWarehouse, lagosID),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if n.Status != core.NotificationPending || n.Channel != core.ChannelInApp || n.RecipientEmail != "customer@example.com" {
		t.Errorf("Unexpected notification: %+v", n)
	}

	ok, err := e.notes.MarkDelivered(e.ctx, n.ID, true)
	if err != nil || !ok {
		t.Fatalf("MarkDelivered = %v, %v; want true, nil", ok, err)
	}
	ok, err = e.notes.MarkDelivered(e.ctx, n.ID, false)
	if err != nil || ok {
		t.Errorf("Second MarkDelivered = %v, %v; want false, nil", ok, err)
	}

	unread, err := e.notes.ListForRecipient(e.ctx, customerID, true)
	if err != nil {
		t.Fatalf("ListForRecipient failed: %v", err)
	}
	if len(unread) != 1 || unread[0].Status != core.NotificationSent || unread[0].SentAt == nil {
		t.Errorf("Expected one sent unread notification, got %+v", unread)
	}

	_, err = e.notes.MarkRead(e.ctx, n.ID, otherCustomerID)
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError marking another user's notification, got %v", err)
	}
	read, err := e.notes.MarkRead(e.ctx, n.ID, customerID)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if read.Status != core.NotificationRead || read.ReadAt == nil {
		t.Errorf("Expected READ with read_at, got %+v", read)
	}

	unread, err = e.notes.ListForRecipient(e.ctx, customerID, true)
	if err != nil {
		t.Fatalf("ListForRecipient failed: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("Expected no unread notifications, got %d", len(unread))
	}

	if _, err := e.notes.Create(e.ctx, core.NotificationInput{RecipientID: 999, Title: "x"}); !errors.As(err, &nf) {
		t.Errorf("Expected NotFoundError for unknown recipient, got %v", err)
	}
}

func TestAudit_FiltersAndLabels(t *testing.T) {
	e := newTestEnv(t)
	ctx := core.WithClientIP(e.ctx, "203.0.113.9")

	e.audit.Record(ctx, intp(adminID), core.ActionUserLoggedIn, core.Ref(core.EntityUser, adminID), nil)
	e.audit.Record(ctx, intp(managerID), core.ActionStockReceived, core.Ref(core.EntityWarehouse, lagosID), map[string]any{"quantity": 3})

	byUser, err := e.audit.ListActions(e.ctx, core.ActionFilter{UserID: adminID})
	if err != nil {
		t.Fatalf("ListActions failed: %v", err)
	}
	if len(byUser) != 1 || byUser[0].RelatedLabel != "admin@example.com" || byUser[0].IPAddress != "203.0.113.9" {
		t.Errorf("Unexpected admin entries: %+v", byUser)
	}

	byObject, err := e.audit.ListActions(e.ctx, core.ActionFilter{Related: core.Ref(core.EntityWarehouse, lagosID)})
	if err != nil {
		t.Fatalf("ListActions failed: %v", err)
	}
	if len(byObject) != 1 || byObject[0].RelatedLabel != "Lagos Central" || byObject[0].ActionVerb != core.ActionStockReceived {
		t.Errorf("Unexpected warehouse entries: %+v", byObject)
	}
}
