package core_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"logistics-backend/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Fixture ids. The seed restarts every identity, so rows get these ids in insertion order.
const (
	adminID         = 1
	managerID       = 2
	customerID      = 3
	otherCustomerID = 4
	dispatcherID    = 5
	riderID         = 6

	lagosID = 1
	abujaID = 2
	kanoID  = 3

	widgetID = 1 // WID-001: cost 5.00, price 8.00
	gadgetID = 2 // GAD-001: cost 20.00, price 35.00
)

// testEnv bundles the services under test around one pool.
type testEnv struct {
	ctx        context.Context
	pool       *pgxpool.Pool
	audit      core.ActionLogger
	catalog    core.CatalogService
	users      core.UserService
	inventory  core.InventoryService
	transfers  core.TransferService
	shipments  core.ShipmentService
	containers core.ContainerService
	deliveries core.DeliveryService
	notes      core.NotificationService
	hooks      *recordingHooks
	assigned   *recordingDeliveryHooks
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database; the seed below wipes every table.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE notifications, action_logs, delivery_tasks, shipment_items, shipments, transfer_records,
		               stock_entries, products, containers, container_code_counter, suppliers,
		               warehouses, users
		RESTART IDENTITY CASCADE;

		INSERT INTO users (email, password_hash, first_name, last_name, role) VALUES
		('admin@example.com',    'x', 'Ada',   'Admin',    'ADMIN'),
		('manager@example.com',  'x', 'Mo',    'Manager',  'WAREHOUSE_MANAGER'),
		('customer@example.com', 'x', 'Chidi', 'Customer', 'CUSTOMER'),
		('other@example.com',    'x', 'Olu',   'Other',    'CUSTOMER'),
		('dispatcher@test.com',  'x', 'Dayo',  'Dispatch', 'DISPATCHER'),
		('rider@test.com',       'x', 'Remi',  'Rider',    'DISPATCHER');

		INSERT INTO warehouses (name, location_address) VALUES
		('Lagos Central', 'Apapa, Lagos'),
		('Abuja Hub',     'Idu, Abuja'),
		('Kano North',    'Sharada, Kano');

		INSERT INTO products (sku, name, quantity, cost_price, selling_price) VALUES
		('WID-001', 'Widget', 10, 5.00, 8.00),
		('GAD-001', 'Gadget',  2, 20.00, 35.00);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return pool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := setupTestDB(t)
	audit := core.NewActionLogger(pool, nil)
	hooks := &recordingHooks{}
	assigned := &recordingDeliveryHooks{}
	shipments := core.NewShipmentService(pool, audit, hooks, nil, 0)
	return &testEnv{
		ctx:        context.Background(),
		pool:       pool,
		audit:      audit,
		catalog:    core.NewCatalogService(pool),
		users:      core.NewUserService(pool),
		inventory:  core.NewInventoryService(pool, audit, nil, 0),
		transfers:  core.NewTransferService(pool, audit, nil, 0),
		shipments:  shipments,
		containers: core.NewContainerService(pool, audit, nil, 0),
		deliveries: core.NewDeliveryService(pool, audit, shipments, assigned, nil, 0),
		notes:      core.NewNotificationService(pool),
		hooks:      hooks,
		assigned:   assigned,
	}
}

// receive puts qty units of a product into a warehouse or fails the test.
func (e *testEnv) receive(t *testing.T, productID, warehouseID, qty int) {
	t.Helper()
	if _, err := e.inventory.ReceiveStock(e.ctx, core.ReceiveStockInput{
		ProductID: productID, WarehouseID: warehouseID, Quantity: qty,
	}); err != nil {
		t.Fatalf("ReceiveStock(%d, %d, %d) failed: %v", productID, warehouseID, qty, err)
	}
}

func (e *testEnv) quantity(t *testing.T, productID, warehouseID int) int {
	t.Helper()
	q, err := e.inventory.GetQuantity(e.ctx, productID, warehouseID)
	if err != nil {
		t.Fatalf("GetQuantity(%d, %d) failed: %v", productID, warehouseID, err)
	}
	return q
}

func (e *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := e.pool.QueryRow(e.ctx, query, args...).Scan(&n); err != nil {
		t.Fatalf("count query %q failed: %v", query, err)
	}
	return n
}

// actions returns the audit entries with the given verb, newest first.
func (e *testEnv) actions(t *testing.T, verb string) []core.ActionLog {
	t.Helper()
	logs, err := e.audit.ListActions(e.ctx, core.ActionFilter{ActionVerb: verb})
	if err != nil {
		t.Fatalf("ListActions(%s) failed: %v", verb, err)
	}
	return logs
}

func intp(v int) *int { return &v }

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type recordingHooks struct {
	mu      sync.Mutex
	created []string
	changed []string
}

func (h *recordingHooks) ShipmentCreated(_ context.Context, s *core.Shipment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, s.TrackingCode)
}

func (h *recordingHooks) ShipmentStatusChanged(_ context.Context, s *core.Shipment, previous core.ShipmentStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changed = append(h.changed, string(previous)+"->"+string(s.Status))
}

type recordingDeliveryHooks struct {
	mu       sync.Mutex
	assigned []int
}

func (h *recordingDeliveryHooks) DeliveryAssigned(_ context.Context, t *core.DeliveryTask) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assigned = append(h.assigned, *t.DispatcherID)
}
