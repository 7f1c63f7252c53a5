package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"logistics-backend/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// The fakes embed the core interfaces so a call the test did not expect panics.

type fakeUsers struct {
	core.UserService
	user *core.User
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*core.User, error) {
	if f.user == nil || email != f.user.Email || password != "secret-pass" {
		return nil, core.ErrInvalidCredentials
	}
	return f.user, nil
}

type fakeTransfers struct {
	core.TransferService
	input   *core.TransferInput
	records []core.TransferRecord
}

func (f *fakeTransfers) Transfer(_ context.Context, in core.TransferInput) (*core.TransferRecord, error) {
	f.input = &in
	return &core.TransferRecord{ID: 7, ProductID: in.ProductID, Quantity: in.Quantity}, nil
}

func (f *fakeTransfers) ListTransfers(context.Context, core.TransferFilter) ([]core.TransferRecord, error) {
	return f.records, nil
}

type fakeShipments struct {
	core.ShipmentService
	byID    map[int]*core.Shipment
	filter  *core.ShipmentFilter
	created *core.CreateShipmentInput
	updated bool
}

func (f *fakeShipments) CreateShipment(_ context.Context, in core.CreateShipmentInput) (*core.Shipment, error) {
	f.created = &in
	return &core.Shipment{ID: 1, CustomerID: in.CustomerID}, nil
}

func (f *fakeShipments) GetShipment(_ context.Context, id int) (*core.Shipment, error) {
	sh, ok := f.byID[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "shipment", ID: id}
	}
	return sh, nil
}

func (f *fakeShipments) ListShipments(_ context.Context, filter core.ShipmentFilter) ([]core.Shipment, error) {
	f.filter = &filter
	var out []core.Shipment
	for _, sh := range f.byID {
		if filter.CustomerID > 0 && sh.CustomerID != filter.CustomerID {
			continue
		}
		if filter.DispatcherID > 0 && (sh.DispatcherID == nil || *sh.DispatcherID != filter.DispatcherID) {
			continue
		}
		out = append(out, *sh)
	}
	return out, nil
}

func (f *fakeShipments) UpdateShipmentStatus(_ context.Context, id int, status core.ShipmentStatus, _ *int) (*core.Shipment, error) {
	f.updated = true
	return &core.Shipment{ID: id, Status: status}, nil
}

type fakeContainers struct {
	core.ContainerService
	input *core.CreateContainerInput
}

func (f *fakeContainers) CreateContainer(_ context.Context, in core.CreateContainerInput) (*core.Container, error) {
	f.input = &in
	return &core.Container{ID: 3, Code: "#C-00003", Status: in.Status}, nil
}

type fakeCatalog struct {
	core.CatalogService
	product *core.ProductInput
}

func (f *fakeCatalog) CreateProduct(_ context.Context, in core.ProductInput) (*core.Product, error) {
	f.product = &in
	return &core.Product{ID: 11, SKU: in.SKU, Name: in.Name, CostPrice: in.CostPrice}, nil
}

func (f *fakeCatalog) CreateWarehouse(_ context.Context, in core.WarehouseInput) (*core.Warehouse, error) {
	return &core.Warehouse{ID: 4, Name: in.Name}, nil
}

func (f *fakeCatalog) CreateSupplier(_ context.Context, in core.SupplierInput) (*core.Supplier, error) {
	return &core.Supplier{ID: 6, Name: in.Name}, nil
}

func (f *fakeCatalog) ListSuppliers(context.Context) ([]core.Supplier, error) {
	return []core.Supplier{{ID: 6, Name: "Acme"}}, nil
}

type fakeDeliveries struct {
	core.DeliveryService
	byID    map[int]*core.DeliveryTask
	filter  *core.DeliveryTaskFilter
	created *core.CreateDeliveryTaskInput
	calls   []string
}

func (f *fakeDeliveries) GetTask(_ context.Context, id int) (*core.DeliveryTask, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "delivery task", ID: id}
	}
	return t, nil
}

func (f *fakeDeliveries) CreateTask(_ context.Context, in core.CreateDeliveryTaskInput) (*core.DeliveryTask, error) {
	f.created = &in
	return &core.DeliveryTask{ID: 8, ShipmentID: in.ShipmentID}, nil
}

func (f *fakeDeliveries) ListTasks(_ context.Context, filter core.DeliveryTaskFilter) ([]core.DeliveryTask, error) {
	f.filter = &filter
	return nil, nil
}

func (f *fakeDeliveries) AssignDispatcher(_ context.Context, id, dispatcherID int, _ *int) (*core.DeliveryTask, error) {
	f.calls = append(f.calls, "assign")
	return &core.DeliveryTask{ID: id, DispatcherID: &dispatcherID}, nil
}

func (f *fakeDeliveries) MarkPickedUp(_ context.Context, id int, _ *int) (*core.DeliveryTask, error) {
	f.calls = append(f.calls, "picked-up")
	return &core.DeliveryTask{ID: id, Status: core.DeliveryPickedUp}, nil
}

func (f *fakeDeliveries) MarkDelivered(_ context.Context, id int, _ core.DeliveryProof, _ *int) (*core.DeliveryTask, error) {
	f.calls = append(f.calls, "delivered")
	return &core.DeliveryTask{ID: id, Status: core.DeliveryDelivered}, nil
}

func (f *fakeDeliveries) UpdateTaskStatus(_ context.Context, id int, status core.DeliveryStatus, _ string, _ *int) (*core.DeliveryTask, error) {
	f.calls = append(f.calls, "status")
	return &core.DeliveryTask{ID: id, Status: status}, nil
}

type fakeAudit struct {
	core.ActionLogger
	verbs []string
}

func (f *fakeAudit) Record(_ context.Context, _ *int, verb string, _ *core.RelatedObject, _ map[string]any) {
	f.verbs = append(f.verbs, verb)
}

func (f *fakeAudit) ListActions(context.Context, core.ActionFilter) ([]core.ActionLog, error) {
	return nil, nil
}

type fakeNotifications struct {
	core.NotificationService
	recipient int
}

func (f *fakeNotifications) ListForRecipient(_ context.Context, recipientID int, _ bool) ([]core.Notification, error) {
	f.recipient = recipientID
	return []core.Notification{{ID: 1, RecipientID: recipientID}}, nil
}

type fixture struct {
	svc        ApplicationService
	users      *fakeUsers
	transfers  *fakeTransfers
	shipments  *fakeShipments
	containers *fakeContainers
	catalog    *fakeCatalog
	deliveries *fakeDeliveries
	audit      *fakeAudit
	notes      *fakeNotifications
}

func newFixture() *fixture {
	f := &fixture{
		users:      &fakeUsers{user: &core.User{ID: 2, Email: "manager@example.com", Role: core.RoleWarehouseManager}},
		transfers:  &fakeTransfers{},
		shipments:  &fakeShipments{byID: map[int]*core.Shipment{}},
		containers: &fakeContainers{},
		catalog:    &fakeCatalog{},
		deliveries: &fakeDeliveries{byID: map[int]*core.DeliveryTask{}},
		audit:      &fakeAudit{},
		notes:      &fakeNotifications{},
	}
	f.svc = NewAppService(f.users, f.catalog, nil, f.transfers, f.shipments, f.containers, f.deliveries, f.audit, f.notes)
	return f
}

var (
	manager    = Actor{UserID: 2, Role: core.RoleWarehouseManager}
	customer   = Actor{UserID: 3, Role: core.RoleCustomer}
	dispatcher = Actor{UserID: 5, Role: core.RoleDispatcher}
)

func TestAuthenticateUser_RecordsLogin(t *testing.T) {
	f := newFixture()

	session, err := f.svc.AuthenticateUser(context.Background(), "manager@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, 2, session.UserID)
	assert.Equal(t, core.RoleWarehouseManager, session.Role)
	assert.Equal(t, []string{core.ActionUserLoggedIn}, f.audit.verbs)

	_, err = f.svc.AuthenticateUser(context.Background(), "manager@example.com", "wrong")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	assert.Len(t, f.audit.verbs, 1)
}

func TestStaffOnlyOperations_RejectNonStaff(t *testing.T) {
	ctx := context.Background()

	for _, actor := range []Actor{customer, dispatcher} {
		f := newFixture()

		_, err := f.svc.TransferStock(ctx, actor, TransferRequest{ProductID: 1, FromWarehouseID: 1, ToWarehouseID: 2, Quantity: 1})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.CreateShipment(ctx, actor, CreateShipmentRequest{CustomerID: 3})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.UpdateShipmentStatus(ctx, actor, 1, "SHIPPED")
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.CreateContainer(ctx, actor, CreateContainerRequest{})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.ErrorIs(t, f.svc.DeleteContainer(ctx, actor, 1), ErrForbidden)
		_, err = f.svc.ListActions(ctx, actor, core.ActionFilter{})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.ListTransfers(ctx, actor, core.TransferFilter{})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.GetTransfer(ctx, actor, 1)
		assert.ErrorIs(t, err, ErrForbidden)
		var buf bytes.Buffer
		assert.ErrorIs(t, f.svc.ExportTransfers(ctx, actor, core.TransferFilter{}, &buf), ErrForbidden)
		assert.Zero(t, buf.Len(), "no workbook for non-staff")
		_, err = f.svc.CreateProduct(ctx, actor, CreateProductRequest{SKU: "X-1", Name: "X"})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.CreateWarehouse(ctx, actor, CreateWarehouseRequest{Name: "X"})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.CreateSupplier(ctx, actor, CreateSupplierRequest{Name: "X"})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.ListSuppliers(ctx, actor)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.CreateDeliveryTask(ctx, actor, CreateDeliveryTaskRequest{ShipmentID: 1})
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = f.svc.AssignDeliveryDispatcher(ctx, actor, 1, AssignDispatcherRequest{DispatcherID: 5})
		assert.ErrorIs(t, err, ErrForbidden)

		assert.Nil(t, f.transfers.input, "transfer must not reach the service")
		assert.Nil(t, f.shipments.created, "shipment must not reach the service")
		assert.False(t, f.shipments.updated)
		assert.Nil(t, f.containers.input)
		assert.Nil(t, f.catalog.product)
		assert.Nil(t, f.deliveries.created)
		assert.Empty(t, f.deliveries.calls)
	}
}

func TestListActions_AdminOnly(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ListActions(context.Background(), manager, core.ActionFilter{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ListActions(context.Background(), SystemActor, core.ActionFilter{})
	assert.NoError(t, err)
}

func TestTransferStock_AttributesActor(t *testing.T) {
	f := newFixture()

	res, err := f.svc.TransferStock(context.Background(), manager, TransferRequest{
		ProductID: 1, FromWarehouseID: 1, ToWarehouseID: 2, Quantity: 4, Note: "rebalance",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Transfer.ID)
	require.NotNil(t, f.transfers.input.UserID)
	assert.Equal(t, 2, *f.transfers.input.UserID)
	assert.Equal(t, "rebalance", f.transfers.input.Note)

	_, err = f.svc.TransferStock(context.Background(), SystemActor, TransferRequest{
		ProductID: 1, FromWarehouseID: 1, ToWarehouseID: 2, Quantity: 4,
	})
	require.NoError(t, err)
	assert.Nil(t, f.transfers.input.UserID, "system actions carry no user")
}

func TestCreateShipment_MapsItems(t *testing.T) {
	f := newFixture()
	departure := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.CreateShipment(context.Background(), manager, CreateShipmentRequest{
		CustomerID: 3, OriginWarehouseID: 1, DestinationAddress: "12 Marina Rd",
		EstimatedDepartureDate: &departure,
		Items:                  []ShipmentItemRequest{{ProductID: 1, Quantity: 5}, {ProductID: 2, Quantity: 1}},
	})
	require.NoError(t, err)
	in := f.shipments.created
	require.NotNil(t, in)
	assert.Equal(t, []core.ShipmentItemInput{{ProductID: 1, Quantity: 5}, {ProductID: 2, Quantity: 1}}, in.Items)
	assert.Equal(t, &departure, in.EstimatedDepartureDate)
	require.NotNil(t, in.CreatedBy)
	assert.Equal(t, 2, *in.CreatedBy)
}

func TestGetShipment_CustomerScope(t *testing.T) {
	f := newFixture()
	f.shipments.byID[10] = &core.Shipment{ID: 10, CustomerID: 3}
	f.shipments.byID[11] = &core.Shipment{ID: 11, CustomerID: 4}
	ctx := context.Background()

	own, err := f.svc.GetShipment(ctx, customer, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, own.Shipment.ID)

	_, err = f.svc.GetShipment(ctx, customer, 11)
	var nf *core.NotFoundError
	assert.True(t, errors.As(err, &nf), "another customer's shipment must look missing, got %v", err)

	_, err = f.svc.GetShipment(ctx, dispatcher, 10)
	assert.True(t, errors.As(err, &nf), "dispatchers only see shipments they deliver")

	rider := dispatcher.UserID
	f.shipments.byID[12] = &core.Shipment{ID: 12, CustomerID: 4, DispatcherID: &rider}
	assigned, err := f.svc.GetShipment(ctx, dispatcher, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, assigned.Shipment.ID)

	staff, err := f.svc.GetShipment(ctx, manager, 11)
	require.NoError(t, err)
	assert.Equal(t, 4, staff.Shipment.CustomerID)
}

func TestListShipments_Scoping(t *testing.T) {
	f := newFixture()
	f.shipments.byID[10] = &core.Shipment{ID: 10, CustomerID: 3}
	f.shipments.byID[11] = &core.Shipment{ID: 11, CustomerID: 4}
	ctx := context.Background()

	res, err := f.svc.ListShipments(ctx, customer, core.ShipmentFilter{CustomerID: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, f.shipments.filter.CustomerID, "customer filter is forced to the caller")
	require.Len(t, res.Shipments, 1)
	assert.Equal(t, 10, res.Shipments[0].ID)

	res, err = f.svc.ListShipments(ctx, dispatcher, core.ShipmentFilter{DispatcherID: 99})
	require.NoError(t, err)
	assert.Equal(t, 5, f.shipments.filter.DispatcherID, "dispatcher filter is forced to the caller")
	assert.Empty(t, res.Shipments)

	rider := dispatcher.UserID
	f.shipments.byID[12] = &core.Shipment{ID: 12, CustomerID: 4, DispatcherID: &rider}
	res, err = f.svc.ListShipments(ctx, dispatcher, core.ShipmentFilter{})
	require.NoError(t, err)
	require.Len(t, res.Shipments, 1)
	assert.Equal(t, 12, res.Shipments[0].ID)

	f.shipments.filter = nil
	res, err = f.svc.ListShipments(ctx, Actor{Role: core.RoleCustomer}, core.ShipmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, res.Shipments)
	assert.Nil(t, f.shipments.filter, "an anonymous customer must not query shipments")

	res, err = f.svc.ListShipments(ctx, manager, core.ShipmentFilter{})
	require.NoError(t, err)
	assert.Len(t, res.Shipments, 3)
}

func TestUpdateShipmentStatus_ParsesStatus(t *testing.T) {
	f := newFixture()

	_, err := f.svc.UpdateShipmentStatus(context.Background(), manager, 1, "TELEPORTED")
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	assert.False(t, f.shipments.updated)

	res, err := f.svc.UpdateShipmentStatus(context.Background(), manager, 1, "SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, core.ShipmentShipped, res.Shipment.Status)
}

func TestCreateContainer_MapsFeesAndStatus(t *testing.T) {
	f := newFixture()
	duty := decimal.RequireFromString("12.50")

	res, err := f.svc.CreateContainer(context.Background(), manager, CreateContainerRequest{
		Type: "40ft", Status: "LOADING",
		ContainerFeesRequest: ContainerFeesRequest{DutyAndFees: &duty},
	})
	require.NoError(t, err)
	assert.Equal(t, "#C-00003", res.Container.Code)
	assert.Equal(t, core.ContainerLoading, f.containers.input.Status)
	require.NotNil(t, f.containers.input.Fees.DutyAndFees)
	assert.True(t, duty.Equal(*f.containers.input.Fees.DutyAndFees))
	assert.Nil(t, f.containers.input.Fees.BankCharges)

	f.containers.input = nil
	_, err = f.svc.CreateContainer(context.Background(), manager, CreateContainerRequest{Status: "FLOATING"})
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Nil(t, f.containers.input)
}

func TestListNotifications_UsesActor(t *testing.T) {
	f := newFixture()

	res, err := f.svc.ListNotifications(context.Background(), customer, true)
	require.NoError(t, err)
	assert.Equal(t, 3, f.notes.recipient)
	assert.Len(t, res.Notifications, 1)

	_, err = f.svc.ListNotifications(context.Background(), SystemActor, false)
	assert.Error(t, err)
}

func TestExportTransfers_Workbook(t *testing.T) {
	f := newFixture()
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	f.transfers.records = []core.TransferRecord{
		{ID: 2, ProductSKU: "WID-001", ProductName: "Widget", FromWarehouse: "Abuja Hub", ToWarehouse: "Lagos Central", Quantity: 3, TransferredByEmail: "admin@example.com", Note: "return", CreatedAt: at},
		{ID: 1, ProductSKU: "WID-001", ProductName: "Widget", FromWarehouse: "Lagos Central", ToWarehouse: "Abuja Hub", Quantity: 5, TransferredByEmail: "manager@example.com", Note: "initial", CreatedAt: at},
	}

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportTransfers(context.Background(), manager, core.TransferFilter{}, &buf))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(transferSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, transferExportHeaders, rows[0])
	assert.Equal(t, []string{"2", "2026-05-04 09:30:00", "WID-001", "Widget", "Abuja Hub", "Lagos Central", "3", "admin@example.com", "return"}, rows[1])
	assert.Equal(t, "manager@example.com", rows[2][7])
	assert.Equal(t, "initial", rows[2][8])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "8", rows[3][6])
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExportTransfers_WriteFailureIsReturned(t *testing.T) {
	f := newFixture()
	f.transfers.records = []core.TransferRecord{{ID: 1, ProductSKU: "WID-001", Quantity: 5, CreatedAt: time.Now()}}

	err := f.svc.ExportTransfers(context.Background(), manager, core.TransferFilter{}, brokenWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write workbook")
	assert.Contains(t, err.Error(), "disk full")
}

func TestCreateProduct_MapsPricesAndAudits(t *testing.T) {
	f := newFixture()
	cost := decimal.RequireFromString("4.25")

	p, err := f.svc.CreateProduct(context.Background(), manager, CreateProductRequest{
		SKU: "BOX-001", Name: "Box", CostPrice: &cost,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, p.ID)
	require.NotNil(t, f.catalog.product)
	assert.True(t, f.catalog.product.CostPrice.Equal(cost))
	assert.True(t, f.catalog.product.SellingPrice.IsZero())
	require.NotNil(t, f.catalog.product.CreatedBy)
	assert.Equal(t, 2, *f.catalog.product.CreatedBy)

	_, err = f.svc.CreateWarehouse(context.Background(), manager, CreateWarehouseRequest{Name: "Port Harcourt"})
	require.NoError(t, err)
	_, err = f.svc.CreateSupplier(context.Background(), manager, CreateSupplierRequest{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, []string{core.ActionProductCreated, core.ActionWarehouseCreated, core.ActionSupplierCreated}, f.audit.verbs)

	suppliers, err := f.svc.ListSuppliers(context.Background(), manager)
	require.NoError(t, err)
	assert.Len(t, suppliers.Suppliers, 1)
}

func TestDeliveryTasks_DispatcherScope(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	rider := dispatcher.UserID
	other := 6
	f.deliveries.byID[1] = &core.DeliveryTask{ID: 1, DispatcherID: &rider}
	f.deliveries.byID[2] = &core.DeliveryTask{ID: 2, DispatcherID: &other}
	f.deliveries.byID[3] = &core.DeliveryTask{ID: 3}

	own, err := f.svc.GetDeliveryTask(ctx, dispatcher, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, own.Task.ID)

	var nf *core.NotFoundError
	for _, id := range []int{2, 3} {
		_, err = f.svc.GetDeliveryTask(ctx, dispatcher, id)
		assert.True(t, errors.As(err, &nf), "task %d must look missing, got %v", id, err)
		_, err = f.svc.MarkDeliveryPickedUp(ctx, dispatcher, id)
		assert.True(t, errors.As(err, &nf))
		_, err = f.svc.MarkDeliveryDelivered(ctx, dispatcher, id, MarkDeliveredRequest{})
		assert.True(t, errors.As(err, &nf))
		_, err = f.svc.UpdateDeliveryStatus(ctx, dispatcher, id, DeliveryStatusRequest{Status: "IN_TRANSIT_LOCAL"})
		assert.True(t, errors.As(err, &nf))
	}
	assert.Empty(t, f.deliveries.calls, "nothing reaches the service for foreign tasks")

	_, err = f.svc.GetDeliveryTask(ctx, customer, 1)
	assert.True(t, errors.As(err, &nf))

	_, err = f.svc.MarkDeliveryPickedUp(ctx, dispatcher, 1)
	require.NoError(t, err)
	_, err = f.svc.UpdateDeliveryStatus(ctx, dispatcher, 1, DeliveryStatusRequest{Status: "in_transit_local"})
	require.NoError(t, err)
	_, err = f.svc.MarkDeliveryDelivered(ctx, dispatcher, 1, MarkDeliveredRequest{RecipientName: "Ngozi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"picked-up", "status", "delivered"}, f.deliveries.calls)

	_, err = f.svc.MarkDeliveryPickedUp(ctx, manager, 2)
	assert.NoError(t, err, "staff may act on any task")
}

func TestDeliveryTasks_Listing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.ListDeliveryTasks(ctx, dispatcher, core.DeliveryTaskFilter{DispatcherID: 9, Status: core.DeliveryAssigned})
	require.NoError(t, err)
	assert.Equal(t, core.DeliveryTaskFilter{DispatcherID: 5, Status: core.DeliveryAssigned}, *f.deliveries.filter)

	_, err = f.svc.ListDeliveryTasks(ctx, manager, core.DeliveryTaskFilter{DispatcherID: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, f.deliveries.filter.DispatcherID, "staff filter freely")

	f.deliveries.filter = nil
	res, err := f.svc.ListDeliveryTasks(ctx, customer, core.DeliveryTaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, res.Tasks)
	assert.Nil(t, f.deliveries.filter)

	_, err = f.svc.ListMyDeliveryTasks(ctx, dispatcher)
	require.NoError(t, err)
	assert.Equal(t, core.DeliveryTaskFilter{DispatcherID: 5, Active: true}, *f.deliveries.filter)

	_, err = f.svc.ListMyDeliveryTasks(ctx, manager)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateDeliveryTask_AttributesActor(t *testing.T) {
	f := newFixture()
	rider := 5

	res, err := f.svc.CreateDeliveryTask(context.Background(), manager, CreateDeliveryTaskRequest{ShipmentID: 14, DispatcherID: &rider})
	require.NoError(t, err)
	assert.Equal(t, 14, res.Task.ShipmentID)
	require.NotNil(t, f.deliveries.created.CreatedBy)
	assert.Equal(t, 2, *f.deliveries.created.CreatedBy)
	assert.Equal(t, &rider, f.deliveries.created.DispatcherID)

	_, err = f.svc.UpdateDeliveryStatus(context.Background(), manager, 8, DeliveryStatusRequest{Status: "LOST"})
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
}
