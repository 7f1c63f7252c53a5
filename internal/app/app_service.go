package app

import (
	"context"
	"errors"

	"logistics-backend/internal/core"
)

type appService struct {
	users         core.UserService
	catalog       core.CatalogService
	inventory     core.InventoryService
	transfers     core.TransferService
	shipments     core.ShipmentService
	containers    core.ContainerService
	deliveries    core.DeliveryService
	audit         core.ActionLogger
	notifications core.NotificationService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	users core.UserService,
	catalog core.CatalogService,
	inventory core.InventoryService,
	transfers core.TransferService,
	shipments core.ShipmentService,
	containers core.ContainerService,
	deliveries core.DeliveryService,
	audit core.ActionLogger,
	notifications core.NotificationService,
) ApplicationService {
	return &appService{
		users:         users,
		catalog:       catalog,
		inventory:     inventory,
		transfers:     transfers,
		shipments:     shipments,
		containers:    containers,
		deliveries:    deliveries,
		audit:         audit,
		notifications: notifications,
	}
}

// AuthenticateUser verifies credentials and records the login.
func (s *appService) AuthenticateUser(ctx context.Context, email, password string) (*UserSession, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, &u.ID, core.ActionUserLoggedIn, core.Ref(core.EntityUser, u.ID), nil)
	return &UserSession{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

// GetUser returns user profile by ID.
func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{UserID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}, nil
}

// ── Catalog & stock ───────────────────────────────────────────────────────────

func (s *appService) ListWarehouses(ctx context.Context) (*WarehouseListResult, error) {
	warehouses, err := s.catalog.ListWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	return &WarehouseListResult{Warehouses: warehouses}, nil
}

func (s *appService) ListProducts(ctx context.Context, filter core.ProductFilter) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

// CreateProduct adds a product. Its stock starts at zero in every warehouse; goods
// arrive through ReceiveStock.
func (s *appService) CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (*core.Product, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	input := core.ProductInput{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		ContainerID: req.ContainerID,
		SupplierID:  req.SupplierID,
		CreatedBy:   actor.userID(),
	}
	if req.CostPrice != nil {
		input.CostPrice = *req.CostPrice
	}
	if req.SellingPrice != nil {
		input.SellingPrice = *req.SellingPrice
	}
	p, err := s.catalog.CreateProduct(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.userID(), core.ActionProductCreated, core.Ref(core.EntityProduct, p.ID), map[string]any{
		"sku": p.SKU, "name": p.Name,
	})
	return p, nil
}

func (s *appService) CreateWarehouse(ctx context.Context, actor Actor, req CreateWarehouseRequest) (*core.Warehouse, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	wh, err := s.catalog.CreateWarehouse(ctx, core.WarehouseInput{
		Name:            req.Name,
		LocationAddress: req.LocationAddress,
		ContactEmail:    req.ContactEmail,
		ContactPhone:    req.ContactPhone,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.userID(), core.ActionWarehouseCreated, core.Ref(core.EntityWarehouse, wh.ID), map[string]any{
		"name": wh.Name,
	})
	return wh, nil
}

func (s *appService) CreateSupplier(ctx context.Context, actor Actor, req CreateSupplierRequest) (*core.Supplier, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	sp, err := s.catalog.CreateSupplier(ctx, core.SupplierInput{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.userID(), core.ActionSupplierCreated, core.Ref(core.EntitySupplier, sp.ID), map[string]any{
		"name": sp.Name,
	})
	return sp, nil
}

func (s *appService) ListSuppliers(ctx context.Context, actor Actor) (*SupplierListResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	suppliers, err := s.catalog.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	return &SupplierListResult{Suppliers: suppliers}, nil
}

func (s *appService) GetStockLevels(ctx context.Context, filter core.StockFilter) (*StockResult, error) {
	levels, err := s.inventory.GetStockLevels(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) ReceiveStock(ctx context.Context, actor Actor, req ReceiveStockRequest) (*core.StockEntry, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	return s.inventory.ReceiveStock(ctx, core.ReceiveStockInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		UserID:      actor.userID(),
		Note:        req.Note,
	})
}

// ── Transfers ─────────────────────────────────────────────────────────────────

// TransferStock moves stock between warehouses and returns the new transfer record.
func (s *appService) TransferStock(ctx context.Context, actor Actor, req TransferRequest) (*TransferResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	rec, err := s.transfers.Transfer(ctx, core.TransferInput{
		ProductID:       req.ProductID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Quantity:        req.Quantity,
		UserID:          actor.userID(),
		Note:            req.Note,
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{Transfer: rec}, nil
}

func (s *appService) GetTransfer(ctx context.Context, actor Actor, id int) (*TransferResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	rec, err := s.transfers.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TransferResult{Transfer: rec}, nil
}

func (s *appService) ListTransfers(ctx context.Context, actor Actor, filter core.TransferFilter) (*TransferListResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	records, err := s.transfers.ListTransfers(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TransferListResult{Transfers: records}, nil
}

// ── Shipments ─────────────────────────────────────────────────────────────────

func (s *appService) CreateShipment(ctx context.Context, actor Actor, req CreateShipmentRequest) (*ShipmentResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	items := make([]core.ShipmentItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = core.ShipmentItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	sh, err := s.shipments.CreateShipment(ctx, core.CreateShipmentInput{
		CustomerID:             req.CustomerID,
		OriginWarehouseID:      req.OriginWarehouseID,
		DestinationAddress:     req.DestinationAddress,
		ContainerID:            req.ContainerID,
		EstimatedDepartureDate: req.EstimatedDepartureDate,
		EstimatedDeliveryDate:  req.EstimatedDeliveryDate,
		Notes:                  req.Notes,
		CustomerNotes:          req.CustomerNotes,
		Items:                  items,
		CreatedBy:              actor.userID(),
	})
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

// GetShipment hides shipments outside the actor's scope behind NotFound, so ids of
// other customers' shipments are not disclosed.
func (s *appService) GetShipment(ctx context.Context, actor Actor, id int) (*ShipmentResult, error) {
	sh, err := s.shipments.GetShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeShipment(actor, sh) {
		return nil, &core.NotFoundError{Entity: "shipment", ID: id}
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func (s *appService) ListShipments(ctx context.Context, actor Actor, filter core.ShipmentFilter) (*ShipmentListResult, error) {
	switch {
	case actor.Role.IsStaff():
	case actor.Role == core.RoleCustomer && actor.UserID > 0:
		filter.CustomerID = actor.UserID
	case actor.Role == core.RoleDispatcher && actor.UserID > 0:
		filter.DispatcherID = actor.UserID
	default:
		return &ShipmentListResult{}, nil
	}
	shipments, err := s.shipments.ListShipments(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ShipmentListResult{Shipments: shipments}, nil
}

func (s *appService) UpdateShipmentStatus(ctx context.Context, actor Actor, id int, status string) (*ShipmentResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	st, err := core.ParseShipmentStatus(status)
	if err != nil {
		return nil, err
	}
	sh, err := s.shipments.UpdateShipmentStatus(ctx, id, st, actor.userID())
	if err != nil {
		return nil, err
	}
	return &ShipmentResult{Shipment: sh}, nil
}

func canSeeShipment(actor Actor, sh *core.Shipment) bool {
	switch {
	case actor.Role.IsStaff():
		return true
	case actor.UserID <= 0:
		return false
	case actor.Role == core.RoleCustomer:
		return sh.CustomerID == actor.UserID
	case actor.Role == core.RoleDispatcher:
		return sh.DispatcherID != nil && *sh.DispatcherID == actor.UserID
	}
	return false
}

// ── Deliveries ────────────────────────────────────────────────────────────────

func (s *appService) CreateDeliveryTask(ctx context.Context, actor Actor, req CreateDeliveryTaskRequest) (*DeliveryTaskResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	task, err := s.deliveries.CreateTask(ctx, core.CreateDeliveryTaskInput{
		ShipmentID:              req.ShipmentID,
		DispatcherID:            req.DispatcherID,
		PickupAddressOverride:   req.PickupAddressOverride,
		DeliveryAddressOverride: req.DeliveryAddressOverride,
		ScheduledPickupAt:       req.ScheduledPickupAt,
		ScheduledDeliveryAt:     req.ScheduledDeliveryAt,
		InternalNotes:           req.InternalNotes,
		CreatedBy:               actor.userID(),
	})
	if err != nil {
		return nil, err
	}
	return &DeliveryTaskResult{Task: task}, nil
}

func (s *appService) AssignDeliveryDispatcher(ctx context.Context, actor Actor, id int, req AssignDispatcherRequest) (*DeliveryTaskResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	task, err := s.deliveries.AssignDispatcher(ctx, id, req.DispatcherID, actor.userID())
	if err != nil {
		return nil, err
	}
	return &DeliveryTaskResult{Task: task}, nil
}

// visibleTask loads a task the actor may see. Tasks of other dispatchers look missing.
func (s *appService) visibleTask(ctx context.Context, actor Actor, id int) (*core.DeliveryTask, error) {
	task, err := s.deliveries.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role.IsStaff() || (actor.Role == core.RoleDispatcher && task.AssignedTo(actor.UserID)) {
		return task, nil
	}
	return nil, &core.NotFoundError{Entity: "delivery task", ID: id}
}

func (s *appService) GetDeliveryTask(ctx context.Context, actor Actor, id int) (*DeliveryTaskResult, error) {
	task, err := s.visibleTask(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &DeliveryTaskResult{Task: task}, nil
}

func (s *appService) ListDeliveryTasks(ctx context.Context, actor Actor, filter core.DeliveryTaskFilter) (*DeliveryTaskListResult, error) {
	switch {
	case actor.Role.IsStaff():
	case actor.Role == core.RoleDispatcher && actor.UserID > 0:
		filter.DispatcherID = actor.UserID
	default:
		return &DeliveryTaskListResult{}, nil
	}
	tasks, err := s.deliveries.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DeliveryTaskListResult{Tasks: tasks}, nil
}

func (s *appService) ListMyDeliveryTasks(ctx context.Context, actor Actor) (*DeliveryTaskListResult, error) {
	if actor.Role != core.RoleDispatcher || actor.UserID <= 0 {
		return nil, ErrForbidden
	}
	tasks, err := s.deliveries.ListTasks(ctx, core.DeliveryTaskFilter{DispatcherID: actor.UserID, Active: true})
	if err != nil {
		return nil, err
	}
	return &DeliveryTaskListResult{Tasks: tasks}, nil
}

func (s *appService) MarkDeliveryPickedUp(ctx context.Context, actor Actor, id int) (*DeliveryTaskResult, error) {
	if _, err := s.visibleTask(ctx, actor, id); err != nil {
		return nil, err
	}
	task, err := s.deliveries.MarkPickedUp(ctx, id, actor.userID())
	if err != nil {
		return nil, err
	}
	return &DeliveryTaskResult{Task: task}, nil
}

func (s *appService) MarkDeliveryDelivered(ctx context.Context, actor Actor, id int, req MarkDeliveredRequest) (*DeliveryTaskResult, error) {
	if _, err := s.visibleTask(ctx, actor, id); err != nil {
		return nil, err
	}
	task, err := s.deliveries.MarkDelivered(ctx, id, core.DeliveryProof{
		RecipientName: req.RecipientName,
		SignatureData: req.SignatureData,
	}, actor.userID())
	if err != nil {
		return nil, err
	}
	return &DeliveryTaskResult{Task: task}, nil
}

func (s *appService) UpdateDeliveryStatus(ctx context.Context, actor Actor, id int, req DeliveryStatusRequest) (*DeliveryTaskResult, error) {
	st, err := core.ParseDeliveryStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleTask(ctx, actor, id); err != nil {
		return nil, err
	}
	task, err := s.deliveries.UpdateTaskStatus(ctx, id, st, req.DispatcherNotes, actor.userID())
	if err != nil {
		return nil, err
	}
	return &DeliveryTaskResult{Task: task}, nil
}

// ── Containers ────────────────────────────────────────────────────────────────

func (r ContainerFeesRequest) fees() core.ContainerFees {
	return core.ContainerFees{
		BankCharges:        r.BankCharges,
		DutyAndFees:        r.DutyAndFees,
		TransportationFees: r.TransportationFees,
		Discharge:          r.Discharge,
	}
}

func (s *appService) CreateContainer(ctx context.Context, actor Actor, req CreateContainerRequest) (*ContainerResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	var status core.ContainerStatus
	if req.Status != "" {
		var err error
		if status, err = core.ParseContainerStatus(req.Status); err != nil {
			return nil, err
		}
	}
	c, err := s.containers.CreateContainer(ctx, core.CreateContainerInput{
		Code:                       req.Code,
		Type:                       req.Type,
		Status:                     status,
		CurrentLocationDescription: req.CurrentLocationDescription,
		CurrentWarehouseID:         req.CurrentWarehouseID,
		AssignedCustomerID:         req.AssignedCustomerID,
		Fees:                       req.ContainerFeesRequest.fees(),
		CurrentGoodsDescription:    req.CurrentGoodsDescription,
		LastKnownOrigin:            req.LastKnownOrigin,
		CreatedBy:                  actor.userID(),
	})
	if err != nil {
		return nil, err
	}
	return &ContainerResult{Container: c}, nil
}

func (s *appService) GetContainer(ctx context.Context, actor Actor, id int) (*ContainerResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	c, err := s.containers.GetContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ContainerResult{Container: c}, nil
}

func (s *appService) ListContainers(ctx context.Context, actor Actor, filter core.ContainerFilter) (*ContainerListResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	containers, err := s.containers.ListContainers(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ContainerListResult{Containers: containers}, nil
}

func (s *appService) UpdateContainerStatus(ctx context.Context, actor Actor, id int, status string) (*ContainerResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	st, err := core.ParseContainerStatus(status)
	if err != nil {
		return nil, err
	}
	c, err := s.containers.UpdateContainerStatus(ctx, id, st, actor.userID())
	if err != nil {
		return nil, err
	}
	return &ContainerResult{Container: c}, nil
}

func (s *appService) UpdateContainerFees(ctx context.Context, actor Actor, id int, req ContainerFeesRequest) (*ContainerResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	c, err := s.containers.UpdateContainerFees(ctx, id, req.fees(), actor.userID())
	if err != nil {
		return nil, err
	}
	return &ContainerResult{Container: c}, nil
}

func (s *appService) TransferContainerWarehouse(ctx context.Context, actor Actor, id, warehouseID int) (*ContainerResult, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	c, err := s.containers.TransferContainerWarehouse(ctx, id, warehouseID, actor.userID())
	if err != nil {
		return nil, err
	}
	return &ContainerResult{Container: c}, nil
}

func (s *appService) AssignProductToContainer(ctx context.Context, actor Actor, containerID, productID int) (*core.Product, error) {
	if err := actor.requireStaff(); err != nil {
		return nil, err
	}
	return s.containers.AssignProduct(ctx, containerID, productID, actor.userID())
}

func (s *appService) DeleteContainer(ctx context.Context, actor Actor, id int) error {
	if err := actor.requireStaff(); err != nil {
		return err
	}
	return s.containers.DeleteContainer(ctx, id, actor.userID())
}

// ── Audit & notifications ─────────────────────────────────────────────────────

func (s *appService) ListActions(ctx context.Context, actor Actor, filter core.ActionFilter) (*ActionLogResult, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	actions, err := s.audit.ListActions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ActionLogResult{Actions: actions}, nil
}

func (s *appService) ListNotifications(ctx context.Context, actor Actor, unreadOnly bool) (*NotificationListResult, error) {
	if actor.UserID <= 0 {
		return nil, errors.New("notifications require a signed-in user")
	}
	list, err := s.notifications.ListForRecipient(ctx, actor.UserID, unreadOnly)
	if err != nil {
		return nil, err
	}
	return &NotificationListResult{Notifications: list}, nil
}

func (s *appService) MarkNotificationRead(ctx context.Context, actor Actor, id int64) (*core.Notification, error) {
	if actor.UserID <= 0 {
		return nil, errors.New("notifications require a signed-in user")
	}
	return s.notifications.MarkRead(ctx, id, actor.UserID)
}
