package app

import (
	"context"
	"errors"
	"io"

	"logistics-backend/internal/core"
)

// ErrForbidden is returned when the acting user's role does not allow the operation.
var ErrForbidden = errors.New("you do not have permission to perform this action")

// Actor identifies who is calling the application service.
// A zero UserID (CLI, maintenance jobs) is recorded as a system action.
type Actor struct {
	UserID int
	Role   core.Role
}

// SystemActor runs with admin rights and no user attribution.
var SystemActor = Actor{Role: core.RoleAdmin}

func (a Actor) userID() *int {
	if a.UserID <= 0 {
		return nil
	}
	id := a.UserID
	return &id
}

func (a Actor) requireStaff() error {
	if !a.Role.IsStaff() {
		return ErrForbidden
	}
	return nil
}

func (a Actor) requireAdmin() error {
	if a.Role != core.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, email, password string) (*UserSession, error)

	// GetUser returns user profile by ID.
	GetUser(ctx context.Context, userID int) (*UserResult, error)

	// ListWarehouses returns all warehouses.
	ListWarehouses(ctx context.Context) (*WarehouseListResult, error)

	// ListProducts returns catalog products, optionally narrowed by container, supplier or search text.
	ListProducts(ctx context.Context, filter core.ProductFilter) (*ProductListResult, error)

	// CreateProduct, CreateWarehouse and CreateSupplier add master data. Staff only.
	CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (*core.Product, error)
	CreateWarehouse(ctx context.Context, actor Actor, req CreateWarehouseRequest) (*core.Warehouse, error)
	CreateSupplier(ctx context.Context, actor Actor, req CreateSupplierRequest) (*core.Supplier, error)

	// ListSuppliers returns all suppliers. Staff only.
	ListSuppliers(ctx context.Context, actor Actor) (*SupplierListResult, error)

	// GetStockLevels returns quantities on hand per (product, warehouse).
	GetStockLevels(ctx context.Context, filter core.StockFilter) (*StockResult, error)

	// ReceiveStock adds incoming goods to a warehouse. Staff only.
	ReceiveStock(ctx context.Context, actor Actor, req ReceiveStockRequest) (*core.StockEntry, error)

	// TransferStock moves stock of one product between two warehouses. Staff only.
	TransferStock(ctx context.Context, actor Actor, req TransferRequest) (*TransferResult, error)

	// GetTransfer returns one transfer record. Staff only.
	GetTransfer(ctx context.Context, actor Actor, id int) (*TransferResult, error)

	// ListTransfers returns transfer records, newest first. Staff only.
	ListTransfers(ctx context.Context, actor Actor, filter core.TransferFilter) (*TransferListResult, error)

	// ExportTransfers writes the filtered transfer history as an XLSX workbook. Staff only.
	ExportTransfers(ctx context.Context, actor Actor, filter core.TransferFilter, w io.Writer) error

	// CreateShipment creates a shipment and reserves its stock atomically. Staff only.
	CreateShipment(ctx context.Context, actor Actor, req CreateShipmentRequest) (*ShipmentResult, error)

	// GetShipment returns a shipment the actor may see. Customers only see their own.
	GetShipment(ctx context.Context, actor Actor, id int) (*ShipmentResult, error)

	// ListShipments returns the shipments the actor may see.
	ListShipments(ctx context.Context, actor Actor, filter core.ShipmentFilter) (*ShipmentListResult, error)

	// UpdateShipmentStatus moves a shipment to a new status. Staff only.
	UpdateShipmentStatus(ctx context.Context, actor Actor, id int, status string) (*ShipmentResult, error)

	// Container lifecycle. Staff only.
	CreateContainer(ctx context.Context, actor Actor, req CreateContainerRequest) (*ContainerResult, error)
	GetContainer(ctx context.Context, actor Actor, id int) (*ContainerResult, error)
	ListContainers(ctx context.Context, actor Actor, filter core.ContainerFilter) (*ContainerListResult, error)
	UpdateContainerStatus(ctx context.Context, actor Actor, id int, status string) (*ContainerResult, error)
	UpdateContainerFees(ctx context.Context, actor Actor, id int, req ContainerFeesRequest) (*ContainerResult, error)
	TransferContainerWarehouse(ctx context.Context, actor Actor, id, warehouseID int) (*ContainerResult, error)
	AssignProductToContainer(ctx context.Context, actor Actor, containerID, productID int) (*core.Product, error)
	DeleteContainer(ctx context.Context, actor Actor, id int) error

	// CreateDeliveryTask and AssignDeliveryDispatcher are staff only.
	CreateDeliveryTask(ctx context.Context, actor Actor, req CreateDeliveryTaskRequest) (*DeliveryTaskResult, error)
	AssignDeliveryDispatcher(ctx context.Context, actor Actor, id int, req AssignDispatcherRequest) (*DeliveryTaskResult, error)

	// GetDeliveryTask returns a task to staff or to its own dispatcher; anyone else gets NotFound.
	GetDeliveryTask(ctx context.Context, actor Actor, id int) (*DeliveryTaskResult, error)

	// ListDeliveryTasks filters freely for staff and is forced to the caller's own tasks
	// for dispatchers. Customers get an empty list.
	ListDeliveryTasks(ctx context.Context, actor Actor, filter core.DeliveryTaskFilter) (*DeliveryTaskListResult, error)

	// ListMyDeliveryTasks returns the calling dispatcher's open tasks in schedule order. Dispatchers only.
	ListMyDeliveryTasks(ctx context.Context, actor Actor) (*DeliveryTaskListResult, error)

	// The status operations are open to staff and to the task's own dispatcher.
	MarkDeliveryPickedUp(ctx context.Context, actor Actor, id int) (*DeliveryTaskResult, error)
	MarkDeliveryDelivered(ctx context.Context, actor Actor, id int, req MarkDeliveredRequest) (*DeliveryTaskResult, error)
	UpdateDeliveryStatus(ctx context.Context, actor Actor, id int, req DeliveryStatusRequest) (*DeliveryTaskResult, error)

	// ListActions returns audit entries. Admin only.
	ListActions(ctx context.Context, actor Actor, filter core.ActionFilter) (*ActionLogResult, error)

	// ListNotifications returns the actor's own notifications.
	ListNotifications(ctx context.Context, actor Actor, unreadOnly bool) (*NotificationListResult, error)

	// MarkNotificationRead marks one of the actor's notifications read.
	MarkNotificationRead(ctx context.Context, actor Actor, id int64) (*core.Notification, error)
}
