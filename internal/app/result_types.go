package app

import "logistics-backend/internal/core"

// UserSession is returned by AuthenticateUser on success.
type UserSession struct {
	UserID int       `json:"user_id"`
	Email  string    `json:"email"`
	Role   core.Role `json:"role"`
}

// UserResult is returned by GetUser.
type UserResult struct {
	UserID    int       `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      core.Role `json:"role"`
}

// WarehouseListResult is returned by ListWarehouses.
type WarehouseListResult struct {
	Warehouses []core.Warehouse
}

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []core.Product
}

// SupplierListResult is returned by ListSuppliers.
type SupplierListResult struct {
	Suppliers []core.Supplier
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Levels []core.StockLevel
}

// TransferResult is returned by transfer operations.
type TransferResult struct {
	Transfer *core.TransferRecord
}

// TransferListResult is returned by ListTransfers.
type TransferListResult struct {
	Transfers []core.TransferRecord
}

// ShipmentResult is returned by shipment operations.
type ShipmentResult struct {
	Shipment *core.Shipment
}

// ShipmentListResult is returned by ListShipments.
type ShipmentListResult struct {
	Shipments []core.Shipment
}

// ContainerResult is returned by container operations.
type ContainerResult struct {
	Container *core.Container
}

// ContainerListResult is returned by ListContainers.
type ContainerListResult struct {
	Containers []core.Container
}

// ActionLogResult is returned by ListActions.
type ActionLogResult struct {
	Actions []core.ActionLog
}

// NotificationListResult is returned by ListNotifications.
type NotificationListResult struct {
	Notifications []core.Notification
}

// DeliveryTaskResult is returned by delivery task operations.
type DeliveryTaskResult struct {
	Task *core.DeliveryTask
}

// DeliveryTaskListResult is returned by delivery task listings.
type DeliveryTaskListResult struct {
	Tasks []core.DeliveryTask
}
