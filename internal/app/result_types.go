package app

import "field-dispatch/internal/core"

// JobResult is returned by job lifecycle operations.
type JobResult struct {
	Job *core.Job `json:"job"`
}

// JobListResult is returned by ListJobs.
type JobListResult struct {
	Jobs []core.Job `json:"jobs"`
}

// ServiceRequestResult is returned by SubmitServiceRequest.
type ServiceRequestResult struct {
	Request *core.ServiceRequest `json:"request"`
}

// BacklogResult is returned by GetBacklog.
type BacklogResult struct {
	Requests []core.ServiceRequest `json:"requests"`
}

// TechnicianListResult is returned by ListTechnicians.
type TechnicianListResult struct {
	Technicians []core.Technician `json:"technicians"`
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Levels      []core.StockLevel `json:"levels"`
	Backordered int               `json:"backordered"`
}

// MovementListResult is returned by GetMovements.
type MovementListResult struct {
	SKU       string               `json:"sku"`
	Movements []core.StockMovement `json:"movements"`
}

// StockChangeResult is returned by RestoreStock.
type StockChangeResult struct {
	SKU         string              `json:"sku"`
	NewQuantity int                 `json:"new_quantity"`
	Replayed    bool                `json:"replayed"`
	Movement    *core.StockMovement `json:"movement,omitempty"`
}

// SupplierOrderListResult is returned by ListSupplierOrders.
type SupplierOrderListResult struct {
	Orders []core.SupplierOrder `json:"orders"`
}
