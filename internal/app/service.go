package app

import (
	"context"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from the dispatch engine. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// TransitionJob moves a job to the requested status. Completing a job runs the
	// fulfillment pipeline; repeating a completed transition is a no-op.
	TransitionJob(ctx context.Context, req TransitionJobRequest) (*JobResult, error)

	// AcceptRequest creates an open job for a new or waiting service request.
	AcceptRequest(ctx context.Context, req AcceptRequestRequest) (*JobResult, error)

	// GetJob returns a single job by ID.
	GetJob(ctx context.Context, jobID string) (*JobResult, error)

	// ListJobs returns jobs, optionally filtered by status and technician.
	ListJobs(ctx context.Context, status, technicianID string) (*JobListResult, error)

	// SubmitServiceRequest puts a new request in the dispatch backlog.
	SubmitServiceRequest(ctx context.Context, req SubmitServiceRequestRequest) (*ServiceRequestResult, error)

	// GetBacklog returns waiting requests in the order they will be dispatched.
	GetBacklog(ctx context.Context) (*BacklogResult, error)

	// ListTechnicians returns every technician with their availability.
	ListTechnicians(ctx context.Context) (*TechnicianListResult, error)

	// GetStockLevels returns stock for every SKU, flagging backorders.
	GetStockLevels(ctx context.Context) (*StockResult, error)

	// GetMovements returns the movement history of one SKU.
	GetMovements(ctx context.Context, sku string) (*MovementListResult, error)

	// RestoreStock puts stock back for a cancelled job. A repeated reference is a no-op.
	RestoreStock(ctx context.Context, req RestoreStockRequest) (*StockChangeResult, error)

	// ListSupplierOrders returns supplier orders, optionally filtered by supplier and status.
	ListSupplierOrders(ctx context.Context, supplierID, status string) (*SupplierOrderListResult, error)
}
