package core

import (
	"context"
)

// The persistence layer is an external collaborator. Implementations must return
// ErrNotFound for missing records and wrap connectivity failures in
// ErrStorageUnavailable. No multi-record transactions are assumed.

type JobStore interface {
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)
	CreateJob(ctx context.Context, job *Job) error
	UpdateJob(ctx context.Context, job *Job) error
}

type RequestStore interface {
	GetServiceRequest(ctx context.Context, id string) (*ServiceRequest, error)
	// ListServiceRequests returns requests in the given status ordered by (created_at, id).
	ListServiceRequests(ctx context.Context, status RequestStatus) ([]ServiceRequest, error)
	CreateServiceRequest(ctx context.Context, req *ServiceRequest) error
	UpdateServiceRequest(ctx context.Context, req *ServiceRequest) error
	// ClaimServiceRequest moves the request from one status to another only if it is
	// still in `from` and has no technician. It reports whether this caller won.
	ClaimServiceRequest(ctx context.Context, id string, from, to RequestStatus) (bool, error)
}

type TechnicianStore interface {
	GetTechnician(ctx context.Context, id string) (*Technician, error)
	ListTechnicians(ctx context.Context) ([]Technician, error)
	CreateTechnician(ctx context.Context, t *Technician) error
	UpdateTechnician(ctx context.Context, t *Technician) error
}

type InventoryStore interface {
	GetInventoryItem(ctx context.Context, sku string) (*InventoryItem, error)
	ListInventoryItems(ctx context.Context) ([]InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item *InventoryItem) error
	UpdateInventoryItem(ctx context.Context, item *InventoryItem) error
}

type MovementStore interface {
	CreateStockMovement(ctx context.Context, m *StockMovement) error
	// FindStockMovement looks a movement up by its idempotency key.
	FindStockMovement(ctx context.Context, idempotencyKey string) (*StockMovement, error)
	ListStockMovements(ctx context.Context, sku string) ([]StockMovement, error)
}

type SupplierStore interface {
	GetSupplier(ctx context.Context, id string) (*Supplier, error)
	CreateSupplier(ctx context.Context, s *Supplier) error
}

type SupplierOrderStore interface {
	GetSupplierOrder(ctx context.Context, id string) (*SupplierOrder, error)
	// ListSupplierOrders filters by supplier and status; empty values match all.
	ListSupplierOrders(ctx context.Context, supplierID string, status SupplierOrderStatus) ([]SupplierOrder, error)
	CreateSupplierOrder(ctx context.Context, o *SupplierOrder) error
	UpdateSupplierOrder(ctx context.Context, o *SupplierOrder) error
}

// Store is the full persistence abstraction consumed by the engine.
type Store interface {
	JobStore
	RequestStore
	TechnicianStore
	InventoryStore
	MovementStore
	SupplierStore
	SupplierOrderStore
}

// Locker serializes work on a single key (a SKU, a supplier, a technician, a job).
// Acquire blocks until the key is free, ctx is done, or the implementation's wait
// budget runs out; in the last two cases it returns an error wrapping ErrLockUnavailable.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// EventPublisher delivers domain events. Publishing is best-effort: failures are
// logged by the caller and never fail a transition.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

func lockKey(kind, id string) string {
	return kind + ":" + id
}
