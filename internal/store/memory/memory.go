// Package memory is an in-process core.Store used by tests, the demo seed and
// STORE_BACKEND=memory. Records are copied on the way in and out so callers never
// share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"field-dispatch/internal/core"
)

type Store struct {
	mu sync.RWMutex

	jobs        map[string]core.Job
	requests    map[string]core.ServiceRequest
	technicians map[string]core.Technician
	items       map[string]core.InventoryItem
	movements   []core.StockMovement
	movementKey map[string]int
	suppliers   map[string]core.Supplier
	orders      map[string]core.SupplierOrder

	faults map[string]int
}

func New() *Store {
	return &Store{
		jobs:        make(map[string]core.Job),
		requests:    make(map[string]core.ServiceRequest),
		technicians: make(map[string]core.Technician),
		items:       make(map[string]core.InventoryItem),
		movementKey: make(map[string]int),
		suppliers:   make(map[string]core.Supplier),
		orders:      make(map[string]core.SupplierOrder),
		faults:      make(map[string]int),
	}
}

// FailNext makes the next n calls of the named method (e.g. "UpdateJob") return
// ErrStorageUnavailable without touching any data.
func (s *Store) FailNext(method string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = n
}

// fault must be called with s.mu held for writing.
func (s *Store) fault(method string) error {
	if s.faults[method] > 0 {
		s.faults[method]--
		return fmt.Errorf("%s: injected failure: %w", method, core.ErrStorageUnavailable)
	}
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

// Jobs

func (s *Store) GetJob(_ context.Context, id string) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetJob"); err != nil {
		return nil, err
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, notFound("job", id)
	}
	out := copyJob(j)
	return &out, nil
}

func (s *Store) ListJobs(_ context.Context, filter core.JobFilter) ([]core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ListJobs"); err != nil {
		return nil, err
	}
	var out []core.Job
	for _, j := range s.jobs {
		if filter.Matches(&j) {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (s *Store) CreateJob(_ context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateJob"); err != nil {
		return err
	}
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = copyJob(*job)
	return nil
}

func (s *Store) UpdateJob(_ context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateJob"); err != nil {
		return err
	}
	if _, ok := s.jobs[job.ID]; !ok {
		return notFound("job", job.ID)
	}
	s.jobs[job.ID] = copyJob(*job)
	return nil
}

// Service requests

func (s *Store) GetServiceRequest(_ context.Context, id string) (*core.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetServiceRequest"); err != nil {
		return nil, err
	}
	r, ok := s.requests[id]
	if !ok {
		return nil, notFound("service request", id)
	}
	out := copyRequest(r)
	return &out, nil
}

func (s *Store) ListServiceRequests(_ context.Context, status core.RequestStatus) ([]core.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ListServiceRequests"); err != nil {
		return nil, err
	}
	var out []core.ServiceRequest
	for _, r := range s.requests {
		if status == "" || r.Status == status {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (s *Store) CreateServiceRequest(_ context.Context, req *core.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateServiceRequest"); err != nil {
		return err
	}
	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("service request %s already exists", req.ID)
	}
	s.requests[req.ID] = copyRequest(*req)
	return nil
}

func (s *Store) UpdateServiceRequest(_ context.Context, req *core.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateServiceRequest"); err != nil {
		return err
	}
	if _, ok := s.requests[req.ID]; !ok {
		return notFound("service request", req.ID)
	}
	s.requests[req.ID] = copyRequest(*req)
	return nil
}

func (s *Store) ClaimServiceRequest(_ context.Context, id string, from, to core.RequestStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ClaimServiceRequest"); err != nil {
		return false, err
	}
	r, ok := s.requests[id]
	if !ok {
		return false, notFound("service request", id)
	}
	if r.Status != from || (r.TechnicianID != nil && *r.TechnicianID != "") {
		return false, nil
	}
	r.Status = to
	s.requests[id] = r
	return true, nil
}

// Technicians

func (s *Store) GetTechnician(_ context.Context, id string) (*core.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetTechnician"); err != nil {
		return nil, err
	}
	t, ok := s.technicians[id]
	if !ok {
		return nil, notFound("technician", id)
	}
	return &t, nil
}

func (s *Store) ListTechnicians(_ context.Context) ([]core.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Technician, 0, len(s.technicians))
	for _, t := range s.technicians {
		out = append(out, t)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *Store) CreateTechnician(_ context.Context, t *core.Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.technicians[t.ID]; ok {
		return fmt.Errorf("technician %s already exists", t.ID)
	}
	s.technicians[t.ID] = *t
	return nil
}

func (s *Store) UpdateTechnician(_ context.Context, t *core.Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateTechnician"); err != nil {
		return err
	}
	if _, ok := s.technicians[t.ID]; !ok {
		return notFound("technician", t.ID)
	}
	s.technicians[t.ID] = *t
	return nil
}

// Inventory

func (s *Store) GetInventoryItem(_ context.Context, sku string) (*core.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetInventoryItem"); err != nil {
		return nil, err
	}
	it, ok := s.items[sku]
	if !ok {
		return nil, notFound("inventory item", sku)
	}
	out := copyItem(it)
	return &out, nil
}

func (s *Store) ListInventoryItems(_ context.Context) ([]core.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.InventoryItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, copyItem(it))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SKU < out[b].SKU })
	return out, nil
}

func (s *Store) CreateInventoryItem(_ context.Context, item *core.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.SKU]; ok {
		return fmt.Errorf("inventory item %s already exists", item.SKU)
	}
	s.items[item.SKU] = copyItem(*item)
	return nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, item *core.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateInventoryItem"); err != nil {
		return err
	}
	if _, ok := s.items[item.SKU]; !ok {
		return notFound("inventory item", item.SKU)
	}
	s.items[item.SKU] = copyItem(*item)
	return nil
}

// Movements

func (s *Store) CreateStockMovement(_ context.Context, m *core.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateStockMovement"); err != nil {
		return err
	}
	if _, dup := s.movementKey[m.IdempotencyKey]; dup {
		return fmt.Errorf("stock movement %s already recorded", m.IdempotencyKey)
	}
	s.movementKey[m.IdempotencyKey] = len(s.movements)
	s.movements = append(s.movements, *m)
	return nil
}

func (s *Store) FindStockMovement(_ context.Context, key string) (*core.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("FindStockMovement"); err != nil {
		return nil, err
	}
	i, ok := s.movementKey[key]
	if !ok {
		return nil, notFound("stock movement", key)
	}
	m := s.movements[i]
	return &m, nil
}

func (s *Store) ListStockMovements(_ context.Context, sku string) ([]core.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.StockMovement
	for _, m := range s.movements {
		if sku == "" || m.SKU == sku {
			out = append(out, m)
		}
	}
	return out, nil
}

// Suppliers

func (s *Store) GetSupplier(_ context.Context, id string) (*core.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("GetSupplier"); err != nil {
		return nil, err
	}
	sup, ok := s.suppliers[id]
	if !ok {
		return nil, notFound("supplier", id)
	}
	return &sup, nil
}

func (s *Store) CreateSupplier(_ context.Context, sup *core.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers[sup.ID]; ok {
		return fmt.Errorf("supplier %s already exists", sup.ID)
	}
	s.suppliers[sup.ID] = *sup
	return nil
}

func (s *Store) GetSupplierOrder(_ context.Context, id string) (*core.SupplierOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, notFound("supplier order", id)
	}
	out := copyOrder(o)
	return &out, nil
}

func (s *Store) ListSupplierOrders(_ context.Context, supplierID string, status core.SupplierOrderStatus) ([]core.SupplierOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ListSupplierOrders"); err != nil {
		return nil, err
	}
	var out []core.SupplierOrder
	for _, o := range s.orders {
		if supplierID != "" && o.SupplierID != supplierID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (s *Store) CreateSupplierOrder(_ context.Context, o *core.SupplierOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateSupplierOrder"); err != nil {
		return err
	}
	if o.Status == core.SupplierOrderDraft {
		for _, existing := range s.orders {
			if existing.SupplierID == o.SupplierID && existing.Status == core.SupplierOrderDraft {
				return fmt.Errorf("supplier %s already has draft order %s", o.SupplierID, existing.ID)
			}
		}
	}
	s.orders[o.ID] = copyOrder(*o)
	return nil
}

func (s *Store) UpdateSupplierOrder(_ context.Context, o *core.SupplierOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateSupplierOrder"); err != nil {
		return err
	}
	if _, ok := s.orders[o.ID]; !ok {
		return notFound("supplier order", o.ID)
	}
	s.orders[o.ID] = copyOrder(*o)
	return nil
}

var _ core.Store = (*Store)(nil)
