package core_test

import (
	"context"
	"testing"
	"time"

	"field-dispatch/internal/core"
	"field-dispatch/internal/events"
	"field-dispatch/internal/lock"
	"field-dispatch/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	engine *core.Engine
	events *events.Recorder
	logs   *test.Hook
}

// setupEngine wires the engine against an empty in-memory store.
func setupEngine(t *testing.T) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store := memory.New()
	rec := &events.Recorder{}
	engine := core.NewEngine(store, lock.NewKeyedMutex(5*time.Second), rec, logger, "test")
	return &fixture{
		ctx:    context.Background(),
		store:  store,
		engine: engine,
		events: rec,
		logs:   hook,
	}
}

func (f *fixture) addTechnician(t *testing.T, id string, availability core.Availability) {
	t.Helper()
	err := f.store.CreateTechnician(f.ctx, &core.Technician{ID: id, Name: "Tech " + id, Availability: availability})
	if err != nil {
		t.Fatalf("Failed to seed technician %s: %v", id, err)
	}
}

func (f *fixture) addSupplier(t *testing.T, id string) {
	t.Helper()
	if err := f.store.CreateSupplier(f.ctx, &core.Supplier{ID: id, Name: id + " Supply Co"}); err != nil {
		t.Fatalf("Failed to seed supplier %s: %v", id, err)
	}
}

func (f *fixture) addItem(t *testing.T, sku string, onHand, reorderPoint, reorderQty int, supplierID string) {
	t.Helper()
	item := &core.InventoryItem{
		SKU:          sku,
		Name:         sku,
		OnHand:       onHand,
		ReorderPoint: reorderPoint,
		ReorderQty:   reorderQty,
		UnitCost:     decimal.NewFromFloat(2.50),
	}
	if supplierID != "" {
		item.SupplierID = &supplierID
	}
	if err := f.store.CreateInventoryItem(f.ctx, item); err != nil {
		t.Fatalf("Failed to seed item %s: %v", sku, err)
	}
}

func (f *fixture) addJob(t *testing.T, id, techID string, status core.JobStatus, items ...core.LineItem) *core.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &core.Job{
		ID:           id,
		CustomerID:   "C-" + id,
		ServiceType:  "filter replacement",
		Address:      "1 Main St",
		TechnicianID: techID,
		Status:       status,
		Items:        items,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := f.store.CreateJob(f.ctx, job); err != nil {
		t.Fatalf("Failed to seed job %s: %v", id, err)
	}
	return job
}

func (f *fixture) addWaiting(t *testing.T, id string, createdAt time.Time, items ...core.LineItem) {
	t.Helper()
	_, err := f.engine.Queue.Push(f.ctx, core.ServiceRequest{
		ID:          id,
		CustomerID:  "C-" + id,
		ServiceType: "repair",
		Address:     "2 Side St",
		Items:       items,
		CreatedAt:   createdAt,
	})
	if err != nil {
		t.Fatalf("Failed to enqueue request %s: %v", id, err)
	}
}

func (f *fixture) onHand(t *testing.T, sku string) int {
	t.Helper()
	item, err := f.engine.Ledger.GetItem(f.ctx, sku)
	if err != nil {
		t.Fatalf("GetItem %s failed: %v", sku, err)
	}
	return item.OnHand
}

func (f *fixture) availability(t *testing.T, techID string) core.Availability {
	t.Helper()
	tech, err := f.store.GetTechnician(f.ctx, techID)
	if err != nil {
		t.Fatalf("GetTechnician %s failed: %v", techID, err)
	}
	return tech.Availability
}

func line(sku string, qty int) core.LineItem {
	return core.LineItem{SKU: sku, Quantity: qty, UnitPrice: decimal.NewFromInt(10)}
}
