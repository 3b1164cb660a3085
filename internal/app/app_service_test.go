package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"field-dispatch/internal/app"
	"field-dispatch/internal/core"
	"field-dispatch/internal/lock"
	"field-dispatch/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
)

func setupApp(t *testing.T) (app.ApplicationService, *memory.Store) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := memory.New()
	engine := core.NewEngine(store, lock.NewKeyedMutex(5*time.Second), nil, logger, "system")
	if err := store.CreateInventoryItem(context.Background(), &core.InventoryItem{
		SKU: "FILTER-X", Name: "Filter", OnHand: 5, ReorderPoint: 3, ReorderQty: 10, UnitCost: decimal.NewFromFloat(2.5),
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return app.NewAppService(engine), store
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestSubmitServiceRequest_Validation(t *testing.T) {
	svc, _ := setupApp(t)
	_, err := svc.SubmitServiceRequest(context.Background(), app.SubmitServiceRequestRequest{
		CustomerID: "C1",
		Items:      []app.LineItemInput{{SKU: "FILTER-X", Quantity: 0}},
	})
	var inputErr *app.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	for _, field := range []string{"ServiceType", "Address", "Quantity"} {
		if _, ok := inputErr.Fields[field]; !ok {
			t.Errorf("expected %s in failing fields, got %v", field, inputErr.Fields)
		}
	}
	if !errors.Is(err, app.ErrInvalidInput) {
		t.Error("expected InputError to match ErrInvalidInput")
	}
}

func TestListJobs_Filters(t *testing.T) {
	svc, _ := setupApp(t)
	ctx := context.Background()

	res, err := svc.ListJobs(ctx, "", "")
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if res.Jobs == nil || len(res.Jobs) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", res.Jobs)
	}

	if _, err := svc.ListJobs(ctx, "paused", ""); !errors.Is(err, app.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown status, got %v", err)
	}
	if _, err := svc.ListJobs(ctx, "en route", ""); err != nil {
		t.Errorf("expected dispatch verb to be accepted, got %v", err)
	}
}

func TestListSupplierOrders_RejectsUnknownStatus(t *testing.T) {
	svc, _ := setupApp(t)
	if _, err := svc.ListSupplierOrders(context.Background(), "", "cancelled"); !errors.Is(err, app.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRestoreStock_ActorFromContext(t *testing.T) {
	svc, _ := setupApp(t)
	ctx := core.ContextWithActor(context.Background(), "ops-lead")

	res, err := svc.RestoreStock(ctx, app.RestoreStockRequest{SKU: "FILTER-X", Quantity: 2, ReferenceID: "job-9"})
	if err != nil {
		t.Fatalf("RestoreStock failed: %v", err)
	}
	if res.NewQuantity != 7 {
		t.Errorf("expected on hand 7, got %d", res.NewQuantity)
	}
	if res.Movement == nil || res.Movement.Actor != "ops-lead" {
		t.Errorf("expected movement by ops-lead, got %+v", res.Movement)
	}
	if res.Movement.Note != "Restored for cancellation job-9" {
		t.Errorf("unexpected default note %q", res.Movement.Note)
	}
}

func TestGetStockLevels_CountsBackorders(t *testing.T) {
	svc, store := setupApp(t)
	ctx := context.Background()
	if err := store.CreateInventoryItem(ctx, &core.InventoryItem{SKU: "CLIP-Y", Name: "Clip", OnHand: -2, UnitCost: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	res, err := svc.GetStockLevels(ctx)
	if err != nil {
		t.Fatalf("GetStockLevels failed: %v", err)
	}
	if len(res.Levels) != 2 || res.Backordered != 1 {
		t.Errorf("expected 2 levels with 1 backorder, got %d levels, %d backordered", len(res.Levels), res.Backordered)
	}
}

func TestTransitionJob_ActorRecordedOnMovements(t *testing.T) {
	svc, store := setupApp(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := store.CreateJob(ctx, &core.Job{
		ID: "J1", CustomerID: "C1", Status: core.JobStatusEnRoute,
		Items:     []core.LineItem{{SKU: "FILTER-X", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	if _, err := svc.TransitionJob(ctx, app.TransitionJobRequest{JobID: "J1", Status: "done", Actor: "dispatcher-7"}); err != nil {
		t.Fatalf("TransitionJob failed: %v", err)
	}
	moves, err := svc.GetMovements(ctx, "FILTER-X")
	if err != nil {
		t.Fatalf("GetMovements failed: %v", err)
	}
	if len(moves.Movements) != 1 || moves.Movements[0].Actor != "dispatcher-7" {
		t.Fatalf("expected one movement by dispatcher-7, got %+v", moves.Movements)
	}
	if moves.Movements[0].IdempotencyKey != "job:J1:FILTER-X" {
		t.Errorf("unexpected idempotency key %q", moves.Movements[0].IdempotencyKey)
	}
}
