package core_test

import (
	"errors"
	"fmt"
	"testing"

	"field-dispatch/internal/core"

	"golang.org/x/sync/errgroup"
)

func deduct(sku string, qty int, jobID string) core.StockChange {
	return core.StockChange{SKU: sku, Quantity: qty, RefType: core.ReferenceJob, RefID: jobID, Actor: "test"}
}

func TestInventory_ConcurrentDeductions(t *testing.T) {
	f := setupEngine(t)
	f.addItem(t, "FILTER-X", 100, 0, 0, "")

	g, ctx := errgroup.WithContext(f.ctx)
	for i := 0; i < 40; i++ {
		qty := i%3 + 1
		jobID := fmt.Sprintf("job-%d", i)
		g.Go(func() error {
			_, err := f.engine.Ledger.Deduct(ctx, deduct("FILTER-X", qty, jobID))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Deduct failed: %v", err)
	}

	want := 100
	for i := 0; i < 40; i++ {
		want -= i%3 + 1
	}
	if got := f.onHand(t, "FILTER-X"); got != want {
		t.Errorf("expected on hand %d, got %d", want, got)
	}
	movements, err := f.engine.Ledger.GetMovements(f.ctx, "FILTER-X")
	if err != nil {
		t.Fatalf("GetMovements failed: %v", err)
	}
	if len(movements) != 40 {
		t.Errorf("expected 40 movements, got %d", len(movements))
	}
}

func TestInventory_DeductReplay(t *testing.T) {
	f := setupEngine(t)
	f.addItem(t, "FILTER-X", 5, 3, 10, "")

	first, err := f.engine.Ledger.Deduct(f.ctx, deduct("FILTER-X", 3, "J1"))
	if err != nil {
		t.Fatalf("Deduct failed: %v", err)
	}
	if first.Replayed || !first.CrossedReorderPoint || first.NewQuantity != 2 {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, err := f.engine.Ledger.Deduct(f.ctx, deduct("FILTER-X", 3, "J1"))
	if err != nil {
		t.Fatalf("replayed Deduct failed: %v", err)
	}
	if !second.Replayed || !second.CrossedReorderPoint {
		t.Errorf("expected a replay reporting the original crossing, got %+v", second)
	}
	if got := f.onHand(t, "FILTER-X"); got != 2 {
		t.Errorf("expected on hand 2 after replay, got %d", got)
	}
}

func TestInventory_CrossingRule(t *testing.T) {
	tests := []struct {
		name    string
		onHand  int
		qty     int
		crossed bool
	}{
		{"lands above", 10, 6, false},
		{"lands on point", 5, 2, true},
		{"lands below", 5, 4, true},
		{"already below", 2, 1, false},
		{"into backorder", 4, 9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupEngine(t)
			f.addItem(t, "SKU", tt.onHand, 3, 10, "")
			res, err := f.engine.Ledger.Deduct(f.ctx, deduct("SKU", tt.qty, "J"))
			if err != nil {
				t.Fatalf("Deduct failed: %v", err)
			}
			if res.CrossedReorderPoint != tt.crossed {
				t.Errorf("expected crossed=%v, got %v", tt.crossed, res.CrossedReorderPoint)
			}
			if res.NewQuantity != tt.onHand-tt.qty {
				t.Errorf("expected %d, got %d", tt.onHand-tt.qty, res.NewQuantity)
			}
		})
	}
}

func TestInventory_UnknownSKU(t *testing.T) {
	f := setupEngine(t)

	_, err := f.engine.Ledger.Deduct(f.ctx, deduct("NOPE", 1, "J1"))
	if !errors.Is(err, core.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	movements, _ := f.engine.Ledger.GetMovements(f.ctx, "NOPE")
	if len(movements) != 0 {
		t.Errorf("expected no movement for an unknown sku, got %d", len(movements))
	}
}

func TestInventory_BackorderReported(t *testing.T) {
	f := setupEngine(t)
	f.addItem(t, "CLIP-Y", 1, 0, 0, "")

	if _, err := f.engine.Ledger.Deduct(f.ctx, deduct("CLIP-Y", 4, "J1")); err != nil {
		t.Fatalf("Deduct failed: %v", err)
	}
	levels, err := f.engine.Ledger.GetStockLevels(f.ctx)
	if err != nil {
		t.Fatalf("GetStockLevels failed: %v", err)
	}
	if len(levels) != 1 || levels[0].OnHand != -3 || !levels[0].Backordered || !levels[0].BelowReorder {
		t.Errorf("expected a backordered level at -3, got %+v", levels)
	}
}

func TestInventory_MovementFailureRollsBack(t *testing.T) {
	f := setupEngine(t)
	f.addItem(t, "FILTER-X", 5, 3, 10, "")
	f.store.FailNext("CreateStockMovement", 1)

	_, err := f.engine.Ledger.Deduct(f.ctx, deduct("FILTER-X", 2, "J1"))
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if got := f.onHand(t, "FILTER-X"); got != 5 {
		t.Fatalf("expected quantity restored to 5, got %d", got)
	}

	if _, err := f.engine.Ledger.Deduct(f.ctx, deduct("FILTER-X", 2, "J1")); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got := f.onHand(t, "FILTER-X"); got != 3 {
		t.Errorf("expected 3 after retry, got %d", got)
	}
}

func TestInventory_Restore(t *testing.T) {
	f := setupEngine(t)
	f.addItem(t, "FILTER-X", 2, 3, 10, "")

	change := core.StockChange{SKU: "FILTER-X", Quantity: 3, RefType: core.ReferenceCancellation, RefID: "CANCEL-1", Actor: "test"}
	res, err := f.engine.Ledger.Restore(f.ctx, change)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if res.NewQuantity != 5 || res.CrossedReorderPoint {
		t.Errorf("unexpected restore result %+v", res)
	}
	if res.Movement.Type != core.MovementInflow || res.Movement.Delta != 3 {
		t.Errorf("unexpected movement %+v", res.Movement)
	}

	again, err := f.engine.Ledger.Restore(f.ctx, change)
	if err != nil {
		t.Fatalf("replayed Restore failed: %v", err)
	}
	if !again.Replayed || f.onHand(t, "FILTER-X") != 5 {
		t.Errorf("expected replay to leave quantity at 5")
	}
}

func TestInventory_RejectsNonPositiveQuantity(t *testing.T) {
	f := setupEngine(t)
	f.addItem(t, "FILTER-X", 5, 3, 10, "")

	for _, qty := range []int{0, -2} {
		if _, err := f.engine.Ledger.Deduct(f.ctx, deduct("FILTER-X", qty, "J1")); err == nil {
			t.Errorf("expected an error for quantity %d", qty)
		}
	}
}
