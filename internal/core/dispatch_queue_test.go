package core_test

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"field-dispatch/internal/core"

	"golang.org/x/sync/errgroup"
)

func TestDispatch_SequentialPopsAreFIFO(t *testing.T) {
	f := setupEngine(t)
	base := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	// Pushed out of order; R-b and R-a share a timestamp and break the tie by id.
	f.addWaiting(t, "R-c", base.Add(2*time.Minute))
	f.addWaiting(t, "R-b", base.Add(time.Minute))
	f.addWaiting(t, "R-a", base.Add(time.Minute))
	f.addWaiting(t, "R-0", base)

	want := []string{"R-0", "R-a", "R-b", "R-c"}
	for _, id := range want {
		req, err := f.engine.Queue.PopOldestWaiting(f.ctx)
		if err != nil {
			t.Fatalf("PopOldestWaiting failed: %v", err)
		}
		if req == nil || req.ID != id {
			t.Fatalf("expected %s, got %+v", id, req)
		}
		if req.Status != core.RequestStatusInProgress {
			t.Errorf("expected popped request in progress, got %s", req.Status)
		}
	}

	req, err := f.engine.Queue.PopOldestWaiting(f.ctx)
	if err != nil || req != nil {
		t.Errorf("expected an empty backlog, got %+v, %v", req, err)
	}
}

func TestDispatch_ConcurrentPopsReturnEachRequestOnce(t *testing.T) {
	f := setupEngine(t)
	base := time.Now().UTC()
	const n = 25
	for i := 0; i < n; i++ {
		f.addWaiting(t, fmt.Sprintf("R-%02d", i), base.Add(time.Duration(i)*time.Second))
	}

	var (
		mu  sync.Mutex
		got []string
	)
	g, ctx := errgroup.WithContext(f.ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			req, err := f.engine.Queue.PopOldestWaiting(ctx)
			if err != nil {
				return err
			}
			if req != nil {
				mu.Lock()
				got = append(got, req.ID)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("PopOldestWaiting failed: %v", err)
	}

	if len(got) != n {
		t.Fatalf("expected %d requests, got %d", n, len(got))
	}
	sort.Strings(got)
	for i, id := range got {
		if want := fmt.Sprintf("R-%02d", i); id != want {
			t.Fatalf("expected %s at %d, got %s (duplicate or missing)", want, i, id)
		}
	}
}

func TestDispatch_SkipsRequestsWithTechnician(t *testing.T) {
	f := setupEngine(t)
	tech := "T9"
	err := f.store.CreateServiceRequest(f.ctx, &core.ServiceRequest{
		ID:           "R-assigned",
		Status:       core.RequestStatusWaiting,
		TechnicianID: &tech,
		CreatedAt:    time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Failed to seed request: %v", err)
	}
	f.addWaiting(t, "R-free", time.Now())

	backlog, err := f.engine.Queue.Backlog(f.ctx)
	if err != nil {
		t.Fatalf("Backlog failed: %v", err)
	}
	if len(backlog) != 1 || backlog[0].ID != "R-free" {
		t.Errorf("expected only R-free in the backlog, got %+v", backlog)
	}
}

func TestDispatch_Unclaim(t *testing.T) {
	f := setupEngine(t)
	f.addWaiting(t, "R1", time.Now())

	req, err := f.engine.Queue.PopOldestWaiting(f.ctx)
	if err != nil || req == nil {
		t.Fatalf("PopOldestWaiting: %+v, %v", req, err)
	}
	if err := f.engine.Queue.Unclaim(f.ctx, "R1"); err != nil {
		t.Fatalf("Unclaim failed: %v", err)
	}
	if err := f.engine.Queue.Unclaim(f.ctx, "R1"); err == nil {
		t.Error("expected a second Unclaim to fail")
	}
	again, err := f.engine.Queue.PopOldestWaiting(f.ctx)
	if err != nil || again == nil || again.ID != "R1" {
		t.Errorf("expected R1 back in the backlog, got %+v, %v", again, err)
	}
}
