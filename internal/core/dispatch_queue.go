package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// DispatchQueue is the FIFO backlog of waiting service requests. Any request stored
// with status waiting and no technician is eligible; order is (created_at, id).
type DispatchQueue interface {
	// PopOldestWaiting claims the oldest eligible request, moving it to in_progress in
	// the same operation. It returns (nil, nil) when the backlog is empty.
	PopOldestWaiting(ctx context.Context) (*ServiceRequest, error)
	// Push stores req as a waiting request and returns it with ID and timestamps set.
	Push(ctx context.Context, req ServiceRequest) (*ServiceRequest, error)
	// Unclaim returns a claimed request to the backlog.
	Unclaim(ctx context.Context, requestID string) error
	// Backlog lists eligible requests in pop order.
	Backlog(ctx context.Context) ([]ServiceRequest, error)
}

const dispatchLockKey = "dispatch:backlog"

type dispatchQueue struct {
	store  Store
	locker Locker
	log    logrus.FieldLogger
}

func NewDispatchQueue(store Store, locker Locker, log logrus.FieldLogger) DispatchQueue {
	return &dispatchQueue{store: store, locker: locker, log: log.WithField("module", "dispatch")}
}

func (q *dispatchQueue) PopOldestWaiting(ctx context.Context) (*ServiceRequest, error) {
	release, err := q.locker.Acquire(ctx, dispatchLockKey)
	if err != nil {
		return nil, fmt.Errorf("lock dispatch backlog: %w", err)
	}
	defer release()

	candidates, err := q.Backlog(ctx)
	if err != nil {
		return nil, err
	}

	// The lock covers pops from this process; the claim covers other processes
	// sharing the store. A lost claim moves on to the next candidate.
	for i := range candidates {
		req := candidates[i]
		won, err := q.store.ClaimServiceRequest(ctx, req.ID, RequestStatusWaiting, RequestStatusInProgress)
		if err != nil {
			return nil, fmt.Errorf("claim service request %s: %w", req.ID, err)
		}
		if !won {
			q.log.WithField("request_id", req.ID).Debug("service request claimed elsewhere, trying next")
			continue
		}
		req.Status = RequestStatusInProgress
		return &req, nil
	}
	return nil, nil
}

func (q *dispatchQueue) Push(ctx context.Context, req ServiceRequest) (*ServiceRequest, error) {
	now := time.Now().UTC()
	if req.ID == "" {
		req.ID = newID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	req.Status = RequestStatusWaiting
	req.TechnicianID = nil
	req.JobID = nil
	if err := q.store.CreateServiceRequest(ctx, &req); err != nil {
		return nil, fmt.Errorf("failed to enqueue service request: %w", err)
	}
	q.log.WithField("request_id", req.ID).Info("service request waiting for a technician")
	return &req, nil
}

func (q *dispatchQueue) Unclaim(ctx context.Context, requestID string) error {
	won, err := q.store.ClaimServiceRequest(ctx, requestID, RequestStatusInProgress, RequestStatusWaiting)
	if err != nil {
		return fmt.Errorf("unclaim service request %s: %w", requestID, err)
	}
	if !won {
		return fmt.Errorf("service request %s is no longer claimed", requestID)
	}
	return nil
}

func (q *dispatchQueue) Backlog(ctx context.Context) ([]ServiceRequest, error) {
	waiting, err := q.store.ListServiceRequests(ctx, RequestStatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("list waiting service requests: %w", err)
	}
	eligible := waiting[:0]
	for _, r := range waiting {
		if r.TechnicianID == nil || *r.TechnicianID == "" {
			eligible = append(eligible, r)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible, nil
}
