package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// JobService drives the job state machine and runs the completion pipeline.
type JobService interface {
	// TransitionJob moves a job to target. Completing a job for the first time
	// deducts its stock, triggers replenishment, and either redirects the technician
	// to the oldest waiting request or releases them. Calling it again with the same
	// target is a no-op; a completion that failed midway resumes where it stopped.
	TransitionJob(ctx context.Context, jobID string, target JobStatus) (*Job, error)

	// AcceptRequest creates an open job for a new or waiting request and assigns techID.
	AcceptRequest(ctx context.Context, requestID, techID string) (*Job, error)

	GetJob(ctx context.Context, jobID string) (*Job, error)
	GetJobs(ctx context.Context, filter JobFilter) ([]Job, error)
}

// JobServiceConfig wires the collaborators of the job lifecycle controller.
type JobServiceConfig struct {
	Store     Store
	Locker    Locker
	Ledger    InventoryLedger
	Planner   ReplenishmentPlanner
	Registry  TechnicianRegistry
	Queue     DispatchQueue
	Publisher EventPublisher
	Logger    logrus.FieldLogger
	// DefaultActor is recorded on stock movements when the context carries no actor.
	DefaultActor string
}

type jobService struct {
	store        Store
	locker       Locker
	ledger       InventoryLedger
	planner      ReplenishmentPlanner
	registry     TechnicianRegistry
	queue        DispatchQueue
	publisher    EventPublisher
	log          logrus.FieldLogger
	defaultActor string
}

func NewJobService(cfg JobServiceConfig) JobService {
	s := &jobService{
		store:        cfg.Store,
		locker:       cfg.Locker,
		ledger:       cfg.Ledger,
		planner:      cfg.Planner,
		registry:     cfg.Registry,
		queue:        cfg.Queue,
		publisher:    cfg.Publisher,
		log:          cfg.Logger.WithField("module", "jobs"),
		defaultActor: cfg.DefaultActor,
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.defaultActor == "" {
		s.defaultActor = "system"
	}
	return s
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusOpen:    {JobStatusEnRoute, JobStatusRejected},
	JobStatusEnRoute: {JobStatusCompleted, JobStatusRejected},
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *jobService) TransitionJob(ctx context.Context, jobID string, target JobStatus) (*Job, error) {
	release, err := s.locker.Acquire(ctx, lockKey("job", jobID))
	if err != nil {
		return nil, fmt.Errorf("lock job %s: %w", jobID, err)
	}
	defer release()

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == target {
		if target == JobStatusCompleted && !job.FulfillmentApplied {
			return s.complete(ctx, job)
		}
		return job, nil
	}
	if !CanTransition(job.Status, target) {
		return nil, &TransitionError{JobID: job.ID, From: job.Status, To: target}
	}

	switch target {
	case JobStatusEnRoute:
		return s.startTravel(ctx, job)
	case JobStatusCompleted:
		if job.FulfillmentApplied {
			return s.finalize(ctx, job, job.NextJobID)
		}
		return s.complete(ctx, job)
	case JobStatusRejected:
		return s.reject(ctx, job)
	}
	return nil, &TransitionError{JobID: job.ID, From: job.Status, To: target}
}

// startTravel handles open → en_route.
func (s *jobService) startTravel(ctx context.Context, job *Job) (*Job, error) {
	log := s.log.WithFields(logrus.Fields{"job_id": job.ID, "technician_id": job.TechnicianID})

	if _, err := s.registry.Acquire(ctx, job.TechnicianID); err != nil {
		if !errors.Is(err, ErrUnknownTechnician) {
			return nil, fmt.Errorf("job %s: %w", job.ID, err)
		}
		log.WithError(err).Warn("technician not found, availability not tracked")
	}

	if err := s.setRequestStatus(ctx, job.RequestID, RequestStatusEnRoute); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}

	now := time.Now().UTC()
	job.Status = JobStatusEnRoute
	job.StartedAt = &now
	job.UpdatedAt = now
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update job %s: %w", job.ID, err)
	}
	log.Info("job en route")
	return job, nil
}

func (s *jobService) reject(ctx context.Context, job *Job) (*Job, error) {
	now := time.Now().UTC()
	job.Status = JobStatusRejected
	job.EndedAt = &now
	job.UpdatedAt = now
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update job %s: %w", job.ID, err)
	}
	s.log.WithField("job_id", job.ID).Info("job rejected")
	return job, nil
}

// complete runs the fulfillment pipeline. Each step is safe to repeat: stock
// deductions are keyed by (job, sku), reorders by reorder:job:<id>:<sku>, and a
// redirect is detected through the spawned job, so a retry after a failure only
// performs the missing writes.
func (s *jobService) complete(ctx context.Context, job *Job) (*Job, error) {
	log := s.log.WithFields(logrus.Fields{"job_id": job.ID, "technician_id": job.TechnicianID})
	actor := ActorFromContext(ctx, s.defaultActor)

	for _, line := range consumedStock(job.Items) {
		res, err := s.ledger.Deduct(ctx, StockChange{
			SKU:      line.SKU,
			Quantity: line.Quantity,
			RefType:  ReferenceJob,
			RefID:    job.ID,
			Actor:    actor,
			Note:     fmt.Sprintf("Consumed on job %s", job.ID),
		})
		if err != nil {
			if errors.Is(err, ErrUnknownItem) {
				log.WithField("sku", line.SKU).WithError(err).Warn("line item skipped")
				continue
			}
			return nil, s.partial(job, "inventory", err)
		}
		if !res.Replayed && res.Item.Backordered() {
			s.publish(ctx, Event{
				Type:       EventStockBackordered,
				Key:        res.Item.SKU,
				Attributes: map[string]string{"job_id": job.ID},
				Payload:    res.Item,
			})
		}
		if res.CrossedReorderPoint {
			if _, err := s.planner.MaybeReorder(ctx, res.Item, reorderKey(job.ID, line.SKU)); err != nil {
				if !isBestEffort(err) {
					return nil, s.partial(job, "replenishment", err)
				}
				log.WithField("sku", line.SKU).WithError(err).Warn("replenishment skipped")
			}
		}
	}

	next, err := s.redirectOrRelease(ctx, job)
	if err != nil {
		return nil, s.partial(job, "dispatch", err)
	}

	var nextID *string
	if next != nil {
		nextID = strPtr(next.ID)
	}
	return s.finalize(ctx, job, nextID)
}

// finalize persists the completed state and flips the fulfillment flag.
func (s *jobService) finalize(ctx context.Context, job *Job, nextJobID *string) (*Job, error) {
	now := time.Now().UTC()
	job.Status = JobStatusCompleted
	job.FulfillmentApplied = true
	job.NextJobID = nextJobID
	job.EndedAt = &now
	job.UpdatedAt = now
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, s.partial(job, "finalize", err)
	}

	attrs := map[string]string{"technician_id": job.TechnicianID}
	if nextJobID != nil {
		attrs["next_job_id"] = *nextJobID
	}
	s.publish(ctx, Event{Type: EventJobCompleted, Key: job.ID, Attributes: attrs, Payload: job})
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "total": job.Total().StringFixed(2)}).Info("job completed")
	return job, nil
}

// redirectOrRelease hands the technician the oldest waiting request, or releases
// them when the backlog is empty. It returns the follow-up job, if any.
func (s *jobService) redirectOrRelease(ctx context.Context, job *Job) (*Job, error) {
	log := s.log.WithFields(logrus.Fields{"job_id": job.ID, "technician_id": job.TechnicianID})

	if err := s.setRequestStatus(ctx, job.RequestID, RequestStatusCompleted); err != nil {
		return nil, err
	}

	if job.TechnicianID == "" {
		log.Warn("job has no technician, nothing to release or redirect")
		return nil, nil
	}
	if _, err := s.store.GetTechnician(ctx, job.TechnicianID); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WithError(ErrUnknownTechnician).Warn("technician not found, skipping dispatch")
			return nil, nil
		}
		return nil, fmt.Errorf("load technician %s: %w", job.TechnicianID, err)
	}

	spawned, err := s.store.ListJobs(ctx, JobFilter{SpawnedFromJobID: job.ID})
	if err != nil {
		return nil, fmt.Errorf("look up follow-up job: %w", err)
	}
	if len(spawned) > 0 {
		next := spawned[0]
		log.WithField("next_job_id", next.ID).Info("technician already redirected, resuming")
		if err := s.linkFollowUp(ctx, &next); err != nil {
			return nil, err
		}
		return &next, nil
	}

	req, err := s.queue.PopOldestWaiting(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		released, err := s.registry.Release(ctx, job.TechnicianID, job.ID)
		if err != nil {
			return nil, err
		}
		if released {
			s.publish(ctx, Event{Type: EventTechnicianReleased, Key: job.TechnicianID, Attributes: map[string]string{"job_id": job.ID}})
		}
		log.WithField("released", released).Info("no waiting requests")
		return nil, nil
	}

	now := time.Now().UTC()
	next := &Job{
		ID:               newID(),
		CustomerID:       req.CustomerID,
		RequestID:        strPtr(req.ID),
		ServiceType:      req.ServiceType,
		Address:          req.Address,
		TechnicianID:     job.TechnicianID,
		Status:           JobStatusOpen,
		Items:            append([]LineItem(nil), req.Items...),
		SpawnedFromJobID: strPtr(job.ID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateJob(ctx, next); err != nil {
		if uerr := s.queue.Unclaim(ctx, req.ID); uerr != nil {
			log.WithFields(logrus.Fields{"request_id": req.ID, "unclaim_error": uerr.Error()}).
				Error("request claimed without a job; reconcile manually")
		}
		return nil, fmt.Errorf("create follow-up job for request %s: %w", req.ID, err)
	}
	if err := s.linkFollowUp(ctx, next); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"next_job_id": next.ID, "request_id": req.ID}).Info("technician redirected to waiting request")
	s.publish(ctx, Event{
		Type:       EventJobDispatched,
		Key:        next.ID,
		Attributes: map[string]string{"technician_id": next.TechnicianID, "request_id": req.ID, "spawned_from": job.ID},
		Payload:    next,
	})
	return next, nil
}

// linkFollowUp points the follow-up job's request at the job and technician and
// marks the technician assigned. Both writes are idempotent.
func (s *jobService) linkFollowUp(ctx context.Context, next *Job) error {
	if next.RequestID != nil {
		req, err := s.store.GetServiceRequest(ctx, *next.RequestID)
		if err != nil {
			return fmt.Errorf("load request %s: %w", *next.RequestID, err)
		}
		if req.JobID == nil || *req.JobID != next.ID || req.TechnicianID == nil || *req.TechnicianID != next.TechnicianID {
			req.Status = RequestStatusInProgress
			req.JobID = strPtr(next.ID)
			req.TechnicianID = strPtr(next.TechnicianID)
			req.UpdatedAt = time.Now().UTC()
			if err := s.store.UpdateServiceRequest(ctx, req); err != nil {
				return fmt.Errorf("link request %s to job %s: %w", req.ID, next.ID, err)
			}
		}
	}
	if _, err := s.registry.Assign(ctx, next.TechnicianID); err != nil {
		return err
	}
	return nil
}

func (s *jobService) AcceptRequest(ctx context.Context, requestID, techID string) (*Job, error) {
	if _, err := s.store.GetTechnician(ctx, techID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("technician %s: %w", techID, ErrUnknownTechnician)
		}
		return nil, fmt.Errorf("load technician %s: %w", techID, err)
	}
	req, err := s.store.GetServiceRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", requestID, err)
	}
	if req.Status != RequestStatusNew && req.Status != RequestStatusWaiting {
		return nil, fmt.Errorf("request %s has status %s: %w", requestID, req.Status, ErrRequestUnavailable)
	}
	won, err := s.store.ClaimServiceRequest(ctx, requestID, req.Status, RequestStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("claim request %s: %w", requestID, err)
	}
	if !won {
		return nil, fmt.Errorf("request %s was accepted by someone else: %w", requestID, ErrRequestUnavailable)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:           newID(),
		CustomerID:   req.CustomerID,
		RequestID:    strPtr(req.ID),
		ServiceType:  req.ServiceType,
		Address:      req.Address,
		TechnicianID: techID,
		Status:       JobStatusOpen,
		Items:        append([]LineItem(nil), req.Items...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		if _, uerr := s.store.ClaimServiceRequest(ctx, requestID, RequestStatusInProgress, req.Status); uerr != nil {
			s.log.WithField("request_id", requestID).WithError(uerr).Error("request claimed without a job; reconcile manually")
		}
		return nil, fmt.Errorf("create job for request %s: %w", requestID, err)
	}
	if err := s.linkFollowUp(ctx, job); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "request_id": requestID, "technician_id": techID}).Info("request accepted")
	return job, nil
}

func (s *jobService) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *jobService) GetJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// setRequestStatus updates the linked request, if any. A missing request is logged.
func (s *jobService) setRequestStatus(ctx context.Context, requestID *string, status RequestStatus) error {
	if requestID == nil || *requestID == "" {
		return nil
	}
	req, err := s.store.GetServiceRequest(ctx, *requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.WithField("request_id", *requestID).Warn("linked service request not found")
			return nil
		}
		return fmt.Errorf("load request %s: %w", *requestID, err)
	}
	if req.Status == status {
		return nil
	}
	req.Status = status
	req.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateServiceRequest(ctx, req); err != nil {
		return fmt.Errorf("update request %s: %w", req.ID, err)
	}
	return nil
}

func (s *jobService) partial(job *Job, step string, err error) error {
	s.log.WithFields(logrus.Fields{
		"job_id":        job.ID,
		"technician_id": job.TechnicianID,
		"step":          step,
	}).WithError(err).Error("completion stopped partway; retry the transition to resume")
	return &PipelineError{JobID: job.ID, Step: step, Err: err}
}

func (s *jobService) publish(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.WithFields(logrus.Fields{"event": ev.Type, "key": ev.Key}).WithError(err).Warn("failed to publish event")
	}
}

// consumedStock sums quantities per SKU in first-seen order, dropping custom items
// and lines without a SKU.
func consumedStock(items []LineItem) []LineItem {
	var out []LineItem
	index := make(map[string]int)
	for _, it := range items {
		if it.IsCustom || it.SKU == "" || it.Quantity <= 0 {
			continue
		}
		if i, ok := index[it.SKU]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.SKU] = len(out)
		out = append(out, LineItem{SKU: it.SKU, Quantity: it.Quantity})
	}
	return out
}
