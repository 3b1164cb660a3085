package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"field-dispatch/internal/core"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput is matched by every request validation failure.
var ErrInvalidInput = errors.New("invalid input")

// InputError lists the failing fields of a request, keyed by field name.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

type appService struct {
	engine   *core.Engine
	validate *validator.Validate
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(engine *core.Engine) ApplicationService {
	return &appService{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *appService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &InputError{Fields: fields}
}

func invalid(field, reason string) error {
	return &InputError{Fields: map[string]string{field: reason}}
}

// TransitionJob parses the requested status and drives the job state machine.
func (s *appService) TransitionJob(ctx context.Context, req TransitionJobRequest) (*JobResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	target, err := core.ParseJobStatus(req.Status)
	if err != nil {
		return nil, invalid("Status", err.Error())
	}
	if req.Actor != "" {
		ctx = core.ContextWithActor(ctx, req.Actor)
	}
	job, err := s.engine.Jobs.TransitionJob(ctx, req.JobID, target)
	if err != nil {
		return nil, err
	}
	return &JobResult{Job: job}, nil
}

// AcceptRequest assigns a technician to a service request and opens its job.
func (s *appService) AcceptRequest(ctx context.Context, req AcceptRequestRequest) (*JobResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	job, err := s.engine.Jobs.AcceptRequest(ctx, req.RequestID, req.TechnicianID)
	if err != nil {
		return nil, err
	}
	return &JobResult{Job: job}, nil
}

// GetJob returns a single job by ID.
func (s *appService) GetJob(ctx context.Context, jobID string) (*JobResult, error) {
	job, err := s.engine.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobResult{Job: job}, nil
}

// ListJobs returns jobs filtered by status and technician; empty values match all.
func (s *appService) ListJobs(ctx context.Context, status, technicianID string) (*JobListResult, error) {
	filter := core.JobFilter{TechnicianID: technicianID}
	if status != "" {
		st, err := core.ParseJobStatus(status)
		if err != nil {
			return nil, invalid("status", err.Error())
		}
		filter.Status = []core.JobStatus{st}
	}
	jobs, err := s.engine.Jobs.GetJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []core.Job{}
	}
	return &JobListResult{Jobs: jobs}, nil
}

// SubmitServiceRequest validates the request and enqueues it as waiting.
func (s *appService) SubmitServiceRequest(ctx context.Context, req SubmitServiceRequestRequest) (*ServiceRequestResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	items := make([]core.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, core.LineItem{
			SKU:       strings.TrimSpace(it.SKU),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			PriceNote: it.PriceNote,
			IsCustom:  it.IsCustom,
		})
	}
	created, err := s.engine.Queue.Push(ctx, core.ServiceRequest{
		CustomerID:  req.CustomerID,
		ServiceType: req.ServiceType,
		Address:     req.Address,
		Items:       items,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return &ServiceRequestResult{Request: created}, nil
}

// GetBacklog returns the dispatch backlog in pop order.
func (s *appService) GetBacklog(ctx context.Context) (*BacklogResult, error) {
	reqs, err := s.engine.Queue.Backlog(ctx)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []core.ServiceRequest{}
	}
	return &BacklogResult{Requests: reqs}, nil
}

// ListTechnicians returns every technician.
func (s *appService) ListTechnicians(ctx context.Context) (*TechnicianListResult, error) {
	techs, err := s.engine.Registry.GetTechnicians(ctx)
	if err != nil {
		return nil, err
	}
	if techs == nil {
		techs = []core.Technician{}
	}
	return &TechnicianListResult{Technicians: techs}, nil
}

// GetStockLevels returns current stock for every SKU.
func (s *appService) GetStockLevels(ctx context.Context) (*StockResult, error) {
	levels, err := s.engine.Ledger.GetStockLevels(ctx)
	if err != nil {
		return nil, err
	}
	res := &StockResult{Levels: levels}
	for _, l := range levels {
		if l.Backordered {
			res.Backordered++
		}
	}
	return res, nil
}

// GetMovements returns the movement history of a SKU.
func (s *appService) GetMovements(ctx context.Context, sku string) (*MovementListResult, error) {
	if _, err := s.engine.Ledger.GetItem(ctx, sku); err != nil {
		return nil, err
	}
	movements, err := s.engine.Ledger.GetMovements(ctx, sku)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []core.StockMovement{}
	}
	return &MovementListResult{SKU: sku, Movements: movements}, nil
}

// RestoreStock records an inflow keyed by the cancellation reference.
func (s *appService) RestoreStock(ctx context.Context, req RestoreStockRequest) (*StockChangeResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	actor := req.Actor
	if actor == "" {
		actor = core.ActorFromContext(ctx, "system")
	}
	note := req.Note
	if note == "" {
		note = fmt.Sprintf("Restored for cancellation %s", req.ReferenceID)
	}
	res, err := s.engine.Ledger.Restore(ctx, core.StockChange{
		SKU:      req.SKU,
		Quantity: req.Quantity,
		RefType:  core.ReferenceCancellation,
		RefID:    req.ReferenceID,
		Actor:    actor,
		Note:     note,
	})
	if err != nil {
		return nil, err
	}
	return &StockChangeResult{
		SKU:         req.SKU,
		NewQuantity: res.NewQuantity,
		Replayed:    res.Replayed,
		Movement:    res.Movement,
	}, nil
}

// ListSupplierOrders returns supplier orders filtered by supplier and status.
func (s *appService) ListSupplierOrders(ctx context.Context, supplierID, status string) (*SupplierOrderListResult, error) {
	st := core.SupplierOrderStatus(strings.ToLower(status))
	switch st {
	case "", core.SupplierOrderDraft, core.SupplierOrderSubmitted:
	default:
		return nil, invalid("status", fmt.Sprintf("unknown supplier order status %q", status))
	}
	orders, err := s.engine.Planner.GetOrders(ctx, supplierID, st)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []core.SupplierOrder{}
	}
	return &SupplierOrderListResult{Orders: orders}, nil
}
