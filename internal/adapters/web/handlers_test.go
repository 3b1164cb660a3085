package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"field-dispatch/internal/adapters/web"
	"field-dispatch/internal/app"
	"field-dispatch/internal/core"
	"field-dispatch/internal/lock"
	"field-dispatch/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
)

type server struct {
	store   *memory.Store
	handler http.Handler
}

func setupServer(t *testing.T) *server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := memory.New()
	engine := core.NewEngine(store, lock.NewKeyedMutex(5*time.Second), nil, logger, "web-test")
	return &server{
		store:   store,
		handler: web.NewHandler(app.NewAppService(engine), "https://ops.example.com", logger),
	}
}

func (s *server) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	supplier := "ACME"
	if err := s.store.CreateSupplier(ctx, &core.Supplier{ID: supplier, Name: "Acme Parts"}); err != nil {
		t.Fatalf("seed supplier: %v", err)
	}
	if err := s.store.CreateTechnician(ctx, &core.Technician{ID: "T1", Name: "Dana", Availability: core.AvailabilityOnJob}); err != nil {
		t.Fatalf("seed technician: %v", err)
	}
	if err := s.store.CreateInventoryItem(ctx, &core.InventoryItem{
		SKU: "FILTER-X", Name: "Filter", OnHand: 5, ReorderPoint: 3, ReorderQty: 10,
		UnitCost: decimal.NewFromFloat(2.50), SupplierID: &supplier,
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	now := time.Now().UTC()
	if err := s.store.CreateJob(ctx, &core.Job{
		ID: "J1", CustomerID: "C1", ServiceType: "filter replacement", Address: "1 Main St",
		TechnicianID: "T1", Status: core.JobStatusEnRoute,
		Items:     []core.LineItem{{SKU: "FILTER-X", Quantity: 3, UnitPrice: decimal.NewFromInt(10)}},
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id"`
	Fields    map[string]string `json:"fields"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	s := setupServer(t)
	rec := s.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestTransitionJob_CompleteRunsPipeline(t *testing.T) {
	s := setupServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodPost, "/api/jobs/J1/transition", `{"status":"complete","actor":"dispatcher"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[app.JobResult](t, rec)
	if res.Job.Status != core.JobStatusCompleted || !res.Job.FulfillmentApplied {
		t.Errorf("expected completed and fulfilled job, got %+v", res.Job)
	}

	stock := decode[app.StockResult](t, s.do(t, http.MethodGet, "/api/stock", ""))
	if len(stock.Levels) != 1 || stock.Levels[0].OnHand != 2 {
		t.Errorf("expected FILTER-X on hand 2, got %+v", stock.Levels)
	}

	orders := decode[app.SupplierOrderListResult](t, s.do(t, http.MethodGet, "/api/supplier-orders?supplier=ACME&status=draft", ""))
	if len(orders.Orders) != 1 {
		t.Fatalf("expected one draft order, got %d", len(orders.Orders))
	}
	if !orders.Orders[0].TotalCost.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected draft total 25, got %s", orders.Orders[0].TotalCost)
	}

	movements := decode[app.MovementListResult](t, s.do(t, http.MethodGet, "/api/stock/FILTER-X/movements", ""))
	if len(movements.Movements) != 1 || movements.Movements[0].Actor != "dispatcher" {
		t.Errorf("expected one movement by dispatcher, got %+v", movements.Movements)
	}
}

func TestTransitionJob_ActorHeaderRecorded(t *testing.T) {
	s := setupServer(t)
	s.seed(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/J1/transition", strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("X-Actor", "dispatcher-7")
	req.Header.Set("X-Request-ID", "trace-42")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Request-ID"); got != "trace-42" {
		t.Errorf("expected request id echoed, got %q", got)
	}

	movements := decode[app.MovementListResult](t, s.do(t, http.MethodGet, "/api/stock/FILTER-X/movements", ""))
	if len(movements.Movements) != 1 || movements.Movements[0].Actor != "dispatcher-7" {
		t.Errorf("expected one movement by dispatcher-7, got %+v", movements.Movements)
	}
}

func TestRequestContext_RejectsUnsafeHeaders(t *testing.T) {
	s := setupServer(t)
	s.seed(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/J1/transition", strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("X-Actor", "bad actor")
	req.Header.Set("X-Request-ID", "has spaces")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Request-ID"); got == "" || got == "has spaces" {
		t.Errorf("expected a generated request id, got %q", got)
	}

	movements := decode[app.MovementListResult](t, s.do(t, http.MethodGet, "/api/stock/FILTER-X/movements", ""))
	if len(movements.Movements) != 1 || movements.Movements[0].Actor != "web-test" {
		t.Errorf("expected the engine default actor, got %+v", movements.Movements)
	}
}

func TestTransitionJob_ErrorMapping(t *testing.T) {
	s := setupServer(t)
	s.seed(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown job", "/api/jobs/NOPE/transition", `{"status":"completed"}`, http.StatusNotFound, "NOT_FOUND"},
		{"backward transition", "/api/jobs/J1/transition", `{"status":"open"}`, http.StatusConflict, "INVALID_TRANSITION"},
		{"unknown status", "/api/jobs/J1/transition", `{"status":"paused"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing status", "/api/jobs/J1/transition", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"malformed body", "/api/jobs/J1/transition", `{"status":`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			body := decode[errorBody](t, rec)
			if body.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, body.Code)
			}
			if body.RequestID == "" {
				t.Error("expected request_id in error body")
			}
		})
	}
}

func TestTransitionJob_PartialFailureIsRetryable(t *testing.T) {
	s := setupServer(t)
	s.seed(t)
	s.store.FailNext("UpdateJob", 1)

	rec := s.do(t, http.MethodPost, "/api/jobs/J1/transition", `{"status":"completed"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decode[errorBody](t, rec); body.Code != "PARTIALLY_APPLIED" {
		t.Errorf("expected PARTIALLY_APPLIED, got %s", body.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/jobs/J1/transition", `{"status":"completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	stock := decode[app.StockResult](t, s.do(t, http.MethodGet, "/api/stock", ""))
	if stock.Levels[0].OnHand != 2 {
		t.Errorf("expected stock deducted once (2), got %d", stock.Levels[0].OnHand)
	}
}

func TestSubmitAndAcceptRequest(t *testing.T) {
	s := setupServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodPost, "/api/requests",
		`{"customer_id":"C9","service_type":"repair","address":"9 Elm St","items":[{"sku":"FILTER-X","quantity":1,"unit_price":"12.00"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[app.ServiceRequestResult](t, rec)
	if created.Request.Status != core.RequestStatusWaiting {
		t.Errorf("expected waiting, got %s", created.Request.Status)
	}

	backlog := decode[app.BacklogResult](t, s.do(t, http.MethodGet, "/api/dispatch/backlog", ""))
	if len(backlog.Requests) != 1 || backlog.Requests[0].ID != created.Request.ID {
		t.Fatalf("expected request in backlog, got %+v", backlog.Requests)
	}

	rec = s.do(t, http.MethodPost, "/api/requests/"+created.Request.ID+"/accept", `{"technician_id":"T1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	job := decode[app.JobResult](t, rec)
	if job.Job.Status != core.JobStatusOpen || job.Job.TechnicianID != "T1" {
		t.Errorf("expected open job for T1, got %+v", job.Job)
	}

	backlog = decode[app.BacklogResult](t, s.do(t, http.MethodGet, "/api/dispatch/backlog", ""))
	if len(backlog.Requests) != 0 {
		t.Errorf("expected empty backlog, got %d", len(backlog.Requests))
	}

	rec = s.do(t, http.MethodPost, "/api/requests/"+created.Request.ID+"/accept", `{"technician_id":"T1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second accept, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decode[errorBody](t, rec); body.Code != "REQUEST_UNAVAILABLE" {
		t.Errorf("expected REQUEST_UNAVAILABLE, got %s", body.Code)
	}
}

func TestAcceptRequest_UnknownTechnician(t *testing.T) {
	s := setupServer(t)
	rec := s.do(t, http.MethodPost, "/api/requests",
		`{"customer_id":"C9","service_type":"repair","address":"9 Elm St"}`)
	created := decode[app.ServiceRequestResult](t, rec)

	rec = s.do(t, http.MethodPost, "/api/requests/"+created.Request.ID+"/accept", `{"technician_id":"GHOST"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decode[errorBody](t, rec); body.Code != "UNKNOWN_TECHNICIAN" {
		t.Errorf("expected UNKNOWN_TECHNICIAN, got %s", body.Code)
	}
}

func TestSubmitRequest_ValidationFields(t *testing.T) {
	s := setupServer(t)
	rec := s.do(t, http.MethodPost, "/api/requests", `{"customer_id":"C9","items":[{"sku":"A","quantity":0}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode[errorBody](t, rec)
	if body.Code != "INVALID_INPUT" || len(body.Fields) == 0 {
		t.Errorf("expected field-level validation errors, got %+v", body)
	}
}

func TestRestoreStock_Idempotent(t *testing.T) {
	s := setupServer(t)
	s.seed(t)

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/stock/FILTER-X/restore", `{"quantity":4,"reference_id":"job-77"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d: %s", i+1, rec.Code, rec.Body.String())
		}
		res := decode[app.StockChangeResult](t, rec)
		if res.NewQuantity != 9 {
			t.Errorf("attempt %d: expected on hand 9, got %d", i+1, res.NewQuantity)
		}
		if res.Replayed != (i == 1) {
			t.Errorf("attempt %d: unexpected replayed=%v", i+1, res.Replayed)
		}
	}
}

func TestMovements_UnknownSKU(t *testing.T) {
	s := setupServer(t)
	rec := s.do(t, http.MethodGet, "/api/stock/NOPE/movements", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	s := setupServer(t)
	big := `{"status":"` + strings.Repeat("x", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/J1/transition", bytes.NewBufferString(big))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestCORS_OnlyConfiguredOrigins(t *testing.T) {
	s := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for unknown origin, got %q", got)
	}
}
