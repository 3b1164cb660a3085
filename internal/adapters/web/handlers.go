package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"field-dispatch/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
	log    logrus.FieldLogger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, log logrus.FieldLogger) http.Handler {
	h := &Handler{
		svc: svc,
		log: log.WithField("module", "web"),
	}

	r := chi.NewRouter()
	r.Use(RequestContext(h.log))
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(allowedOrigins))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// ── Jobs ──────────────────────────────────────────────────────────────
		r.Get("/api/jobs", h.apiListJobs)
		r.Get("/api/jobs/{id}", h.apiGetJob)
		r.Post("/api/jobs/{id}/transition", h.apiTransitionJob)

		// ── Service requests & dispatch ───────────────────────────────────────
		r.Post("/api/requests", h.apiSubmitRequest)
		r.Post("/api/requests/{id}/accept", h.apiAcceptRequest)
		r.Get("/api/dispatch/backlog", h.apiBacklog)
		r.Get("/api/technicians", h.apiListTechnicians)

		// ── Inventory ─────────────────────────────────────────────────────────
		r.Get("/api/stock", h.apiStockLevels)
		r.Get("/api/stock/{sku}/movements", h.apiMovements)
		r.Post("/api/stock/{sku}/restore", h.apiRestoreStock)

		// ── Replenishment ─────────────────────────────────────────────────────
		r.Get("/api/supplier-orders", h.apiListSupplierOrders)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
