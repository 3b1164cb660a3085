package web

import (
	"net/http"

	"field-dispatch/internal/app"

	"github.com/go-chi/chi/v5"
)

// apiListJobs handles GET /api/jobs?status=&technician=.
func (h *Handler) apiListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.ListJobs(r.Context(), q.Get("status"), q.Get("technician"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetJob handles GET /api/jobs/{id}.
func (h *Handler) apiGetJob(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiTransitionJob handles POST /api/jobs/{id}/transition.
// Body: {"status":"completed","actor":"dispatcher-7"}
func (h *Handler) apiTransitionJob(w http.ResponseWriter, r *http.Request) {
	var req app.TransitionJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.JobID = chi.URLParam(r, "id")

	result, err := h.svc.TransitionJob(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiSubmitRequest handles POST /api/requests.
func (h *Handler) apiSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req app.SubmitServiceRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.SubmitServiceRequest(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiAcceptRequest handles POST /api/requests/{id}/accept.
// Body: {"technician_id":"tech-1"}
func (h *Handler) apiAcceptRequest(w http.ResponseWriter, r *http.Request) {
	var req app.AcceptRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RequestID = chi.URLParam(r, "id")

	result, err := h.svc.AcceptRequest(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiBacklog handles GET /api/dispatch/backlog.
func (h *Handler) apiBacklog(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetBacklog(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListTechnicians handles GET /api/technicians.
func (h *Handler) apiListTechnicians(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListTechnicians(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
