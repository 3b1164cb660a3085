package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"field-dispatch/internal/app"
	"field-dispatch/internal/config"
	"field-dispatch/internal/core"

	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorBody(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeErrorBody(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps an engine error to its HTTP status and error code.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		inputErr    *app.InputError
		pipelineErr *core.PipelineError
	)
	requestID := requestIDFromContext(r.Context())
	log := logFromContext(r.Context(), h.log)
	switch {
	case errors.As(err, &inputErr):
		writeErrorBody(w, http.StatusBadRequest, errorResponse{
			Error:     err.Error(),
			Code:      "INVALID_INPUT",
			RequestID: requestID,
			Fields:    inputErr.Fields,
		})
	// Before the sentinels: the wrapped cause may itself be ErrNotFound.
	case errors.As(err, &pipelineErr):
		config.LogError(log, "web", "writeServiceError", "completion partially applied",
			logrus.Fields{"job_id": pipelineErr.JobID, "step": pipelineErr.Step}, err)
		writeError(w, r, err.Error(), "PARTIALLY_APPLIED", http.StatusServiceUnavailable)
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, r, err.Error(), "INVALID_INPUT", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidTransition):
		writeError(w, r, err.Error(), "INVALID_TRANSITION", http.StatusConflict)
	case errors.Is(err, core.ErrRequestUnavailable):
		writeError(w, r, err.Error(), "REQUEST_UNAVAILABLE", http.StatusConflict)
	case errors.Is(err, core.ErrUnknownTechnician):
		writeError(w, r, err.Error(), "UNKNOWN_TECHNICIAN", http.StatusNotFound)
	case errors.Is(err, core.ErrUnknownItem):
		writeError(w, r, err.Error(), "UNKNOWN_ITEM", http.StatusNotFound)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrStorageUnavailable):
		writeError(w, r, "storage unavailable, retry later", "STORAGE_UNAVAILABLE", http.StatusServiceUnavailable)
	case errors.Is(err, core.ErrLockUnavailable):
		writeError(w, r, "resource busy, retry later", "BUSY", http.StatusServiceUnavailable)
	default:
		config.LogError(log, "web", "writeServiceError", "unhandled error",
			logrus.Fields{"path": r.URL.Path}, err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
