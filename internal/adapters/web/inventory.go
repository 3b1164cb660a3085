package web

import (
	"net/http"

	"field-dispatch/internal/app"

	"github.com/go-chi/chi/v5"
)

// apiStockLevels handles GET /api/stock.
func (h *Handler) apiStockLevels(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiMovements handles GET /api/stock/{sku}/movements.
func (h *Handler) apiMovements(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetMovements(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRestoreStock handles POST /api/stock/{sku}/restore.
// Body: {"quantity":2,"reference_id":"job-123","note":"job cancelled"}
func (h *Handler) apiRestoreStock(w http.ResponseWriter, r *http.Request) {
	var req app.RestoreStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.SKU = chi.URLParam(r, "sku")

	result, err := h.svc.RestoreStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListSupplierOrders handles GET /api/supplier-orders?supplier=&status=.
func (h *Handler) apiListSupplierOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.ListSupplierOrders(r.Context(), q.Get("supplier"), q.Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
