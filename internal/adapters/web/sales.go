package web

import (
	"net/http"
	"strconv"

	"fueltrade/internal/app"
)

// computeFinancials handles POST /api/sales/financials: a dry-run of the
// sale calculator, nothing is persisted.
func (h *Handler) computeFinancials(w http.ResponseWriter, r *http.Request) {
	var req app.SaleFinancialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.ComputeSaleFinancials(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// listSales handles GET /api/sales?client_id=N.
func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	var clientID *int
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			writeError(w, r, "invalid client_id "+strconv.Quote(raw), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		clientID = &id
	}
	sales, err := h.svc.ListSales(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

// createSale handles POST /api/sales.
func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req app.SaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

// getSale handles GET /api/sales/{id}.
func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	sale, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// updateSale handles PUT /api/sales/{id}. The derived monetary fields are
// recomputed from the submitted base inputs.
func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.SaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.UpdateSale(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// deleteSale handles DELETE /api/sales/{id}.
func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteSale(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateSaleStatus handles POST /api/sales/{id}/status.
func (h *Handler) updateSaleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.svc.UpdateSaleStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// listPaymentsForSale handles GET /api/sales/{id}/payments.
func (h *Handler) listPaymentsForSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	payments, err := h.svc.ListPaymentsForSale(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// createPayment handles POST /api/payments. A successful payment also books
// its cashbook entry and, when the sale is invoiced, the full allocation.
func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	payment, err := h.svc.CreatePayment(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// getPayment handles GET /api/payments/{id}.
func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	payment, err := h.svc.GetPayment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// deletePayment handles DELETE /api/payments/{id}.
func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeletePayment(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
