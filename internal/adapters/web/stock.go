package web

import (
	"net/http"

	"fueltrade/internal/app"
)

// listStockPurchases handles GET /api/stock-purchases.
func (h *Handler) listStockPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.svc.ListStockPurchases(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

// createStockPurchase handles POST /api/stock-purchases. A credit purchase
// books a pending debt in the cashbook.
func (h *Handler) createStockPurchase(w http.ResponseWriter, r *http.Request) {
	var req app.StockPurchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	purchase, err := h.svc.CreateStockPurchase(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

// deleteStockPurchase handles DELETE /api/stock-purchases/{id}.
func (h *Handler) deleteStockPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteStockPurchase(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
