package web

import (
	"net/http"
	"strconv"

	"fueltrade/internal/app"
)

// listEntries handles GET /api/cashbook/entries.
func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListCashbookEntries(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// createEntry handles POST /api/cashbook/entries.
func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req app.CashbookEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.svc.CreateCashbookEntry(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// getEntry handles GET /api/cashbook/entries/{id}.
func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	entry, err := h.svc.GetCashbookEntry(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// updateEntry handles PUT /api/cashbook/entries/{id}. Engine-linked entries
// are refused with 409; allocated entries cannot shrink or flip direction.
func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.CashbookEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.svc.UpdateCashbookEntry(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// deleteEntry handles DELETE /api/cashbook/entries/{id}.
func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCashbookEntry(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listAllocationsByEntry handles GET /api/cashbook/entries/{id}/allocations.
func (h *Handler) listAllocationsByEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	allocs, err := h.svc.ListAllocationsByEntry(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allocs)
}

// cashBalance handles GET /api/cashbook/balance.
func (h *Handler) cashBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.svc.GetCashBalance(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	type response struct {
		Balance string `json:"balance"`
	}
	writeJSON(w, http.StatusOK, response{Balance: balance})
}

// transactionSummary handles GET /api/cashbook/summary.
func (h *Handler) transactionSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.GetTransactionSummary(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// pendingDebts handles GET /api/cashbook/pending-debts.
func (h *Handler) pendingDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := h.svc.GetPendingDebts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debts)
}

// outstandingByHead handles GET /api/cashbook/outstanding.
func (h *Handler) outstandingByHead(w http.ResponseWriter, r *http.Request) {
	lines, err := h.svc.GetOutstandingByAccountHead(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// settleDebt handles POST /api/cashbook/debts/{id}/settle.
func (h *Handler) settleDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.SettleDebtRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DebtEntryID = id
	entry, err := h.svc.MarkDebtAsPaid(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// createAllocation handles POST /api/allocations.
func (h *Handler) createAllocation(w http.ResponseWriter, r *http.Request) {
	var req app.AllocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	alloc, err := h.svc.CreateAllocation(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, alloc)
}

// pendingInvoices handles GET /api/allocations/pending-invoices, optionally
// scoped with ?account_head_id=N.
func (h *Handler) pendingInvoices(w http.ResponseWriter, r *http.Request) {
	var headID *int
	if raw := r.URL.Query().Get("account_head_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			writeError(w, r, "invalid account_head_id "+strconv.Quote(raw), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		headID = &id
	}
	pending, err := h.svc.ListPendingInvoicesForAllocation(r.Context(), headID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}
