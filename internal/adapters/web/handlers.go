package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"fueltrade/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(Metrics)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metricsHandler().ServeHTTP(w, req)
	})

	// 1 MB body limit on every mutating endpoint; the payloads here are
	// small JSON documents.
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20))

		// ── Clients & projects ────────────────────────────────────────────
		r.Get("/api/clients", h.listClients)
		r.Post("/api/clients", h.createClient)
		r.Get("/api/clients/{id}", h.getClient)
		r.Put("/api/clients/{id}", h.updateClient)
		r.Delete("/api/clients/{id}", h.deleteClient)
		r.Get("/api/clients/{id}/projects", h.listProjects)
		r.Post("/api/clients/{id}/projects", h.createProject)
		r.Delete("/api/projects/{id}", h.deleteProject)
		r.Get("/api/account-heads", h.listAccountHeads)

		// ── Sales ─────────────────────────────────────────────────────────
		r.Post("/api/sales/financials", h.computeFinancials)
		r.Get("/api/sales", h.listSales)
		r.Post("/api/sales", h.createSale)
		r.Get("/api/sales/{id}", h.getSale)
		r.Put("/api/sales/{id}", h.updateSale)
		r.Delete("/api/sales/{id}", h.deleteSale)
		r.Post("/api/sales/{id}/status", h.updateSaleStatus)
		r.Get("/api/sales/{id}/payments", h.listPaymentsForSale)

		// ── Invoices ──────────────────────────────────────────────────────
		r.Get("/api/invoices", h.listInvoices)
		r.Post("/api/invoices", h.createInvoice)
		r.Post("/api/invoices/lpo", h.createInvoiceForLPO)
		r.Get("/api/invoices/{id}", h.getInvoice)
		r.Delete("/api/invoices/{id}", h.deleteInvoice)
		r.Get("/api/invoices/{id}/allocations", h.listAllocationsByInvoice)

		// ── Payments ──────────────────────────────────────────────────────
		r.Post("/api/payments", h.createPayment)
		r.Get("/api/payments/{id}", h.getPayment)
		r.Delete("/api/payments/{id}", h.deletePayment)

		// ── Cashbook ──────────────────────────────────────────────────────
		r.Get("/api/cashbook/entries", h.listEntries)
		r.Post("/api/cashbook/entries", h.createEntry)
		r.Get("/api/cashbook/entries/{id}", h.getEntry)
		r.Put("/api/cashbook/entries/{id}", h.updateEntry)
		r.Delete("/api/cashbook/entries/{id}", h.deleteEntry)
		r.Get("/api/cashbook/entries/{id}/allocations", h.listAllocationsByEntry)
		r.Get("/api/cashbook/balance", h.cashBalance)
		r.Get("/api/cashbook/summary", h.transactionSummary)
		r.Get("/api/cashbook/pending-debts", h.pendingDebts)
		r.Get("/api/cashbook/outstanding", h.outstandingByHead)
		r.Post("/api/cashbook/debts/{id}/settle", h.settleDebt)

		// ── Allocations ───────────────────────────────────────────────────
		r.Post("/api/allocations", h.createAllocation)
		r.Get("/api/allocations/pending-invoices", h.pendingInvoices)

		// ── Stock purchases ───────────────────────────────────────────────
		r.Get("/api/stock-purchases", h.listStockPurchases)
		r.Post("/api/stock-purchases", h.createStockPurchase)
		r.Delete("/api/stock-purchases/{id}", h.deleteStockPurchase)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// idParam extracts the {id} URL parameter as an int. On failure it writes a
// 400 and returns false.
func idParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id "+strconv.Quote(raw), "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and writes an appropriate error
// response on failure. Returns HTTP 413 when the body exceeds the limit set
// by RequestBodyLimit; HTTP 400 for all other decode errors.
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
