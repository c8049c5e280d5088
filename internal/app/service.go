package app

import "context"

// ApplicationService is the single interface all transport adapters call.
// It decouples presentation from business logic: monetary amounts cross this
// boundary as fixed 2-decimal-place strings, never as floats, so repeated
// parse/format cycles cannot introduce cent-level drift.
type ApplicationService interface {
	// ComputeSaleFinancials derives subtotal, VAT, total, COGS and gross
	// profit from the four base inputs without persisting anything.
	ComputeSaleFinancials(ctx context.Context, req SaleFinancialsRequest) (*SaleFinancialsResult, error)

	// CreateClient creates a client and its ledger account head.
	CreateClient(ctx context.Context, req ClientRequest) (*ClientView, error)

	// UpdateClient edits a client and keeps its account head name in sync.
	UpdateClient(ctx context.Context, clientID int, req ClientRequest) (*ClientView, error)

	// DeleteClient removes the client and everything hanging off it: sales,
	// invoices, payments, allocations, ledger entries, projects, the head.
	DeleteClient(ctx context.Context, clientID int) error

	GetClient(ctx context.Context, clientID int) (*ClientView, error)
	ListClients(ctx context.Context) ([]ClientView, error)

	CreateProject(ctx context.Context, clientID int, name, location string) (*ProjectView, error)
	ListProjects(ctx context.Context, clientID int) ([]ProjectView, error)
	DeleteProject(ctx context.Context, projectID int) error

	ListAccountHeads(ctx context.Context) ([]AccountHeadView, error)

	// CreateSale records a diesel sale; the five derived monetary fields are
	// computed server-side from the four base inputs.
	CreateSale(ctx context.Context, req SaleRequest) (*SaleView, error)

	// UpdateSale replaces the base inputs and atomically re-derives all
	// monetary fields, then re-checks the sale status against its payments.
	UpdateSale(ctx context.Context, saleID int, req SaleRequest) (*SaleView, error)

	DeleteSale(ctx context.Context, saleID int) error
	UpdateSaleStatus(ctx context.Context, saleID int, status string) (*SaleView, error)
	GetSale(ctx context.Context, saleID int) (*SaleView, error)
	ListSales(ctx context.Context, clientID *int) ([]SaleView, error)

	CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceView, error)

	// CreateInvoiceForLPO invoices every LPO Received sale sharing the LPO
	// number, one invoice per sale under a shared invoice number.
	CreateInvoiceForLPO(ctx context.Context, lpoNumber, invoiceNumber, invoiceDate string) ([]InvoiceView, error)

	DeleteInvoice(ctx context.Context, invoiceID int) error
	GetInvoice(ctx context.Context, invoiceID int) (*InvoiceView, error)
	ListInvoices(ctx context.Context) ([]InvoiceView, error)

	// CreatePayment records a client receipt: one cashbook inflow entry plus,
	// when the sale is already invoiced, a full allocation against it.
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentView, error)

	DeletePayment(ctx context.Context, paymentID int) error
	GetPayment(ctx context.Context, paymentID int) (*PaymentView, error)
	ListPaymentsForSale(ctx context.Context, saleID int) ([]PaymentView, error)

	CreateCashbookEntry(ctx context.Context, req CashbookEntryRequest) (*CashbookEntryView, error)
	UpdateCashbookEntry(ctx context.Context, entryID int, req CashbookEntryRequest) (*CashbookEntryView, error)
	DeleteCashbookEntry(ctx context.Context, entryID int) error
	GetCashbookEntry(ctx context.Context, entryID int) (*CashbookEntryView, error)
	ListCashbookEntries(ctx context.Context) ([]CashbookEntryView, error)

	// GetCashBalance returns the realized balance; pending debts are excluded.
	GetCashBalance(ctx context.Context) (string, error)
	GetTransactionSummary(ctx context.Context) (*TransactionSummaryView, error)
	GetPendingDebts(ctx context.Context) ([]CashbookEntryView, error)
	GetOutstandingByAccountHead(ctx context.Context) ([]OutstandingView, error)

	// MarkDebtAsPaid settles a pending entry and records the offsetting cash
	// movement.
	MarkDebtAsPaid(ctx context.Context, req SettleDebtRequest) (*CashbookEntryView, error)

	// CreateAllocation applies part of a cashbook receipt to an invoice,
	// enforcing both the entry-side and invoice-side remaining-balance caps.
	CreateAllocation(ctx context.Context, req AllocationRequest) (*AllocationView, error)

	ListAllocationsByEntry(ctx context.Context, entryID int) ([]AllocationView, error)
	ListAllocationsByInvoice(ctx context.Context, invoiceID int) ([]AllocationView, error)
	ListPendingInvoicesForAllocation(ctx context.Context, accountHeadID *int) ([]PendingInvoiceView, error)

	CreateStockPurchase(ctx context.Context, req StockPurchaseRequest) (*StockPurchaseView, error)
	DeleteStockPurchase(ctx context.Context, purchaseID int) error
	ListStockPurchases(ctx context.Context) ([]StockPurchaseView, error)
}
