package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus is the sale lifecycle state.
//
//	Pending LPO → LPO Received → Invoiced → Paid
//
// Manual status updates are allowed, but whenever payments change the engine
// re-derives the correct status from payment totals and overrides a stale one.
type SaleStatus string

const (
	SalePendingLPO  SaleStatus = "Pending LPO"
	SaleLPOReceived SaleStatus = "LPO Received"
	SaleInvoiced    SaleStatus = "Invoiced"
	SalePaid        SaleStatus = "Paid"
)

// ValidSaleStatus reports whether s is one of the four lifecycle states.
func ValidSaleStatus(s SaleStatus) bool {
	switch s {
	case SalePendingLPO, SaleLPOReceived, SaleInvoiced, SalePaid:
		return true
	}
	return false
}

// InvoiceStatus is derived from allocation completeness; it is never set to
// Paid directly by a caller, only by the allocation engine.
type InvoiceStatus string

const (
	InvoiceGenerated InvoiceStatus = "Generated"
	InvoicePaid      InvoiceStatus = "Paid"
)

// AccountHeadCategory tags an account head as a client, supplier or other
// grouping of cashbook entries.
type AccountHeadCategory string

const (
	HeadClient   AccountHeadCategory = "Client"
	HeadSupplier AccountHeadCategory = "Supplier"
	HeadOther    AccountHeadCategory = "Other"
)

// Cashbook entry reference types, linking an entry back to its originating
// record.
const (
	RefPayment     = "payment"
	RefStock       = "stock"
	RefDebtPayment = "debt_payment"
)

// Cashbook transaction types written by the engine itself. Manually created
// entries may carry any label.
const (
	TxnSaleRevenue   = "Sale Revenue"
	TxnStockPurchase = "Stock Purchase"
	TxnStockPayment  = "Stock Payment"
	TxnDebtPayment   = "Debt Payment"
)

// Stock purchase payment statuses. A credit purchase lands in the cashbook as
// a pending debt.
const (
	StockPaidCash   = "cash"
	StockPaidCredit = "credit"
)

type Client struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	CreatedAt     time.Time `json:"created_at"`
}

type AccountHead struct {
	ID        int                 `json:"id"`
	Name      string              `json:"name"`
	Category  AccountHeadCategory `json:"category"`
	ClientID  *int                `json:"client_id,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

type Project struct {
	ID        int       `json:"id"`
	ClientID  int       `json:"client_id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// Sale is a diesel delivery to a client. The five monetary fields are always
// recomputed together from the four base inputs, never patched individually.
type Sale struct {
	ID              int             `json:"id"`
	ClientID        int             `json:"client_id"`
	ClientName      string          `json:"client_name"` // joined from clients
	ProjectID       *int            `json:"project_id,omitempty"`
	LPONumber       string          `json:"lpo_number"`
	SaleDate        string          `json:"sale_date"` // YYYY-MM-DD
	QuantityGallons decimal.Decimal `json:"quantity_gallons"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	COGS            decimal.Decimal `json:"cogs"`
	GrossProfit     decimal.Decimal `json:"gross_profit"`
	SaleStatus      SaleStatus      `json:"sale_status"`
	InvoiceDate     *time.Time      `json:"invoice_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Invoice is 1:1 with a sale. Totals are snapshotted from the sale at
// creation time.
type Invoice struct {
	ID            int             `json:"id"`
	SaleID        int             `json:"sale_id"`
	InvoiceNumber string          `json:"invoice_number"`
	LPONumber     string          `json:"lpo_number"`
	InvoiceDate   string          `json:"invoice_date"` // YYYY-MM-DD
	TotalAmount   decimal.Decimal `json:"total_amount"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
	Status        InvoiceStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Payment struct {
	ID             int             `json:"id"`
	SaleID         int             `json:"sale_id"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	PaymentDate    string          `json:"payment_date"` // YYYY-MM-DD
	PaymentMethod  string          `json:"payment_method"`
	ChequeNumber   *string         `json:"cheque_number,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type StockPurchase struct {
	ID              int             `json:"id"`
	SupplierName    string          `json:"supplier_name"`
	AccountHeadID   int             `json:"account_head_id"`
	PurchaseDate    string          `json:"purchase_date"` // YYYY-MM-DD
	QuantityGallons decimal.Decimal `json:"quantity_gallons"`
	PricePerGallon  decimal.Decimal `json:"price_per_gallon"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	PaymentStatus   string          `json:"payment_status"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CashbookEntry is one row of the flat transaction log. Amount is always
// positive; direction is carried only by IsInflow. IsPending marks an
// unsettled debt excluded from the realized balance.
type CashbookEntry struct {
	ID              int             `json:"id"`
	TransactionDate string          `json:"transaction_date"` // YYYY-MM-DD
	TransactionType string          `json:"transaction_type"`
	AccountHeadID   int             `json:"account_head_id"`
	Amount          decimal.Decimal `json:"amount"`
	IsInflow        bool            `json:"is_inflow"`
	IsPending       bool            `json:"is_pending"`
	ReferenceType   *string         `json:"reference_type,omitempty"`
	ReferenceID     *int            `json:"reference_id,omitempty"`
	Counterparty    string          `json:"counterparty"`
	PaymentMethod   string          `json:"payment_method"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Allocation links part of a cashbook receipt to an invoice's outstanding
// balance.
type Allocation struct {
	ID              int             `json:"id"`
	CashbookEntryID int             `json:"cashbook_entry_id"`
	InvoiceID       int             `json:"invoice_id"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransactionSummary is the cashbook roll-up. PendingDebts sums unsettled
// entries in either direction; AvailableBalance counts settled entries only.
type TransactionSummary struct {
	TotalInflow      decimal.Decimal `json:"total_inflow"`
	TotalOutflow     decimal.Decimal `json:"total_outflow"`
	PendingDebts     decimal.Decimal `json:"pending_debts"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
}

// PendingInvoice is an invoice with room left for allocation.
type PendingInvoice struct {
	Invoice
	Allocated decimal.Decimal `json:"allocated"`
	Pending   decimal.Decimal `json:"pending"`
}

// OutstandingLine is one row of the outstanding-by-account-head report:
// unallocated invoice balances for client heads, open pending debts for
// supplier heads.
type OutstandingLine struct {
	AccountHeadID int                 `json:"account_head_id"`
	HeadName      string              `json:"head_name"`
	Category      AccountHeadCategory `json:"category"`
	Outstanding   decimal.Decimal     `json:"outstanding"`
}
