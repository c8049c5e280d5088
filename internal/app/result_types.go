package app

import "time"

// SaleFinancialsResult is returned by ComputeSaleFinancials. All amounts are
// fixed 2-decimal-place strings.
type SaleFinancialsResult struct {
	Subtotal    string `json:"subtotal"`
	VATAmount   string `json:"vat_amount"`
	TotalAmount string `json:"total_amount"`
	COGS        string `json:"cogs"`
	GrossProfit string `json:"gross_profit"`
}

// ClientView is the boundary representation of a client.
type ClientView struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProjectView struct {
	ID       int    `json:"id"`
	ClientID int    `json:"client_id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

type AccountHeadView struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	ClientID *int   `json:"client_id,omitempty"`
}

// SaleView is the boundary representation of a sale, derived fields included.
type SaleView struct {
	ID              int        `json:"id"`
	ClientID        int        `json:"client_id"`
	ClientName      string     `json:"client_name"`
	ProjectID       *int       `json:"project_id,omitempty"`
	LPONumber       string     `json:"lpo_number"`
	SaleDate        string     `json:"sale_date"`
	QuantityGallons string     `json:"quantity_gallons"`
	SalePrice       string     `json:"sale_price"`
	PurchasePrice   string     `json:"purchase_price"`
	VATRate         string     `json:"vat_rate"`
	Subtotal        string     `json:"subtotal"`
	VATAmount       string     `json:"vat_amount"`
	TotalAmount     string     `json:"total_amount"`
	COGS            string     `json:"cogs"`
	GrossProfit     string     `json:"gross_profit"`
	SaleStatus      string     `json:"sale_status"`
	InvoiceDate     *time.Time `json:"invoice_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type InvoiceView struct {
	ID            int       `json:"id"`
	SaleID        int       `json:"sale_id"`
	InvoiceNumber string    `json:"invoice_number"`
	LPONumber     string    `json:"lpo_number"`
	InvoiceDate   string    `json:"invoice_date"`
	TotalAmount   string    `json:"total_amount"`
	VATAmount     string    `json:"vat_amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type PaymentView struct {
	ID             int       `json:"id"`
	SaleID         int       `json:"sale_id"`
	AmountReceived string    `json:"amount_received"`
	PaymentDate    string    `json:"payment_date"`
	PaymentMethod  string    `json:"payment_method"`
	ChequeNumber   *string   `json:"cheque_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type CashbookEntryView struct {
	ID              int       `json:"id"`
	TransactionDate string    `json:"transaction_date"`
	TransactionType string    `json:"transaction_type"`
	AccountHeadID   int       `json:"account_head_id"`
	Amount          string    `json:"amount"`
	IsInflow        bool      `json:"is_inflow"`
	IsPending       bool      `json:"is_pending"`
	ReferenceType   *string   `json:"reference_type,omitempty"`
	ReferenceID     *int      `json:"reference_id,omitempty"`
	Counterparty    string    `json:"counterparty,omitempty"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type AllocationView struct {
	ID              int       `json:"id"`
	CashbookEntryID int       `json:"cashbook_entry_id"`
	InvoiceID       int       `json:"invoice_id"`
	AmountAllocated string    `json:"amount_allocated"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionSummaryView is the cashbook roll-up.
type TransactionSummaryView struct {
	TotalInflow      string `json:"total_inflow"`
	TotalOutflow     string `json:"total_outflow"`
	PendingDebts     string `json:"pending_debts"`
	AvailableBalance string `json:"available_balance"`
}

// PendingInvoiceView is an invoice with room left for allocation.
type PendingInvoiceView struct {
	InvoiceView
	Allocated string `json:"allocated"`
	Pending   string `json:"pending"`
}

// OutstandingView is one row of the outstanding-by-account-head report.
type OutstandingView struct {
	AccountHeadID int    `json:"account_head_id"`
	HeadName      string `json:"head_name"`
	Category      string `json:"category"`
	Outstanding   string `json:"outstanding"`
}

type StockPurchaseView struct {
	ID              int       `json:"id"`
	SupplierName    string    `json:"supplier_name"`
	AccountHeadID   int       `json:"account_head_id"`
	PurchaseDate    string    `json:"purchase_date"`
	QuantityGallons string    `json:"quantity_gallons"`
	PricePerGallon  string    `json:"price_per_gallon"`
	TotalCost       string    `json:"total_cost"`
	PaymentStatus   string    `json:"payment_status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
