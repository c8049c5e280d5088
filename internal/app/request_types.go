package app

// SaleFinancialsRequest carries the four base inputs of the sale calculator.
// Amounts are decimal strings; VATRate empty means the 5% default.
type SaleFinancialsRequest struct {
	QuantityGallons string `json:"quantity_gallons"`
	SalePrice       string `json:"sale_price"`
	PurchasePrice   string `json:"purchase_price"`
	VATRate         string `json:"vat_rate,omitempty"`
}

// ClientRequest is the input for creating or updating a client.
type ClientRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
}

// SaleRequest is the input for creating or updating a sale.
type SaleRequest struct {
	ClientID        int    `json:"client_id"`
	ProjectID       *int   `json:"project_id,omitempty"`
	LPONumber       string `json:"lpo_number"`
	SaleDate        string `json:"sale_date"` // YYYY-MM-DD
	QuantityGallons string `json:"quantity_gallons"`
	SalePrice       string `json:"sale_price"`
	PurchasePrice   string `json:"purchase_price"`
	VATRate         string `json:"vat_rate,omitempty"` // empty means 5%
}

// InvoiceRequest is the input for invoicing a single sale.
type InvoiceRequest struct {
	SaleID        int    `json:"sale_id"`
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"` // YYYY-MM-DD
}

// PaymentRequest is the input for recording a client receipt against a sale.
type PaymentRequest struct {
	SaleID         int     `json:"sale_id"`
	AmountReceived string  `json:"amount_received"`
	PaymentDate    string  `json:"payment_date"` // YYYY-MM-DD
	PaymentMethod  string  `json:"payment_method"`
	ChequeNumber   *string `json:"cheque_number,omitempty"`
}

// CashbookEntryRequest is the input for a manual ledger entry. Reference
// fields are engine-owned and never accepted from callers.
type CashbookEntryRequest struct {
	TransactionDate string `json:"transaction_date"` // YYYY-MM-DD
	TransactionType string `json:"transaction_type"`
	AccountHeadID   int    `json:"account_head_id"`
	Amount          string `json:"amount"`
	IsInflow        bool   `json:"is_inflow"`
	IsPending       bool   `json:"is_pending"`
	Counterparty    string `json:"counterparty,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// AllocationRequest applies part of a cashbook entry to an invoice.
type AllocationRequest struct {
	CashbookEntryID int    `json:"cashbook_entry_id"`
	InvoiceID       int    `json:"invoice_id"`
	AmountAllocated string `json:"amount_allocated"`
}

// SettleDebtRequest settles a pending ledger entry.
type SettleDebtRequest struct {
	DebtEntryID   int    `json:"debt_entry_id"`
	PaidAmount    string `json:"paid_amount"`
	PaymentMethod string `json:"payment_method"`
	PaymentDate   string `json:"payment_date"` // YYYY-MM-DD
}

// StockPurchaseRequest records diesel bought from a supplier.
type StockPurchaseRequest struct {
	SupplierName    string `json:"supplier_name"`
	PurchaseDate    string `json:"purchase_date"` // YYYY-MM-DD
	QuantityGallons string `json:"quantity_gallons"`
	PricePerGallon  string `json:"price_per_gallon"`
	PaymentStatus   string `json:"payment_status"` // "cash" or "credit"
	PaymentMethod   string `json:"payment_method,omitempty"`
	Notes           string `json:"notes,omitempty"`
}
