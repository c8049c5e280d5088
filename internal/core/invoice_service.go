package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// InvoiceInput creates a single invoice against one sale.
type InvoiceInput struct {
	SaleID        int
	InvoiceNumber string
	InvoiceDate   string // YYYY-MM-DD
}

// InvoiceService creates and deletes invoices. Invoice status is owned by the
// allocation engine; nothing here sets an invoice to Paid directly.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, input InvoiceInput) (*Invoice, error)
	// CreateInvoiceForLPO invoices every sale sharing the LPO number that is
	// in LPO Received status, all under the same invoice number.
	CreateInvoiceForLPO(ctx context.Context, lpoNumber, invoiceNumber, invoiceDate string) ([]Invoice, error)
	DeleteInvoice(ctx context.Context, invoiceID int) error
	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)
	GetInvoices(ctx context.Context) ([]Invoice, error)
}

type invoiceService struct {
	pool *pgxpool.Pool
}

func NewInvoiceService(pool *pgxpool.Pool) InvoiceService {
	return &invoiceService{pool: pool}
}

func validateInvoiceHeader(number, date string) error {
	if strings.TrimSpace(number) == "" {
		return fmt.Errorf("invoice number is required: %w", ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid invoice date %q: %w", date, ErrValidation)
	}
	return nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, input InvoiceInput) (*Invoice, error) {
	if err := validateInvoiceHeader(input.InvoiceNumber, input.InvoiceDate); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	invoice, err := createInvoiceTx(ctx, tx, input.SaleID, input.InvoiceNumber, input.InvoiceDate)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice creation: %w", err)
	}
	return invoice, nil
}

// createInvoiceTx snapshots the sale's totals into a new invoice and fires the
// sale's transition to Invoiced, all against a locked sale row.
func createInvoiceTx(ctx context.Context, tx pgx.Tx, saleID int, invoiceNumber, invoiceDate string) (*Invoice, error) {
	var (
		lpoNumber       string
		totalAmount     decimal.Decimal
		vatAmount       decimal.Decimal
		saleInvoiceDate *time.Time
	)
	err := tx.QueryRow(ctx,
		"SELECT lpo_number, total_amount, vat_amount, invoice_date FROM sales WHERE id = $1 FOR UPDATE",
		saleID).Scan(&lpoNumber, &totalAmount, &vatAmount, &saleInvoiceDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", saleID, err)
	}

	var hasInvoice bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM invoices WHERE sale_id = $1)", saleID).Scan(&hasInvoice); err != nil {
		return nil, fmt.Errorf("failed to check invoices for sale %d: %w", saleID, err)
	}
	if hasInvoice {
		return nil, fmt.Errorf("sale %d is already invoiced: %w", saleID, ErrConflict)
	}

	var inv Invoice
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (sale_id, invoice_number, lpo_number, invoice_date, total_amount, vat_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, sale_id, invoice_number, lpo_number, invoice_date::text, total_amount, vat_amount, status, created_at
	`, saleID, invoiceNumber, lpoNumber, invoiceDate, totalAmount, vatAmount, InvoiceGenerated).Scan(
		&inv.ID, &inv.SaleID, &inv.InvoiceNumber, &inv.LPONumber, &inv.InvoiceDate,
		&inv.TotalAmount, &inv.VATAmount, &inv.Status, &inv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice for sale %d: %w", saleID, err)
	}

	if saleInvoiceDate == nil {
		_, err = tx.Exec(ctx, "UPDATE sales SET sale_status = $1, invoice_date = NOW() WHERE id = $2", SaleInvoiced, saleID)
	} else {
		_, err = tx.Exec(ctx, "UPDATE sales SET sale_status = $1 WHERE id = $2", SaleInvoiced, saleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark sale %d as invoiced: %w", saleID, err)
	}
	return &inv, nil
}

func (s *invoiceService) CreateInvoiceForLPO(ctx context.Context, lpoNumber, invoiceNumber, invoiceDate string) ([]Invoice, error) {
	if strings.TrimSpace(lpoNumber) == "" {
		return nil, fmt.Errorf("LPO number is required: %w", ErrValidation)
	}
	if err := validateInvoiceHeader(invoiceNumber, invoiceDate); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		"SELECT id FROM sales WHERE lpo_number = $1 AND sale_status = $2 ORDER BY id FOR UPDATE",
		lpoNumber, SaleLPOReceived)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales for LPO %q: %w", lpoNumber, err)
	}
	var saleIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sale id: %w", err)
		}
		saleIDs = append(saleIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales for LPO %q: %w", lpoNumber, err)
	}
	if len(saleIDs) == 0 {
		return nil, fmt.Errorf("no sales in %s status for LPO %q: %w", SaleLPOReceived, lpoNumber, ErrNotFound)
	}

	// Each sale still gets exactly one invoice; they just share the invoice
	// number and LPO identifiers.
	var invoices []Invoice
	for _, saleID := range saleIDs {
		inv, err := createInvoiceTx(ctx, tx, saleID, invoiceNumber, invoiceDate)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit LPO invoicing: %w", err)
	}
	return invoices, nil
}

// DeleteInvoice refuses to touch an invoice whose sale has payments; callers
// must delete those payments first. Otherwise it removes the invoice's
// allocations, the invoice, and reverts the sale to LPO Received.
func (s *invoiceService) DeleteInvoice(ctx context.Context, invoiceID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var saleID int
	err = tx.QueryRow(ctx, "SELECT sale_id FROM invoices WHERE id = $1 FOR UPDATE", invoiceID).Scan(&saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}

	var paymentCount int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM payments WHERE sale_id = $1", saleID).Scan(&paymentCount); err != nil {
		return fmt.Errorf("failed to count payments for sale %d: %w", saleID, err)
	}
	if paymentCount > 0 {
		return fmt.Errorf("invoice %d has %d payment(s) against it: %w", invoiceID, paymentCount, ErrConflict)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM cashbook_payment_allocations WHERE invoice_id = $1", invoiceID); err != nil {
		return fmt.Errorf("failed to delete allocations for invoice %d: %w", invoiceID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM invoices WHERE id = $1", invoiceID); err != nil {
		return fmt.Errorf("failed to delete invoice %d: %w", invoiceID, err)
	}
	if _, err := tx.Exec(ctx, "UPDATE sales SET sale_status = $1 WHERE id = $2", SaleLPOReceived, saleID); err != nil {
		return fmt.Errorf("failed to revert sale %d to %s: %w", saleID, SaleLPOReceived, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit invoice deletion: %w", err)
	}
	return nil
}

const invoiceColumns = `
	id, sale_id, invoice_number, lpo_number, invoice_date::text, total_amount, vat_amount, status, created_at`

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	var inv Invoice
	err := s.pool.QueryRow(ctx, "SELECT"+invoiceColumns+" FROM invoices WHERE id = $1", invoiceID).Scan(
		&inv.ID, &inv.SaleID, &inv.InvoiceNumber, &inv.LPONumber, &inv.InvoiceDate,
		&inv.TotalAmount, &inv.VATAmount, &inv.Status, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	return &inv, nil
}

func (s *invoiceService) GetInvoices(ctx context.Context) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx, "SELECT"+invoiceColumns+" FROM invoices ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(
			&inv.ID, &inv.SaleID, &inv.InvoiceNumber, &inv.LPONumber, &inv.InvoiceDate,
			&inv.TotalAmount, &inv.VATAmount, &inv.Status, &inv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// recomputeInvoiceStatusTx re-derives an invoice's status from its allocation
// total: Paid when allocations cover the total within PaidEpsilon, Generated
// otherwise. The invoice row is locked here so the allocation sum and the
// status write are one serialized step even on paths that arrive without a
// lock, such as entry or payment deletion.
func recomputeInvoiceStatusTx(ctx context.Context, tx pgx.Tx, invoiceID int) error {
	var total decimal.Decimal
	err := tx.QueryRow(ctx, "SELECT total_amount FROM invoices WHERE id = $1 FOR UPDATE", invoiceID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}

	allocated, err := sumAllocationsForInvoice(ctx, tx, invoiceID)
	if err != nil {
		return err
	}

	status := InvoiceGenerated
	if allocated.IsPositive() && fullyPaid(allocated, total) {
		status = InvoicePaid
	}
	if _, err := tx.Exec(ctx, "UPDATE invoices SET status = $1 WHERE id = $2", status, invoiceID); err != nil {
		return fmt.Errorf("failed to set invoice %d status to %s: %w", invoiceID, status, err)
	}
	return nil
}
