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

// PaymentInput records a client receipt against one sale.
type PaymentInput struct {
	SaleID         int
	AmountReceived decimal.Decimal
	PaymentDate    string // YYYY-MM-DD
	PaymentMethod  string
	ChequeNumber   *string
}

// PaymentService records and deletes client payments. Every payment produces
// exactly one cashbook inflow entry and, when the sale already has its
// invoice, one allocation covering the full payment amount, so the common
// single-invoice case never needs the manual allocation endpoint.
type PaymentService interface {
	CreatePayment(ctx context.Context, input PaymentInput) (*Payment, error)
	DeletePayment(ctx context.Context, paymentID int) error
	GetPayment(ctx context.Context, paymentID int) (*Payment, error)
	GetPaymentsBySale(ctx context.Context, saleID int) ([]Payment, error)
}

type paymentService struct {
	pool *pgxpool.Pool
}

func NewPaymentService(pool *pgxpool.Pool) PaymentService {
	return &paymentService{pool: pool}
}

func (s *paymentService) CreatePayment(ctx context.Context, input PaymentInput) (*Payment, error) {
	if !input.AmountReceived.IsPositive() {
		return nil, fmt.Errorf("payment amount must be > 0, got %s: %w", input.AmountReceived.StringFixed(2), ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", input.PaymentDate); err != nil {
		return nil, fmt.Errorf("invalid payment date %q: %w", input.PaymentDate, ErrValidation)
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return nil, fmt.Errorf("payment method is required: %w", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the sale: payment totals drive its status, so two concurrent
	// receipts must serialize here.
	var (
		clientID   int
		clientName string
	)
	err = tx.QueryRow(ctx, `
		SELECT s.client_id, c.name
		FROM sales s
		JOIN clients c ON c.id = s.client_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`, input.SaleID).Scan(&clientID, &clientName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", input.SaleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", input.SaleID, err)
	}

	var accountHeadID int
	err = tx.QueryRow(ctx, "SELECT id FROM account_heads WHERE client_id = $1", clientID).Scan(&accountHeadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account head for client %d: %w", clientID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve account head for client %d: %w", clientID, err)
	}

	var p Payment
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (sale_id, amount_received, payment_date, payment_method, cheque_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sale_id, amount_received, payment_date::text, payment_method, cheque_number, created_at
	`, input.SaleID, input.AmountReceived, input.PaymentDate, input.PaymentMethod, input.ChequeNumber).Scan(
		&p.ID, &p.SaleID, &p.AmountReceived, &p.PaymentDate, &p.PaymentMethod, &p.ChequeNumber, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	var entryID int
	err = tx.QueryRow(ctx, `
		INSERT INTO cashbook_entries (transaction_date, transaction_type, account_head_id, amount,
		                              is_inflow, is_pending, reference_type, reference_id,
		                              counterparty, payment_method)
		VALUES ($1, $2, $3, $4, TRUE, FALSE, $5, $6, $7, $8)
		RETURNING id
	`, input.PaymentDate, TxnSaleRevenue, accountHeadID, input.AmountReceived,
		RefPayment, p.ID, clientName, input.PaymentMethod).Scan(&entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cashbook entry for payment %d: %w", p.ID, err)
	}

	// Auto-allocate the full receipt when the sale's invoice already exists.
	// The checked path is used on purpose: an overpayment fails the whole
	// payment instead of being silently clamped.
	var invoiceID *int
	err = tx.QueryRow(ctx, "SELECT id FROM invoices WHERE sale_id = $1", input.SaleID).Scan(&invoiceID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up invoice for sale %d: %w", input.SaleID, err)
	}
	if invoiceID != nil {
		if _, err := allocateTx(ctx, tx, entryID, *invoiceID, input.AmountReceived); err != nil {
			return nil, err
		}
	}

	if err := recomputeSaleStatusTx(ctx, tx, input.SaleID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return &p, nil
}

// DeletePayment removes the payment, its cashbook entry and that entry's
// allocations, then re-derives the statuses of every touched invoice and of
// the sale — a Paid sale no longer fully covered drops back to Invoiced.
func (s *paymentService) DeletePayment(ctx context.Context, paymentID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var saleID int
	err = tx.QueryRow(ctx, "SELECT sale_id FROM payments WHERE id = $1 FOR UPDATE", paymentID).Scan(&saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("payment %d: %w", paymentID, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}

	if err := deletePaymentEntryTx(ctx, tx, paymentID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM payments WHERE id = $1", paymentID); err != nil {
		return fmt.Errorf("failed to delete payment %d: %w", paymentID, err)
	}

	if err := recomputeSaleStatusTx(ctx, tx, saleID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment deletion: %w", err)
	}
	return nil
}

// deletePaymentEntryTx removes the cashbook entry linked to a payment,
// allocations first, and re-derives the status of each invoice those
// allocations were funding.
func deletePaymentEntryTx(ctx context.Context, tx pgx.Tx, paymentID int) error {
	var entryID *int
	err := tx.QueryRow(ctx,
		"SELECT id FROM cashbook_entries WHERE reference_type = $1 AND reference_id = $2",
		RefPayment, paymentID).Scan(&entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil // no linked entry, nothing to unwind
		}
		return fmt.Errorf("failed to find cashbook entry for payment %d: %w", paymentID, err)
	}

	invoiceIDs, err := deleteAllocationsForEntryTx(ctx, tx, *entryID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM cashbook_entries WHERE id = $1", *entryID); err != nil {
		return fmt.Errorf("failed to delete cashbook entry %d: %w", *entryID, err)
	}

	for _, invoiceID := range invoiceIDs {
		if err := recomputeInvoiceStatusTx(ctx, tx, invoiceID); err != nil {
			return err
		}
	}
	return nil
}

// deleteAllocationsForEntryTx removes every allocation funded by the entry
// and returns the distinct invoice IDs that lost backing, so callers can
// re-derive their statuses.
func deleteAllocationsForEntryTx(ctx context.Context, tx pgx.Tx, entryID int) ([]int, error) {
	rows, err := tx.Query(ctx, `
		DELETE FROM cashbook_payment_allocations
		WHERE cashbook_entry_id = $1
		RETURNING invoice_id
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete allocations for entry %d: %w", entryID, err)
	}
	defer rows.Close()

	seen := make(map[int]bool)
	var invoiceIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted allocation: %w", err)
		}
		if !seen[id] {
			seen[id] = true
			invoiceIDs = append(invoiceIDs, id)
		}
	}
	return invoiceIDs, rows.Err()
}

const paymentColumns = `
	id, sale_id, amount_received, payment_date::text, payment_method, cheque_number, created_at`

func (s *paymentService) GetPayment(ctx context.Context, paymentID int) (*Payment, error) {
	var p Payment
	err := s.pool.QueryRow(ctx, "SELECT"+paymentColumns+" FROM payments WHERE id = $1", paymentID).Scan(
		&p.ID, &p.SaleID, &p.AmountReceived, &p.PaymentDate, &p.PaymentMethod, &p.ChequeNumber, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %d: %w", paymentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}
	return &p, nil
}

func (s *paymentService) GetPaymentsBySale(ctx context.Context, saleID int) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, "SELECT"+paymentColumns+" FROM payments WHERE sale_id = $1 ORDER BY id", saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments for sale %d: %w", saleID, err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.AmountReceived, &p.PaymentDate, &p.PaymentMethod, &p.ChequeNumber, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
