package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AllocationService distributes cashbook receipts across invoice balances.
// Both caps, the receipt's unallocated remainder and the invoice's pending
// balance, are enforced on every insert; violating either is a hard failure,
// never a clamp.
type AllocationService interface {
	CreateAllocation(ctx context.Context, cashbookEntryID, invoiceID int, amountAllocated decimal.Decimal) (*Allocation, error)
	GetAllocationsByEntry(ctx context.Context, cashbookEntryID int) ([]Allocation, error)
	GetAllocationsByInvoice(ctx context.Context, invoiceID int) ([]Allocation, error)
	// GetPendingInvoicesForAllocation lists invoices still open for
	// allocation, optionally scoped to the client behind an account head.
	GetPendingInvoicesForAllocation(ctx context.Context, accountHeadID *int) ([]PendingInvoice, error)
}

type allocationService struct {
	pool *pgxpool.Pool
}

func NewAllocationService(pool *pgxpool.Pool) AllocationService {
	return &allocationService{pool: pool}
}

func (s *allocationService) CreateAllocation(ctx context.Context, cashbookEntryID, invoiceID int, amountAllocated decimal.Decimal) (*Allocation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	alloc, err := allocateTx(ctx, tx, cashbookEntryID, invoiceID, amountAllocated)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}
	return alloc, nil
}

// allocateTx performs the full checked allocation inside an existing
// transaction. Lock order is entry before invoice, everywhere, so concurrent
// allocators serialize instead of deadlocking. After the insert the invoice
// status is re-derived.
func allocateTx(ctx context.Context, tx pgx.Tx, cashbookEntryID, invoiceID int, amountAllocated decimal.Decimal) (*Allocation, error) {
	if !amountAllocated.IsPositive() {
		return nil, fmt.Errorf("allocation amount must be > 0, got %s: %w", amountAllocated.StringFixed(2), ErrValidation)
	}

	var entryAmount decimal.Decimal
	err := tx.QueryRow(ctx, "SELECT amount FROM cashbook_entries WHERE id = $1 FOR UPDATE", cashbookEntryID).Scan(&entryAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cashbook entry %d: %w", cashbookEntryID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch cashbook entry %d: %w", cashbookEntryID, err)
	}

	allocatedFromEntry, err := sumAllocationsForEntry(ctx, tx, cashbookEntryID)
	if err != nil {
		return nil, err
	}
	remainingOnEntry := entryAmount.Sub(allocatedFromEntry)
	if amountAllocated.GreaterThan(remainingOnEntry) {
		return nil, &OverAllocationError{
			Side: "cashbook entry", ID: cashbookEntryID,
			Requested: amountAllocated, Remaining: remainingOnEntry,
		}
	}

	var invoiceTotal decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT total_amount FROM invoices WHERE id = $1 FOR UPDATE", invoiceID).Scan(&invoiceTotal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}

	allocatedToInvoice, err := sumAllocationsForInvoice(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	pendingOnInvoice := invoiceTotal.Sub(allocatedToInvoice)
	if amountAllocated.GreaterThan(pendingOnInvoice) {
		return nil, &OverAllocationError{
			Side: "invoice", ID: invoiceID,
			Requested: amountAllocated, Remaining: pendingOnInvoice,
		}
	}

	var alloc Allocation
	err = tx.QueryRow(ctx, `
		INSERT INTO cashbook_payment_allocations (cashbook_entry_id, invoice_id, amount_allocated)
		VALUES ($1, $2, $3)
		RETURNING id, cashbook_entry_id, invoice_id, amount_allocated, created_at
	`, cashbookEntryID, invoiceID, amountAllocated).Scan(
		&alloc.ID, &alloc.CashbookEntryID, &alloc.InvoiceID, &alloc.AmountAllocated, &alloc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert allocation: %w", err)
	}

	if err := recomputeInvoiceStatusTx(ctx, tx, invoiceID); err != nil {
		return nil, err
	}
	return &alloc, nil
}

func sumAllocationsForEntry(ctx context.Context, q pgxQuerier, cashbookEntryID int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount_allocated), 0) FROM cashbook_payment_allocations WHERE cashbook_entry_id = $1",
		cashbookEntryID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum allocations for entry %d: %w", cashbookEntryID, err)
	}
	return sum, nil
}

func sumAllocationsForInvoice(ctx context.Context, q pgxQuerier, invoiceID int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount_allocated), 0) FROM cashbook_payment_allocations WHERE invoice_id = $1",
		invoiceID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum allocations for invoice %d: %w", invoiceID, err)
	}
	return sum, nil
}

func (s *allocationService) GetAllocationsByEntry(ctx context.Context, cashbookEntryID int) ([]Allocation, error) {
	return fetchAllocationsQ(ctx, s.pool, "cashbook_entry_id", cashbookEntryID)
}

func (s *allocationService) GetAllocationsByInvoice(ctx context.Context, invoiceID int) ([]Allocation, error) {
	return fetchAllocationsQ(ctx, s.pool, "invoice_id", invoiceID)
}

func fetchAllocationsQ(ctx context.Context, q pgxRowQuerier, column string, id int) ([]Allocation, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT id, cashbook_entry_id, invoice_id, amount_allocated, created_at
		FROM cashbook_payment_allocations
		WHERE %s = $1
		ORDER BY id`, column), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocs []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.CashbookEntryID, &a.InvoiceID, &a.AmountAllocated, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

func (s *allocationService) GetPendingInvoicesForAllocation(ctx context.Context, accountHeadID *int) ([]PendingInvoice, error) {
	query := `
		SELECT i.id, i.sale_id, i.invoice_number, i.lpo_number, i.invoice_date::text,
		       i.total_amount, i.vat_amount, i.status, i.created_at,
		       COALESCE(SUM(a.amount_allocated), 0) AS allocated
		FROM invoices i
		JOIN sales s ON s.id = i.sale_id
		LEFT JOIN cashbook_payment_allocations a ON a.invoice_id = i.id
		WHERE i.status = 'Generated'`
	args := []any{}
	if accountHeadID != nil {
		// Head-to-client resolution goes through the explicit foreign key,
		// never by name matching.
		query += ` AND s.client_id = (SELECT client_id FROM account_heads WHERE id = $1)`
		args = append(args, *accountHeadID)
	}
	query += `
		GROUP BY i.id
		HAVING i.total_amount - COALESCE(SUM(a.amount_allocated), 0) > 0
		ORDER BY i.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending invoices: %w", err)
	}
	defer rows.Close()

	var pending []PendingInvoice
	for rows.Next() {
		var p PendingInvoice
		if err := rows.Scan(
			&p.ID, &p.SaleID, &p.InvoiceNumber, &p.LPONumber, &p.InvoiceDate,
			&p.TotalAmount, &p.VATAmount, &p.Status, &p.CreatedAt, &p.Allocated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending invoice: %w", err)
		}
		p.Pending = p.TotalAmount.Sub(p.Allocated)
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
