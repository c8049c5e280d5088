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

// CashbookEntryInput carries the caller-controlled fields of a manual
// cashbook entry. Reference fields are engine-owned and never accepted here.
type CashbookEntryInput struct {
	TransactionDate string // YYYY-MM-DD
	TransactionType string
	AccountHeadID   int
	Amount          decimal.Decimal
	IsInflow        bool
	IsPending       bool
	Counterparty    string
	PaymentMethod   string
	Notes           string
}

// CashbookService owns the flat transaction log: entry CRUD, the realized
// balance and summary queries, pending debts, and debt settlement.
type CashbookService interface {
	CreateEntry(ctx context.Context, input CashbookEntryInput) (*CashbookEntry, error)
	UpdateEntry(ctx context.Context, entryID int, input CashbookEntryInput) (*CashbookEntry, error)
	DeleteEntry(ctx context.Context, entryID int) error
	GetEntry(ctx context.Context, entryID int) (*CashbookEntry, error)
	GetEntries(ctx context.Context) ([]CashbookEntry, error)

	GetCashBalance(ctx context.Context) (decimal.Decimal, error)
	GetTransactionSummary(ctx context.Context) (*TransactionSummary, error)
	GetPendingDebts(ctx context.Context) ([]CashbookEntry, error)
	GetOutstandingByAccountHead(ctx context.Context) ([]OutstandingLine, error)

	// MarkDebtAsPaid settles a pending entry: the original flips to settled
	// and stays in the ledger as the record of the debt, and one new
	// offsetting entry records the cash that actually moved.
	MarkDebtAsPaid(ctx context.Context, debtEntryID int, paidAmount decimal.Decimal, paymentMethod, paymentDate string) (*CashbookEntry, error)
}

type cashbookService struct {
	pool *pgxpool.Pool
}

func NewCashbookService(pool *pgxpool.Pool) CashbookService {
	return &cashbookService{pool: pool}
}

func validateEntryInput(input CashbookEntryInput) error {
	if !input.Amount.IsPositive() {
		return fmt.Errorf("entry amount must be > 0, got %s: %w", input.Amount.StringFixed(2), ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", input.TransactionDate); err != nil {
		return fmt.Errorf("invalid transaction date %q: %w", input.TransactionDate, ErrValidation)
	}
	if strings.TrimSpace(input.TransactionType) == "" {
		return fmt.Errorf("transaction type is required: %w", ErrValidation)
	}
	if input.AccountHeadID == 0 {
		return fmt.Errorf("account head is required: %w", ErrValidation)
	}
	return nil
}

const entryColumns = `
	id, transaction_date::text, transaction_type, account_head_id, amount,
	is_inflow, is_pending, reference_type, reference_id,
	counterparty, payment_method, notes, created_at`

func scanEntry(row pgx.Row) (*CashbookEntry, error) {
	var e CashbookEntry
	err := row.Scan(
		&e.ID, &e.TransactionDate, &e.TransactionType, &e.AccountHeadID, &e.Amount,
		&e.IsInflow, &e.IsPending, &e.ReferenceType, &e.ReferenceID,
		&e.Counterparty, &e.PaymentMethod, &e.Notes, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *cashbookService) CreateEntry(ctx context.Context, input CashbookEntryInput) (*CashbookEntry, error) {
	if err := validateEntryInput(input); err != nil {
		return nil, err
	}

	var headExists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM account_heads WHERE id = $1)", input.AccountHeadID).Scan(&headExists); err != nil {
		return nil, fmt.Errorf("failed to check account head %d: %w", input.AccountHeadID, err)
	}
	if !headExists {
		return nil, fmt.Errorf("account head %d: %w", input.AccountHeadID, ErrNotFound)
	}

	entry, err := scanEntry(s.pool.QueryRow(ctx, `
		INSERT INTO cashbook_entries (transaction_date, transaction_type, account_head_id, amount,
		                              is_inflow, is_pending, counterparty, payment_method, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING`+entryColumns,
		input.TransactionDate, input.TransactionType, input.AccountHeadID, input.Amount,
		input.IsInflow, input.IsPending, input.Counterparty, input.PaymentMethod, input.Notes))
	if err != nil {
		return nil, fmt.Errorf("failed to insert cashbook entry: %w", err)
	}
	return entry, nil
}

// UpdateEntry edits a manually-created entry. Entries linked to a payment,
// stock purchase or debt settlement belong to the engine and cannot be edited
// here. On an entry with allocations, amount may not shrink below the
// allocated total and the direction may not flip.
func (s *cashbookService) UpdateEntry(ctx context.Context, entryID int, input CashbookEntryInput) (*CashbookEntry, error) {
	if err := validateEntryInput(input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		refType  *string
		isInflow bool
	)
	err = tx.QueryRow(ctx,
		"SELECT reference_type, is_inflow FROM cashbook_entries WHERE id = $1 FOR UPDATE",
		entryID).Scan(&refType, &isInflow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cashbook entry %d: %w", entryID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch cashbook entry %d: %w", entryID, err)
	}
	if refType != nil {
		return nil, fmt.Errorf("cashbook entry %d is linked to a %s and cannot be edited directly: %w", entryID, *refType, ErrConflict)
	}

	allocated, err := sumAllocationsForEntry(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}
	if allocated.IsPositive() {
		if input.IsInflow != isInflow {
			return nil, fmt.Errorf("cashbook entry %d has allocations; direction cannot change: %w", entryID, ErrConflict)
		}
		if input.Amount.LessThan(allocated) {
			return nil, &OverAllocationError{
				Side: "cashbook entry", ID: entryID,
				Requested: input.Amount, Remaining: allocated,
			}
		}
	}

	entry, err := scanEntry(tx.QueryRow(ctx, `
		UPDATE cashbook_entries
		SET transaction_date = $1, transaction_type = $2, account_head_id = $3, amount = $4,
		    is_inflow = $5, is_pending = $6, counterparty = $7, payment_method = $8, notes = $9
		WHERE id = $10
		RETURNING`+entryColumns,
		input.TransactionDate, input.TransactionType, input.AccountHeadID, input.Amount,
		input.IsInflow, input.IsPending, input.Counterparty, input.PaymentMethod, input.Notes, entryID))
	if err != nil {
		return nil, fmt.Errorf("failed to update cashbook entry %d: %w", entryID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit entry update: %w", err)
	}
	return entry, nil
}

// DeleteEntry removes an entry, its allocations first. Deleting a
// payment-linked entry also deletes the originating payment and re-derives
// the sale's status from whatever payments remain.
func (s *cashbookService) DeleteEntry(ctx context.Context, entryID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		refType *string
		refID   *int
	)
	err = tx.QueryRow(ctx,
		"SELECT reference_type, reference_id FROM cashbook_entries WHERE id = $1 FOR UPDATE",
		entryID).Scan(&refType, &refID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("cashbook entry %d: %w", entryID, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch cashbook entry %d: %w", entryID, err)
	}

	invoiceIDs, err := deleteAllocationsForEntryTx(ctx, tx, entryID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM cashbook_entries WHERE id = $1", entryID); err != nil {
		return fmt.Errorf("failed to delete cashbook entry %d: %w", entryID, err)
	}

	for _, invoiceID := range invoiceIDs {
		if err := recomputeInvoiceStatusTx(ctx, tx, invoiceID); err != nil {
			return err
		}
	}

	if refType != nil && *refType == RefPayment && refID != nil {
		var saleID int
		err = tx.QueryRow(ctx, "DELETE FROM payments WHERE id = $1 RETURNING sale_id", *refID).Scan(&saleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// payment already gone; the ledger side is clean
				if err := tx.Commit(ctx); err != nil {
					return fmt.Errorf("failed to commit entry deletion: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to delete payment %d: %w", *refID, err)
		}
		if err := recomputeSaleStatusTx(ctx, tx, saleID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit entry deletion: %w", err)
	}
	return nil
}

func (s *cashbookService) GetEntry(ctx context.Context, entryID int) (*CashbookEntry, error) {
	entry, err := scanEntry(s.pool.QueryRow(ctx,
		"SELECT"+entryColumns+" FROM cashbook_entries WHERE id = $1", entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cashbook entry %d: %w", entryID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch cashbook entry %d: %w", entryID, err)
	}
	return entry, nil
}

func (s *cashbookService) GetEntries(ctx context.Context) ([]CashbookEntry, error) {
	return s.queryEntries(ctx, "SELECT"+entryColumns+" FROM cashbook_entries ORDER BY transaction_date DESC, id DESC")
}

// GetPendingDebts returns unsettled entries in either direction.
func (s *cashbookService) GetPendingDebts(ctx context.Context) ([]CashbookEntry, error) {
	return s.queryEntries(ctx, "SELECT"+entryColumns+" FROM cashbook_entries WHERE is_pending ORDER BY transaction_date, id")
}

func (s *cashbookService) queryEntries(ctx context.Context, query string, args ...any) ([]CashbookEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cashbook entries: %w", err)
	}
	defer rows.Close()

	var entries []CashbookEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cashbook entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// GetCashBalance returns realized inflows minus realized outflows. Pending
// entries are excluded: a pending debt is a known future change, not cash
// that has moved yet.
func (s *cashbookService) GetCashBalance(ctx context.Context) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN is_inflow THEN amount ELSE -amount END), 0)
		FROM cashbook_entries
		WHERE NOT is_pending
	`).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute cash balance: %w", err)
	}
	return balance, nil
}

func (s *cashbookService) GetTransactionSummary(ctx context.Context) (*TransactionSummary, error) {
	var sum TransactionSummary
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE is_inflow AND NOT is_pending), 0),
			COALESCE(SUM(amount) FILTER (WHERE NOT is_inflow AND NOT is_pending), 0),
			COALESCE(SUM(amount) FILTER (WHERE is_pending), 0)
		FROM cashbook_entries
	`).Scan(&sum.TotalInflow, &sum.TotalOutflow, &sum.PendingDebts)
	if err != nil {
		return nil, fmt.Errorf("failed to compute transaction summary: %w", err)
	}
	sum.AvailableBalance = sum.TotalInflow.Sub(sum.TotalOutflow)
	return &sum, nil
}

func (s *cashbookService) MarkDebtAsPaid(ctx context.Context, debtEntryID int, paidAmount decimal.Decimal, paymentMethod, paymentDate string) (*CashbookEntry, error) {
	if !paidAmount.IsPositive() {
		return nil, fmt.Errorf("paid amount must be > 0, got %s: %w", paidAmount.StringFixed(2), ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", paymentDate); err != nil {
		return nil, fmt.Errorf("invalid payment date %q: %w", paymentDate, ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		isPending    bool
		isInflow     bool
		headID       int
		counterparty string
		txnType      string
	)
	err = tx.QueryRow(ctx, `
		SELECT is_pending, is_inflow, account_head_id, counterparty, transaction_type
		FROM cashbook_entries WHERE id = $1 FOR UPDATE
	`, debtEntryID).Scan(&isPending, &isInflow, &headID, &counterparty, &txnType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cashbook entry %d: %w", debtEntryID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch cashbook entry %d: %w", debtEntryID, err)
	}
	if !isPending {
		return nil, fmt.Errorf("cashbook entry %d is not a pending debt: %w", debtEntryID, ErrInvalidState)
	}

	// The original stays in the ledger as the historical record of the debt.
	if _, err := tx.Exec(ctx, "UPDATE cashbook_entries SET is_pending = FALSE WHERE id = $1", debtEntryID); err != nil {
		return nil, fmt.Errorf("failed to settle cashbook entry %d: %w", debtEntryID, err)
	}

	// A stock debt settles as a stock payment; anything else as a generic
	// debt payment. The settlement moves cash in the same direction the debt
	// was recorded in.
	settleType := TxnDebtPayment
	if txnType == TxnStockPurchase {
		settleType = TxnStockPayment
	}

	entry, err := scanEntry(tx.QueryRow(ctx, `
		INSERT INTO cashbook_entries (transaction_date, transaction_type, account_head_id, amount,
		                              is_inflow, is_pending, reference_type, reference_id,
		                              counterparty, payment_method)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8, $9)
		RETURNING`+entryColumns,
		paymentDate, settleType, headID, paidAmount, isInflow, RefDebtPayment, debtEntryID,
		counterparty, paymentMethod))
	if err != nil {
		return nil, fmt.Errorf("failed to insert settlement entry for debt %d: %w", debtEntryID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit debt settlement: %w", err)
	}
	return entry, nil
}

// GetOutstandingByAccountHead reports, per head, what is still owed: open
// invoice balances for client heads and open pending debts for any head.
func (s *cashbookService) GetOutstandingByAccountHead(ctx context.Context) ([]OutstandingLine, error) {
	lines := make(map[int]*OutstandingLine)
	var order []int

	add := func(id int, name string, category AccountHeadCategory, amount decimal.Decimal) {
		line, ok := lines[id]
		if !ok {
			line = &OutstandingLine{AccountHeadID: id, HeadName: name, Category: category, Outstanding: decimal.Zero}
			lines[id] = line
			order = append(order, id)
		}
		line.Outstanding = line.Outstanding.Add(amount)
	}

	// Unallocated invoice balances, attributed to the client's head.
	rows, err := s.pool.Query(ctx, `
		SELECT h.id, h.name, h.category,
		       SUM(i.total_amount) - COALESCE(SUM(al.allocated), 0)
		FROM account_heads h
		JOIN sales s ON s.client_id = h.client_id
		JOIN invoices i ON i.sale_id = s.id
		LEFT JOIN (
			SELECT invoice_id, SUM(amount_allocated) AS allocated
			FROM cashbook_payment_allocations
			GROUP BY invoice_id
		) al ON al.invoice_id = i.id
		WHERE h.category = 'Client'
		GROUP BY h.id, h.name, h.category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice outstanding: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       int
			name     string
			category AccountHeadCategory
			amount   decimal.Decimal
		)
		if err := rows.Scan(&id, &name, &category, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice outstanding: %w", err)
		}
		if amount.IsPositive() {
			add(id, name, category, amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Open pending debts per head, any direction.
	debtRows, err := s.pool.Query(ctx, `
		SELECT h.id, h.name, h.category, COALESCE(SUM(e.amount), 0)
		FROM account_heads h
		JOIN cashbook_entries e ON e.account_head_id = h.id AND e.is_pending
		GROUP BY h.id, h.name, h.category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending debts by head: %w", err)
	}
	defer debtRows.Close()
	for debtRows.Next() {
		var (
			id       int
			name     string
			category AccountHeadCategory
			amount   decimal.Decimal
		)
		if err := debtRows.Scan(&id, &name, &category, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan pending debts by head: %w", err)
		}
		if amount.IsPositive() {
			add(id, name, category, amount)
		}
	}
	if err := debtRows.Err(); err != nil {
		return nil, err
	}

	out := make([]OutstandingLine, 0, len(order))
	for _, id := range order {
		out = append(out, *lines[id])
	}
	return out, nil
}
