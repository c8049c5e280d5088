package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// defaultVATRate applies when a sale is created without an explicit VAT
// percentage.
var defaultVATRate = decimal.NewFromInt(5)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared
// query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgxRowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx (for Query).
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SaleInput carries the caller-controlled fields of a sale. The five derived
// monetary fields are never accepted from the caller; they are recomputed by
// ComputeSaleFinancials on every create and update.
type SaleInput struct {
	ClientID        int
	ProjectID       *int
	LPONumber       string
	SaleDate        string // YYYY-MM-DD
	QuantityGallons decimal.Decimal
	SalePrice       decimal.Decimal
	PurchasePrice   decimal.Decimal
	VATRate         *decimal.Decimal // nil means the 5% default
}

// SaleService manages the sale lifecycle. Status recomputation after payment
// changes lives here so the payment and cashbook services can call it inside
// their own transactions.
type SaleService interface {
	CreateSale(ctx context.Context, input SaleInput) (*Sale, error)
	UpdateSale(ctx context.Context, saleID int, input SaleInput) (*Sale, error)
	DeleteSale(ctx context.Context, saleID int) error
	UpdateSaleStatus(ctx context.Context, saleID int, status SaleStatus) (*Sale, error)
	GetSale(ctx context.Context, saleID int) (*Sale, error)
	GetSales(ctx context.Context, clientID *int) ([]Sale, error)
}

type saleService struct {
	pool *pgxpool.Pool
}

func NewSaleService(pool *pgxpool.Pool) SaleService {
	return &saleService{pool: pool}
}

func (s *saleService) validate(input SaleInput) (SaleFinancials, decimal.Decimal, error) {
	if input.ClientID == 0 {
		return SaleFinancials{}, decimal.Zero, fmt.Errorf("client id is required: %w", ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", input.SaleDate); err != nil {
		return SaleFinancials{}, decimal.Zero, fmt.Errorf("invalid sale date %q: %w", input.SaleDate, ErrValidation)
	}
	vat := defaultVATRate
	if input.VATRate != nil {
		vat = *input.VATRate
	}
	fin, err := ComputeSaleFinancials(input.QuantityGallons, input.SalePrice, input.PurchasePrice, vat)
	if err != nil {
		return SaleFinancials{}, decimal.Zero, err
	}
	return fin, vat, nil
}

func (s *saleService) CreateSale(ctx context.Context, input SaleInput) (*Sale, error) {
	fin, vat, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var clientExists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)", input.ClientID).Scan(&clientExists); err != nil {
		return nil, fmt.Errorf("failed to check client %d: %w", input.ClientID, err)
	}
	if !clientExists {
		return nil, fmt.Errorf("client %d: %w", input.ClientID, ErrNotFound)
	}

	if input.ProjectID != nil {
		var ok bool
		err = tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND client_id = $2)",
			*input.ProjectID, input.ClientID).Scan(&ok)
		if err != nil {
			return nil, fmt.Errorf("failed to check project %d: %w", *input.ProjectID, err)
		}
		if !ok {
			return nil, fmt.Errorf("project %d for client %d: %w", *input.ProjectID, input.ClientID, ErrNotFound)
		}
	}

	var saleID int
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (client_id, project_id, lpo_number, sale_date, quantity_gallons,
		                   sale_price, purchase_price, vat_rate,
		                   subtotal, vat_amount, total_amount, cogs, gross_profit, sale_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, input.ClientID, input.ProjectID, input.LPONumber, input.SaleDate, input.QuantityGallons,
		input.SalePrice, input.PurchasePrice, vat,
		fin.Subtotal, fin.VATAmount, fin.TotalAmount, fin.COGS, fin.GrossProfit, SalePendingLPO).Scan(&saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale creation: %w", err)
	}
	return s.GetSale(ctx, saleID)
}

func (s *saleService) UpdateSale(ctx context.Context, saleID int, input SaleInput) (*Sale, error) {
	fin, vat, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentClient int
	err = tx.QueryRow(ctx, "SELECT client_id FROM sales WHERE id = $1 FOR UPDATE", saleID).Scan(&currentClient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", saleID, err)
	}
	if input.ClientID != currentClient {
		return nil, fmt.Errorf("sale %d cannot move to another client: %w", saleID, ErrConflict)
	}

	// Base inputs and all five derived fields change together, atomically.
	_, err = tx.Exec(ctx, `
		UPDATE sales
		SET project_id = $1, lpo_number = $2, sale_date = $3, quantity_gallons = $4,
		    sale_price = $5, purchase_price = $6, vat_rate = $7,
		    subtotal = $8, vat_amount = $9, total_amount = $10, cogs = $11, gross_profit = $12
		WHERE id = $13
	`, input.ProjectID, input.LPONumber, input.SaleDate, input.QuantityGallons,
		input.SalePrice, input.PurchasePrice, vat,
		fin.Subtotal, fin.VATAmount, fin.TotalAmount, fin.COGS, fin.GrossProfit, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to update sale %d: %w", saleID, err)
	}

	// A changed total can flip paid-ness either way.
	if err := recomputeSaleStatusTx(ctx, tx, saleID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale update: %w", err)
	}
	return s.GetSale(ctx, saleID)
}

func (s *saleService) DeleteSale(ctx context.Context, saleID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)", saleID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check sale %d: %w", saleID, err)
	}
	if !exists {
		return fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
	}

	// Children before parents: allocations, payment-linked cashbook entries,
	// payments, invoices, then the sale itself.
	steps := []struct {
		desc string
		sql  string
	}{
		{"delete invoice allocations", `
			DELETE FROM cashbook_payment_allocations
			WHERE invoice_id IN (SELECT id FROM invoices WHERE sale_id = $1)`},
		{"delete receipt allocations", `
			DELETE FROM cashbook_payment_allocations
			WHERE cashbook_entry_id IN (
				SELECT id FROM cashbook_entries
				WHERE reference_type = 'payment'
				  AND reference_id IN (SELECT id FROM payments WHERE sale_id = $1))`},
		{"delete payment cashbook entries", `
			DELETE FROM cashbook_entries
			WHERE reference_type = 'payment'
			  AND reference_id IN (SELECT id FROM payments WHERE sale_id = $1)`},
		{"delete payments", `DELETE FROM payments WHERE sale_id = $1`},
		{"delete invoices", `DELETE FROM invoices WHERE sale_id = $1`},
		{"delete sale", `DELETE FROM sales WHERE id = $1`},
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step.sql, saleID); err != nil {
			return fmt.Errorf("failed to %s for sale %d: %w", step.desc, saleID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sale deletion: %w", err)
	}
	return nil
}

func (s *saleService) UpdateSaleStatus(ctx context.Context, saleID int, status SaleStatus) (*Sale, error) {
	if !ValidSaleStatus(status) {
		return nil, fmt.Errorf("unknown sale status %q: %w", status, ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var invoiceDate *time.Time
	err = tx.QueryRow(ctx, "SELECT invoice_date FROM sales WHERE id = $1 FOR UPDATE", saleID).Scan(&invoiceDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", saleID, err)
	}

	if (status == SaleInvoiced || status == SalePaid) && invoiceDate == nil {
		_, err = tx.Exec(ctx, "UPDATE sales SET sale_status = $1, invoice_date = NOW() WHERE id = $2", status, saleID)
	} else {
		_, err = tx.Exec(ctx, "UPDATE sales SET sale_status = $1 WHERE id = $2", status, saleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update status of sale %d: %w", saleID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}
	return s.GetSale(ctx, saleID)
}

const saleColumns = `
	s.id, s.client_id, c.name, s.project_id, s.lpo_number, s.sale_date::text,
	s.quantity_gallons, s.sale_price, s.purchase_price, s.vat_rate,
	s.subtotal, s.vat_amount, s.total_amount, s.cogs, s.gross_profit,
	s.sale_status, s.invoice_date, s.created_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var sale Sale
	err := row.Scan(
		&sale.ID, &sale.ClientID, &sale.ClientName, &sale.ProjectID, &sale.LPONumber, &sale.SaleDate,
		&sale.QuantityGallons, &sale.SalePrice, &sale.PurchasePrice, &sale.VATRate,
		&sale.Subtotal, &sale.VATAmount, &sale.TotalAmount, &sale.COGS, &sale.GrossProfit,
		&sale.SaleStatus, &sale.InvoiceDate, &sale.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *saleService) GetSale(ctx context.Context, saleID int) (*Sale, error) {
	sale, err := scanSale(s.pool.QueryRow(ctx,
		"SELECT"+saleColumns+" FROM sales s JOIN clients c ON c.id = s.client_id WHERE s.id = $1", saleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", saleID, err)
	}
	return sale, nil
}

func (s *saleService) GetSales(ctx context.Context, clientID *int) ([]Sale, error) {
	query := "SELECT" + saleColumns + " FROM sales s JOIN clients c ON c.id = s.client_id"
	args := []any{}
	if clientID != nil {
		query += " WHERE s.client_id = $1"
		args = append(args, *clientID)
	}
	query += " ORDER BY s.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

// recomputeSaleStatusTx re-derives a sale's status from its payment total.
// The rule is authoritative: full coverage (within PaidEpsilon) means Paid,
// even over a manually set earlier status; a sale that was Paid but is no
// longer covered drops back to Invoiced. Partial coverage never promotes a
// sale past Invoiced.
func recomputeSaleStatusTx(ctx context.Context, tx pgx.Tx, saleID int) error {
	var (
		status      SaleStatus
		total       decimal.Decimal
		invoiceDate *time.Time
	)
	err := tx.QueryRow(ctx,
		"SELECT sale_status, total_amount, invoice_date FROM sales WHERE id = $1 FOR UPDATE",
		saleID).Scan(&status, &total, &invoiceDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch sale %d for status recompute: %w", saleID, err)
	}

	var paid decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount_received), 0) FROM payments WHERE sale_id = $1", saleID).Scan(&paid)
	if err != nil {
		return fmt.Errorf("failed to sum payments for sale %d: %w", saleID, err)
	}

	next := status
	switch {
	case paid.IsPositive() && fullyPaid(paid, total):
		next = SalePaid
	case status == SalePaid:
		next = SaleInvoiced
	case status == SaleInvoiced && paid.IsPositive():
		next = SaleInvoiced
	}
	if next == status {
		return nil
	}

	if (next == SaleInvoiced || next == SalePaid) && invoiceDate == nil {
		_, err = tx.Exec(ctx, "UPDATE sales SET sale_status = $1, invoice_date = NOW() WHERE id = $2", next, saleID)
	} else {
		_, err = tx.Exec(ctx, "UPDATE sales SET sale_status = $1 WHERE id = $2", next, saleID)
	}
	if err != nil {
		return fmt.Errorf("failed to set sale %d status to %s: %w", saleID, next, err)
	}
	return nil
}
