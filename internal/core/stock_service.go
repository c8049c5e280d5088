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

// StockPurchaseInput records diesel bought from a supplier. A credit purchase
// enters the cashbook as a pending debt; a cash purchase as a settled
// outflow.
type StockPurchaseInput struct {
	SupplierName    string
	PurchaseDate    string // YYYY-MM-DD
	QuantityGallons decimal.Decimal
	PricePerGallon  decimal.Decimal
	PaymentStatus   string // "cash" or "credit"
	PaymentMethod   string
	Notes           string
}

// StockService records diesel stock purchases and their cashbook entries.
type StockService interface {
	CreateStockPurchase(ctx context.Context, input StockPurchaseInput) (*StockPurchase, error)
	DeleteStockPurchase(ctx context.Context, purchaseID int) error
	GetStockPurchases(ctx context.Context) ([]StockPurchase, error)
}

type stockService struct {
	pool *pgxpool.Pool
}

func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

func (s *stockService) CreateStockPurchase(ctx context.Context, input StockPurchaseInput) (*StockPurchase, error) {
	if strings.TrimSpace(input.SupplierName) == "" {
		return nil, fmt.Errorf("supplier name is required: %w", ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", input.PurchaseDate); err != nil {
		return nil, fmt.Errorf("invalid purchase date %q: %w", input.PurchaseDate, ErrValidation)
	}
	if !input.QuantityGallons.IsPositive() {
		return nil, fmt.Errorf("quantity must be > 0, got %s: %w", input.QuantityGallons, ErrValidation)
	}
	if input.PricePerGallon.IsNegative() {
		return nil, fmt.Errorf("price per gallon cannot be negative: %w", ErrValidation)
	}
	if input.PaymentStatus != StockPaidCash && input.PaymentStatus != StockPaidCredit {
		return nil, fmt.Errorf("payment status must be %q or %q, got %q: %w",
			StockPaidCash, StockPaidCredit, input.PaymentStatus, ErrValidation)
	}

	totalCost := input.QuantityGallons.Mul(input.PricePerGallon).Round(2)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	headID, err := ensureSupplierHeadTx(ctx, tx, input.SupplierName)
	if err != nil {
		return nil, err
	}

	var p StockPurchase
	err = tx.QueryRow(ctx, `
		INSERT INTO stock_purchases (supplier_name, account_head_id, purchase_date,
		                             quantity_gallons, price_per_gallon, total_cost, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, supplier_name, account_head_id, purchase_date::text,
		          quantity_gallons, price_per_gallon, total_cost, payment_status, notes, created_at
	`, input.SupplierName, headID, input.PurchaseDate,
		input.QuantityGallons, input.PricePerGallon, totalCost, input.PaymentStatus, input.Notes).Scan(
		&p.ID, &p.SupplierName, &p.AccountHeadID, &p.PurchaseDate,
		&p.QuantityGallons, &p.PricePerGallon, &p.TotalCost, &p.PaymentStatus, &p.Notes, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert stock purchase: %w", err)
	}

	// Outflow either way; a credit purchase stays pending until settled via
	// MarkDebtAsPaid.
	isPending := input.PaymentStatus == StockPaidCredit
	_, err = tx.Exec(ctx, `
		INSERT INTO cashbook_entries (transaction_date, transaction_type, account_head_id, amount,
		                              is_inflow, is_pending, reference_type, reference_id,
		                              counterparty, payment_method, notes)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7, $8, $9, $10)
	`, input.PurchaseDate, TxnStockPurchase, headID, totalCost,
		isPending, RefStock, p.ID, input.SupplierName, input.PaymentMethod, input.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cashbook entry for stock purchase %d: %w", p.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock purchase: %w", err)
	}
	return &p, nil
}

// ensureSupplierHeadTx finds the supplier's account head by name, creating it
// on first purchase from that supplier.
func ensureSupplierHeadTx(ctx context.Context, tx pgx.Tx, supplierName string) (int, error) {
	var headID int
	err := tx.QueryRow(ctx,
		"SELECT id FROM account_heads WHERE name = $1 AND category = $2",
		supplierName, HeadSupplier).Scan(&headID)
	if err == nil {
		return headID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to resolve supplier head %q: %w", supplierName, err)
	}

	err = tx.QueryRow(ctx,
		"INSERT INTO account_heads (name, category) VALUES ($1, $2) RETURNING id",
		supplierName, HeadSupplier).Scan(&headID)
	if err != nil {
		return 0, fmt.Errorf("failed to create supplier head %q: %w", supplierName, err)
	}
	return headID, nil
}

// DeleteStockPurchase removes the purchase and its ledger entry. A purchase
// whose debt has already been settled keeps its history: the settlement entry
// references the original, so deletion is refused.
func (s *stockService) DeleteStockPurchase(ctx context.Context, purchaseID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM stock_purchases WHERE id = $1)", purchaseID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check stock purchase %d: %w", purchaseID, err)
	}
	if !exists {
		return fmt.Errorf("stock purchase %d: %w", purchaseID, ErrNotFound)
	}

	var entryID *int
	err = tx.QueryRow(ctx,
		"SELECT id FROM cashbook_entries WHERE reference_type = $1 AND reference_id = $2",
		RefStock, purchaseID).Scan(&entryID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to find cashbook entry for stock purchase %d: %w", purchaseID, err)
	}

	if entryID != nil {
		var settled bool
		err = tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM cashbook_entries WHERE reference_type = $1 AND reference_id = $2)",
			RefDebtPayment, *entryID).Scan(&settled)
		if err != nil {
			return fmt.Errorf("failed to check settlements for entry %d: %w", *entryID, err)
		}
		if settled {
			return fmt.Errorf("stock purchase %d has a settled debt against it: %w", purchaseID, ErrConflict)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM cashbook_entries WHERE id = $1", *entryID); err != nil {
			return fmt.Errorf("failed to delete cashbook entry %d: %w", *entryID, err)
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM stock_purchases WHERE id = $1", purchaseID); err != nil {
		return fmt.Errorf("failed to delete stock purchase %d: %w", purchaseID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stock purchase deletion: %w", err)
	}
	return nil
}

func (s *stockService) GetStockPurchases(ctx context.Context) ([]StockPurchase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, supplier_name, account_head_id, purchase_date::text,
		       quantity_gallons, price_per_gallon, total_cost, payment_status, notes, created_at
		FROM stock_purchases
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock purchases: %w", err)
	}
	defer rows.Close()

	var purchases []StockPurchase
	for rows.Next() {
		var p StockPurchase
		if err := rows.Scan(
			&p.ID, &p.SupplierName, &p.AccountHeadID, &p.PurchaseDate,
			&p.QuantityGallons, &p.PricePerGallon, &p.TotalCost, &p.PaymentStatus, &p.Notes, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
