package core_test

import (
	"context"
	"os"
	"testing"

	"fueltrade/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// setupTestDB connects to the dedicated test database and wipes all ledger
// tables. Set TEST_DATABASE_URL in your .env or environment to run
// integration tests; without it they skip rather than touch a live database.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE cashbook_payment_allocations, cashbook_entries, stock_purchases,
		               payments, invoices, sales, projects, account_heads, clients
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to reset test database: %v", err)
	}

	return pool
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return v
}

// newTestClient creates a client (and therefore its account head).
func newTestClient(t *testing.T, pool *pgxpool.Pool, name string) *core.Client {
	t.Helper()
	client, err := core.NewClientService(pool).CreateClient(context.Background(), core.ClientInput{Name: name})
	if err != nil {
		t.Fatalf("CreateClient(%q) failed: %v", name, err)
	}
	return client
}

// newTestSale creates a sale for the client and moves it to LPO Received so
// it can be invoiced.
func newTestSale(t *testing.T, pool *pgxpool.Pool, clientID int, lpo, qty, salePrice, purchasePrice string) *core.Sale {
	t.Helper()
	ctx := context.Background()
	svc := core.NewSaleService(pool)
	sale, err := svc.CreateSale(ctx, core.SaleInput{
		ClientID:        clientID,
		LPONumber:       lpo,
		SaleDate:        "2024-03-01",
		QuantityGallons: mustDecimal(t, qty),
		SalePrice:       mustDecimal(t, salePrice),
		PurchasePrice:   mustDecimal(t, purchasePrice),
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	sale, err = svc.UpdateSaleStatus(ctx, sale.ID, core.SaleLPOReceived)
	if err != nil {
		t.Fatalf("UpdateSaleStatus failed: %v", err)
	}
	return sale
}

// newTestInvoice invoices the sale.
func newTestInvoice(t *testing.T, pool *pgxpool.Pool, saleID int, number string) *core.Invoice {
	t.Helper()
	inv, err := core.NewInvoiceService(pool).CreateInvoice(context.Background(), core.InvoiceInput{
		SaleID:        saleID,
		InvoiceNumber: number,
		InvoiceDate:   "2024-03-05",
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	return inv
}

// newTestReceipt inserts a manual cashbook inflow under the client's account
// head, for allocation tests that bypass the payment auto-flow.
func newTestReceipt(t *testing.T, pool *pgxpool.Pool, headID int, amount string) *core.CashbookEntry {
	t.Helper()
	entry, err := core.NewCashbookService(pool).CreateEntry(context.Background(), core.CashbookEntryInput{
		TransactionDate: "2024-03-10",
		TransactionType: "Sale Revenue",
		AccountHeadID:   headID,
		Amount:          mustDecimal(t, amount),
		IsInflow:        true,
		Counterparty:    "test counterparty",
		PaymentMethod:   "bank transfer",
	})
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}
	return entry
}

// clientHeadID resolves the account head auto-created for a client.
func clientHeadID(t *testing.T, pool *pgxpool.Pool, clientID int) int {
	t.Helper()
	var headID int
	err := pool.QueryRow(context.Background(),
		"SELECT id FROM account_heads WHERE client_id = $1", clientID).Scan(&headID)
	if err != nil {
		t.Fatalf("failed to resolve account head for client %d: %v", clientID, err)
	}
	return headID
}
