package core_test

import (
	"context"
	"errors"
	"testing"

	"fueltrade/internal/core"
	"github.com/shopspring/decimal"
)

func TestSale_CreateDerivesFinancials(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	sales := core.NewSaleService(pool)
	client := newTestClient(t, pool, "Derive Co")

	sale, err := sales.CreateSale(ctx, core.SaleInput{
		ClientID:        client.ID,
		LPONumber:       "LPO-S1",
		SaleDate:        "2024-03-01",
		QuantityGallons: mustDecimal(t, "1000"),
		SalePrice:       mustDecimal(t, "3.50"),
		PurchasePrice:   mustDecimal(t, "2.85"),
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	checks := []struct {
		field string
		got   decimal.Decimal
		want  string
	}{
		{"subtotal", sale.Subtotal, "3500.00"},
		{"vat amount", sale.VATAmount, "175.00"},
		{"total amount", sale.TotalAmount, "3675.00"},
		{"cogs", sale.COGS, "2850.00"},
		{"gross profit", sale.GrossProfit, "650.00"},
		{"vat rate", sale.VATRate, "5.00"},
	}
	for _, c := range checks {
		if got := c.got.StringFixed(2); got != c.want {
			t.Errorf("%s = %s, want %s", c.field, got, c.want)
		}
	}
	if sale.SaleStatus != core.SalePendingLPO {
		t.Errorf("new sale status = %q, want Pending LPO", sale.SaleStatus)
	}
	if sale.ClientName != "Derive Co" {
		t.Errorf("client name = %q, want the joined client name", sale.ClientName)
	}
}

func TestSale_UpdateRederivesAndRechecksStatus(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	sales := core.NewSaleService(pool)
	payments := core.NewPaymentService(pool)

	client := newTestClient(t, pool, "Reprice Co")
	sale := newTestSale(t, pool, client.ID, "LPO-S2", "1000", "3.50", "2.85")
	newTestInvoice(t, pool, sale.ID, "INV-S2")

	if _, err := payments.CreatePayment(ctx, core.PaymentInput{
		SaleID:         sale.ID,
		AmountReceived: mustDecimal(t, "3675.00"),
		PaymentDate:    "2024-03-15",
		PaymentMethod:  "cash",
	}); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	got, err := sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if got.SaleStatus != core.SalePaid {
		t.Fatalf("sale status = %q, want Paid before reprice", got.SaleStatus)
	}

	// Raising the quantity raises the total past the payments: the derived
	// fields change together and the status drops back to Invoiced.
	updated, err := sales.UpdateSale(ctx, sale.ID, core.SaleInput{
		ClientID:        client.ID,
		LPONumber:       "LPO-S2",
		SaleDate:        "2024-03-01",
		QuantityGallons: mustDecimal(t, "2000"),
		SalePrice:       mustDecimal(t, "3.50"),
		PurchasePrice:   mustDecimal(t, "2.85"),
	})
	if err != nil {
		t.Fatalf("UpdateSale failed: %v", err)
	}
	if got, want := updated.TotalAmount.StringFixed(2), "7350.00"; got != want {
		t.Errorf("total after update = %s, want %s", got, want)
	}
	if got, want := updated.GrossProfit.StringFixed(2), "1300.00"; got != want {
		t.Errorf("gross profit after update = %s, want %s", got, want)
	}
	if updated.SaleStatus != core.SaleInvoiced {
		t.Errorf("sale status after update = %q, want Invoiced (payments no longer cover total)", updated.SaleStatus)
	}
}

func TestSale_StatusTransitionsValidated(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	sales := core.NewSaleService(pool)
	client := newTestClient(t, pool, "Status Co")
	sale, err := sales.CreateSale(ctx, core.SaleInput{
		ClientID:        client.ID,
		LPONumber:       "LPO-S3",
		SaleDate:        "2024-03-01",
		QuantityGallons: mustDecimal(t, "100"),
		SalePrice:       mustDecimal(t, "3.50"),
		PurchasePrice:   mustDecimal(t, "2.85"),
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	if _, err := sales.UpdateSaleStatus(ctx, sale.ID, core.SaleStatus("Shipped")); !errors.Is(err, core.ErrValidation) {
		t.Errorf("unknown status: got %v, want ErrValidation", err)
	}

	got, err := sales.UpdateSaleStatus(ctx, sale.ID, core.SaleInvoiced)
	if err != nil {
		t.Fatalf("UpdateSaleStatus failed: %v", err)
	}
	if got.SaleStatus != core.SaleInvoiced {
		t.Errorf("sale status = %q, want Invoiced", got.SaleStatus)
	}
	if got.InvoiceDate == nil {
		t.Error("moving into Invoiced should stamp the invoice date")
	}
}

func TestInvoice_CreateForLPOInvoicesAllMatchingSales(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	invoices := core.NewInvoiceService(pool)
	sales := core.NewSaleService(pool)

	client := newTestClient(t, pool, "Batch Co")
	s1 := newTestSale(t, pool, client.ID, "LPO-BATCH", "1000", "3.50", "2.85")
	s2 := newTestSale(t, pool, client.ID, "LPO-BATCH", "500", "3.60", "2.90")
	// A sale on the same LPO still waiting for its LPO stays untouched.
	s3, err := sales.CreateSale(ctx, core.SaleInput{
		ClientID:        client.ID,
		LPONumber:       "LPO-BATCH",
		SaleDate:        "2024-03-02",
		QuantityGallons: mustDecimal(t, "200"),
		SalePrice:       mustDecimal(t, "3.55"),
		PurchasePrice:   mustDecimal(t, "2.88"),
	})
	if err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	batch, err := invoices.CreateInvoiceForLPO(ctx, "LPO-BATCH", "INV-BATCH", "2024-03-10")
	if err != nil {
		t.Fatalf("CreateInvoiceForLPO failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(batch))
	}
	for _, inv := range batch {
		if inv.InvoiceNumber != "INV-BATCH" {
			t.Errorf("invoice number = %q, want shared INV-BATCH", inv.InvoiceNumber)
		}
	}

	for _, id := range []int{s1.ID, s2.ID} {
		got, err := sales.GetSale(ctx, id)
		if err != nil {
			t.Fatalf("GetSale failed: %v", err)
		}
		if got.SaleStatus != core.SaleInvoiced {
			t.Errorf("sale %d status = %q, want Invoiced", id, got.SaleStatus)
		}
	}
	got, err := sales.GetSale(ctx, s3.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if got.SaleStatus != core.SalePendingLPO {
		t.Errorf("pending sale status = %q, want Pending LPO untouched", got.SaleStatus)
	}

	// A second batch for the same LPO finds nothing left to invoice.
	if _, err := invoices.CreateInvoiceForLPO(ctx, "LPO-BATCH", "INV-BATCH-2", "2024-03-11"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("repeat batch: got %v, want ErrNotFound", err)
	}
}

func TestInvoice_OnePerSale(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	invoices := core.NewInvoiceService(pool)
	client := newTestClient(t, pool, "Single Invoice Co")
	sale := newTestSale(t, pool, client.ID, "LPO-S4", "1000", "3.50", "2.85")
	newTestInvoice(t, pool, sale.ID, "INV-S4")

	_, err := invoices.CreateInvoice(ctx, core.InvoiceInput{
		SaleID:        sale.ID,
		InvoiceNumber: "INV-S4-DUP",
		InvoiceDate:   "2024-03-06",
	})
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("second invoice for sale: got %v, want ErrConflict", err)
	}
}
