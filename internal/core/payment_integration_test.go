package core_test

import (
	"context"
	"errors"
	"testing"

	"fueltrade/internal/core"
)

func TestPayment_AutoAllocatesAndMarksSalePaid(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	payments := core.NewPaymentService(pool)
	sales := core.NewSaleService(pool)
	invoices := core.NewInvoiceService(pool)
	alloc := core.NewAllocationService(pool)
	cashbook := core.NewCashbookService(pool)

	client := newTestClient(t, pool, "Al Noor Transport")
	sale := newTestSale(t, pool, client.ID, "LPO-P1", "1000", "3.50", "2.85")
	inv := newTestInvoice(t, pool, sale.ID, "INV-P1") // 3675.00

	payment, err := payments.CreatePayment(ctx, core.PaymentInput{
		SaleID:         sale.ID,
		AmountReceived: mustDecimal(t, "3675.00"),
		PaymentDate:    "2024-03-15",
		PaymentMethod:  "bank transfer",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	// One cashbook inflow entry under the client's head.
	entries, err := cashbook.GetEntries(ctx)
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 cashbook entry, got %d", len(entries))
	}
	entry := entries[0]
	if !entry.IsInflow || entry.IsPending {
		t.Errorf("payment entry should be a settled inflow, got inflow=%v pending=%v", entry.IsInflow, entry.IsPending)
	}
	if entry.ReferenceType == nil || *entry.ReferenceType != core.RefPayment || entry.ReferenceID == nil || *entry.ReferenceID != payment.ID {
		t.Errorf("payment entry reference = (%v, %v), want (%q, %d)", entry.ReferenceType, entry.ReferenceID, core.RefPayment, payment.ID)
	}

	// The full amount was allocated against the sale's invoice.
	allocs, err := alloc.GetAllocationsByInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetAllocationsByInvoice failed: %v", err)
	}
	if len(allocs) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(allocs))
	}
	if got, want := allocs[0].AmountAllocated.StringFixed(2), "3675.00"; got != want {
		t.Errorf("allocated = %s, want %s", got, want)
	}

	gotInv, err := invoices.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if gotInv.Status != core.InvoicePaid {
		t.Errorf("invoice status = %q, want Paid", gotInv.Status)
	}

	gotSale, err := sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if gotSale.SaleStatus != core.SalePaid {
		t.Errorf("sale status = %q, want Paid", gotSale.SaleStatus)
	}
}

func TestPayment_PartialLeavesSaleInvoiced(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	payments := core.NewPaymentService(pool)
	sales := core.NewSaleService(pool)

	client := newTestClient(t, pool, "Partial Pay Co")
	sale := newTestSale(t, pool, client.ID, "LPO-P2", "1000", "3.50", "2.85")
	newTestInvoice(t, pool, sale.ID, "INV-P2")

	if _, err := payments.CreatePayment(ctx, core.PaymentInput{
		SaleID:         sale.ID,
		AmountReceived: mustDecimal(t, "2000.00"),
		PaymentDate:    "2024-03-15",
		PaymentMethod:  "cash",
	}); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	gotSale, err := sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if gotSale.SaleStatus != core.SaleInvoiced {
		t.Errorf("sale status = %q, want Invoiced after partial payment", gotSale.SaleStatus)
	}

	// Topping up within the epsilon closes the sale.
	if _, err := payments.CreatePayment(ctx, core.PaymentInput{
		SaleID:         sale.ID,
		AmountReceived: mustDecimal(t, "1674.99"),
		PaymentDate:    "2024-03-16",
		PaymentMethod:  "cash",
	}); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	gotSale, err = sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if gotSale.SaleStatus != core.SalePaid {
		t.Errorf("sale status = %q, want Paid within the 0.01 tolerance", gotSale.SaleStatus)
	}
}

func TestPayment_OverpaymentOfInvoicedSaleFails(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	payments := core.NewPaymentService(pool)

	client := newTestClient(t, pool, "Overpay Co")
	sale := newTestSale(t, pool, client.ID, "LPO-P3", "1000", "3.50", "2.85")
	newTestInvoice(t, pool, sale.ID, "INV-P3") // 3675.00

	// The auto-allocation path enforces the invoice cap, so a payment beyond
	// the invoice total is rejected whole rather than clamped.
	_, err := payments.CreatePayment(ctx, core.PaymentInput{
		SaleID:         sale.ID,
		AmountReceived: mustDecimal(t, "4000.00"),
		PaymentDate:    "2024-03-15",
		PaymentMethod:  "cash",
	})
	if !errors.Is(err, core.ErrOverAllocation) {
		t.Fatalf("overpayment: got %v, want ErrOverAllocation", err)
	}

	// Nothing was written.
	var paymentCount, entryCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM payments").Scan(&paymentCount); err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM cashbook_entries").Scan(&entryCount); err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if paymentCount != 0 || entryCount != 0 {
		t.Errorf("rejected payment left rows behind: payments=%d entries=%d", paymentCount, entryCount)
	}
}

func TestPayment_DeleteSolePaymentRevertsSaleToInvoiced(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	payments := core.NewPaymentService(pool)
	sales := core.NewSaleService(pool)
	invoices := core.NewInvoiceService(pool)

	client := newTestClient(t, pool, "Revert Co")
	sale := newTestSale(t, pool, client.ID, "LPO-P4", "1000", "3.50", "2.85")
	inv := newTestInvoice(t, pool, sale.ID, "INV-P4")

	payment, err := payments.CreatePayment(ctx, core.PaymentInput{
		SaleID:         sale.ID,
		AmountReceived: mustDecimal(t, "3675.00"),
		PaymentDate:    "2024-03-15",
		PaymentMethod:  "cheque",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	gotSale, err := sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if gotSale.SaleStatus != core.SalePaid {
		t.Fatalf("sale status = %q, want Paid before deletion", gotSale.SaleStatus)
	}

	if err := payments.DeletePayment(ctx, payment.ID); err != nil {
		t.Fatalf("DeletePayment failed: %v", err)
	}

	gotSale, err = sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if gotSale.SaleStatus != core.SaleInvoiced {
		t.Errorf("sale status after deletion = %q, want Invoiced", gotSale.SaleStatus)
	}

	// The invoice reverts too, and no ledger rows linger.
	gotInv, err := invoices.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if gotInv.Status != core.InvoiceGenerated {
		t.Errorf("invoice status after deletion = %q, want Generated", gotInv.Status)
	}
	var entryCount, allocCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM cashbook_entries").Scan(&entryCount); err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM cashbook_payment_allocations").Scan(&allocCount); err != nil {
		t.Fatalf("count allocations: %v", err)
	}
	if entryCount != 0 || allocCount != 0 {
		t.Errorf("payment deletion left rows behind: entries=%d allocations=%d", entryCount, allocCount)
	}
}

func TestPayment_UninvoicedSaleGetsNoAllocation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	payments := core.NewPaymentService(pool)
	sales := core.NewSaleService(pool)

	client := newTestClient(t, pool, "Early Payer")
	sale := newTestSale(t, pool, client.ID, "LPO-P5", "1000", "3.50", "2.85")

	// A payment before invoicing still lands in the cashbook, unallocated.
	if _, err := payments.CreatePayment(ctx, core.PaymentInput{
		SaleID:         sale.ID,
		AmountReceived: mustDecimal(t, "3675.00"),
		PaymentDate:    "2024-03-15",
		PaymentMethod:  "cash",
	}); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	var allocCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM cashbook_payment_allocations").Scan(&allocCount); err != nil {
		t.Fatalf("count allocations: %v", err)
	}
	if allocCount != 0 {
		t.Errorf("expected no allocations for an uninvoiced sale, got %d", allocCount)
	}

	// Payment totals cover the sale, so the status engine closes it even
	// without an invoice-side allocation.
	gotSale, err := sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if gotSale.SaleStatus != core.SalePaid {
		t.Errorf("sale status = %q, want Paid from payment totals", gotSale.SaleStatus)
	}
}
