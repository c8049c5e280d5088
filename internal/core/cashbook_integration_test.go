package core_test

import (
	"context"
	"errors"
	"testing"

	"fueltrade/internal/core"
)

func TestCashbook_BalanceExcludesPendingEntries(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	cashbook := core.NewCashbookService(pool)
	stock := core.NewStockService(pool)

	client := newTestClient(t, pool, "Gulf Contracting")
	headID := clientHeadID(t, pool, client.ID)
	newTestReceipt(t, pool, headID, "10000.00")

	// Cash purchase hits the balance immediately.
	_, err := stock.CreateStockPurchase(ctx, core.StockPurchaseInput{
		SupplierName:    "ADNOC Distribution",
		PurchaseDate:    "2024-03-11",
		QuantityGallons: mustDecimal(t, "1000"),
		PricePerGallon:  mustDecimal(t, "2.85"),
		PaymentStatus:   core.StockPaidCash,
		PaymentMethod:   "bank transfer",
	})
	if err != nil {
		t.Fatalf("CreateStockPurchase (cash) failed: %v", err)
	}

	// Credit purchase is a pending debt and must not touch the balance.
	_, err = stock.CreateStockPurchase(ctx, core.StockPurchaseInput{
		SupplierName:    "ENOC",
		PurchaseDate:    "2024-03-12",
		QuantityGallons: mustDecimal(t, "2000"),
		PricePerGallon:  mustDecimal(t, "2.90"),
		PaymentStatus:   core.StockPaidCredit,
	})
	if err != nil {
		t.Fatalf("CreateStockPurchase (credit) failed: %v", err)
	}

	balance, err := cashbook.GetCashBalance(ctx)
	if err != nil {
		t.Fatalf("GetCashBalance failed: %v", err)
	}
	if got, want := balance.StringFixed(2), "7150.00"; got != want {
		t.Errorf("cash balance = %s, want %s (10000.00 in, 2850.00 out, 5800.00 pending)", got, want)
	}

	sum, err := cashbook.GetTransactionSummary(ctx)
	if err != nil {
		t.Fatalf("GetTransactionSummary failed: %v", err)
	}
	if got, want := sum.TotalInflow.StringFixed(2), "10000.00"; got != want {
		t.Errorf("TotalInflow = %s, want %s", got, want)
	}
	if got, want := sum.TotalOutflow.StringFixed(2), "2850.00"; got != want {
		t.Errorf("TotalOutflow = %s, want %s", got, want)
	}
	if got, want := sum.PendingDebts.StringFixed(2), "5800.00"; got != want {
		t.Errorf("PendingDebts = %s, want %s", got, want)
	}
	if got, want := sum.AvailableBalance.StringFixed(2), "7150.00"; got != want {
		t.Errorf("AvailableBalance = %s, want %s", got, want)
	}

	debts, err := cashbook.GetPendingDebts(ctx)
	if err != nil {
		t.Fatalf("GetPendingDebts failed: %v", err)
	}
	if len(debts) != 1 {
		t.Fatalf("expected 1 pending debt, got %d", len(debts))
	}
	if got, want := debts[0].Amount.StringFixed(2), "5800.00"; got != want {
		t.Errorf("pending debt amount = %s, want %s", got, want)
	}
	if debts[0].IsInflow {
		t.Error("stock purchase debt should be an outflow")
	}
}

func TestCashbook_MarkDebtAsPaid(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	cashbook := core.NewCashbookService(pool)
	stock := core.NewStockService(pool)

	client := newTestClient(t, pool, "Desert Logistics")
	headID := clientHeadID(t, pool, client.ID)
	newTestReceipt(t, pool, headID, "20000.00")

	// 5000 gallons at 2.85 on credit: a 14250.00 pending debt.
	_, err := stock.CreateStockPurchase(ctx, core.StockPurchaseInput{
		SupplierName:    "ENOC",
		PurchaseDate:    "2024-03-01",
		QuantityGallons: mustDecimal(t, "5000"),
		PricePerGallon:  mustDecimal(t, "2.85"),
		PaymentStatus:   core.StockPaidCredit,
	})
	if err != nil {
		t.Fatalf("CreateStockPurchase failed: %v", err)
	}

	debts, err := cashbook.GetPendingDebts(ctx)
	if err != nil {
		t.Fatalf("GetPendingDebts failed: %v", err)
	}
	if len(debts) != 1 {
		t.Fatalf("expected 1 pending debt, got %d", len(debts))
	}
	debt := debts[0]
	if got, want := debt.Amount.StringFixed(2), "14250.00"; got != want {
		t.Fatalf("debt amount = %s, want %s", got, want)
	}

	before, err := cashbook.GetCashBalance(ctx)
	if err != nil {
		t.Fatalf("GetCashBalance failed: %v", err)
	}

	settlement, err := cashbook.MarkDebtAsPaid(ctx, debt.ID, debt.Amount, "bank transfer", "2024-03-20")
	if err != nil {
		t.Fatalf("MarkDebtAsPaid failed: %v", err)
	}
	if settlement.TransactionType != core.TxnStockPayment {
		t.Errorf("settlement type = %q, want %q", settlement.TransactionType, core.TxnStockPayment)
	}
	if settlement.IsInflow != debt.IsInflow {
		t.Error("settlement must move cash in the same direction as the debt")
	}
	if settlement.IsPending {
		t.Error("settlement entry must not itself be pending")
	}
	if settlement.ReferenceType == nil || *settlement.ReferenceType != core.RefDebtPayment {
		t.Errorf("settlement reference type = %v, want %q", settlement.ReferenceType, core.RefDebtPayment)
	}
	if settlement.ReferenceID == nil || *settlement.ReferenceID != debt.ID {
		t.Errorf("settlement reference id = %v, want %d", settlement.ReferenceID, debt.ID)
	}
	if got, want := settlement.Amount.StringFixed(2), "14250.00"; got != want {
		t.Errorf("settlement amount = %s, want %s", got, want)
	}

	// The original stays in the ledger, no longer pending.
	original, err := cashbook.GetEntry(ctx, debt.ID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if original.IsPending {
		t.Error("settled debt should no longer be pending")
	}

	debts, err = cashbook.GetPendingDebts(ctx)
	if err != nil {
		t.Fatalf("GetPendingDebts failed: %v", err)
	}
	if len(debts) != 0 {
		t.Errorf("expected no pending debts after settlement, got %d", len(debts))
	}

	after, err := cashbook.GetCashBalance(ctx)
	if err != nil {
		t.Fatalf("GetCashBalance failed: %v", err)
	}
	// The settled original now counts in the realized sums alongside the
	// new settlement entry, so the drop is 14250 + 14250.
	if got, want := before.Sub(after).StringFixed(2), "28500.00"; got != want {
		t.Errorf("balance drop = %s, want %s", got, want)
	}

	// A settled debt cannot be settled again.
	_, err = cashbook.MarkDebtAsPaid(ctx, debt.ID, debt.Amount, "cash", "2024-03-21")
	if !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("second settlement: got %v, want ErrInvalidState", err)
	}
}

func TestCashbook_MarkDebtAsPaidValidation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	cashbook := core.NewCashbookService(pool)

	if _, err := cashbook.MarkDebtAsPaid(ctx, 1, mustDecimal(t, "0"), "cash", "2024-03-20"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("zero amount: got %v, want ErrValidation", err)
	}
	if _, err := cashbook.MarkDebtAsPaid(ctx, 1, mustDecimal(t, "100"), "cash", "not-a-date"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad date: got %v, want ErrValidation", err)
	}
	if _, err := cashbook.MarkDebtAsPaid(ctx, 99999, mustDecimal(t, "100"), "cash", "2024-03-20"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing entry: got %v, want ErrNotFound", err)
	}

	// A settled entry is not a debt.
	client := newTestClient(t, pool, "Validation Client")
	headID := clientHeadID(t, pool, client.ID)
	receipt := newTestReceipt(t, pool, headID, "500.00")
	if _, err := cashbook.MarkDebtAsPaid(ctx, receipt.ID, mustDecimal(t, "500.00"), "cash", "2024-03-20"); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("settled entry: got %v, want ErrInvalidState", err)
	}
}

func TestCashbook_UpdateEntryGuards(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	cashbook := core.NewCashbookService(pool)
	alloc := core.NewAllocationService(pool)

	client := newTestClient(t, pool, "Guarded Trading")
	headID := clientHeadID(t, pool, client.ID)
	sale := newTestSale(t, pool, client.ID, "LPO-G1", "1000", "3.50", "2.85")
	inv := newTestInvoice(t, pool, sale.ID, "INV-G1")

	entry := newTestReceipt(t, pool, headID, "2000.00")
	if _, err := alloc.CreateAllocation(ctx, entry.ID, inv.ID, mustDecimal(t, "1500.00")); err != nil {
		t.Fatalf("CreateAllocation failed: %v", err)
	}

	base := core.CashbookEntryInput{
		TransactionDate: entry.TransactionDate,
		TransactionType: entry.TransactionType,
		AccountHeadID:   entry.AccountHeadID,
		Counterparty:    entry.Counterparty,
		PaymentMethod:   entry.PaymentMethod,
	}

	// Shrinking below the allocated total must fail hard, not clamp.
	shrunk := base
	shrunk.Amount = mustDecimal(t, "1499.99")
	shrunk.IsInflow = true
	if _, err := cashbook.UpdateEntry(ctx, entry.ID, shrunk); !errors.Is(err, core.ErrOverAllocation) {
		t.Errorf("shrink below allocations: got %v, want ErrOverAllocation", err)
	}

	// Flipping direction while allocated must fail.
	flipped := base
	flipped.Amount = mustDecimal(t, "2000.00")
	flipped.IsInflow = false
	if _, err := cashbook.UpdateEntry(ctx, entry.ID, flipped); !errors.Is(err, core.ErrConflict) {
		t.Errorf("flip direction: got %v, want ErrConflict", err)
	}

	// Growing the entry is fine.
	grown := base
	grown.Amount = mustDecimal(t, "2500.00")
	grown.IsInflow = true
	updated, err := cashbook.UpdateEntry(ctx, entry.ID, grown)
	if err != nil {
		t.Fatalf("grow entry: %v", err)
	}
	if got, want := updated.Amount.StringFixed(2), "2500.00"; got != want {
		t.Errorf("updated amount = %s, want %s", got, want)
	}

	// Engine-owned entries cannot be edited here.
	pay := core.NewPaymentService(pool)
	if _, err := pay.CreatePayment(ctx, core.PaymentInput{
		SaleID:         sale.ID,
		AmountReceived: mustDecimal(t, "100.00"),
		PaymentDate:    "2024-03-15",
		PaymentMethod:  "cash",
	}); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	entries, err := cashbook.GetEntries(ctx)
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	var paymentEntry *core.CashbookEntry
	for i := range entries {
		if entries[i].ReferenceType != nil && *entries[i].ReferenceType == core.RefPayment {
			paymentEntry = &entries[i]
			break
		}
	}
	if paymentEntry == nil {
		t.Fatal("payment cashbook entry not found")
	}
	locked := base
	locked.Amount = mustDecimal(t, "100.00")
	locked.IsInflow = true
	if _, err := cashbook.UpdateEntry(ctx, paymentEntry.ID, locked); !errors.Is(err, core.ErrConflict) {
		t.Errorf("edit engine-owned entry: got %v, want ErrConflict", err)
	}
}

func TestCashbook_DeleteEntryCleansAllocations(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	cashbook := core.NewCashbookService(pool)
	alloc := core.NewAllocationService(pool)
	invoices := core.NewInvoiceService(pool)

	client := newTestClient(t, pool, "Cleanup Trading")
	headID := clientHeadID(t, pool, client.ID)
	sale := newTestSale(t, pool, client.ID, "LPO-C1", "1000", "3.50", "2.85")
	inv := newTestInvoice(t, pool, sale.ID, "INV-C1")

	entry := newTestReceipt(t, pool, headID, "3675.00")
	if _, err := alloc.CreateAllocation(ctx, entry.ID, inv.ID, inv.TotalAmount); err != nil {
		t.Fatalf("CreateAllocation failed: %v", err)
	}

	got, err := invoices.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if got.Status != core.InvoicePaid {
		t.Fatalf("invoice status = %q, want Paid before deletion", got.Status)
	}

	if err := cashbook.DeleteEntry(ctx, entry.ID); err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}

	// The invoice loses its coverage and reverts.
	got, err = invoices.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if got.Status != core.InvoiceGenerated {
		t.Errorf("invoice status after entry deletion = %q, want Generated", got.Status)
	}

	allocs, err := alloc.GetAllocationsByInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetAllocationsByInvoice failed: %v", err)
	}
	if len(allocs) != 0 {
		t.Errorf("expected no allocations after entry deletion, got %d", len(allocs))
	}
}

func TestCashbook_OutstandingByAccountHead(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	cashbook := core.NewCashbookService(pool)
	alloc := core.NewAllocationService(pool)
	stock := core.NewStockService(pool)

	client := newTestClient(t, pool, "Oasis Fuels")
	headID := clientHeadID(t, pool, client.ID)
	sale := newTestSale(t, pool, client.ID, "LPO-O1", "1000", "3.50", "2.85")
	inv := newTestInvoice(t, pool, sale.ID, "INV-O1") // 3675.00

	entry := newTestReceipt(t, pool, headID, "1000.00")
	if _, err := alloc.CreateAllocation(ctx, entry.ID, inv.ID, mustDecimal(t, "1000.00")); err != nil {
		t.Fatalf("CreateAllocation failed: %v", err)
	}

	if _, err := stock.CreateStockPurchase(ctx, core.StockPurchaseInput{
		SupplierName:    "ENOC",
		PurchaseDate:    "2024-03-12",
		QuantityGallons: mustDecimal(t, "1000"),
		PricePerGallon:  mustDecimal(t, "2.90"),
		PaymentStatus:   core.StockPaidCredit,
	}); err != nil {
		t.Fatalf("CreateStockPurchase failed: %v", err)
	}

	lines, err := cashbook.GetOutstandingByAccountHead(ctx)
	if err != nil {
		t.Fatalf("GetOutstandingByAccountHead failed: %v", err)
	}

	byName := make(map[string]core.OutstandingLine, len(lines))
	for _, line := range lines {
		byName[line.HeadName] = line
	}

	clientLine, ok := byName["Oasis Fuels"]
	if !ok {
		t.Fatal("expected an outstanding line for the client head")
	}
	if got, want := clientLine.Outstanding.StringFixed(2), "2675.00"; got != want {
		t.Errorf("client outstanding = %s, want %s (3675.00 invoiced, 1000.00 allocated)", got, want)
	}
	if clientLine.Category != core.HeadClient {
		t.Errorf("client line category = %q, want Client", clientLine.Category)
	}

	supplierLine, ok := byName["ENOC"]
	if !ok {
		t.Fatal("expected an outstanding line for the supplier head")
	}
	if got, want := supplierLine.Outstanding.StringFixed(2), "2900.00"; got != want {
		t.Errorf("supplier outstanding = %s, want %s", got, want)
	}
	if supplierLine.Category != core.HeadSupplier {
		t.Errorf("supplier line category = %q, want Supplier", supplierLine.Category)
	}
}
