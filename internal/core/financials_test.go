package core_test

import (
	"errors"
	"testing"

	"fueltrade/internal/core"

	"github.com/shopspring/decimal"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return v
}

func TestComputeSaleFinancials_StandardSale(t *testing.T) {
	fin, err := core.ComputeSaleFinancials(d(t, "1000"), d(t, "3.50"), d(t, "2.85"), d(t, "5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"subtotal", fin.Subtotal, "3500.00"},
		{"vat amount", fin.VATAmount, "175.00"},
		{"total amount", fin.TotalAmount, "3675.00"},
		{"cogs", fin.COGS, "2850.00"},
		{"gross profit", fin.GrossProfit, "650.00"},
	}
	for _, c := range checks {
		if c.got.StringFixed(2) != c.want {
			t.Errorf("%s = %s, want %s", c.name, c.got.StringFixed(2), c.want)
		}
	}

	if !fin.TotalAmount.Equal(fin.Subtotal.Add(fin.VATAmount)) {
		t.Errorf("total %s != subtotal %s + vat %s", fin.TotalAmount, fin.Subtotal, fin.VATAmount)
	}
}

func TestComputeSaleFinancials_ZeroVAT(t *testing.T) {
	fin, err := core.ComputeSaleFinancials(d(t, "500"), d(t, "4.00"), d(t, "3.10"), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fin.VATAmount.IsZero() {
		t.Errorf("vat amount = %s, want 0", fin.VATAmount)
	}
	if !fin.TotalAmount.Equal(fin.Subtotal) {
		t.Errorf("total %s should equal subtotal %s when VAT is zero", fin.TotalAmount, fin.Subtotal)
	}
}

func TestComputeSaleFinancials_RoundsHalfUp(t *testing.T) {
	// 333 gallons at 3.005 → raw subtotal 1000.665, rounds to 1000.67
	fin, err := core.ComputeSaleFinancials(d(t, "333"), d(t, "3.005"), d(t, "2.00"), d(t, "5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fin.Subtotal.StringFixed(2); got != "1000.67" {
		t.Errorf("subtotal = %s, want 1000.67", got)
	}
}

func TestComputeSaleFinancials_Idempotent(t *testing.T) {
	first, err := core.ComputeSaleFinancials(d(t, "750.25"), d(t, "3.47"), d(t, "2.93"), d(t, "5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := core.ComputeSaleFinancials(d(t, "750.25"), d(t, "3.47"), d(t, "2.93"), d(t, "5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Subtotal.Equal(second.Subtotal) || !first.VATAmount.Equal(second.VATAmount) ||
		!first.TotalAmount.Equal(second.TotalAmount) || !first.COGS.Equal(second.COGS) ||
		!first.GrossProfit.Equal(second.GrossProfit) {
		t.Errorf("recomputation drifted: %+v vs %+v", first, second)
	}
}

func TestComputeSaleFinancials_Validation(t *testing.T) {
	tests := []struct {
		name                     string
		qty, sale, purchase, vat string
	}{
		{"zero quantity", "0", "3.50", "2.85", "5"},
		{"negative quantity", "-10", "3.50", "2.85", "5"},
		{"negative sale price", "100", "-1.00", "2.85", "5"},
		{"negative purchase price", "100", "3.50", "-0.01", "5"},
		{"negative vat", "100", "3.50", "2.85", "-5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := core.ComputeSaleFinancials(d(t, tc.qty), d(t, tc.sale), d(t, tc.purchase), d(t, tc.vat))
			if !errors.Is(err, core.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}
