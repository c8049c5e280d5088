package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PaidEpsilon is the tolerance for "fully paid" comparisons. Payment totals
// within one cent of the invoice/sale total count as full settlement, so
// rounding on either side never strands an invoice at Generated.
var PaidEpsilon = decimal.New(1, -2) // 0.01

// SaleFinancials holds the five monetary fields derived from a sale's base
// inputs, each rounded half-up to 2 decimal places.
type SaleFinancials struct {
	Subtotal    decimal.Decimal
	VATAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	COGS        decimal.Decimal
	GrossProfit decimal.Decimal
}

// ComputeSaleFinancials derives subtotal, VAT, total, cost of goods sold and
// gross profit from quantity, per-gallon prices and VAT percentage. It is
// pure: calling it twice with the same inputs yields identical outputs, which
// is why updates recompute everything from scratch instead of patching stored
// figures. A zero VAT rate is valid and yields VATAmount = 0.
func ComputeSaleFinancials(quantityGallons, salePrice, purchasePrice, vatPercentage decimal.Decimal) (SaleFinancials, error) {
	if !quantityGallons.IsPositive() {
		return SaleFinancials{}, fmt.Errorf("quantity must be > 0, got %s: %w", quantityGallons, ErrValidation)
	}
	if salePrice.IsNegative() {
		return SaleFinancials{}, fmt.Errorf("sale price cannot be negative: %w", ErrValidation)
	}
	if purchasePrice.IsNegative() {
		return SaleFinancials{}, fmt.Errorf("purchase price cannot be negative: %w", ErrValidation)
	}
	if vatPercentage.IsNegative() {
		return SaleFinancials{}, fmt.Errorf("VAT percentage cannot be negative: %w", ErrValidation)
	}

	// Round(2) is half away from zero, which for positive currency amounts is
	// the half-up policy used throughout the cashbook.
	subtotal := quantityGallons.Mul(salePrice).Round(2)
	vatAmount := subtotal.Mul(vatPercentage).Div(decimal.NewFromInt(100)).Round(2)
	cogs := quantityGallons.Mul(purchasePrice).Round(2)

	return SaleFinancials{
		Subtotal:    subtotal,
		VATAmount:   vatAmount,
		TotalAmount: subtotal.Add(vatAmount),
		COGS:        cogs,
		GrossProfit: subtotal.Sub(cogs), // VAT excluded from profit
	}, nil
}

// fullyPaid reports whether paid covers total within PaidEpsilon.
func fullyPaid(paid, total decimal.Decimal) bool {
	return total.Sub(paid).LessThanOrEqual(PaidEpsilon)
}
