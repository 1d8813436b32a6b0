package services

import (
	"fmt"

	"github.com/shopspring/decimal"
	"returns-service/internal/models"
)

// minorUnitPlaces is the minor-unit precision refunds are rounded to.
// All supported currencies settle at two decimal places.
const minorUnitPlaces = 2

// DefaultDeductionRates returns the standard restocking-fee table. Only
// change-of-mind returns carry a fee today; whether reasons like late
// delivery warrant partial fees is a product decision, so the table is
// injected rather than hardcoded.
func DefaultDeductionRates() map[models.ReturnReason]decimal.Decimal {
	return map[models.ReturnReason]decimal.Decimal{
		models.ReturnReasonChangeOfMind: decimal.NewFromFloat(0.10),
	}
}

// RefundCalculator computes refund amounts from return line items. It is
// pure and performs no I/O.
type RefundCalculator struct {
	deductionRates map[models.ReturnReason]decimal.Decimal
}

// NewRefundCalculator creates a calculator with the given restocking-fee
// rates. A nil map means no deductions.
func NewRefundCalculator(deductionRates map[models.ReturnReason]decimal.Decimal) *RefundCalculator {
	return &RefundCalculator{deductionRates: deductionRates}
}

// Calculate returns the refund for the given items and reason.
//
// A non-negative override is an admin decision and is returned unchanged.
// Otherwise the refund is the sum of quantity * unit price, less the
// restocking fee for the reason, rounded half-to-even to the currency's
// minor unit.
func (c *RefundCalculator) Calculate(items []models.ReturnItem, reason models.ReturnReason, override *decimal.Decimal) (decimal.Decimal, error) {
	if override != nil {
		if override.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: override amount must not be negative", models.ErrInvalidRefundInput)
		}
		return *override, nil
	}

	if len(items) == 0 {
		return decimal.Zero, fmt.Errorf("%w: at least one item is required", models.ErrInvalidRefundInput)
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return decimal.Zero, fmt.Errorf("%w: item %s has non-positive quantity %d", models.ErrInvalidRefundInput, item.OrderItemID, item.Quantity)
		}
		if item.UnitPrice < 0 {
			return decimal.Zero, fmt.Errorf("%w: item %s has negative unit price", models.ErrInvalidRefundInput, item.OrderItemID)
		}
		total = total.Add(item.Subtotal())
	}

	if rate, ok := c.deductionRates[reason]; ok && rate.IsPositive() {
		total = total.Mul(decimal.NewFromInt(1).Sub(rate)).RoundBank(minorUnitPlaces)
	}

	return total, nil
}
