package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"returns-service/internal/models"
)

func testItem(quantity int, unitPrice float64) models.ReturnItem {
	return models.ReturnItem{
		OrderItemID: uuid.New(),
		ProductName: "Test Product",
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}
}

func TestCalculate_FullRefund_NoDeduction(t *testing.T) {
	calc := NewRefundCalculator(DefaultDeductionRates())

	items := []models.ReturnItem{
		testItem(2, 19.99),
		testItem(1, 5.50),
	}

	amount, err := calc.Calculate(items, models.ReturnReasonDefective, nil)

	assert.NoError(t, err)
	assert.Equal(t, "45.48", amount.StringFixed(2))
}

func TestCalculate_ChangeOfMind_AppliesRestockingFee(t *testing.T) {
	calc := NewRefundCalculator(DefaultDeductionRates())

	// 2 x 25.00 = 50.00, less 10% = 45.00
	items := []models.ReturnItem{testItem(2, 25.00)}

	amount, err := calc.Calculate(items, models.ReturnReasonChangeOfMind, nil)

	assert.NoError(t, err)
	assert.Equal(t, "45.00", amount.StringFixed(2))
}

func TestCalculate_RoundsHalfToEven(t *testing.T) {
	calc := NewRefundCalculator(DefaultDeductionRates())

	// 0.25 * 0.9 = 0.225 -> 0.22 (2 is even)
	amount, err := calc.Calculate([]models.ReturnItem{testItem(1, 0.25)}, models.ReturnReasonChangeOfMind, nil)
	assert.NoError(t, err)
	assert.Equal(t, "0.22", amount.StringFixed(2))

	// 0.75 * 0.9 = 0.675 -> 0.68 (7 is odd, rounds up to even)
	amount, err = calc.Calculate([]models.ReturnItem{testItem(1, 0.75)}, models.ReturnReasonChangeOfMind, nil)
	assert.NoError(t, err)
	assert.Equal(t, "0.68", amount.StringFixed(2))
}

func TestCalculate_OverrideBypassesDeduction(t *testing.T) {
	calc := NewRefundCalculator(DefaultDeductionRates())

	override := decimal.NewFromFloat(12.34)
	amount, err := calc.Calculate([]models.ReturnItem{testItem(2, 25.00)}, models.ReturnReasonChangeOfMind, &override)

	assert.NoError(t, err)
	assert.Equal(t, "12.34", amount.StringFixed(2))
}

func TestCalculate_ZeroOverrideIsValid(t *testing.T) {
	calc := NewRefundCalculator(DefaultDeductionRates())

	override := decimal.Zero
	amount, err := calc.Calculate([]models.ReturnItem{testItem(1, 10.00)}, models.ReturnReasonDefective, &override)

	assert.NoError(t, err)
	assert.True(t, amount.IsZero())
}

func TestCalculate_NegativeOverride(t *testing.T) {
	calc := NewRefundCalculator(DefaultDeductionRates())

	override := decimal.NewFromFloat(-1.00)
	_, err := calc.Calculate([]models.ReturnItem{testItem(1, 10.00)}, models.ReturnReasonDefective, &override)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidRefundInput))
}

func TestCalculate_EmptyItems(t *testing.T) {
	calc := NewRefundCalculator(DefaultDeductionRates())

	_, err := calc.Calculate(nil, models.ReturnReasonDefective, nil)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidRefundInput))
}

func TestCalculate_InvalidItems(t *testing.T) {
	calc := NewRefundCalculator(DefaultDeductionRates())

	_, err := calc.Calculate([]models.ReturnItem{testItem(0, 10.00)}, models.ReturnReasonDefective, nil)
	assert.True(t, errors.Is(err, models.ErrInvalidRefundInput))

	_, err = calc.Calculate([]models.ReturnItem{testItem(1, -10.00)}, models.ReturnReasonDefective, nil)
	assert.True(t, errors.Is(err, models.ErrInvalidRefundInput))
}

func TestCalculate_NilRatesMeansNoDeduction(t *testing.T) {
	calc := NewRefundCalculator(nil)

	amount, err := calc.Calculate([]models.ReturnItem{testItem(2, 25.00)}, models.ReturnReasonChangeOfMind, nil)

	assert.NoError(t, err)
	assert.Equal(t, "50.00", amount.StringFixed(2))
}
