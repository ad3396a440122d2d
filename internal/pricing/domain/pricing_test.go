package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestServiceFeeAndCodeWorkedExample(t *testing.T) {
	fees := []Fee{{Name: "Service", Amount: dec("6"), Type: orderdomain.FeePercentage, AppliesTo: AppliesBoth, Active: true}}
	code := DiscountCode{
		Code:           "FIVEOFF",
		Type:           orderdomain.FeeFixed,
		Value:          dec("5"),
		MinOrderAmount: dec("20"),
		Active:         true,
	}
	subtotal := dec("50.00")

	feeTotal := Compute(subtotal, orderdomain.DineIn, fees)
	discount, err := code.Evaluate(now, orderdomain.DineIn, subtotal)
	require.NoError(t, err)

	assert.Equal(t, "3.00", feeTotal.StringFixed(2))
	assert.Equal(t, "5.00", discount.StringFixed(2))
	assert.Equal(t, "48.00", subtotal.Add(feeTotal).Sub(discount).StringFixed(2))
}

func TestFeesRoundedOnceAtTheSum(t *testing.T) {
	fees := []orderdomain.AppliedFee{
		{Name: "Service", Kind: orderdomain.FeePercentage, Value: dec("6")},
		{Name: "Packaging", Kind: orderdomain.FeePercentage, Value: dec("5")},
	}
	// 0.603 + 0.5025 = 1.1055; rounding each first would give 1.10.
	assert.Equal(t, "1.11", FeesTotal(dec("10.05"), fees).StringFixed(2))
}

func TestSelectFeesByDiningType(t *testing.T) {
	fees := []Fee{
		{Name: "Service", Amount: dec("10"), Type: orderdomain.FeePercentage, AppliesTo: AppliesDineIn, Active: true},
		{Name: "Bag", Amount: dec("0.50"), Type: orderdomain.FeeFixed, AppliesTo: AppliesTakeaway, Active: true},
		{Name: "Tax", Amount: dec("5"), Type: orderdomain.FeePercentage, AppliesTo: AppliesBoth, Active: true},
		{Name: "Old", Amount: dec("1"), Type: orderdomain.FeeFixed, AppliesTo: AppliesBoth, Active: false},
	}

	takeaway := SelectFees(orderdomain.Takeaway, fees)
	require.Len(t, takeaway, 2)
	assert.Equal(t, "Bag", takeaway[0].Name)
	assert.Equal(t, "Tax", takeaway[1].Name)

	assert.Equal(t, "1.50", Compute(dec("20"), orderdomain.Takeaway, fees).StringFixed(2))
	assert.Equal(t, "3.00", Compute(dec("20"), orderdomain.DineIn, fees).StringFixed(2))
	assert.True(t, Compute(dec("20"), orderdomain.DineIn, nil).IsZero())
}

func TestEvaluateCheckOrder(t *testing.T) {
	past := now.Add(-time.Hour)
	base := DiscountCode{
		Code:           "TEN",
		Type:           orderdomain.FeePercentage,
		Value:          dec("10"),
		MinOrderAmount: dec("15"),
		AppliesTo:      []orderdomain.DiningType{orderdomain.DineIn},
		Active:         true,
	}

	tests := []struct {
		name     string
		mutate   func(c *DiscountCode)
		dining   orderdomain.DiningType
		subtotal string
		wantErr  error
		want     string
	}{
		{name: "ok", dining: orderdomain.DineIn, subtotal: "30", want: "3.00"},
		{name: "inactive", mutate: func(c *DiscountCode) { c.Active = false }, dining: orderdomain.DineIn, subtotal: "30", wantErr: ErrCodeNotFound},
		{name: "expired beats wrong type", mutate: func(c *DiscountCode) { c.ExpiresAt = &past }, dining: orderdomain.Takeaway, subtotal: "30", wantErr: ErrExpired},
		{name: "wrong dining type", dining: orderdomain.Takeaway, subtotal: "30", wantErr: ErrNotApplicable},
		{name: "below minimum", dining: orderdomain.DineIn, subtotal: "14.99", wantErr: ErrBelowMinimum},
		{name: "exhausted", mutate: func(c *DiscountCode) { c.UsageLimit, c.UsageCount = 2, 2 }, dining: orderdomain.DineIn, subtotal: "30", wantErr: ErrExhausted},
		{name: "limit zero is unlimited", mutate: func(c *DiscountCode) { c.UsageLimit, c.UsageCount = 0, 500 }, dining: orderdomain.DineIn, subtotal: "30", want: "3.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			got, err := c.Evaluate(now, tt.dining, dec(tt.subtotal))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestDiscountCappedAtSubtotal(t *testing.T) {
	assert.Equal(t, "8.00", DiscountAmount(orderdomain.FeeFixed, dec("12"), dec("8")).StringFixed(2))
	assert.Equal(t, "0.34", DiscountAmount(orderdomain.FeePercentage, dec("5"), dec("6.70")).StringFixed(2))
}

func TestManualDiscount(t *testing.T) {
	d, err := ManualDiscount(dec("4"), "regular customer", dec("10"))
	require.NoError(t, err)
	assert.Equal(t, orderdomain.DiscountManual, d.Source)
	assert.Equal(t, "4.00", d.Value.StringFixed(2))

	_, err = ManualDiscount(dec("10.01"), "too much", dec("10"))
	assert.ErrorIs(t, err, orderdomain.ErrDiscountTooLarge)

	_, err = ManualDiscount(dec("-1"), "negative", dec("10"))
	assert.ErrorIs(t, err, orderdomain.ErrNegativeAmount)

	_, err = ManualDiscount(dec("1"), " ", dec("10"))
	assert.ErrorIs(t, err, ErrManualReason)
}

func TestRepriceAfterLineCancel(t *testing.T) {
	o, err := orderdomain.NewOrder("o-1", orderdomain.DineIn, 3, []orderdomain.OrderItem{
		{ProductID: "latte", Name: "Latte", UnitPrice: dec("4.00"), Quantity: 2},
		{ProductID: "cake", Name: "Cake", UnitPrice: dec("6.00"), Quantity: 1},
	}, now)
	require.NoError(t, err)
	o.Fees = []orderdomain.AppliedFee{{Name: "Service", Kind: orderdomain.FeePercentage, Value: dec("10")}}
	o.Discount = &orderdomain.AppliedDiscount{Source: orderdomain.DiscountManual, Kind: orderdomain.FeeFixed, Value: dec("7"), Reason: "comp"}
	require.NoError(t, Reprice(&o))
	assert.Equal(t, "8.40", o.Total.StringFixed(2))

	require.NoError(t, o.CancelItem(2, "out of cake", now))
	require.NoError(t, Reprice(&o))

	assert.Equal(t, "8.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "0.80", o.FeesTotal.StringFixed(2))
	assert.Equal(t, "7.00", o.DiscountAmount.StringFixed(2))
	assert.Equal(t, "1.80", o.Total.StringFixed(2))
	assert.NoError(t, o.CheckTotals())
}
