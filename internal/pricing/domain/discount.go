package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
)

var (
	ErrCodeNotFound  = errors.New("discount code not found")
	ErrExpired       = errors.New("discount code expired")
	ErrNotApplicable = errors.New("discount code not applicable to this order type")
	ErrBelowMinimum  = errors.New("order subtotal below discount minimum")
	ErrExhausted     = errors.New("discount code usage limit reached")
	ErrManualReason  = errors.New("manual discount needs a reason")
)

// DiscountCode is reference data; UsageLimit 0 means unlimited.
type DiscountCode struct {
	Code           string                   `json:"code"`
	Type           orderdomain.FeeKind      `json:"type"`
	Value          decimal.Decimal          `json:"value"`
	MinOrderAmount decimal.Decimal          `json:"min_order_amount"`
	UsageLimit     int                      `json:"usage_limit"`
	UsageCount     int                      `json:"usage_count"`
	ExpiresAt      *time.Time               `json:"expires_at,omitempty"`
	AppliesTo      []orderdomain.DiningType `json:"applies_to"`
	Active         bool                     `json:"active"`
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c DiscountCode) Exhausted() bool {
	return c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit
}

func (c DiscountCode) appliesTo(dining orderdomain.DiningType) bool {
	if len(c.AppliesTo) == 0 {
		return true
	}
	for _, d := range c.AppliesTo {
		if d == dining {
			return true
		}
	}
	return false
}

// Evaluate runs the checks in a fixed order and returns the discount amount
// for subtotal, capped at subtotal. It never touches usage counters.
func (c DiscountCode) Evaluate(now time.Time, dining orderdomain.DiningType, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if !c.Active {
		return decimal.Zero, ErrCodeNotFound
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return decimal.Zero, ErrExpired
	}
	if !c.appliesTo(dining) {
		return decimal.Zero, ErrNotApplicable
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return decimal.Zero, ErrBelowMinimum
	}
	if c.Exhausted() {
		return decimal.Zero, ErrExhausted
	}
	return DiscountAmount(c.Type, c.Value, subtotal), nil
}

// Snapshot freezes the code's terms for storage on an order.
func (c DiscountCode) Snapshot() orderdomain.AppliedDiscount {
	return orderdomain.AppliedDiscount{
		Source: orderdomain.DiscountCode,
		Code:   c.Code,
		Kind:   c.Type,
		Value:  c.Value,
		Reason: "code " + c.Code,
	}
}

// DiscountAmount is the amount a discount takes off subtotal, capped at subtotal.
func DiscountAmount(kind orderdomain.FeeKind, value, subtotal decimal.Decimal) decimal.Decimal {
	amount := value
	if kind == orderdomain.FeePercentage {
		amount = subtotal.Mul(value).Div(hundred)
	}
	amount = orderdomain.Round(amount)
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// ManualDiscount validates a staff-entered amount against subtotal.
func ManualDiscount(amount decimal.Decimal, reason string, subtotal decimal.Decimal) (orderdomain.AppliedDiscount, error) {
	if amount.IsNegative() {
		return orderdomain.AppliedDiscount{}, orderdomain.ErrNegativeAmount
	}
	if amount.GreaterThan(subtotal) {
		return orderdomain.AppliedDiscount{}, orderdomain.ErrDiscountTooLarge
	}
	if strings.TrimSpace(reason) == "" {
		return orderdomain.AppliedDiscount{}, ErrManualReason
	}
	return orderdomain.AppliedDiscount{
		Source: orderdomain.DiscountManual,
		Kind:   orderdomain.FeeFixed,
		Value:  orderdomain.Round(amount),
		Reason: reason,
	}, nil
}

// Reprice recomputes fees and discount for o from its frozen snapshots and
// stores the result. The discount is re-capped at the new subtotal.
func Reprice(o *orderdomain.Order) error {
	subtotal := o.ItemsSubtotal()
	fees := FeesTotal(subtotal, o.Fees)
	discount := decimal.Zero
	o.DiscountReason = ""
	if o.Discount != nil {
		discount = DiscountAmount(o.Discount.Kind, o.Discount.Value, subtotal)
		o.DiscountReason = o.Discount.Reason
	}
	return o.SetTotals(subtotal, fees, discount)
}
