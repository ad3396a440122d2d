package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DiningType string

const (
	DineIn      DiningType = "dine_in"
	Takeaway    DiningType = "takeaway"
	Reservation DiningType = "reservation"
)

func (d DiningType) Valid() bool {
	switch d {
	case DineIn, Takeaway, Reservation:
		return true
	}
	return false
}

type Size string

const (
	SizeS Size = "S"
	SizeM Size = "M"
	SizeL Size = "L"
)

func (s Size) Valid() bool {
	return s == SizeS || s == SizeM || s == SizeL
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrVersionConflict   = errors.New("order changed concurrently")
	ErrTotalMismatch     = errors.New("total does not equal subtotal + fees - discount")
	ErrNoItems           = errors.New("order has no items")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrUnknownLine       = errors.New("unknown order line")
	ErrLineCancelled     = errors.New("order line already cancelled")
	ErrLinePaid          = errors.New("order line already has payments")
	ErrDiscountTooLarge  = errors.New("discount exceeds subtotal")
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrTableRequired     = errors.New("dine-in orders need a table number")
	ErrScheduleRequired  = errors.New("reservation orders need a scheduled time")
	ErrInvalidDiningType = errors.New("invalid dining type")
)

type AddOn struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderItem is a line on the kitchen ticket. Name and prices are snapshots
// taken at submission and never follow later catalog edits.
type OrderItem struct {
	Line         int             `json:"line"`
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	Size         Size            `json:"size"`
	AddOns       []AddOn         `json:"selected_add_ons"`
	Notes        string          `json:"notes,omitempty"`
	Kitchen      bool            `json:"kitchen"`
	Cancelled    bool            `json:"cancelled"`
	CancelReason string          `json:"cancel_reason,omitempty"`
}

func (i OrderItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type FeeKind string

const (
	FeeFixed      FeeKind = "fixed"
	FeePercentage FeeKind = "percentage"
)

// AppliedFee is the fee definition frozen into the order at commit.
type AppliedFee struct {
	Name  string          `json:"name"`
	Kind  FeeKind         `json:"type"`
	Value decimal.Decimal `json:"value"`
}

type DiscountSource string

const (
	DiscountCode   DiscountSource = "code"
	DiscountManual DiscountSource = "manual"
)

// AppliedDiscount is the single active discount of an order.
type AppliedDiscount struct {
	Source DiscountSource  `json:"source"`
	Code   string          `json:"code,omitempty"`
	Kind   FeeKind         `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Reason string          `json:"reason,omitempty"`
}

type Order struct {
	ID             string           `json:"id"`
	TableNumber    int              `json:"table_number"`
	DiningType     DiningType       `json:"dining_type"`
	CustomerName   string           `json:"customer_name,omitempty"`
	Items          []OrderItem      `json:"items"`
	Fees           []AppliedFee     `json:"fees"`
	Discount       *AppliedDiscount `json:"discount,omitempty"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	FeesTotal      decimal.Decimal  `json:"fees_total"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	DiscountReason string           `json:"discount_reason,omitempty"`
	Total          decimal.Decimal  `json:"total"`
	Status         Status           `json:"status"`
	PaymentStatus  PaymentStatus    `json:"payment_status"`
	Notes          string           `json:"order_notes,omitempty"`
	ScheduledFor   *time.Time       `json:"scheduled_for,omitempty"`
	Version        int64            `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewOrder numbers the lines in insertion order and validates the shape.
// Totals are left at zero until the caller prices the order.
func NewOrder(id string, dining DiningType, table int, items []OrderItem, now time.Time) (Order, error) {
	if !dining.Valid() {
		return Order{}, ErrInvalidDiningType
	}
	if dining == DineIn && table <= 0 {
		return Order{}, ErrTableRequired
	}
	if len(items) == 0 {
		return Order{}, ErrNoItems
	}
	lines := make([]OrderItem, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return Order{}, fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
		}
		if it.UnitPrice.IsNegative() {
			return Order{}, fmt.Errorf("line %d: %w", i+1, ErrNegativeAmount)
		}
		it.Line = i + 1
		lines[i] = it
	}
	now = now.UTC()
	return Order{
		ID:             id,
		TableNumber:    table,
		DiningType:     dining,
		Items:          lines,
		Subtotal:       decimal.Zero,
		FeesTotal:      decimal.Zero,
		DiscountAmount: decimal.Zero,
		Total:          decimal.Zero,
		Status:         StatusPending,
		PaymentStatus:  PaymentUnpaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ItemsSubtotal sums the non-cancelled lines.
func (o Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		if it.Cancelled {
			continue
		}
		sum = sum.Add(it.Total())
	}
	return Round(sum)
}

func (o Order) Item(line int) (OrderItem, bool) {
	if line < 1 || line > len(o.Items) {
		return OrderItem{}, false
	}
	return o.Items[line-1], true
}

// ActiveItems returns the non-cancelled lines.
func (o Order) ActiveItems() []OrderItem {
	out := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		if !it.Cancelled {
			out = append(out, it)
		}
	}
	return out
}

// SetTotals stores the priced amounts and derives the total.
func (o *Order) SetTotals(subtotal, fees, discount decimal.Decimal) error {
	subtotal, fees, discount = Round(subtotal), Round(fees), Round(discount)
	if subtotal.IsNegative() || fees.IsNegative() || discount.IsNegative() {
		return ErrNegativeAmount
	}
	if discount.GreaterThan(subtotal) {
		return ErrDiscountTooLarge
	}
	o.Subtotal = subtotal
	o.FeesTotal = fees
	o.DiscountAmount = discount
	o.Total = subtotal.Add(fees).Sub(discount)
	return nil
}

// CheckTotals verifies the stored amounts; repositories call it before every write.
func (o Order) CheckTotals() error {
	want := Round(o.Subtotal.Add(o.FeesTotal).Sub(o.DiscountAmount))
	if !Round(o.Total).Equal(want) {
		return fmt.Errorf("%w: total=%s want=%s", ErrTotalMismatch, o.Total.StringFixed(2), want.StringFixed(2))
	}
	if o.DiscountAmount.GreaterThan(o.Subtotal) {
		return ErrDiscountTooLarge
	}
	return nil
}

// CancelItem soft-cancels one line; totals must be recomputed by the caller.
func (o *Order) CancelItem(line int, reason string, now time.Time) error {
	if line < 1 || line > len(o.Items) {
		return ErrUnknownLine
	}
	it := &o.Items[line-1]
	if it.Cancelled {
		return ErrLineCancelled
	}
	it.Cancelled = true
	it.CancelReason = reason
	o.UpdatedAt = now.UTC()
	return nil
}

// Round applies 2-decimal half-up rounding used for every stored amount.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
