package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
)

type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodQR       Method = "qr"
	MethodTransfer Method = "transfer"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodQR, MethodTransfer:
		return true
	}
	return false
}

var (
	ErrOverCoverage     = errors.New("payment covers more than the remaining quantity")
	ErrEmptyPayment     = errors.New("payment covers no items")
	ErrInvalidMethod    = errors.New("invalid payment method")
	ErrNegativeQuantity = errors.New("covered quantity must not be negative")
	ErrOrderClosed      = errors.New("order no longer accepts payments")
)

// Payment is append-only. Items maps an order line to the quantity it pays for.
type Payment struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    Method          `json:"method"`
	Notes     string          `json:"notes,omitempty"`
	ProofURL  string          `json:"proof_url,omitempty"`
	Items     map[int]int     `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

// LineError names the offending order line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

// Covered sums the quantity paid per line across payments.
func Covered(payments []Payment) map[int]int {
	out := map[int]int{}
	for _, p := range payments {
		for line, qty := range p.Items {
			out[line] += qty
		}
	}
	return out
}

// Remaining is the unpaid quantity of line; cancelled or unknown lines have none.
func Remaining(o orderdomain.Order, payments []Payment, line int) int {
	it, ok := o.Item(line)
	if !ok || it.Cancelled {
		return 0
	}
	return it.Quantity - Covered(payments)[line]
}

// Validate checks a proposed coverage against what is still unpaid.
func Validate(o orderdomain.Order, payments []Payment, items map[int]int) error {
	covered := Covered(payments)
	covers := false
	for _, line := range sortedLines(items) {
		qty := items[line]
		if qty < 0 {
			return &LineError{Line: line, Err: ErrNegativeQuantity}
		}
		if qty == 0 {
			continue
		}
		it, ok := o.Item(line)
		if !ok {
			return &LineError{Line: line, Err: orderdomain.ErrUnknownLine}
		}
		remaining := 0
		if !it.Cancelled {
			remaining = it.Quantity - covered[line]
		}
		if qty > remaining {
			return &LineError{Line: line, Err: ErrOverCoverage}
		}
		covers = true
	}
	if !covers {
		return ErrEmptyPayment
	}
	return nil
}

// IsFullySettled reports whether every non-cancelled line is fully paid.
func IsFullySettled(o orderdomain.Order, payments []Payment) bool {
	return len(FullCoverage(o, payments)) == 0
}

// FullCoverage maps every line with an unpaid quantity to that quantity.
func FullCoverage(o orderdomain.Order, payments []Payment) map[int]int {
	covered := Covered(payments)
	out := map[int]int{}
	for _, it := range o.ActiveItems() {
		if rest := it.Quantity - covered[it.Line]; rest > 0 {
			out[it.Line] = rest
		}
	}
	return out
}

// Paid sums the amounts already received.
func Paid(payments []Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// Outstanding is the order total not yet received, never negative.
func Outstanding(o orderdomain.Order, payments []Payment) decimal.Decimal {
	rest := o.Total.Sub(Paid(payments))
	if rest.IsNegative() {
		return decimal.Zero
	}
	return orderdomain.Round(rest)
}

// Quote prices a set of covered quantities: their item value plus the same
// share of fees and discount that value has of the subtotal.
func Quote(o orderdomain.Order, items map[int]int) decimal.Decimal {
	value := decimal.Zero
	for line, qty := range items {
		it, ok := o.Item(line)
		if !ok || it.Cancelled || qty <= 0 {
			continue
		}
		value = value.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	}
	if o.Subtotal.IsZero() || value.IsZero() {
		return decimal.Zero
	}
	share := value.Div(o.Subtotal)
	return orderdomain.Round(value.Add(o.FeesTotal.Mul(share)).Sub(o.DiscountAmount.Mul(share)))
}

func sortedLines(items map[int]int) []int {
	lines := make([]int, 0, len(items))
	for line := range items {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}
