package domain

import (
	"github.com/shopspring/decimal"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
)

// AppliesTo is the dining type a fee targets; Both matches every dining type.
type AppliesTo string

const (
	AppliesDineIn      AppliesTo = "dine_in"
	AppliesTakeaway    AppliesTo = "takeaway"
	AppliesReservation AppliesTo = "reservation"
	AppliesBoth        AppliesTo = "both"
)

var hundred = decimal.NewFromInt(100)

type Fee struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Amount    decimal.Decimal     `json:"amount"`
	Type      orderdomain.FeeKind `json:"type"`
	AppliesTo AppliesTo           `json:"applies_to"`
	Active    bool                `json:"active"`
}

func (f Fee) Applies(dining orderdomain.DiningType) bool {
	if !f.Active {
		return false
	}
	return f.AppliesTo == AppliesBoth || string(f.AppliesTo) == string(dining)
}

// Snapshot freezes the definition for storage on an order.
func (f Fee) Snapshot() orderdomain.AppliedFee {
	return orderdomain.AppliedFee{Name: f.Name, Kind: f.Type, Value: f.Amount}
}

// SelectFees keeps the fees that apply to dining and snapshots them.
func SelectFees(dining orderdomain.DiningType, fees []Fee) []orderdomain.AppliedFee {
	out := make([]orderdomain.AppliedFee, 0, len(fees))
	for _, f := range fees {
		if f.Applies(dining) {
			out = append(out, f.Snapshot())
		}
	}
	return out
}

// FeesTotal computes the fee amount for subtotal from a frozen fee list.
// Per-fee amounts are summed unrounded and the sum is rounded once.
func FeesTotal(subtotal decimal.Decimal, fees []orderdomain.AppliedFee) decimal.Decimal {
	sum := decimal.Zero
	for _, f := range fees {
		sum = sum.Add(feeAmount(subtotal, f.Kind, f.Value))
	}
	return orderdomain.Round(sum)
}

// Compute is the engine entry point over live fee definitions.
func Compute(subtotal decimal.Decimal, dining orderdomain.DiningType, fees []Fee) decimal.Decimal {
	return FeesTotal(subtotal, SelectFees(dining, fees))
}

func feeAmount(subtotal decimal.Decimal, kind orderdomain.FeeKind, value decimal.Decimal) decimal.Decimal {
	if kind == orderdomain.FeePercentage {
		return subtotal.Mul(value).Div(hundred)
	}
	return value
}
