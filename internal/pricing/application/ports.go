package application

import (
	"context"

	"github.com/dmehra2102/cafe-order-core/internal/pricing/domain"
)

type FeeRepository interface {
	ActiveFees(ctx context.Context) ([]domain.Fee, error)
}

// CodeRepository stores discount codes. Redeem must be a single conditional
// increment that fails with domain.ErrExhausted once the limit is reached.
type CodeRepository interface {
	Get(ctx context.Context, code string) (domain.DiscountCode, error)
	Redeem(ctx context.Context, code string) error
	Unredeem(ctx context.Context, code string) error
}
