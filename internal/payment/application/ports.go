package application

import (
	"context"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
	"github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
)

// AppendFunc runs inside the repository's per-order critical section with
// the current order and its payments. It may change o; the repository stores
// the returned payment, o with a bumped version and events atomically.
type AppendFunc func(o *orderdomain.Order, existing []domain.Payment) (domain.Payment, []outbox.Event, error)

type Repository interface {
	Append(ctx context.Context, orderID string, fn AppendFunc) (orderdomain.Order, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
}
