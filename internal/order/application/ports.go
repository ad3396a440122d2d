package application

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	catalogapp "github.com/dmehra2102/cafe-order-core/internal/catalog/application"
	invdomain "github.com/dmehra2102/cafe-order-core/internal/inventory/domain"
	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	payapp "github.com/dmehra2102/cafe-order-core/internal/payment/application"
	paydomain "github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	resapp "github.com/dmehra2102/cafe-order-core/internal/reservation/application"
	resdomain "github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
)

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Statuses        []domain.Status
	DiningType      domain.DiningType
	TableNumber     int
	ScheduledBefore *time.Time
	Limit           int
}

// OrderRepository persists orders. Update succeeds only when the stored
// version equals o.Version and returns the order with the next version;
// otherwise it fails with domain.ErrVersionConflict. Events are written in
// the same transaction.
type OrderRepository interface {
	Create(ctx context.Context, o domain.Order, events ...outbox.Event) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	Update(ctx context.Context, o domain.Order, events ...outbox.Event) (domain.Order, error)
	List(ctx context.Context, f Filter) ([]domain.Order, error)
}

type Catalog interface {
	Price(ctx context.Context, selections []catalogapp.Selection) ([]domain.OrderItem, error)
}

type Stock interface {
	Reserve(ctx context.Context, orderID string, lines []invdomain.Line) error
	Release(ctx context.Context, orderID string) error
	ReleaseLine(ctx context.Context, orderID string, line int) error
}

type Tables interface {
	Floor(ctx context.Context) ([]resdomain.Table, error)
	Allocate(ctx context.Context, req resapp.Request) (resdomain.Reservation, error)
	Release(ctx context.Context, orderID string) error
	Complete(ctx context.Context, orderID string) error
	NoShow(ctx context.Context, orderID string) error
}

type Fees interface {
	Snapshot(ctx context.Context, dining domain.DiningType) ([]domain.AppliedFee, error)
}

type Discounts interface {
	Resolve(ctx context.Context, code string, dining domain.DiningType, subtotal decimal.Decimal) (domain.AppliedDiscount, decimal.Decimal, error)
	Redeem(ctx context.Context, code string) error
	Unredeem(ctx context.Context, code string) error
}

type Payments interface {
	Record(ctx context.Context, req payapp.Request, hook payapp.SettledHook) (payapp.Result, error)
	ListByOrder(ctx context.Context, orderID string) ([]paydomain.Payment, error)
}

// BlobStore keeps uploaded payment proofs and returns a URL for them.
type BlobStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}
