package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	payapp "github.com/dmehra2102/cafe-order-core/internal/payment/application"
	paydomain "github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
)

type PaymentRequest struct {
	Amount decimal.Decimal
	Method paydomain.Method
	Notes  string
	Items  map[int]int
}

// RecordPayment appends a payment for some item quantities. When it settles
// the order and the status allows it, the order moves to paid in the same
// write.
func (s *Service) RecordPayment(ctx context.Context, id string, req PaymentRequest) (res payapp.Result, err error) {
	defer func() { s.observe("record_payment", err) }()
	return s.record(ctx, payapp.Request{
		OrderID: id,
		Amount:  req.Amount,
		Method:  req.Method,
		Notes:   req.Notes,
		Items:   req.Items,
	})
}

// SettleRemaining pays every remaining quantity in one payment. A zero
// amount charges the outstanding balance.
func (s *Service) SettleRemaining(ctx context.Context, id string, method paydomain.Method, amount decimal.Decimal, notes string) (res payapp.Result, err error) {
	defer func() { s.observe("settle_remaining", err) }()
	return s.record(ctx, payapp.Request{
		OrderID: id,
		Amount:  amount,
		Method:  method,
		Notes:   notes,
		Full:    true,
	})
}

func (s *Service) record(ctx context.Context, req payapp.Request) (payapp.Result, error) {
	res, err := s.payments.Record(ctx, req, func(o *domain.Order, settled bool, now time.Time) ([]outbox.Event, error) {
		if !settled || !domain.CanTransition(o.Status, domain.StatusPaid) {
			return nil, nil
		}
		from := o.Status
		if err := o.Transition(domain.StatusPaid, true, now); err != nil {
			return nil, err
		}
		ev, err := s.statusEvent(ctx, *o, from)
		if err != nil {
			return nil, err
		}
		return []outbox.Event{ev}, nil
	})
	if err != nil {
		return payapp.Result{}, err
	}
	if res.Order.Status == domain.StatusPaid {
		s.log.Info("order settled", "order_id", req.OrderID)
		s.afterStatus(ctx, res.Order)
	}
	return res, nil
}

type Bill struct {
	Order       domain.Order        `json:"order"`
	Payments    []paydomain.Payment `json:"payments"`
	Remaining   map[int]int         `json:"remaining"`
	Paid        decimal.Decimal     `json:"paid"`
	Outstanding decimal.Decimal     `json:"outstanding"`
	Settled     bool                `json:"settled"`
}

// Bill is the order with its payments and what is left to pay.
func (s *Service) Bill(ctx context.Context, id string) (Bill, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return Bill{}, classify(err, id)
	}
	payments, err := s.payments.ListByOrder(ctx, id)
	if err != nil {
		return Bill{}, err
	}
	return Bill{
		Order:       o,
		Payments:    payments,
		Remaining:   paydomain.FullCoverage(o, payments),
		Paid:        paydomain.Paid(payments),
		Outstanding: paydomain.Outstanding(o, payments),
		Settled:     fullySettled(o, payments),
	}, nil
}

// fullySettled reports whether the order may move to paid. An order whose
// lines were all cancelled has nothing left to cover and counts as settled.
func fullySettled(o domain.Order, payments []paydomain.Payment) bool {
	if len(o.ActiveItems()) == 0 {
		return true
	}
	return paydomain.IsFullySettled(o, payments)
}

// Quote prices the given quantities, or everything still unpaid when items
// is empty, without recording anything.
func (s *Service) Quote(ctx context.Context, id string, items map[int]int) (decimal.Decimal, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return decimal.Zero, classify(err, id)
	}
	payments, err := s.payments.ListByOrder(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if len(items) == 0 {
		return paydomain.Outstanding(o, payments), nil
	}
	if err := paydomain.Validate(o, payments, items); err != nil {
		return decimal.Zero, payapp.Classify(err, id)
	}
	return paydomain.Quote(o, items), nil
}
