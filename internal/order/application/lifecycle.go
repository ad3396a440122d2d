package application

import (
	"context"
	"errors"
	"time"

	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	paydomain "github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	pricingdomain "github.com/dmehra2102/cafe-order-core/internal/pricing/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
)

// Transition moves an order along one edge of the status table. Cancelling
// goes through Cancel so its releases run.
func (s *Service) Transition(ctx context.Context, id string, to domain.Status) (o domain.Order, err error) {
	defer func() { s.observe("transition", err) }()
	if to == domain.StatusCancelled {
		return s.cancel(ctx, id, "")
	}

	o, err = s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, classify(err, id)
	}
	settled := false
	if to == domain.StatusPaid {
		payments, err := s.payments.ListByOrder(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		settled = fullySettled(o, payments)
	}
	from := o.Status
	if err := o.Transition(to, settled, s.now()); err != nil {
		return domain.Order{}, classify(err, id)
	}
	ev, err := s.statusEvent(ctx, o, from)
	if err != nil {
		return domain.Order{}, err
	}
	if o, err = s.orders.Update(ctx, o, ev); err != nil {
		return domain.Order{}, classify(err, id)
	}
	s.log.Info("order status changed", "order_id", id, "from", from, "to", to)
	s.afterStatus(ctx, o)
	return o, nil
}

// afterStatus runs the table side effects of a committed status change.
// They are idempotent, so a failure is logged and left for a retry.
func (s *Service) afterStatus(ctx context.Context, o domain.Order) {
	if o.DiningType != domain.Reservation {
		return
	}
	var err error
	switch o.Status {
	case domain.StatusPaid:
		err = s.tables.Complete(ctx, o.ID)
	case domain.StatusNoShow:
		err = s.tables.NoShow(ctx, o.ID)
	}
	if err != nil {
		s.log.Error("reservation sync failed", "order_id", o.ID, "status", o.Status, "err", err)
	}
}

// Cancel cancels the order and releases its stock and table. Cancelling an
// order that is already cancelled repeats the releases and succeeds.
func (s *Service) Cancel(ctx context.Context, id, reason string) (o domain.Order, err error) {
	defer func() { s.observe("cancel", err) }()
	return s.cancel(ctx, id, reason)
}

func (s *Service) cancel(ctx context.Context, id, reason string) (domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, classify(err, id)
	}
	if o.Status != domain.StatusCancelled {
		from := o.Status
		if err := o.Transition(domain.StatusCancelled, false, s.now()); err != nil {
			return domain.Order{}, classify(err, id)
		}
		if reason != "" {
			o.Notes = joinNote(o.Notes, "cancelled: "+reason)
		}
		ev, err := s.statusEvent(ctx, o, from)
		if err != nil {
			return domain.Order{}, err
		}
		if o, err = s.orders.Update(ctx, o, ev); err != nil {
			return domain.Order{}, classify(err, id)
		}
		s.log.Info("order cancelled", "order_id", id, "from", from, "reason", reason)
	}

	if err := s.stock.Release(ctx, id); err != nil {
		return o, err
	}
	if o.DiningType == domain.Reservation {
		if err := s.tables.Release(ctx, id); err != nil {
			return o, err
		}
	}
	return o, nil
}

// VerifyPayment resolves payment_verification: approval lets the order
// continue and marks it paid-for, rejection cancels it.
func (s *Service) VerifyPayment(ctx context.Context, id string, approve bool, reason string) (o domain.Order, err error) {
	defer func() { s.observe("verify_payment", err) }()
	if !approve {
		return s.Cancel(ctx, id, reason)
	}
	o, err = s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, classify(err, id)
	}
	next := domain.StatusPending
	if o.DiningType == domain.Reservation {
		next = domain.StatusReservationConfirmed
	}
	if o.Status != domain.StatusPaymentVerification {
		return domain.Order{}, apperr.Conflict(domain.ErrInvalidTransition, id)
	}
	return s.Transition(ctx, id, next)
}

// CancelItem soft-cancels one line, reprices the order and returns the
// line's stock. Lines that already carry payments cannot be cancelled.
func (s *Service) CancelItem(ctx context.Context, id string, line int, reason string) (o domain.Order, err error) {
	defer func() { s.observe("cancel_item", err) }()

	o, err = s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, classify(err, id)
	}
	if o.Status.Terminal() {
		return domain.Order{}, apperr.Conflict(domain.ErrInvalidTransition, id)
	}
	payments, err := s.payments.ListByOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if paydomain.Covered(payments)[line] > 0 {
		return domain.Order{}, apperr.Conflict(domain.ErrLinePaid, lineKey(line))
	}

	now := s.now()
	if err := o.CancelItem(line, reason, now); err != nil {
		return domain.Order{}, classify(err, lineKey(line))
	}
	if err := pricingdomain.Reprice(&o); err != nil {
		return domain.Order{}, classify(err, id)
	}
	ev, err := s.event(ctx, o, domain.EventOrderItemCancelled, domain.OrderItemCancelled{
		OrderID: o.ID,
		Line:    line,
		Reason:  reason,
		Total:   o.Total.StringFixed(2),
	})
	if err != nil {
		return domain.Order{}, err
	}
	events := []outbox.Event{ev}

	// the remaining lines may all be paid already
	from := o.Status
	if len(payments) > 0 && paydomain.IsFullySettled(o, payments) && domain.CanTransition(o.Status, domain.StatusPaid) {
		if err := o.Transition(domain.StatusPaid, true, now); err != nil {
			return domain.Order{}, classify(err, id)
		}
		paid, err := s.statusEvent(ctx, o, from)
		if err != nil {
			return domain.Order{}, err
		}
		events = append(events, paid)
	}

	if o, err = s.orders.Update(ctx, o, events...); err != nil {
		return domain.Order{}, classify(err, id)
	}
	s.log.Info("order item cancelled", "order_id", id, "line", line, "total", o.Total.StringFixed(2))
	if o.Status != from {
		s.afterStatus(ctx, o)
	}
	if err := s.stock.ReleaseLine(ctx, id, line); err != nil {
		return o, err
	}
	return o, nil
}

// StartDueReservations moves reservation orders whose slot starts within
// lead of now into preparing. Failures are logged per order.
func (s *Service) StartDueReservations(ctx context.Context, lead time.Duration) (int, error) {
	before := s.now().Add(lead).UTC()
	due, err := s.orders.List(ctx, Filter{
		Statuses:        []domain.Status{domain.StatusReservationConfirmed},
		DiningType:      domain.Reservation,
		ScheduledBefore: &before,
	})
	if err != nil {
		return 0, classify(err, "")
	}
	started := 0
	for _, o := range due {
		if _, err := s.Transition(ctx, o.ID, domain.StatusPreparing); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrInvalidTransition) {
				s.log.Info("due reservation changed concurrently", "order_id", o.ID)
				continue
			}
			s.log.Error("start due reservation", "order_id", o.ID, "err", err)
			continue
		}
		started++
	}
	return started, nil
}

func joinNote(notes, add string) string {
	if notes == "" {
		return add
	}
	return notes + "\n" + add
}
