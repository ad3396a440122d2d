package application

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
	"github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
	"github.com/dmehra2102/cafe-order-core/pkg/tracing"
)

type Request struct {
	OrderID  string
	Amount   decimal.Decimal
	Method   domain.Method
	Notes    string
	ProofURL string
	Items    map[int]int
	// Full covers every remaining quantity; Items and a zero Amount are
	// filled in from the order.
	Full bool
}

// SettledHook runs in the same critical section after a payment is accepted;
// the order service uses it to move a settled order to paid.
type SettledHook func(o *orderdomain.Order, settled bool, now time.Time) ([]outbox.Event, error)

type Result struct {
	Payment domain.Payment    `json:"payment"`
	Order   orderdomain.Order `json:"order"`
	Settled bool              `json:"settled"`
}

type Ledger struct {
	log  *slog.Logger
	repo Repository
	now  func() time.Time
}

func NewLedger(log *slog.Logger, repo Repository) *Ledger {
	return &Ledger{log: log, repo: repo, now: time.Now}
}

// Record validates req against the payments stored at write time and
// appends it. Two concurrent payments for the same quantities cannot both
// succeed.
func (l *Ledger) Record(ctx context.Context, req Request, hook SettledHook) (Result, error) {
	if !req.Method.Valid() {
		return Result{}, apperr.Validation(domain.ErrInvalidMethod, string(req.Method))
	}
	if req.Amount.IsNegative() {
		return Result{}, apperr.Validation(orderdomain.ErrNegativeAmount, req.Amount.String())
	}

	var res Result
	traceparent := tracing.Traceparent(ctx)
	o, err := l.repo.Append(ctx, req.OrderID, func(o *orderdomain.Order, existing []domain.Payment) (domain.Payment, []outbox.Event, error) {
		if o.Status == orderdomain.StatusCancelled || o.Status == orderdomain.StatusNoShow || o.Status == orderdomain.StatusCompleted {
			return domain.Payment{}, nil, domain.ErrOrderClosed
		}
		items, amount := req.Items, req.Amount
		if req.Full {
			items = domain.FullCoverage(*o, existing)
			if amount.IsZero() {
				amount = domain.Outstanding(*o, existing)
			}
		}
		if err := domain.Validate(*o, existing, items); err != nil {
			return domain.Payment{}, nil, err
		}

		now := l.now().UTC()
		p := domain.Payment{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			Amount:    orderdomain.Round(amount),
			Method:    req.Method,
			Notes:     req.Notes,
			ProofURL:  req.ProofURL,
			Items:     items,
			CreatedAt: now,
		}
		all := append(append([]domain.Payment(nil), existing...), p)
		settled := domain.IsFullySettled(*o, all)
		o.UpdatedAt = now

		ev, err := outbox.NewEvent("order", o.ID, orderdomain.EventPaymentRecorded, orderdomain.PaymentRecorded{
			OrderID:   o.ID,
			PaymentID: p.ID,
			Amount:    p.Amount.StringFixed(2),
			Method:    string(p.Method),
			Items:     p.Items,
			Settled:   settled,
		})
		if err != nil {
			return domain.Payment{}, nil, err
		}
		ev.Traceparent = traceparent
		events := []outbox.Event{ev}

		if hook != nil {
			more, err := hook(o, settled, now)
			if err != nil {
				return domain.Payment{}, nil, err
			}
			events = append(events, more...)
		}
		res.Payment = p
		res.Settled = settled
		return p, events, nil
	})
	if err != nil {
		return Result{}, Classify(err, req.OrderID)
	}
	res.Order = o
	l.log.Info("payment recorded", "order_id", o.ID, "payment_id", res.Payment.ID, "amount", res.Payment.Amount.StringFixed(2), "method", res.Payment.Method, "settled", res.Settled)
	return res, nil
}

func (l *Ledger) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	payments, err := l.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Collaborator(err, orderID)
	}
	return payments, nil
}

// Classify maps ledger errors to apperr kinds.
func Classify(err error, orderID string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	key := orderID
	var lineErr *domain.LineError
	if errors.As(err, &lineErr) {
		key = strconv.Itoa(lineErr.Line)
	}
	switch {
	case errors.Is(err, domain.ErrOverCoverage):
		return apperr.Integrity(err, key)
	case errors.Is(err, domain.ErrEmptyPayment),
		errors.Is(err, domain.ErrNegativeQuantity),
		errors.Is(err, orderdomain.ErrUnknownLine):
		return apperr.Validation(err, key)
	case errors.Is(err, orderdomain.ErrNotFound):
		return apperr.NotFound(err, orderID)
	case errors.Is(err, domain.ErrOrderClosed),
		errors.Is(err, orderdomain.ErrVersionConflict),
		errors.Is(err, orderdomain.ErrInvalidTransition):
		return apperr.Conflict(err, orderID)
	case errors.Is(err, orderdomain.ErrTotalMismatch):
		return apperr.Integrity(err, orderID)
	}
	return apperr.Collaborator(err, orderID)
}
