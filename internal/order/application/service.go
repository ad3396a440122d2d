package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	catalogapp "github.com/dmehra2102/cafe-order-core/internal/catalog/application"
	invdomain "github.com/dmehra2102/cafe-order-core/internal/inventory/domain"
	orchestrator "github.com/dmehra2102/cafe-order-core/internal/orchestrator/application"
	sagadomain "github.com/dmehra2102/cafe-order-core/internal/orchestrator/domain"
	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	payapp "github.com/dmehra2102/cafe-order-core/internal/payment/application"
	paydomain "github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	pricingdomain "github.com/dmehra2102/cafe-order-core/internal/pricing/domain"
	resapp "github.com/dmehra2102/cafe-order-core/internal/reservation/application"
	resdomain "github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
	"github.com/dmehra2102/cafe-order-core/pkg/metrics"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
	"github.com/dmehra2102/cafe-order-core/pkg/tracing"
)

var (
	ErrReservationRequired = errors.New("reservation details required")
	ErrProofRequired       = errors.New("payment proof required")
)

type Deps struct {
	Orders    OrderRepository
	Catalog   Catalog
	Stock     Stock
	Tables    Tables
	Fees      Fees
	Discounts Discounts
	Payments  Payments
	Blobs     BlobStore
	Saga      *orchestrator.Coordinator
}

// Service is the order state machine: every status change and every write
// with side effects on stock, tables, discounts or payments goes through it.
type Service struct {
	log       *slog.Logger
	orders    OrderRepository
	catalog   Catalog
	stock     Stock
	tables    Tables
	fees      Fees
	discounts Discounts
	payments  Payments
	blobs     BlobStore
	saga      *orchestrator.Coordinator
	now       func() time.Time
}

func NewService(log *slog.Logger, deps Deps) *Service {
	saga := deps.Saga
	if saga == nil {
		saga = orchestrator.NewCoordinator(log)
	}
	return &Service{
		log:       log,
		orders:    deps.Orders,
		catalog:   deps.Catalog,
		stock:     deps.Stock,
		tables:    deps.Tables,
		fees:      deps.Fees,
		discounts: deps.Discounts,
		payments:  deps.Payments,
		blobs:     deps.Blobs,
		saga:      saga,
		now:       time.Now,
	}
}

type ReservationRequest struct {
	Start           time.Time
	PartySize       int
	TablePreference int
	Phone           string
	Email           string
}

// Prepaid carries an online payment made before submission; the order waits
// in payment_verification until staff check the proof.
type Prepaid struct {
	Method      paydomain.Method
	Proof       []byte
	ProofName   string
	ContentType string
}

type SubmitRequest struct {
	DiningType   domain.DiningType
	TableNumber  int
	CustomerName string
	Notes        string
	Items        []catalogapp.Selection
	DiscountCode string
	Reservation  *ReservationRequest
	Prepaid      *Prepaid
}

// Submit prices the order, then reserves stock, books a table, redeems the
// discount code and stores the order as one compensating sequence.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (o domain.Order, err error) {
	defer func() { s.observe("submit", err) }()

	if req.DiningType == domain.Reservation {
		if req.Reservation == nil {
			return domain.Order{}, apperr.Validation(ErrReservationRequired, string(req.DiningType))
		}
		if req.Reservation.Start.IsZero() {
			return domain.Order{}, apperr.Validation(domain.ErrScheduleRequired, "start")
		}
	}
	if req.Prepaid != nil {
		if len(req.Prepaid.Proof) == 0 {
			return domain.Order{}, apperr.Validation(ErrProofRequired, "proof")
		}
		if !req.Prepaid.Method.Valid() {
			return domain.Order{}, apperr.Validation(paydomain.ErrInvalidMethod, string(req.Prepaid.Method))
		}
	}
	table := req.TableNumber
	if req.DiningType != domain.DineIn {
		table = 0
	}

	items, err := s.catalog.Price(ctx, req.Items)
	if err != nil {
		return domain.Order{}, err
	}
	now := s.now()
	o, err = domain.NewOrder(uuid.NewString(), req.DiningType, table, items, now)
	if err != nil {
		return domain.Order{}, classify(err, "")
	}
	o.CustomerName = req.CustomerName
	o.Notes = req.Notes
	if req.Reservation != nil && req.DiningType == domain.Reservation {
		start := req.Reservation.Start.UTC()
		o.ScheduledFor = &start
	}

	if o.Fees, err = s.fees.Snapshot(ctx, o.DiningType); err != nil {
		return domain.Order{}, err
	}
	code := pricingdomain.NormalizeCode(req.DiscountCode)
	if code != "" {
		snap, _, err := s.discounts.Resolve(ctx, code, o.DiningType, o.ItemsSubtotal())
		if err != nil {
			return domain.Order{}, err
		}
		o.Discount = &snap
	}
	if err := pricingdomain.Reprice(&o); err != nil {
		return domain.Order{}, classify(err, o.ID)
	}
	o.Status = domain.InitialStatus(o.DiningType, req.Prepaid != nil)

	var proofURL string
	if req.Prepaid != nil {
		name := fmt.Sprintf("proofs/%s/%s", o.ID, safeName(req.Prepaid.ProofName))
		proofURL, err = s.blobs.Upload(ctx, name, req.Prepaid.ContentType, bytes.NewReader(req.Prepaid.Proof))
		if err != nil {
			return domain.Order{}, apperr.Collaborator(err, "blob")
		}
	}

	steps := []sagadomain.Step{{
		Name: "reserve_stock",
		Do:   func(ctx context.Context) error { return s.stock.Reserve(ctx, o.ID, stockLines(o.Items)) },
		Undo: func(ctx context.Context) error { return s.stock.Release(ctx, o.ID) },
	}}
	if o.DiningType == domain.Reservation {
		steps = append(steps, sagadomain.Step{
			Name: "allocate_table",
			Do: func(ctx context.Context) error {
				r, err := s.tables.Allocate(ctx, resapp.Request{
					OrderID:         o.ID,
					Start:           *o.ScheduledFor,
					PartySize:       req.Reservation.PartySize,
					TablePreference: req.Reservation.TablePreference,
					Customer: resdomain.Customer{
						Name:  req.CustomerName,
						Phone: req.Reservation.Phone,
						Email: req.Reservation.Email,
					},
				})
				if err != nil {
					return err
				}
				o.TableNumber = r.TableNumber
				return nil
			},
			Undo: func(ctx context.Context) error { return s.tables.Release(ctx, o.ID) },
		})
	}
	if code != "" {
		steps = append(steps, sagadomain.Step{
			Name: "redeem_discount",
			Do:   func(ctx context.Context) error { return s.discounts.Redeem(ctx, code) },
			Undo: func(ctx context.Context) error { return s.discounts.Unredeem(ctx, code) },
		})
	}
	steps = append(steps, sagadomain.Step{
		Name: "create_order",
		Do: func(ctx context.Context) error {
			// table number is only known after allocation
			submitted, err := s.event(ctx, o, domain.EventOrderSubmitted, domain.OrderSubmitted{
				OrderID:     o.ID,
				DiningType:  o.DiningType,
				TableNumber: o.TableNumber,
				Status:      o.Status,
				Total:       o.Total.StringFixed(2),
				Lines:       o.TicketLines(),
			})
			if err != nil {
				return err
			}
			created, err := s.orders.Create(ctx, o, submitted)
			if err != nil {
				return classify(err, o.ID)
			}
			o = created
			return nil
		},
		Undo: func(ctx context.Context) error { return s.abandon(ctx, o.ID) },
	})
	if req.Prepaid != nil {
		steps = append(steps, sagadomain.Step{
			Name: "record_prepayment",
			Do: func(ctx context.Context) error {
				res, err := s.payments.Record(ctx, payapp.Request{
					OrderID:  o.ID,
					Method:   req.Prepaid.Method,
					Notes:    "online prepayment",
					ProofURL: proofURL,
					Full:     true,
				}, nil)
				if err != nil {
					return err
				}
				o = res.Order
				return nil
			},
		})
	}

	if _, err := s.saga.Run(ctx, o.ID, steps...); err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order submitted", "order_id", o.ID, "dining_type", o.DiningType, "status", o.Status, "total", o.Total.StringFixed(2))
	return o, nil
}

// abandon cancels an order whose submission could not finish.
func (s *Service) abandon(ctx context.Context, id string) error {
	o, err := s.orders.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status == domain.StatusCancelled {
		return nil
	}
	from := o.Status
	if err := o.Transition(domain.StatusCancelled, false, s.now()); err != nil {
		return err
	}
	ev, err := s.statusEvent(ctx, o, from)
	if err != nil {
		return err
	}
	_, err = s.orders.Update(ctx, o, ev)
	return err
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, classify(err, id)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, classify(err, "")
	}
	return orders, nil
}

func (s *Service) event(ctx context.Context, o domain.Order, eventType string, payload any) (outbox.Event, error) {
	ev, err := outbox.NewEvent("order", o.ID, eventType, payload)
	if err != nil {
		return outbox.Event{}, err
	}
	ev.Traceparent = tracing.Traceparent(ctx)
	ev.Headers["source"] = "order-service"
	return ev, nil
}

func (s *Service) statusEvent(ctx context.Context, o domain.Order, from domain.Status) (outbox.Event, error) {
	payload := domain.OrderStatusChanged{
		OrderID:     o.ID,
		From:        from,
		To:          o.Status,
		DiningType:  o.DiningType,
		TableNumber: o.TableNumber,
		Customer:    o.CustomerName,
		At:          o.UpdatedAt,
	}
	if o.Status == domain.StatusPreparing {
		payload.Lines = o.TicketLines()
	}
	return s.event(ctx, o, domain.EventOrderStatusChanged, payload)
}

func (s *Service) observe(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	metrics.RecordOperation(op, outcome)
}

func stockLines(items []domain.OrderItem) []invdomain.Line {
	lines := make([]invdomain.Line, 0, len(items))
	for _, it := range items {
		if it.Cancelled {
			continue
		}
		lines = append(lines, invdomain.Line{Line: it.Line, ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

func safeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "proof"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
