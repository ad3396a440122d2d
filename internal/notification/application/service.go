package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/cafe-order-core/internal/notification/domain"
	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
)

type KitchenPublisher interface {
	PublishTicket(ctx context.Context, t domain.Ticket) error
}

type CustomerNotifier interface {
	Notify(ctx context.Context, n domain.Notice) error
}

// Service turns order events into kitchen tickets and customer notices.
type Service struct {
	log       *slog.Logger
	kitchen   KitchenPublisher
	customers CustomerNotifier
}

func NewService(log *slog.Logger, kitchen KitchenPublisher, customers CustomerNotifier) *Service {
	return &Service{log: log, kitchen: kitchen, customers: customers}
}

// Handle processes one event. Unknown types are ignored; a malformed payload
// is returned as an error.
func (s *Service) Handle(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case orderdomain.EventOrderSubmitted:
		var ev orderdomain.OrderSubmitted
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return s.submitted(ctx, ev)
	case orderdomain.EventOrderStatusChanged:
		var ev orderdomain.OrderStatusChanged
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return s.statusChanged(ctx, ev)
	case orderdomain.EventOrderItemCancelled:
		var ev orderdomain.OrderItemCancelled
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		return s.customers.Notify(ctx, domain.Notice{
			OrderID: ev.OrderID,
			Kind:    domain.NoticeItemRemoved,
			Message: fmt.Sprintf("Line %d was removed (%s). New total %s.", ev.Line, ev.Reason, ev.Total),
		})
	}
	s.log.Debug("event ignored", "type", eventType)
	return nil
}

func (s *Service) submitted(ctx context.Context, ev orderdomain.OrderSubmitted) error {
	n := domain.Notice{OrderID: ev.OrderID, Kind: domain.NoticeReceived}
	switch ev.Status {
	case orderdomain.StatusPaymentVerification:
		n.Kind = domain.NoticeVerifying
		n.Message = "We received your order and are checking your payment."
	case orderdomain.StatusReservationConfirmed:
		n.Kind = domain.NoticeConfirmed
		n.Message = fmt.Sprintf("Your table %d is booked. Total %s.", ev.TableNumber, ev.Total)
	default:
		n.Message = fmt.Sprintf("We received your order. Total %s.", ev.Total)
	}
	return s.customers.Notify(ctx, n)
}

func (s *Service) statusChanged(ctx context.Context, ev orderdomain.OrderStatusChanged) error {
	n := domain.Notice{OrderID: ev.OrderID, Customer: ev.Customer}
	switch ev.To {
	case orderdomain.StatusPreparing:
		return s.ticket(ctx, ev)
	case orderdomain.StatusReservationConfirmed:
		n.Kind, n.Message = domain.NoticeConfirmed, fmt.Sprintf("Payment confirmed, table %d is yours.", ev.TableNumber)
	case orderdomain.StatusPending:
		if ev.From != orderdomain.StatusPaymentVerification {
			return nil
		}
		n.Kind, n.Message = domain.NoticeReceived, "Payment confirmed, your order is queued."
	case orderdomain.StatusReady:
		n.Kind, n.Message = domain.NoticeReady, "Your order is ready."
	case orderdomain.StatusPaid:
		n.Kind, n.Message = domain.NoticePaid, "Thank you, your bill is settled."
	case orderdomain.StatusCancelled:
		n.Kind, n.Message = domain.NoticeCancelled, "Your order was cancelled."
	default:
		return nil
	}
	return s.customers.Notify(ctx, n)
}

func (s *Service) ticket(ctx context.Context, ev orderdomain.OrderStatusChanged) error {
	lines := domain.KitchenLines(ev.Lines)
	if len(lines) == 0 {
		s.log.Info("no kitchen lines, ticket skipped", "order_id", ev.OrderID)
		return nil
	}
	t := domain.Ticket{
		OrderID:     ev.OrderID,
		DiningType:  ev.DiningType,
		TableNumber: ev.TableNumber,
		Customer:    ev.Customer,
		Lines:       lines,
		At:          ev.At,
	}
	if err := s.kitchen.PublishTicket(ctx, t); err != nil {
		return fmt.Errorf("publish ticket: %w", err)
	}
	s.log.Info("kitchen ticket published", "order_id", ev.OrderID, "lines", len(lines))
	return nil
}
