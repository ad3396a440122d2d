package memory

import (
	"context"
	"sync"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
	ordermemory "github.com/dmehra2102/cafe-order-core/internal/order/infrastructure/memory"
	"github.com/dmehra2102/cafe-order-core/internal/payment/application"
	"github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
)

// Store appends payments inside the order store's lock, which is what makes
// the coverage check and the append one step.
type Store struct {
	orders   *ordermemory.Store
	mu       sync.Mutex
	payments map[string][]domain.Payment
}

func NewStore(orders *ordermemory.Store) *Store {
	return &Store{orders: orders, payments: map[string][]domain.Payment{}}
}

func (s *Store) Append(_ context.Context, orderID string, fn application.AppendFunc) (orderdomain.Order, error) {
	var p domain.Payment
	return s.orders.Mutate(orderID, func(o *orderdomain.Order) ([]outbox.Event, error) {
		existing := s.list(orderID)
		var events []outbox.Event
		var err error
		p, events, err = fn(o, existing)
		return events, err
	}, func(orderdomain.Order) {
		s.mu.Lock()
		s.payments[orderID] = append(s.payments[orderID], p)
		s.mu.Unlock()
	})
}

func (s *Store) ListByOrder(_ context.Context, orderID string) ([]domain.Payment, error) {
	return s.list(orderID), nil
}

func (s *Store) list(orderID string) []domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Payment(nil), s.payments[orderID]...)
}
