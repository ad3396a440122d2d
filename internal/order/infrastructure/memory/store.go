package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmehra2102/cafe-order-core/internal/order/application"
	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
)

// Store keeps orders in memory with the same versioned-write rules as the
// postgres repository. Events go to an in-process outbox.
type Store struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	outbox *outbox.MemoryStore
}

func NewStore(ob *outbox.MemoryStore) *Store {
	return &Store{orders: map[string]domain.Order{}, outbox: ob}
}

func (s *Store) Create(_ context.Context, o domain.Order, events ...outbox.Event) (domain.Order, error) {
	if err := o.CheckTotals(); err != nil {
		return domain.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return domain.Order{}, fmt.Errorf("order %s already exists", o.ID)
	}
	o.Version = 1
	s.orders[o.ID] = clone(o)
	s.outbox.Append(events...)
	return clone(o), nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return clone(o), nil
}

func (s *Store) Update(_ context.Context, o domain.Order, events ...outbox.Event) (domain.Order, error) {
	if err := o.CheckTotals(); err != nil {
		return domain.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[o.ID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if cur.Version != o.Version {
		return domain.Order{}, domain.ErrVersionConflict
	}
	o.Version++
	s.orders[o.ID] = clone(o)
	s.outbox.Append(events...)
	return clone(o), nil
}

// Mutate runs fn on the current order while holding the store lock, then
// saves the result with the next version. onCommit runs under the same lock
// only when the save happens.
func (s *Store) Mutate(id string, fn func(o *domain.Order) ([]outbox.Event, error), onCommit func(o domain.Order)) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	o := clone(cur)
	events, err := fn(&o)
	if err != nil {
		return domain.Order{}, err
	}
	if err := o.CheckTotals(); err != nil {
		return domain.Order{}, err
	}
	o.Version = cur.Version + 1
	s.orders[id] = clone(o)
	s.outbox.Append(events...)
	if onCommit != nil {
		onCommit(o)
	}
	return clone(o), nil
}

func (s *Store) List(_ context.Context, f application.Filter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if matches(o, f) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(o domain.Order, f application.Filter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if o.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DiningType != "" && o.DiningType != f.DiningType {
		return false
	}
	if f.TableNumber > 0 && o.TableNumber != f.TableNumber {
		return false
	}
	if f.ScheduledBefore != nil && (o.ScheduledFor == nil || o.ScheduledFor.After(*f.ScheduledBefore)) {
		return false
	}
	return true
}

func clone(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	for i, it := range o.Items {
		it.AddOns = append([]domain.AddOn(nil), it.AddOns...)
		items[i] = it
	}
	o.Items = items
	o.Fees = append([]domain.AppliedFee(nil), o.Fees...)
	if o.Discount != nil {
		d := *o.Discount
		o.Discount = &d
	}
	if o.ScheduledFor != nil {
		t := *o.ScheduledFor
		o.ScheduledFor = &t
	}
	return o
}
