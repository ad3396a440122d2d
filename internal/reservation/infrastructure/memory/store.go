package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
)

type Store struct {
	mu           sync.Mutex
	tables       []domain.Table
	reservations []domain.Reservation
}

func NewStore(tables []domain.Table) *Store {
	return &Store{tables: append([]domain.Table(nil), tables...)}
}

func (s *Store) Tables(_ context.Context) ([]domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Table(nil), s.tables...), nil
}

func (s *Store) Overlapping(_ context.Context, start, end time.Time) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Reservation
	for _, r := range s.reservations {
		if r.Holds() && r.OverlapsWindow(start, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Insert(_ context.Context, r domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.reservations {
		if other.TableNumber == r.TableNumber && other.Holds() && other.OverlapsWindow(r.Start, r.End) {
			return domain.ErrTableNoLongerAvailable
		}
	}
	s.reservations = append(s.reservations, r)
	return nil
}

func (s *Store) ByOrder(_ context.Context, orderID string) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.reservations) - 1; i >= 0; i-- {
		if s.reservations[i].OrderID == orderID {
			return s.reservations[i], nil
		}
	}
	return domain.Reservation{}, domain.ErrNotFound
}

func (s *Store) SetStatus(_ context.Context, orderID string, status domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for i := range s.reservations {
		r := &s.reservations[i]
		if r.OrderID == orderID && r.Status == domain.StatusConfirmed {
			r.Status = status
			changed = true
		}
	}
	return changed, nil
}
