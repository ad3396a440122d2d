package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dmehra2102/cafe-order-core/internal/catalog/domain"
)

// Store is the in-memory catalog. It also owns stock levels so the memory
// inventory adapter decrements the same numbers the catalog reports.
type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func NewStore(products []domain.Product) *Store {
	s := &Store{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) Products(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) List(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TakeStock decrements every tracked product in demand, or none of them.
// It returns the first product that is short or unknown.
func (s *Store) TakeStock(demand map[string]int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, ok := s.products[id]
		if !ok {
			return id, domain.ErrProductNotFound
		}
		if p.TrackStock && p.StockQuantity < demand[id] {
			return id, nil
		}
	}
	for _, id := range ids {
		p := s.products[id]
		if p.TrackStock {
			p.StockQuantity -= demand[id]
			s.products[id] = p
		}
	}
	return "", nil
}

func (s *Store) PutStock(productID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok && p.TrackStock {
		p.StockQuantity += qty
		s.products[productID] = p
	}
}

func (s *Store) Tracked(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].TrackStock
}

func (s *Store) StockOf(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].StockQuantity
}
