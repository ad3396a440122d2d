package memory

import (
	"context"
	"errors"
	"sync"

	catalogdomain "github.com/dmehra2102/cafe-order-core/internal/catalog/domain"
	"github.com/dmehra2102/cafe-order-core/internal/inventory/domain"
)

// StockTable is the stock level owner, the memory catalog in practice.
type StockTable interface {
	TakeStock(demand map[string]int) (string, error)
	PutStock(productID string, qty int)
	Tracked(productID string) bool
}

type Store struct {
	mu    sync.Mutex
	stock StockTable
	holds map[string][]domain.Hold
}

func NewStore(stock StockTable) *Store {
	return &Store{stock: stock, holds: map[string][]domain.Hold{}}
}

func (s *Store) Reserve(_ context.Context, orderID string, lines []domain.Line) ([]domain.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	short, err := s.stock.TakeStock(domain.Demand(lines))
	if errors.Is(err, catalogdomain.ErrProductNotFound) {
		return nil, domain.Unknown(short)
	}
	if err != nil {
		return nil, err
	}
	if short != "" {
		return nil, domain.Shortage(short)
	}

	var created []domain.Hold
	for _, l := range lines {
		if !s.stock.Tracked(l.ProductID) {
			continue
		}
		h := domain.Hold{OrderID: orderID, Line: l.Line, ProductID: l.ProductID, Quantity: l.Quantity}
		s.holds[orderID] = append(s.holds[orderID], h)
		created = append(created, h)
	}
	return created, nil
}

func (s *Store) Release(_ context.Context, orderID string, line int) ([]domain.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var released []domain.Hold
	holds := s.holds[orderID]
	for i := range holds {
		h := &holds[i]
		if h.Released || (line != 0 && h.Line != line) {
			continue
		}
		h.Released = true
		s.stock.PutStock(h.ProductID, h.Quantity)
		released = append(released, *h)
	}
	return released, nil
}

func (s *Store) Holds(_ context.Context, orderID string) ([]domain.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Hold(nil), s.holds[orderID]...), nil
}
