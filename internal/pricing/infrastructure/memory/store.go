package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/cafe-order-core/internal/pricing/domain"
)

// Store keeps fees and discount codes in memory.
type Store struct {
	mu    sync.Mutex
	fees  []domain.Fee
	codes map[string]domain.DiscountCode
}

func NewStore(fees []domain.Fee, codes []domain.DiscountCode) *Store {
	s := &Store{fees: append([]domain.Fee(nil), fees...), codes: make(map[string]domain.DiscountCode, len(codes))}
	for _, c := range codes {
		c.Code = domain.NormalizeCode(c.Code)
		s.codes[c.Code] = c
	}
	return s
}

func (s *Store) ActiveFees(_ context.Context) ([]domain.Fee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Fee, 0, len(s.fees))
	for _, f := range s.fees {
		if f.Active {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, code string) (domain.DiscountCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return domain.DiscountCode{}, domain.ErrCodeNotFound
	}
	return c, nil
}

func (s *Store) Redeem(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok || !c.Active {
		return domain.ErrCodeNotFound
	}
	if c.Exhausted() {
		return domain.ErrExhausted
	}
	c.UsageCount++
	s.codes[code] = c
	return nil
}

func (s *Store) Unredeem(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return domain.ErrCodeNotFound
	}
	if c.UsageCount > 0 {
		c.UsageCount--
		s.codes[code] = c
	}
	return nil
}
