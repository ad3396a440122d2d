package application

import (
	"context"

	"github.com/dmehra2102/cafe-order-core/internal/inventory/domain"
)

// StockRepository applies stock changes atomically. Reserve decrements every
// tracked product conditionally or nothing at all; Release returns the holds
// it flipped, so repeating it changes nothing. line 0 releases every line.
type StockRepository interface {
	Reserve(ctx context.Context, orderID string, lines []domain.Line) ([]domain.Hold, error)
	Release(ctx context.Context, orderID string, line int) ([]domain.Hold, error)
	Holds(ctx context.Context, orderID string) ([]domain.Hold, error)
}
