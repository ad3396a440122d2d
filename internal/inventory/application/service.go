package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/cafe-order-core/internal/inventory/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
	"github.com/dmehra2102/cafe-order-core/pkg/metrics"
)

// Guard keeps committed orders from taking more stock than exists.
type Guard struct {
	log  *slog.Logger
	repo StockRepository
}

func NewGuard(log *slog.Logger, repo StockRepository) *Guard {
	return &Guard{log: log, repo: repo}
}

func (g *Guard) Reserve(ctx context.Context, orderID string, lines []domain.Line) error {
	holds, err := g.repo.Reserve(ctx, orderID, lines)
	if err != nil {
		var short *domain.ShortageError
		if errors.As(err, &short) {
			if errors.Is(err, domain.ErrUnknownProduct) {
				return apperr.NotFound(err, short.ProductID)
			}
			g.log.Info("stock reservation refused", "order_id", orderID, "product_id", short.ProductID)
			return apperr.Conflict(err, short.ProductID)
		}
		return apperr.Collaborator(err, orderID)
	}
	metrics.RecordStock("reserve", len(holds))
	return nil
}

// Release returns every hold of orderID.
func (g *Guard) Release(ctx context.Context, orderID string) error {
	return g.release(ctx, orderID, 0)
}

// ReleaseLine returns the hold of one line.
func (g *Guard) ReleaseLine(ctx context.Context, orderID string, line int) error {
	return g.release(ctx, orderID, line)
}

func (g *Guard) release(ctx context.Context, orderID string, line int) error {
	released, err := g.repo.Release(ctx, orderID, line)
	if err != nil {
		g.log.Error("release stock", "order_id", orderID, "line", line, "err", err)
		return apperr.Collaborator(err, orderID)
	}
	if len(released) > 0 {
		metrics.RecordStock("release", len(released))
		g.log.Info("stock released", "order_id", orderID, "line", line, "holds", len(released))
	}
	return nil
}

func (g *Guard) Holds(ctx context.Context, orderID string) ([]domain.Hold, error) {
	holds, err := g.repo.Holds(ctx, orderID)
	if err != nil {
		return nil, apperr.Collaborator(err, orderID)
	}
	return holds, nil
}
