package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/cafe-order-core/internal/orchestrator/domain"
)

const compensationTimeout = 10 * time.Second

type Coordinator struct {
	log *slog.Logger
}

func NewCoordinator(log *slog.Logger) *Coordinator { return &Coordinator{log: log} }

// Run executes steps in order. When one fails, the completed steps are undone
// in reverse and the step's error is returned unchanged; undo failures are
// logged and never replace it.
func (c *Coordinator) Run(ctx context.Context, orderID string, steps ...domain.Step) (domain.Saga, error) {
	saga := domain.Saga{OrderID: orderID, State: domain.StateStarted}
	for i, step := range steps {
		if err := step.Do(ctx); err != nil {
			saga.Failed = step.Name
			saga.State = domain.StateCompensating
			c.log.Info("saga step failed, compensating", "order_id", orderID, "step", step.Name, "err", err)
			if cErr := c.compensate(ctx, orderID, steps[:i]); cErr != nil {
				c.log.Error("saga compensation incomplete", "order_id", orderID, "err", cErr)
			}
			saga.State = domain.StateCanceled
			return saga, err
		}
		saga.Done = append(saga.Done, step.Name)
	}
	saga.State = domain.StateCompleted
	return saga, nil
}

func (c *Coordinator) compensate(ctx context.Context, orderID string, done []domain.Step) error {
	// the caller's context may already be cancelled; undo still has to run
	undoCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(undoCtx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", step.Name, err))
			continue
		}
		c.log.Info("saga step undone", "order_id", orderID, "step", step.Name)
	}
	return errors.Join(errs...)
}
