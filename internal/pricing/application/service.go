package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
	"github.com/dmehra2102/cafe-order-core/internal/pricing/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
)

type FeeService struct {
	repo FeeRepository
}

func NewFeeService(repo FeeRepository) *FeeService {
	return &FeeService{repo: repo}
}

// Snapshot returns the fees that currently apply to dining, frozen for an order.
func (s *FeeService) Snapshot(ctx context.Context, dining orderdomain.DiningType) ([]orderdomain.AppliedFee, error) {
	fees, err := s.repo.ActiveFees(ctx)
	if err != nil {
		return nil, apperr.Collaborator(err, "fees")
	}
	return domain.SelectFees(dining, fees), nil
}

type DiscountService struct {
	log  *slog.Logger
	repo CodeRepository
	now  func() time.Time
}

func NewDiscountService(log *slog.Logger, repo CodeRepository) *DiscountService {
	return &DiscountService{log: log, repo: repo, now: time.Now}
}

// Resolve evaluates code against an order shape without redeeming it.
func (s *DiscountService) Resolve(ctx context.Context, code string, dining orderdomain.DiningType, subtotal decimal.Decimal) (orderdomain.AppliedDiscount, decimal.Decimal, error) {
	code = domain.NormalizeCode(code)
	dc, err := s.repo.Get(ctx, code)
	if err != nil {
		return orderdomain.AppliedDiscount{}, decimal.Zero, classify(err, code)
	}
	amount, err := dc.Evaluate(s.now(), dining, subtotal)
	if err != nil {
		return orderdomain.AppliedDiscount{}, decimal.Zero, classify(err, code)
	}
	return dc.Snapshot(), amount, nil
}

// Redeem consumes one use of code. Concurrent redemptions never push the
// usage count past the limit.
func (s *DiscountService) Redeem(ctx context.Context, code string) error {
	code = domain.NormalizeCode(code)
	if err := s.repo.Redeem(ctx, code); err != nil {
		return classify(err, code)
	}
	s.log.Info("discount redeemed", "code", code)
	return nil
}

// Unredeem gives one use back; it is the compensation for Redeem.
func (s *DiscountService) Unredeem(ctx context.Context, code string) error {
	code = domain.NormalizeCode(code)
	if err := s.repo.Unredeem(ctx, code); err != nil {
		s.log.Error("unredeem discount", "code", code, "err", err)
		return classify(err, code)
	}
	return nil
}

func classify(err error, code string) error {
	switch {
	case errors.Is(err, domain.ErrExhausted):
		return apperr.Conflict(err, code)
	case errors.Is(err, domain.ErrCodeNotFound),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrNotApplicable),
		errors.Is(err, domain.ErrBelowMinimum):
		return apperr.Validation(err, code)
	}
	return apperr.Collaborator(err, code)
}
