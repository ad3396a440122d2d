package application

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	pricingdomain "github.com/dmehra2102/cafe-order-core/internal/pricing/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
)

// ApplyDiscountCode replaces the order's discount with code. The new code is
// redeemed before the write and given back if the write loses; a replaced
// code gets its use back after the write.
func (s *Service) ApplyDiscountCode(ctx context.Context, id, code string) (o domain.Order, err error) {
	defer func() { s.observe("apply_discount_code", err) }()

	o, err = s.discountable(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	code = pricingdomain.NormalizeCode(code)
	if o.Discount != nil && o.Discount.Source == domain.DiscountCode && o.Discount.Code == code {
		return o, nil
	}
	snap, _, err := s.discounts.Resolve(ctx, code, o.DiningType, o.ItemsSubtotal())
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.discounts.Redeem(ctx, code); err != nil {
		return domain.Order{}, err
	}

	previous := o.Discount
	o.Discount = &snap
	o, err = s.reprice(ctx, o)
	if err != nil {
		if uErr := s.discounts.Unredeem(ctx, code); uErr != nil {
			s.log.Error("return redeemed code after failed write", "order_id", id, "code", code, "err", uErr)
		}
		return domain.Order{}, err
	}
	s.returnCode(ctx, id, previous)
	return o, nil
}

// ApplyManualDiscount sets a staff discount of at most the subtotal.
func (s *Service) ApplyManualDiscount(ctx context.Context, id string, amount decimal.Decimal, reason string) (o domain.Order, err error) {
	defer func() { s.observe("apply_manual_discount", err) }()

	o, err = s.discountable(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	d, err := pricingdomain.ManualDiscount(amount, reason, o.ItemsSubtotal())
	if err != nil {
		return domain.Order{}, classify(err, amount.StringFixed(2))
	}
	previous := o.Discount
	o.Discount = &d
	if o, err = s.reprice(ctx, o); err != nil {
		return domain.Order{}, err
	}
	s.returnCode(ctx, id, previous)
	return o, nil
}

func (s *Service) discountable(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, classify(err, id)
	}
	if o.Status.Terminal() {
		return domain.Order{}, apperr.Conflict(domain.ErrInvalidTransition, id)
	}
	return o, nil
}

func (s *Service) reprice(ctx context.Context, o domain.Order) (domain.Order, error) {
	if err := pricingdomain.Reprice(&o); err != nil {
		return domain.Order{}, classify(err, o.ID)
	}
	o.UpdatedAt = s.now().UTC()
	ev, err := s.event(ctx, o, domain.EventOrderRepriced, domain.OrderRepriced{
		OrderID:        o.ID,
		DiscountAmount: o.DiscountAmount.StringFixed(2),
		DiscountReason: o.DiscountReason,
		Total:          o.Total.StringFixed(2),
	})
	if err != nil {
		return domain.Order{}, err
	}
	updated, err := s.orders.Update(ctx, o, ev)
	if err != nil {
		return domain.Order{}, classify(err, o.ID)
	}
	s.log.Info("order repriced", "order_id", o.ID, "discount", updated.DiscountAmount.StringFixed(2), "total", updated.Total.StringFixed(2))
	return updated, nil
}

func (s *Service) returnCode(ctx context.Context, id string, previous *domain.AppliedDiscount) {
	if previous == nil || previous.Source != domain.DiscountCode {
		return
	}
	if err := s.discounts.Unredeem(ctx, previous.Code); err != nil {
		s.log.Error("return replaced code", "order_id", id, "code", previous.Code, "err", err)
	}
}
