package application

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
	"github.com/dmehra2102/cafe-order-core/internal/pricing/domain"
	"github.com/dmehra2102/cafe-order-core/internal/pricing/infrastructure/memory"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRedeemNeverExceedsLimit(t *testing.T) {
	store := memory.NewStore(nil, []domain.DiscountCode{{
		Code: "ONCE", Type: orderdomain.FeeFixed, Value: dec("2"), UsageLimit: 1, Active: true,
	}})
	svc := NewDiscountService(discardLogger(), store)

	var wg sync.WaitGroup
	var ok, exhausted atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Redeem(context.Background(), "once")
			switch {
			case err == nil:
				ok.Add(1)
			case apperr.Is(err, apperr.KindConflict):
				exhausted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 7, exhausted.Load())
	c, err := store.Get(context.Background(), "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsageCount)
}

func TestUnredeemGivesUseBack(t *testing.T) {
	store := memory.NewStore(nil, []domain.DiscountCode{{Code: "ONCE", Value: dec("2"), UsageLimit: 1, Active: true}})
	svc := NewDiscountService(discardLogger(), store)
	ctx := context.Background()

	require.NoError(t, svc.Redeem(ctx, "ONCE"))
	require.NoError(t, svc.Unredeem(ctx, "ONCE"))
	require.NoError(t, svc.Unredeem(ctx, "ONCE"))
	require.NoError(t, svc.Redeem(ctx, "ONCE"))

	c, _ := store.Get(ctx, "ONCE")
	assert.Equal(t, 1, c.UsageCount)
}

func TestResolveClassifiesErrors(t *testing.T) {
	store := memory.NewStore(nil, []domain.DiscountCode{{
		Code: "BIG", Type: orderdomain.FeePercentage, Value: dec("10"), MinOrderAmount: dec("40"), Active: true,
	}})
	svc := NewDiscountService(discardLogger(), store)
	ctx := context.Background()

	_, _, err := svc.Resolve(ctx, "nope", orderdomain.DineIn, dec("50"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
	assert.Equal(t, "NOPE", apperr.KeyOf(err))

	_, _, err = svc.Resolve(ctx, "big", orderdomain.DineIn, dec("39.99"))
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)

	snap, amount, err := svc.Resolve(ctx, " big ", orderdomain.DineIn, dec("50"))
	require.NoError(t, err)
	assert.Equal(t, "5.00", amount.StringFixed(2))
	assert.Equal(t, "BIG", snap.Code)
	assert.Equal(t, orderdomain.DiscountCode, snap.Source)
}

func TestFeeSnapshot(t *testing.T) {
	store := memory.NewStore([]domain.Fee{
		{Name: "Service", Amount: dec("6"), Type: orderdomain.FeePercentage, AppliesTo: domain.AppliesBoth, Active: true},
		{Name: "Bag", Amount: dec("0.30"), Type: orderdomain.FeeFixed, AppliesTo: domain.AppliesTakeaway, Active: true},
	}, nil)
	svc := NewFeeService(store)

	fees, err := svc.Snapshot(context.Background(), orderdomain.DineIn)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.Equal(t, "Service", fees[0].Name)
}
