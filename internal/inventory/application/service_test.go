package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/dmehra2102/cafe-order-core/internal/catalog/domain"
	catalogmemory "github.com/dmehra2102/cafe-order-core/internal/catalog/infrastructure/memory"
	"github.com/dmehra2102/cafe-order-core/internal/inventory/domain"
	"github.com/dmehra2102/cafe-order-core/internal/inventory/infrastructure/memory"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
)

func newGuard(t *testing.T) (*Guard, *catalogmemory.Store) {
	t.Helper()
	catalog := catalogmemory.NewStore([]catalogdomain.Product{
		{ID: "croissant", Name: "Croissant", Price: decimal.NewFromInt(3), TrackStock: true, StockQuantity: 5, Active: true},
		{ID: "muffin", Name: "Muffin", Price: decimal.NewFromInt(3), TrackStock: true, StockQuantity: 1, Active: true},
		{ID: "espresso", Name: "Espresso", Price: decimal.NewFromInt(2), Active: true},
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGuard(log, memory.NewStore(catalog)), catalog
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	guard, catalog := newGuard(t)

	var wg sync.WaitGroup
	var ok, refused atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := guard.Reserve(context.Background(), fmt.Sprintf("o-%d", i), []domain.Line{{Line: 1, ProductID: "croissant", Quantity: 2}})
			if err == nil {
				ok.Add(1)
				return
			}
			if apperr.Is(err, apperr.KindConflict) {
				refused.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 2, ok.Load())
	assert.EqualValues(t, 18, refused.Load())
	assert.Equal(t, 1, catalog.StockOf("croissant"))
}

func TestReserveIsAllOrNothing(t *testing.T) {
	guard, catalog := newGuard(t)

	err := guard.Reserve(context.Background(), "o-1", []domain.Line{
		{Line: 1, ProductID: "croissant", Quantity: 2},
		{Line: 2, ProductID: "muffin", Quantity: 2},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, "muffin", apperr.KeyOf(err))
	assert.Equal(t, 5, catalog.StockOf("croissant"))
	assert.Equal(t, 1, catalog.StockOf("muffin"))
}

func TestReserveUnknownProduct(t *testing.T) {
	guard, _ := newGuard(t)
	err := guard.Reserve(context.Background(), "o-1", []domain.Line{{Line: 1, ProductID: "bagel", Quantity: 1}})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUntrackedProductsHoldNothing(t *testing.T) {
	guard, _ := newGuard(t)
	require.NoError(t, guard.Reserve(context.Background(), "o-1", []domain.Line{{Line: 1, ProductID: "espresso", Quantity: 40}}))

	holds, err := guard.Holds(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestReleaseIsIdempotent(t *testing.T) {
	guard, catalog := newGuard(t)
	ctx := context.Background()
	require.NoError(t, guard.Reserve(ctx, "o-1", []domain.Line{
		{Line: 1, ProductID: "croissant", Quantity: 3},
		{Line: 2, ProductID: "muffin", Quantity: 1},
	}))

	require.NoError(t, guard.ReleaseLine(ctx, "o-1", 2))
	require.NoError(t, guard.ReleaseLine(ctx, "o-1", 2))
	assert.Equal(t, 1, catalog.StockOf("muffin"))
	assert.Equal(t, 2, catalog.StockOf("croissant"))

	require.NoError(t, guard.Release(ctx, "o-1"))
	require.NoError(t, guard.Release(ctx, "o-1"))
	assert.Equal(t, 5, catalog.StockOf("croissant"))
	assert.Equal(t, 1, catalog.StockOf("muffin"))

	require.NoError(t, guard.Release(ctx, "never-reserved"))
}
