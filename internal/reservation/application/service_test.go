package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
	"github.com/dmehra2102/cafe-order-core/internal/reservation/infrastructure/memory"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
)

var seven = time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)

func floor() []domain.Table {
	return []domain.Table{
		{Number: 5, Zone: "terrace", Capacity: 4, Active: true},
		{Number: 2, Zone: "inside", Capacity: 2, Active: true},
		{Number: 3, Zone: "inside", Capacity: 4, Active: true},
		{Number: 9, Zone: "inside", Capacity: 8, Active: false},
	}
}

func newAllocator() (*Allocator, *memory.Store) {
	store := memory.NewStore(floor())
	return NewAllocator(slog.New(slog.NewTextHandler(io.Discard, nil)), store, 0), store
}

func TestOverlapIsHalfOpen(t *testing.T) {
	end := seven.Add(2 * time.Hour)
	assert.True(t, domain.Overlaps(seven, end, seven.Add(time.Hour), end.Add(time.Hour)))
	assert.False(t, domain.Overlaps(seven, end, end, end.Add(time.Hour)))
	assert.False(t, domain.Overlaps(end, end.Add(time.Hour), seven, end))
}

func TestFindAvailableFiltersCapacityAndOverlap(t *testing.T) {
	alloc, _ := newAllocator()
	ctx := context.Background()

	_, err := alloc.Allocate(ctx, Request{OrderID: "o-1", Start: seven, PartySize: 4, TablePreference: 3})
	require.NoError(t, err)

	tables, err := alloc.FindAvailable(ctx, seven.Add(90*time.Minute), 3)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, 5, tables[0].Number)

	tables, err = alloc.FindAvailable(ctx, seven.Add(2*time.Hour), 3)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, 3, tables[0].Number)
}

func TestAllocateWithoutPreferenceTakesLowestNumber(t *testing.T) {
	alloc, _ := newAllocator()
	ctx := context.Background()

	first, err := alloc.Allocate(ctx, Request{OrderID: "o-1", Start: seven, PartySize: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, first.TableNumber)
	assert.Equal(t, seven.Add(domain.DefaultDuration), first.End)

	second, err := alloc.Allocate(ctx, Request{OrderID: "o-2", Start: seven, PartySize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, second.TableNumber)
}

func TestAllocatePreferredTableConflicts(t *testing.T) {
	alloc, _ := newAllocator()
	ctx := context.Background()

	_, err := alloc.Allocate(ctx, Request{OrderID: "o-1", Start: seven, PartySize: 2, TablePreference: 5})
	require.NoError(t, err)

	_, err = alloc.Allocate(ctx, Request{OrderID: "o-2", Start: seven.Add(30 * time.Minute), PartySize: 2, TablePreference: 5})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.ErrorIs(t, err, domain.ErrTableNoLongerAvailable)

	_, err = alloc.Allocate(ctx, Request{OrderID: "o-3", Start: seven, PartySize: 6, TablePreference: 3})
	assert.ErrorIs(t, err, domain.ErrTableTooSmall)

	_, err = alloc.Allocate(ctx, Request{OrderID: "o-4", Start: seven, PartySize: 2, TablePreference: 9})
	assert.ErrorIs(t, err, domain.ErrUnknownTable)
}

func TestConcurrentAllocationsForOneTable(t *testing.T) {
	alloc, _ := newAllocator()

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = alloc.Allocate(context.Background(), Request{
				OrderID: fmt.Sprintf("o-%d", i), Start: seven, PartySize: 2, TablePreference: 5,
			})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrTableNoLongerAvailable)
	}
	assert.Equal(t, 1, won)
}

func TestNoTableLeft(t *testing.T) {
	alloc, _ := newAllocator()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := alloc.Allocate(ctx, Request{OrderID: fmt.Sprintf("o-%d", i), Start: seven, PartySize: 2})
		require.NoError(t, err)
	}
	_, err := alloc.Allocate(ctx, Request{OrderID: "late", Start: seven, PartySize: 2})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.ErrorIs(t, err, domain.ErrNoTableAvailable)
}

func TestReleaseFreesSlotAndIsIdempotent(t *testing.T) {
	alloc, _ := newAllocator()
	ctx := context.Background()

	_, err := alloc.Allocate(ctx, Request{OrderID: "o-1", Start: seven, PartySize: 2, TablePreference: 5})
	require.NoError(t, err)
	require.NoError(t, alloc.Release(ctx, "o-1"))
	require.NoError(t, alloc.Release(ctx, "o-1"))

	r, err := alloc.ForOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, r.Status)

	_, err = alloc.Allocate(ctx, Request{OrderID: "o-2", Start: seven, PartySize: 2, TablePreference: 5})
	assert.NoError(t, err)
}

func TestCompletedReservationIsNotReopened(t *testing.T) {
	alloc, _ := newAllocator()
	ctx := context.Background()
	_, err := alloc.Allocate(ctx, Request{OrderID: "o-1", Start: seven, PartySize: 2})
	require.NoError(t, err)

	require.NoError(t, alloc.Complete(ctx, "o-1"))
	require.NoError(t, alloc.Release(ctx, "o-1"))

	r, err := alloc.ForOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, r.Status)

	_, err = alloc.ForOrder(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
