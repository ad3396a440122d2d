package application

import (
	"context"
	"time"

	"github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
)

// Repository stores tables and reservations. Insert must re-check overlap at
// write time and fail with domain.ErrTableNoLongerAvailable when another
// confirmed reservation holds the table for an intersecting window.
type Repository interface {
	Tables(ctx context.Context) ([]domain.Table, error)
	Overlapping(ctx context.Context, start, end time.Time) ([]domain.Reservation, error)
	Insert(ctx context.Context, r domain.Reservation) error
	ByOrder(ctx context.Context, orderID string) (domain.Reservation, error)
	// SetStatus moves the confirmed reservation of orderID to status and
	// reports whether a row changed.
	SetStatus(ctx context.Context, orderID string, status domain.Status) (bool, error)
}
