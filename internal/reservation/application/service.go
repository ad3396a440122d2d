package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
)

type Request struct {
	OrderID         string
	Start           time.Time
	PartySize       int
	TablePreference int
	Customer        domain.Customer
}

type Allocator struct {
	log      *slog.Logger
	repo     Repository
	duration time.Duration
	now      func() time.Time
}

func NewAllocator(log *slog.Logger, repo Repository, duration time.Duration) *Allocator {
	if duration <= 0 {
		duration = domain.DefaultDuration
	}
	return &Allocator{log: log, repo: repo, duration: duration, now: time.Now}
}

// FindAvailable lists tables seating partySize with no confirmed reservation
// in [start, start+duration), lowest number first.
func (a *Allocator) FindAvailable(ctx context.Context, start time.Time, partySize int) ([]domain.Table, error) {
	if partySize <= 0 {
		return nil, apperr.Validation(domain.ErrInvalidPartySize, strconv.Itoa(partySize))
	}
	end := start.Add(a.duration)
	tables, err := a.repo.Tables(ctx)
	if err != nil {
		return nil, apperr.Collaborator(err, "tables")
	}
	taken, err := a.repo.Overlapping(ctx, start, end)
	if err != nil {
		return nil, apperr.Collaborator(err, "reservations")
	}
	busy := make(map[int]bool, len(taken))
	for _, r := range taken {
		if r.Holds() && r.OverlapsWindow(start, end) {
			busy[r.TableNumber] = true
		}
	}

	var out []domain.Table
	for _, t := range tables {
		if t.Active && t.Capacity >= partySize && !busy[t.Number] {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Allocate books a table for req. A requested table is re-checked by the
// store at write time; without a preference the lowest free table wins and
// the next candidate is tried when a concurrent booking takes it first.
func (a *Allocator) Allocate(ctx context.Context, req Request) (domain.Reservation, error) {
	if req.PartySize <= 0 {
		return domain.Reservation{}, apperr.Validation(domain.ErrInvalidPartySize, strconv.Itoa(req.PartySize))
	}
	if req.TablePreference > 0 {
		return a.allocatePreferred(ctx, req)
	}

	candidates, err := a.FindAvailable(ctx, req.Start, req.PartySize)
	if err != nil {
		return domain.Reservation{}, err
	}
	for _, t := range candidates {
		r, err := a.insert(ctx, req, t.Number)
		if errors.Is(err, domain.ErrTableNoLongerAvailable) {
			a.log.Info("table taken concurrently, trying next", "order_id", req.OrderID, "table", t.Number)
			continue
		}
		return r, err
	}
	return domain.Reservation{}, apperr.Conflict(domain.ErrNoTableAvailable, req.Start.Format(time.RFC3339))
}

func (a *Allocator) allocatePreferred(ctx context.Context, req Request) (domain.Reservation, error) {
	key := strconv.Itoa(req.TablePreference)
	tables, err := a.repo.Tables(ctx)
	if err != nil {
		return domain.Reservation{}, apperr.Collaborator(err, "tables")
	}
	var table *domain.Table
	for i := range tables {
		if tables[i].Number == req.TablePreference && tables[i].Active {
			table = &tables[i]
		}
	}
	if table == nil {
		return domain.Reservation{}, apperr.Validation(domain.ErrUnknownTable, key)
	}
	if table.Capacity < req.PartySize {
		return domain.Reservation{}, apperr.Validation(domain.ErrTableTooSmall, key)
	}
	r, err := a.insert(ctx, req, table.Number)
	if errors.Is(err, domain.ErrTableNoLongerAvailable) {
		return domain.Reservation{}, apperr.Conflict(err, key)
	}
	return r, err
}

func (a *Allocator) insert(ctx context.Context, req Request, table int) (domain.Reservation, error) {
	r := domain.Reservation{
		ID:              uuid.NewString(),
		OrderID:         req.OrderID,
		TableNumber:     table,
		Start:           req.Start.UTC(),
		End:             req.Start.Add(a.duration).UTC(),
		PartySize:       req.PartySize,
		TablePreference: req.TablePreference,
		Customer:        req.Customer,
		Status:          domain.StatusConfirmed,
		CreatedAt:       a.now().UTC(),
	}
	if err := a.repo.Insert(ctx, r); err != nil {
		if errors.Is(err, domain.ErrTableNoLongerAvailable) {
			return domain.Reservation{}, err
		}
		return domain.Reservation{}, apperr.Collaborator(err, req.OrderID)
	}
	a.log.Info("table allocated", "order_id", req.OrderID, "table", table, "start", r.Start)
	return r, nil
}

// Release cancels the reservation of orderID; repeating it is a no-op.
func (a *Allocator) Release(ctx context.Context, orderID string) error {
	return a.settle(ctx, orderID, domain.StatusCancelled)
}

func (a *Allocator) Complete(ctx context.Context, orderID string) error {
	return a.settle(ctx, orderID, domain.StatusCompleted)
}

func (a *Allocator) NoShow(ctx context.Context, orderID string) error {
	return a.settle(ctx, orderID, domain.StatusNoShow)
}

func (a *Allocator) settle(ctx context.Context, orderID string, status domain.Status) error {
	changed, err := a.repo.SetStatus(ctx, orderID, status)
	if err != nil {
		a.log.Error("update reservation", "order_id", orderID, "status", status, "err", err)
		return apperr.Collaborator(err, orderID)
	}
	if changed {
		a.log.Info("reservation updated", "order_id", orderID, "status", status)
	}
	return nil
}

func (a *Allocator) ForOrder(ctx context.Context, orderID string) (domain.Reservation, error) {
	r, err := a.repo.ByOrder(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Reservation{}, apperr.NotFound(err, orderID)
	}
	if err != nil {
		return domain.Reservation{}, apperr.Collaborator(err, orderID)
	}
	return r, nil
}

// Floor lists every table, lowest number first.
func (a *Allocator) Floor(ctx context.Context) ([]domain.Table, error) {
	tables, err := a.repo.Tables(ctx)
	if err != nil {
		return nil, apperr.Collaborator(err, "tables")
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Number < tables[j].Number })
	return tables, nil
}
