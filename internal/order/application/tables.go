package application

import (
	"context"
	"sort"
	"strconv"

	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	resdomain "github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
)

type TableState string

const (
	TableAvailable TableState = "available"
	TableOccupied  TableState = "occupied"
)

type TableStatus struct {
	Number   int        `json:"number"`
	Zone     string     `json:"zone,omitempty"`
	Capacity int        `json:"capacity,omitempty"`
	State    TableState `json:"state"`
	OrderIDs []string   `json:"order_ids,omitempty"`
}

// TableStatus derives one table's state from the open dine-in orders on it.
func (s *Service) TableStatus(ctx context.Context, number int) (TableStatus, error) {
	board, err := s.TableBoard(ctx)
	if err != nil {
		return TableStatus{}, err
	}
	for _, t := range board {
		if t.Number == number {
			return t, nil
		}
	}
	return TableStatus{}, apperr.NotFound(resdomain.ErrUnknownTable, tableKey(number))
}

// TableBoard derives every table's state. Nothing about occupancy is stored.
func (s *Service) TableBoard(ctx context.Context) ([]TableStatus, error) {
	tables, err := s.tables.Floor(ctx)
	if err != nil {
		return nil, err
	}
	open, err := s.orders.List(ctx, Filter{Statuses: occupyingStatuses(), DiningType: domain.DineIn})
	if err != nil {
		return nil, classify(err, "")
	}
	byTable := map[int][]string{}
	for _, o := range open {
		if o.Status.Occupies() {
			byTable[o.TableNumber] = append(byTable[o.TableNumber], o.ID)
		}
	}

	board := make([]TableStatus, 0, len(tables))
	for _, t := range tables {
		st := TableStatus{Number: t.Number, Zone: t.Zone, Capacity: t.Capacity, State: TableAvailable}
		if ids := byTable[t.Number]; len(ids) > 0 {
			st.State = TableOccupied
			st.OrderIDs = ids
		}
		board = append(board, st)
	}
	sort.Slice(board, func(i, j int) bool { return board[i].Number < board[j].Number })
	return board, nil
}

func occupyingStatuses() []domain.Status {
	return []domain.Status{
		domain.StatusPending,
		domain.StatusPaymentVerification,
		domain.StatusReservationConfirmed,
		domain.StatusPreparing,
		domain.StatusReady,
		domain.StatusServed,
	}
}

func tableKey(number int) string {
	return "table " + strconv.Itoa(number)
}
