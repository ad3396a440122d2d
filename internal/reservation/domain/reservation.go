package domain

import (
	"errors"
	"time"
)

const DefaultDuration = 120 * time.Minute

var (
	ErrTableNoLongerAvailable = errors.New("table no longer available")
	ErrNoTableAvailable       = errors.New("no table available")
	ErrUnknownTable           = errors.New("unknown table")
	ErrTableTooSmall          = errors.New("table too small for party")
	ErrInvalidPartySize       = errors.New("party size must be positive")
	ErrNotFound               = errors.New("reservation not found")
)

type Table struct {
	Number   int    `json:"number"`
	Zone     string `json:"zone"`
	Capacity int    `json:"capacity"`
	Active   bool   `json:"active"`
}

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type Reservation struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"order_id"`
	TableNumber     int       `json:"table_number"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	PartySize       int       `json:"number_of_people"`
	TablePreference int       `json:"table_preference,omitempty"`
	Customer        Customer  `json:"customer"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// Holds reports whether r still blocks its table.
func (r Reservation) Holds() bool {
	return r.Status == StatusConfirmed
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

func (r Reservation) OverlapsWindow(start, end time.Time) bool {
	return Overlaps(r.Start, r.End, start, end)
}
