package domain

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending              Status = "pending"
	StatusPaymentVerification  Status = "payment_verification"
	StatusReservationConfirmed Status = "reservation_confirmed"
	StatusPreparing            Status = "preparing"
	StatusReady                Status = "ready"
	StatusServed               Status = "served"
	StatusPaid                 Status = "paid"
	StatusCancelled            Status = "cancelled"
	StatusCompleted            Status = "completed"
	StatusNoShow               Status = "no_show"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotSettled        = errors.New("order is not fully settled")
	ErrUnknownStatus     = errors.New("unknown status")
)

// transitions is the single source of truth for legal status changes.
var transitions = map[Status][]Status{
	StatusPaymentVerification:  {StatusPending, StatusReservationConfirmed, StatusCancelled},
	StatusReservationConfirmed: {StatusPreparing, StatusPaid, StatusNoShow, StatusCancelled},
	StatusPending:              {StatusPreparing, StatusPaid, StatusCancelled},
	StatusPreparing:            {StatusReady, StatusPaid, StatusCancelled},
	StatusReady:                {StatusServed, StatusPaid, StatusCancelled},
	StatusServed:               {StatusPaid, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaymentVerification, StatusReservationConfirmed, StatusPreparing,
		StatusReady, StatusServed, StatusPaid, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether an order in this status holds its table.
func (s Status) Occupies() bool {
	return s.Valid() && !s.Terminal()
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the legal targets from s.
func NextStatuses(s Status) []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// InitialStatus picks the entry state: orders carrying an unverified online
// payment wait for a human, reservations wait for their slot, the rest go
// straight to the kitchen queue.
func InitialStatus(dining DiningType, prepaid bool) Status {
	switch {
	case prepaid:
		return StatusPaymentVerification
	case dining == Reservation:
		return StatusReservationConfirmed
	default:
		return StatusPending
	}
}

// Transition applies one edge of the state machine. settled must reflect the
// payment ledger at the moment of the write.
func (o *Order) Transition(to Status, settled bool, now time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	if o.Status == StatusPaymentVerification {
		switch {
		case to == StatusPending && o.DiningType == Reservation:
			return fmt.Errorf("%w: reservation orders resume as %s", ErrInvalidTransition, StatusReservationConfirmed)
		case to == StatusReservationConfirmed && o.DiningType != Reservation:
			return fmt.Errorf("%w: only reservation orders resume as %s", ErrInvalidTransition, StatusReservationConfirmed)
		}
		if to != StatusCancelled {
			o.PaymentStatus = PaymentPaid
		}
	}
	if to == StatusPaid {
		if !settled {
			return ErrNotSettled
		}
		o.PaymentStatus = PaymentPaid
	}
	o.Status = to
	o.UpdatedAt = now.UTC()
	return nil
}
