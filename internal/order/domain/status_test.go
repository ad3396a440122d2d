package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusReady, StatusServed, true},
		{StatusServed, StatusPaid, true},
		{StatusPending, StatusCancelled, true},
		{StatusServed, StatusCancelled, true},
		{StatusReservationConfirmed, StatusPreparing, true},
		{StatusReservationConfirmed, StatusNoShow, true},
		{StatusPaymentVerification, StatusPending, true},
		{StatusPaymentVerification, StatusCancelled, true},
		{StatusPaymentVerification, StatusPreparing, false},
		{StatusPending, StatusServed, false},
		{StatusReady, StatusPreparing, false},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusNoShow, StatusPreparing, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, StatusPending, InitialStatus(DineIn, false))
	assert.Equal(t, StatusPending, InitialStatus(Takeaway, false))
	assert.Equal(t, StatusReservationConfirmed, InitialStatus(Reservation, false))
	assert.Equal(t, StatusPaymentVerification, InitialStatus(Takeaway, true))
	assert.Equal(t, StatusPaymentVerification, InitialStatus(Reservation, true))
}

func TestTransitionToPaidRequiresSettlement(t *testing.T) {
	o, err := NewOrder("o-1", DineIn, 2, sampleItems(), t0)
	require.NoError(t, err)
	o.Status = StatusServed

	assert.ErrorIs(t, o.Transition(StatusPaid, false, t0), ErrNotSettled)
	assert.Equal(t, StatusServed, o.Status)

	require.NoError(t, o.Transition(StatusPaid, true, t0.Add(time.Hour)))
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.True(t, o.Status.Terminal())
	assert.ErrorIs(t, o.Transition(StatusCancelled, true, t0), ErrInvalidTransition)
}

func TestVerificationMarksPaymentPaid(t *testing.T) {
	o, err := NewOrder("o-1", Takeaway, 0, sampleItems(), t0)
	require.NoError(t, err)
	o.Status = StatusPaymentVerification

	assert.ErrorIs(t, o.Transition(StatusReservationConfirmed, false, t0), ErrInvalidTransition)
	require.NoError(t, o.Transition(StatusPending, false, t0))
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	r, err := NewOrder("o-2", Reservation, 0, sampleItems(), t0)
	require.NoError(t, err)
	r.Status = StatusPaymentVerification
	assert.ErrorIs(t, r.Transition(StatusPending, false, t0), ErrInvalidTransition)
	require.NoError(t, r.Transition(StatusReservationConfirmed, false, t0))
}

func TestRejectedVerificationKeepsPaymentUnpaid(t *testing.T) {
	o, err := NewOrder("o-1", Takeaway, 0, sampleItems(), t0)
	require.NoError(t, err)
	o.Status = StatusPaymentVerification

	require.NoError(t, o.Transition(StatusCancelled, false, t0))
	assert.Equal(t, PaymentUnpaid, o.PaymentStatus)
}

func TestOccupies(t *testing.T) {
	assert.True(t, StatusServed.Occupies())
	assert.True(t, StatusPending.Occupies())
	assert.False(t, StatusPaid.Occupies())
	assert.False(t, StatusNoShow.Occupies())
	assert.False(t, Status("weird").Occupies())
	assert.ErrorIs(t, (&Order{Status: StatusPending}).Transition("weird", true, t0), ErrUnknownStatus)
}
