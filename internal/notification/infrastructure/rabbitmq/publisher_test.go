package rabbitmq

import (
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/cafe-order-core/internal/notification/domain"
	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
)

func TestPublishing(t *testing.T) {
	ticket := domain.Ticket{
		OrderID:     "o-9",
		DiningType:  orderdomain.Reservation,
		TableNumber: 6,
		Lines:       []orderdomain.TicketLine{{Line: 1, Name: "Risotto", Quantity: 1, Kitchen: true}},
	}

	msg, err := Publishing(ticket, "00-abc-def-01")
	require.NoError(t, err)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, uint8(8), msg.Priority)
	assert.Equal(t, "o-9", msg.MessageId)
	assert.Equal(t, "00-abc-def-01", msg.Headers["traceparent"])
	assert.Equal(t, "reservation", msg.Headers["dining_type"])

	var back domain.Ticket
	require.NoError(t, json.Unmarshal(msg.Body, &back))
	assert.Equal(t, ticket.Lines, back.Lines)
}

func TestPublishingWithoutTrace(t *testing.T) {
	msg, err := Publishing(domain.Ticket{OrderID: "o", DiningType: orderdomain.Takeaway}, "")
	require.NoError(t, err)
	_, ok := msg.Headers["traceparent"]
	assert.False(t, ok)
	assert.Equal(t, uint8(3), msg.Priority)
}
