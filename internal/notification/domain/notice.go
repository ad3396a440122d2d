package domain

import (
	"time"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
)

// Ticket is what the kitchen sees when an order starts preparing. Only
// kitchen lines are on it.
type Ticket struct {
	OrderID     string                   `json:"order_id"`
	DiningType  orderdomain.DiningType   `json:"dining_type"`
	TableNumber int                      `json:"table_number,omitempty"`
	Customer    string                   `json:"customer,omitempty"`
	Lines       []orderdomain.TicketLine `json:"lines"`
	At          time.Time                `json:"at"`
}

// Priority orders tickets on the kitchen queue; booked tables go first.
func (t Ticket) Priority() uint8 {
	switch t.DiningType {
	case orderdomain.Reservation:
		return 8
	case orderdomain.DineIn:
		return 5
	}
	return 3
}

type NoticeKind string

const (
	NoticeReceived    NoticeKind = "order_received"
	NoticeConfirmed   NoticeKind = "reservation_confirmed"
	NoticeVerifying   NoticeKind = "payment_verification"
	NoticeReady       NoticeKind = "order_ready"
	NoticePaid        NoticeKind = "order_paid"
	NoticeCancelled   NoticeKind = "order_cancelled"
	NoticeItemRemoved NoticeKind = "item_removed"
)

// Notice is a customer-facing message about an order.
type Notice struct {
	OrderID  string     `json:"order_id"`
	Kind     NoticeKind `json:"kind"`
	Customer string     `json:"customer,omitempty"`
	Message  string     `json:"message"`
}

// KitchenLines keeps the lines the kitchen prepares.
func KitchenLines(lines []orderdomain.TicketLine) []orderdomain.TicketLine {
	var out []orderdomain.TicketLine
	for _, l := range lines {
		if l.Kitchen {
			out = append(out, l)
		}
	}
	return out
}
