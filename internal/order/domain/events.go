package domain

import "time"

const (
	EventOrderSubmitted     = "OrderSubmitted"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderItemCancelled = "OrderItemCancelled"
	EventOrderRepriced      = "OrderRepriced"
	EventPaymentRecorded    = "PaymentRecorded"
)

// TicketLine is the kitchen-facing projection of an order line.
type TicketLine struct {
	Line      int    `json:"line"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Size      Size   `json:"size"`
	Notes     string `json:"notes,omitempty"`
	Kitchen   bool   `json:"kitchen"`
}

type OrderSubmitted struct {
	OrderID     string       `json:"order_id"`
	DiningType  DiningType   `json:"dining_type"`
	TableNumber int          `json:"table_number"`
	Status      Status       `json:"status"`
	Total       string       `json:"total"`
	Lines       []TicketLine `json:"lines"`
}

type OrderStatusChanged struct {
	OrderID     string       `json:"order_id"`
	From        Status       `json:"from"`
	To          Status       `json:"to"`
	DiningType  DiningType   `json:"dining_type"`
	TableNumber int          `json:"table_number"`
	Customer    string       `json:"customer,omitempty"`
	Lines       []TicketLine `json:"lines,omitempty"`
	At          time.Time    `json:"at"`
}

type OrderItemCancelled struct {
	OrderID string `json:"order_id"`
	Line    int    `json:"line"`
	Reason  string `json:"reason"`
	Total   string `json:"total"`
}

type OrderRepriced struct {
	OrderID        string `json:"order_id"`
	DiscountAmount string `json:"discount_amount"`
	DiscountReason string `json:"discount_reason,omitempty"`
	Total          string `json:"total"`
}

type PaymentRecorded struct {
	OrderID   string      `json:"order_id"`
	PaymentID string      `json:"payment_id"`
	Amount    string      `json:"amount"`
	Method    string      `json:"method"`
	Items     map[int]int `json:"items"`
	Settled   bool        `json:"settled"`
}

// TicketLines projects the active lines of o.
func (o Order) TicketLines() []TicketLine {
	out := make([]TicketLine, 0, len(o.Items))
	for _, it := range o.ActiveItems() {
		out = append(out, TicketLine{
			Line:      it.Line,
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Notes:     it.Notes,
			Kitchen:   it.Kitchen,
		})
	}
	return out
}
