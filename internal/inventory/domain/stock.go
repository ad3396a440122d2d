package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownProduct    = errors.New("unknown product")
)

// Line is one order line's demand on stock.
type Line struct {
	Line      int
	ProductID string
	Quantity  int
}

// Hold records stock taken for one order line. Releasing flips Released once,
// so a second release is a no-op.
type Hold struct {
	OrderID   string `json:"order_id"`
	Line      int    `json:"line"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Released  bool   `json:"released"`
}

// ShortageError names the product that could not be covered.
type ShortageError struct {
	ProductID string
	Err       error
}

func (e *ShortageError) Error() string { return fmt.Sprintf("%v: %s", e.Err, e.ProductID) }
func (e *ShortageError) Unwrap() error { return e.Err }

func Shortage(productID string) error {
	return &ShortageError{ProductID: productID, Err: ErrInsufficientStock}
}

func Unknown(productID string) error {
	return &ShortageError{ProductID: productID, Err: ErrUnknownProduct}
}

// Demand sums quantities per product across lines.
func Demand(lines []Line) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.ProductID] += l.Quantity
	}
	return out
}
