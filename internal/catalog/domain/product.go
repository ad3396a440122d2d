package domain

import (
	"errors"

	"github.com/shopspring/decimal"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrUnknownAddOn       = errors.New("unknown add-on")
	ErrInvalidSize        = errors.New("invalid size")
)

// Product is the catalog entry an order line is priced from. SizePrices holds
// the surcharge over Price per size; a missing size costs nothing extra.
type Product struct {
	ID                string                               `json:"id"`
	Name              string                               `json:"name"`
	Price             decimal.Decimal                      `json:"price"`
	SizePrices        map[orderdomain.Size]decimal.Decimal `json:"size_prices,omitempty"`
	AddOns            []orderdomain.AddOn                  `json:"add_ons,omitempty"`
	StockQuantity     int                                  `json:"stock_quantity"`
	TrackStock        bool                                 `json:"track_stock"`
	LowStockThreshold int                                  `json:"low_stock_threshold"`
	KitchenItem       bool                                 `json:"kitchen_item"`
	Active            bool                                 `json:"active"`
}

// UnitPrice returns base + size delta + chosen add-ons, and the add-ons as
// priced now.
func (p Product) UnitPrice(size orderdomain.Size, addOns []string) (decimal.Decimal, []orderdomain.AddOn, error) {
	if size == "" {
		size = orderdomain.SizeM
	}
	if !size.Valid() {
		return decimal.Zero, nil, ErrInvalidSize
	}
	price := p.Price.Add(p.SizePrices[size])

	chosen := make([]orderdomain.AddOn, 0, len(addOns))
	for _, name := range addOns {
		a, ok := p.addOn(name)
		if !ok {
			return decimal.Zero, nil, ErrUnknownAddOn
		}
		chosen = append(chosen, a)
		price = price.Add(a.Price)
	}
	return orderdomain.Round(price), chosen, nil
}

func (p Product) addOn(name string) (orderdomain.AddOn, bool) {
	for _, a := range p.AddOns {
		if a.Name == name {
			return a, true
		}
	}
	return orderdomain.AddOn{}, false
}

func (p Product) LowStock() bool {
	return p.TrackStock && p.StockQuantity <= p.LowStockThreshold
}
