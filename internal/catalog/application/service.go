package application

import (
	"context"

	"github.com/dmehra2102/cafe-order-core/internal/catalog/domain"
	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
)

type Repository interface {
	Products(ctx context.Context, ids []string) (map[string]domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

// Selection is what a customer picks for one line.
type Selection struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Size      orderdomain.Size `json:"size"`
	AddOns    []string         `json:"selected_add_ons"`
	Notes     string           `json:"notes"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Price turns selections into order lines with name, price and kitchen flag
// snapshotted from the catalog.
func (s *Service) Price(ctx context.Context, selections []Selection) ([]orderdomain.OrderItem, error) {
	ids := make([]string, 0, len(selections))
	for _, sel := range selections {
		ids = append(ids, sel.ProductID)
	}
	products, err := s.repo.Products(ctx, ids)
	if err != nil {
		return nil, apperr.Collaborator(err, "catalog")
	}

	items := make([]orderdomain.OrderItem, 0, len(selections))
	for _, sel := range selections {
		p, ok := products[sel.ProductID]
		if !ok {
			return nil, apperr.NotFound(domain.ErrProductNotFound, sel.ProductID)
		}
		if !p.Active {
			return nil, apperr.Validation(domain.ErrProductUnavailable, sel.ProductID)
		}
		size := sel.Size
		if size == "" {
			size = orderdomain.SizeM
		}
		unit, addOns, err := p.UnitPrice(size, sel.AddOns)
		if err != nil {
			return nil, apperr.Validation(err, sel.ProductID)
		}
		items = append(items, orderdomain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: unit,
			Quantity:  sel.Quantity,
			Size:      size,
			AddOns:    addOns,
			Notes:     sel.Notes,
			Kitchen:   p.KitchenItem,
		})
	}
	return items, nil
}

func (s *Service) Menu(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Collaborator(err, "catalog")
	}
	out := products[:0]
	for _, p := range products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

// LowStock lists tracked products at or under their threshold.
func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Collaborator(err, "catalog")
	}
	var out []domain.Product
	for _, p := range products {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}
