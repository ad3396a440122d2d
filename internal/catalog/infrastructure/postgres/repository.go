package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/cafe-order-core/internal/catalog/domain"
	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const productColumns = `id, name, price, size_prices, add_ons, stock_quantity, track_stock, low_stock_threshold, kitchen_item, active`

func (r *Repository) Products(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()
	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		var sizePrices, addOns []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &sizePrices, &addOns, &p.StockQuantity, &p.TrackStock, &p.LowStockThreshold, &p.KitchenItem, &p.Active); err != nil {
			return nil, err
		}
		p.SizePrices = map[orderdomain.Size]decimal.Decimal{}
		if len(sizePrices) > 0 {
			if err := json.Unmarshal(sizePrices, &p.SizePrices); err != nil {
				return nil, fmt.Errorf("product %s size_prices: %w", p.ID, err)
			}
		}
		if len(addOns) > 0 {
			if err := json.Unmarshal(addOns, &p.AddOns); err != nil {
				return nil, fmt.Errorf("product %s add_ons: %w", p.ID, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
