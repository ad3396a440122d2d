package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
	orderpg "github.com/dmehra2102/cafe-order-core/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/cafe-order-core/internal/payment/application"
	"github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Append locks the order row, re-reads its payments and lets fn decide on
// the new payment; the payment, the order with its bumped version and the
// events commit together.
func (r *Repository) Append(ctx context.Context, orderID string, fn application.AppendFunc) (orderdomain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orderdomain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := orderpg.LoadForUpdate(ctx, tx, orderID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	existing, err := list(ctx, tx, orderID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	p, events, err := fn(&o, existing)
	if err != nil {
		return orderdomain.Order{}, err
	}

	items, err := json.Marshal(p.Items)
	if err != nil {
		return orderdomain.Order{}, err
	}
	_, err = tx.Exec(ctx, `INSERT INTO payments (id, order_id, amount, method, notes, proof_url, items, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.OrderID, p.Amount, string(p.Method), p.Notes, p.ProofURL, items, p.CreatedAt)
	if err != nil {
		return orderdomain.Order{}, err
	}
	saved, err := orderpg.Save(ctx, tx, o)
	if err != nil {
		return orderdomain.Order{}, err
	}
	for _, ev := range events {
		if err := outbox.Insert(ctx, tx, ev); err != nil {
			return orderdomain.Order{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return orderdomain.Order{}, err
	}
	return saved, nil
}

func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	return list(ctx, r.pool, orderID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func list(ctx context.Context, q querier, orderID string) ([]domain.Payment, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, amount, method, notes, proof_url, items, created_at
		FROM payments WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var method string
		var items []byte
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &method, &p.Notes, &p.ProofURL, &items, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Method = domain.Method(method)
		if err := json.Unmarshal(items, &p.Items); err != nil {
			return nil, fmt.Errorf("payment %s items: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
