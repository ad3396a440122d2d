package postgres

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/cafe-order-core/internal/inventory/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Reserve decrements products in id order so concurrent reservations lock
// rows in the same sequence.
func (r *Repository) Reserve(ctx context.Context, orderID string, lines []domain.Line) ([]domain.Hold, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	demand := domain.Demand(lines)
	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tracked := make(map[string]bool, len(ids))
	for _, id := range ids {
		var track bool
		err := tx.QueryRow(ctx, `UPDATE products
			SET stock_quantity = CASE WHEN track_stock THEN stock_quantity - $2 ELSE stock_quantity END
			WHERE id = $1 AND (NOT track_stock OR stock_quantity >= $2)
			RETURNING track_stock`, id, demand[id]).Scan(&track)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, id).Scan(&exists); err != nil {
				return nil, err
			}
			if !exists {
				return nil, domain.Unknown(id)
			}
			return nil, domain.Shortage(id)
		}
		if err != nil {
			return nil, err
		}
		tracked[id] = track
	}

	var holds []domain.Hold
	batch := &pgx.Batch{}
	for _, l := range lines {
		if !tracked[l.ProductID] {
			continue
		}
		batch.Queue(`INSERT INTO stock_holds (order_id, line, product_id, quantity, released) VALUES ($1,$2,$3,$4,false)`,
			orderID, l.Line, l.ProductID, l.Quantity)
		holds = append(holds, domain.Hold{OrderID: orderID, Line: l.Line, ProductID: l.ProductID, Quantity: l.Quantity})
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return holds, nil
}

// Release flips unreleased holds and puts their quantity back in one
// transaction; holds already released are not matched again.
func (r *Repository) Release(ctx context.Context, orderID string, line int) ([]domain.Hold, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `UPDATE stock_holds SET released = true
		WHERE order_id=$1 AND ($2 = 0 OR line = $2) AND NOT released
		RETURNING line, product_id, quantity`, orderID, line)
	if err != nil {
		return nil, err
	}
	var released []domain.Hold
	for rows.Next() {
		h := domain.Hold{OrderID: orderID, Released: true}
		if err := rows.Scan(&h.Line, &h.ProductID, &h.Quantity); err != nil {
			rows.Close()
			return nil, err
		}
		released = append(released, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, h := range released {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity + $2 WHERE id=$1`, h.ProductID, h.Quantity); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return released, nil
}

func (r *Repository) Holds(ctx context.Context, orderID string) ([]domain.Hold, error) {
	rows, err := r.pool.Query(ctx, `SELECT order_id, line, product_id, quantity, released FROM stock_holds WHERE order_id=$1 ORDER BY line`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []domain.Hold
	for rows.Next() {
		var h domain.Hold
		if err := rows.Scan(&h.OrderID, &h.Line, &h.ProductID, &h.Quantity, &h.Released); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}
