package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/cafe-order-core/internal/order/application"
	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	"github.com/dmehra2102/cafe-order-core/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const orderColumns = `id, table_number, dining_type, customer_name, fees, discount, subtotal, fees_total,
	discount_amount, discount_reason, total, status, payment_status, notes, scheduled_for, version, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, o domain.Order, events ...outbox.Event) (domain.Order, error) {
	if err := o.CheckTotals(); err != nil {
		return domain.Order{}, err
	}
	fees, discount, err := snapshots(o)
	if err != nil {
		return domain.Order{}, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o.Version = 1
	_, err = tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		o.ID, o.TableNumber, string(o.DiningType), o.CustomerName, fees, discount, o.Subtotal, o.FeesTotal,
		o.DiscountAmount, o.DiscountReason, o.Total, string(o.Status), string(o.PaymentStatus), o.Notes, o.ScheduledFor,
		o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if err := saveItems(ctx, tx, o); err != nil {
		return domain.Order{}, err
	}
	for _, ev := range events {
		if err := outbox.Insert(ctx, tx, ev); err != nil {
			return domain.Order{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	return load(ctx, r.pool, id, false)
}

func (r *Repository) Update(ctx context.Context, o domain.Order, events ...outbox.Event) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	saved, err := Save(ctx, tx, o)
	if err != nil {
		return domain.Order{}, err
	}
	for _, ev := range events {
		if err := outbox.Insert(ctx, tx, ev); err != nil {
			return domain.Order{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return saved, nil
}

func (r *Repository) List(ctx context.Context, f application.Filter) ([]domain.Order, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if f.DiningType != "" {
		where = append(where, "dining_type = "+arg(string(f.DiningType)))
	}
	if f.TableNumber > 0 {
		where = append(where, "table_number = "+arg(f.TableNumber))
	}
	if f.ScheduledBefore != nil {
		where = append(where, "scheduled_for <= "+arg(*f.ScheduledBefore))
	}
	q := `SELECT id FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at, id`
	if f.Limit > 0 {
		q += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		o, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// LoadForUpdate reads the order and locks its row until tx ends.
func LoadForUpdate(ctx context.Context, tx pgx.Tx, id string) (domain.Order, error) {
	return load(ctx, tx, id, true)
}

// Save writes o if the stored version still equals o.Version and returns it
// with the next version.
func Save(ctx context.Context, tx pgx.Tx, o domain.Order) (domain.Order, error) {
	if err := o.CheckTotals(); err != nil {
		return domain.Order{}, err
	}
	fees, discount, err := snapshots(o)
	if err != nil {
		return domain.Order{}, err
	}
	ct, err := tx.Exec(ctx, `UPDATE orders SET table_number=$3, customer_name=$4, fees=$5, discount=$6, subtotal=$7,
		fees_total=$8, discount_amount=$9, discount_reason=$10, total=$11, status=$12, payment_status=$13, notes=$14,
		updated_at=$15, version=version+1
		WHERE id=$1 AND version=$2`,
		o.ID, o.Version, o.TableNumber, o.CustomerName, fees, discount, o.Subtotal,
		o.FeesTotal, o.DiscountAmount, o.DiscountReason, o.Total, string(o.Status), string(o.PaymentStatus), o.Notes,
		o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)`, o.ID).Scan(&exists); err != nil {
			return domain.Order{}, err
		}
		if !exists {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, domain.ErrVersionConflict
	}
	if err := saveItems(ctx, tx, o); err != nil {
		return domain.Order{}, err
	}
	o.Version++
	return o, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func load(ctx context.Context, q querier, id string, lock bool) (domain.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var o domain.Order
	var dining, status, paymentStatus string
	var fees, discount []byte
	err := q.QueryRow(ctx, sql, id).Scan(&o.ID, &o.TableNumber, &dining, &o.CustomerName, &fees, &discount, &o.Subtotal,
		&o.FeesTotal, &o.DiscountAmount, &o.DiscountReason, &o.Total, &status, &paymentStatus, &o.Notes, &o.ScheduledFor,
		&o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.DiningType = domain.DiningType(dining)
	o.Status = domain.Status(status)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	if len(fees) > 0 {
		if err := json.Unmarshal(fees, &o.Fees); err != nil {
			return domain.Order{}, fmt.Errorf("order %s fees: %w", id, err)
		}
	}
	if len(discount) > 0 {
		var d domain.AppliedDiscount
		if err := json.Unmarshal(discount, &d); err != nil {
			return domain.Order{}, fmt.Errorf("order %s discount: %w", id, err)
		}
		o.Discount = &d
	}

	rows, err := q.Query(ctx, `SELECT line, product_id, name, unit_price, quantity, size, add_ons, notes, kitchen, cancelled, cancel_reason
		FROM order_items WHERE order_id=$1 ORDER BY line`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		var size string
		var addOns []byte
		if err := rows.Scan(&it.Line, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &size, &addOns, &it.Notes, &it.Kitchen, &it.Cancelled, &it.CancelReason); err != nil {
			return domain.Order{}, err
		}
		it.Size = domain.Size(size)
		if len(addOns) > 0 {
			if err := json.Unmarshal(addOns, &it.AddOns); err != nil {
				return domain.Order{}, fmt.Errorf("order %s line %d add_ons: %w", id, it.Line, err)
			}
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func saveItems(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	batch := &pgx.Batch{}
	for _, it := range o.Items {
		addOns, err := json.Marshal(it.AddOns)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO order_items (order_id, line, product_id, name, unit_price, quantity, size, add_ons, notes, kitchen, cancelled, cancel_reason)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (order_id, line) DO UPDATE SET cancelled=$11, cancel_reason=$12`,
			o.ID, it.Line, it.ProductID, it.Name, it.UnitPrice, it.Quantity, string(it.Size), addOns, it.Notes, it.Kitchen, it.Cancelled, it.CancelReason)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func snapshots(o domain.Order) ([]byte, []byte, error) {
	fees, err := json.Marshal(o.Fees)
	if err != nil {
		return nil, nil, err
	}
	if o.Discount == nil {
		return fees, nil, nil
	}
	discount, err := json.Marshal(o.Discount)
	if err != nil {
		return nil, nil, err
	}
	return fees, discount, nil
}
