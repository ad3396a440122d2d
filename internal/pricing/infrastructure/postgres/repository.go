package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	orderdomain "github.com/dmehra2102/cafe-order-core/internal/order/domain"
	"github.com/dmehra2102/cafe-order-core/internal/pricing/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) ActiveFees(ctx context.Context) ([]domain.Fee, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, amount, type, applies_to, active FROM fees WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fees []domain.Fee
	for rows.Next() {
		var f domain.Fee
		var kind, appliesTo string
		if err := rows.Scan(&f.ID, &f.Name, &f.Amount, &kind, &appliesTo, &f.Active); err != nil {
			return nil, err
		}
		f.Type = orderdomain.FeeKind(kind)
		f.AppliesTo = domain.AppliesTo(appliesTo)
		fees = append(fees, f)
	}
	return fees, rows.Err()
}

func (r *Repository) Get(ctx context.Context, code string) (domain.DiscountCode, error) {
	var c domain.DiscountCode
	var kind string
	var appliesTo []string
	err := r.pool.QueryRow(ctx, `SELECT code, type, value, min_order_amount, usage_limit, usage_count, expires_at, applies_to, active
		FROM discount_codes WHERE code=$1`, code).
		Scan(&c.Code, &kind, &c.Value, &c.MinOrderAmount, &c.UsageLimit, &c.UsageCount, &c.ExpiresAt, &appliesTo, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DiscountCode{}, domain.ErrCodeNotFound
	}
	if err != nil {
		return domain.DiscountCode{}, err
	}
	c.Type = orderdomain.FeeKind(kind)
	for _, d := range appliesTo {
		c.AppliesTo = append(c.AppliesTo, orderdomain.DiningType(d))
	}
	return c, nil
}

// Redeem is a single conditional increment; a zero row count means the code
// is exhausted, inactive or unknown.
func (r *Repository) Redeem(ctx context.Context, code string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE discount_codes SET usage_count = usage_count + 1
		WHERE code=$1 AND active AND (usage_limit = 0 OR usage_count < usage_limit)`, code)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	c, err := r.Get(ctx, code)
	if err != nil {
		return err
	}
	if !c.Active {
		return domain.ErrCodeNotFound
	}
	return domain.ErrExhausted
}

func (r *Repository) Unredeem(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, `UPDATE discount_codes SET usage_count = usage_count - 1 WHERE code=$1 AND usage_count > 0`, code)
	return err
}
