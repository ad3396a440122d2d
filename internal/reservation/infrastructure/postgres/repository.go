package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
)

// exclusion_violation, raised by reservations_no_overlap.
const exclusionViolation = "23P01"

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Tables(ctx context.Context) ([]domain.Table, error) {
	rows, err := r.pool.Query(ctx, `SELECT number, zone, capacity, active FROM cafe_tables ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Table
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.Number, &t.Zone, &t.Capacity, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const reservationColumns = `id, order_id, table_number, starts_at, ends_at, party_size, table_preference,
	customer_name, customer_phone, customer_email, status, created_at`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	var status string
	err := row.Scan(&res.ID, &res.OrderID, &res.TableNumber, &res.Start, &res.End, &res.PartySize, &res.TablePreference,
		&res.Customer.Name, &res.Customer.Phone, &res.Customer.Email, &status, &res.CreatedAt)
	res.Status = domain.Status(status)
	return res, err
}

func (r *Repository) Overlapping(ctx context.Context, start, end time.Time) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'confirmed' AND starts_at < $2 AND $1 < ends_at`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Insert serialises bookings per table with a transaction-scoped advisory
// lock, then inserts only if no confirmed reservation overlaps. The exclusion
// constraint on the table backs the same rule.
func (r *Repository) Insert(ctx context.Context, res domain.Reservation) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('cafe_table'), $1::int)`, res.TableNumber); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `INSERT INTO reservations (`+reservationColumns+`)
		SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
		WHERE NOT EXISTS (
			SELECT 1 FROM reservations
			WHERE table_number = $3 AND status = 'confirmed' AND starts_at < $5 AND $4 < ends_at
		)`,
		res.ID, res.OrderID, res.TableNumber, res.Start, res.End, res.PartySize, res.TablePreference,
		res.Customer.Name, res.Customer.Phone, res.Customer.Email, string(res.Status), res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return domain.ErrTableNoLongerAvailable
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrTableNoLongerAvailable
	}
	return tx.Commit(ctx)
}

func (r *Repository) ByOrder(ctx context.Context, orderID string) (domain.Reservation, error) {
	res, err := scanReservation(r.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE order_id=$1 ORDER BY created_at DESC LIMIT 1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return res, err
}

func (r *Repository) SetStatus(ctx context.Context, orderID string, status domain.Status) (bool, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE reservations SET status=$2 WHERE order_id=$1 AND status='confirmed'`, orderID, string(status))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
