package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// StockRepository backs offerer-side stock administration.
type StockRepository struct {
	pool *pgxpool.Pool
}

func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

func (r *StockRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *StockRepository) GetStockForUpdate(ctx context.Context, stockID string) (domain.BookableStock, error) {
	query := `SELECT` + bookableStockColumns + bookableStockJoins + `
WHERE s.id = $1
FOR UPDATE OF s`
	s, err := scanBookableStock(r.queryRow(ctx, query, stockID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.BookableStock{}, domain.ErrInvalidID
		}
		if isLockNotAvailable(err) {
			return domain.BookableStock{}, domain.ErrStockLocked
		}
		if err == pgx.ErrNoRows {
			return domain.BookableStock{}, domain.ErrStockNotFound
		}
		return domain.BookableStock{}, fmt.Errorf("get stock for update: %w", err)
	}
	return s, nil
}

func (r *StockRepository) SoftDeleteStock(ctx context.Context, stockID string) error {
	const stmt = `UPDATE stocks SET soft_deleted = TRUE WHERE id = $1`
	tag, err := r.exec(ctx, stmt, stockID)
	if err != nil {
		return fmt.Errorf("soft delete stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStockNotFound
	}
	return nil
}

// ListOpenBookingsForUpdate locks every active booking of the stock. The
// caller must already hold the stock row lock, so the lock order matches the
// booking flow.
func (r *StockRepository) ListOpenBookingsForUpdate(ctx context.Context, stockID string) ([]domain.Booking, error) {
	query := `SELECT` + bookingColumns + `
FROM bookings b
JOIN stocks s ON s.id = b.stock_id
WHERE b.stock_id = $1 AND b.status = 'active'
ORDER BY b.created_at ASC
FOR UPDATE OF b`
	rows, err := r.query(ctx, query, stockID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list open bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan open booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		if isLockNotAvailable(rows.Err()) {
			return nil, domain.ErrStockLocked
		}
		return nil, fmt.Errorf("iterate open bookings: %w", rows.Err())
	}
	return bookings, nil
}

func (r *StockRepository) UpdateBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
UPDATE bookings
SET status = $2, used_at = $3, cancelled_at = $4, cancellation_reason = $5
WHERE id = $1`
	tag, err := r.exec(ctx, stmt,
		b.ID, string(b.Status), b.UsedAt, b.CancelledAt, nullableReason(b.CancellationReason),
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *StockRepository) ReleaseStock(ctx context.Context, stockID string, quantity int) error {
	const stmt = `UPDATE stocks SET reserved_quantity = reserved_quantity - $2 WHERE id = $1`
	tag, err := r.exec(ctx, stmt, stockID, quantity)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStockNotFound
	}
	return nil
}

// RecomputeReservedQuantity resets the counter from the authoritative sum of
// non-cancelled booking quantities.
func (r *StockRepository) RecomputeReservedQuantity(ctx context.Context, stockID string) error {
	const stmt = `
UPDATE stocks
SET reserved_quantity = (
	SELECT COALESCE(SUM(quantity), 0)
	FROM bookings
	WHERE stock_id = $1 AND status <> 'cancelled'
)
WHERE id = $1`
	tag, err := r.exec(ctx, stmt, stockID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("recompute reserved quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStockNotFound
	}
	return nil
}

func (r *StockRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *StockRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *StockRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
