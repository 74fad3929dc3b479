package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// bookableStockColumns is everything the booking flow needs to decide whether
// a stock can be booked: the stock row plus its offer, venue and offerer.
const bookableStockColumns = `
	s.id, s.offer_id, s.price, s.quantity, s.reserved_quantity, s.event_at, s.booking_limit_at, s.soft_deleted,
	o.id, o.venue_id, o.name, o.is_active, o.is_duo, o.is_digital, o.can_expire, o.cap_exempt,
	v.id, v.offerer_id, v.name, v.is_validated,
	r.id, r.name, r.is_active`

const bookableStockJoins = `
FROM stocks s
JOIN offers o ON o.id = s.offer_id
JOIN venues v ON v.id = o.venue_id
JOIN offerers r ON r.id = v.offerer_id`

const bookingColumns = `
	b.id, b.user_id, b.stock_id, s.offer_id, b.token, b.quantity, b.amount,
	b.created_at, b.confirmed_at, b.status, b.used_at, b.cancelled_at, b.cancellation_reason`

func scanBookableStock(row pgx.Row) (domain.BookableStock, error) {
	var s domain.BookableStock
	err := row.Scan(
		&s.Stock.ID, &s.Stock.OfferID, &s.Price, &s.Quantity, &s.ReservedQuantity,
		&s.EventAt, &s.BookingLimitAt, &s.SoftDeleted,
		&s.Offer.ID, &s.Offer.VenueID, &s.Offer.Name, &s.Offer.IsActive,
		&s.Offer.IsDuo, &s.Offer.IsDigital, &s.Offer.CanExpire, &s.Offer.CapExempt,
		&s.Venue.ID, &s.Venue.OffererID, &s.Venue.Name, &s.Venue.IsValidated,
		&s.Offerer.ID, &s.Offerer.Name, &s.Offerer.IsActive,
	)
	return s, err
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	var status string
	var reason *string
	err := row.Scan(
		&b.ID, &b.UserID, &b.StockID, &b.OfferID, &b.Token, &b.Quantity, &b.Amount,
		&b.CreatedAt, &b.ConfirmedAt, &status, &b.UsedAt, &b.CancelledAt, &reason,
	)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	if reason != nil {
		b.CancellationReason = domain.CancellationReason(*reason)
	}
	if err := b.CheckConsistent(); err != nil {
		return domain.Booking{}, fmt.Errorf("inconsistent booking row: %w", err)
	}
	return b, nil
}

// nullableReason maps the empty reason to NULL so the status/reason check
// constraint holds.
func nullableReason(r domain.CancellationReason) *string {
	if r == "" {
		return nil
	}
	s := string(r)
	return &s
}

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *BookingRepository) GetStock(ctx context.Context, stockID string) (domain.BookableStock, error) {
	query := `SELECT` + bookableStockColumns + bookableStockJoins + `
WHERE s.id = $1`
	s, err := scanBookableStock(r.queryRow(ctx, query, stockID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.BookableStock{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.BookableStock{}, domain.ErrStockNotFound
		}
		return domain.BookableStock{}, fmt.Errorf("get stock: %w", err)
	}
	return s, nil
}

// GetStockForUpdate locks the stock row for the rest of the transaction. A
// lock_timeout expiry maps to ErrStockLocked so callers can tell contention
// apart from hard failures.
func (r *BookingRepository) GetStockForUpdate(ctx context.Context, stockID string) (domain.BookableStock, error) {
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

func (r *BookingRepository) GetBooking(ctx context.Context, bookingID string) (domain.Booking, error) {
	query := `SELECT` + bookingColumns + `
FROM bookings b
JOIN stocks s ON s.id = b.stock_id
WHERE b.id = $1`
	return r.getBooking(ctx, query, bookingID, "get booking")
}

func (r *BookingRepository) GetBookingForUpdate(ctx context.Context, bookingID string) (domain.Booking, error) {
	query := `SELECT` + bookingColumns + `
FROM bookings b
JOIN stocks s ON s.id = b.stock_id
WHERE b.id = $1
FOR UPDATE OF b`
	return r.getBooking(ctx, query, bookingID, "get booking for update")
}

func (r *BookingRepository) GetBookingByToken(ctx context.Context, tok string) (domain.Booking, error) {
	query := `SELECT` + bookingColumns + `
FROM bookings b
JOIN stocks s ON s.id = b.stock_id
WHERE b.token = $1`
	return r.getBooking(ctx, query, tok, "get booking by token")
}

func (r *BookingRepository) getBooking(ctx context.Context, query, arg, op string) (domain.Booking, error) {
	b, err := scanBooking(r.queryRow(ctx, query, arg))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Booking{}, domain.ErrInvalidID
		}
		if isLockNotAvailable(err) {
			return domain.Booking{}, domain.ErrStockLocked
		}
		if err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

func (r *BookingRepository) HasActiveBookingOnOffer(ctx context.Context, userID, offerID string) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1
	FROM bookings b
	JOIN stocks s ON s.id = b.stock_id
	WHERE b.user_id = $1 AND s.offer_id = $2 AND b.status <> 'cancelled'
)`
	var exists bool
	if err := r.queryRow(ctx, query, userID, offerID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("check duplicate booking: %w", err)
	}
	return exists, nil
}

func (r *BookingRepository) TokenExists(ctx context.Context, tok string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM bookings WHERE token = $1)`
	var exists bool
	if err := r.queryRow(ctx, query, tok).Scan(&exists); err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return exists, nil
}

func (r *BookingRepository) CreateBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
INSERT INTO bookings (id, user_id, stock_id, token, quantity, amount, created_at, confirmed_at, status, used_at, cancelled_at, cancellation_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.exec(ctx, stmt,
		b.ID, b.UserID, b.StockID, b.Token, b.Quantity, b.Amount,
		b.CreatedAt, b.ConfirmedAt, string(b.Status), b.UsedAt, b.CancelledAt,
		nullableReason(b.CancellationReason),
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isUniqueViolation(err) {
			// Token collision between mint and insert. Rolling the whole
			// booking back is fine, the client can retry.
			return fmt.Errorf("create booking: token already taken: %w", err)
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) UpdateBooking(ctx context.Context, b domain.Booking) error {
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

func (r *BookingRepository) ReserveStock(ctx context.Context, stockID string, quantity int) error {
	const stmt = `UPDATE stocks SET reserved_quantity = reserved_quantity + $2 WHERE id = $1`
	tag, err := r.exec(ctx, stmt, stockID, quantity)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStockNotFound
	}
	return nil
}

func (r *BookingRepository) ReleaseStock(ctx context.Context, stockID string, quantity int) error {
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

func (r *BookingRepository) HasPayment(ctx context.Context, bookingID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM payments WHERE booking_id = $1)`
	var exists bool
	if err := r.queryRow(ctx, query, bookingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payment: %w", err)
	}
	return exists, nil
}

func (r *BookingRepository) SpendItemsByUser(ctx context.Context, userID string) ([]domain.SpendItem, error) {
	const query = `
SELECT b.amount * b.quantity, o.is_digital, o.cap_exempt
FROM bookings b
JOIN stocks s ON s.id = b.stock_id
JOIN offers o ON o.id = s.offer_id
WHERE b.user_id = $1 AND b.status <> 'cancelled'`
	rows, err := r.query(ctx, query, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list spend items: %w", err)
	}
	defer rows.Close()

	var items []domain.SpendItem
	for rows.Next() {
		var item domain.SpendItem
		if err := rows.Scan(&item.Total, &item.Digital, &item.CapExempt); err != nil {
			return nil, fmt.Errorf("scan spend item: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		if isInvalidUUID(rows.Err()) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("iterate spend items: %w", rows.Err())
	}
	return items, nil
}

func (r *BookingRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *BookingRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *BookingRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
