package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// UserRepository answers the eligibility questions of the booking flow.
// An unknown user is simply not eligible.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) CanBook(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT is_beneficiary FROM users WHERE id = $1`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&ok); err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check beneficiary: %w", err)
	}
	return ok, nil
}

func (r *UserRepository) CanBookFree(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT can_book_free_offers FROM users WHERE id = $1`
	var ok bool
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&ok); err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check free-offer eligibility: %w", err)
	}
	return ok, nil
}
