package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
	"github.com/pass-culture/pass-culture-api-sub002/internal/testutil"
)

func TestStockRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewStockRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("SoftDeleteStock flips the flag", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		offerID := testutil.InsertOffer(t, ctx, pool, domain.Offer{})
		stockID := testutil.InsertStock(t, ctx, pool, offerID, domain.Stock{Price: decimal.RequireFromString("10.00")})

		if err := repo.SoftDeleteStock(ctx, stockID); err != nil {
			t.Fatalf("soft delete: %v", err)
		}
		var deleted bool
		if err := pool.QueryRow(ctx, `SELECT soft_deleted FROM stocks WHERE id = $1`, stockID).Scan(&deleted); err != nil {
			t.Fatalf("query stock: %v", err)
		}
		if !deleted {
			t.Fatalf("expected soft-deleted stock")
		}

		missingID := "00000000-0000-0000-0000-000000000001"
		if err := repo.SoftDeleteStock(ctx, missingID); err != domain.ErrStockNotFound {
			t.Fatalf("expected ErrStockNotFound, got %v", err)
		}
	})

	t.Run("ListOpenBookingsForUpdate returns active only", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		userID := testutil.InsertUser(t, ctx, pool, "jeanne@example.com", true)
		offerID := testutil.InsertOffer(t, ctx, pool, domain.Offer{})
		stockID := testutil.InsertStock(t, ctx, pool, offerID, domain.Stock{Price: decimal.RequireFromString("10.00")})

		now := time.Now().UTC()
		usedAt := now
		cancelledAt := now
		testutil.InsertBooking(t, ctx, pool, domain.Booking{
			UserID: userID, StockID: stockID, Token: "TOK001", Quantity: 1,
			Amount: decimal.RequireFromString("10.00"), CreatedAt: now, Status: domain.StatusActive,
		})
		testutil.InsertBooking(t, ctx, pool, domain.Booking{
			UserID: userID, StockID: stockID, Token: "TOK002", Quantity: 1,
			Amount: decimal.RequireFromString("10.00"), CreatedAt: now,
			Status: domain.StatusUsed, UsedAt: &usedAt,
		})
		testutil.InsertBooking(t, ctx, pool, domain.Booking{
			UserID: userID, StockID: stockID, Token: "TOK003", Quantity: 1,
			Amount: decimal.RequireFromString("10.00"), CreatedAt: now,
			Status: domain.StatusCancelled, CancelledAt: &cancelledAt,
			CancellationReason: domain.ReasonBeneficiary,
		})

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			open, err := repo.ListOpenBookingsForUpdate(txCtx, stockID)
			if err != nil {
				return err
			}
			if len(open) != 1 || open[0].Token != "TOK001" {
				t.Fatalf("unexpected open bookings: %+v", open)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}
	})

	t.Run("RecomputeReservedQuantity repairs drift", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		userID := testutil.InsertUser(t, ctx, pool, "jeanne@example.com", true)
		offerID := testutil.InsertOffer(t, ctx, pool, domain.Offer{})
		qty := 10
		stockID := testutil.InsertStock(t, ctx, pool, offerID, domain.Stock{
			Price:            decimal.RequireFromString("10.00"),
			Quantity:         &qty,
			ReservedQuantity: 7, // drifted
		})

		now := time.Now().UTC()
		cancelledAt := now
		testutil.InsertBooking(t, ctx, pool, domain.Booking{
			UserID: userID, StockID: stockID, Token: "TOK001", Quantity: 2,
			Amount: decimal.RequireFromString("10.00"), CreatedAt: now, Status: domain.StatusActive,
		})
		testutil.InsertBooking(t, ctx, pool, domain.Booking{
			UserID: userID, StockID: stockID, Token: "TOK002", Quantity: 1,
			Amount: decimal.RequireFromString("10.00"), CreatedAt: now,
			Status: domain.StatusCancelled, CancelledAt: &cancelledAt,
			CancellationReason: domain.ReasonBeneficiary,
		})

		if err := repo.RecomputeReservedQuantity(ctx, stockID); err != nil {
			t.Fatalf("recompute: %v", err)
		}
		var reserved int
		if err := pool.QueryRow(ctx, `SELECT reserved_quantity FROM stocks WHERE id = $1`, stockID).Scan(&reserved); err != nil {
			t.Fatalf("query reserved: %v", err)
		}
		if reserved != 2 {
			t.Fatalf("expected reserved 2, got %d", reserved)
		}
	})
}
