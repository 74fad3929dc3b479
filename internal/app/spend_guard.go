package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

type SpendReader interface {
	SpendItemsByUser(ctx context.Context, userID string) ([]domain.SpendItem, error)
}

// SpendLimitGuard rejects reservations that would push a user over a spend
// cap. The read deliberately runs without a user-level lock: two concurrent
// bookings by the same user may jointly overshoot a cap by one booking's
// amount. The caps are soft product limits; the stock row lock remains the
// safety invariant.
type SpendLimitGuard struct {
	reader SpendReader
	caps   domain.SpendCaps
}

func NewSpendLimitGuard(reader SpendReader, caps domain.SpendCaps) *SpendLimitGuard {
	return &SpendLimitGuard{reader: reader, caps: caps}
}

func (g *SpendLimitGuard) ComputeSpend(ctx context.Context, userID string) (domain.SpendSnapshot, error) {
	items, err := g.reader.SpendItemsByUser(ctx, userID)
	if err != nil {
		return domain.SpendSnapshot{}, err
	}
	return domain.BuildSpendSnapshot(g.caps, items), nil
}

// CheckCanAfford fails when candidate spending would strictly exceed a cap;
// landing exactly on a cap is allowed.
func (g *SpendLimitGuard) CheckCanAfford(snap domain.SpendSnapshot, amount decimal.Decimal, offer domain.Offer) error {
	if snap.All.WouldExceed(amount) {
		return domain.InsufficientFundsError{Cap: snap.All.Cap}
	}
	if offer.IsDigital {
		if snap.Digital.WouldExceed(amount) {
			return domain.CapReachedError{Bucket: domain.BucketDigital, Cap: snap.Digital.Cap}
		}
		return nil
	}
	if !offer.CapExempt && snap.Physical.WouldExceed(amount) {
		return domain.CapReachedError{Bucket: domain.BucketPhysical, Cap: snap.Physical.Cap}
	}
	return nil
}
