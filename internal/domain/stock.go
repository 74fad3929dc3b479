package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is a priced, quantity-limited slot of an offer. ReservedQuantity is
// the committed counter mutated only under the stock row lock.
type Stock struct {
	ID               string
	OfferID          string
	Price            decimal.Decimal
	Quantity         *int // nil means unlimited
	ReservedQuantity int
	EventAt          *time.Time
	BookingLimitAt   *time.Time
	SoftDeleted      bool
}

// Remaining reports how many units can still be reserved. limited is false
// for unlimited stock, in which case remaining is meaningless.
func (s Stock) Remaining() (remaining int, limited bool) {
	if s.Quantity == nil {
		return 0, false
	}
	return *s.Quantity - s.ReservedQuantity, true
}

// BookableStock joins a stock with its offer, venue and managing offerer:
// everything the bookability check needs under the row lock.
type BookableStock struct {
	Stock
	Offer   Offer
	Venue   Venue
	Offerer Offerer
}

func (s BookableStock) IsBookable(now time.Time) bool {
	if s.SoftDeleted {
		return false
	}
	if !s.Offer.IsActive || !s.Venue.IsValidated || !s.Offerer.IsActive {
		return false
	}
	if s.BookingLimitAt != nil && s.BookingLimitAt.Before(now) {
		return false
	}
	if s.EventAt != nil && s.EventAt.Before(now) {
		return false
	}
	return true
}
