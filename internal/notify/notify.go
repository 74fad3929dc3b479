// Package notify publishes booking lifecycle events for downstream consumers
// (emails, analytics, fraud review).
package notify

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
)

// Event is the wire payload. The token is deliberately omitted: it is the
// redemption secret and only travels to the beneficiary.
type Event struct {
	Type       string          `json:"type"`
	BookingID  string          `json:"booking_id"`
	UserID     string          `json:"user_id"`
	StockID    string          `json:"stock_id"`
	OfferID    string          `json:"offer_id"`
	Quantity   int             `json:"quantity"`
	Total      decimal.Decimal `json:"total"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func newEvent(eventType string, b domain.Booking, at time.Time) Event {
	return Event{
		Type:       eventType,
		BookingID:  b.ID,
		UserID:     b.UserID,
		StockID:    b.StockID,
		OfferID:    b.OfferID,
		Quantity:   b.Quantity,
		Total:      b.Total(),
		Status:     string(b.Status),
		Reason:     string(b.CancellationReason),
		OccurredAt: at,
	}
}
