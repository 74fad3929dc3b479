package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// Log is the notifier used when no broker is configured: events land in the
// structured log instead of disappearing.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) BookingCreated(ctx context.Context, b domain.Booking) error {
	l.log(ctx, newEvent(TypeBookingCreated, b, time.Now().UTC()))
	return nil
}

func (l *Log) BookingCancelled(ctx context.Context, b domain.Booking) error {
	l.log(ctx, newEvent(TypeBookingCancelled, b, time.Now().UTC()))
	return nil
}

func (l *Log) log(ctx context.Context, ev Event) {
	l.logger.InfoContext(ctx, "booking event",
		"type", ev.Type,
		"booking_id", ev.BookingID,
		"user_id", ev.UserID,
		"offer_id", ev.OfferID,
		"quantity", ev.Quantity,
		"total", ev.Total.String(),
		"status", ev.Status,
		"reason", ev.Reason,
	)
}
