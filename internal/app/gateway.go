package app

import (
	"context"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// EligibilityGate is the identity/fraud boundary. A false answer blocks the
// booking before any stock is touched.
type EligibilityGate interface {
	CanBook(ctx context.Context, userID string) (bool, error)
	CanBookFree(ctx context.Context, userID string) (bool, error)
}

// Notifier hands booking events to the mailing pipeline. Calls are
// best-effort and happen after commit: failures are logged by the service
// and never surface as booking failures.
type Notifier interface {
	BookingCreated(ctx context.Context, b domain.Booking) error
	BookingCancelled(ctx context.Context, b domain.Booking) error
}

// Indexer queues offers for search reindexing.
type Indexer interface {
	EnqueueOffer(ctx context.Context, offerID string) error
}

type noopNotifier struct{}

func (noopNotifier) BookingCreated(context.Context, domain.Booking) error   { return nil }
func (noopNotifier) BookingCancelled(context.Context, domain.Booking) error { return nil }

type noopIndexer struct{}

func (noopIndexer) EnqueueOffer(context.Context, string) error { return nil }
