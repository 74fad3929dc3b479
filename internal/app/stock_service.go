package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pass-culture/pass-culture-api-sub002/internal/clock"
	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// StockRepository is the persistence surface of offerer-side stock
// administration: withdrawal and reserved-counter reconciliation.
type StockRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetStockForUpdate(ctx context.Context, stockID string) (domain.BookableStock, error)
	SoftDeleteStock(ctx context.Context, stockID string) error
	ListOpenBookingsForUpdate(ctx context.Context, stockID string) ([]domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) error
	ReleaseStock(ctx context.Context, stockID string, quantity int) error
	RecomputeReservedQuantity(ctx context.Context, stockID string) error
}

type StockService struct {
	repo     StockRepository
	clock    clock.Clock
	notifier Notifier
	indexer  Indexer
	logger   *slog.Logger
	policy   Policy
}

func NewStockService(repo StockRepository, clk clock.Clock, opts ...StockServiceOption) *StockService {
	svc := &StockService{
		repo:     repo,
		clock:    clk,
		notifier: noopNotifier{},
		indexer:  noopIndexer{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type StockServiceOption func(*StockService)

func WithStockNotifier(n Notifier) StockServiceOption {
	return func(s *StockService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithStockIndexer(i Indexer) StockServiceOption {
	return func(s *StockService) {
		if i != nil {
			s.indexer = i
		}
	}
}

func WithStockLogger(l *slog.Logger) StockServiceOption {
	return func(s *StockService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithStockPolicy(p Policy) StockServiceOption {
	return func(s *StockService) {
		s.policy = p
	}
}

// WithdrawStock soft-deletes a stock and cancels every open booking on it,
// releasing the reserved quantity in the same unit of work. Used and
// already-cancelled bookings are left untouched. The cancelled bookings are
// returned for downstream notification.
func (s *StockService) WithdrawStock(ctx context.Context, stockID string, reason domain.CancellationReason) ([]domain.Booking, error) {
	switch reason {
	case domain.ReasonOfferer, domain.ReasonExpired, domain.ReasonFraud:
	default:
		return nil, fmt.Errorf("reason %q cannot withdraw a stock", reason)
	}

	now := s.clock.Now()
	var cancelled []domain.Booking
	var offerID string
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		stock, err := s.repo.GetStockForUpdate(txCtx, stockID)
		if err != nil {
			return err
		}
		offerID = stock.Offer.ID

		if err := s.repo.SoftDeleteStock(txCtx, stockID); err != nil {
			return err
		}

		open, err := s.repo.ListOpenBookingsForUpdate(txCtx, stockID)
		if err != nil {
			return err
		}

		released := 0
		for _, b := range open {
			if err := b.Cancel(now, reason); err != nil {
				continue
			}
			if err := s.repo.UpdateBooking(txCtx, b); err != nil {
				return err
			}
			released += b.Quantity
			cancelled = append(cancelled, b)
		}
		if released > 0 {
			if err := s.repo.ReleaseStock(txCtx, stockID, released); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, b := range cancelled {
		if err := s.notifier.BookingCancelled(ctx, b); err != nil {
			s.logger.ErrorContext(ctx, "withdrawal notification failed",
				"booking_id", b.ID, "stock_id", stockID, "error", err)
		}
	}
	if s.policy.ReindexOnBooking && offerID != "" {
		if err := s.indexer.EnqueueOffer(ctx, offerID); err != nil {
			s.logger.ErrorContext(ctx, "offer reindex enqueue failed",
				"offer_id", offerID, "error", err)
		}
	}
	return cancelled, nil
}

// RecomputeReserved repairs reserved-counter drift from the authoritative sum
// of non-cancelled booking quantities. Each stock gets its own transaction so
// a large fan-out never holds many row locks at once.
func (s *StockService) RecomputeReserved(ctx context.Context, stockIDs []string) error {
	for _, id := range stockIDs {
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := s.repo.GetStockForUpdate(txCtx, id); err != nil {
				return err
			}
			return s.repo.RecomputeReservedQuantity(txCtx, id)
		})
		if err != nil {
			return fmt.Errorf("recompute stock %s: %w", id, err)
		}
	}
	return nil
}
