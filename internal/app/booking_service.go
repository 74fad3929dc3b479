package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pass-culture/pass-culture-api-sub002/internal/clock"
	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
	"github.com/pass-culture/pass-culture-api-sub002/internal/token"
)

// BookingRepository is the persistence surface of the reservation flow.
// GetStockForUpdate is the serialization point: it blocks other bookers of
// the same stock until the enclosing WithTx commits or rolls back.
type BookingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetStock(ctx context.Context, stockID string) (domain.BookableStock, error)
	GetStockForUpdate(ctx context.Context, stockID string) (domain.BookableStock, error)
	GetBooking(ctx context.Context, bookingID string) (domain.Booking, error)
	GetBookingForUpdate(ctx context.Context, bookingID string) (domain.Booking, error)
	GetBookingByToken(ctx context.Context, tok string) (domain.Booking, error)
	HasActiveBookingOnOffer(ctx context.Context, userID, offerID string) (bool, error)
	TokenExists(ctx context.Context, tok string) (bool, error)
	CreateBooking(ctx context.Context, b domain.Booking) error
	UpdateBooking(ctx context.Context, b domain.Booking) error
	ReserveStock(ctx context.Context, stockID string, quantity int) error
	ReleaseStock(ctx context.Context, stockID string, quantity int) error
	HasPayment(ctx context.Context, bookingID string) (bool, error)
}

// Policy fixes the runtime-toggled behaviors at construction time.
type Policy struct {
	// AutoUseDigital marks digital bookings used at creation.
	AutoUseDigital bool
	// ReindexOnBooking enqueues the offer for search reindexing whenever a
	// booking is created or cancelled.
	ReindexOnBooking bool
}

const (
	defaultConfirmationLead  = 48 * time.Hour
	defaultConfirmationGrace = 72 * time.Hour

	// Collisions on 6-character tokens are rare; a bounded retry keeps a
	// broken TokenExists from spinning forever.
	tokenMintAttempts = 10
)

type BookingService struct {
	repo     BookingRepository
	guard    *SpendLimitGuard
	gate     EligibilityGate
	clock    clock.Clock
	notifier Notifier
	indexer  Indexer
	logger   *slog.Logger
	window   domain.ConfirmationWindow
	policy   Policy
}

func NewBookingService(repo BookingRepository, guard *SpendLimitGuard, gate EligibilityGate, clk clock.Clock, opts ...BookingServiceOption) *BookingService {
	svc := &BookingService{
		repo:     repo,
		guard:    guard,
		gate:     gate,
		clock:    clk,
		notifier: noopNotifier{},
		indexer:  noopIndexer{},
		logger:   slog.Default(),
		window: domain.ConfirmationWindow{
			Lead:  defaultConfirmationLead,
			Grace: defaultConfirmationGrace,
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type BookingServiceOption func(*BookingService)

func WithNotifier(n Notifier) BookingServiceOption {
	return func(s *BookingService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithIndexer(i Indexer) BookingServiceOption {
	return func(s *BookingService) {
		if i != nil {
			s.indexer = i
		}
	}
}

func WithLogger(l *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithPolicy(p Policy) BookingServiceOption {
	return func(s *BookingService) {
		s.policy = p
	}
}

// WithConfirmationWindow overrides the default 48h lead / 72h grace rule.
func WithConfirmationWindow(w domain.ConfirmationWindow) BookingServiceOption {
	return func(s *BookingService) {
		if w.Lead > 0 && w.Grace > 0 {
			s.window = w
		}
	}
}

type BookInput struct {
	UserID   string
	StockID  string
	Quantity int
}

// Book reserves quantity units of a stock for a user. All checks that decide
// the outcome run inside one unit of work under the stock row lock; a failure
// at any step rolls everything back.
func (s *BookingService) Book(ctx context.Context, in BookInput) (domain.Booking, error) {
	if in.UserID == "" || in.StockID == "" {
		return domain.Booking{}, domain.ErrInvalidID
	}
	now := s.clock.Now()

	// Cheap unlocked probe for the gate checks; the authoritative read
	// happens again under the lock.
	probe, err := s.repo.GetStock(ctx, in.StockID)
	if err != nil {
		return domain.Booking{}, err
	}

	if probe.Price.IsZero() {
		ok, err := s.gate.CanBookFree(ctx, in.UserID)
		if err != nil {
			return domain.Booking{}, fmt.Errorf("eligibility check: %w", err)
		}
		if !ok {
			return domain.Booking{}, domain.ErrNotEligibleFreeOffer
		}
	} else {
		ok, err := s.gate.CanBook(ctx, in.UserID)
		if err != nil {
			return domain.Booking{}, fmt.Errorf("eligibility check: %w", err)
		}
		if !ok {
			return domain.Booking{}, domain.ErrNotEligible
		}
	}

	duplicate, err := s.repo.HasActiveBookingOnOffer(ctx, in.UserID, probe.Offer.ID)
	if err != nil {
		return domain.Booking{}, err
	}
	if duplicate {
		return domain.Booking{}, domain.ErrAlreadyBooked
	}

	var booking domain.Booking
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		stock, err := s.repo.GetStockForUpdate(txCtx, in.StockID)
		if err != nil {
			return err
		}
		if !stock.IsBookable(now) {
			return domain.ErrStockNotBookable
		}

		b, err := domain.NewBooking(in.UserID, stock, in.Quantity, now, s.window)
		if err != nil {
			return err
		}

		if remaining, limited := stock.Remaining(); limited && in.Quantity > remaining {
			return domain.ErrInsufficientStock
		}

		snapshot, err := s.guard.ComputeSpend(txCtx, in.UserID)
		if err != nil {
			return err
		}
		if err := s.guard.CheckCanAfford(snapshot, b.Total(), stock.Offer); err != nil {
			return err
		}

		b.ID = newID()
		b.Token, err = s.mintToken(txCtx)
		if err != nil {
			return err
		}

		if s.policy.AutoUseDigital && stock.Offer.IsDigital {
			if err := b.MarkUsed(now); err != nil {
				return err
			}
		}

		if err := s.repo.CreateBooking(txCtx, b); err != nil {
			return err
		}
		if err := s.repo.ReserveStock(txCtx, stock.ID, in.Quantity); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.afterCreated(ctx, booking)
	return booking, nil
}

// CancelByBeneficiary cancels the user's own booking while the
// self-cancellation window is still open, and releases the reserved stock.
func (s *BookingService) CancelByBeneficiary(ctx context.Context, userID, bookingID string) (domain.Booking, error) {
	now := s.clock.Now()
	var booking domain.Booking
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		probe, err := s.repo.GetBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		// Not-found rather than forbidden: do not reveal other users' bookings.
		if probe.UserID != userID {
			return domain.ErrBookingNotFound
		}
		if _, err := s.repo.GetStockForUpdate(txCtx, probe.StockID); err != nil {
			return err
		}
		b, err := s.repo.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if err := b.CancelByBeneficiary(now); err != nil {
			return err
		}
		if err := s.repo.UpdateBooking(txCtx, b); err != nil {
			return err
		}
		if err := s.repo.ReleaseStock(txCtx, b.StockID, b.Quantity); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.afterCancelled(ctx, booking)
	return booking, nil
}

// CancelByOfferer cancels any non-used booking on behalf of the offerer.
// Cancelling an already-cancelled booking is a no-op so retries are safe and
// stock is never released twice.
func (s *BookingService) CancelByOfferer(ctx context.Context, bookingID string) (domain.Booking, error) {
	return s.cancelManaged(ctx, bookingID, domain.ReasonOfferer, true)
}

// CancelForFraud cancels a booking flagged by the fraud pipeline.
func (s *BookingService) CancelForFraud(ctx context.Context, bookingID string) (domain.Booking, error) {
	return s.cancelManaged(ctx, bookingID, domain.ReasonFraud, false)
}

func (s *BookingService) cancelManaged(ctx context.Context, bookingID string, reason domain.CancellationReason, tolerateCancelled bool) (domain.Booking, error) {
	now := s.clock.Now()
	var booking domain.Booking
	var alreadyCancelled bool
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		probe, err := s.repo.GetBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if _, err := s.repo.GetStockForUpdate(txCtx, probe.StockID); err != nil {
			return err
		}
		b, err := s.repo.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == domain.StatusCancelled && tolerateCancelled {
			booking, alreadyCancelled = b, true
			return nil
		}
		if err := b.Cancel(now, reason); err != nil {
			return err
		}
		if err := s.repo.UpdateBooking(txCtx, b); err != nil {
			return err
		}
		if err := s.repo.ReleaseStock(txCtx, b.StockID, b.Quantity); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}

	if !alreadyCancelled {
		s.afterCancelled(ctx, booking)
	}
	return booking, nil
}

// MarkUsedByToken validates a redemption token presented at the venue. When
// the booking was cancelled and allowUncancel is set, the cancellation is
// reversed first, which requires the stock lock and a capacity re-check;
// otherwise a lighter transaction on the booking row alone suffices.
func (s *BookingService) MarkUsedByToken(ctx context.Context, tok string, allowUncancel bool) (domain.Booking, error) {
	now := s.clock.Now()
	probe, err := s.repo.GetBookingByToken(ctx, tok)
	if err != nil {
		return domain.Booking{}, err
	}

	var booking domain.Booking
	if probe.Status == domain.StatusCancelled && allowUncancel {
		err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
			stock, err := s.repo.GetStockForUpdate(txCtx, probe.StockID)
			if err != nil {
				return err
			}
			b, err := s.repo.GetBookingForUpdate(txCtx, probe.ID)
			if err != nil {
				return err
			}
			if b.Status == domain.StatusCancelled {
				if remaining, limited := stock.Remaining(); limited && b.Quantity > remaining {
					return domain.ErrInsufficientStock
				}
				if err := s.repo.ReserveStock(txCtx, b.StockID, b.Quantity); err != nil {
					return err
				}
				b.Uncancel()
			}
			if err := b.MarkUsed(now); err != nil {
				return err
			}
			if err := s.repo.UpdateBooking(txCtx, b); err != nil {
				return err
			}
			booking = b
			return nil
		})
	} else {
		err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
			b, err := s.repo.GetBookingForUpdate(txCtx, probe.ID)
			if err != nil {
				return err
			}
			if err := b.MarkUsed(now); err != nil {
				return err
			}
			if err := s.repo.UpdateBooking(txCtx, b); err != nil {
				return err
			}
			booking = b
			return nil
		})
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

// MarkUnusedByToken reverts a mistaken validation. Rejected once a payment
// references the booking: money has moved, the usage is final.
func (s *BookingService) MarkUnusedByToken(ctx context.Context, tok string) (domain.Booking, error) {
	probe, err := s.repo.GetBookingByToken(ctx, tok)
	if err != nil {
		return domain.Booking{}, err
	}

	var booking domain.Booking
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		b, err := s.repo.GetBookingForUpdate(txCtx, probe.ID)
		if err != nil {
			return err
		}
		if b.Status == domain.StatusUsed {
			paid, err := s.repo.HasPayment(txCtx, b.ID)
			if err != nil {
				return err
			}
			if paid {
				return domain.ErrPaymentInProgress
			}
		}
		if err := b.MarkUnused(); err != nil {
			return err
		}
		if err := s.repo.UpdateBooking(txCtx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

func (s *BookingService) mintToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt < tokenMintAttempts; attempt++ {
		tok, err := token.New()
		if err != nil {
			return "", err
		}
		exists, err := s.repo.TokenExists(ctx, tok)
		if err != nil {
			return "", err
		}
		if !exists {
			return tok, nil
		}
	}
	return "", fmt.Errorf("no unique token after %d attempts", tokenMintAttempts)
}

func (s *BookingService) afterCreated(ctx context.Context, b domain.Booking) {
	if err := s.notifier.BookingCreated(ctx, b); err != nil {
		s.logger.ErrorContext(ctx, "booking created notification failed",
			"booking_id", b.ID, "error", err)
	}
	s.enqueueReindex(ctx, b.OfferID)
}

func (s *BookingService) afterCancelled(ctx context.Context, b domain.Booking) {
	if err := s.notifier.BookingCancelled(ctx, b); err != nil {
		s.logger.ErrorContext(ctx, "booking cancelled notification failed",
			"booking_id", b.ID, "reason", string(b.CancellationReason), "error", err)
	}
	s.enqueueReindex(ctx, b.OfferID)
}

func (s *BookingService) enqueueReindex(ctx context.Context, offerID string) {
	if !s.policy.ReindexOnBooking || offerID == "" {
		return
	}
	if err := s.indexer.EnqueueOffer(ctx, offerID); err != nil {
		s.logger.ErrorContext(ctx, "offer reindex enqueue failed",
			"offer_id", offerID, "error", err)
	}
}
