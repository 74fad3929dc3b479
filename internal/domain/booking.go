package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	StatusActive    BookingStatus = "active"
	StatusUsed      BookingStatus = "used"
	StatusCancelled BookingStatus = "cancelled"
)

type CancellationReason string

const (
	ReasonBeneficiary CancellationReason = "beneficiary"
	ReasonOfferer     CancellationReason = "offerer"
	ReasonExpired     CancellationReason = "expired"
	ReasonFraud       CancellationReason = "fraud"
)

// ConfirmationWindow parameterizes the confirmation-date rule: Lead is how
// long before the event self-cancellation closes, Grace is how long after
// booking it stays open regardless.
type ConfirmationWindow struct {
	Lead  time.Duration
	Grace time.Duration
}

// ConfirmationDate computes when a booking stops being self-cancellable.
// Non-event stock has no confirmation date: the booking stays cancellable
// until used. For event stock the date is the earlier of (event - Lead) and
// (booking + Grace), clamped so it never precedes the booking itself.
func ConfirmationDate(eventAt *time.Time, at time.Time, w ConfirmationWindow) *time.Time {
	if eventAt == nil {
		return nil
	}
	d := eventAt.Add(-w.Lead)
	if g := at.Add(w.Grace); g.Before(d) {
		d = g
	}
	if d.Before(at) {
		d = at
	}
	return &d
}

// Booking is a beneficiary's reservation against a stock unit. Amount is the
// unit price snapshotted at creation; later stock price changes do not affect
// existing bookings.
type Booking struct {
	ID                 string
	UserID             string
	StockID            string
	OfferID            string
	Token              string
	Quantity           int
	Amount             decimal.Decimal
	CreatedAt          time.Time
	ConfirmedAt        *time.Time
	Status             BookingStatus
	UsedAt             *time.Time
	CancelledAt        *time.Time
	CancellationReason CancellationReason
}

// NewBooking builds an active booking after validating the duo rule. Token
// and ID are assigned by the caller.
func NewBooking(userID string, stock BookableStock, quantity int, now time.Time, w ConfirmationWindow) (Booking, error) {
	if quantity < 1 || quantity > 2 {
		return Booking{}, ErrInvalidQuantity
	}
	if quantity == 2 && !stock.Offer.IsDuo {
		return Booking{}, ErrInvalidQuantity
	}
	return Booking{
		UserID:      userID,
		StockID:     stock.ID,
		OfferID:     stock.Offer.ID,
		Quantity:    quantity,
		Amount:      stock.Price,
		CreatedAt:   now,
		ConfirmedAt: ConfirmationDate(stock.EventAt, now, w),
		Status:      StatusActive,
	}, nil
}

// Total is the amount actually debited from the user's credit.
func (b Booking) Total() decimal.Decimal {
	return b.Amount.Mul(decimal.NewFromInt(int64(b.Quantity)))
}

// IsConfirmed reports whether the beneficiary self-cancellation window is
// over. Bookings without a confirmation date never confirm.
func (b Booking) IsConfirmed(now time.Time) bool {
	return b.ConfirmedAt != nil && !b.ConfirmedAt.After(now)
}

// CancelByBeneficiary applies beneficiary cancellation semantics: rejected
// once used or once the confirmation date has passed.
func (b *Booking) CancelByBeneficiary(now time.Time) error {
	if b.Status == StatusUsed {
		return ErrAlreadyUsed
	}
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if b.IsConfirmed(now) {
		return CannotCancelConfirmedError{BookedAt: b.CreatedAt, ConfirmedAt: *b.ConfirmedAt}
	}
	b.cancel(now, ReasonBeneficiary)
	return nil
}

// Cancel applies offerer/fraud/expiry cancellation semantics.
func (b *Booking) Cancel(now time.Time, reason CancellationReason) error {
	if b.Status == StatusUsed {
		return ErrAlreadyUsed
	}
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	b.cancel(now, reason)
	return nil
}

func (b *Booking) cancel(now time.Time, reason CancellationReason) {
	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.CancellationReason = reason
}

// MarkUsed validates the redemption. Marking an already-used booking is a
// no-op so counterpart scans can be retried.
func (b *Booking) MarkUsed(now time.Time) error {
	if b.Status == StatusUsed {
		return nil
	}
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if b.ConfirmedAt != nil && b.ConfirmedAt.After(now) {
		return NotYetConfirmedError{BookedAt: b.CreatedAt, ValidatableAt: *b.ConfirmedAt}
	}
	b.Status = StatusUsed
	b.UsedAt = &now
	return nil
}

// Uncancel reverses a cancellation. The caller must have re-reserved the
// quantity on the stock first.
func (b *Booking) Uncancel() {
	b.Status = StatusActive
	b.CancelledAt = nil
	b.CancellationReason = ""
}

// MarkUnused reverts a used booking to active. The payment-in-progress gate
// is enforced by the service before calling this.
func (b *Booking) MarkUnused() error {
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if b.Status != StatusUsed {
		return ErrNotUsed
	}
	b.Status = StatusActive
	b.UsedAt = nil
	return nil
}

// CheckConsistent rejects rows whose status and timestamp payloads disagree,
// so illegal combinations never make it past the storage layer.
func (b Booking) CheckConsistent() error {
	switch b.Status {
	case StatusActive:
		if b.UsedAt != nil || b.CancelledAt != nil || b.CancellationReason != "" {
			return fmt.Errorf("active booking %s carries terminal markers", b.ID)
		}
	case StatusUsed:
		if b.UsedAt == nil {
			return fmt.Errorf("used booking %s has no used_at", b.ID)
		}
		if b.CancelledAt != nil || b.CancellationReason != "" {
			return fmt.Errorf("used booking %s carries cancellation markers", b.ID)
		}
	case StatusCancelled:
		if b.CancelledAt == nil || b.CancellationReason == "" {
			return fmt.Errorf("cancelled booking %s is missing cancellation markers", b.ID)
		}
		if b.UsedAt != nil {
			return fmt.Errorf("cancelled booking %s carries used_at", b.ID)
		}
	default:
		return fmt.Errorf("booking %s has unknown status %q", b.ID, b.Status)
	}
	return nil
}
