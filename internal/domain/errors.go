package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotEligible          = errors.New("user is not allowed to book")
	ErrNotEligibleFreeOffer = errors.New("user is not allowed to book free offers")

	ErrAlreadyBooked     = errors.New("offer already booked by this user")
	ErrStockNotBookable  = errors.New("stock is not bookable")
	ErrInsufficientStock = errors.New("insufficient stock remaining")
	ErrInvalidQuantity   = errors.New("invalid quantity")

	ErrInsufficientFunds  = errors.New("insufficient credit")
	ErrPhysicalCapReached = errors.New("physical spending cap reached")
	ErrDigitalCapReached  = errors.New("digital spending cap reached")

	ErrAlreadyUsed           = errors.New("booking already used")
	ErrAlreadyCancelled      = errors.New("booking already cancelled")
	ErrCannotCancelConfirmed = errors.New("booking can no longer be cancelled by the beneficiary")
	ErrNotYetConfirmed       = errors.New("booking cannot be validated yet")
	ErrNotUsed               = errors.New("booking has not been used")
	ErrPaymentInProgress     = errors.New("booking has a payment in progress")

	// ErrStockLocked is retryable: another operation holds the stock row.
	ErrStockLocked = errors.New("stock is locked by another operation")

	ErrBookingNotFound = errors.New("booking not found")
	ErrStockNotFound   = errors.New("stock not found")
	ErrInvalidID       = errors.New("invalid id")
)

// InsufficientFundsError carries the overall cap for caller-facing messages.
// errors.Is(err, ErrInsufficientFunds) matches it.
type InsufficientFundsError struct {
	Cap decimal.Decimal
}

func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient credit: overall cap is %s", e.Cap.StringFixed(2))
}

func (e InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// CapReachedError reports a breached physical or digital sub-bucket.
type CapReachedError struct {
	Bucket BucketName
	Cap    decimal.Decimal
}

func (e CapReachedError) Error() string {
	return fmt.Sprintf("%s spending cap of %s reached", e.Bucket, e.Cap.StringFixed(2))
}

func (e CapReachedError) Is(target error) bool {
	switch e.Bucket {
	case BucketPhysical:
		return target == ErrPhysicalCapReached
	case BucketDigital:
		return target == ErrDigitalCapReached
	}
	return false
}

// CannotCancelConfirmedError is returned when the self-cancellation window is
// over; BookedAt and ConfirmedAt let the caller render a precise message.
type CannotCancelConfirmedError struct {
	BookedAt    time.Time
	ConfirmedAt time.Time
}

func (e CannotCancelConfirmedError) Error() string {
	return fmt.Sprintf(
		"booking made on %s could only be cancelled until %s",
		e.BookedAt.Format(time.RFC3339), e.ConfirmedAt.Format(time.RFC3339),
	)
}

func (e CannotCancelConfirmedError) Is(target error) bool {
	return target == ErrCannotCancelConfirmed
}

// NotYetConfirmedError is returned when a token is presented before the
// validation window opens for an event booking.
type NotYetConfirmedError struct {
	BookedAt      time.Time
	ValidatableAt time.Time
}

func (e NotYetConfirmedError) Error() string {
	return fmt.Sprintf(
		"booking made on %s can be validated from %s",
		e.BookedAt.Format(time.RFC3339), e.ValidatableAt.Format(time.RFC3339),
	)
}

func (e NotYetConfirmedError) Is(target error) bool {
	return target == ErrNotYetConfirmed
}
