package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

func TestHandleWithdrawStock(t *testing.T) {
	t.Parallel()

	t.Run("withdraws and reports cancelled bookings", func(t *testing.T) {
		t.Parallel()
		svc := &stubAdminService{cancelled: []domain.Booking{{ID: "booking-1"}, {ID: "booking-2"}}}
		req := httptest.NewRequest(http.MethodPost, "/admin/stocks/stock-1/withdraw",
			bytes.NewBufferString(`{"reason":"offerer"}`))
		rec := httptest.NewRecorder()

		HandleWithdrawStock(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if svc.lastReason != domain.ReasonOfferer || svc.lastStockID != "stock-1" {
			t.Fatalf("unexpected call: %q %q", svc.lastStockID, svc.lastReason)
		}
		if !strings.Contains(rec.Body.String(), `"cancelled_bookings":2`) {
			t.Fatalf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("rejects the beneficiary reason", func(t *testing.T) {
		t.Parallel()
		svc := &stubAdminService{}
		req := httptest.NewRequest(http.MethodPost, "/admin/stocks/stock-1/withdraw",
			bytes.NewBufferString(`{"reason":"beneficiary"}`))
		rec := httptest.NewRecorder()

		HandleWithdrawStock(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("unknown stock", func(t *testing.T) {
		t.Parallel()
		svc := &stubAdminService{err: domain.ErrStockNotFound}
		req := httptest.NewRequest(http.MethodPost, "/admin/stocks/stock-1/withdraw",
			bytes.NewBufferString(`{"reason":"expired"}`))
		rec := httptest.NewRecorder()

		HandleWithdrawStock(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandleAdminCancelBooking(t *testing.T) {
	t.Parallel()

	t.Run("offerer cancel", func(t *testing.T) {
		t.Parallel()
		b := successBooking()
		cancelledAt := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
		b.Status = domain.StatusCancelled
		b.CancelledAt = &cancelledAt
		b.CancellationReason = domain.ReasonOfferer
		svc := &stubAdminService{booking: b}

		req := httptest.NewRequest(http.MethodPost, "/admin/bookings/booking-123/cancel",
			bytes.NewBufferString(`{"reason":"offerer"}`))
		rec := httptest.NewRecorder()

		HandleAdminCancelBooking(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if svc.lastCall != "offerer" {
			t.Fatalf("expected offerer call, got %q", svc.lastCall)
		}
		if !strings.Contains(rec.Body.String(), `"cancellation_reason":"offerer"`) {
			t.Fatalf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("fraud cancel on an already cancelled booking", func(t *testing.T) {
		t.Parallel()
		svc := &stubAdminService{err: domain.ErrAlreadyCancelled}
		req := httptest.NewRequest(http.MethodPost, "/admin/bookings/booking-123/cancel",
			bytes.NewBufferString(`{"reason":"fraud"}`))
		rec := httptest.NewRecorder()

		HandleAdminCancelBooking(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rec.Code)
		}
		if svc.lastCall != "fraud" {
			t.Fatalf("expected fraud call, got %q", svc.lastCall)
		}
	})

	t.Run("unknown reason", func(t *testing.T) {
		t.Parallel()
		svc := &stubAdminService{}
		req := httptest.NewRequest(http.MethodPost, "/admin/bookings/booking-123/cancel",
			bytes.NewBufferString(`{"reason":"expired"}`))
		rec := httptest.NewRecorder()

		HandleAdminCancelBooking(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}

type stubAdminService struct {
	booking   domain.Booking
	cancelled []domain.Booking
	err       error

	lastStockID string
	lastReason  domain.CancellationReason
	lastCall    string
}

func (s *stubAdminService) WithdrawStock(_ context.Context, stockID string, reason domain.CancellationReason) ([]domain.Booking, error) {
	s.lastStockID = stockID
	s.lastReason = reason
	return s.cancelled, s.err
}

func (s *stubAdminService) CancelByOfferer(_ context.Context, _ string) (domain.Booking, error) {
	s.lastCall = "offerer"
	return s.booking, s.err
}

func (s *stubAdminService) CancelForFraud(_ context.Context, _ string) (domain.Booking, error) {
	s.lastCall = "fraud"
	return s.booking, s.err
}
