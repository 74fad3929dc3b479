package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// StockWithdrawer is the minimal interface needed to withdraw a stock.
type StockWithdrawer interface {
	WithdrawStock(ctx context.Context, stockID string, reason domain.CancellationReason) ([]domain.Booking, error)
}

// ManagedCanceller is the minimal interface for offerer- and fraud-side
// cancellation.
type ManagedCanceller interface {
	CancelByOfferer(ctx context.Context, bookingID string) (domain.Booking, error)
	CancelForFraud(ctx context.Context, bookingID string) (domain.Booking, error)
}

// HandleWithdrawStock returns an HTTP handler withdrawing a stock: the stock
// is soft-deleted and its open bookings are cancelled.
func HandleWithdrawStock(svc StockWithdrawer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		stockID, ok := parseAdminPath(r.URL.Path, "stocks", "withdraw")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		var req withdrawStockRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		reason := domain.CancellationReason(req.Reason)
		switch reason {
		case domain.ReasonOfferer, domain.ReasonExpired, domain.ReasonFraud:
		default:
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "reason must be offerer, expired or fraud")
			return
		}

		cancelled, err := svc.WithdrawStock(r.Context(), stockID, reason)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := withdrawStockResponse{StockID: stockID, CancelledBookings: len(cancelled)}
		for _, b := range cancelled {
			resp.BookingIDs = append(resp.BookingIDs, b.ID)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleAdminCancelBooking returns an HTTP handler for offerer and fraud
// cancellation of a single booking.
func HandleAdminCancelBooking(svc ManagedCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		bookingID, ok := parseAdminPath(r.URL.Path, "bookings", "cancel")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		var req adminCancelRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		var booking domain.Booking
		var err error
		switch domain.CancellationReason(req.Reason) {
		case domain.ReasonOfferer:
			booking, err = svc.CancelByOfferer(r.Context(), bookingID)
		case domain.ReasonFraud:
			booking, err = svc.CancelForFraud(r.Context(), bookingID)
		default:
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "reason must be offerer or fraud")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(toBookingResponse(booking))
	}
}

func parseAdminPath(path, resource, action string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", false
	}
	if parts[0] != "admin" || parts[1] != resource || parts[3] != action {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

type withdrawStockRequest struct {
	Reason string `json:"reason"`
}

type withdrawStockResponse struct {
	StockID           string   `json:"stock_id"`
	CancelledBookings int      `json:"cancelled_bookings"`
	BookingIDs        []string `json:"booking_ids,omitempty"`
}

type adminCancelRequest struct {
	Reason string `json:"reason"`
}
