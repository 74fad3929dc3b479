package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pass-culture/pass-culture-api-sub002/internal/app"
	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// BookingCreator is the minimal interface needed to create a booking.
type BookingCreator interface {
	Book(ctx context.Context, in app.BookInput) (domain.Booking, error)
}

// BookingCanceller is the minimal interface needed for beneficiary
// self-cancellation.
type BookingCanceller interface {
	CancelByBeneficiary(ctx context.Context, userID, bookingID string) (domain.Booking, error)
}

// HandleCreateBooking returns an HTTP handler for creating bookings.
func HandleCreateBooking(svc BookingCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createBookingRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.UserID == "" || req.StockID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "user_id and stock_id are required")
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}

		booking, err := svc.Book(r.Context(), app.BookInput{
			UserID:   req.UserID,
			StockID:  req.StockID,
			Quantity: req.Quantity,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toBookingResponse(booking))
	}
}

// HandleCancelBooking returns an HTTP handler for beneficiary cancellation.
func HandleCancelBooking(svc BookingCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		bookingID, ok := parseCancelBookingPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		var req cancelBookingRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "user_id is required")
			return
		}

		booking, err := svc.CancelByBeneficiary(r.Context(), req.UserID, bookingID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(toBookingResponse(booking))
	}
}

func parseCancelBookingPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "bookings" || parts[2] != "cancel" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type createBookingRequest struct {
	UserID   string `json:"user_id"`
	StockID  string `json:"stock_id"`
	Quantity int    `json:"quantity"`
}

type cancelBookingRequest struct {
	UserID string `json:"user_id"`
}

type bookingResponse struct {
	ID                 string     `json:"id"`
	StockID            string     `json:"stock_id"`
	OfferID            string     `json:"offer_id"`
	Token              string     `json:"token"`
	Quantity           int        `json:"quantity"`
	Amount             string     `json:"amount"`
	Total              string     `json:"total"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	UsedAt             *time.Time `json:"used_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                 b.ID,
		StockID:            b.StockID,
		OfferID:            b.OfferID,
		Token:              b.Token,
		Quantity:           b.Quantity,
		Amount:             b.Amount.StringFixed(2),
		Total:              b.Total().StringFixed(2),
		Status:             string(b.Status),
		CreatedAt:          b.CreatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		UsedAt:             b.UsedAt,
		CancelledAt:        b.CancelledAt,
		CancellationReason: string(b.CancellationReason),
	}
}
