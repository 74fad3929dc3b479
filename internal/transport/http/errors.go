package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

const (
	codeMethodNotAllowed      = "method_not_allowed"
	codeNotFound              = "not_found"
	codeInvalidRequestBody    = "invalid_request_body"
	codeMissingRequiredField  = "missing_required_field"
	codeInvalidID             = "invalid_id"
	codeInvalidQuantity       = "invalid_quantity"
	codeNotEligible           = "not_eligible"
	codeNotEligibleFree       = "not_eligible_free_offer"
	codeBookingNotFound       = "booking_not_found"
	codeStockNotFound         = "stock_not_found"
	codeAlreadyBooked         = "already_booked"
	codeStockNotBookable      = "stock_not_bookable"
	codeInsufficientStock     = "insufficient_stock"
	codeInsufficientFunds     = "insufficient_funds"
	codePhysicalCapReached    = "physical_cap_reached"
	codeDigitalCapReached     = "digital_cap_reached"
	codeAlreadyUsed           = "already_used"
	codeAlreadyCancelled      = "already_cancelled"
	codeCannotCancelConfirmed = "cannot_cancel_confirmed"
	codeNotYetConfirmed       = "not_yet_confirmed"
	codeNotUsed               = "not_used"
	codePaymentInProgress     = "payment_in_progress"
	codeStockLocked           = "stock_locked"
	codeForbidden             = "forbidden"
	codeInternalError         = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// stock_locked is the one retryable conflict: the client should back off and
// retry the same request.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrNotEligible):
		writeError(w, http.StatusForbidden, codeNotEligible, err.Error())
	case errors.Is(err, domain.ErrNotEligibleFreeOffer):
		writeError(w, http.StatusForbidden, codeNotEligibleFree, err.Error())
	case errors.Is(err, domain.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
	case errors.Is(err, domain.ErrStockNotFound):
		writeError(w, http.StatusNotFound, codeStockNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyBooked):
		writeError(w, http.StatusConflict, codeAlreadyBooked, err.Error())
	case errors.Is(err, domain.ErrStockNotBookable):
		writeError(w, http.StatusConflict, codeStockNotBookable, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, codeInsufficientFunds, err.Error())
	case errors.Is(err, domain.ErrPhysicalCapReached):
		writeError(w, http.StatusConflict, codePhysicalCapReached, err.Error())
	case errors.Is(err, domain.ErrDigitalCapReached):
		writeError(w, http.StatusConflict, codeDigitalCapReached, err.Error())
	case errors.Is(err, domain.ErrAlreadyUsed):
		writeError(w, http.StatusConflict, codeAlreadyUsed, err.Error())
	case errors.Is(err, domain.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, codeAlreadyCancelled, err.Error())
	case errors.Is(err, domain.ErrCannotCancelConfirmed):
		writeError(w, http.StatusConflict, codeCannotCancelConfirmed, err.Error())
	case errors.Is(err, domain.ErrNotYetConfirmed):
		writeError(w, http.StatusConflict, codeNotYetConfirmed, err.Error())
	case errors.Is(err, domain.ErrNotUsed):
		writeError(w, http.StatusConflict, codeNotUsed, err.Error())
	case errors.Is(err, domain.ErrPaymentInProgress):
		writeError(w, http.StatusConflict, codePaymentInProgress, err.Error())
	case errors.Is(err, domain.ErrStockLocked):
		writeError(w, http.StatusConflict, codeStockLocked, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
