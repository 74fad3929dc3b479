package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// TokenValidator is the minimal interface needed for counterpart token
// validation at the venue.
type TokenValidator interface {
	MarkUsedByToken(ctx context.Context, tok string, allowUncancel bool) (domain.Booking, error)
	MarkUnusedByToken(ctx context.Context, tok string) (domain.Booking, error)
}

// HandleUseToken returns an HTTP handler validating a redemption token.
func HandleUseToken(svc TokenValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		tok, ok := parseTokenPath(r.URL.Path, "use")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		// The body is optional; only the uncancel escape hatch lives there.
		var req useTokenRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		booking, err := svc.MarkUsedByToken(r.Context(), strings.ToUpper(tok), req.AllowUncancel)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(toBookingResponse(booking))
	}
}

// HandleUnuseToken returns an HTTP handler reverting a mistaken validation.
func HandleUnuseToken(svc TokenValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		tok, ok := parseTokenPath(r.URL.Path, "unuse")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		booking, err := svc.MarkUnusedByToken(r.Context(), strings.ToUpper(tok))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(toBookingResponse(booking))
	}
}

func parseTokenPath(path, action string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 {
		return "", false
	}
	if parts[0] != "bookings" || parts[1] != "token" || parts[3] != action {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

type useTokenRequest struct {
	AllowUncancel bool `json:"allow_uncancel"`
}
