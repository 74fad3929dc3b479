package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

func sampleBooking() domain.Booking {
	return domain.Booking{
		ID:        "booking-1",
		UserID:    "user-1",
		StockID:   "stock-1",
		OfferID:   "offer-1",
		Token:     "ABC234",
		Quantity:  2,
		Amount:    decimal.RequireFromString("12.50"),
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:    domain.StatusActive,
	}
}

func TestNewEvent_OmitsToken(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ev := newEvent(TypeBookingCreated, sampleBooking(), at)

	require.Equal(t, "booking.created", ev.Type)
	assert.True(t, ev.Total.Equal(decimal.RequireFromString("25.00")))

	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "ABC234")
	assert.Contains(t, string(payload), `"booking_id":"booking-1"`)
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	n := NewLog(logger)

	require.NoError(t, n.BookingCreated(context.Background(), sampleBooking()))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "booking event", record["msg"])
	assert.Equal(t, "booking.created", record["type"])
	assert.Equal(t, "booking-1", record["booking_id"])
}
