package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/domain/port"
)

func TestHTTPGateway_ChargeSuccess(t *testing.T) {
	txID := uuid.New()
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, IdempotencyKey("charge", txID, 3), r.Header.Get("Idempotency-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ch_123","status":"succeeded"}`))
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL+"/", "secret", time.Second)
	res, err := gw.Charge(context.Background(), port.ChargeRequest{
		TransactionID: txID,
		Version:       3,
		PayerID:       uuid.New(),
		Amount:        decimal.RequireFromString("1025"),
		Currency:      "USD",
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch_123", res.Reference)
	assert.Equal(t, "1025.00", gotBody["amount"])
	assert.Equal(t, "card", gotBody["payment_method"])
}

func TestHTTPGateway_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"card_declined","message":"insufficient funds"}}`))
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "", time.Second)
	_, err := gw.Payout(context.Background(), port.PayoutRequest{TransactionID: uuid.New(), Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrPaymentDeclined))
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestHTTPGateway_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "", time.Second)
	_, err := gw.Refund(context.Background(), port.RefundRequest{TransactionID: uuid.New(), Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.False(t, errors.Is(err, port.ErrPaymentDeclined))
}

func TestHTTPGateway_PendingStatusIsNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"po_1","status":"pending"}`))
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "", time.Second)
	_, err := gw.Payout(context.Background(), port.PayoutRequest{TransactionID: uuid.New(), Amount: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, port.ErrPaymentDeclined))
}

func TestIdempotencyKey_StablePerOperationAndVersion(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, IdempotencyKey("charge", id, 1), IdempotencyKey("charge", id, 1))
	assert.NotEqual(t, IdempotencyKey("charge", id, 1), IdempotencyKey("charge", id, 2))
	assert.NotEqual(t, IdempotencyKey("charge", id, 1), IdempotencyKey("refund", id, 1))
	assert.Len(t, IdempotencyKey("payout", id, 1), 64)
}
