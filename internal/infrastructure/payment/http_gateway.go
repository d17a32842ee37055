package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/port"
)

const (
	statusSucceeded = "succeeded"
	maxErrorBody    = 4 << 10
)

// HTTPGateway — клиент внешнего платёжного провайдера с JSON API.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ port.PaymentGateway = (*HTTPGateway)(nil)

type paymentRequest struct {
	TransactionID   uuid.UUID         `json:"transaction_id"`
	PartyID         uuid.UUID         `json:"party_id"`
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentMethod   string            `json:"payment_method,omitempty"`
	PaymentDetails  map[string]string `json:"payment_details,omitempty"`
	ChargeReference string            `json:"charge_reference,omitempty"`
}

type paymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req port.ChargeRequest) (port.PaymentResult, error) {
	return g.do(ctx, "/v1/charges", IdempotencyKey("charge", req.TransactionID, req.Version), paymentRequest{
		TransactionID:  req.TransactionID,
		PartyID:        req.PayerID,
		Amount:         req.Amount.StringFixed(2),
		Currency:       req.Currency,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: req.PaymentDetails,
	})
}

func (g *HTTPGateway) Payout(ctx context.Context, req port.PayoutRequest) (port.PaymentResult, error) {
	return g.do(ctx, "/v1/payouts", IdempotencyKey("payout", req.TransactionID, req.Version), paymentRequest{
		TransactionID: req.TransactionID,
		PartyID:       req.PayeeID,
		Amount:        req.Amount.StringFixed(2),
		Currency:      req.Currency,
	})
}

func (g *HTTPGateway) Refund(ctx context.Context, req port.RefundRequest) (port.PaymentResult, error) {
	return g.do(ctx, "/v1/refunds", IdempotencyKey("refund", req.TransactionID, req.Version), paymentRequest{
		TransactionID:   req.TransactionID,
		PartyID:         req.PayeeID,
		Amount:          req.Amount.StringFixed(2),
		Currency:        req.Currency,
		ChargeReference: req.ChargeReference,
	})
}

func (g *HTTPGateway) do(ctx context.Context, path, idempotencyKey string, body paymentRequest) (port.PaymentResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return port.PaymentResult{}, fmt.Errorf("payment gateway: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return port.PaymentResult{}, fmt.Errorf("payment gateway: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return port.PaymentResult{}, fmt.Errorf("payment gateway: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody*16))
	if err != nil {
		return port.PaymentResult{}, fmt.Errorf("payment gateway: read response: %w", err)
	}

	var decoded paymentResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(string(raw))
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if resp.StatusCode < http.StatusInternalServerError {
			return port.PaymentResult{}, fmt.Errorf("%w: %s (status %d)", port.ErrPaymentDeclined, msg, resp.StatusCode)
		}
		return port.PaymentResult{}, fmt.Errorf("payment gateway: %s (status %d)", msg, resp.StatusCode)
	}

	if decoded.ID == "" {
		return port.PaymentResult{}, fmt.Errorf("payment gateway: response without id")
	}
	if decoded.Status != statusSucceeded {
		return port.PaymentResult{}, fmt.Errorf("%w: status %q", port.ErrPaymentDeclined, decoded.Status)
	}

	return port.PaymentResult{Reference: decoded.ID, Status: decoded.Status}, nil
}
