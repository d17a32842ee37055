package port

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrPaymentDeclined возвращается шлюзом, когда платёж отклонён провайдером.
var ErrPaymentDeclined = errors.New("payment declined")

// PaymentGateway — внешний платёжный провайдер. Каждый вызов выполняется ровно
// один раз, повторы на стороне движка не делаются.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (PaymentResult, error)
	Payout(ctx context.Context, req PayoutRequest) (PaymentResult, error)
	Refund(ctx context.Context, req RefundRequest) (PaymentResult, error)
}

type ChargeRequest struct {
	TransactionID  uuid.UUID
	Version        int64
	PayerID        uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	PaymentMethod  string
	PaymentDetails map[string]string
}

type PayoutRequest struct {
	TransactionID uuid.UUID
	Version       int64
	PayeeID       uuid.UUID
	Amount        decimal.Decimal
	Currency      string
}

type RefundRequest struct {
	TransactionID   uuid.UUID
	Version         int64
	PayeeID         uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	ChargeReference string
}

type PaymentResult struct {
	Reference string
	Status    string
}
