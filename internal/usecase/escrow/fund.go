package escrow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/port"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type FundInput struct {
	TransactionID  uuid.UUID
	ActorID        uuid.UUID
	PaymentMethod  string
	PaymentDetails map[string]string
}

// Fund списывает с покупателя сумму сделки с комиссией и переводит сделку в funded.
// Шлюз вызывается один раз; при отказе сделка не меняется.
func (e *Engine) Fund(ctx context.Context, in FundInput) (*entity.EscrowTransaction, error) {
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "способ оплаты обязателен")
	}

	var receipt *paymentReceipt
	tx, err := e.mutate(ctx, in.TransactionID, in.ActorID, true, func(tx *entity.EscrowTransaction, now time.Time) ([]port.Event, error) {
		if !tx.IsBuyer(in.ActorID) {
			return nil, apperror.ErrEscrowNotFound
		}
		if err := tx.EnsureFundable(now); err != nil {
			return nil, err
		}

		result, err := e.callGateway("charge", func() (port.PaymentResult, error) {
			return e.gateway.Charge(ctx, port.ChargeRequest{
				TransactionID:  tx.ID,
				Version:        tx.Version,
				PayerID:        tx.BuyerID,
				Amount:         tx.FundingAmount(),
				Currency:       tx.Currency,
				PaymentMethod:  method,
				PaymentDetails: in.PaymentDetails,
			})
		})
		if err != nil {
			return nil, err
		}
		receipt = &paymentReceipt{operation: "charge", reference: result.Reference}

		if err := tx.MarkFunded(method, result.Reference, now); err != nil {
			return nil, err
		}

		actor := in.ActorID
		ev := newEvent(port.EventEscrowFunded, tx, &actor, now)
		ev.Amount = tx.FundingAmount().StringFixed(2)
		ev.Currency = tx.Currency
		return []port.Event{ev}, nil
	})
	logUnsavedPayment(in.TransactionID, in.ActorID, receipt, err)
	return tx, err
}
