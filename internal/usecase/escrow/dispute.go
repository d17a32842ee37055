package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/port"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

type OpenDisputeInput struct {
	TransactionID       uuid.UUID
	ActorID             uuid.UUID
	Reason              string
	Description         string
	Evidence            []string
	RequestedResolution string
}

// OpenDispute открывает спор от имени покупателя или продавца.
func (e *Engine) OpenDispute(ctx context.Context, in OpenDisputeInput) (*entity.EscrowTransaction, *entity.Dispute, error) {
	reason, err := valueobject.NewDisputeReason(in.Reason)
	if err != nil {
		return nil, nil, err
	}
	resolution, err := valueobject.NewRequestedResolution(in.RequestedResolution)
	if err != nil {
		return nil, nil, err
	}

	var opened entity.Dispute
	tx, err := e.mutate(ctx, in.TransactionID, in.ActorID, true, func(tx *entity.EscrowTransaction, now time.Time) ([]port.Event, error) {
		d, err := tx.OpenDispute(entity.OpenDisputeParams{
			InitiatorID:         in.ActorID,
			Reason:              reason,
			Description:         in.Description,
			Evidence:            in.Evidence,
			RequestedResolution: resolution,
		}, now)
		if err != nil {
			return nil, err
		}
		opened = *d

		actor := in.ActorID
		ev := newEvent(port.EventEscrowDisputed, tx, &actor, now)
		ev.DisputeID = &opened.ID
		return []port.Event{ev}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return tx, &opened, nil
}

type ResolveDisputeInput struct {
	DisputeID uuid.UUID
	ArbiterID uuid.UUID
	Outcome   string
	Note      *string
}

// ResolveDispute — точка входа для внешнего арбитража. Решение в пользу продавца
// выплачивает ему сумму сделки, решение в пользу покупателя возвращает сумму с комиссией.
func (e *Engine) ResolveDispute(ctx context.Context, in ResolveDisputeInput) (*entity.EscrowTransaction, error) {
	outcome, err := valueobject.NewDisputeOutcome(in.Outcome)
	if err != nil {
		return nil, err
	}

	owner, err := e.repo.FindByDisputeID(ctx, in.DisputeID)
	if err != nil {
		return nil, err
	}

	var receipt *paymentReceipt
	tx, err := e.mutate(ctx, owner.ID, in.ArbiterID, false, func(tx *entity.EscrowTransaction, now time.Time) ([]port.Event, error) {
		if _, err := tx.EnsureResolvable(in.DisputeID); err != nil {
			return nil, err
		}

		var (
			result port.PaymentResult
			err    error
		)
		switch outcome {
		case valueobject.OutcomeReleaseToSeller:
			result, err = e.callGateway("payout", func() (port.PaymentResult, error) {
				return e.gateway.Payout(ctx, port.PayoutRequest{
					TransactionID: tx.ID,
					Version:       tx.Version,
					PayeeID:       tx.SellerID,
					Amount:        tx.TotalAmount,
					Currency:      tx.Currency,
				})
			})
		case valueobject.OutcomeRefundToBuyer:
			chargeRef := ""
			if tx.PaymentReference != nil {
				chargeRef = *tx.PaymentReference
			}
			result, err = e.callGateway("refund", func() (port.PaymentResult, error) {
				return e.gateway.Refund(ctx, port.RefundRequest{
					TransactionID:   tx.ID,
					Version:         tx.Version,
					PayeeID:         tx.BuyerID,
					Amount:          tx.FundingAmount(),
					Currency:        tx.Currency,
					ChargeReference: chargeRef,
				})
			})
		}
		if err != nil {
			return nil, err
		}
		receipt = &paymentReceipt{operation: string(outcome), reference: result.Reference}

		if err := tx.ResolveDispute(in.DisputeID, outcome, in.ArbiterID, in.Note, result.Reference, now); err != nil {
			return nil, err
		}

		arbiter := in.ArbiterID
		disputeID := in.DisputeID
		resolved := newEvent(port.EventDisputeResolved, tx, &arbiter, now)
		resolved.DisputeID = &disputeID

		final := newEvent(port.EventEscrowCompleted, tx, &arbiter, now)
		final.Amount = tx.TotalAmount.StringFixed(2)
		if outcome == valueobject.OutcomeRefundToBuyer {
			final = newEvent(port.EventEscrowCanceled, tx, &arbiter, now)
			final.Amount = tx.FundingAmount().StringFixed(2)
		}
		final.Currency = tx.Currency
		return []port.Event{resolved, final}, nil
	})
	logUnsavedPayment(owner.ID, in.ArbiterID, receipt, err)
	return tx, err
}
