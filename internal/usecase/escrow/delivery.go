package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/port"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type DeliverInput struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
	MilestoneID   *uuid.UUID
	Notes         *string
	Proof         *string
}

// Deliver отмечает поставку продавцом. Без MilestoneID поставляются все ожидающие этапы.
func (e *Engine) Deliver(ctx context.Context, in DeliverInput) (*entity.EscrowTransaction, error) {
	return e.mutate(ctx, in.TransactionID, in.ActorID, true, func(tx *entity.EscrowTransaction, now time.Time) ([]port.Event, error) {
		if !tx.IsSeller(in.ActorID) {
			return nil, apperror.ErrEscrowNotFound
		}

		delivered, err := tx.MarkDelivered(in.MilestoneID, in.Notes, in.Proof, now)
		if err != nil {
			return nil, err
		}

		actor := in.ActorID
		var events []port.Event
		if in.MilestoneID != nil {
			ev := newEvent(port.EventMilestoneDelivered, tx, &actor, now)
			ev.MilestoneID = in.MilestoneID
			events = append(events, ev)
		}
		if delivered {
			events = append(events, newEvent(port.EventEscrowDelivered, tx, &actor, now))
		}
		return events, nil
	})
}

type AcceptInput struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
	MilestoneID   *uuid.UUID
	Rating        *int
	Comment       *string
}

// Accept принимает поставку покупателем. Когда приняты все этапы, продавцу
// выплачивается сумма сделки и сделка завершается. Если выплата не прошла,
// ничего не сохраняется.
func (e *Engine) Accept(ctx context.Context, in AcceptInput) (*entity.EscrowTransaction, error) {
	var receipt *paymentReceipt
	tx, err := e.mutate(ctx, in.TransactionID, in.ActorID, true, func(tx *entity.EscrowTransaction, now time.Time) ([]port.Event, error) {
		if !tx.IsBuyer(in.ActorID) {
			return nil, apperror.ErrEscrowNotFound
		}

		allAccepted, err := tx.MarkAccepted(in.MilestoneID, now)
		if err != nil {
			return nil, err
		}
		if err := tx.SetFeedback(in.Rating, in.Comment); err != nil {
			return nil, err
		}

		actor := in.ActorID
		var events []port.Event
		if in.MilestoneID != nil {
			ev := newEvent(port.EventMilestoneAccepted, tx, &actor, now)
			ev.MilestoneID = in.MilestoneID
			events = append(events, ev)
		}
		if !allAccepted {
			return events, nil
		}

		result, err := e.callGateway("payout", func() (port.PaymentResult, error) {
			return e.gateway.Payout(ctx, port.PayoutRequest{
				TransactionID: tx.ID,
				Version:       tx.Version,
				PayeeID:       tx.SellerID,
				Amount:        tx.TotalAmount,
				Currency:      tx.Currency,
			})
		})
		if err != nil {
			return nil, err
		}
		receipt = &paymentReceipt{operation: "payout", reference: result.Reference}
		if err := tx.Complete(result.Reference, now); err != nil {
			return nil, err
		}

		ev := newEvent(port.EventEscrowCompleted, tx, &actor, now)
		ev.Amount = tx.TotalAmount.StringFixed(2)
		ev.Currency = tx.Currency
		return append(events, ev), nil
	})
	logUnsavedPayment(in.TransactionID, in.ActorID, receipt, err)
	return tx, err
}
