package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/port"
	"github.com/ignatzorin/escrow-backend/internal/logger"
)

type CreateInput struct {
	BuyerID               uuid.UUID
	SellerID              uuid.UUID
	ItemType              string
	ItemTitle             string
	ItemDescription       string
	TotalAmount           decimal.Decimal
	Currency              string
	FeePercentage         *decimal.Decimal
	InspectionPeriodHours *int
	Milestones            []MilestoneInput
	InsuranceRequired     bool
	InsuranceAmount       decimal.Decimal
}

type MilestoneInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
}

// Create создаёт сделку в статусе pending_funding вместе с этапами.
// Покупателем всегда выступает текущий пользователь.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*entity.EscrowTransaction, error) {
	now := e.clock.Now()

	fee := in.FeePercentage
	if fee == nil {
		def := e.cfg.DefaultFeePercentage
		fee = &def
	}
	hours := in.InspectionPeriodHours
	if hours == nil {
		def := e.cfg.DefaultInspectionHours
		hours = &def
	}

	tx, err := entity.NewEscrowTransaction(entity.NewEscrowParams{
		BuyerID:               in.BuyerID,
		SellerID:              in.SellerID,
		ItemType:              in.ItemType,
		ItemTitle:             in.ItemTitle,
		ItemDescription:       in.ItemDescription,
		TotalAmount:           in.TotalAmount,
		Currency:              in.Currency,
		FeePercentage:         fee,
		InspectionPeriodHours: hours,
		InsuranceRequired:     in.InsuranceRequired,
		InsuranceAmount:       in.InsuranceAmount,
		FundingWindow:         e.cfg.FundingWindow,
	}, now)
	if err != nil {
		return nil, err
	}

	milestones := make([]entity.MilestoneInput, 0, len(in.Milestones))
	for _, m := range in.Milestones {
		milestones = append(milestones, entity.MilestoneInput{
			Title:       m.Title,
			Description: m.Description,
			Amount:      m.Amount,
		})
	}
	if err := tx.AttachMilestones(milestones, now); err != nil {
		return nil, err
	}

	if err := e.repo.Create(ctx, tx); err != nil {
		return nil, err
	}

	logger.Escrow(tx.ID, in.BuyerID).
		WithField("amount", tx.TotalAmount.String()).
		WithField("currency", tx.Currency).
		Info("сделка создана")

	buyer := in.BuyerID
	ev := newEvent(port.EventEscrowCreated, tx, &buyer, now)
	ev.Amount = tx.TotalAmount.StringFixed(2)
	ev.Currency = tx.Currency
	e.afterChange(ctx, tx, tx.Status, buyer, []port.Event{ev})
	return tx, nil
}
