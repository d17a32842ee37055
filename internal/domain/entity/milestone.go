package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

const DefaultMilestoneTitle = "Full Payment"

type Milestone struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Title         string
	Description   string
	Amount        decimal.Decimal
	Order         int
	Status        valueobject.MilestoneStatus
	DeliveryNotes *string
	DeliveryProof *string
	DeliveredAt   *time.Time
	AcceptedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type MilestoneInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
}

// AttachMilestones создаёт этапы сделки. Без входных этапов создаётся один этап
// на всю сумму. Сумма этапов обязана совпадать с суммой сделки.
func (t *EscrowTransaction) AttachMilestones(inputs []MilestoneInput, now time.Time) error {
	if len(t.Milestones) > 0 {
		return apperror.New(apperror.ErrCodeInvalidState, "этапы сделки уже созданы")
	}

	if len(inputs) == 0 {
		inputs = []MilestoneInput{{
			Title:       DefaultMilestoneTitle,
			Description: t.ItemDescription,
			Amount:      t.TotalAmount,
		}}
	}

	sum := decimal.Zero
	milestones := make([]Milestone, 0, len(inputs))
	for i, in := range inputs {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			return apperror.Newf(apperror.ErrCodeValidation, "название этапа %d обязательно", i+1)
		}
		if in.Amount.IsNegative() {
			return apperror.Newf(apperror.ErrCodeInvalidAmount, "сумма этапа %d не может быть отрицательной", i+1)
		}
		amount := valueobject.RoundAmount(in.Amount)
		sum = sum.Add(amount)
		milestones = append(milestones, Milestone{
			ID:            uuid.New(),
			TransactionID: t.ID,
			Title:         title,
			Description:   strings.TrimSpace(in.Description),
			Amount:        amount,
			Order:         i + 1,
			Status:        valueobject.MilestoneStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if !sum.Equal(t.TotalAmount) {
		return apperror.Newf(apperror.ErrCodeMilestoneMismatch,
			"сумма этапов (%s) не совпадает с суммой сделки (%s)", sum.StringFixed(2), t.TotalAmount.StringFixed(2))
	}

	t.Milestones = milestones
	return nil
}

func (m *Milestone) deliver(notes, proof *string, now time.Time) error {
	if !m.Status.CanTransitionTo(valueobject.MilestoneStatusDelivered) {
		return apperror.Newf(apperror.ErrCodeInvalidState, "этап «%s» уже поставлен", m.Title)
	}
	m.Status = valueobject.MilestoneStatusDelivered
	m.DeliveredAt = &now
	m.DeliveryNotes = cloneString(notes)
	m.DeliveryProof = cloneString(proof)
	m.UpdatedAt = now
	return nil
}

func (m *Milestone) accept(now time.Time) error {
	if !m.Status.CanTransitionTo(valueobject.MilestoneStatusAccepted) {
		return apperror.Newf(apperror.ErrCodeInvalidState, "этап «%s» нельзя принять в статусе %s", m.Title, m.Status)
	}
	m.Status = valueobject.MilestoneStatusAccepted
	m.AcceptedAt = &now
	m.UpdatedAt = now
	return nil
}

func (m Milestone) clone() Milestone {
	m.DeliveryNotes = cloneString(m.DeliveryNotes)
	m.DeliveryProof = cloneString(m.DeliveryProof)
	m.DeliveredAt = cloneTime(m.DeliveredAt)
	m.AcceptedAt = cloneTime(m.AcceptedAt)
	return m
}
