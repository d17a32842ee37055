package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

const (
	DefaultInspectionHours = 72
	MinInspectionHours     = 24
	MaxInspectionHours     = 720
	DefaultFundingWindow   = 7 * 24 * time.Hour
)

var (
	DefaultFeePercentage = decimal.RequireFromString("2.5")
	MaxFeePercentage     = decimal.NewFromInt(10)
)

// EscrowTransaction — сделка между покупателем и продавцом, средства по которой
// удерживаются до подтверждения получения или решения спора.
type EscrowTransaction struct {
	ID                    uuid.UUID
	BuyerID               uuid.UUID
	SellerID              uuid.UUID
	ItemType              valueobject.ItemType
	ItemTitle             string
	ItemDescription       string
	TotalAmount           decimal.Decimal
	Currency              string
	EscrowFee             decimal.Decimal
	EscrowFeePercentage   decimal.Decimal
	InspectionPeriodHours int
	Status                valueobject.EscrowStatus
	InsuranceRequired     bool
	InsuranceAmount       decimal.Decimal
	PaymentMethod         *string
	PaymentReference      *string
	PayoutReference       *string
	RefundReference       *string
	BuyerRating           *int
	BuyerFeedback         *string
	FundedAt              *time.Time
	DeliveredAt           *time.Time
	InspectionDeadline    *time.Time
	InspectionReportedAt  *time.Time
	CompletedAt           *time.Time
	CanceledAt            *time.Time
	ExpiresAt             time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Version               int64

	Milestones []Milestone
	Disputes   []Dispute
}

type NewEscrowParams struct {
	BuyerID               uuid.UUID
	SellerID              uuid.UUID
	ItemType              string
	ItemTitle             string
	ItemDescription       string
	TotalAmount           decimal.Decimal
	Currency              string
	FeePercentage         *decimal.Decimal
	InspectionPeriodHours *int
	InsuranceRequired     bool
	InsuranceAmount       decimal.Decimal
	FundingWindow         time.Duration
}

func NewEscrowTransaction(p NewEscrowParams, now time.Time) (*EscrowTransaction, error) {
	if p.BuyerID == uuid.Nil || p.SellerID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "покупатель и продавец обязательны")
	}
	if p.BuyerID == p.SellerID {
		return nil, apperror.New(apperror.ErrCodeInvalidParticipants, "покупатель и продавец должны быть разными пользователями")
	}
	if !p.TotalAmount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeInvalidAmount, "сумма сделки должна быть больше нуля")
	}

	itemType, err := valueobject.NewItemType(p.ItemType)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(p.ItemTitle)
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название предмета сделки обязательно")
	}

	total, err := valueobject.NewMoney(p.TotalAmount, p.Currency)
	if err != nil {
		return nil, err
	}
	if !total.Amount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeInvalidAmount, "сумма сделки должна быть больше нуля")
	}

	feePercentage := DefaultFeePercentage
	if p.FeePercentage != nil {
		feePercentage = *p.FeePercentage
	}
	if feePercentage.IsNegative() || feePercentage.GreaterThan(MaxFeePercentage) {
		return nil, apperror.New(apperror.ErrCodeValidation, "комиссия escrow должна быть в диапазоне от 0 до 10 процентов")
	}

	inspectionHours := DefaultInspectionHours
	if p.InspectionPeriodHours != nil {
		inspectionHours = *p.InspectionPeriodHours
	}
	if inspectionHours < MinInspectionHours || inspectionHours > MaxInspectionHours {
		return nil, apperror.New(apperror.ErrCodeValidation, "период проверки должен быть от 24 до 720 часов")
	}

	if p.InsuranceAmount.IsNegative() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма страховки не может быть отрицательной")
	}

	window := p.FundingWindow
	if window <= 0 {
		window = DefaultFundingWindow
	}

	return &EscrowTransaction{
		ID:                    uuid.New(),
		BuyerID:               p.BuyerID,
		SellerID:              p.SellerID,
		ItemType:              itemType,
		ItemTitle:             title,
		ItemDescription:       strings.TrimSpace(p.ItemDescription),
		TotalAmount:           total.Amount,
		Currency:              total.Currency,
		EscrowFee:             valueobject.CalculateFee(total.Amount, feePercentage),
		EscrowFeePercentage:   feePercentage,
		InspectionPeriodHours: inspectionHours,
		Status:                valueobject.EscrowStatusPendingFunding,
		InsuranceRequired:     p.InsuranceRequired,
		InsuranceAmount:       valueobject.RoundAmount(p.InsuranceAmount),
		ExpiresAt:             now.Add(window),
		CreatedAt:             now,
		UpdatedAt:             now,
		Version:               1,
	}, nil
}

func (t *EscrowTransaction) IsBuyer(userID uuid.UUID) bool {
	return t.BuyerID == userID
}

func (t *EscrowTransaction) IsSeller(userID uuid.UUID) bool {
	return t.SellerID == userID
}

func (t *EscrowTransaction) IsParticipant(userID uuid.UUID) bool {
	return t.IsBuyer(userID) || t.IsSeller(userID)
}

// PartyOf возвращает сторону сделки пользователя или false, если он не участник.
func (t *EscrowTransaction) PartyOf(userID uuid.UUID) (valueobject.Party, bool) {
	switch {
	case t.IsBuyer(userID):
		return valueobject.PartyBuyer, true
	case t.IsSeller(userID):
		return valueobject.PartySeller, true
	}
	return "", false
}

// FundingAmount — сумма списания с покупателя: сумма сделки плюс комиссия.
func (t *EscrowTransaction) FundingAmount() decimal.Decimal {
	return t.TotalAmount.Add(t.EscrowFee)
}

func (t *EscrowTransaction) transition(to valueobject.EscrowStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(to) {
		return apperror.Newf(apperror.ErrCodeInvalidState,
			"переход сделки из статуса %s в статус %s невозможен", t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = now
	return nil
}

// IsExpired сообщает, что окно оплаты истекло, а сделка всё ещё ждёт оплаты.
func (t *EscrowTransaction) IsExpired(now time.Time) bool {
	return t.Status == valueobject.EscrowStatusPendingFunding && now.After(t.ExpiresAt)
}

func (t *EscrowTransaction) Expire(now time.Time) error {
	if !t.IsExpired(now) {
		return apperror.New(apperror.ErrCodeInvalidState, "срок оплаты сделки ещё не истёк")
	}
	return t.transition(valueobject.EscrowStatusExpired, now)
}

// EnsureFundable проверяет, что сделку можно оплатить прямо сейчас.
func (t *EscrowTransaction) EnsureFundable(now time.Time) error {
	if t.Status == valueobject.EscrowStatusExpired || t.IsExpired(now) {
		return apperror.New(apperror.ErrCodeInvalidState, "срок оплаты сделки истёк")
	}
	if t.Status != valueobject.EscrowStatusPendingFunding {
		return apperror.New(apperror.ErrCodeInvalidState, "сделка уже оплачена или закрыта")
	}
	return nil
}

func (t *EscrowTransaction) MarkFunded(paymentMethod, paymentReference string, now time.Time) error {
	if err := t.EnsureFundable(now); err != nil {
		return err
	}
	if err := t.transition(valueobject.EscrowStatusFunded, now); err != nil {
		return err
	}
	t.PaymentMethod = &paymentMethod
	t.PaymentReference = &paymentReference
	t.FundedAt = &now
	return nil
}

// MarkDelivered отмечает поставку этапа (или всех ожидающих этапов, если milestoneID == nil).
// Возвращает true, когда вся сделка перешла в статус delivered.
func (t *EscrowTransaction) MarkDelivered(milestoneID *uuid.UUID, notes, proof *string, now time.Time) (bool, error) {
	if t.Status != valueobject.EscrowStatusFunded {
		return false, apperror.New(apperror.ErrCodeInvalidState, "отметить поставку можно только для оплаченной сделки")
	}

	if milestoneID != nil {
		m, err := t.milestone(*milestoneID)
		if err != nil {
			return false, err
		}
		if err := m.deliver(notes, proof, now); err != nil {
			return false, err
		}
	} else {
		for i := range t.Milestones {
			if t.Milestones[i].Status == valueobject.MilestoneStatusPending {
				if err := t.Milestones[i].deliver(notes, proof, now); err != nil {
					return false, err
				}
			}
		}
	}

	t.UpdatedAt = now
	if !t.allMilestonesPast(valueobject.MilestoneStatusPending) {
		return false, nil
	}

	if err := t.transition(valueobject.EscrowStatusDelivered, now); err != nil {
		return false, err
	}
	deadline := now.Add(time.Duration(t.InspectionPeriodHours) * time.Hour)
	t.DeliveredAt = &now
	t.InspectionDeadline = &deadline
	t.InspectionReportedAt = nil
	return true, nil
}

// MarkAccepted принимает этап (или все поставленные этапы, если milestoneID == nil).
// Возвращает true, когда приняты все этапы и сделку можно завершать выплатой.
// Статус сделки при этом не меняется, см. Complete.
func (t *EscrowTransaction) MarkAccepted(milestoneID *uuid.UUID, now time.Time) (bool, error) {
	if t.Status != valueobject.EscrowStatusDelivered {
		return false, apperror.New(apperror.ErrCodeInvalidState, "принять можно только поставленную сделку")
	}

	if milestoneID != nil {
		m, err := t.milestone(*milestoneID)
		if err != nil {
			return false, err
		}
		if err := m.accept(now); err != nil {
			return false, err
		}
	} else {
		for i := range t.Milestones {
			if t.Milestones[i].Status == valueobject.MilestoneStatusDelivered {
				if err := t.Milestones[i].accept(now); err != nil {
					return false, err
				}
			}
		}
	}

	t.UpdatedAt = now
	return t.allMilestonesIn(valueobject.MilestoneStatusAccepted), nil
}

// SetFeedback сохраняет оценку покупателя. Пустые значения игнорируются.
func (t *EscrowTransaction) SetFeedback(rating *int, comment *string) error {
	if rating != nil {
		if *rating < 1 || *rating > 5 {
			return apperror.New(apperror.ErrCodeValidation, "оценка должна быть от 1 до 5")
		}
		r := *rating
		t.BuyerRating = &r
	}
	if comment != nil {
		c := strings.TrimSpace(*comment)
		if c != "" {
			t.BuyerFeedback = &c
		}
	}
	return nil
}

// Complete завершает сделку после успешной выплаты продавцу.
func (t *EscrowTransaction) Complete(payoutReference string, now time.Time) error {
	if err := t.transition(valueobject.EscrowStatusCompleted, now); err != nil {
		return err
	}
	t.PayoutReference = &payoutReference
	t.CompletedAt = &now
	return nil
}

// Cancel отменяет спорную сделку после возврата средств покупателю.
func (t *EscrowTransaction) Cancel(refundReference string, now time.Time) error {
	if err := t.transition(valueobject.EscrowStatusCanceled, now); err != nil {
		return err
	}
	t.RefundReference = &refundReference
	t.CanceledAt = &now
	return nil
}

// InspectionDeadlinePassed сообщает, что период проверки истёк без решения покупателя.
func (t *EscrowTransaction) InspectionDeadlinePassed(now time.Time) bool {
	return t.Status == valueobject.EscrowStatusDelivered &&
		t.InspectionDeadline != nil &&
		now.After(*t.InspectionDeadline)
}

// InspectionReportDue сообщает, что период проверки истёк и об этом ещё не сообщали.
func (t *EscrowTransaction) InspectionReportDue(now time.Time) bool {
	return t.InspectionDeadlinePassed(now) && t.InspectionReportedAt == nil
}

// MarkInspectionReported фиксирует, что о просроченной проверке уже сообщили.
func (t *EscrowTransaction) MarkInspectionReported(now time.Time) error {
	if !t.InspectionReportDue(now) {
		return apperror.New(apperror.ErrCodeInvalidState, "период проверки сделки не истёк или уже обработан")
	}
	t.InspectionReportedAt = &now
	t.UpdatedAt = now
	return nil
}

func (t *EscrowTransaction) milestone(id uuid.UUID) (*Milestone, error) {
	for i := range t.Milestones {
		if t.Milestones[i].ID == id {
			return &t.Milestones[i], nil
		}
	}
	return nil, apperror.ErrMilestoneNotFound
}

func (t *EscrowTransaction) allMilestonesIn(status valueobject.MilestoneStatus) bool {
	if len(t.Milestones) == 0 {
		return false
	}
	for _, m := range t.Milestones {
		if m.Status != status {
			return false
		}
	}
	return true
}

func (t *EscrowTransaction) allMilestonesPast(status valueobject.MilestoneStatus) bool {
	if len(t.Milestones) == 0 {
		return false
	}
	for _, m := range t.Milestones {
		if m.Status == status {
			return false
		}
	}
	return true
}

// Clone возвращает глубокую копию сделки вместе с этапами и спорами.
func (t *EscrowTransaction) Clone() *EscrowTransaction {
	c := *t
	c.PaymentMethod = cloneString(t.PaymentMethod)
	c.PaymentReference = cloneString(t.PaymentReference)
	c.PayoutReference = cloneString(t.PayoutReference)
	c.RefundReference = cloneString(t.RefundReference)
	c.BuyerFeedback = cloneString(t.BuyerFeedback)
	if t.BuyerRating != nil {
		r := *t.BuyerRating
		c.BuyerRating = &r
	}
	c.FundedAt = cloneTime(t.FundedAt)
	c.DeliveredAt = cloneTime(t.DeliveredAt)
	c.InspectionDeadline = cloneTime(t.InspectionDeadline)
	c.InspectionReportedAt = cloneTime(t.InspectionReportedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.CanceledAt = cloneTime(t.CanceledAt)

	c.Milestones = make([]Milestone, len(t.Milestones))
	for i, m := range t.Milestones {
		c.Milestones[i] = m.clone()
	}
	c.Disputes = make([]Dispute, len(t.Disputes))
	for i, d := range t.Disputes {
		c.Disputes[i] = d.clone()
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(tm *time.Time) *time.Time {
	if tm == nil {
		return nil
	}
	v := *tm
	return &v
}
