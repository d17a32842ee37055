package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type Dispute struct {
	ID                  uuid.UUID
	TransactionID       uuid.UUID
	InitiatedBy         uuid.UUID
	InitiatorRole       valueobject.Party
	Reason              valueobject.DisputeReason
	Description         string
	Evidence            []string
	RequestedResolution valueobject.RequestedResolution
	Status              valueobject.DisputeStatus
	ResolutionOutcome   *valueobject.DisputeOutcome
	ResolutionNote      *string
	ResolvedBy          *uuid.UUID
	CreatedAt           time.Time
	ResolvedAt          *time.Time
}

type OpenDisputeParams struct {
	InitiatorID         uuid.UUID
	Reason              valueobject.DisputeReason
	Description         string
	Evidence            []string
	RequestedResolution valueobject.RequestedResolution
}

func (d *Dispute) IsOpen() bool {
	return d.Status == valueobject.DisputeStatusOpen
}

// OpenDispute открывает спор и переводит сделку в статус disputed.
func (t *EscrowTransaction) OpenDispute(p OpenDisputeParams, now time.Time) (*Dispute, error) {
	role, ok := t.PartyOf(p.InitiatorID)
	if !ok {
		return nil, apperror.ErrEscrowNotFound
	}
	if t.OpenDisputeRecord() != nil {
		return nil, apperror.ErrDisputeAlreadyOpen
	}
	if t.Status != valueobject.EscrowStatusFunded && t.Status != valueobject.EscrowStatusDelivered {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор можно открыть только по оплаченной или поставленной сделке")
	}
	if !p.Reason.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректная причина спора")
	}
	if !p.RequestedResolution.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректное требуемое решение спора")
	}
	description := strings.TrimSpace(p.Description)
	if description == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "описание спора обязательно")
	}

	if err := t.transition(valueobject.EscrowStatusDisputed, now); err != nil {
		return nil, err
	}

	evidence := make([]string, len(p.Evidence))
	copy(evidence, p.Evidence)
	t.Disputes = append(t.Disputes, Dispute{
		ID:                  uuid.New(),
		TransactionID:       t.ID,
		InitiatedBy:         p.InitiatorID,
		InitiatorRole:       role,
		Reason:              p.Reason,
		Description:         description,
		Evidence:            evidence,
		RequestedResolution: p.RequestedResolution,
		Status:              valueobject.DisputeStatusOpen,
		CreatedAt:           now,
	})
	return &t.Disputes[len(t.Disputes)-1], nil
}

// OpenDisputeRecord возвращает открытый спор сделки или nil.
func (t *EscrowTransaction) OpenDisputeRecord() *Dispute {
	for i := range t.Disputes {
		if t.Disputes[i].IsOpen() {
			return &t.Disputes[i]
		}
	}
	return nil
}

func (t *EscrowTransaction) FindDispute(id uuid.UUID) (*Dispute, error) {
	for i := range t.Disputes {
		if t.Disputes[i].ID == id {
			return &t.Disputes[i], nil
		}
	}
	return nil, apperror.ErrDisputeNotFound
}

// EnsureResolvable проверяет, что спор открыт и сделка ждёт решения арбитра.
func (t *EscrowTransaction) EnsureResolvable(disputeID uuid.UUID) (*Dispute, error) {
	d, err := t.FindDispute(disputeID)
	if err != nil {
		return nil, err
	}
	if !d.IsOpen() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор уже разрешён")
	}
	if t.Status != valueobject.EscrowStatusDisputed {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "сделка не находится в статусе спора")
	}
	return d, nil
}

// ResolveDispute закрывает спор решением арбитра. Денежная часть решения
// (выплата или возврат) должна быть проведена до вызова, её ссылка передаётся в reference.
func (t *EscrowTransaction) ResolveDispute(disputeID uuid.UUID, outcome valueobject.DisputeOutcome, arbiterID uuid.UUID, note *string, reference string, now time.Time) error {
	d, err := t.EnsureResolvable(disputeID)
	if err != nil {
		return err
	}

	switch outcome {
	case valueobject.OutcomeReleaseToSeller:
		err = t.Complete(reference, now)
	case valueobject.OutcomeRefundToBuyer:
		err = t.Cancel(reference, now)
	default:
		return apperror.New(apperror.ErrCodeValidation, "некорректное решение по спору")
	}
	if err != nil {
		return err
	}

	o := outcome
	arbiter := arbiterID
	d.Status = valueobject.DisputeStatusResolved
	d.ResolutionOutcome = &o
	d.ResolutionNote = cloneString(note)
	d.ResolvedBy = &arbiter
	d.ResolvedAt = &now
	return nil
}

func (d Dispute) clone() Dispute {
	if d.Evidence != nil {
		evidence := make([]string, len(d.Evidence))
		copy(evidence, d.Evidence)
		d.Evidence = evidence
	}
	if d.ResolutionOutcome != nil {
		o := *d.ResolutionOutcome
		d.ResolutionOutcome = &o
	}
	if d.ResolvedBy != nil {
		r := *d.ResolvedBy
		d.ResolvedBy = &r
	}
	d.ResolutionNote = cloneString(d.ResolutionNote)
	d.ResolvedAt = cloneTime(d.ResolvedAt)
	return d
}
