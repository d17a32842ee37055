package valueobject

import "github.com/ignatzorin/escrow-backend/internal/pkg/apperror"

type EscrowStatus string

const (
	EscrowStatusPendingFunding EscrowStatus = "pending_funding"
	EscrowStatusFunded         EscrowStatus = "funded"
	EscrowStatusDelivered      EscrowStatus = "delivered"
	EscrowStatusCompleted      EscrowStatus = "completed"
	EscrowStatusDisputed       EscrowStatus = "disputed"
	EscrowStatusCanceled       EscrowStatus = "canceled"
	EscrowStatusExpired        EscrowStatus = "expired"
)

// escrowTransitions содержит все допустимые переходы статусов сделки.
// Статусы без исходящих рёбер считаются терминальными.
var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusPendingFunding: {EscrowStatusFunded, EscrowStatusExpired},
	EscrowStatusFunded:         {EscrowStatusDelivered, EscrowStatusDisputed},
	EscrowStatusDelivered:      {EscrowStatusCompleted, EscrowStatusDisputed},
	EscrowStatusDisputed:       {EscrowStatusCompleted, EscrowStatusCanceled},
	EscrowStatusCompleted:      {},
	EscrowStatusCanceled:       {},
	EscrowStatusExpired:        {},
}

// AllEscrowStatuses возвращает статусы в порядке жизненного цикла.
func AllEscrowStatuses() []EscrowStatus {
	return []EscrowStatus{
		EscrowStatusPendingFunding,
		EscrowStatusFunded,
		EscrowStatusDelivered,
		EscrowStatusCompleted,
		EscrowStatusDisputed,
		EscrowStatusCanceled,
		EscrowStatusExpired,
	}
}

func (s EscrowStatus) IsValid() bool {
	_, ok := escrowTransitions[s]
	return ok
}

func (s EscrowStatus) IsTerminal() bool {
	allowed, ok := escrowTransitions[s]
	return ok && len(allowed) == 0
}

func (s EscrowStatus) CanTransitionTo(newStatus EscrowStatus) bool {
	for _, status := range escrowTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func (s EscrowStatus) String() string {
	return string(s)
}

func NewEscrowStatus(status string) (EscrowStatus, error) {
	s := EscrowStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус сделки")
	}
	return s, nil
}

type MilestoneStatus string

const (
	MilestoneStatusPending   MilestoneStatus = "pending"
	MilestoneStatusDelivered MilestoneStatus = "delivered"
	MilestoneStatusAccepted  MilestoneStatus = "accepted"
)

func (s MilestoneStatus) IsValid() bool {
	switch s {
	case MilestoneStatusPending, MilestoneStatusDelivered, MilestoneStatusAccepted:
		return true
	}
	return false
}

func (s MilestoneStatus) CanTransitionTo(newStatus MilestoneStatus) bool {
	switch s {
	case MilestoneStatusPending:
		return newStatus == MilestoneStatusDelivered
	case MilestoneStatusDelivered:
		return newStatus == MilestoneStatusAccepted
	}
	return false
}

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

func (s DisputeStatus) IsValid() bool {
	return s == DisputeStatusOpen || s == DisputeStatusResolved
}
