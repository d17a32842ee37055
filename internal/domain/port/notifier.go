package port

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventEscrowCreated            EventType = "escrow.created"
	EventEscrowFunded             EventType = "escrow.funded"
	EventMilestoneDelivered       EventType = "escrow.milestone_delivered"
	EventEscrowDelivered          EventType = "escrow.delivered"
	EventMilestoneAccepted        EventType = "escrow.milestone_accepted"
	EventEscrowCompleted          EventType = "escrow.completed"
	EventEscrowDisputed           EventType = "escrow.disputed"
	EventDisputeResolved          EventType = "escrow.dispute_resolved"
	EventEscrowCanceled           EventType = "escrow.canceled"
	EventEscrowExpired            EventType = "escrow.expired"
	EventInspectionDeadlinePassed EventType = "escrow.inspection_deadline_passed"
)

// Event — уведомление о событии сделки для покупателя и продавца.
type Event struct {
	Type          EventType  `json:"type"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	BuyerID       uuid.UUID  `json:"buyer_id"`
	SellerID      uuid.UUID  `json:"seller_id"`
	ActorID       *uuid.UUID `json:"actor_id,omitempty"`
	Status        string     `json:"status"`
	MilestoneID   *uuid.UUID `json:"milestone_id,omitempty"`
	DisputeID     *uuid.UUID `json:"dispute_id,omitempty"`
	Amount        string     `json:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

func (e Event) Recipients() []uuid.UUID {
	return []uuid.UUID{e.BuyerID, e.SellerID}
}

// Notifier доставляет события. Ошибка доставки не должна откатывать переход сделки.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
