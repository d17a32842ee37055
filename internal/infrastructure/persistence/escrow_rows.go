package persistence

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

const escrowColumns = `id, buyer_id, seller_id, item_type, item_title, item_description,
	total_amount, currency, escrow_fee, escrow_fee_percentage, inspection_period_hours, status,
	insurance_required, insurance_amount, payment_method, payment_reference, payout_reference,
	refund_reference, buyer_rating, buyer_feedback, funded_at, delivered_at, inspection_deadline,
	completed_at, canceled_at, expires_at, created_at, updated_at, version, inspection_reported_at`

const milestoneColumns = `id, transaction_id, title, description, amount, position, status,
	delivery_notes, delivery_proof, delivered_at, accepted_at, created_at, updated_at`

const disputeColumns = `id, transaction_id, initiated_by, initiator_role, reason, description,
	evidence, requested_resolution, status, resolution_outcome, resolution_note, resolved_by,
	created_at, resolved_at`

type escrowRow struct {
	ID                    uuid.UUID       `db:"id"`
	BuyerID               uuid.UUID       `db:"buyer_id"`
	SellerID              uuid.UUID       `db:"seller_id"`
	ItemType              string          `db:"item_type"`
	ItemTitle             string          `db:"item_title"`
	ItemDescription       string          `db:"item_description"`
	TotalAmount           decimal.Decimal `db:"total_amount"`
	Currency              string          `db:"currency"`
	EscrowFee             decimal.Decimal `db:"escrow_fee"`
	EscrowFeePercentage   decimal.Decimal `db:"escrow_fee_percentage"`
	InspectionPeriodHours int             `db:"inspection_period_hours"`
	Status                string          `db:"status"`
	InsuranceRequired     bool            `db:"insurance_required"`
	InsuranceAmount       decimal.Decimal `db:"insurance_amount"`
	PaymentMethod         *string         `db:"payment_method"`
	PaymentReference      *string         `db:"payment_reference"`
	PayoutReference       *string         `db:"payout_reference"`
	RefundReference       *string         `db:"refund_reference"`
	BuyerRating           *int            `db:"buyer_rating"`
	BuyerFeedback         *string         `db:"buyer_feedback"`
	FundedAt              *time.Time      `db:"funded_at"`
	DeliveredAt           *time.Time      `db:"delivered_at"`
	InspectionDeadline    *time.Time      `db:"inspection_deadline"`
	CompletedAt           *time.Time      `db:"completed_at"`
	CanceledAt            *time.Time      `db:"canceled_at"`
	ExpiresAt             time.Time       `db:"expires_at"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
	Version               int64           `db:"version"`
	InspectionReportedAt  *time.Time      `db:"inspection_reported_at"`
}

type milestoneRow struct {
	ID            uuid.UUID       `db:"id"`
	TransactionID uuid.UUID       `db:"transaction_id"`
	Title         string          `db:"title"`
	Description   string          `db:"description"`
	Amount        decimal.Decimal `db:"amount"`
	Position      int             `db:"position"`
	Status        string          `db:"status"`
	DeliveryNotes *string         `db:"delivery_notes"`
	DeliveryProof *string         `db:"delivery_proof"`
	DeliveredAt   *time.Time      `db:"delivered_at"`
	AcceptedAt    *time.Time      `db:"accepted_at"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

type disputeRow struct {
	ID                  uuid.UUID      `db:"id"`
	TransactionID       uuid.UUID      `db:"transaction_id"`
	InitiatedBy         uuid.UUID      `db:"initiated_by"`
	InitiatorRole       string         `db:"initiator_role"`
	Reason              string         `db:"reason"`
	Description         string         `db:"description"`
	Evidence            pq.StringArray `db:"evidence"`
	RequestedResolution string         `db:"requested_resolution"`
	Status              string         `db:"status"`
	ResolutionOutcome   *string        `db:"resolution_outcome"`
	ResolutionNote      *string        `db:"resolution_note"`
	ResolvedBy          *uuid.UUID     `db:"resolved_by"`
	CreatedAt           time.Time      `db:"created_at"`
	ResolvedAt          *time.Time     `db:"resolved_at"`
}

func toEscrowRow(t *entity.EscrowTransaction) escrowRow {
	return escrowRow{
		ID:                    t.ID,
		BuyerID:               t.BuyerID,
		SellerID:              t.SellerID,
		ItemType:              string(t.ItemType),
		ItemTitle:             t.ItemTitle,
		ItemDescription:       t.ItemDescription,
		TotalAmount:           t.TotalAmount,
		Currency:              t.Currency,
		EscrowFee:             t.EscrowFee,
		EscrowFeePercentage:   t.EscrowFeePercentage,
		InspectionPeriodHours: t.InspectionPeriodHours,
		Status:                string(t.Status),
		InsuranceRequired:     t.InsuranceRequired,
		InsuranceAmount:       t.InsuranceAmount,
		PaymentMethod:         t.PaymentMethod,
		PaymentReference:      t.PaymentReference,
		PayoutReference:       t.PayoutReference,
		RefundReference:       t.RefundReference,
		BuyerRating:           t.BuyerRating,
		BuyerFeedback:         t.BuyerFeedback,
		FundedAt:              t.FundedAt,
		DeliveredAt:           t.DeliveredAt,
		InspectionDeadline:    t.InspectionDeadline,
		CompletedAt:           t.CompletedAt,
		CanceledAt:            t.CanceledAt,
		ExpiresAt:             t.ExpiresAt,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		Version:               t.Version,
		InspectionReportedAt:  t.InspectionReportedAt,
	}
}

func (r escrowRow) toEntity(milestones []milestoneRow, disputes []disputeRow) *entity.EscrowTransaction {
	t := &entity.EscrowTransaction{
		ID:                    r.ID,
		BuyerID:               r.BuyerID,
		SellerID:              r.SellerID,
		ItemType:              valueobject.ItemType(r.ItemType),
		ItemTitle:             r.ItemTitle,
		ItemDescription:       r.ItemDescription,
		TotalAmount:           r.TotalAmount,
		Currency:              r.Currency,
		EscrowFee:             r.EscrowFee,
		EscrowFeePercentage:   r.EscrowFeePercentage,
		InspectionPeriodHours: r.InspectionPeriodHours,
		Status:                valueobject.EscrowStatus(r.Status),
		InsuranceRequired:     r.InsuranceRequired,
		InsuranceAmount:       r.InsuranceAmount,
		PaymentMethod:         r.PaymentMethod,
		PaymentReference:      r.PaymentReference,
		PayoutReference:       r.PayoutReference,
		RefundReference:       r.RefundReference,
		BuyerRating:           r.BuyerRating,
		BuyerFeedback:         r.BuyerFeedback,
		FundedAt:              r.FundedAt,
		DeliveredAt:           r.DeliveredAt,
		InspectionDeadline:    r.InspectionDeadline,
		CompletedAt:           r.CompletedAt,
		CanceledAt:            r.CanceledAt,
		ExpiresAt:             r.ExpiresAt,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
		Version:               r.Version,
		InspectionReportedAt:  r.InspectionReportedAt,
		Milestones:            make([]entity.Milestone, 0, len(milestones)),
		Disputes:              make([]entity.Dispute, 0, len(disputes)),
	}
	for _, m := range milestones {
		t.Milestones = append(t.Milestones, m.toEntity())
	}
	for _, d := range disputes {
		t.Disputes = append(t.Disputes, d.toEntity())
	}
	return t
}

func toMilestoneRow(m entity.Milestone) milestoneRow {
	return milestoneRow{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		Title:         m.Title,
		Description:   m.Description,
		Amount:        m.Amount,
		Position:      m.Order,
		Status:        string(m.Status),
		DeliveryNotes: m.DeliveryNotes,
		DeliveryProof: m.DeliveryProof,
		DeliveredAt:   m.DeliveredAt,
		AcceptedAt:    m.AcceptedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (r milestoneRow) toEntity() entity.Milestone {
	return entity.Milestone{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		Title:         r.Title,
		Description:   r.Description,
		Amount:        r.Amount,
		Order:         r.Position,
		Status:        valueobject.MilestoneStatus(r.Status),
		DeliveryNotes: r.DeliveryNotes,
		DeliveryProof: r.DeliveryProof,
		DeliveredAt:   r.DeliveredAt,
		AcceptedAt:    r.AcceptedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toDisputeRow(d entity.Dispute) disputeRow {
	row := disputeRow{
		ID:                  d.ID,
		TransactionID:       d.TransactionID,
		InitiatedBy:         d.InitiatedBy,
		InitiatorRole:       string(d.InitiatorRole),
		Reason:              string(d.Reason),
		Description:         d.Description,
		Evidence:            pq.StringArray(d.Evidence),
		RequestedResolution: string(d.RequestedResolution),
		Status:              string(d.Status),
		ResolutionNote:      d.ResolutionNote,
		ResolvedBy:          d.ResolvedBy,
		CreatedAt:           d.CreatedAt,
		ResolvedAt:          d.ResolvedAt,
	}
	if row.Evidence == nil {
		row.Evidence = pq.StringArray{}
	}
	if d.ResolutionOutcome != nil {
		outcome := string(*d.ResolutionOutcome)
		row.ResolutionOutcome = &outcome
	}
	return row
}

func (r disputeRow) toEntity() entity.Dispute {
	d := entity.Dispute{
		ID:                  r.ID,
		TransactionID:       r.TransactionID,
		InitiatedBy:         r.InitiatedBy,
		InitiatorRole:       valueobject.Party(r.InitiatorRole),
		Reason:              valueobject.DisputeReason(r.Reason),
		Description:         r.Description,
		Evidence:            []string(r.Evidence),
		RequestedResolution: valueobject.RequestedResolution(r.RequestedResolution),
		Status:              valueobject.DisputeStatus(r.Status),
		ResolutionNote:      r.ResolutionNote,
		ResolvedBy:          r.ResolvedBy,
		CreatedAt:           r.CreatedAt,
		ResolvedAt:          r.ResolvedAt,
	}
	if d.Evidence == nil {
		d.Evidence = []string{}
	}
	if r.ResolutionOutcome != nil {
		outcome := valueobject.DisputeOutcome(*r.ResolutionOutcome)
		d.ResolutionOutcome = &outcome
	}
	return d
}
