package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
)

// CreateEscrowRequest — тело POST /escrow. Покупателем всегда становится текущий пользователь.
type CreateEscrowRequest struct {
	SellerID              string             `json:"seller_id" binding:"required,uuid"`
	ItemType              string             `json:"item_type" binding:"required"`
	ItemTitle             string             `json:"item_title" binding:"required"`
	ItemDescription       string             `json:"item_description"`
	TotalAmount           decimal.Decimal    `json:"total_amount"`
	Currency              string             `json:"currency" binding:"required,len=3"`
	EscrowFeePercentage   *decimal.Decimal   `json:"escrow_fee_percentage"`
	InspectionPeriodHours *int               `json:"inspection_period_hours"`
	Milestones            []MilestoneRequest `json:"milestones" binding:"omitempty,dive"`
	InsuranceRequired     bool               `json:"insurance_required"`
	InsuranceAmount       *decimal.Decimal   `json:"insurance_amount"`
}

type MilestoneRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type FundEscrowRequest struct {
	PaymentMethod  string            `json:"payment_method" binding:"required"`
	PaymentDetails map[string]string `json:"payment_details"`
}

type DeliverEscrowRequest struct {
	DeliveryNotes *string `json:"delivery_notes"`
	DeliveryProof *string `json:"delivery_proof"`
	MilestoneID   *string `json:"milestone_id" binding:"omitempty,uuid"`
}

type AcceptEscrowRequest struct {
	FeedbackRating  *int    `json:"feedback_rating" binding:"omitempty,min=1,max=5"`
	FeedbackComment *string `json:"feedback_comment"`
	MilestoneID     *string `json:"milestone_id" binding:"omitempty,uuid"`
}

type OpenDisputeRequest struct {
	Reason              string   `json:"reason" binding:"required"`
	Description         string   `json:"description" binding:"required"`
	Evidence            []string `json:"evidence"`
	RequestedResolution string   `json:"requested_resolution" binding:"required"`
}

// ResolveDisputeRequest — решение арбитра по спору.
type ResolveDisputeRequest struct {
	Outcome string  `json:"outcome" binding:"required,oneof=release_to_seller refund_to_buyer"`
	Note    *string `json:"note"`
}

type EscrowResponse struct {
	ID                    uuid.UUID           `json:"id"`
	BuyerID               uuid.UUID           `json:"buyer_id"`
	SellerID              uuid.UUID           `json:"seller_id"`
	ItemType              string              `json:"item_type"`
	ItemTitle             string              `json:"item_title"`
	ItemDescription       string              `json:"item_description"`
	TotalAmount           string              `json:"total_amount"`
	Currency              string              `json:"currency"`
	EscrowFee             string              `json:"escrow_fee"`
	EscrowFeePercentage   string              `json:"escrow_fee_percentage"`
	InspectionPeriodHours int                 `json:"inspection_period_hours"`
	Status                string              `json:"status"`
	InsuranceRequired     bool                `json:"insurance_required"`
	InsuranceAmount       string              `json:"insurance_amount"`
	PaymentMethod         *string             `json:"payment_method,omitempty"`
	PaymentReference      *string             `json:"payment_reference,omitempty"`
	PayoutReference       *string             `json:"payout_reference,omitempty"`
	RefundReference       *string             `json:"refund_reference,omitempty"`
	BuyerRating           *int                `json:"buyer_rating,omitempty"`
	BuyerFeedback         *string             `json:"buyer_feedback,omitempty"`
	FundedAt              *time.Time          `json:"funded_at,omitempty"`
	DeliveredAt           *time.Time          `json:"delivered_at,omitempty"`
	InspectionDeadline    *time.Time          `json:"inspection_deadline,omitempty"`
	CompletedAt           *time.Time          `json:"completed_at,omitempty"`
	CanceledAt            *time.Time          `json:"canceled_at,omitempty"`
	ExpiresAt             time.Time           `json:"expires_at"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	Milestones            []MilestoneResponse `json:"milestones"`
	Disputes              []DisputeResponse   `json:"disputes"`
}

type MilestoneResponse struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Amount        string     `json:"amount"`
	Order         int        `json:"order"`
	Status        string     `json:"status"`
	DeliveryNotes *string    `json:"delivery_notes,omitempty"`
	DeliveryProof *string    `json:"delivery_proof,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
}

type DisputeResponse struct {
	ID                  uuid.UUID  `json:"id"`
	InitiatedBy         uuid.UUID  `json:"initiated_by"`
	InitiatorRole       string     `json:"initiator_role"`
	Reason              string     `json:"reason"`
	Description         string     `json:"description"`
	Evidence            []string   `json:"evidence"`
	RequestedResolution string     `json:"requested_resolution"`
	Status              string     `json:"status"`
	ResolutionOutcome   *string    `json:"resolution_outcome,omitempty"`
	ResolutionNote      *string    `json:"resolution_note,omitempty"`
	ResolvedBy          *uuid.UUID `json:"resolved_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
}

func ToEscrowResponse(t *entity.EscrowTransaction) EscrowResponse {
	resp := EscrowResponse{
		ID:                    t.ID,
		BuyerID:               t.BuyerID,
		SellerID:              t.SellerID,
		ItemType:              string(t.ItemType),
		ItemTitle:             t.ItemTitle,
		ItemDescription:       t.ItemDescription,
		TotalAmount:           t.TotalAmount.StringFixed(2),
		Currency:              t.Currency,
		EscrowFee:             t.EscrowFee.StringFixed(2),
		EscrowFeePercentage:   t.EscrowFeePercentage.String(),
		InspectionPeriodHours: t.InspectionPeriodHours,
		Status:                string(t.Status),
		InsuranceRequired:     t.InsuranceRequired,
		InsuranceAmount:       t.InsuranceAmount.StringFixed(2),
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
		Milestones:            make([]MilestoneResponse, 0, len(t.Milestones)),
		Disputes:              make([]DisputeResponse, 0, len(t.Disputes)),
	}
	for _, m := range t.Milestones {
		resp.Milestones = append(resp.Milestones, ToMilestoneResponse(m))
	}
	for _, d := range t.Disputes {
		resp.Disputes = append(resp.Disputes, ToDisputeResponse(d))
	}
	return resp
}

func ToMilestoneResponse(m entity.Milestone) MilestoneResponse {
	return MilestoneResponse{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description,
		Amount:        m.Amount.StringFixed(2),
		Order:         m.Order,
		Status:        string(m.Status),
		DeliveryNotes: m.DeliveryNotes,
		DeliveryProof: m.DeliveryProof,
		DeliveredAt:   m.DeliveredAt,
		AcceptedAt:    m.AcceptedAt,
	}
}

func ToDisputeResponse(d entity.Dispute) DisputeResponse {
	resp := DisputeResponse{
		ID:                  d.ID,
		InitiatedBy:         d.InitiatedBy,
		InitiatorRole:       string(d.InitiatorRole),
		Reason:              string(d.Reason),
		Description:         d.Description,
		Evidence:            d.Evidence,
		RequestedResolution: string(d.RequestedResolution),
		Status:              string(d.Status),
		ResolutionNote:      d.ResolutionNote,
		ResolvedBy:          d.ResolvedBy,
		CreatedAt:           d.CreatedAt,
		ResolvedAt:          d.ResolvedAt,
	}
	if resp.Evidence == nil {
		resp.Evidence = []string{}
	}
	if d.ResolutionOutcome != nil {
		outcome := string(*d.ResolutionOutcome)
		resp.ResolutionOutcome = &outcome
	}
	return resp
}

func ToEscrowResponses(items []*entity.EscrowTransaction) []EscrowResponse {
	out := make([]EscrowResponse, 0, len(items))
	for _, t := range items {
		out = append(out, ToEscrowResponse(t))
	}
	return out
}

// DisputeOpenedResponse возвращается при открытии спора.
type DisputeOpenedResponse struct {
	Transaction EscrowResponse  `json:"transaction"`
	Dispute     DisputeResponse `json:"dispute"`
}

func ParseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
