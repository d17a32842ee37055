package valueobject

import "github.com/ignatzorin/escrow-backend/internal/pkg/apperror"

type ItemType string

const (
	ItemTypeWebsite      ItemType = "website"
	ItemTypeDigitalAsset ItemType = "digital_asset"
	ItemTypeService      ItemType = "service"
	ItemTypePhysicalGood ItemType = "physical_good"
	ItemTypeBusiness     ItemType = "business"
)

func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeWebsite, ItemTypeDigitalAsset, ItemTypeService, ItemTypePhysicalGood, ItemTypeBusiness:
		return true
	}
	return false
}

func NewItemType(value string) (ItemType, error) {
	t := ItemType(value)
	if !t.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный тип предмета сделки")
	}
	return t, nil
}

type DisputeReason string

const (
	DisputeReasonNotDelivered        DisputeReason = "not_delivered"
	DisputeReasonNotAsDescribed      DisputeReason = "not_as_described"
	DisputeReasonDamaged             DisputeReason = "damaged"
	DisputeReasonUnauthorizedCharges DisputeReason = "unauthorized_charges"
	DisputeReasonOther               DisputeReason = "other"
)

func (r DisputeReason) IsValid() bool {
	switch r {
	case DisputeReasonNotDelivered, DisputeReasonNotAsDescribed, DisputeReasonDamaged, DisputeReasonUnauthorizedCharges, DisputeReasonOther:
		return true
	}
	return false
}

func NewDisputeReason(value string) (DisputeReason, error) {
	r := DisputeReason(value)
	if !r.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректная причина спора")
	}
	return r, nil
}

type RequestedResolution string

const (
	ResolutionFullRefund    RequestedResolution = "full_refund"
	ResolutionPartialRefund RequestedResolution = "partial_refund"
	ResolutionReplacement   RequestedResolution = "replacement"
	ResolutionCompletion    RequestedResolution = "completion"
)

func (r RequestedResolution) IsValid() bool {
	switch r {
	case ResolutionFullRefund, ResolutionPartialRefund, ResolutionReplacement, ResolutionCompletion:
		return true
	}
	return false
}

func NewRequestedResolution(value string) (RequestedResolution, error) {
	r := RequestedResolution(value)
	if !r.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректное требуемое решение спора")
	}
	return r, nil
}

// DisputeOutcome — решение арбитра по спору.
type DisputeOutcome string

const (
	OutcomeReleaseToSeller DisputeOutcome = "release_to_seller"
	OutcomeRefundToBuyer   DisputeOutcome = "refund_to_buyer"
)

func (o DisputeOutcome) IsValid() bool {
	return o == OutcomeReleaseToSeller || o == OutcomeRefundToBuyer
}

func NewDisputeOutcome(value string) (DisputeOutcome, error) {
	o := DisputeOutcome(value)
	if !o.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректное решение по спору")
	}
	return o, nil
}

// Party — сторона сделки.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)
