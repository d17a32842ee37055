package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/interface/http/dto"
	"github.com/ignatzorin/escrow-backend/internal/interface/http/response"
	"github.com/ignatzorin/escrow-backend/internal/usecase/escrow"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

type EscrowHandler struct {
	engine *escrow.Engine
}

func NewEscrowHandler(engine *escrow.Engine) *EscrowHandler {
	return &EscrowHandler{engine: engine}
}

// Create обрабатывает POST /escrow.
func (h *EscrowHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	var req dto.CreateEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		response.BadRequest(c, "некорректный ID продавца")
		return
	}
	if err := validateCreate(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	milestones := make([]escrow.MilestoneInput, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		milestones = append(milestones, escrow.MilestoneInput{
			Title:       m.Title,
			Description: m.Description,
			Amount:      m.Amount,
		})
	}

	insurance := decimal.Zero
	if req.InsuranceAmount != nil {
		insurance = *req.InsuranceAmount
	}

	tx, err := h.engine.Create(c.Request.Context(), escrow.CreateInput{
		BuyerID:               userID,
		SellerID:              sellerID,
		ItemType:              req.ItemType,
		ItemTitle:             req.ItemTitle,
		ItemDescription:       req.ItemDescription,
		TotalAmount:           req.TotalAmount,
		Currency:              req.Currency,
		FeePercentage:         req.EscrowFeePercentage,
		InspectionPeriodHours: req.InspectionPeriodHours,
		Milestones:            milestones,
		InsuranceRequired:     req.InsuranceRequired,
		InsuranceAmount:       insurance,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToEscrowResponse(tx))
}

func validateCreate(req *dto.CreateEscrowRequest) error {
	if err := validation.ValidateItemTitle(req.ItemTitle); err != nil {
		return err
	}
	if err := validation.ValidateItemDescription(req.ItemDescription); err != nil {
		return err
	}
	if err := validation.ValidateCurrency(req.Currency); err != nil {
		return err
	}
	// Неположительную сумму движок отклоняет с кодом INVALID_AMOUNT.
	if req.TotalAmount.IsPositive() {
		if err := validation.ValidateAmount("сумма сделки", req.TotalAmount); err != nil {
			return err
		}
	}
	if len(req.Milestones) > validation.MaxMilestones {
		return errTooManyMilestones
	}
	for i, m := range req.Milestones {
		if err := validation.ValidateMilestone(i, m.Title, m.Description, m.Amount); err != nil {
			return err
		}
	}
	return nil
}

// List обрабатывает GET /escrow?page=N.
func (h *EscrowHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	result, err := h.engine.List(c.Request.Context(), userID, parseIntQuery(c, "page", 1))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToEscrowResponses(result.Items), result.Total, result.Page, result.PerPage)
}

// Get обрабатывает GET /escrow/:id.
func (h *EscrowHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "некорректный ID сделки")
		return
	}

	tx, err := h.engine.Get(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToEscrowResponse(tx))
}

// Fund обрабатывает POST /escrow/:id/fund.
func (h *EscrowHandler) Fund(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "некорректный ID сделки")
		return
	}

	var req dto.FundEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validation.ValidatePaymentMethod(req.PaymentMethod); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tx, err := h.engine.Fund(c.Request.Context(), escrow.FundInput{
		TransactionID:  id,
		ActorID:        userID,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToEscrowResponse(tx))
}

// Deliver обрабатывает POST /escrow/:id/deliver.
func (h *EscrowHandler) Deliver(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "некорректный ID сделки")
		return
	}

	var req dto.DeliverEscrowRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validation.ValidateOptionalText("комментарий к поставке", req.DeliveryNotes, validation.MaxDeliveryNotesLength); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateOptionalText("подтверждение поставки", req.DeliveryProof, validation.MaxEvidenceLength); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	milestoneID, err := dto.ParseOptionalUUID(req.MilestoneID)
	if err != nil {
		response.BadRequest(c, "некорректный ID этапа")
		return
	}

	tx, err := h.engine.Deliver(c.Request.Context(), escrow.DeliverInput{
		TransactionID: id,
		ActorID:       userID,
		MilestoneID:   milestoneID,
		Notes:         req.DeliveryNotes,
		Proof:         req.DeliveryProof,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToEscrowResponse(tx))
}

// Accept обрабатывает POST /escrow/:id/accept.
func (h *EscrowHandler) Accept(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "некорректный ID сделки")
		return
	}

	var req dto.AcceptEscrowRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validation.ValidateRating(req.FeedbackRating); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateOptionalText("отзыв", req.FeedbackComment, validation.MaxFeedbackLength); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	milestoneID, err := dto.ParseOptionalUUID(req.MilestoneID)
	if err != nil {
		response.BadRequest(c, "некорректный ID этапа")
		return
	}

	tx, err := h.engine.Accept(c.Request.Context(), escrow.AcceptInput{
		TransactionID: id,
		ActorID:       userID,
		MilestoneID:   milestoneID,
		Rating:        req.FeedbackRating,
		Comment:       req.FeedbackComment,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToEscrowResponse(tx))
}

// OpenDispute обрабатывает POST /escrow/:id/dispute.
func (h *EscrowHandler) OpenDispute(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "некорректный ID сделки")
		return
	}

	var req dto.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validation.ValidateDisputeDescription(req.Description); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateEvidence(req.Evidence); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tx, dispute, err := h.engine.OpenDispute(c.Request.Context(), escrow.OpenDisputeInput{
		TransactionID:       id,
		ActorID:             userID,
		Reason:              req.Reason,
		Description:         req.Description,
		Evidence:            req.Evidence,
		RequestedResolution: req.RequestedResolution,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.DisputeOpenedResponse{
		Transaction: dto.ToEscrowResponse(tx),
		Dispute:     dto.ToDisputeResponse(*dispute),
	})
}

// Statistics обрабатывает GET /escrow/statistics.
func (h *EscrowHandler) Statistics(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}

	stats, err := h.engine.Statistics(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
