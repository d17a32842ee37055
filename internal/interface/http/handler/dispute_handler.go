package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/interface/http/dto"
	"github.com/ignatzorin/escrow-backend/internal/interface/http/response"
	"github.com/ignatzorin/escrow-backend/internal/usecase/escrow"
	"github.com/ignatzorin/escrow-backend/internal/validation"
)

// DisputeHandler — точка входа внешнего арбитража. Доступна только администраторам.
type DisputeHandler struct {
	engine *escrow.Engine
}

func NewDisputeHandler(engine *escrow.Engine) *DisputeHandler {
	return &DisputeHandler{engine: engine}
}

// Resolve обрабатывает POST /admin/escrow/disputes/:id/resolve.
func (h *DisputeHandler) Resolve(c *gin.Context) {
	arbiterID, err := getUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return
	}
	disputeID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "некорректный ID спора")
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "решение должно быть release_to_seller или refund_to_buyer")
		return
	}
	if err := validation.ValidateOptionalText("комментарий арбитра", req.Note, validation.MaxResolutionNoteLength); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tx, err := h.engine.ResolveDispute(c.Request.Context(), escrow.ResolveDisputeInput{
		DisputeID: disputeID,
		ArbiterID: arbiterID,
		Outcome:   req.Outcome,
		Note:      req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToEscrowResponse(tx))
}
