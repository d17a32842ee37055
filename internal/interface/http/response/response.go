package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

const internalErrorMessage = "внутренняя ошибка сервера"

// Response — общий формат всех ответов API.
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Code       string      `json:"code,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasMore bool `json:"has_more"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

func Paginated(c *gin.Context, data interface{}, total, page, perPage int) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Pagination: &Pagination{
			Total:   total,
			Page:    page,
			PerPage: perPage,
			HasMore: page*perPage < total,
		},
	})
}

// Fail собирает ответ об ошибке с кодом и сообщением.
func Fail(code apperror.ErrorCode, message string) Response {
	return Response{
		Success: false,
		Code:    string(code),
		Message: message,
	}
}

// FromError переводит ошибку в HTTP статус и тело ответа.
// Сообщения неизвестных и внутренних ошибок клиенту не показываются.
func FromError(err error) (int, Response) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, Fail(apperror.ErrCodeInternal, internalErrorMessage)
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		return appErr.HTTPStatus, Fail(appErr.Code, internalErrorMessage)
	}
	return appErr.HTTPStatus, Fail(appErr.Code, appErr.Message)
}

// Error отвечает клиенту по ошибке и прикрепляет её к контексту,
// чтобы middleware.ErrorHandler записал её в лог.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := FromError(err)
	c.JSON(status, body)
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Fail(apperror.ErrCodeValidation, message))
}

func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Fail(apperror.ErrCodeUnauthorized, message))
}
