package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/interface/http/response"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/storage"
	"github.com/ignatzorin/escrow-backend/internal/usecase/escrow"
)

// AttachmentHandler принимает файлы подтверждения поставки и доказательства для споров.
// Возвращённую ссылку клиент передаёт в delivery_proof или evidence.
type AttachmentHandler struct {
	engine  *escrow.Engine
	storage *storage.AttachmentStorage
}

func NewAttachmentHandler(engine *escrow.Engine, storage *storage.AttachmentStorage) *AttachmentHandler {
	return &AttachmentHandler{engine: engine, storage: storage}
}

// Upload обрабатывает POST /escrow/:id/attachments (multipart, поле file).
func (h *AttachmentHandler) Upload(c *gin.Context) {
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

	// Загружать вложения могут только участники сделки.
	if _, err := h.engine.Get(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}

	// Запас на multipart-обвязку сверх лимита самого файла.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.storage.MaxUploadBytes()+1<<20)

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "поле file обязательно")
		return
	}
	if file.Size == 0 {
		response.BadRequest(c, storage.ErrEmptyFile.Error())
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer src.Close()

	att, err := h.storage.Save(c.Request.Context(), id, src)
	if err != nil {
		var unsupported storage.ErrUnsupportedType
		switch {
		case errors.Is(err, storage.ErrEmptyFile),
			errors.Is(err, storage.ErrUnknownFileType),
			errors.Is(err, storage.ErrFileTooLarge),
			errors.As(err, &unsupported):
			response.BadRequest(c, err.Error())
		default:
			response.Error(c, err)
		}
		return
	}

	response.Created(c, att)
}

// Download обрабатывает GET /escrow/:id/attachments/:ref.
func (h *AttachmentHandler) Download(c *gin.Context) {
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

	if _, err := h.engine.Get(c.Request.Context(), id, userID); err != nil {
		response.Error(c, err)
		return
	}

	ref := c.Param("ref")
	f, err := h.storage.Open(c.Request.Context(), id, ref)
	if err != nil {
		if errors.Is(err, storage.ErrAttachmentNotFound) {
			response.Error(c, apperror.New(apperror.ErrCodeNotFound, "вложение не найдено"))
			return
		}
		response.Error(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+ref+"\"")
	http.ServeContent(c.Writer, c.Request, ref, info.ModTime(), f)
}
