package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	gonanoid "github.com/jaevor/go-nanoid"
)

// Разрешённые типы вложений: подтверждения поставки и доказательства в спорах.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"application/zip": true,
}

var (
	ErrEmptyFile          = errors.New("файл не может быть пустым")
	ErrUnknownFileType    = errors.New("не удалось определить тип файла")
	ErrFileTooLarge       = errors.New("размер файла превышает лимит")
	ErrAttachmentNotFound = errors.New("вложение не найдено")
)

// ErrUnsupportedType возвращается, если тип файла не входит в список разрешённых.
type ErrUnsupportedType struct {
	MIME string
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("неподдерживаемый тип файла (%s)", e.MIME)
}

// Attachment описывает сохранённое вложение сделки.
type Attachment struct {
	Reference   string `json:"reference"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// AttachmentStorage отвечает за файловое хранилище вложений сделок.
type AttachmentStorage struct {
	rootPath       string
	maxUploadBytes int64
	newID          func() string
}

// NewAttachmentStorage создаёт файловое хранилище.
func NewAttachmentStorage(rootPath string, maxUploadMB int64) (*AttachmentStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	newID, err := gonanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("storage: генератор идентификаторов: %w", err)
	}

	return &AttachmentStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		newID:          newID,
	}, nil
}

func (s *AttachmentStorage) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save определяет реальный тип файла по магическим байтам и сохраняет его
// в каталог сделки. Возвращает непрозрачную ссылку на вложение.
func (s *AttachmentStorage) Save(ctx context.Context, transactionID uuid.UUID, r io.Reader) (*Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyFile
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil, ErrUnknownFileType
	}
	if !allowedMimeTypes[kind.MIME.Value] {
		return nil, ErrUnsupportedType{MIME: kind.MIME.Value}
	}

	dir := filepath.Join(s.rootPath, transactionID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог сделки: %w", err)
	}

	id := s.newID()
	fileName := id + "." + kind.Extension
	targetPath := filepath.Join(dir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return nil, ErrFileTooLarge
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return nil, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return &Attachment{
		Reference:   "att_" + transactionID.String() + "_" + fileName,
		ContentType: kind.MIME.Value,
		Size:        written,
	}, nil
}

// Open открывает вложение по ссылке. Вложение должно принадлежать сделке transactionID.
func (s *AttachmentStorage) Open(ctx context.Context, transactionID uuid.UUID, reference string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(reference, "att_"+transactionID.String()+"_") {
		return nil, ErrAttachmentNotFound
	}
	path, err := s.resolve(reference)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrAttachmentNotFound
	}
	return f, err
}

func (s *AttachmentStorage) resolve(reference string) (string, error) {
	rest, ok := strings.CutPrefix(reference, "att_")
	if !ok || len(rest) < 38 || rest[36] != '_' {
		return "", ErrAttachmentNotFound
	}
	txID, err := uuid.Parse(rest[:36])
	if err != nil {
		return "", ErrAttachmentNotFound
	}
	name := sanitizeFilename(rest[37:])
	if name != rest[37:] {
		return "", ErrAttachmentNotFound
	}
	return filepath.Join(s.rootPath, txID.String(), name), nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" || name == "." {
		name = "attachment"
	}
	return name
}
