package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

func newTestStorage(t *testing.T, maxMB int64) *AttachmentStorage {
	t.Helper()
	s, err := NewAttachmentStorage(t.TempDir(), maxMB)
	require.NoError(t, err)
	return s
}

func TestAttachmentStorage_SaveAndOpen(t *testing.T) {
	s := newTestStorage(t, 1)
	txID := uuid.New()
	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 2048)...)

	att, err := s.Save(context.Background(), txID, bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.ContentType)
	assert.Equal(t, int64(len(content)), att.Size)
	assert.True(t, strings.HasPrefix(att.Reference, "att_"+txID.String()+"_"))
	assert.True(t, strings.HasSuffix(att.Reference, ".png"))

	f, err := s.Open(context.Background(), txID, att.Reference)
	require.NoError(t, err)
	defer f.Close()
	stored, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	_, err = s.Open(context.Background(), uuid.New(), att.Reference)
	assert.ErrorIs(t, err, ErrAttachmentNotFound)
}

func TestAttachmentStorage_PDF(t *testing.T) {
	s := newTestStorage(t, 1)
	att, err := s.Save(context.Background(), uuid.New(), strings.NewReader("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", att.ContentType)
}

func TestAttachmentStorage_Rejects(t *testing.T) {
	s := newTestStorage(t, 1)
	ctx := context.Background()

	_, err := s.Save(ctx, uuid.New(), bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = s.Save(ctx, uuid.New(), strings.NewReader("просто текст без сигнатуры"))
	assert.ErrorIs(t, err, ErrUnknownFileType)

	_, err = s.Save(ctx, uuid.New(), bytes.NewReader([]byte("MZ\x90\x00\x03\x00\x00\x00\x04\x00\x00\x00\xff\xff")))
	var unsupported ErrUnsupportedType
	assert.ErrorAs(t, err, &unsupported)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 1024*1024)...)
	_, err = s.Save(ctx, uuid.New(), bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestAttachmentStorage_RejectsForeignReferences(t *testing.T) {
	s := newTestStorage(t, 1)
	for _, ref := range []string{
		"",
		"photo.png",
		"att_not-a-uuid_x.png",
		"att_" + uuid.NewString() + "_../../etc/passwd",
	} {
		_, err := s.Open(context.Background(), uuid.New(), ref)
		assert.ErrorIs(t, err, ErrAttachmentNotFound, ref)
	}
}

func TestAttachmentStorage_OpenScopedToTransaction(t *testing.T) {
	s := newTestStorage(t, 1)
	owner := uuid.New()

	att, err := s.Save(context.Background(), owner, bytes.NewReader(append(append([]byte{}, pngHeader...), 0, 0, 0, 0)))
	require.NoError(t, err)

	f, err := s.Open(context.Background(), owner, att.Reference)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = s.Open(context.Background(), uuid.New(), att.Reference)
	assert.ErrorIs(t, err, ErrAttachmentNotFound)

	_, err = s.Open(context.Background(), owner, "att_"+owner.String()+"_missing.png")
	assert.ErrorIs(t, err, ErrAttachmentNotFound)
}
