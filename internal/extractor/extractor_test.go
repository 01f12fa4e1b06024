package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtract_PlainText(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("Photosynthesis happens in chloroplasts.\nLight is absorbed."))

	text, err := New().Extract(context.Background(), path, "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis happens in chloroplasts.\nLight is absorbed.", text)
}

func TestExtract_InvalidUTF8Replaced(t *testing.T) {
	path := writeFile(t, "bad.txt", []byte("ab\xffcd"))

	text, err := New().Extract(context.Background(), path, ContentTypeText)
	require.NoError(t, err)
	assert.Equal(t, "ab cd", text)
}

func TestExtract_Errors(t *testing.T) {
	ctx := context.Background()
	e := New()

	_, err := e.Extract(ctx, "/nowhere/file.docx", "application/msword")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = e.Extract(ctx, filepath.Join(t.TempDir(), "missing.txt"), ContentTypeText)
	assert.ErrorIs(t, err, ErrExtraction)

	garbage := writeFile(t, "broken.pdf", []byte("this is not a pdf at all"))
	_, err = e.Extract(ctx, garbage, ContentTypePDF)
	assert.ErrorIs(t, err, ErrExtraction)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Extract(cancelled, garbage, ContentTypePDF)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, ContentTypePDF, ContentTypeFor("Biology Grade 10.PDF"))
	assert.Equal(t, ContentTypeText, ContentTypeFor("notes.txt"))
	assert.Equal(t, "", ContentTypeFor("slides.pptx"))

	assert.True(t, Supported("application/pdf"))
	assert.True(t, Supported("text/plain; charset=utf-8"))
	assert.False(t, Supported("image/png"))
}
