// Package extractor pulls plain text out of uploaded curriculum files.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain"
)

var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrExtraction      = errors.New("text extraction failed")
)

// ContentTypeFor maps a file name to a supported content type, or "" if unsupported.
func ContentTypeFor(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return ContentTypePDF
	case ".txt":
		return ContentTypeText
	}
	return ""
}

// Supported reports whether contentType can be extracted.
func Supported(contentType string) bool {
	ct := baseType(contentType)
	return ct == ContentTypePDF || ct == ContentTypeText
}

// Extractor reads text from files on local disk.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract returns the raw text of the file at path.
func (e *Extractor) Extract(ctx context.Context, path, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch baseType(contentType) {
	case ContentTypePDF:
		return extractPDF(path)
	case ContentTypeText:
		return extractText(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrExtraction, filepath.Base(path), err)
	}
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte(" "))
	}
	return string(data), nil
}

// extractPDF recovers from panics raised by the PDF reader on malformed input.
func extractPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf %s: %v", ErrExtraction, filepath.Base(path), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrExtraction, err)
	}
	defer f.Close()

	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: plain text: %v", ErrExtraction, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", fmt.Errorf("%w: read text: %v", ErrExtraction, err)
	}
	return buf.String(), nil
}

func baseType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
