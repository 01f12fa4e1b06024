// Package segmenter splits cleaned document text into overlapping,
// boundary-aware chunks for embedding and retrieval.
package segmenter

import (
	"errors"
	"strings"
	"unicode"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// ErrInvalidWindow is returned when chunkSize and overlap do not describe a forward-moving window.
var ErrInvalidWindow = errors.New("segmenter: chunk size must be positive and overlap in [0, chunkSize)")

// Chunk splits text into windows of chunkSize runes that overlap by overlap runes.
//
// A window that ends before the text does is pulled back to the last sentence
// terminator in its second half, else to the last whitespace there, else cut raw.
// Chunks are trimmed and empty ones dropped. Empty text yields an empty slice.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return nil, ErrInvalidWindow
	}
	if text == "" {
		return []string{}, nil
	}

	runes := []rune(text)
	n := len(runes)
	chunks := make([]string, 0, n/(chunkSize-overlap)+1)

	start := 0
	for start < n {
		end := start + chunkSize
		if end >= n {
			end = n
		} else {
			end = boundary(runes, start, end, chunkSize)
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}
		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, nil
}

// boundary returns the cut point for a window [start, end) with end < len(runes).
// Only candidates strictly past the window midpoint are accepted; the rune at
// end itself is inspected as well, so a terminator there extends the chunk by one.
func boundary(runes []rune, start, end, chunkSize int) int {
	lo := start + chunkSize/2 + 1

	for i := end; i >= lo; i-- {
		switch runes[i] {
		case '.', '?', '!':
			return i + 1
		}
	}
	for i := end; i >= lo; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return end
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithChunkSize sets the window length in runes.
func WithChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the number of runes shared by consecutive windows.
func WithOverlap(overlap int) Option {
	return func(s *Segmenter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// Segmenter cleans and chunks whole documents.
type Segmenter struct {
	chunkSize int
	overlap   int
}

// New creates a Segmenter with 1000/200 defaults.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{chunkSize: DefaultChunkSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChunkSize returns the configured window length.
func (s *Segmenter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured window overlap.
func (s *Segmenter) Overlap() int { return s.overlap }

// Segment cleans rawText once and chunks the result into document chunks
// with sequential indexes.
func (s *Segmenter) Segment(doc model.DocumentRef, rawText string) (string, []model.Chunk, error) {
	cleaned := CleanText(rawText)
	pieces, err := Chunk(cleaned, s.chunkSize, s.overlap)
	if err != nil {
		return "", nil, err
	}

	chunks := make([]model.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = model.Chunk{
			Text:           p,
			DocumentID:     doc.DocumentID,
			ChunkIndex:     i,
			SourceFileName: doc.FileName,
			UploadedAt:     doc.UploadedAt,
		}
	}
	return cleaned, chunks, nil
}
