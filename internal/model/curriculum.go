package model

import (
	"time"

	"github.com/google/uuid"
)

// IngestStatus is the lifecycle state of a curriculum document's ingestion.
type IngestStatus string

const (
	IngestStatusPending IngestStatus = "pending"
	// IngestStatusIndexed means text and vectors are both stored.
	IngestStatusIndexed IngestStatus = "indexed"
	// IngestStatusStored means text is stored but the vector store was unreachable.
	IngestStatusStored IngestStatus = "stored"
	IngestStatusFailed IngestStatus = "failed"
)

// Curriculum is an uploaded curriculum document and its extracted text.
type Curriculum struct {
	ID               uuid.UUID    `json:"id"`
	Name             string       `json:"name"`
	Subject          string       `json:"subject"`
	Grade            string       `json:"grade"`
	Board            string       `json:"board"`
	BookTitle        string       `json:"bookTitle"`
	Author           string       `json:"author"`
	Publisher        string       `json:"publisher"`
	Edition          string       `json:"edition"`
	NumberOfChapters int          `json:"numberOfChapters"`
	Topics           []string     `json:"topics"`
	FileName         string       `json:"fileName"`
	FileURL          string       `json:"fileUrl"`
	FilePath         string       `json:"-"`
	ContentType      string       `json:"contentType"`
	TextContent      string       `json:"textContent,omitempty"`
	TotalChunks      int          `json:"totalChunks"`
	Status           IngestStatus `json:"status"`
	VectorIndexed    bool         `json:"vectorIndexed"`
	IngestError      string       `json:"ingestError,omitempty"`
	CreatedBy        string       `json:"createdBy"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// DocumentID is the identity used for the document's chunks in the vector store.
func (c *Curriculum) DocumentID() string {
	return c.ID.String()
}

// CurriculumFilter narrows a curriculum listing.
type CurriculumFilter struct {
	Subject string
	Grade   string
	Status  IngestStatus
}

// CurriculumSearchHit is one result of a curriculum content search.
type CurriculumSearchHit struct {
	DocumentID string   `json:"documentId"`
	FileName   string   `json:"fileName"`
	ChunkIndex int      `json:"chunkIndex"`
	Text       string   `json:"text"`
	Distance   *float64 `json:"distance"`
}

// ─── Request DTOs ──────────────────────────────────────────────────

// CreateCurriculumRequest is the multipart form metadata accompanying an upload.
type CreateCurriculumRequest struct {
	Name             string   `form:"name" binding:"required,max=255"`
	Subject          string   `form:"subject" binding:"required,max=100"`
	Grade            string   `form:"grade" binding:"max=50"`
	Board            string   `form:"board" binding:"max=100"`
	BookTitle        string   `form:"bookTitle" binding:"max=255"`
	Author           string   `form:"author" binding:"max=255"`
	Publisher        string   `form:"publisher" binding:"max=255"`
	Edition          string   `form:"edition" binding:"max=50"`
	NumberOfChapters int      `form:"numberOfChapters" binding:"omitempty,min=0"`
	Topics           []string `form:"topics"`
}

// UpdateCurriculumRequest edits curriculum metadata; the document text is immutable.
type UpdateCurriculumRequest struct {
	Name             *string   `json:"name" binding:"omitempty,min=1,max=255"`
	Subject          *string   `json:"subject" binding:"omitempty,max=100"`
	Grade            *string   `json:"grade" binding:"omitempty,max=50"`
	Board            *string   `json:"board" binding:"omitempty,max=100"`
	BookTitle        *string   `json:"bookTitle" binding:"omitempty,max=255"`
	Author           *string   `json:"author" binding:"omitempty,max=255"`
	Publisher        *string   `json:"publisher" binding:"omitempty,max=255"`
	Edition          *string   `json:"edition" binding:"omitempty,max=50"`
	NumberOfChapters *int      `json:"numberOfChapters" binding:"omitempty,min=0"`
	Topics           *[]string `json:"topics"`
}

// SearchCurriculumQuery is the query string for content search.
type SearchCurriculumQuery struct {
	Query      string `form:"q" binding:"required"`
	Limit      int    `form:"limit"`
	DocumentID string `form:"documentId"`
}
