package model

import "time"

// IngestStage is a step of the ingestion pipeline reported to progress listeners.
type IngestStage string

const (
	IngestStageQueued     IngestStage = "queued"
	IngestStageExtracting IngestStage = "extracting"
	IngestStageChunking   IngestStage = "chunking"
	IngestStageIndexing   IngestStage = "indexing"
	IngestStageCompleted  IngestStage = "completed"
	IngestStageFailed     IngestStage = "failed"
)

// Terminal reports whether no further events follow this stage.
func (s IngestStage) Terminal() bool {
	return s == IngestStageCompleted || s == IngestStageFailed
}

// IngestEvent is a progress notification for one curriculum document.
type IngestEvent struct {
	CurriculumID  string       `json:"curriculumId"`
	Stage         IngestStage  `json:"stage"`
	Status        IngestStatus `json:"status,omitempty"`
	TotalChunks   int          `json:"totalChunks,omitempty"`
	VectorIndexed bool         `json:"vectorIndexed"`
	Error         string       `json:"error,omitempty"`
	At            time.Time    `json:"at"`
}

// IngestJob is the queue payload asking a worker to ingest a document.
type IngestJob struct {
	CurriculumID string `json:"curriculum_id"`
}

// VectorCleanupJob is the queue payload asking a worker to remove a document's vectors.
type VectorCleanupJob struct {
	DocumentID string `json:"document_id"`
	Attempts   int    `json:"attempts"`
}
