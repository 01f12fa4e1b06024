package model

import "time"

// DocumentRef identifies the source document of a set of chunks.
type DocumentRef struct {
	DocumentID string
	FileName   string
	UploadedAt time.Time
}

// Chunk is a bounded span of cleaned document text.
type Chunk struct {
	Text           string    `json:"text"`
	DocumentID     string    `json:"documentId"`
	ChunkIndex     int       `json:"chunkIndex"`
	SourceFileName string    `json:"fileName"`
	UploadedAt     time.Time `json:"uploadedAt"`
}

// RetrievedPassage is a chunk returned by a similarity query.
// Distance is nil when retrieval degraded to a non-vector source.
type RetrievedPassage struct {
	Chunk
	Topic    string   `json:"topic,omitempty"`
	Distance *float64 `json:"distance"`
}

// TopicPassages groups retrieved passages under the topic they were retrieved for.
type TopicPassages struct {
	Topic    string             `json:"topic"`
	Passages []RetrievedPassage `json:"passages"`
}
