package model

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentType controls the mix of question types in an assessment.
type AssessmentType string

const (
	AssessmentTypeMCQs           AssessmentType = "mcqs"
	AssessmentTypeShortQuestions AssessmentType = "shortQuestions"
	AssessmentTypeLongQuestions  AssessmentType = "longQuestions"
	AssessmentTypeFullPaper      AssessmentType = "fullPaper"
	AssessmentTypeMixed          AssessmentType = "mixed"
)

// Valid reports whether t is a known assessment type.
func (t AssessmentType) Valid() bool {
	switch t {
	case AssessmentTypeMCQs, AssessmentTypeShortQuestions, AssessmentTypeLongQuestions,
		AssessmentTypeFullPaper, AssessmentTypeMixed:
		return true
	}
	return false
}

// Difficulty of an assessment or a single question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
	DifficultyMixed  Difficulty = "Mixed"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyMixed:
		return true
	}
	return false
}

// GenerationMethod tags which generation tier produced an assessment.
type GenerationMethod string

const (
	GenerationMethodOpenAICompatible GenerationMethod = "openai-compatible"
	GenerationMethodHuggingFace      GenerationMethod = "huggingface"
	GenerationMethodOllama           GenerationMethod = "ollama"
	GenerationMethodLocal            GenerationMethod = "local"
)

// AssessmentStatus represents the lifecycle state of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "draft"
	AssessmentStatusPublished AssessmentStatus = "published"
	AssessmentStatusArchived  AssessmentStatus = "archived"
)

// Assessment is the persisted aggregate of a generated question set.
type Assessment struct {
	ID                uuid.UUID        `json:"id"`
	Title             string           `json:"title"`
	Subject           string           `json:"subject"`
	AssessmentType    AssessmentType   `json:"assessmentType"`
	Duration          int              `json:"duration"`
	Difficulty        Difficulty       `json:"difficulty"`
	PassingPercentage int              `json:"passingPercentage"`
	NumberOfQuestions int              `json:"numberOfQuestions"`
	MarksPerQuestion  int              `json:"marksPerQuestion"`
	TotalMarks        float64          `json:"totalMarks"`
	TopicsCovered     []string         `json:"topicsCovered"`
	DocumentFilter    string           `json:"documentFilter,omitempty"`
	UseAI             bool             `json:"useAI"`
	Questions         []Question       `json:"questions"`
	GeneratedAt       time.Time        `json:"generatedAt"`
	GenerationMethod  GenerationMethod `json:"generationMethod"`
	SourceCount       int              `json:"contentSourcesUsed"`
	Status            AssessmentStatus `json:"status"`
	CreatedBy         string           `json:"createdBy"`
	AssessmentFile    string           `json:"assessmentFile"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// AssessmentSummary is the list-view projection of an assessment.
type AssessmentSummary struct {
	ID                uuid.UUID        `json:"id"`
	Title             string           `json:"title"`
	Subject           string           `json:"subject"`
	AssessmentType    AssessmentType   `json:"assessmentType"`
	Difficulty        Difficulty       `json:"difficulty"`
	NumberOfQuestions int              `json:"numberOfQuestions"`
	TotalMarks        float64          `json:"totalMarks"`
	GenerationMethod  GenerationMethod `json:"generationMethod"`
	Status            AssessmentStatus `json:"status"`
	CreatedBy         string           `json:"createdBy"`
	GeneratedAt       time.Time        `json:"generatedAt"`
}

// AssessmentFilter narrows an assessment listing.
type AssessmentFilter struct {
	Subject string
	Status  AssessmentStatus
}

// ─── Request DTOs ──────────────────────────────────────────────────

// GenerateAssessmentRequest is the payload for generating an assessment.
// Pointer fields distinguish "absent" from zero so defaults can apply.
type GenerateAssessmentRequest struct {
	Topics            []string `json:"topics" binding:"required,min=1,dive,required"`
	NumberOfQuestions *int     `json:"numberOfQuestions" binding:"omitempty,min=1,max=100"`
	AssessmentType    string   `json:"assessmentType" binding:"omitempty,oneof=mcqs shortQuestions longQuestions fullPaper mixed"`
	Difficulty        string   `json:"difficulty" binding:"omitempty,oneof=Easy Medium Hard Mixed"`
	Subject           string   `json:"subject"`
	Title             string   `json:"title"`
	Duration          *int     `json:"duration" binding:"omitempty,min=1"`
	MarksPerQuestion  *int     `json:"marksPerQuestion" binding:"omitempty,min=1"`
	PassingPercentage *int     `json:"passingPercentage"`
	UseAI             *bool    `json:"useAI"`
	DocumentID        string   `json:"documentId"`
}

// ContextPreviewRequest is the payload for previewing retrieved context.
type ContextPreviewRequest struct {
	Topics     []string `json:"topics" binding:"required,min=1,dive,required"`
	DocumentID string   `json:"documentId"`
	Limit      int      `json:"limit" binding:"omitempty,min=1,max=20"`
}

// UpdateAssessmentRequest is the payload for editing a stored assessment.
type UpdateAssessmentRequest struct {
	Title             *string     `json:"title" binding:"omitempty,min=1"`
	Subject           *string     `json:"subject"`
	Duration          *int        `json:"duration" binding:"omitempty,min=1"`
	Difficulty        *string     `json:"difficulty" binding:"omitempty,oneof=Easy Medium Hard Mixed"`
	PassingPercentage *int        `json:"passingPercentage"`
	Status            *string     `json:"status" binding:"omitempty,oneof=draft published archived"`
	Questions         *[]Question `json:"questions" binding:"omitempty,min=1,dive"`
}
