package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinQuestions = 1
	MaxQuestions = 100

	DefaultNumberOfQuestions = 10
	DefaultDuration          = 60
	DefaultMarksPerQuestion  = 1
	DefaultPassingPercentage = 40
	DefaultSubject           = "General"
)

// ErrInvalidParameters is returned when generation parameters violate their invariants.
var ErrInvalidParameters = errors.New("invalid generation parameters")

// GenerationParameters is the value object driving one generation request.
type GenerationParameters struct {
	Topics            []string       `json:"topics"`
	NumberOfQuestions int            `json:"numberOfQuestions"`
	AssessmentType    AssessmentType `json:"assessmentType"`
	Difficulty        Difficulty     `json:"difficulty"`
	Subject           string         `json:"subject"`
	Title             string         `json:"title"`
	Duration          int            `json:"duration"`
	MarksPerQuestion  int            `json:"marksPerQuestion"`
	PassingPercentage int            `json:"passingPercentage"`
	UseAI             bool           `json:"useAI"`
	DocumentFilter    string         `json:"documentFilter,omitempty"`
}

// ParametersFromRequest applies request defaults. Range checks are left to Validate.
func ParametersFromRequest(req *GenerateAssessmentRequest, now time.Time) GenerationParameters {
	p := GenerationParameters{
		Topics:            req.Topics,
		NumberOfQuestions: DefaultNumberOfQuestions,
		AssessmentType:    AssessmentType(req.AssessmentType),
		Difficulty:        Difficulty(req.Difficulty),
		Subject:           req.Subject,
		Title:             req.Title,
		Duration:          DefaultDuration,
		MarksPerQuestion:  DefaultMarksPerQuestion,
		PassingPercentage: DefaultPassingPercentage,
		UseAI:             true,
		DocumentFilter:    strings.TrimSpace(req.DocumentID),
	}
	if req.NumberOfQuestions != nil {
		p.NumberOfQuestions = *req.NumberOfQuestions
	}
	if req.Duration != nil && *req.Duration > 0 {
		p.Duration = *req.Duration
	}
	if req.MarksPerQuestion != nil && *req.MarksPerQuestion > 0 {
		p.MarksPerQuestion = *req.MarksPerQuestion
	}
	if req.PassingPercentage != nil {
		p.PassingPercentage = *req.PassingPercentage
	}
	if req.UseAI != nil {
		p.UseAI = *req.UseAI
	}
	if p.Title == "" {
		p.Title = "Assessment - " + now.Format("2006-01-02")
	}
	return p
}

// Validate checks the invariants and fills in defaults for enum fields.
// PassingPercentage is clamped rather than rejected.
func (p *GenerationParameters) Validate() error {
	topics := make([]string, 0, len(p.Topics))
	for _, t := range p.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return fmt.Errorf("%w: topics must not be empty", ErrInvalidParameters)
	}
	p.Topics = topics

	if p.NumberOfQuestions < MinQuestions || p.NumberOfQuestions > MaxQuestions {
		return fmt.Errorf("%w: numberOfQuestions must be between %d and %d",
			ErrInvalidParameters, MinQuestions, MaxQuestions)
	}

	if p.AssessmentType == "" {
		p.AssessmentType = AssessmentTypeMixed
	}
	if !p.AssessmentType.Valid() {
		return fmt.Errorf("%w: unknown assessmentType %q", ErrInvalidParameters, p.AssessmentType)
	}
	if p.Difficulty == "" {
		p.Difficulty = DifficultyMedium
	}
	if !p.Difficulty.Valid() {
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidParameters, p.Difficulty)
	}

	if p.Subject == "" {
		p.Subject = DefaultSubject
	}
	if p.Duration <= 0 {
		p.Duration = DefaultDuration
	}
	if p.MarksPerQuestion <= 0 {
		p.MarksPerQuestion = DefaultMarksPerQuestion
	}
	p.PassingPercentage = clamp(p.PassingPercentage, 0, 100)
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
