package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/generation"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// Domain Errors
var (
	ErrInvalidParameters  = model.ErrInvalidParameters
	ErrPersistence        = errors.New("failed to persist assessment")
	ErrAssessmentNotFound = errors.New("assessment not found")
)

// AssessmentStore persists assessments with their questions.
type AssessmentStore interface {
	Create(ctx context.Context, a *model.Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
	ListPaginated(ctx context.Context, filter model.AssessmentFilter, limit, offset int) ([]model.AssessmentSummary, int, error)
	Update(ctx context.Context, a *model.Assessment, replaceQuestions bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ContextGatherer assembles generation context for a set of topics.
type ContextGatherer interface {
	Gather(ctx context.Context, topics []string, documentFilter string, perTopicLimit int) Gathered
}

// QuestionGenerator turns context into questions. It does not fail.
type QuestionGenerator interface {
	Dispatch(ctx context.Context, req generation.Request) generation.Outcome
}

// AssessmentService runs the generation pipeline and manages stored assessments.
type AssessmentService struct {
	store         AssessmentStore
	retriever     ContextGatherer
	generator     QuestionGenerator
	perTopicLimit int
	now           func() time.Time
	log           zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	store AssessmentStore,
	retriever ContextGatherer,
	generator QuestionGenerator,
	perTopicLimit int,
	log zerolog.Logger,
) *AssessmentService {
	return &AssessmentService{
		store:         store,
		retriever:     retriever,
		generator:     generator,
		perTopicLimit: perTopicLimit,
		now:           time.Now,
		log:           log.With().Str("component", "assessment_service").Logger(),
	}
}

// Generate validates params, gathers context, generates questions, and
// persists the assembled assessment. Only ErrInvalidParameters and
// ErrPersistence are returned.
func (s *AssessmentService) Generate(ctx context.Context, params model.GenerationParameters, createdBy string) (*model.Assessment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	gathered := s.retriever.Gather(ctx, params.Topics, params.DocumentFilter, s.perTopicLimit)
	outcome := s.generator.Dispatch(ctx, generation.Request{Context: gathered.Content, Params: &params})

	a := BuildAssessment(outcome.Questions, params, outcome.Method, s.now())
	a.ID = uuid.New()
	a.SourceCount = gathered.SourceCount
	a.CreatedBy = createdBy

	if err := s.store.Create(ctx, a); err != nil {
		s.log.Error().Err(err).Str("title", a.Title).Msg("Failed to persist assessment")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.log.Info().
		Str("assessment_id", a.ID.String()).
		Str("method", string(a.GenerationMethod)).
		Int("questions", a.NumberOfQuestions).
		Int("sources", a.SourceCount).
		Msg("Assessment generated")
	return a, nil
}

// BuildAssessment assembles a draft assessment from generated questions.
// Missing marks count as 1, and NumberOfQuestions is the count actually produced.
func BuildAssessment(questions []model.Question, params model.GenerationParameters, method model.GenerationMethod, now time.Time) *model.Assessment {
	qs := normalizeQuestions(questions)
	return &model.Assessment{
		Title:             params.Title,
		Subject:           params.Subject,
		AssessmentType:    params.AssessmentType,
		Duration:          params.Duration,
		Difficulty:        params.Difficulty,
		PassingPercentage: params.PassingPercentage,
		NumberOfQuestions: len(qs),
		MarksPerQuestion:  params.MarksPerQuestion,
		TotalMarks:        totalMarks(qs),
		TopicsCovered:     params.Topics,
		DocumentFilter:    params.DocumentFilter,
		UseAI:             params.UseAI,
		Questions:         qs,
		GeneratedAt:       now.UTC(),
		GenerationMethod:  method,
		Status:            model.AssessmentStatusDraft,
		AssessmentFile:    "assessment_" + strconv.FormatInt(now.UnixMilli(), 10) + ".json",
	}
}

func normalizeQuestions(questions []model.Question) []model.Question {
	qs := make([]model.Question, len(questions))
	copy(qs, questions)
	for i := range qs {
		qs[i].Marks = qs[i].MarksOrDefault()
		if qs[i].ID == "" {
			qs[i].ID = "q_" + strconv.Itoa(i+1)
		}
	}
	return qs
}

func totalMarks(questions []model.Question) float64 {
	var sum float64
	for _, q := range questions {
		sum += q.MarksOrDefault()
	}
	return sum
}

// GetByID retrieves an assessment with its questions.
func (s *AssessmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return a, nil
}

// List retrieves assessment summaries with pagination.
func (s *AssessmentService) List(ctx context.Context, filter model.AssessmentFilter, page, perPage int) ([]model.AssessmentSummary, *response.Pagination, error) {
	page, perPage = clampPage(page, perPage)

	items, total, err := s.store.ListPaginated(ctx, filter, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list assessments: %w", err)
	}
	if items == nil {
		items = []model.AssessmentSummary{}
	}
	return items, response.NewPagination(page, perPage, total), nil
}

// Update applies the non-nil fields of req. Replacing the questions
// recomputes totalMarks and numberOfQuestions.
func (s *AssessmentService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateAssessmentRequest) (*model.Assessment, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		a.Title = *req.Title
	}
	if req.Subject != nil {
		a.Subject = *req.Subject
	}
	if req.Duration != nil {
		a.Duration = *req.Duration
	}
	if req.Difficulty != nil {
		a.Difficulty = model.Difficulty(*req.Difficulty)
	}
	if req.PassingPercentage != nil {
		a.PassingPercentage = min(max(*req.PassingPercentage, 0), 100)
	}
	if req.Status != nil {
		a.Status = model.AssessmentStatus(*req.Status)
	}

	replace := req.Questions != nil
	if replace {
		if err := validateQuestions(*req.Questions); err != nil {
			return nil, err
		}
		a.Questions = normalizeQuestions(*req.Questions)
		a.NumberOfQuestions = len(a.Questions)
		a.TotalMarks = totalMarks(a.Questions)
	}

	if err := s.store.Update(ctx, a, replace); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return a, nil
}

func validateQuestions(questions []model.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: questions must not be empty", ErrInvalidParameters)
	}
	for i, q := range questions {
		if q.Type != model.QuestionTypeMCQ {
			continue
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d needs at least two options", ErrInvalidParameters, i+1)
		}
		if q.CorrectAnswer != nil && (*q.CorrectAnswer < 0 || *q.CorrectAnswer >= len(q.Options)) {
			return fmt.Errorf("%w: question %d correctAnswer out of range", ErrInvalidParameters, i+1)
		}
	}
	return nil
}

// Delete removes an assessment.
func (s *AssessmentService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("delete assessment: %w", err)
	}
	s.log.Info().Str("assessment_id", id.String()).Msg("Assessment deleted")
	return nil
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
