package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// AssessmentService is the subset of service.AssessmentService the handler calls.
type AssessmentService interface {
	Generate(ctx context.Context, params model.GenerationParameters, createdBy string) (*model.Assessment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
	List(ctx context.Context, filter model.AssessmentFilter, page, perPage int) ([]model.AssessmentSummary, *response.Pagination, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateAssessmentRequest) (*model.Assessment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ContextPreviewer exposes the retrieval step on its own.
type ContextPreviewer interface {
	Preview(ctx context.Context, topics []string, documentFilter string, perTopicLimit int) service.ContextPreview
}

type AssessmentHandler struct {
	assessments AssessmentService
	retrieval   ContextPreviewer
	now         func() time.Time
	log         zerolog.Logger
}

func NewAssessmentHandler(assessments AssessmentService, retrieval ContextPreviewer, log zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessments: assessments,
		retrieval:   retrieval,
		now:         time.Now,
		log:         log.With().Str("component", "assessment_handler").Logger(),
	}
}

// Generate godoc
// POST /api/v1/assessments/generate
// Retrieves context for the topics, generates questions, and stores a draft.
func (h *AssessmentHandler) Generate(c *gin.Context) {
	var req model.GenerateAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	params := model.ParametersFromRequest(&req, h.now())
	a, err := h.assessments.Generate(c.Request.Context(), params, subject(c))
	switch {
	case err == nil:
		response.Success(c, http.StatusCreated, gin.H{"assessment": a})
	case errors.Is(err, service.ErrInvalidParameters):
		response.FailWithDetail(c, http.StatusBadRequest, response.ErrValidation, err.Error())
	case errors.Is(err, service.ErrPersistence):
		response.Fail(c, http.StatusInternalServerError, response.ErrPersistenceFailure)
	default:
		h.log.Error().Err(err).Msg("Generate assessment failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ContextPreview godoc
// POST /api/v1/assessments/context-preview
func (h *AssessmentHandler) ContextPreview(c *gin.Context) {
	var req model.ContextPreviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	preview := h.retrieval.Preview(c.Request.Context(), req.Topics, req.DocumentID, req.Limit)
	response.Success(c, http.StatusOK, gin.H{"preview": preview})
}

// List godoc
// GET /api/v1/assessments?page=1&per_page=10&subject=&status=
func (h *AssessmentHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	filter := model.AssessmentFilter{
		Subject: c.Query("subject"),
		Status:  model.AssessmentStatus(c.Query("status")),
	}

	items, pagination, err := h.assessments.List(c.Request.Context(), filter, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("List assessments failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if items == nil {
		items = []model.AssessmentSummary{}
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"assessments": items}, pagination)
}

// Get godoc
// GET /api/v1/assessments/:id
func (h *AssessmentHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c)
	if !ok {
		return
	}

	a, err := h.assessments.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assessment": a})
}

// Update godoc
// PUT /api/v1/assessments/:id
func (h *AssessmentHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c)
	if !ok {
		return
	}

	var req model.UpdateAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.assessments.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assessment": a})
}

// Delete godoc
// DELETE /api/v1/assessments/:id
func (h *AssessmentHandler) Delete(c *gin.Context) {
	id, ok := paramUUID(c)
	if !ok {
		return
	}

	if err := h.assessments.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "assessment deleted successfully"})
}

func (h *AssessmentHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAssessmentNotFound)
	case errors.Is(err, service.ErrInvalidParameters):
		response.FailWithDetail(c, http.StatusBadRequest, response.ErrValidation, err.Error())
	case errors.Is(err, service.ErrPersistence):
		h.log.Error().Err(err).Msg("Assessment write failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrPersistenceFailure)
	default:
		h.log.Error().Err(err).Msg("Assessment request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// paramUUID parses the :id path parameter, writing a 400 when it is malformed.
func paramUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// subject returns the token subject of the caller, or "" when unauthenticated.
func subject(c *gin.Context) string {
	if claims := middleware.GetClaims(c); claims != nil {
		return claims.Subject
	}
	return ""
}
