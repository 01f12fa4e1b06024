package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// CurriculumService is the subset of service.CurriculumService the handler calls.
type CurriculumService interface {
	Upload(ctx context.Context, file io.Reader, header *multipart.FileHeader, req *model.CreateCurriculumRequest, createdBy string) (*model.Curriculum, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Curriculum, error)
	List(ctx context.Context, filter model.CurriculumFilter, page, perPage int) ([]model.Curriculum, *response.Pagination, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateCurriculumRequest) (*model.Curriculum, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, limit int, documentID string) (*service.SearchResult, error)
	TextPreview(ctx context.Context, documentID string) (string, error)
}

type CurriculumHandler struct {
	curricula CurriculumService
	log       zerolog.Logger
}

func NewCurriculumHandler(curricula CurriculumService, log zerolog.Logger) *CurriculumHandler {
	return &CurriculumHandler{
		curricula: curricula,
		log:       log.With().Str("component", "curriculum_handler").Logger(),
	}
}

// Upload godoc
// POST /api/v1/curricula/upload
// Multipart form: "file" (PDF or plain text) plus curriculum metadata fields.
// Responds 202 once the document is stored and queued for ingestion.
func (h *CurriculumHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}

	var req model.CreateCurriculumRequest
	if fields := validator.BindForm(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	curriculum, err := h.curricula.Upload(c.Request.Context(), file, header, &req, subject(c))
	switch {
	case err == nil:
		response.Success(c, http.StatusAccepted, gin.H{"curriculum": curriculum})
	case errors.Is(err, service.ErrUnsupportedFileType):
		response.FailWithDetail(c, http.StatusBadRequest, response.ErrUnsupportedFile, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		response.FailWithDetail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge, err.Error())
	default:
		h.log.Error().Err(err).Str("file", header.Filename).Msg("Curriculum upload failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// List godoc
// GET /api/v1/curricula?page=1&per_page=10&subject=&grade=&status=
func (h *CurriculumHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	filter := model.CurriculumFilter{
		Subject: c.Query("subject"),
		Grade:   c.Query("grade"),
		Status:  model.IngestStatus(c.Query("status")),
	}

	items, pagination, err := h.curricula.List(c.Request.Context(), filter, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("List curricula failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"curricula": items}, pagination)
}

// Get godoc
// GET /api/v1/curricula/:id
func (h *CurriculumHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c)
	if !ok {
		return
	}

	curriculum, err := h.curricula.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"curriculum": curriculum})
}

// Preview godoc
// GET /api/v1/curricula/:id/preview
func (h *CurriculumHandler) Preview(c *gin.Context) {
	id, ok := paramUUID(c)
	if !ok {
		return
	}

	text, err := h.curricula.TextPreview(c.Request.Context(), id.String())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"documentId": id, "preview": text})
}

// Update godoc
// PUT /api/v1/curricula/:id
func (h *CurriculumHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c)
	if !ok {
		return
	}

	var req model.UpdateCurriculumRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	curriculum, err := h.curricula.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"curriculum": curriculum})
}

// Delete godoc
// DELETE /api/v1/curricula/:id
func (h *CurriculumHandler) Delete(c *gin.Context) {
	id, ok := paramUUID(c)
	if !ok {
		return
	}

	if err := h.curricula.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "curriculum deleted successfully"})
}

// Search godoc
// GET /api/v1/curricula/search?q=photosynthesis&limit=5&documentId=
func (h *CurriculumHandler) Search(c *gin.Context) {
	var q model.SearchCurriculumQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.curricula.Search(c.Request.Context(), q.Query, q.Limit, q.DocumentID)
	if err != nil {
		if errors.Is(err, service.ErrCurriculumNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrCurriculumNotFound)
			return
		}
		h.log.Error().Err(err).Str("query", q.Query).Msg("Curriculum search failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrSearchFailed)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *CurriculumHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrCurriculumNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrCurriculumNotFound)
		return
	}
	h.log.Error().Err(err).Msg("Curriculum request failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}
