package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func withClaims(sub string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := &service.Claims{}
		claims.Subject = sub
		c.Set(middleware.ContextKeyClaims, claims)
		c.Next()
	}
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		buf = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ─── Assessments ────────────────────────────────────────────────────

type stubAssessments struct {
	generateErr error
	gotParams   model.GenerationParameters
	gotCreator  string
	stored      map[uuid.UUID]*model.Assessment
	listFilter  model.AssessmentFilter
	listPage    [2]int
}

func (s *stubAssessments) Generate(_ context.Context, params model.GenerationParameters, createdBy string) (*model.Assessment, error) {
	s.gotParams, s.gotCreator = params, createdBy
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &model.Assessment{ID: uuid.New(), Title: params.Title, NumberOfQuestions: params.NumberOfQuestions}, nil
}

func (s *stubAssessments) GetByID(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	if a, ok := s.stored[id]; ok {
		return a, nil
	}
	return nil, service.ErrAssessmentNotFound
}

func (s *stubAssessments) List(_ context.Context, filter model.AssessmentFilter, page, perPage int) ([]model.AssessmentSummary, *response.Pagination, error) {
	s.listFilter, s.listPage = filter, [2]int{page, perPage}
	return nil, response.NewPagination(page, perPage, 0), nil
}

func (s *stubAssessments) Update(ctx context.Context, id uuid.UUID, req *model.UpdateAssessmentRequest) (*model.Assessment, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		a.Title = *req.Title
	}
	return a, nil
}

func (s *stubAssessments) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.stored[id]; !ok {
		return service.ErrAssessmentNotFound
	}
	delete(s.stored, id)
	return nil
}

type stubPreviewer struct {
	topics []string
	filter string
	limit  int
}

func (s *stubPreviewer) Preview(_ context.Context, topics []string, documentFilter string, perTopicLimit int) service.ContextPreview {
	s.topics, s.filter, s.limit = topics, documentFilter, perTopicLimit
	return service.ContextPreview{Topics: []model.TopicPassages{}, Content: "light energy", SourceCount: 1}
}

func assessmentRouter(svc *stubAssessments, prev *stubPreviewer) *gin.Engine {
	h := NewAssessmentHandler(svc, prev, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }

	r := gin.New()
	api := r.Group("/api/v1/assessments", withClaims("teacher-7"))
	api.POST("/generate", h.Generate)
	api.POST("/context-preview", h.ContextPreview)
	api.GET("", h.List)
	api.GET("/:id", h.Get)
	api.PUT("/:id", h.Update)
	api.DELETE("/:id", h.Delete)
	return r
}

func TestAssessmentHandler_Generate(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		svc := &stubAssessments{}
		r := assessmentRouter(svc, &stubPreviewer{})

		w := doJSON(r, http.MethodPost, "/api/v1/assessments/generate", gin.H{"topics": []string{"photosynthesis"}})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "teacher-7", svc.gotCreator)
		assert.Equal(t, 10, svc.gotParams.NumberOfQuestions)
		assert.Equal(t, "Assessment - 2026-04-01", svc.gotParams.Title)
		assert.True(t, svc.gotParams.UseAI)
	})

	tests := []struct {
		name     string
		body     any
		err      error
		wantCode int
		wantErr  response.ErrCode
	}{
		{"missing topics", gin.H{"numberOfQuestions": 5}, nil, http.StatusBadRequest, response.ErrValidation},
		{"too many questions", gin.H{"topics": []string{"a"}, "numberOfQuestions": 101}, nil, http.StatusBadRequest, response.ErrValidation},
		{"zero questions", gin.H{"topics": []string{"a"}, "numberOfQuestions": 0}, nil, http.StatusBadRequest, response.ErrValidation},
		{"unknown type", gin.H{"topics": []string{"a"}, "assessmentType": "essay"}, nil, http.StatusBadRequest, response.ErrValidation},
		{"persistence", gin.H{"topics": []string{"a"}}, fmt.Errorf("%w: db down", service.ErrPersistence), http.StatusInternalServerError, response.ErrPersistenceFailure},
		{"unexpected", gin.H{"topics": []string{"a"}}, errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := assessmentRouter(&stubAssessments{generateErr: tt.err}, &stubPreviewer{})
			w := doJSON(r, http.MethodPost, "/api/v1/assessments/generate", tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			env := decode(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestAssessmentHandler_ContextPreview(t *testing.T) {
	prev := &stubPreviewer{}
	r := assessmentRouter(&stubAssessments{}, prev)

	w := doJSON(r, http.MethodPost, "/api/v1/assessments/context-preview",
		gin.H{"topics": []string{"cells", "energy"}, "documentId": "doc-1", "limit": 3})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"cells", "energy"}, prev.topics)
	assert.Equal(t, "doc-1", prev.filter)
	assert.Equal(t, 3, prev.limit)
	assert.Contains(t, w.Body.String(), "light energy")
}

func TestAssessmentHandler_CRUD(t *testing.T) {
	id := uuid.New()
	svc := &stubAssessments{stored: map[uuid.UUID]*model.Assessment{id: {ID: id, Title: "Biology"}}}
	r := assessmentRouter(svc, &stubPreviewer{})
	path := "/api/v1/assessments/" + id.String()

	t.Run("list passes filters", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/v1/assessments?page=2&per_page=5&subject=Biology&status=draft", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, model.AssessmentFilter{Subject: "Biology", Status: model.AssessmentStatusDraft}, svc.listFilter)
		assert.Equal(t, [2]int{2, 5}, svc.listPage)
		env := decode(t, w)
		assert.JSONEq(t, `{"assessments":[]}`, string(env.Data))
		require.NotNil(t, env.Pagination)
		assert.Equal(t, 2, env.Pagination.Page)
	})

	t.Run("get", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Biology")
	})

	t.Run("invalid id", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/v1/assessments/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrInvalidID, decode(t, w).Error.Code)
	})

	t.Run("update", func(t *testing.T) {
		w := doJSON(r, http.MethodPut, path, gin.H{"title": "Cell Biology"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Cell Biology", svc.stored[id].Title)
	})

	t.Run("update rejects bad status", func(t *testing.T) {
		w := doJSON(r, http.MethodPut, path, gin.H{"status": "live"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete then not found", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, doJSON(r, http.MethodDelete, path, nil).Code)

		w := doJSON(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, response.ErrAssessmentNotFound, decode(t, w).Error.Code)
	})
}

// ─── Curricula ──────────────────────────────────────────────────────

type stubCurricula struct {
	uploadErr  error
	uploaded   *model.CreateCurriculumRequest
	uploadBody string
	creator    string
	searchErr  error
	searchArgs []any
	previews   map[string]string
}

func (s *stubCurricula) Upload(_ context.Context, file io.Reader, header *multipart.FileHeader, req *model.CreateCurriculumRequest, createdBy string) (*model.Curriculum, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	data, _ := io.ReadAll(file)
	s.uploaded, s.uploadBody, s.creator = req, string(data), createdBy
	return &model.Curriculum{ID: uuid.New(), Name: req.Name, FileName: header.Filename, Status: model.IngestStatusPending}, nil
}

func (s *stubCurricula) GetByID(_ context.Context, id uuid.UUID) (*model.Curriculum, error) {
	return nil, service.ErrCurriculumNotFound
}

func (s *stubCurricula) List(_ context.Context, _ model.CurriculumFilter, page, perPage int) ([]model.Curriculum, *response.Pagination, error) {
	return []model.Curriculum{}, response.NewPagination(page, perPage, 0), nil
}

func (s *stubCurricula) Update(_ context.Context, _ uuid.UUID, _ *model.UpdateCurriculumRequest) (*model.Curriculum, error) {
	return nil, service.ErrCurriculumNotFound
}

func (s *stubCurricula) Delete(_ context.Context, _ uuid.UUID) error {
	return errors.New("db down")
}

func (s *stubCurricula) Search(_ context.Context, query string, limit int, documentID string) (*service.SearchResult, error) {
	s.searchArgs = []any{query, limit, documentID}
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return &service.SearchResult{Query: query, Method: service.SearchMethodDatabase, Results: []model.CurriculumSearchHit{}}, nil
}

func (s *stubCurricula) TextPreview(_ context.Context, documentID string) (string, error) {
	if text, ok := s.previews[documentID]; ok {
		return text, nil
	}
	return "", service.ErrCurriculumNotFound
}

func curriculumRouter(svc *stubCurricula) *gin.Engine {
	h := NewCurriculumHandler(svc, zerolog.Nop())
	r := gin.New()
	api := r.Group("/api/v1/curricula", withClaims("teacher-7"))
	api.POST("/upload", h.Upload)
	api.GET("", h.List)
	api.GET("/search", h.Search)
	api.GET("/:id", h.Get)
	api.GET("/:id/preview", h.Preview)
	api.PUT("/:id", h.Update)
	api.DELETE("/:id", h.Delete)
	return r
}

func multipartUpload(t *testing.T, fields map[string]string, topics []string, file string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, topic := range topics {
		require.NoError(t, mw.WriteField("topics", topic))
	}
	if file != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="biology.txt"`)
		hdr.Set("Content-Type", "text/plain")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte(file))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/curricula/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCurriculumHandler_Upload(t *testing.T) {
	meta := map[string]string{"name": "Biology Grade 9", "subject": "Biology", "numberOfChapters": "12"}

	t.Run("accepted", func(t *testing.T) {
		svc := &stubCurricula{}
		w := httptest.NewRecorder()
		curriculumRouter(svc).ServeHTTP(w, multipartUpload(t, meta, []string{"cells", "energy"}, "Plants make food."))

		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		assert.Equal(t, "Biology Grade 9", svc.uploaded.Name)
		assert.Equal(t, 12, svc.uploaded.NumberOfChapters)
		assert.Equal(t, []string{"cells", "energy"}, svc.uploaded.Topics)
		assert.Equal(t, "Plants make food.", svc.uploadBody)
		assert.Equal(t, "teacher-7", svc.creator)
	})

	tests := []struct {
		name     string
		fields   map[string]string
		file     string
		err      error
		wantCode int
		wantErr  response.ErrCode
	}{
		{"no file", meta, "", nil, http.StatusBadRequest, response.ErrFileRequired},
		{"missing name", map[string]string{"subject": "Biology"}, "text", nil, http.StatusBadRequest, response.ErrValidation},
		{"unsupported", meta, "text", fmt.Errorf("%w: image/png", service.ErrUnsupportedFileType), http.StatusBadRequest, response.ErrUnsupportedFile},
		{"too large", meta, "text", service.ErrFileTooLarge, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge},
		{"storage failure", meta, "text", errors.New("disk full"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			curriculumRouter(&stubCurricula{uploadErr: tt.err}).ServeHTTP(w, multipartUpload(t, tt.fields, nil, tt.file))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decode(t, w).Error.Code)
		})
	}
}

func TestCurriculumHandler_Search(t *testing.T) {
	t.Run("passes query", func(t *testing.T) {
		svc := &stubCurricula{}
		w := doJSON(curriculumRouter(svc), http.MethodGet, "/api/v1/curricula/search?q=chlorophyll&limit=7&documentId=abc", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{"chlorophyll", 7, "abc"}, svc.searchArgs)
		assert.Contains(t, w.Body.String(), `"searchMethod":"database"`)
	})

	t.Run("query required", func(t *testing.T) {
		w := doJSON(curriculumRouter(&stubCurricula{}), http.MethodGet, "/api/v1/curricula/search", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown document", func(t *testing.T) {
		w := doJSON(curriculumRouter(&stubCurricula{searchErr: service.ErrCurriculumNotFound}), http.MethodGet, "/api/v1/curricula/search?q=x", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		w := doJSON(curriculumRouter(&stubCurricula{searchErr: errors.New("db down")}), http.MethodGet, "/api/v1/curricula/search?q=x", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, response.ErrSearchFailed, decode(t, w).Error.Code)
	})
}

func TestCurriculumHandler_ErrorMapping(t *testing.T) {
	id := uuid.New()
	svc := &stubCurricula{previews: map[string]string{id.String(): "Photosynthesis happens"}}
	r := curriculumRouter(svc)

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/api/v1/curricula/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/v1/curricula/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodPut, "/api/v1/curricula/"+id.String(), gin.H{"name": "x"}).Code)
	assert.Equal(t, http.StatusInternalServerError, doJSON(r, http.MethodDelete, "/api/v1/curricula/"+id.String(), nil).Code)

	w := doJSON(r, http.MethodGet, "/api/v1/curricula/"+id.String()+"/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Photosynthesis happens")
}

// ─── Health ─────────────────────────────────────────────────────────

type stubHealth struct{ status string }

func (s stubHealth) Check(context.Context) *service.HealthReport {
	return &service.HealthReport{Status: s.status}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		status   string
		wantCode int
	}{
		{service.HealthStatusHealthy, http.StatusOK},
		{service.HealthStatusDegraded, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", NewHealthHandler(stubHealth{tt.status}).Health)

			w := doJSON(r, http.MethodGet, "/health", nil)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.status)
		})
	}
}
