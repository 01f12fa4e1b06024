package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/extractor"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/segmenter"
)

// Sentinel errors for curriculum documents.
var (
	ErrCurriculumNotFound  = errors.New("curriculum not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrEmptyDocument       = errors.New("no text content could be extracted")
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
	defaultPreviewTTL  = time.Hour
)

// Search methods reported by CurriculumService.Search.
const (
	SearchMethodChroma   = "chroma"
	SearchMethodDatabase = "database"
)

var fileExtensions = map[string]string{
	extractor.ContentTypePDF:  ".pdf",
	extractor.ContentTypeText: ".txt",
}

// CurriculumStore persists curriculum documents.
type CurriculumStore interface {
	Create(ctx context.Context, c *model.Curriculum) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Curriculum, error)
	ListPaginated(ctx context.Context, filter model.CurriculumFilter, limit, offset int) ([]model.Curriculum, int, error)
	Update(ctx context.Context, c *model.Curriculum) error
	UpdateIngest(ctx context.Context, id uuid.UUID, res repository.IngestResult) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.IngestStatus, ingestErr string) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetTextPreview(ctx context.Context, id uuid.UUID, n int) (string, error)
	SearchText(ctx context.Context, query string, limit int, documentID *uuid.UUID) ([]model.CurriculumSearchHit, error)
}

// DocumentIndex is the vector store as used by ingestion and deletion.
type DocumentIndex interface {
	VectorIndex
	AddDocuments(ctx context.Context, doc model.DocumentRef, chunks []model.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// DocumentIndexFactory returns a fresh, unprobed index.
type DocumentIndexFactory func() DocumentIndex

// TextExtractor reads plain text out of a stored upload.
type TextExtractor interface {
	Extract(ctx context.Context, path, contentType string) (string, error)
}

// JobQueue pushes background jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, queue string, job any) error
}

// EventPublisher broadcasts ingestion progress.
type EventPublisher interface {
	PublishIngest(ctx context.Context, ev model.IngestEvent) error
}

// TextCache is a string cache with expiry.
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CurriculumConfig tunes uploads and previews.
type CurriculumConfig struct {
	UploadDir      string
	MaxUploadBytes int64
	PreviewChars   int
	PreviewTTL     time.Duration
}

// SearchResult is the outcome of a curriculum content search.
type SearchResult struct {
	Query   string                      `json:"query"`
	Method  string                      `json:"searchMethod"`
	Results []model.CurriculumSearchHit `json:"results"`
}

// CurriculumService handles curriculum uploads, ingestion, and lookup.
type CurriculumService struct {
	store     CurriculumStore
	newIndex  DocumentIndexFactory
	extractor TextExtractor
	segmenter *segmenter.Segmenter
	queue     JobQueue
	events    EventPublisher
	cache     TextCache
	cfg       CurriculumConfig
	now       func() time.Time
	log       zerolog.Logger
}

// NewCurriculumService creates a new CurriculumService.
func NewCurriculumService(
	store CurriculumStore,
	newIndex DocumentIndexFactory,
	textExtractor TextExtractor,
	seg *segmenter.Segmenter,
	queue JobQueue,
	events EventPublisher,
	cache TextCache,
	cfg CurriculumConfig,
	log zerolog.Logger,
) *CurriculumService {
	if cfg.PreviewTTL <= 0 {
		cfg.PreviewTTL = defaultPreviewTTL
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = 5000
	}
	if seg == nil {
		seg = segmenter.New()
	}
	return &CurriculumService{
		store:     store,
		newIndex:  newIndex,
		extractor: textExtractor,
		segmenter: seg,
		queue:     queue,
		events:    events,
		cache:     cache,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With().Str("component", "curriculum_service").Logger(),
	}
}

// Upload stores the file, records a pending curriculum, and queues it for ingestion.
func (s *CurriculumService) Upload(ctx context.Context, file io.Reader, header *multipart.FileHeader, req *model.CreateCurriculumRequest, createdBy string) (*model.Curriculum, error) {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = extractor.ContentTypeFor(header.Filename)
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext, ok := fileExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s (allowed: %s, %s)",
			ErrUnsupportedFileType, contentType, extractor.ContentTypePDF, extractor.ContentTypeText)
	}
	if header.Size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	id := uuid.New()
	filename := id.String() + ext
	destPath := filepath.Join(s.cfg.UploadDir, filename)
	if err := writeFile(destPath, file); err != nil {
		return nil, err
	}

	c := &model.Curriculum{
		ID:               id,
		Name:             strings.TrimSpace(req.Name),
		Subject:          strings.TrimSpace(req.Subject),
		Grade:            req.Grade,
		Board:            req.Board,
		BookTitle:        req.BookTitle,
		Author:           req.Author,
		Publisher:        req.Publisher,
		Edition:          req.Edition,
		NumberOfChapters: req.NumberOfChapters,
		Topics:           normalizeTopics(req.Topics),
		FileName:         filepath.Base(header.Filename),
		FileURL:          "/uploads/" + filename,
		FilePath:         destPath,
		ContentType:      contentType,
		Status:           model.IngestStatusPending,
		CreatedBy:        createdBy,
	}
	if err := s.store.Create(ctx, c); err != nil {
		_ = os.Remove(destPath)
		return nil, fmt.Errorf("create curriculum: %w", err)
	}

	if err := s.queue.Enqueue(ctx, config.WorkerKey.IngestDocumentsQueue, model.IngestJob{CurriculumID: id.String()}); err != nil {
		s.log.Error().Err(err).Str("curriculum_id", id.String()).Msg("Failed to queue ingestion")
		c.Status = model.IngestStatusFailed
		c.IngestError = "ingestion could not be queued"
		if uerr := s.store.UpdateStatus(ctx, id, c.Status, c.IngestError); uerr != nil {
			s.log.Error().Err(uerr).Str("curriculum_id", id.String()).Msg("Failed to mark curriculum failed")
		}
		return nil, fmt.Errorf("queue ingestion: %w", err)
	}

	s.publish(ctx, model.IngestEvent{CurriculumID: id.String(), Stage: model.IngestStageQueued, Status: c.Status})
	s.log.Info().Str("curriculum_id", id.String()).Str("file", c.FileName).Msg("Curriculum uploaded")
	return c, nil
}

func writeFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// normalizeTopics trims topics and splits comma-separated form values.
func normalizeTopics(raw []string) []string {
	topics := []string{}
	for _, r := range raw {
		for _, t := range strings.Split(r, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}
	return topics
}

// Ingest extracts, cleans, and chunks a stored upload, then indexes the chunks
// when the vector store is reachable. An unreachable store leaves the document
// in the stored state; a failed index write marks it failed.
func (s *CurriculumService) Ingest(ctx context.Context, id uuid.UUID) error {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCurriculumNotFound
		}
		return fmt.Errorf("get curriculum: %w", err)
	}
	docID := c.DocumentID()
	log := s.log.With().Str("curriculum_id", docID).Logger()

	s.publish(ctx, model.IngestEvent{CurriculumID: docID, Stage: model.IngestStageExtracting})
	raw, err := s.extractor.Extract(ctx, c.FilePath, c.ContentType)
	if err != nil {
		return s.fail(ctx, c, fmt.Errorf("extract text: %w", err))
	}

	s.publish(ctx, model.IngestEvent{CurriculumID: docID, Stage: model.IngestStageChunking})
	doc := model.DocumentRef{DocumentID: docID, FileName: c.FileName, UploadedAt: c.CreatedAt}
	cleaned, chunks, err := s.segmenter.Segment(doc, raw)
	if err != nil {
		return s.fail(ctx, c, fmt.Errorf("segment text: %w", err))
	}
	if cleaned == "" {
		return s.fail(ctx, c, ErrEmptyDocument)
	}

	res := repository.IngestResult{
		TextContent: cleaned,
		TotalChunks: len(chunks),
		Status:      model.IngestStatusStored,
	}

	idx := s.newIndex()
	if idx.CheckConnection(ctx) {
		s.publish(ctx, model.IngestEvent{CurriculumID: docID, Stage: model.IngestStageIndexing, TotalChunks: len(chunks)})
		if c.VectorIndexed {
			// Re-ingestion: chunk IDs are timestamped, so old vectors would linger.
			if err := idx.DeleteDocument(ctx, docID); err != nil {
				log.Warn().Err(err).Msg("Failed to remove previous vectors")
			}
		}
		if err := idx.AddDocuments(ctx, doc, chunks); err != nil {
			res.Status = model.IngestStatusFailed
			res.Error = err.Error()
			if uerr := s.store.UpdateIngest(ctx, c.ID, res); uerr != nil {
				log.Error().Err(uerr).Msg("Failed to record ingest failure")
			}
			s.invalidatePreview(ctx, docID)
			s.publish(ctx, model.IngestEvent{CurriculumID: docID, Stage: model.IngestStageFailed, Status: res.Status, TotalChunks: len(chunks), Error: res.Error})
			return fmt.Errorf("index document: %w", err)
		}
		res.Status = model.IngestStatusIndexed
		res.VectorIndexed = true
	} else {
		log.Warn().Msg("Vector store unavailable, storing text only")
	}

	if err := s.store.UpdateIngest(ctx, c.ID, res); err != nil {
		return fmt.Errorf("save ingest result: %w", err)
	}
	s.invalidatePreview(ctx, docID)

	s.publish(ctx, model.IngestEvent{
		CurriculumID:  docID,
		Stage:         model.IngestStageCompleted,
		Status:        res.Status,
		TotalChunks:   res.TotalChunks,
		VectorIndexed: res.VectorIndexed,
	})
	log.Info().Int("chunks", res.TotalChunks).Str("status", string(res.Status)).Msg("Curriculum ingested")
	return nil
}

func (s *CurriculumService) fail(ctx context.Context, c *model.Curriculum, cause error) error {
	docID := c.DocumentID()
	if err := s.store.UpdateStatus(ctx, c.ID, model.IngestStatusFailed, cause.Error()); err != nil {
		s.log.Error().Err(err).Str("curriculum_id", docID).Msg("Failed to mark curriculum failed")
	}
	s.publish(ctx, model.IngestEvent{CurriculumID: docID, Stage: model.IngestStageFailed, Status: model.IngestStatusFailed, Error: cause.Error()})
	return cause
}

func (s *CurriculumService) publish(ctx context.Context, ev model.IngestEvent) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	if err := s.events.PublishIngest(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("curriculum_id", ev.CurriculumID).Str("stage", string(ev.Stage)).Msg("Failed to publish ingest event")
	}
}

func (s *CurriculumService) invalidatePreview(ctx context.Context, documentID string) {
	if err := s.cache.Delete(ctx, config.CacheKey.CurriculumPreviewKey(documentID)); err != nil {
		s.log.Warn().Err(err).Str("curriculum_id", documentID).Msg("Failed to invalidate preview cache")
	}
}

// TextPreview returns the leading PreviewChars characters of a document's
// stored text, served from Redis when cached.
func (s *CurriculumService) TextPreview(ctx context.Context, documentID string) (string, error) {
	key := config.CacheKey.CurriculumPreviewKey(documentID)
	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Preview cache read failed")
	} else if ok {
		return cached, nil
	}

	id, err := uuid.Parse(documentID)
	if err != nil {
		return "", ErrCurriculumNotFound
	}
	text, err := s.store.GetTextPreview(ctx, id, s.cfg.PreviewChars)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrCurriculumNotFound
		}
		return "", fmt.Errorf("get preview: %w", err)
	}

	if text != "" {
		if err := s.cache.Set(ctx, key, text, s.cfg.PreviewTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Preview cache write failed")
		}
	}
	return text, nil
}

// Search queries the vector store and falls back to a text match in the
// database when the store is down or returns nothing.
func (s *CurriculumService) Search(ctx context.Context, query string, limit int, documentID string) (*SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	var docFilter *uuid.UUID
	if documentID != "" {
		id, err := uuid.Parse(documentID)
		if err != nil {
			return nil, ErrCurriculumNotFound
		}
		docFilter = &id
	}

	idx := s.newIndex()
	if idx.CheckConnection(ctx) {
		passages, err := idx.Search(ctx, query, limit, documentID)
		if err != nil {
			s.log.Warn().Err(err).Str("query", query).Msg("Vector search failed, using database")
		} else if len(passages) > 0 {
			hits := make([]model.CurriculumSearchHit, len(passages))
			for i, p := range passages {
				hits[i] = model.CurriculumSearchHit{
					DocumentID: p.DocumentID,
					FileName:   p.SourceFileName,
					ChunkIndex: p.ChunkIndex,
					Text:       p.Text,
					Distance:   p.Distance,
				}
			}
			return &SearchResult{Query: query, Method: SearchMethodChroma, Results: hits}, nil
		}
	}

	hits, err := s.store.SearchText(ctx, query, limit, docFilter)
	if err != nil {
		return nil, fmt.Errorf("search curricula: %w", err)
	}
	if hits == nil {
		hits = []model.CurriculumSearchHit{}
	}
	return &SearchResult{Query: query, Method: SearchMethodDatabase, Results: hits}, nil
}

// GetByID retrieves a curriculum including its extracted text.
func (s *CurriculumService) GetByID(ctx context.Context, id uuid.UUID) (*model.Curriculum, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCurriculumNotFound
		}
		return nil, fmt.Errorf("get curriculum: %w", err)
	}
	return c, nil
}

// List retrieves curricula with pagination.
func (s *CurriculumService) List(ctx context.Context, filter model.CurriculumFilter, page, perPage int) ([]model.Curriculum, *response.Pagination, error) {
	page, perPage = clampPage(page, perPage)

	items, total, err := s.store.ListPaginated(ctx, filter, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list curricula: %w", err)
	}
	if items == nil {
		items = []model.Curriculum{}
	}
	return items, response.NewPagination(page, perPage, total), nil
}

// Update applies the non-nil metadata fields of req.
func (s *CurriculumService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateCurriculumRequest) (*model.Curriculum, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	setString(&c.Name, req.Name)
	setString(&c.Subject, req.Subject)
	setString(&c.Grade, req.Grade)
	setString(&c.Board, req.Board)
	setString(&c.BookTitle, req.BookTitle)
	setString(&c.Author, req.Author)
	setString(&c.Publisher, req.Publisher)
	setString(&c.Edition, req.Edition)
	if req.NumberOfChapters != nil {
		c.NumberOfChapters = *req.NumberOfChapters
	}
	if req.Topics != nil {
		c.Topics = normalizeTopics(*req.Topics)
	}

	if err := s.store.Update(ctx, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCurriculumNotFound
		}
		return nil, fmt.Errorf("update curriculum: %w", err)
	}
	return c, nil
}

// Delete removes the curriculum row, its vectors, its stored file, and its
// cached preview. Vectors that cannot be removed now are queued for cleanup.
func (s *CurriculumService) Delete(ctx context.Context, id uuid.UUID) error {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCurriculumNotFound
		}
		return fmt.Errorf("delete curriculum: %w", err)
	}

	docID := c.DocumentID()
	log := s.log.With().Str("curriculum_id", docID).Logger()

	idx := s.newIndex()
	removed := false
	if idx.CheckConnection(ctx) {
		if err := idx.DeleteDocument(ctx, docID); err != nil {
			log.Warn().Err(err).Msg("Vector delete failed, queueing cleanup")
		} else {
			removed = true
		}
	}
	if !removed {
		if err := s.queue.Enqueue(ctx, config.WorkerKey.VectorCleanupQueue, model.VectorCleanupJob{DocumentID: docID}); err != nil {
			log.Error().Err(err).Msg("Failed to queue vector cleanup")
		}
	}

	if c.FilePath != "" {
		if err := os.Remove(c.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", c.FilePath).Msg("Failed to remove stored file")
		}
	}
	s.invalidatePreview(ctx, docID)

	log.Info().Bool("vectors_removed", removed).Msg("Curriculum deleted")
	return nil
}
