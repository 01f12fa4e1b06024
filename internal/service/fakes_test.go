package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/vectorstore"
)

// ─── Vector index ──────────────────────────────────────────────────

type searchCall struct {
	query      string
	limit      int
	documentID string
}

type fakeIndex struct {
	available bool
	results   map[string][]model.RetrievedPassage
	searchErr map[string]error
	addErr    error
	deleteErr error

	probes   int
	searches []searchCall
	added    []model.Chunk
	deleted  []string
}

func (f *fakeIndex) CheckConnection(context.Context) bool {
	f.probes++
	return f.available
}

func (f *fakeIndex) Search(_ context.Context, query string, limit int, documentID string) ([]model.RetrievedPassage, error) {
	f.searches = append(f.searches, searchCall{query, limit, documentID})
	if err := f.searchErr[query]; err != nil {
		return nil, err
	}
	found := f.results[query]
	out := make([]model.RetrievedPassage, len(found))
	copy(out, found)
	return out, nil
}

func (f *fakeIndex) AddDocuments(_ context.Context, _ model.DocumentRef, chunks []model.Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, chunks...)
	return nil
}

func (f *fakeIndex) DeleteDocument(_ context.Context, documentID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, documentID)
	return nil
}

func passage(text string, distance float64) model.RetrievedPassage {
	return model.RetrievedPassage{Chunk: model.Chunk{Text: text}, Distance: &distance}
}

var errVectorDown = vectorstore.ErrUnavailable

// ─── Preview source ────────────────────────────────────────────────

type fakePreviews struct {
	texts map[string]string
	err   error
	calls int
}

func (f *fakePreviews) TextPreview(_ context.Context, documentID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.texts[documentID], nil
}

// ─── Assessment store ──────────────────────────────────────────────

type fakeAssessmentStore struct {
	items     map[uuid.UUID]*model.Assessment
	createErr error
	updateErr error

	listLimit, listOffset int
	replaced              bool
}

func newFakeAssessmentStore() *fakeAssessmentStore {
	return &fakeAssessmentStore{items: map[uuid.UUID]*model.Assessment{}}
}

func (f *fakeAssessmentStore) Create(_ context.Context, a *model.Assessment) error {
	if f.createErr != nil {
		return f.createErr
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.items[a.ID] = a
	return nil
}

func (f *fakeAssessmentStore) GetByID(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssessmentStore) ListPaginated(_ context.Context, _ model.AssessmentFilter, limit, offset int) ([]model.AssessmentSummary, int, error) {
	f.listLimit, f.listOffset = limit, offset
	var out []model.AssessmentSummary
	for _, a := range f.items {
		out = append(out, model.AssessmentSummary{ID: a.ID, Title: a.Title})
	}
	return out, len(f.items), nil
}

func (f *fakeAssessmentStore) Update(_ context.Context, a *model.Assessment, replaceQuestions bool) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.items[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.replaced = replaceQuestions
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeAssessmentStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

// ─── Curriculum store ──────────────────────────────────────────────

type fakeCurriculumStore struct {
	items      map[uuid.UUID]*model.Curriculum
	createErr  error
	searchHits []model.CurriculumSearchHit

	ingests  []repository.IngestResult
	statuses []model.IngestStatus
	searched []string
}

func newFakeCurriculumStore() *fakeCurriculumStore {
	return &fakeCurriculumStore{items: map[uuid.UUID]*model.Curriculum{}}
}

func (f *fakeCurriculumStore) Create(_ context.Context, c *model.Curriculum) error {
	if f.createErr != nil {
		return f.createErr
	}
	c.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCurriculumStore) GetByID(_ context.Context, id uuid.UUID) (*model.Curriculum, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCurriculumStore) ListPaginated(_ context.Context, _ model.CurriculumFilter, _, _ int) ([]model.Curriculum, int, error) {
	return nil, 0, nil
}

func (f *fakeCurriculumStore) Update(_ context.Context, c *model.Curriculum) error {
	if _, ok := f.items[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCurriculumStore) UpdateIngest(_ context.Context, id uuid.UUID, res repository.IngestResult) error {
	c, ok := f.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	f.ingests = append(f.ingests, res)
	c.TextContent = res.TextContent
	c.TotalChunks = res.TotalChunks
	c.Status = res.Status
	c.VectorIndexed = res.VectorIndexed
	c.IngestError = res.Error
	return nil
}

func (f *fakeCurriculumStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.IngestStatus, ingestErr string) error {
	f.statuses = append(f.statuses, status)
	if c, ok := f.items[id]; ok {
		c.Status = status
		c.IngestError = ingestErr
	}
	return nil
}

func (f *fakeCurriculumStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

func (f *fakeCurriculumStore) GetTextPreview(_ context.Context, id uuid.UUID, n int) (string, error) {
	c, ok := f.items[id]
	if !ok {
		return "", pgx.ErrNoRows
	}
	r := []rune(c.TextContent)
	if len(r) > n {
		r = r[:n]
	}
	return string(r), nil
}

func (f *fakeCurriculumStore) SearchText(_ context.Context, query string, _ int, _ *uuid.UUID) ([]model.CurriculumSearchHit, error) {
	f.searched = append(f.searched, query)
	return f.searchHits, nil
}

// ─── Extraction, queue, events, cache ──────────────────────────────

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, string, string) (string, error) {
	return f.text, f.err
}

type queuedJob struct {
	queue string
	job   any
}

type fakeQueue struct {
	jobs []queuedJob
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, queue string, job any) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, queuedJob{queue, job})
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []model.IngestEvent
}

func (f *fakeEvents) PublishIngest(_ context.Context, ev model.IngestEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) stages() []model.IngestStage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.IngestStage, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Stage
	}
	return out
}

type fakeCache struct {
	values map[string]string
	ttls   map[string]time.Duration
	gets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	f.gets++
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func passagesByTopic(texts map[string][]string) map[string][]model.RetrievedPassage {
	out := make(map[string][]model.RetrievedPassage, len(texts))
	for topic, list := range texts {
		for i, text := range list {
			out[topic] = append(out[topic], passage(text, 0.1*float64(i+1)))
		}
	}
	return out
}
