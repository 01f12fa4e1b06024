// Package vectorstore adapts a Chroma vector-store service for chunk storage
// and nearest-neighbor retrieval.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/embedding"
	"github.com/stemsi/exstem-assessment/internal/httpjson"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// ErrUnavailable marks any failure talking to the vector store.
var ErrUnavailable = errors.New("vector store unavailable")

const (
	defaultSearchLimit = 5
	previewChars       = 100
)

// Config locates a Chroma collection.
type Config struct {
	URL            string
	Tenant         string
	Database       string
	Collection     string
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = "http://localhost:8000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Tenant == "" {
		c.Tenant = "default_tenant"
	}
	if c.Database == "" {
		c.Database = "default_database"
	}
	if c.Collection == "" {
		c.Collection = "curriculum_documents"
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

// Factory builds Index instances that share configuration, HTTP client, and embedder.
type Factory struct {
	cfg      Config
	client   *http.Client
	embedder embedding.Embedder
	log      zerolog.Logger
}

// NewFactory creates a Factory.
func NewFactory(cfg Config, embedder embedding.Embedder, log zerolog.Logger) *Factory {
	cfg = cfg.withDefaults()
	return &Factory{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		embedder: embedder,
		log:      log.With().Str("component", "vector_index").Logger(),
	}
}

// New returns a fresh Index in the Unprobed state.
func (f *Factory) New() *Index {
	return &Index{
		cfg:      f.cfg,
		client:   f.client,
		embedder: f.embedder,
		log:      f.log,
		now:      time.Now,
	}
}

// Index is one logical session with the vector store. Its connectivity probe
// is cached for the instance's lifetime; build a new Index (or call Reset)
// to observe a recovered or failed service.
type Index struct {
	cfg      Config
	client   *http.Client
	embedder embedding.Embedder
	log      zerolog.Logger
	now      func() time.Time

	mu           sync.Mutex
	state        ConnState
	collectionID string
}

// State returns the cached connectivity state.
func (x *Index) State() ConnState {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state
}

// Reset forgets the cached probe and collection handle.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.state = Unprobed
	x.collectionID = ""
}

// Heartbeat pings the service once, uncached, within the probe timeout.
func (x *Index) Heartbeat(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.ProbeTimeout)
	defer cancel()

	if err := httpjson.Get(ctx, x.client, x.cfg.URL+"/api/v2/heartbeat", nil, nil); err != nil {
		return fmt.Errorf("%w: heartbeat: %v", ErrUnavailable, err)
	}
	return nil
}

// CheckConnection probes the service on first use and returns the cached result afterwards.
// It never returns an error; any failure reads as false.
func (x *Index) CheckConnection(ctx context.Context) bool {
	x.mu.Lock()
	state := x.state
	x.mu.Unlock()
	if state != Unprobed {
		return state == Available
	}

	next := Available
	if err := x.Heartbeat(ctx); err != nil {
		x.log.Warn().Err(err).Str("url", x.cfg.URL).Msg("Vector store not available")
		next = Unavailable
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state == Unprobed {
		x.state = next
	}
	return x.state == Available
}

// AddDocuments embeds and stores all chunks of one document in a single batch.
// Unlike the read paths it reports failure, so ingestion can surface it.
func (x *Index) AddDocuments(ctx context.Context, doc model.DocumentRef, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	collection, err := x.collection(ctx)
	if err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embed chunks: %w", ErrUnavailable, err)
	}

	stamp := x.now().UnixMilli()
	uploadedAt := doc.UploadedAt.UTC().Format(time.RFC3339)
	req := addRequest{
		IDs:        make([]string, len(chunks)),
		Embeddings: vectors,
		Documents:  texts,
		Metadatas:  make([]map[string]any, len(chunks)),
	}
	for i, c := range chunks {
		req.IDs[i] = ChunkID(doc.DocumentID, c.ChunkIndex, stamp)
		req.Metadatas[i] = map[string]any{
			"documentId":  doc.DocumentID,
			"fileName":    doc.FileName,
			"chunkIndex":  c.ChunkIndex,
			"chunkText":   preview(c.Text),
			"uploadedAt":  uploadedAt,
			"totalChunks": len(chunks),
		}
	}

	if err := x.post(ctx, x.collectionURL(collection, "add"), req, nil); err != nil {
		return fmt.Errorf("add %d chunks: %w", len(chunks), err)
	}

	x.log.Info().Str("document_id", doc.DocumentID).Int("chunks", len(chunks)).Msg("Chunks indexed")
	return nil
}

// Search returns up to limit passages nearest to queryText, most relevant first.
// A non-empty documentID restricts results to that document.
func (x *Index) Search(ctx context.Context, queryText string, limit int, documentID string) ([]model.RetrievedPassage, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	collection, err := x.collection(ctx)
	if err != nil {
		return nil, err
	}

	vectors, err := x.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrUnavailable, err)
	}

	req := queryRequest{
		QueryEmbeddings: vectors,
		NResults:        limit,
		Include:         []string{"documents", "metadatas", "distances"},
	}
	if documentID != "" {
		req.Where = documentFilter(documentID)
	}

	var resp queryResponse
	if err := x.post(ctx, x.collectionURL(collection, "query"), req, &resp); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return resp.passages(), nil
}

// DeleteDocument removes every chunk of documentID. Deleting an absent document succeeds.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	collection, err := x.collection(ctx)
	if err != nil {
		return err
	}
	if err := x.post(ctx, x.collectionURL(collection, "delete"), deleteRequest{Where: documentFilter(documentID)}, nil); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

// ChunkID derives a chunk's store id from its document, ordinal, and creation time.
func ChunkID(documentID string, chunkIndex int, unixMillis int64) string {
	return fmt.Sprintf("%s_chunk_%d_%d", documentID, chunkIndex, unixMillis)
}

// collection returns the collection id, creating the collection on first use.
func (x *Index) collection(ctx context.Context) (string, error) {
	if !x.CheckConnection(ctx) {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, x.cfg.URL)
	}

	x.mu.Lock()
	id := x.collectionID
	x.mu.Unlock()
	if id != "" {
		return id, nil
	}

	req := createCollectionRequest{
		Name:        x.cfg.Collection,
		GetOrCreate: true,
		Metadata:    map[string]any{"description": "Curriculum document embeddings"},
	}
	var resp collectionResponse
	u := fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s/collections",
		x.cfg.URL, url.PathEscape(x.cfg.Tenant), url.PathEscape(x.cfg.Database))
	if err := x.post(ctx, u, req, &resp); err != nil {
		return "", fmt.Errorf("get or create collection: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: collection %q returned no id", ErrUnavailable, x.cfg.Collection)
	}

	x.mu.Lock()
	x.collectionID = resp.ID
	x.mu.Unlock()
	return resp.ID, nil
}

func (x *Index) collectionURL(collectionID, op string) string {
	return fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s/collections/%s/%s",
		x.cfg.URL, url.PathEscape(x.cfg.Tenant), url.PathEscape(x.cfg.Database),
		url.PathEscape(collectionID), op)
}

func (x *Index) post(ctx context.Context, u string, body, out any) error {
	if err := httpjson.Post(ctx, x.client, u, nil, body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{"documentId": map[string]any{"$eq": documentID}}
}

func preview(text string) string {
	r := []rune(text)
	if len(r) > previewChars {
		r = r[:previewChars]
	}
	return string(r) + "..."
}

// ─── Wire types ────────────────────────────────────────────────────

type createCollectionRequest struct {
	Name        string         `json:"name"`
	GetOrCreate bool           `json:"get_or_create"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type addRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

type deleteRequest struct {
	Where map[string]any `json:"where"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]*float64       `json:"distances"`
}

// passages flattens the single-query response into passages sorted by distance.
func (r queryResponse) passages() []model.RetrievedPassage {
	if len(r.IDs) == 0 {
		return []model.RetrievedPassage{}
	}

	out := make([]model.RetrievedPassage, 0, len(r.IDs[0]))
	for i := range r.IDs[0] {
		var p model.RetrievedPassage
		if len(r.Documents) > 0 && i < len(r.Documents[0]) && r.Documents[0][i] != nil {
			p.Text = *r.Documents[0][i]
		}
		if p.Text == "" {
			continue
		}
		if len(r.Distances) > 0 && i < len(r.Distances[0]) {
			p.Distance = r.Distances[0][i]
		}
		if len(r.Metadatas) > 0 && i < len(r.Metadatas[0]) {
			applyMetadata(&p.Chunk, r.Metadatas[0][i])
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return distanceOf(out[i]) < distanceOf(out[j])
	})
	return out
}

func applyMetadata(c *model.Chunk, md map[string]any) {
	if v, ok := md["documentId"].(string); ok {
		c.DocumentID = v
	}
	if v, ok := md["fileName"].(string); ok {
		c.SourceFileName = v
	}
	if v, ok := md["chunkIndex"].(float64); ok {
		c.ChunkIndex = int(v)
	}
	if v, ok := md["uploadedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			c.UploadedAt = t
		}
	}
}

// distanceOf orders passages without a distance after those with one.
func distanceOf(p model.RetrievedPassage) float64 {
	if p.Distance == nil {
		return float64(1<<53)
	}
	return *p.Distance
}
