package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/embedding"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedChunk struct {
	id       string
	document string
	metadata map[string]any
}

// fakeChroma keeps chunks in memory and answers queries in insertion order
// with increasing distances, reversed so the client has to sort them.
type fakeChroma struct {
	mu         sync.Mutex
	chunks     []storedChunk
	heartbeats atomic.Int32
	down       atomic.Bool
	lastQuery  queryRequest
}

func (f *fakeChroma) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		f.heartbeats.Add(1)
		if f.down.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"nanosecond heartbeat": 1}`))
	})

	base := "/api/v2/tenants/default_tenant/databases/default_database/collections"
	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		var req createCollectionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.GetOrCreate)
		_ = json.NewEncoder(w).Encode(collectionResponse{ID: "col-1", Name: req.Name})
	})
	mux.HandleFunc(base+"/col-1/add", func(w http.ResponseWriter, r *http.Request) {
		var req addRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		for i := range req.IDs {
			f.chunks = append(f.chunks, storedChunk{id: req.IDs[i], document: req.Documents[i], metadata: req.Metadatas[i]})
		}
		f.mu.Unlock()
		_, _ = w.Write([]byte(`true`))
	})
	mux.HandleFunc(base+"/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastQuery = req

		want := whereDocument(req.Where)
		var ids []string
		var docs []*string
		var metas []map[string]any
		var dists []*float64
		for i, c := range f.chunks {
			if want != "" && c.metadata["documentId"] != want {
				continue
			}
			if len(ids) == req.NResults {
				break
			}
			doc := c.document
			d := float64(i) / 10
			ids = append([]string{c.id}, ids...)
			docs = append([]*string{&doc}, docs...)
			metas = append([]map[string]any{c.metadata}, metas...)
			dists = append([]*float64{&d}, dists...)
		}
		_ = json.NewEncoder(w).Encode(queryResponse{
			IDs:       [][]string{ids},
			Documents: [][]*string{docs},
			Metadatas: [][]map[string]any{metas},
			Distances: [][]*float64{dists},
		})
	})
	mux.HandleFunc(base+"/col-1/delete", func(w http.ResponseWriter, r *http.Request) {
		var req deleteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		want := whereDocument(req.Where)

		f.mu.Lock()
		kept := f.chunks[:0]
		for _, c := range f.chunks {
			if c.metadata["documentId"] != want {
				kept = append(kept, c)
			}
		}
		f.chunks = kept
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	})
	return mux
}

func (f *fakeChroma) stored() []storedChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storedChunk(nil), f.chunks...)
}

func (f *fakeChroma) query() queryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery
}

func whereDocument(where map[string]any) string {
	cond, ok := where["documentId"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := cond["$eq"].(string)
	return s
}

func newTestIndex(t *testing.T) (*Index, *fakeChroma, *httptest.Server) {
	t.Helper()
	fake := &fakeChroma{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	f := NewFactory(Config{URL: srv.URL}, embedding.NewHashEmbedder(32), zerolog.Nop())
	idx := f.New()
	idx.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return idx, fake, srv
}

func testChunks(docID string, texts ...string) (model.DocumentRef, []model.Chunk) {
	ref := model.DocumentRef{
		DocumentID: docID,
		FileName:   docID + ".pdf",
		UploadedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	chunks := make([]model.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = model.Chunk{Text: text, DocumentID: docID, ChunkIndex: i, SourceFileName: ref.FileName, UploadedAt: ref.UploadedAt}
	}
	return ref, chunks
}

func TestIndex_CheckConnectionCached(t *testing.T) {
	idx, fake, _ := newTestIndex(t)
	ctx := context.Background()

	assert.Equal(t, Unprobed, idx.State())
	assert.True(t, idx.CheckConnection(ctx))
	assert.True(t, idx.CheckConnection(ctx))
	assert.Equal(t, Available, idx.State())
	assert.Equal(t, int32(1), fake.heartbeats.Load())

	// the cached answer survives the service going away
	fake.down.Store(true)
	assert.True(t, idx.CheckConnection(ctx))

	idx.Reset()
	assert.Equal(t, Unprobed, idx.State())
	assert.False(t, idx.CheckConnection(ctx))
	assert.Equal(t, Unavailable, idx.State())
	assert.Equal(t, int32(2), fake.heartbeats.Load())
}

func TestIndex_UnreachableService(t *testing.T) {
	idx, _, srv := newTestIndex(t)
	srv.Close()
	ctx := context.Background()

	assert.False(t, idx.CheckConnection(ctx))

	ref, chunks := testChunks("doc-1", "some text")
	assert.ErrorIs(t, idx.AddDocuments(ctx, ref, chunks), ErrUnavailable)

	_, err := idx.Search(ctx, "query", 5, "")
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.ErrorIs(t, idx.DeleteDocument(ctx, "doc-1"), ErrUnavailable)
}

func TestIndex_AddDocumentsIDsAndMetadata(t *testing.T) {
	idx, fake, _ := newTestIndex(t)
	long := strings.Repeat("x", 150)
	ref, chunks := testChunks("doc-1", "short chunk", long)

	require.NoError(t, idx.AddDocuments(context.Background(), ref, chunks))
	stored := fake.stored()
	require.Len(t, stored, 2)

	first := stored[0]
	assert.Equal(t, "doc-1_chunk_0_1700000000000", first.id)
	assert.Equal(t, "doc-1", first.metadata["documentId"])
	assert.Equal(t, "doc-1.pdf", first.metadata["fileName"])
	assert.Equal(t, float64(0), first.metadata["chunkIndex"])
	assert.Equal(t, float64(2), first.metadata["totalChunks"])
	assert.Equal(t, "short chunk...", first.metadata["chunkText"])
	assert.Equal(t, "2025-01-02T03:04:05Z", first.metadata["uploadedAt"])

	second := stored[1]
	assert.Equal(t, "doc-1_chunk_1_1700000000000", second.id)
	assert.Equal(t, strings.Repeat("x", 100)+"...", second.metadata["chunkText"])
}

func TestIndex_AddDocumentsEmpty(t *testing.T) {
	idx, fake, _ := newTestIndex(t)
	require.NoError(t, idx.AddDocuments(context.Background(), model.DocumentRef{DocumentID: "d"}, nil))
	assert.Equal(t, int32(0), fake.heartbeats.Load())
}

func TestIndex_SearchOrdersByDistance(t *testing.T) {
	idx, fake, _ := newTestIndex(t)
	ctx := context.Background()

	ref, chunks := testChunks("doc-1", "alpha", "beta", "gamma")
	require.NoError(t, idx.AddDocuments(ctx, ref, chunks))
	ref2, chunks2 := testChunks("doc-2", "delta")
	require.NoError(t, idx.AddDocuments(ctx, ref2, chunks2))

	got, err := idx.Search(ctx, "alpha", 3, "")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 3, fake.query().NResults)
	assert.Nil(t, fake.query().Where)

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, *got[i-1].Distance, *got[i].Distance)
	}
	assert.Equal(t, "alpha", got[0].Text)
	assert.Equal(t, "doc-1", got[0].DocumentID)
	assert.Equal(t, "doc-1.pdf", got[0].SourceFileName)
	assert.Equal(t, 0, got[0].ChunkIndex)
	assert.Equal(t, 2, got[2].ChunkIndex)
}

func TestIndex_SearchFilterAndDefaultLimit(t *testing.T) {
	idx, fake, _ := newTestIndex(t)
	ctx := context.Background()

	ref, chunks := testChunks("doc-1", "alpha")
	require.NoError(t, idx.AddDocuments(ctx, ref, chunks))
	ref2, chunks2 := testChunks("doc-2", "beta", "gamma")
	require.NoError(t, idx.AddDocuments(ctx, ref2, chunks2))

	got, err := idx.Search(ctx, "anything", 0, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, defaultSearchLimit, fake.query().NResults)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.Equal(t, "doc-2", p.DocumentID)
	}
}

func TestIndex_DeleteDocumentIdempotent(t *testing.T) {
	idx, fake, _ := newTestIndex(t)
	ctx := context.Background()

	ref, chunks := testChunks("doc-1", "alpha", "beta")
	require.NoError(t, idx.AddDocuments(ctx, ref, chunks))
	ref2, chunks2 := testChunks("doc-2", "gamma")
	require.NoError(t, idx.AddDocuments(ctx, ref2, chunks2))

	require.NoError(t, idx.DeleteDocument(ctx, "doc-1"))
	require.NoError(t, idx.DeleteDocument(ctx, "doc-1"))

	got, err := idx.Search(ctx, "alpha", 10, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, fake.stored(), 1)
}

func TestFactory_FreshInstances(t *testing.T) {
	fake := &fakeChroma{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	f := NewFactory(Config{URL: srv.URL}, embedding.NewHashEmbedder(8), zerolog.Nop())
	a, b := f.New(), f.New()
	assert.True(t, a.CheckConnection(context.Background()))
	assert.Equal(t, Unprobed, b.State())
}

func TestConnState_String(t *testing.T) {
	assert.Equal(t, "unprobed", Unprobed.String())
	assert.Equal(t, "available", Available.String())
	assert.Equal(t, "unavailable", Unavailable.String())
}
