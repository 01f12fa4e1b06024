package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeList is an in-memory list store keyed by queue name.
type fakeList struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newFakeList() *fakeList { return &fakeList{lists: map[string][]string{}} }

func (f *fakeList) push(queue string, job any) {
	data, _ := json.Marshal(job)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[queue] = append(f.lists[queue], string(data))
}

func (f *fakeList) pop(queue string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[queue]
	if len(l) == 0 {
		return "", false
	}
	f.lists[queue] = l[1:]
	return l[0], true
}

func (f *fakeList) size(queue string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists[queue])
}

func (f *fakeList) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	if v, ok := f.pop(keys[0]); ok {
		return redis.NewStringSliceResult([]string{keys[0], v}, nil)
	}
	select {
	case <-ctx.Done():
		return redis.NewStringSliceResult(nil, ctx.Err())
	case <-time.After(10 * time.Millisecond):
		return redis.NewStringSliceResult(nil, redis.Nil)
	}
}

func (f *fakeList) LPop(_ context.Context, key string) *redis.StringCmd {
	if v, ok := f.pop(key); ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeList) LLen(_ context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(int64(f.size(key)), nil)
}

func (f *fakeList) Enqueue(_ context.Context, queue string, job any) error {
	f.push(queue, job)
	return nil
}

type fakeIngester struct {
	mu   sync.Mutex
	ids  []uuid.UUID
	err  error
	ctxs []context.Context
}

func (f *fakeIngester) Ingest(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	f.ctxs = append(f.ctxs, ctx)
	return f.err
}

func (f *fakeIngester) seen() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.ids...)
}

type fakeDeleter struct {
	available bool
	err       error
	deleted   *[]string
}

func (f fakeDeleter) CheckConnection(context.Context) bool { return f.available }

func (f fakeDeleter) DeleteDocument(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	*f.deleted = append(*f.deleted, id)
	return nil
}

func TestIngestWorker_Handle(t *testing.T) {
	id := uuid.New()

	t.Run("runs ingestion", func(t *testing.T) {
		ing := &fakeIngester{}
		w := NewIngestWorker(newFakeList(), ing, zerolog.Nop())

		require.NoError(t, w.handle(context.Background(), `{"curriculum_id":"`+id.String()+`"}`))
		assert.Equal(t, []uuid.UUID{id}, ing.seen())
	})

	t.Run("survives shutdown mid-job", func(t *testing.T) {
		ing := &fakeIngester{}
		w := NewIngestWorker(newFakeList(), ing, zerolog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, w.handle(ctx, `{"curriculum_id":"`+id.String()+`"}`))
		require.Len(t, ing.ctxs, 1)
		assert.NoError(t, ing.ctxs[0].Err())
		_, hasDeadline := ing.ctxs[0].Deadline()
		assert.True(t, hasDeadline)
	})

	t.Run("bad payloads are dropped", func(t *testing.T) {
		ing := &fakeIngester{}
		w := NewIngestWorker(newFakeList(), ing, zerolog.Nop())

		assert.NoError(t, w.handle(context.Background(), `not json`))
		assert.NoError(t, w.handle(context.Background(), `{"curriculum_id":"nope"}`))
		assert.Empty(t, ing.seen())
	})

	t.Run("ingestion error is reported", func(t *testing.T) {
		w := NewIngestWorker(newFakeList(), &fakeIngester{err: errors.New("extract failed")}, zerolog.Nop())
		assert.Error(t, w.handle(context.Background(), `{"curriculum_id":"`+id.String()+`"}`))
	})
}

func TestIngestWorker_StartConsumesQueue(t *testing.T) {
	list := newFakeList()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	for _, id := range ids {
		list.push(config.WorkerKey.IngestDocumentsQueue, model.IngestJob{CurriculumID: id.String()})
	}
	ing := &fakeIngester{}
	w := NewIngestWorker(list, ing, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(ing.seen()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, ids, ing.seen())
}

func TestVectorCleanupWorker_Handle(t *testing.T) {
	t.Run("deletes when available", func(t *testing.T) {
		var deleted []string
		list := newFakeList()
		w := NewVectorCleanupWorker(list, list, func() VectorDeleter {
			return fakeDeleter{available: true, deleted: &deleted}
		}, zerolog.Nop())

		require.NoError(t, w.handle(context.Background(), `{"document_id":"doc-1"}`))
		assert.Equal(t, []string{"doc-1"}, deleted)
		assert.Zero(t, list.size(config.WorkerKey.VectorCleanupQueue))
	})

	t.Run("outage does not spend attempts", func(t *testing.T) {
		list := newFakeList()
		w := NewVectorCleanupWorker(list, list, func() VectorDeleter {
			return fakeDeleter{available: false}
		}, zerolog.Nop())

		payload := `{"document_id":"doc-1","attempts":2}`
		for range MaxCleanupAttempts * 2 {
			assert.ErrorIs(t, w.handle(context.Background(), payload), errStoreUnavailable)
			raw, ok := list.pop(config.WorkerKey.VectorCleanupQueue)
			require.True(t, ok, "job stays queued through the outage")
			payload = raw
		}

		var job model.VectorCleanupJob
		require.NoError(t, json.Unmarshal([]byte(payload), &job))
		assert.Equal(t, model.VectorCleanupJob{DocumentID: "doc-1", Attempts: 2}, job)
	})

	t.Run("failed delete requeues with attempt count", func(t *testing.T) {
		list := newFakeList()
		w := NewVectorCleanupWorker(list, list, func() VectorDeleter {
			return fakeDeleter{available: true, err: errors.New("500 from chroma")}
		}, zerolog.Nop())

		assert.Error(t, w.handle(context.Background(), `{"document_id":"doc-1","attempts":2}`))

		raw, ok := list.pop(config.WorkerKey.VectorCleanupQueue)
		require.True(t, ok)
		var job model.VectorCleanupJob
		require.NoError(t, json.Unmarshal([]byte(raw), &job))
		assert.Equal(t, model.VectorCleanupJob{DocumentID: "doc-1", Attempts: 3}, job)
	})

	t.Run("abandons after max attempts", func(t *testing.T) {
		list := newFakeList()
		w := NewVectorCleanupWorker(list, list, func() VectorDeleter {
			return fakeDeleter{available: true, err: errors.New("500 from chroma")}
		}, zerolog.Nop())

		assert.NoError(t, w.handle(context.Background(), `{"document_id":"doc-1","attempts":9}`))
		assert.Zero(t, list.size(config.WorkerKey.VectorCleanupQueue))
	})
}

func TestVectorCleanupWorker_Drain(t *testing.T) {
	var deleted []string
	list := newFakeList()
	for _, id := range []string{"doc-1", "doc-2"} {
		list.push(config.WorkerKey.VectorCleanupQueue, model.VectorCleanupJob{DocumentID: id})
	}

	available := false
	w := NewVectorCleanupWorker(list, list, func() VectorDeleter {
		return fakeDeleter{available: available, deleted: &deleted}
	}, zerolog.Nop())

	w.drain(context.Background())
	assert.Equal(t, 2, list.size(config.WorkerKey.VectorCleanupQueue), "failed jobs go back once")

	available = true
	w.drain(context.Background())
	assert.Equal(t, []string{"doc-1", "doc-2"}, deleted)
	assert.Zero(t, list.size(config.WorkerKey.VectorCleanupQueue))
}
