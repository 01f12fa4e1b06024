package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	// MaxCleanupAttempts bounds deletes that fail while the store is reachable.
	MaxCleanupAttempts = 10
	drainTimeout       = 10 * time.Second
)

var errStoreUnavailable = errors.New("vector store unavailable")

// VectorDeleter removes a document's vectors.
type VectorDeleter interface {
	CheckConnection(ctx context.Context) bool
	DeleteDocument(ctx context.Context, documentID string) error
}

// VectorCleanupWorker removes vectors of deleted curricula that could not be
// removed at delete time.
type VectorCleanupWorker struct {
	rdb      ListPopper
	queue    Requeuer
	newIndex func() VectorDeleter
	log      zerolog.Logger
}

func NewVectorCleanupWorker(rdb ListPopper, queue Requeuer, newIndex func() VectorDeleter, log zerolog.Logger) *VectorCleanupWorker {
	return &VectorCleanupWorker{
		rdb:      rdb,
		queue:    queue,
		newIndex: newIndex,
		log:      log.With().Str("component", "vector_cleanup_worker").Logger(),
	}
}

func (w *VectorCleanupWorker) Start(ctx context.Context) {
	w.log.Info().Msg("VectorCleanupWorker started")
	pollLoop(ctx, w.rdb, config.WorkerKey.VectorCleanupQueue, w.log, w.handle)

	w.log.Info().Msg("Shutdown requested. Draining cleanup queue...")
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	w.drain(drainCtx)
}

// drain makes one pass over the jobs queued right now. Jobs that fail again
// are pushed back for the next start.
func (w *VectorCleanupWorker) drain(ctx context.Context) {
	queue := config.WorkerKey.VectorCleanupQueue
	pending, err := w.rdb.LLen(ctx, queue).Result()
	if err != nil {
		w.log.Error().Err(err).Msg("Drain LLen error")
		return
	}

	for range pending {
		payload, err := w.rdb.LPop(ctx, queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				w.log.Error().Err(err).Msg("Drain LPop error")
			}
			return
		}
		_ = w.handle(ctx, payload)
	}
}

func (w *VectorCleanupWorker) handle(ctx context.Context, payload string) error {
	var job model.VectorCleanupJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		w.log.Error().Err(err).Str("payload", payload).Msg("Invalid JSON payload")
		return nil
	}
	log := w.log.With().Str("document_id", job.DocumentID).Int("attempts", job.Attempts).Logger()

	err := w.remove(ctx, job.DocumentID)
	if err == nil {
		log.Info().Msg("Vectors removed")
		return nil
	}

	// An unreachable store does not count against the job; only failed
	// deletes against a live store do.
	if !errors.Is(err, errStoreUnavailable) {
		job.Attempts++
	}
	if job.Attempts >= MaxCleanupAttempts {
		log.Error().Err(err).Msg("Vector cleanup abandoned")
		return nil
	}
	log.Warn().Err(err).Msg("Vector cleanup failed, requeueing")
	if qerr := w.queue.Enqueue(ctx, config.WorkerKey.VectorCleanupQueue, job); qerr != nil {
		log.Error().Err(qerr).Msg("Requeue failed")
	}
	return err
}

func (w *VectorCleanupWorker) remove(ctx context.Context, documentID string) error {
	idx := w.newIndex()
	if !idx.CheckConnection(ctx) {
		return errStoreUnavailable
	}
	if err := idx.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}
