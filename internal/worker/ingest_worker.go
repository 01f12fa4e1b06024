package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// JobTimeout bounds one ingestion. Extraction of a large PDF plus embedding
// all of its chunks is the slow path.
const JobTimeout = 10 * time.Minute

// Ingester runs the ingestion pipeline for one curriculum.
type Ingester interface {
	Ingest(ctx context.Context, id uuid.UUID) error
}

// IngestWorker consumes ingest_documents_queue. A failed ingestion is recorded
// on the curriculum row and not retried; pending jobs stay queued across
// restarts.
type IngestWorker struct {
	rdb      ListPopper
	ingester Ingester
	log      zerolog.Logger
}

func NewIngestWorker(rdb ListPopper, ingester Ingester, log zerolog.Logger) *IngestWorker {
	return &IngestWorker{
		rdb:      rdb,
		ingester: ingester,
		log:      log.With().Str("component", "ingest_worker").Logger(),
	}
}

func (w *IngestWorker) Start(ctx context.Context) {
	w.log.Info().Msg("IngestWorker started")
	pollLoop(ctx, w.rdb, config.WorkerKey.IngestDocumentsQueue, w.log, w.handle)
	w.log.Info().Msg("IngestWorker stopped")
}

// handle runs one job to completion even if shutdown starts meanwhile, so a
// document is never left half-ingested.
func (w *IngestWorker) handle(ctx context.Context, payload string) error {
	var job model.IngestJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		w.log.Error().Err(err).Str("payload", payload).Msg("Invalid JSON payload")
		return nil
	}
	id, err := uuid.Parse(job.CurriculumID)
	if err != nil {
		w.log.Error().Str("curriculum_id", job.CurriculumID).Msg("Invalid curriculum ID in job")
		return nil
	}

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), JobTimeout)
	defer cancel()

	start := time.Now()
	if err := w.ingester.Ingest(jobCtx, id); err != nil {
		w.log.Error().Err(err).Str("curriculum_id", id.String()).Msg("Ingestion failed")
		return fmt.Errorf("ingest %s: %w", id, err)
	}
	w.log.Info().
		Str("curriculum_id", id.String()).
		Dur("elapsed", time.Since(start)).
		Msg("Ingestion finished")
	return nil
}
