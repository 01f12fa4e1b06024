package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/queue"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

const pageSize = 100

// ingest re-queues curricula for ingestion, e.g. after the vector store was
// down during upload (status "stored") or extraction failed.
func main() {
	var (
		id     string
		status string
		dryRun bool
	)
	flag.StringVar(&id, "id", "", "Re-ingest a single curriculum")
	flag.StringVar(&status, "status", string(model.IngestStatusStored), "Re-ingest every curriculum in this status (pending, stored, failed, indexed)")
	flag.BoolVar(&dryRun, "dry-run", false, "List matching curricula without queueing")
	flag.Parse()

	cfg := config.Load()
	log := logger.SetupWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	repo := repository.NewCurriculumRepository(pool)
	jobs := queue.NewRedis(rdb)

	var targets []model.Curriculum
	if id != "" {
		cid, err := uuid.Parse(id)
		if err != nil {
			log.Fatal().Str("id", id).Msg("Invalid curriculum ID")
		}
		c, err := repo.GetByID(ctx, cid)
		if err != nil {
			log.Fatal().Err(err).Str("id", id).Msg("Curriculum not found")
		}
		targets = append(targets, *c)
	} else {
		filter := model.CurriculumFilter{Status: model.IngestStatus(status)}
		for offset := 0; ; offset += pageSize {
			page, total, err := repo.ListPaginated(ctx, filter, pageSize, offset)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to list curricula")
			}
			targets = append(targets, page...)
			if offset+pageSize >= total || len(page) == 0 {
				break
			}
		}
	}

	queued := 0
	for _, c := range targets {
		fmt.Printf("%s\t%s\t%s\n", c.ID, c.Status, c.Name)
		if dryRun {
			continue
		}
		if err := repo.UpdateStatus(ctx, c.ID, model.IngestStatusPending, ""); err != nil {
			log.Error().Err(err).Str("curriculum_id", c.ID.String()).Msg("Failed to reset status")
			continue
		}
		if err := jobs.Enqueue(ctx, config.WorkerKey.IngestDocumentsQueue, model.IngestJob{CurriculumID: c.ID.String()}); err != nil {
			log.Error().Err(err).Str("curriculum_id", c.ID.String()).Msg("Failed to queue ingestion")
			continue
		}
		queued++
	}

	log.Info().Int("matched", len(targets)).Int("queued", queued).Bool("dry_run", dryRun).Msg("Re-ingest finished")
}
