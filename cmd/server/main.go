package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/embedding"
	"github.com/stemsi/exstem-assessment/internal/extractor"
	"github.com/stemsi/exstem-assessment/internal/generation"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/queue"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/router"
	"github.com/stemsi/exstem-assessment/internal/segmenter"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
	"github.com/stemsi/exstem-assessment/internal/vectorstore"
	"github.com/stemsi/exstem-assessment/internal/worker"
)

// workerDrainTimeout bounds how long shutdown waits for in-flight jobs.
const workerDrainTimeout = 30 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Assessment")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Retrieval Stack ───────────────────────────────────────────────
	embedder, err := embedding.New(embedding.Config{
		Provider:   embedding.Provider(cfg.Embedding.Provider),
		URL:        cfg.Embedding.URL,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Generation.OpenAIKey,
		BaseURL:    cfg.Generation.OpenAIURL,
		OllamaHost: cfg.Generation.OllamaHost,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Chroma.RequestTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure embedding backend")
	}

	indexes := vectorstore.NewFactory(vectorstore.Config{
		URL:            cfg.Chroma.URL,
		Tenant:         cfg.Chroma.Tenant,
		Database:       cfg.Chroma.Database,
		Collection:     cfg.Chroma.Collection,
		ProbeTimeout:   cfg.Chroma.ProbeTimeout,
		RequestTimeout: cfg.Chroma.RequestTimeout,
	}, embedder, log)

	// ─── Generation Backends ───────────────────────────────────────────
	ollama, err := generation.NewOllamaBackend(cfg.Generation.OllamaHost, cfg.Generation.OllamaModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure Ollama backend")
	}
	dispatcher := generation.NewDispatcher(
		[]generation.Backend{
			generation.NewOpenAIBackend(generation.OpenAIConfig{
				URL:    cfg.Generation.OpenAIURL,
				APIKey: cfg.Generation.OpenAIKey,
				Model:  cfg.Generation.OpenAIModel,
			}),
			generation.NewHuggingFaceBackend(cfg.Generation.HuggingFaceURL, cfg.Generation.HuggingFaceKey,
				&http.Client{Timeout: cfg.Generation.Timeout}),
			ollama,
		},
		generation.NewLocalGenerator(nil, nil),
		generation.DispatcherConfig{
			Timeout:         cfg.Generation.Timeout,
			MinContextChars: cfg.Pipeline.MinContentChars,
		},
		log,
	)
	log.Info().Interface("backends", dispatcher.Configured()).Msg("Generation backends configured")

	// ─── Initialize Repositories ───────────────────────────────────────
	curriculumRepo := repository.NewCurriculumRepository(pool)
	assessmentRepo := repository.NewAssessmentRepository(pool)
	jobs := queue.NewRedis(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	curriculumService := service.NewCurriculumService(
		curriculumRepo,
		func() service.DocumentIndex { return indexes.New() },
		extractor.New(),
		segmenter.New(
			segmenter.WithChunkSize(cfg.Pipeline.ChunkSize),
			segmenter.WithOverlap(cfg.Pipeline.ChunkOverlap),
		),
		jobs,
		jobs,
		cache.NewRedis(rdb),
		service.CurriculumConfig{
			UploadDir:      cfg.UploadDir,
			MaxUploadBytes: cfg.MaxUploadBytes,
			PreviewChars:   cfg.Pipeline.PreviewChars,
		},
		log,
	)
	retrievalService := service.NewRetrievalService(
		func() service.VectorIndex { return indexes.New() },
		curriculumService,
		service.RetrievalConfig{
			PerTopicLimit:   cfg.Pipeline.PerTopicLimit,
			MinContentChars: cfg.Pipeline.MinContentChars,
		},
		log,
	)
	assessmentService := service.NewAssessmentService(assessmentRepo, retrievalService, dispatcher, cfg.Pipeline.PerTopicLimit, log)
	healthService := service.NewHealthService(service.HealthDeps{
		Postgres: pool.Ping,
		Redis:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		Vector:   func(ctx context.Context) error { return indexes.New().Heartbeat(ctx) },
		Embedder: embedder,
		Queues: func(ctx context.Context) (map[string]int64, error) {
			return jobs.Depths(ctx, config.WorkerKey.IngestDocumentsQueue, config.WorkerKey.VectorCleanupQueue)
		},
		Generation: dispatcher.Configured(),
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Curriculum: handler.NewCurriculumHandler(curriculumService, log),
		Assessment: handler.NewAssessmentHandler(assessmentService, retrievalService, log),
		Health:     handler.NewHealthHandler(healthService),
		WS:         handler.NewWSHandler(jobs, curriculumService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	ingestWorker := worker.NewIngestWorker(rdb, curriculumService, log)
	cleanupWorker := worker.NewVectorCleanupWorker(rdb, jobs,
		func() worker.VectorDeleter { return indexes.New() }, log)

	workers.Go(func() { ingestWorker.Start(workerCtx) })
	workers.Go(func() { cleanupWorker.Start(workerCtx) })

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. Generation calls can take a while.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Generation.Timeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for in-flight jobs.
	workerCancel()
	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(workerDrainTimeout):
		log.Warn().Msg("Workers did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
