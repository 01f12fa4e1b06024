package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/embedding"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const healthCheckTimeout = 3 * time.Second

// Health states.
const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"

	ComponentUp      = "up"
	ComponentDown    = "down"
	ComponentSkipped = "skipped"
)

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// HealthDeps are the probes the health check runs. Nil probes are reported as skipped.
type HealthDeps struct {
	Postgres Probe
	Redis    Probe
	Vector   Probe
	Embedder embedding.Embedder
	// Queues returns the pending job count per queue.
	Queues     func(ctx context.Context) (map[string]int64, error)
	Generation []model.GenerationMethod
}

// ComponentHealth is the probe result for one dependency.
type ComponentHealth struct {
	Status    string `json:"status"`
	Critical  bool   `json:"critical"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// HealthReport is the response of the health endpoint.
type HealthReport struct {
	Status             string                     `json:"status"`
	Components         map[string]ComponentHealth `json:"components"`
	Queues             map[string]int64           `json:"queues,omitempty"`
	GenerationBackends []model.GenerationMethod   `json:"generationBackends"`
	EmbeddingProvider  string                     `json:"embeddingProvider,omitempty"`
	Uptime             string                     `json:"uptime"`
	Goroutines         int                        `json:"goroutines"`
	GoVersion          string                     `json:"goVersion"`
}

// Healthy reports whether every critical component is up.
func (r *HealthReport) Healthy() bool {
	return r.Status == HealthStatusHealthy
}

// HealthService probes the service's dependencies. PostgreSQL and Redis are
// critical; the vector store and embedding backend only degrade retrieval.
type HealthService struct {
	deps      HealthDeps
	startTime time.Time
	log       zerolog.Logger
}

func NewHealthService(deps HealthDeps, log zerolog.Logger) *HealthService {
	return &HealthService{
		deps:      deps,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_service").Logger(),
	}
}

// Check runs all probes concurrently and summarizes them.
func (s *HealthService) Check(ctx context.Context) *HealthReport {
	type named struct {
		name     string
		probe    Probe
		critical bool
	}
	probes := []named{
		{"postgres", s.deps.Postgres, true},
		{"redis", s.deps.Redis, true},
		{"vectorStore", s.deps.Vector, false},
		{"embedding", s.embeddingProbe(), false},
	}

	report := &HealthReport{
		Status:             HealthStatusHealthy,
		Components:         make(map[string]ComponentHealth, len(probes)),
		GenerationBackends: s.deps.Generation,
		Uptime:             formatDuration(time.Since(s.startTime)),
		Goroutines:         runtime.NumGoroutine(),
		GoVersion:          runtime.Version(),
	}
	if report.GenerationBackends == nil {
		report.GenerationBackends = []model.GenerationMethod{}
	}
	if s.deps.Embedder != nil {
		report.EmbeddingProvider = s.deps.Embedder.Name()
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := runProbe(ctx, p.probe, p.critical)
			mu.Lock()
			report.Components[p.name] = h
			mu.Unlock()
		}()
	}
	wg.Wait()

	for name, h := range report.Components {
		if h.Status == ComponentDown {
			if h.Critical {
				report.Status = HealthStatusDegraded
			}
			s.log.Warn().Str("dependency", name).Str("error", h.Error).Msg("Health probe failed")
		}
	}

	if s.deps.Queues != nil {
		qctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		depths, err := s.deps.Queues(qctx)
		cancel()
		if err == nil {
			report.Queues = depths
		}
	}
	return report
}

func (s *HealthService) embeddingProbe() Probe {
	hc, ok := s.deps.Embedder.(embedding.HealthChecker)
	if !ok {
		return nil
	}
	return hc.Health
}

func runProbe(ctx context.Context, probe Probe, critical bool) ComponentHealth {
	if probe == nil {
		return ComponentHealth{Status: ComponentSkipped, Critical: critical}
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	h := ComponentHealth{Status: ComponentUp, Critical: critical, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		h.Status = ComponentDown
		h.Error = err.Error()
	}
	return h
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
