// Package embedding provides the pluggable text-embedding backends used by
// the vector index.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when a remote embedding backend cannot be reached.
var ErrUnavailable = errors.New("embedding backend unavailable")

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HealthChecker is implemented by embedders backed by a remote service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Provider names the configured embedding backend.
type Provider string

const (
	ProviderHTTP   Provider = "http"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderHash   Provider = "hash"
)

// Config selects and configures an embedding backend.
type Config struct {
	Provider   Provider
	URL        string // HTTP backend base URL
	Model      string // Ollama or OpenAI model name
	APIKey     string // OpenAI key
	BaseURL    string // OpenAI-compatible base URL
	OllamaHost string
	Dimensions int // hash backend vector size
	Timeout    time.Duration
}

// New builds the embedder named by cfg.Provider. An empty provider selects the
// HTTP backend when a URL is configured and the built-in hashing embedder otherwise.
func New(cfg Config, log zerolog.Logger) (Embedder, error) {
	provider := Provider(strings.ToLower(string(cfg.Provider)))
	if provider == "" {
		provider = ProviderHash
		if cfg.URL != "" {
			provider = ProviderHTTP
		}
	}

	var (
		e   Embedder
		err error
	)
	switch provider {
	case ProviderHTTP:
		e, err = NewHTTPEmbedder(cfg.URL, cfg.Timeout)
	case ProviderOllama:
		e, err = NewOllamaEmbedder(cfg.OllamaHost, cfg.Model, cfg.Timeout)
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case ProviderHash:
		e = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("component", "embedding").Str("provider", e.Name()).Msg("Embedding backend configured")
	return e, nil
}
