package generation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// OllamaBackend generates with a locally served Ollama model.
type OllamaBackend struct {
	client *api.Client
	model  string
}

// NewOllamaBackend targets host, or OLLAMA_HOST when host is empty.
// The backend is unavailable when model is empty.
func NewOllamaBackend(host, modelName string) (*OllamaBackend, error) {
	base := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host: %w", err)
		}
		base = u
	}
	return &OllamaBackend{
		client: api.NewClient(base, http.DefaultClient),
		model:  modelName,
	}, nil
}

var _ Backend = (*OllamaBackend)(nil)

func (b *OllamaBackend) Method() model.GenerationMethod { return model.GenerationMethodOllama }

func (b *OllamaBackend) Available() bool { return b.model != "" }

func (b *OllamaBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	if b.model == "" {
		return "", ErrNotConfigured
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  b.model,
		System: system,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": remoteTemperature,
		},
	}

	var out strings.Builder
	err := b.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		_, err := out.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama: %v", ErrUnavailable, err)
	}
	return out.String(), nil
}

// Heartbeat reports whether the Ollama server answers.
func (b *OllamaBackend) Heartbeat(ctx context.Context) error {
	if err := b.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("%w: ollama: %v", ErrUnavailable, err)
	}
	return nil
}
