package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stemsi/exstem-assessment/internal/httpjson"
)

// HTTPEmbedder calls a remote embedding service speaking
// POST /embed {"texts": [...]} -> {"embeddings": [[...]]}.
type HTTPEmbedder struct {
	baseURL string
	client  *http.Client
}

// NewHTTPEmbedder creates an HTTPEmbedder for the service at baseURL.
func NewHTTPEmbedder(baseURL string, timeout time.Duration) (*HTTPEmbedder, error) {
	if baseURL == "" {
		return nil, errors.New("embedding service URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

var _ Embedder = (*HTTPEmbedder)(nil)
var _ HealthChecker = (*HTTPEmbedder)(nil)

func (e *HTTPEmbedder) Name() string { return string(ProviderHTTP) }

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends all texts in one request.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var out embedResponse
	if err := httpjson.Post(ctx, e.client, e.baseURL+"/embed", nil, embedRequest{Texts: texts}, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// Health probes GET /health.
func (e *HTTPEmbedder) Health(ctx context.Context) error {
	if err := httpjson.Get(ctx, e.client, e.baseURL+"/health", nil, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
