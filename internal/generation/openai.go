package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	defaultOpenAIModel = "llama-3.1-70b-versatile"
	remoteTemperature  = 0.7
	openAIMaxTokens    = 2000
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint (Groq, Together, and so on).
type OpenAIConfig struct {
	// URL is the API base; a trailing /chat/completions is accepted and stripped.
	URL    string
	APIKey string
	Model  string
}

// OpenAIBackend generates with an OpenAI-compatible chat completions API.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	b := &OpenAIBackend{model: cfg.Model}
	if b.model == "" {
		b.model = defaultOpenAIModel
	}
	if cfg.URL == "" || cfg.APIKey == "" {
		return b
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.URL, "/"), "/chat/completions")
	b.client = openai.NewClientWithConfig(oc)
	return b
}

var _ Backend = (*OpenAIBackend)(nil)

func (b *OpenAIBackend) Method() model.GenerationMethod {
	return model.GenerationMethodOpenAICompatible
}

func (b *OpenAIBackend) Available() bool { return b.client != nil }

func (b *OpenAIBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	if b.client == nil {
		return "", ErrNotConfigured
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: remoteTemperature,
		MaxTokens:   openAIMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai-compatible: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai-compatible returned no choices", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
