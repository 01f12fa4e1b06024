package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-assessment/internal/httpjson"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models/google/flan-t5-large"
	hfMaxNewTokens        = 500
)

// HuggingFaceBackend calls the hosted inference API for a text2text model.
// The model takes a single input, so system and user prompts are joined.
type HuggingFaceBackend struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHuggingFaceBackend(url, apiKey string, client *http.Client) *HuggingFaceBackend {
	if url == "" {
		url = DefaultHuggingFaceURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HuggingFaceBackend{url: url, apiKey: apiKey, client: client}
}

var _ Backend = (*HuggingFaceBackend)(nil)

func (b *HuggingFaceBackend) Method() model.GenerationMethod {
	return model.GenerationMethodHuggingFace
}

func (b *HuggingFaceBackend) Available() bool { return b.apiKey != "" }

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	DoSample     bool    `json:"do_sample"`
}

type hfGenerated struct {
	GeneratedText string `json:"generated_text"`
}

func (b *HuggingFaceBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	if b.apiKey == "" {
		return "", ErrNotConfigured
	}

	req := hfRequest{
		Inputs: system + "\n\n" + prompt,
		Parameters: hfParameters{
			MaxNewTokens: hfMaxNewTokens,
			Temperature:  remoteTemperature,
			DoSample:     true,
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + b.apiKey}

	var raw json.RawMessage
	if err := httpjson.Post(ctx, b.client, b.url, headers, req, &raw); err != nil {
		return "", fmt.Errorf("%w: huggingface: %v", ErrUnavailable, err)
	}
	return generatedText(raw)
}

// generatedText accepts both the list form and the single-object form of the response.
func generatedText(raw json.RawMessage) (string, error) {
	var list []hfGenerated
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", nil
		}
		return list[0].GeneratedText, nil
	}

	var one hfGenerated
	if err := json.Unmarshal(raw, &one); err != nil {
		return "", fmt.Errorf("%w: huggingface: %v", ErrMalformedResponse, err)
	}
	return one.GeneratedText, nil
}
