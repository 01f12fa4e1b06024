package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	defaultPerTopicLimit   = 5
	defaultMinContentChars = 100
)

// VectorIndex is the slice of the vector store used for retrieval.
type VectorIndex interface {
	CheckConnection(ctx context.Context) bool
	Search(ctx context.Context, query string, limit int, documentID string) ([]model.RetrievedPassage, error)
}

// IndexFactory returns a fresh, unprobed index. Each logical operation gets
// its own instance so a cached probe result never outlives the operation.
type IndexFactory func() VectorIndex

// PreviewSource returns the stored raw-text preview of a document.
type PreviewSource interface {
	TextPreview(ctx context.Context, documentID string) (string, error)
}

// Gathered is the context assembled for one generation request.
type Gathered struct {
	Content string
	// SourceCount is the number of passages that came from the vector index.
	SourceCount  int
	Passages     []model.RetrievedPassage
	UsedFallback bool
}

// ContextPreview is the per-topic view of a gather, returned by the preview endpoint.
type ContextPreview struct {
	Topics          []model.TopicPassages `json:"topics"`
	Content         string                `json:"content"`
	SourceCount     int                   `json:"sourceCount"`
	UsedFallback    bool                  `json:"usedFallback"`
	VectorAvailable bool                  `json:"vectorAvailable"`
}

// RetrievalConfig tunes the retrieval thresholds.
type RetrievalConfig struct {
	PerTopicLimit   int
	MinContentChars int
}

// RetrievalService assembles generation context from the vector index, falling
// back to a document's stored text preview when retrieval comes up short.
type RetrievalService struct {
	newIndex IndexFactory
	previews PreviewSource
	cfg      RetrievalConfig
	log      zerolog.Logger
}

// NewRetrievalService creates a new RetrievalService. previews may be nil.
func NewRetrievalService(newIndex IndexFactory, previews PreviewSource, cfg RetrievalConfig, log zerolog.Logger) *RetrievalService {
	if cfg.PerTopicLimit <= 0 {
		cfg.PerTopicLimit = defaultPerTopicLimit
	}
	if cfg.MinContentChars <= 0 {
		cfg.MinContentChars = defaultMinContentChars
	}
	return &RetrievalService{
		newIndex: newIndex,
		previews: previews,
		cfg:      cfg,
		log:      log.With().Str("component", "retrieval_service").Logger(),
	}
}

// Gather searches each topic in order and joins the passages into one context
// string. Per-topic failures are logged and skipped. When the index is down or
// the result is too short and documentFilter is set, the document's stored
// preview replaces the content. Gather does not fail.
func (s *RetrievalService) Gather(ctx context.Context, topics []string, documentFilter string, perTopicLimit int) Gathered {
	g, _, _ := s.gather(ctx, topics, documentFilter, perTopicLimit)
	return g
}

// Preview runs the same gather as Gather but keeps passages grouped by topic.
func (s *RetrievalService) Preview(ctx context.Context, topics []string, documentFilter string, perTopicLimit int) ContextPreview {
	g, groups, available := s.gather(ctx, topics, documentFilter, perTopicLimit)
	return ContextPreview{
		Topics:          groups,
		Content:         g.Content,
		SourceCount:     g.SourceCount,
		UsedFallback:    g.UsedFallback,
		VectorAvailable: available,
	}
}

func (s *RetrievalService) gather(ctx context.Context, topics []string, documentFilter string, perTopicLimit int) (Gathered, []model.TopicPassages, bool) {
	if perTopicLimit <= 0 {
		perTopicLimit = s.cfg.PerTopicLimit
	}

	idx := s.newIndex()
	available := idx.CheckConnection(ctx)

	groups := make([]model.TopicPassages, 0, len(topics))
	var passages []model.RetrievedPassage
	if available {
		for _, topic := range topics {
			found, err := idx.Search(ctx, topic, perTopicLimit, documentFilter)
			if err != nil {
				s.log.Warn().Err(err).Str("topic", topic).Msg("Topic search failed, skipping")
				continue
			}
			for i := range found {
				found[i].Topic = topic
			}
			groups = append(groups, model.TopicPassages{Topic: topic, Passages: found})
			passages = append(passages, found...)
		}
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	g := Gathered{
		Content:     strings.Join(texts, "\n\n"),
		SourceCount: len(passages),
		Passages:    passages,
	}

	short := utf8.RuneCountInString(g.Content) < s.cfg.MinContentChars
	if (!available || short) && documentFilter != "" && s.previews != nil {
		preview, err := s.previews.TextPreview(ctx, documentFilter)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("document_id", documentFilter).Msg("Stored preview unavailable")
		case preview != "":
			g.Content = preview
			g.UsedFallback = true
		}
	}

	s.log.Debug().
		Int("topics", len(topics)).
		Int("passages", g.SourceCount).
		Bool("vector_available", available).
		Bool("fallback", g.UsedFallback).
		Msg("Context gathered")
	return g, groups, available
}
