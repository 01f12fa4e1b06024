package generation

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	defaultGenerationTimeout = 60 * time.Second
	defaultMinContextChars   = 100
)

// Request is one generation job.
type Request struct {
	Context string
	Params  *model.GenerationParameters
}

// Attempt records one remote backend that was tried and did not produce questions.
type Attempt struct {
	Method model.GenerationMethod
	Err    error
}

// Outcome is the result of a dispatch. Method names the tier that produced Questions.
type Outcome struct {
	Questions []model.Question
	Method    model.GenerationMethod
	Attempts  []Attempt
}

// DispatcherConfig tunes the dispatcher.
type DispatcherConfig struct {
	// Timeout bounds each remote call.
	Timeout time.Duration
	// MinContextChars is the context length below which remote backends are skipped.
	MinContextChars int
}

// Dispatcher tries remote backends in priority order and ends with local synthesis.
type Dispatcher struct {
	backends []Backend
	local    *LocalGenerator
	cfg      DispatcherConfig
	log      zerolog.Logger
}

func NewDispatcher(backends []Backend, local *LocalGenerator, cfg DispatcherConfig, log zerolog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGenerationTimeout
	}
	if cfg.MinContextChars <= 0 {
		cfg.MinContextChars = defaultMinContextChars
	}
	if local == nil {
		local = NewLocalGenerator(nil, nil)
	}
	return &Dispatcher{
		backends: backends,
		local:    local,
		cfg:      cfg,
		log:      log.With().Str("component", "generation").Logger(),
	}
}

// Configured lists the methods of backends that have credentials.
func (d *Dispatcher) Configured() []model.GenerationMethod {
	out := make([]model.GenerationMethod, 0, len(d.backends))
	for _, b := range d.backends {
		if b.Available() {
			out = append(out, b.Method())
		}
	}
	return out
}

// Dispatch returns questions from the first remote backend whose output
// parses, or from local synthesis. It does not fail.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Outcome {
	p := req.Params
	var attempts []Attempt

	if p.UseAI && utf8.RuneCountInString(req.Context) >= d.cfg.MinContextChars {
		system, prompt := SystemPrompt(p), UserPrompt(req.Context, p)

		for _, b := range d.backends {
			if !b.Available() {
				continue
			}
			qs, err := d.try(ctx, b, system, prompt, p)
			if err != nil {
				d.log.Warn().Err(err).Str("variant", string(b.Method())).Msg("Generation variant failed, trying next")
				attempts = append(attempts, Attempt{Method: b.Method(), Err: err})
				continue
			}

			d.log.Info().Str("variant", string(b.Method())).Int("questions", len(qs)).Msg("Questions generated")
			return Outcome{Questions: qs, Method: b.Method(), Attempts: attempts}
		}
	}

	qs := d.local.Generate(req.Context, p)
	d.log.Info().Int("questions", len(qs)).Int("remote_attempts", len(attempts)).Msg("Questions generated locally")
	return Outcome{Questions: qs, Method: model.GenerationMethodLocal, Attempts: attempts}
}

func (d *Dispatcher) try(ctx context.Context, b Backend, system, prompt string, p *model.GenerationParameters) ([]model.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	raw, err := b.Generate(ctx, system, prompt)
	if err != nil {
		return nil, err
	}

	res := Parse(raw, p.AssessmentType, p.NumberOfQuestions)
	if res.Status != Parsed {
		return nil, res.Reason
	}
	if res.Dropped > 0 {
		d.log.Warn().Str("variant", string(b.Method())).Int("dropped", res.Dropped).Msg("Discarded malformed questions")
	}

	for i := range res.Questions {
		q := &res.Questions[i]
		if q.Difficulty == "" {
			q.Difficulty = p.Difficulty
		}
		if q.Topic == "" && len(p.Topics) > 0 {
			q.Topic = truncateRunes(p.Topics[i%len(p.Topics)], maxTopicRunes)
		}
		d.local.completeWritten(q)
	}
	return res.Questions, nil
}
