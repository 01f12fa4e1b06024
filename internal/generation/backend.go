// Package generation turns curriculum context into assessment questions,
// trying configured language-model backends in priority order and falling
// back to template-based local synthesis.
package generation

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-assessment/internal/model"
)

var (
	// ErrUnavailable marks a backend that could not be reached or answered with a failure status.
	ErrUnavailable = errors.New("generation backend unavailable")
	// ErrMalformedResponse marks backend output that yields no questions.
	ErrMalformedResponse = errors.New("malformed generation response")
	// ErrNotConfigured is returned by a backend asked to generate without its credentials.
	ErrNotConfigured = errors.New("generation backend not configured")
)

// Backend is one remote text generator.
type Backend interface {
	Method() model.GenerationMethod
	// Available reports whether the backend is configured; it does no I/O.
	Available() bool
	// Generate sends a single system/user prompt pair and returns the raw completion.
	Generate(ctx context.Context, system, prompt string) (string, error)
}
