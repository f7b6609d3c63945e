package models

import (
	"context"
	"errors"
)

// Call-level failure taxonomy. Every error returned by a ModelGateway
// implementation wraps exactly one of these so callers can classify it
// with errors.Is.
var (
	ErrTimeout           = errors.New("model call timed out")
	ErrProviderError     = errors.New("model provider error")
	ErrMalformedResponse = errors.New("model returned malformed response")
)

// ModelGateway is the single capability the engine needs from the outside
// world: send a prompt to a named model, get back text and a token count.
// Never call a specific provider directly — always inject this interface.
type ModelGateway interface {
	// Complete sends one prompt to the named model and returns its reply.
	// Failures wrap one of the sentinel errors above.
	Complete(ctx context.Context, model, prompt string) (Completion, error)
	// Name returns the gateway identifier (e.g., "openrouter").
	Name() string
}

// Completion is the result of a single successful model call.
type Completion struct {
	Text       string
	TokensUsed int
}
