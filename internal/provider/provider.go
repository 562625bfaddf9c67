// Package provider wraps the LLM completion API behind a narrow interface.
//
// The provider call is the only unbounded-latency step in a request, so every
// call carries its own timeout, distinct from the surrounding request
// deadline. The package never retries: a completion costs tokens per attempt,
// so whether to retry is the orchestrator's decision.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumenlearn/lumen/internal/model"
)

// ErrNotConfigured is returned by NewOpenAI when no API key is configured.
// The orchestrator checks this once at startup and runs in degraded mode,
// rejecting generation requests before any quota or retrieval work.
var ErrNotConfigured = errors.New("provider: no API key configured")

// ProviderError wraps a transport or provider-side failure. Retryable is set
// for timeouts, where a later attempt may succeed.
type ProviderError struct {
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Turn is one message of conversation context sent to the provider.
type Turn struct {
	Role    model.TurnRole
	Content string
}

// Request is one completion request.
type Request struct {
	System    string
	Turns     []Turn
	MaxTokens int
}

// Completion is the provider's response.
type Completion struct {
	Text  string
	Usage model.TokenUsage
}

// Client produces completions. Implementations must honor ctx and must not
// retry internally.
type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
	// ModelName reports the model identifier, for response metadata.
	ModelName() string
}
