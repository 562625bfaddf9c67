package lumen

import (
	"context"
	"net/http"
)

// CompletionProvider generates assistant completions.
// When provided via WithCompletionProvider, replaces the built-in OpenAI
// client. Implementations must honor the context deadline.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	ModelName() string
}

// RouteRegistrar registers additional routes on the shared HTTP mux.
// Embedder routes share the mux, auth chain, and OTEL instrumentation with
// built-in routes. The function is called once during New() after all
// built-in routes are registered.
type RouteRegistrar func(mux *http.ServeMux)

// Middleware wraps the root HTTP handler.
// Applied outermost (before routing), so it sees all requests including
// /health. Multiple middlewares are applied in registration order
// (first-registered = outermost).
type Middleware func(http.Handler) http.Handler
