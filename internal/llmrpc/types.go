// Package llmrpc normalizes calls to different LLM provider wire
// formats into one {Request, Response} contract, with retry/backoff
// and token-usage tracking applied uniformly regardless of provider.
package llmrpc

import (
	"context"
	"errors"
)

// Sentinel errors classifying a failed Send, so callers (and the retry
// wrapper) can branch on typed errors rather than string-matching a
// provider's error message.
var (
	ErrRateLimited = errors.New("llmrpc: rate limited")
	ErrTimeout     = errors.New("llmrpc: request timed out")
	ErrFatalStatus = errors.New("llmrpc: non-retryable status")
)

// Client sends one prompt to an LLM provider and returns its
// normalized response. Implementations own their own HTTP transport
// and wire-format translation.
type Client interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Request is the provider-agnostic shape every Client accepts.
type Request struct {
	Prompt        string
	SystemContext string
	Temperature   float64
	MaxTokens     int
}

// TokenUsage is the provider-agnostic token accounting for one call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the provider-agnostic shape every Client returns.
type Response struct {
	Text  string
	Usage TokenUsage
}
