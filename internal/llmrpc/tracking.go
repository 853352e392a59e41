package llmrpc

import (
	"context"

	"agentpipe/internal/usage"
)

// Tracking wraps a Client and records a usage.Entry on every
// successful Send, mirroring usage.FromContext(ctx) + tracker.Track(...)
// inline in OpenAIClient/GeminiClient's CompleteWithSystem methods.
type Tracking struct {
	Client    Client
	Agent     usage.AgentKind
	Iteration *int
}

// Send delegates to the wrapped client, then records tokens against
// the tracker found in ctx (if any). A missing tracker is not an error:
// tracking is best-effort instrumentation, not part of the RPC contract.
func (t *Tracking) Send(ctx context.Context, req Request) (Response, error) {
	resp, err := t.Client.Send(ctx, req)
	if err != nil {
		return resp, err
	}

	if tracker := usage.FromContext(ctx); tracker != nil {
		_ = tracker.Track(t.Agent, resp.Usage.TotalTokens, t.Iteration, nil)
	}

	return resp, nil
}
