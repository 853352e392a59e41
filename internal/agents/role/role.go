// Package role defines the small shared capability every pipeline
// agent implements: send one prompt to an LLM client and get text
// back. Each concrete role (architect, coder, tester, debugger) holds
// its own llmrpc.Client, parser bindings, and prompt-composition
// logic; Role exists so the Orchestrator can log and rate-limit
// uniformly across all four without knowing their domain specifics.
package role

import "context"

// Prompt is the two-part shape every LLM call in this pipeline sends:
// a system instruction plus the user-turn content.
type Prompt struct {
	System string
	User   string
}

// Role is the capability every agent exposes to the Orchestrator.
type Role interface {
	Name() string
	Invoke(ctx context.Context, prompt Prompt) (string, error)
}
