// Package architect turns a natural-language requirements string into
// a structured ArchitecturalPlan with exactly one LLM call.
package architect

import (
	"context"
	"fmt"

	"agentpipe/internal/artifact"
	"agentpipe/internal/agents/role"
	"agentpipe/internal/llmrpc"
	"agentpipe/internal/logging"
)

// systemPrompt enforces the self-validation rules the Architect's
// output is graded against: exactly 3 components, every class defined
// in the entry file, helper files import-only, JSON-only response.
const systemPrompt = `You are an expert software architect. Analyze requirements and design a complete, buildable file structure in a single JSON response.

Self-validation checklist before you answer:
- Have you limited "components" to EXACTLY 3 entries?
- Have you put ALL classes in the entry file (main.py)?
- Do helper files only import from the entry file, never define classes themselves?
- Is your response valid JSON, and nothing else?

Required JSON shape:
{
  "analysis": {
    "components": ["exactly 3 items"],
    "dependencies": ["external packages, if any"],
    "architecture_type": "CLI" | "API" | "GUI" | "other",
    "complexity": "simple" | "medium" | "complex",
    "summary": "one sentence"
  },
  "file_structure": {
    "files": {"main.py": "one-line description", "...": "..."},
    "entry_point": "main.py",
    "class_definitions": {"ClassName": "main.py"}
  },
  "detailed_plan": {
    "main.py": {"purpose": "...", "classes": ["..."], "functions": ["..."], "key_logic": "..."}
  }
}

Return ONLY the JSON object, starting with { and ending with }.`

// Architect holds the single LLM call this role makes and the parser
// used to recover its structured output.
type Architect struct {
	client llmrpc.Client
	parser *artifact.Parser
}

// New returns an Architect that calls client as given, ready to call
// CreateArchitecture; usage tracking, if any, is the client's own
// (orchestrator.New passes an llmrpc.Tracking wrapper).
func New(client llmrpc.Client) *Architect {
	return &Architect{client: client, parser: artifact.NewParser()}
}

func (a *Architect) Name() string { return "architect" }

// Invoke satisfies role.Role for uniform Orchestrator handling.
func (a *Architect) Invoke(ctx context.Context, prompt role.Prompt) (string, error) {
	resp, err := llmrpc.SendWithRetry(ctx, a.client, llmrpc.Request{
		Prompt:        prompt.User,
		SystemContext: prompt.System,
		Temperature:   0.3,
		MaxTokens:     4096,
	})
	if err != nil {
		return "", fmt.Errorf("architect: invoke: %w", err)
	}
	return resp.Text, nil
}

// CreateArchitecture makes the architect's single LLM call and parses
// its response into an ArchitecturalPlan. A response that fails every
// parse strategy yields the documented fallback plan (single main.py
// component, Complexity simple) rather than an error — architectural
// uncertainty should degrade the plan, not abort the pipeline.
func (a *Architect) CreateArchitecture(ctx context.Context, requirements string) (*artifact.ArchitecturalPlan, error) {
	text, err := a.Invoke(ctx, role.Prompt{
		System: systemPrompt,
		User:   fmt.Sprintf("Requirements:\n%s", requirements),
	})
	if err != nil {
		return nil, err
	}

	plan, confidence := a.parser.ParseArchitecture(text, requirements)
	if confidence == artifact.ConfidenceLow {
		logging.Get(logging.CategoryArchitect).Warn("architecture response parsed at low confidence, using fallback plan")
	}
	for _, w := range plan.Warnings {
		logging.Get(logging.CategoryArchitect).Warn("%s", w)
	}
	return plan, nil
}
