package architect

import (
	"context"
	"testing"

	"agentpipe/internal/llmrpc"
)

type fakeClient struct {
	text string
	err  error
}

func (f *fakeClient) Send(ctx context.Context, req llmrpc.Request) (llmrpc.Response, error) {
	if f.err != nil {
		return llmrpc.Response{}, f.err
	}
	return llmrpc.Response{Text: f.text, Usage: llmrpc.TokenUsage{TotalTokens: 42}}, nil
}

func TestCreateArchitecture_ParsesStructuredPlan(t *testing.T) {
	arch := New(&fakeClient{text: `{
		"analysis": {"components": ["cli", "counter", "formatter"], "architecture_type": "CLI", "complexity": "simple", "summary": "word counter"},
		"file_structure": {"files": {"main.py": "entry"}, "entry_point": "main.py", "class_definitions": {}}
	}`})

	plan, err := arch.CreateArchitecture(context.Background(), "build a word counting CLI")
	if err != nil {
		t.Fatalf("CreateArchitecture: %v", err)
	}
	if plan.FileStructure.EntryPoint != "main.py" {
		t.Fatalf("entry point = %q", plan.FileStructure.EntryPoint)
	}
	if len(plan.Analysis.Components) != 3 {
		t.Fatalf("components = %v, want 3", plan.Analysis.Components)
	}
}

func TestCreateArchitecture_UnparseableFallsBackRatherThanErrors(t *testing.T) {
	arch := New(&fakeClient{text: "I'm not sure how to structure this."})

	plan, err := arch.CreateArchitecture(context.Background(), "build something")
	if err != nil {
		t.Fatalf("CreateArchitecture should not error on unparseable response: %v", err)
	}
	if plan.FileStructure.EntryPoint != "main.py" {
		t.Fatalf("expected fallback plan, got %+v", plan)
	}
}

func TestCreateArchitecture_PropagatesClientError(t *testing.T) {
	arch := New(&fakeClient{err: llmrpc.ErrFatalStatus})
	if _, err := arch.CreateArchitecture(context.Background(), "x"); err == nil {
		t.Fatalf("expected error to propagate")
	}
}
