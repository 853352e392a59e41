package tester

import (
	"context"
	"strings"
	"testing"

	"agentpipe/internal/artifact"
	"agentpipe/internal/llmrpc"
	"agentpipe/internal/sandbox"
)

type fakeClient struct {
	text string
	err  error
}

func (f *fakeClient) Send(ctx context.Context, req llmrpc.Request) (llmrpc.Response, error) {
	if f.err != nil {
		return llmrpc.Response{}, f.err
	}
	return llmrpc.Response{Text: f.text}, nil
}

func samplePackage() *artifact.CodePackage {
	return &artifact.CodePackage{
		Files: map[string]string{
			"main.py": "def add(a, b):\n    return a + b\n",
		},
		EntryPoint: "main.py",
		Plan: &artifact.ArchitecturalPlan{
			Analysis: artifact.Analysis{Summary: "a simple adder"},
		},
	}
}

func TestGenerateTests_FiltersHangingBody(t *testing.T) {
	client := &fakeClient{text: "def test_add():\n    while True:\n        pass\n"}
	tr := New(client, nil)

	source, err := tr.GenerateTests(context.Background(), samplePackage())
	if err != nil {
		t.Fatalf("GenerateTests: %v", err)
	}
	if strings.Contains(source, "while True") {
		t.Fatalf("expected hanging body filtered, got:\n%s", source)
	}
	if !strings.Contains(source, "filtered: body reached a blocking construct") {
		t.Fatalf("expected filter stub marker, got:\n%s", source)
	}
}

func TestGenerateTests_StripsMarkdownFences(t *testing.T) {
	client := &fakeClient{text: "```python\ndef test_add():\n    assert add(2, 2) == 4\n```"}
	tr := New(client, nil)

	source, err := tr.GenerateTests(context.Background(), samplePackage())
	if err != nil {
		t.Fatalf("GenerateTests: %v", err)
	}
	if strings.Contains(source, "```") {
		t.Fatalf("expected fences stripped, got:\n%s", source)
	}
}

func TestBuildTestPackage_PassedRun(t *testing.T) {
	pkg := *samplePackage()
	result := sandbox.TestResult{
		ExecutionResult: sandbox.ExecutionResult{ExitCode: 0},
	}
	tp := buildTestPackage(pkg, "test_main.py", result)
	if !tp.Results.Passed {
		t.Fatalf("expected Passed true")
	}
	if tp.Analysis.HasFailures {
		t.Fatalf("expected HasFailures false")
	}
}

func TestBuildTestPackage_FailedRunWithKilled(t *testing.T) {
	pkg := *samplePackage()
	result := sandbox.TestResult{
		ExecutionResult: sandbox.ExecutionResult{ExitCode: 1, Killed: true},
	}
	tp := buildTestPackage(pkg, "test_main.py", result)
	if tp.Results.Passed {
		t.Fatalf("expected Passed false when Killed")
	}
	if tp.Analysis.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1 for a killed run", tp.Analysis.ErrorCount)
	}
}
