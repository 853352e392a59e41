package coder

import (
	"context"
	"strings"
	"testing"

	"agentpipe/internal/artifact"
	"agentpipe/internal/llmrpc"
)

type fakeClient struct {
	responses []string
	calls     int
	err       error
}

func (f *fakeClient) Send(ctx context.Context, req llmrpc.Request) (llmrpc.Response, error) {
	if f.err != nil {
		return llmrpc.Response{}, f.err
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return llmrpc.Response{Text: f.responses[idx]}, nil
}

func samplePlan() *artifact.ArchitecturalPlan {
	return &artifact.ArchitecturalPlan{
		Analysis: artifact.Analysis{
			Components: []string{"cli", "counter", "formatter"},
			Summary:    "word counter",
		},
		FileStructure: artifact.FileStructure{
			Files: map[string]string{
				"main.py":    "entry point and CLI",
				"counter.py": "word counting logic",
			},
			EntryPoint: "main.py",
		},
		DetailedPlan: map[string]artifact.FilePlan{
			"main.py": {Purpose: "CLI entry", Classes: []string{"WordCounterApp"}},
		},
	}
}

func TestGenerate_BulkJSONPath(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"main.py": "if __name__ == '__main__':\n    print('hi')\n", "counter.py": "def count(s):\n    return len(s.split())\n"}`,
	}}
	c := New(client)

	pkg, err := c.Generate(context.Background(), samplePlan())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if pkg.EntryPoint != "main.py" {
		t.Fatalf("EntryPoint = %q", pkg.EntryPoint)
	}
	if strings.Contains(pkg.Files["main.py"], "__main__") {
		t.Fatalf("expected main guard stripped, got:\n%s", pkg.Files["main.py"])
	}
	if _, ok := pkg.Files["counter.py"]; !ok {
		t.Fatalf("missing counter.py in package")
	}
	if _, ok := pkg.Files[pkg.DocsFilename]; !ok {
		t.Fatalf("missing docs file %q", pkg.DocsFilename)
	}
}

func TestGenerate_FallsBackToPerFileOnUnparseableBulkResponse(t *testing.T) {
	client := &fakeClient{responses: []string{
		"I couldn't decide on a structure.",
		"def count(s):\n    return len(s.split())\n", // counter.py sorts before main.py
		"print('main body')\n",
	}}
	c := New(client)

	pkg, err := c.Generate(context.Background(), samplePlan())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(pkg.Files) < 3 { // main.py + counter.py + docs
		t.Fatalf("expected fallback to populate all files, got %v", pkg.Files)
	}
	if !strings.Contains(pkg.Files["counter.py"], "def count") {
		t.Fatalf("counter.py missing expected content: %q", pkg.Files["counter.py"])
	}
}

func TestGenerate_PropagatesClientError(t *testing.T) {
	client := &fakeClient{err: llmrpc.ErrFatalStatus}
	c := New(client)
	if _, err := c.Generate(context.Background(), samplePlan()); err == nil {
		t.Fatalf("expected error to propagate")
	}
}
