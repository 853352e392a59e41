package debugger

import (
	"context"
	"os/exec"
	"testing"

	"agentpipe/internal/agents/tester"
	"agentpipe/internal/artifact"
	"agentpipe/internal/llmrpc"
	"agentpipe/internal/sandbox"
)

type fakeClient struct {
	responses []string
	calls     int
}

func (f *fakeClient) Send(ctx context.Context, req llmrpc.Request) (llmrpc.Response, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return llmrpc.Response{Text: f.responses[idx]}, nil
}

func passingTestPackage() *artifact.TestPackage {
	return &artifact.TestPackage{
		Code:         artifact.CodePackage{Files: map[string]string{"main.py": "def add(a,b):\n    return a+b\n"}, EntryPoint: "main.py"},
		TestFilename: "test_main.py",
		Analysis:     artifact.TestAnalysis{OverallStatus: "passed", HasFailures: false},
	}
}

func TestFixAndVerify_AlreadyPassingShortCircuits(t *testing.T) {
	d := New(&fakeClient{}, nil, Options{})
	result, err := d.FixAndVerify(context.Background(), passingTestPackage(), nil)
	if err != nil {
		t.Fatalf("FixAndVerify: %v", err)
	}
	if !result.Success || len(result.Attempts) != 0 {
		t.Fatalf("expected immediate success with zero attempts, got %+v", result)
	}
}

func TestFixAndVerify_UnparseableResponseRecordsAttemptAndExhausts(t *testing.T) {
	client := &fakeClient{responses: []string{"not sure what's wrong, sorry."}}
	d := New(client, nil, Options{MaxAttempts: 1})

	tp := &artifact.TestPackage{
		Code:         artifact.CodePackage{Files: map[string]string{"main.py": "def add(a,b):\n    return a-b\n"}, EntryPoint: "main.py"},
		TestFilename: "test_main.py",
		Analysis: artifact.TestAnalysis{
			HasFailures: true,
			Failures:    []artifact.TestFailure{{TestName: "test_add", ErrorMessage: "assert -1 == 3"}},
		},
	}

	result, err := d.FixAndVerify(context.Background(), tp, nil)
	if err != nil {
		t.Fatalf("FixAndVerify: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure after exhausting attempts")
	}
	if len(result.Attempts) != 1 {
		t.Fatalf("Attempts = %d, want 1", len(result.Attempts))
	}
	if result.Attempts[0].TestPassed {
		t.Fatalf("unparseable attempt should not be marked passed")
	}
}

func TestFixAndVerify_AppliesFixAndPasses(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	sb, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}

	pkg := artifact.CodePackage{
		Files:      map[string]string{"main.py": "def add(a, b):\n    return a - b\n"},
		EntryPoint: "main.py",
	}
	project, err := sb.WriteProject(pkg, "debugger-case")
	if err != nil {
		t.Fatalf("WriteProject: %v", err)
	}
	defer project.Close()

	testSource := "from main import add\n\ndef test_add():\n    assert add(2, 2) == 4\n"
	tr := tester.New(nil, sb)
	initial, err := tr.RunAndAnalyze(context.Background(), pkg, project, testSource)
	if err != nil {
		t.Fatalf("initial RunAndAnalyze: %v", err)
	}
	if !initial.Analysis.HasFailures {
		t.Fatalf("expected the buggy add() to fail its test before debugging")
	}

	fix := "ANALYSIS_START\nadd() subtracted instead of summing its arguments.\nANALYSIS_END\n" +
		"FILE_START: main.py\ndef add(a, b):\n    return a + b\nFILE_END\n"
	client := &fakeClient{responses: []string{fix}}
	d := New(client, tr, Options{MaxAttempts: 2})

	result, err := d.FixAndVerify(context.Background(), initial, project)
	if err != nil {
		t.Fatalf("FixAndVerify: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected the fix to make the suite pass, got %+v", result)
	}
	if len(result.Attempts) != 1 {
		t.Fatalf("Attempts = %d, want 1", len(result.Attempts))
	}
}
