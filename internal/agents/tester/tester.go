// Package tester generates a pytest suite for a CodePackage, runs it
// in the sandbox, and turns the raw execution into a TestAnalysis.
package tester

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"agentpipe/internal/agents/role"
	"agentpipe/internal/artifact"
	"agentpipe/internal/llmrpc"
	"agentpipe/internal/logging"
	"agentpipe/internal/sandbox"
)

const systemPrompt = `You are an expert QA engineer writing a pytest suite for generated Python code.

Rules:
- Test every public function and class method, including edge cases and error handling.
- Use fixtures for setup shared across tests rather than repeating it.
- Mock or fake any network, filesystem, or subprocess side effect; never let a test depend on external state.
- Never write a test whose body can block forever: no bare "while True", no input(), no sleep longer than a couple seconds.
- Import the module under test directly (it is safe to import — it has no top-level side effects).

Generate ONLY the Python source of test_main.py, no markdown fences, no commentary.`

const defaultTestFilename = "test_main.py"

// Tester holds the LLM client used to draft tests and the sandbox used
// to execute them.
type Tester struct {
	client  llmrpc.Client
	sandbox *sandbox.Sandbox
	parser  *artifact.Parser
}

func New(client llmrpc.Client, sb *sandbox.Sandbox) *Tester {
	return &Tester{client: client, sandbox: sb, parser: artifact.NewParser()}
}

func (t *Tester) Name() string { return "tester" }

func (t *Tester) Invoke(ctx context.Context, prompt role.Prompt) (string, error) {
	resp, err := llmrpc.SendWithRetry(ctx, t.client, llmrpc.Request{
		Prompt:        prompt.User,
		SystemContext: prompt.System,
		Temperature:   0.2,
		MaxTokens:     8192,
	})
	if err != nil {
		return "", fmt.Errorf("tester: invoke: %w", err)
	}
	return resp.Text, nil
}

// GenerateTests drafts test_main.py for pkg. The response is always
// run through sandbox.FilterHangingTests before being returned, so a
// test body that slipped past the prompt's own rules against blocking
// constructs still can't hang the sandbox run that follows.
func (t *Tester) GenerateTests(ctx context.Context, pkg *artifact.CodePackage) (string, error) {
	text, err := t.Invoke(ctx, role.Prompt{
		System: systemPrompt,
		User:   userPrompt(pkg),
	})
	if err != nil {
		return "", err
	}
	source := stripFences(text)
	filtered := sandbox.FilterHangingTests(source)
	if filtered != source {
		logging.Get(logging.CategoryTester).Warn("filtered one or more hanging test bodies before writing test_main.py")
	}
	return filtered, nil
}

// RunAndAnalyze writes testSource into project, runs it via the
// sandbox, and assembles the resulting TestPackage — including the
// pyparse-derived failure list translated into artifact.TestFailure.
func (t *Tester) RunAndAnalyze(ctx context.Context, pkg artifact.CodePackage, project *sandbox.Project, testSource string) (*artifact.TestPackage, error) {
	// An empty testSource means the caller wants the test file already
	// on disk reused unchanged (the debugger's rerun path when a fix
	// didn't touch test_main.py).
	if testSource != "" {
		if err := writeTestFile(project.Path, defaultTestFilename, testSource); err != nil {
			return nil, err
		}
	}

	result, err := t.sandbox.RunTests(ctx, project.Path, defaultTestFilename, 0)
	if err != nil {
		return nil, fmt.Errorf("tester: run tests: %w", err)
	}

	for _, w := range result.PreflightWarnings {
		logging.Get(logging.CategoryTester).Warn("preflight: %s", w)
	}

	return buildTestPackage(pkg, defaultTestFilename, result), nil
}

func buildTestPackage(pkg artifact.CodePackage, testFilename string, result sandbox.TestResult) *artifact.TestPackage {
	passed := result.ExitCode == 0 && !result.Killed

	testResults := artifact.TestResults{
		ExitCode:   result.ExitCode,
		Passed:     passed,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		Output:     result.Combined,
		DurationMS: result.Duration.Milliseconds(),
		Timestamp:  result.FinishedAt,
	}

	failures := make([]artifact.TestFailure, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, artifact.TestFailure{
			TestName:         f.FullName,
			Status:           "failed",
			ErrorMessage:     f.ErrorMessage,
			TracebackExcerpt: truncate(f.RawOutput, 500),
		})
	}

	analysis := artifact.TestAnalysis{
		OverallStatus: statusLabel(passed),
		HasFailures:   !passed,
		Failures:      failures,
		FailureCount:  len(failures),
		Total:         result.Tally.Passed + result.Tally.Failed,
		PassedCount:   result.Tally.Passed,
		FailedCount:   result.Tally.Failed,
	}
	if result.Killed {
		analysis.ErrorCount = 1
	}

	return &artifact.TestPackage{
		Code:         pkg,
		TestFilename: testFilename,
		Results:      testResults,
		Analysis:     analysis,
	}
}

func statusLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func writeTestFile(projectPath, filename, source string) error {
	return os.WriteFile(filepath.Join(projectPath, filename), []byte(source), 0o644)
}

func userPrompt(pkg *artifact.CodePackage) string {
	var b strings.Builder
	b.WriteString("Code files:\n\n")
	for _, name := range sortedNames(pkg.Files) {
		if name == pkg.DocsFilename {
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", name, pkg.Files[name])
	}
	fmt.Fprintf(&b, "Entry point: %s\n", pkg.EntryPoint)
	if pkg.Plan != nil {
		fmt.Fprintf(&b, "Project summary: %s\n", pkg.Plan.Analysis.Summary)
	}
	return b.String()
}

func sortedNames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return text
	}
	if strings.HasPrefix(lines[len(lines)-1], "```") {
		lines = lines[1 : len(lines)-1]
	} else {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}
