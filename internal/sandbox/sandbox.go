package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"agentpipe/internal/sandbox/pyparse"
)

// Sandbox runs generated Python projects in host subprocesses. It has
// exactly one concern: materialize a project tree, run python3 (or
// pytest) under a timeout, and hand back structured results — a
// narrowing of codeNERD's general-purpose Executor interface to the
// Python/pytest domain this pipeline needs.
type Sandbox struct {
	workspaceRoot string
	pythonBinary  string
}

// New creates a Sandbox rooted at workspaceRoot, which is created if
// it does not already exist.
func New(workspaceRoot string) (*Sandbox, error) {
	if err := os.MkdirAll(workspaceRoot, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create workspace root: %w", err)
	}
	return &Sandbox{workspaceRoot: workspaceRoot, pythonBinary: "python3"}, nil
}

// Execute runs projectPath's entryPoint with python3 under timeout.
func (s *Sandbox) Execute(ctx context.Context, projectPath, entryPoint string, timeout time.Duration) (ExecutionResult, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return s.run(ctx, projectPath, []string{entryPoint}, timeout)
}

// RunTests runs pytest against testFile under timeout, first with
// --json-report and, if the plugin isn't installed, again without it.
// In both cases failures and the tally come from parsing the combined
// verbose output with pyparse; the JSON report file is removed without
// being read.
func (s *Sandbox) RunTests(ctx context.Context, projectPath, testFile string, timeout time.Duration) (TestResult, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	warnings := ScanForHangPatterns(projectPath)

	reportPath := filepath.Join(projectPath, ".pytest_report.json")
	args := []string{"-m", "pytest", "-v", "--json-report", "--json-report-file=" + reportPath, testFile}
	exec1, err := s.run(ctx, projectPath, args, timeout)
	if err != nil {
		return TestResult{PreflightWarnings: warnings}, err
	}

	if strings.Contains(exec1.Stderr, "unrecognized arguments: --json-report") {
		exec1, err = s.run(ctx, projectPath, []string{"-m", "pytest", "-v", testFile}, timeout)
		if err != nil {
			return TestResult{PreflightWarnings: warnings}, err
		}
		return s.buildTestResult(exec1, false, warnings), nil
	}

	_ = os.Remove(reportPath) // best-effort; absence doesn't fail the run
	return s.buildTestResult(exec1, true, warnings), nil
}

func (s *Sandbox) buildTestResult(exec ExecutionResult, usedJSONReport bool, warnings []string) TestResult {
	failures, tally := pyparse.Parse(exec.Combined)
	return TestResult{
		ExecutionResult:   exec,
		Failures:          failures,
		Tally:             tally,
		UsedJSONReport:    usedJSONReport,
		PreflightWarnings: warnings,
	}
}

// run is the shared subprocess execution path for Execute and RunTests,
// grounded on DirectExecutor.Execute: exec.CommandContext under a
// context.WithTimeout, size-capped output capture, and
// timeout/cancel/non-zero-exit/infra-error branching.
func (s *Sandbox) run(ctx context.Context, projectPath string, args []string, timeout time.Duration) (ExecutionResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, s.pythonBinary, args...)
	cmd.Dir = projectPath

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: maxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: maxOutputBytes}
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	result := ExecutionResult{ExitCode: -1, StartedAt: time.Now()}
	runErr := cmd.Run()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Combined = result.Stdout
	if result.Stderr != "" {
		if result.Combined != "" {
			result.Combined += "\n"
		}
		result.Combined += result.Stderr
	}
	result.Truncated = stdoutLimited.truncated || stderrLimited.truncated

	switch {
	case runErr == nil:
		result.Success = true
		result.ExitCode = 0

	case execCtx.Err() == context.DeadlineExceeded:
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		result.Success = true // infrastructure worked; the command itself was killed

	case execCtx.Err() == context.Canceled:
		result.Killed = true
		result.KillReason = "context canceled"
		result.Success = true

	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.Success = true
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.Success = false
			result.Error = runErr.Error()
			return result, fmt.Errorf("sandbox: spawn %s: %w", s.pythonBinary, runErr)
		}
	}

	if result.Killed {
		if result.Stderr != "" {
			result.Stderr += "\n"
		}
		result.Stderr += result.KillReason
		if result.Combined != "" {
			result.Combined += "\n"
		}
		result.Combined += result.KillReason
	}

	return result, nil
}

// Cleanup removes a materialized project directory. Safe to call on a
// path that no longer exists.
func (s *Sandbox) Cleanup(projectPath string) error {
	if err := os.RemoveAll(projectPath); err != nil {
		return fmt.Errorf("sandbox: cleanup %q: %w", projectPath, err)
	}
	return nil
}
