// Package sandbox materializes a generated Python project on disk and
// runs it (or its pytest suite) in a subprocess under a wall-clock
// timeout, returning structured execution and test results.
package sandbox

import (
	"time"

	"agentpipe/internal/sandbox/pyparse"
)

// ExecutionResult is the structured outcome of running a project's
// entry point.
//
// Invariant: Success is true whenever the process ran to completion,
// even with a non-zero ExitCode — Success distinguishes "we got to run
// your code" from "infrastructure failed" (couldn't spawn python3,
// couldn't write the project). Killed is true only when the timeout or
// a context cancellation ended the process; ExitCode is meaningless
// when Killed.
type ExecutionResult struct {
	ExitCode   int
	Success    bool
	Stdout     string
	Stderr     string
	Combined   string
	Killed     bool
	KillReason string
	Truncated  bool
	Duration   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// TestResult is the structured outcome of running a project's pytest suite.
type TestResult struct {
	ExecutionResult
	Failures         []pyparse.Failure
	Tally            pyparse.Results
	UsedJSONReport   bool
	PreflightWarnings []string
}

// maxOutputBytes caps captured stdout/stderr per stream, mirroring the
// teacher's limitedWriter cap on runaway output.
const maxOutputBytes = 2 << 20 // 2 MiB

// defaultTimeout is used when a caller passes timeout <= 0.
const defaultTimeout = 60 * time.Second
