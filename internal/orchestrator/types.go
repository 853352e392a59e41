package orchestrator

import (
	"time"

	"agentpipe/internal/artifact"
)

// Status is the terminal state of one pipeline run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
)

// Options configures one Orchestrator.
type Options struct {
	// MaxDebugAttempts bounds the debugger's inner retry loop.
	MaxDebugAttempts int

	// EnableRateLimiting waits until RequestDelay has passed since the
	// previous wait before each stage starts (architect, coder, tester,
	// debugger), sharing one clock. Calls made within one stage (the
	// coder's per-file fallback, the tester's analysis, each debugger
	// attempt, client retries) are not spaced by it.
	EnableRateLimiting bool
	RequestDelay       time.Duration

	// AllowReplan would route a debugger exhaustion back to the
	// architect for a fresh plan; this pipeline's open question on
	// replanning is resolved as "no" (see DESIGN.md), so this is
	// always false today and reserved for a future loop.
	AllowReplan bool

	// ProjectName names the sandbox subdirectory a run materializes
	// its files under.
	ProjectName string

	// StageTimeout bounds the tester stage's sandbox Execute smoke run.
	// It does not apply to pytest runs: RunTests is called with no
	// timeout, so the sandbox's 60s default bounds those.
	StageTimeout time.Duration
}

// DefaultOptions mirrors the Python original's defaults: 5 debug
// attempts, rate limiting on with a 6s delay (10 RPM free-tier quota).
func DefaultOptions() Options {
	return Options{
		MaxDebugAttempts:   5,
		EnableRateLimiting: true,
		RequestDelay:       6 * time.Second,
		ProjectName:        "generated",
		StageTimeout:       300 * time.Second,
	}
}

// RunResult is the Orchestrator's sole output artifact.
type RunResult struct {
	RunID         string
	FinalStatus   Status
	Plan          *artifact.ArchitecturalPlan
	Code          *artifact.CodePackage
	TestPackage   *artifact.TestPackage
	DebugResult   *artifact.DebugResult
	DebuggerRan   bool
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}
