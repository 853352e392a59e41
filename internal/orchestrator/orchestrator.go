// Package orchestrator drives the four pipeline stages through the
// fixed state machine Architect → Coder → Tester → (success | Debugger
// → success | failed), sharing one usage tracker across every LLM call
// and one rate limiter that waits once before each stage.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agentpipe/internal/agents/architect"
	"agentpipe/internal/agents/coder"
	"agentpipe/internal/agents/debugger"
	"agentpipe/internal/agents/tester"
	"agentpipe/internal/artifact"
	"agentpipe/internal/llmrpc"
	"agentpipe/internal/logging"
	"agentpipe/internal/sandbox"
	"agentpipe/internal/usage"
)

// Orchestrator wires the four agents to one sandbox and usage tracker
// and runs them through the pipeline's fixed state machine.
type Orchestrator struct {
	architect *architect.Architect
	coder     *coder.Coder
	tester    *tester.Tester
	debugger  *debugger.Debugger
	sandbox   *sandbox.Sandbox
	tracker   *usage.Tracker
	limiter   *rateLimiter
	opts      Options
}

// New wires a fresh Orchestrator. client is wrapped per-role with
// llmrpc.Tracking so every call attributes its tokens to the correct
// AgentKind regardless of which role's Invoke made it.
func New(client llmrpc.Client, sb *sandbox.Sandbox, tracker *usage.Tracker, opts Options) *Orchestrator {
	if opts.MaxDebugAttempts <= 0 {
		opts.MaxDebugAttempts = DefaultOptions().MaxDebugAttempts
	}
	if opts.ProjectName == "" {
		opts.ProjectName = DefaultOptions().ProjectName
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultOptions().StageTimeout
	}

	archClient := &llmrpc.Tracking{Client: client, Agent: usage.AgentArchitect}
	coderClient := &llmrpc.Tracking{Client: client, Agent: usage.AgentCoder}
	testerClient := &llmrpc.Tracking{Client: client, Agent: usage.AgentTester}
	debugClient := &llmrpc.Tracking{Client: client, Agent: usage.AgentDebugger}

	t := tester.New(testerClient, sb)

	return &Orchestrator{
		architect: architect.New(archClient),
		coder:     coder.New(coderClient),
		tester:    t,
		debugger:  debugger.New(debugClient, t, debugger.Options{MaxAttempts: opts.MaxDebugAttempts}),
		sandbox:   sb,
		tracker:   tracker,
		limiter:   newRateLimiter(opts.RequestDelay, opts.EnableRateLimiting),
		opts:      opts,
	}
}

// Run drives one complete pipeline execution for requirements. It
// never returns an error from a stage failure — failures are reported
// through RunResult.FinalStatus/Error so the caller always gets a
// result to inspect, matching the Python original's
// run_complete_workflow, which collects every outcome into one result
// dict rather than propagating exceptions to its caller.
func (o *Orchestrator) Run(ctx context.Context, requirements string) (result RunResult) {
	result.RunID = uuid.New().String()
	result.StartedAt = time.Now()
	result.FinalStatus = StatusError

	ctx = usage.NewContext(ctx, o.tracker)

	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryOrchestrator).Error("panic in run %s: %v\n%s", result.RunID, r, debug.Stack())
			result.FinalStatus = StatusError
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.FinishedAt = time.Now()
	}()

	logging.Get(logging.CategoryOrchestrator).Info("run %s: starting", result.RunID)

	plan, err := o.runArchitect(ctx, requirements)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Plan = plan

	code, project, err := o.runCoder(ctx, plan)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer project.Close()
	result.Code = code

	tp, err := o.runTester(ctx, code, project)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.TestPackage = tp

	if !tp.Analysis.HasFailures {
		logging.Get(logging.CategoryOrchestrator).Info("run %s: all tests passed, no debugging needed", result.RunID)
		result.FinalStatus = StatusSuccess
		return result
	}

	logging.Get(logging.CategoryOrchestrator).Info("run %s: tests failed, handing off to debugger", result.RunID)
	if err := o.limiter.Wait(ctx); err != nil {
		result.Error = (&CancellationError{Stage: "debugger", Err: err}).Error()
		return result
	}

	dr, err := o.debugger.FixAndVerify(ctx, tp, project)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.DebuggerRan = true
	result.DebugResult = dr

	if dr.Success {
		result.FinalStatus = StatusSuccess
	} else {
		result.FinalStatus = StatusFailed
		result.Error = fmt.Sprintf("tests still failing after %d debugger attempt(s)", len(dr.Attempts))
	}
	return result
}

func (o *Orchestrator) runArchitect(ctx context.Context, requirements string) (*artifact.ArchitecturalPlan, error) {
	logging.Get(logging.CategoryOrchestrator).Info("stage: architect")
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, &CancellationError{Stage: "architect", Err: err}
	}
	plan, err := o.architect.CreateArchitecture(ctx, requirements)
	if err != nil {
		return nil, &TransportError{Stage: "architect", Err: err}
	}
	return plan, nil
}

func (o *Orchestrator) runCoder(ctx context.Context, plan *artifact.ArchitecturalPlan) (*artifact.CodePackage, *sandbox.Project, error) {
	logging.Get(logging.CategoryOrchestrator).Info("stage: coder")
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, nil, &CancellationError{Stage: "coder", Err: err}
	}
	code, err := o.coder.Generate(ctx, plan)
	if err != nil {
		return nil, nil, &TransportError{Stage: "coder", Err: err}
	}

	project, err := o.sandbox.WriteProject(*code, o.opts.ProjectName)
	if err != nil {
		return nil, nil, &ValidationError{Stage: "coder", Detail: err.Error()}
	}
	return code, project, nil
}

// runTester generates the test suite and takes a smoke-run of the
// entry point concurrently via errgroup — the two are independent
// reads of the same CodePackage, grounded on the parallel embedded/
// learned corpus search in internal/perception/semantic_classifier.go.
// The smoke run's result only ever produces a logged warning: it
// exists to surface import-time errors early, not to gate the suite.
func (o *Orchestrator) runTester(ctx context.Context, code *artifact.CodePackage, project *sandbox.Project) (*artifact.TestPackage, error) {
	logging.Get(logging.CategoryOrchestrator).Info("stage: tester")
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, &CancellationError{Stage: "tester", Err: err}
	}

	g, gctx := errgroup.WithContext(ctx)

	var testSource string
	g.Go(func() error {
		src, err := o.tester.GenerateTests(gctx, code)
		if err != nil {
			return err
		}
		testSource = src
		return nil
	})

	g.Go(func() error {
		smoke, err := o.sandbox.Execute(gctx, project.Path, code.EntryPoint, o.opts.StageTimeout)
		if err != nil {
			logging.Get(logging.CategoryOrchestrator).Warn("entry point smoke run failed to spawn: %v", err)
			return nil
		}
		if smoke.ExitCode != 0 && !smoke.Killed {
			logging.Get(logging.CategoryOrchestrator).Warn("entry point smoke run exited %d: %s", smoke.ExitCode, smoke.Stderr)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, &TransportError{Stage: "tester", Err: err}
	}

	tp, err := o.tester.RunAndAnalyze(ctx, *code, project, testSource)
	if err != nil {
		return nil, &ExecutionTimeout{Stage: "tester", Reason: err.Error()}
	}
	return tp, nil
}
