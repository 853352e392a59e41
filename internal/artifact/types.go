// Package artifact defines the typed envelopes exchanged between pipeline
// stages (architectural plan, code package, test package, debug result)
// and the layered parser that recovers them from free-form LLM text.
package artifact

import "time"

// ArchitectureType classifies the kind of program the Architect designed.
type ArchitectureType string

const (
	ArchitectureCLI   ArchitectureType = "CLI"
	ArchitectureAPI   ArchitectureType = "API"
	ArchitectureGUI   ArchitectureType = "GUI"
	ArchitectureOther ArchitectureType = "other"
)

// Complexity is the Architect's self-assessed difficulty rating.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Analysis is the Architect's high-level read of the requirements.
type Analysis struct {
	Components       []string         `json:"components"`
	Dependencies     []string         `json:"dependencies"`
	ArchitectureType ArchitectureType `json:"architecture_type"`
	Complexity       Complexity       `json:"complexity"`
	Summary          string           `json:"summary"`
}

// FileStructure maps out the project's files and their entry point.
type FileStructure struct {
	Files            map[string]string `json:"files"` // filename -> one-line description
	EntryPoint       string            `json:"entry_point"`
	ClassDefinitions map[string]string `json:"class_definitions"` // class name -> filename
}

// FilePlan is the optional per-file detail the Architect may provide.
type FilePlan struct {
	Purpose   string   `json:"purpose"`
	Classes   []string `json:"classes"`
	Functions []string `json:"functions"`
	KeyLogic  string   `json:"key_logic"`
}

// ArchitecturalPlan is the Architect's sole output artifact.
//
// Invariant: EntryPoint is a key of FileStructure.Files. Exactly 3
// components is the target; the parser tolerates and logs deviations
// rather than rejecting the plan.
type ArchitecturalPlan struct {
	Requirements  string              `json:"requirements"`
	Analysis      Analysis            `json:"analysis"`
	FileStructure FileStructure       `json:"file_structure"`
	DetailedPlan  map[string]FilePlan `json:"detailed_plan,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`

	// Warnings records tolerated invariant deviations (e.g. not exactly
	// 3 components) for the caller to log; it never fails the stage.
	Warnings []string `json:"warnings,omitempty"`
}

// CodePackage is the Coder's sole output artifact.
//
// Invariant: EntryPoint present and non-empty in Files; no file body is
// empty; Files' keys equal Plan.FileStructure.Files' keys, modulo the
// generated docs file.
type CodePackage struct {
	Files        map[string]string  `json:"files"`
	Plan         *ArchitecturalPlan `json:"architectural_plan,omitempty"`
	EntryPoint   string             `json:"entry_point"`
	DocsFilename string             `json:"docs_filename,omitempty"`
}

// TestFailure is one parsed test failure with diagnostic context.
type TestFailure struct {
	TestName         string `json:"test_name"`
	Status           string `json:"status"`
	ErrorMessage     string `json:"error_message"`
	TracebackExcerpt string `json:"traceback_excerpt,omitempty"`
}

// TestResults is the raw, structured output of one subprocess test run.
//
// Invariant: Passed == (ExitCode == 0).
type TestResults struct {
	ExitCode   int       `json:"exit_code"`
	Passed     bool      `json:"passed"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	Output     string    `json:"output"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// TestAnalysis is the Tester's structured read of TestResults.
//
// Invariant: HasFailures == !Passed (of the TestResults it was derived from).
type TestAnalysis struct {
	OverallStatus string        `json:"overall_status"` // "passed" | "failed"
	HasFailures   bool          `json:"has_failures"`
	Failures      []TestFailure `json:"failures"`
	FailureCount  int           `json:"failure_count"`
	Total         int           `json:"total,omitempty"`
	PassedCount   int           `json:"passed_count,omitempty"`
	FailedCount   int           `json:"failed_count,omitempty"`
	ErrorCount    int           `json:"error_count,omitempty"`
}

// TestPackage is the Tester's sole output artifact: a code package
// augmented with the generated test file, plus the structured result
// of running it.
type TestPackage struct {
	Code         CodePackage  `json:"code_package"`
	TestFilename string       `json:"test_filename"`
	Results      TestResults  `json:"test_results"`
	Analysis     TestAnalysis `json:"test_analysis"`
}

// DebugAttempt is one iteration of the Debugger's inner loop.
type DebugAttempt struct {
	Index           int      `json:"attempt_index"`
	AnalysisSummary string   `json:"analysis_summary"`
	FixedFilenames  []string `json:"fixed_filenames"`
	TestPassed      bool     `json:"test_passed"`
	TestOutputTail  string   `json:"test_output_tail"`
}

// DebugResult is the Debugger's sole output artifact.
//
// Invariant: Success == Attempts[last].TestPassed; len(Attempts) <= the
// configured MaxDebugAttempts.
type DebugResult struct {
	Success          bool              `json:"success"`
	FixedCode        map[string]string `json:"fixed_code"`
	Attempts         []DebugAttempt    `json:"attempts"`
	FinalTestResults TestResults       `json:"final_test_results"`
}
