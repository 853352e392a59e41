// Package telemetry appends one JSON line per finished pipeline run to
// a transcript file, independent of the usage tracker's token totals
// and the category logger's line-oriented debug output. It exists so a
// human (or another tool) can replay what a workspace's runs actually
// produced without re-parsing log files.
//
// Grounded on codeNERD's session persistence
// (cmd/nerd/chat/session.go's SaveSession, which writes
// .nerd/session.json on every turn) generalized from "one file
// overwritten per session" to "one line appended per run", since a
// pipeline workspace accumulates many runs rather than one long chat.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentpipe/internal/orchestrator"
)

// Record is the transcript shape persisted for one finished run.
type Record struct {
	RunID       string    `json:"run_id"`
	Requirements string   `json:"requirements"`
	FinalStatus string    `json:"final_status"`
	Error       string    `json:"error,omitempty"`
	DebuggerRan bool      `json:"debugger_ran"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Transcript appends Records to <workspace>/.pipeline/transcript.jsonl.
type Transcript struct {
	path string
}

// Open prepares a transcript file under workspace, creating its parent
// directory if needed.
func Open(workspace string) (*Transcript, error) {
	dir := filepath.Join(workspace, ".pipeline")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: create %s: %w", dir, err)
	}
	return &Transcript{path: filepath.Join(dir, "transcript.jsonl")}, nil
}

// Append records one finished run's outcome.
func (t *Transcript) Append(requirements string, result orchestrator.RunResult) error {
	rec := Record{
		RunID:        result.RunID,
		Requirements: requirements,
		FinalStatus:  string(result.FinalStatus),
		Error:        result.Error,
		DebuggerRan:  result.DebuggerRan,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("telemetry: marshal record: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("telemetry: open %s: %w", t.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("telemetry: write %s: %w", t.path, err)
	}
	return nil
}
