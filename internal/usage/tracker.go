package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type contextKey struct{}

// Tracker accumulates token usage and durably append-merges it to disk.
//
// persistedCount is the high-water mark: the number of in-memory log
// entries already reflected in the on-disk file. On every flush the
// file is re-read (another process may have appended since our last
// write), only entries at index >= persistedCount are merged in, and
// the file is rewritten. This lets several single-role processes share
// one usage log without losing each other's writes.
type Tracker struct {
	mu             sync.Mutex
	log            []Entry
	totals         data
	filePath       string
	persistedCount int
}

// NewTracker creates a tracker persisting to <workspacePath>/usage.json.
func NewTracker(workspacePath string) (*Tracker, error) {
	if err := os.MkdirAll(workspacePath, 0o755); err != nil {
		return nil, fmt.Errorf("usage: create workspace dir: %w", err)
	}
	t := &Tracker{filePath: filepath.Join(workspacePath, "usage.json")}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) load() error {
	raw, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("usage: read %s: %w", t.filePath, err)
	}
	var d data
	if err := json.Unmarshal(raw, &d); err != nil {
		return fmt.Errorf("usage: decode %s: %w", t.filePath, err)
	}
	t.totals = d
	t.log = append([]Entry(nil), d.UsageLog...)
	t.persistedCount = len(t.log)
	return nil
}

// Track appends one usage entry and flushes it to disk immediately.
//
// tokens must be non-negative (spec invariant: every UsageEntry.tokens >= 0).
func (t *Tracker) Track(agent AgentKind, tokens int, iteration *int, metadata map[string]any) error {
	if tokens < 0 {
		return fmt.Errorf("usage: negative token count %d for agent %s", tokens, agent)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := Entry{
		Agent:     agent,
		Tokens:    tokens,
		Timestamp: time.Now().UTC(),
		Iteration: iteration,
		Metadata:  metadata,
	}
	t.log = append(t.log, entry)
	t.totals.TotalTokens += int64(tokens)

	return t.flushLocked()
}

// flushLocked re-reads the on-disk file, merges in any entries this
// instance hasn't yet persisted, and rewrites it. Caller holds mu.
func (t *Tracker) flushLocked() error {
	existing := data{}
	raw, err := os.ReadFile(t.filePath)
	switch {
	case err == nil:
		if uerr := json.Unmarshal(raw, &existing); uerr != nil {
			return fmt.Errorf("usage: decode existing %s: %w", t.filePath, uerr)
		}
	case os.IsNotExist(err):
		// nothing on disk yet
	default:
		return fmt.Errorf("usage: read existing %s: %w", t.filePath, err)
	}

	merged := append(append([]Entry(nil), existing.UsageLog...), t.log[t.persistedCount:]...)
	var total int64
	for _, e := range merged {
		total += int64(e.Tokens)
	}

	out := data{
		TotalTokens: total,
		UsageLog:    merged,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}

	blob, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("usage: marshal: %w", err)
	}
	if err := os.WriteFile(t.filePath, blob, 0o644); err != nil {
		return fmt.Errorf("usage: write %s: %w", t.filePath, err)
	}

	t.persistedCount = len(t.log)
	t.totals = out
	return nil
}

// Stats returns a snapshot of aggregated counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{
		AgentBreakdown:     make(map[AgentKind]int64),
		AgentCalls:         make(map[AgentKind]int),
		DebuggerIterations: make(map[int]int64),
	}
	for i := range t.log {
		e := &t.log[i]
		s.TotalTokens += int64(e.Tokens)
		s.CallCount++
		s.AgentBreakdown[e.Agent] += int64(e.Tokens)
		s.AgentCalls[e.Agent]++
		if e.Agent == AgentDebugger && e.Iteration != nil {
			s.DebuggerIterations[*e.Iteration] += int64(e.Tokens)
		}
	}
	if len(t.log) > 0 {
		last := t.log[len(t.log)-1]
		s.LastEvent = &last
	}
	return s
}

// Reset clears in-memory state and deletes the persistence file.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.log = nil
	t.totals = data{}
	t.persistedCount = 0

	if err := os.Remove(t.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("usage: remove %s: %w", t.filePath, err)
	}
	return nil
}

// NewContext returns a context carrying the tracker, so agents deep in
// the call stack can record usage without threading *Tracker through
// every function signature.
func NewContext(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext retrieves the tracker stashed by NewContext, or nil.
func FromContext(ctx context.Context) *Tracker {
	v, _ := ctx.Value(contextKey{}).(*Tracker)
	return v
}
