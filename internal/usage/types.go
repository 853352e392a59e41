// Package usage accounts for LLM token consumption across the pipeline.
//
// Every call the LLM RPC client makes is recorded here, tagged with the
// agent that made it. Entry.Iteration is recorded only when the caller
// sets it; the orchestrator's debugger client does not, so debugger
// entries carry no attempt index. Persistence uses a read-merge-rewrite protocol so that
// multiple pipeline processes sharing a workspace accumulate rather
// than clobber each other's counters.
package usage

import "time"

// AgentKind identifies which of the four roles made an LLM call.
type AgentKind string

const (
	AgentArchitect AgentKind = "architect"
	AgentCoder     AgentKind = "coder"
	AgentTester    AgentKind = "tester"
	AgentDebugger  AgentKind = "debugger"
)

// Entry is one record of token consumption by one LLM call.
type Entry struct {
	Agent     AgentKind      `json:"agent"`
	Tokens    int            `json:"tokens"`
	Timestamp time.Time      `json:"timestamp"`
	Iteration *int           `json:"iteration,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// data is the root structure persisted to disk.
type data struct {
	TotalTokens int64   `json:"total_tokens"`
	UsageLog    []Entry `json:"usage_log"`
	LastUpdated string  `json:"last_updated,omitempty"`
}

// Stats is a point-in-time snapshot returned to callers.
type Stats struct {
	TotalTokens        int64               `json:"total_tokens"`
	CallCount          int                 `json:"call_count"`
	AgentBreakdown     map[AgentKind]int64 `json:"agent_breakdown"`
	AgentCalls         map[AgentKind]int   `json:"agent_calls"`
	DebuggerIterations map[int]int64       `json:"debugger_iterations"`
	LastEvent          *Entry              `json:"last_event,omitempty"`
}
