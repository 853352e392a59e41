package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agentpipe/internal/artifact"
	"agentpipe/internal/orchestrator"
)

func TestToMarkdown_IncludesStatusAndTestCounts(t *testing.T) {
	result := orchestrator.RunResult{
		RunID:       "abc-123",
		FinalStatus: orchestrator.StatusSuccess,
		StartedAt:   time.Now().Add(-2 * time.Second),
		FinishedAt:  time.Now(),
		TestPackage: &artifact.TestPackage{
			Analysis: artifact.TestAnalysis{PassedCount: 4, FailedCount: 0},
		},
	}

	md := toMarkdown(result)
	assert.Contains(t, md, "abc-123")
	assert.Contains(t, md, "4 passed, 0 failed")
}

func TestToMarkdown_IncludesDebuggerAttempts(t *testing.T) {
	result := orchestrator.RunResult{
		RunID:       "run-2",
		FinalStatus: orchestrator.StatusSuccess,
		DebuggerRan: true,
		DebugResult: &artifact.DebugResult{
			Success:  true,
			Attempts: []artifact.DebugAttempt{{Index: 0, TestPassed: true}},
		},
	}

	md := toMarkdown(result)
	assert.True(t, strings.Contains(md, "1 attempt"))
}

func TestSafeRenderMarkdown_NeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		safeRenderMarkdown("# heading\n\nsome *text*")
	})
}
