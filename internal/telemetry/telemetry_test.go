package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentpipe/internal/orchestrator"
)

func TestAppend_WritesOneJSONLinePerRun(t *testing.T) {
	dir := t.TempDir()
	tr, err := Open(dir)
	require.NoError(t, err)

	now := time.Now()
	result := orchestrator.RunResult{
		RunID:       "run-1",
		FinalStatus: orchestrator.StatusSuccess,
		StartedAt:   now,
		FinishedAt:  now.Add(time.Second),
	}
	require.NoError(t, tr.Append("build a calculator", result))
	require.NoError(t, tr.Append("build a todo list", result))

	f, err := os.Open(filepath.Join(dir, ".pipeline", "transcript.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "build a calculator", rec.Requirements)
	assert.Equal(t, "success", rec.FinalStatus)
}
