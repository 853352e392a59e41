package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitialize_DisabledIsNoop(t *testing.T) {
	debugMode = false
	logsDir = ""
	l := Get(CategoryCoder)
	l.Info("hello %s", "world") // must not panic even with no file behind it
}

func TestInitialize_WritesLogFile(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer func() { debugMode = false; logsDir = ""; CloseAll() }()

	Get(CategoryTester).Info("ran %d tests", 3)
	CloseAll()

	path := filepath.Join(ws, ".pipeline", "logs", "tester.log")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("expected non-empty log file")
	}
}
