package sandbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"agentpipe/internal/artifact"
)

func TestWatchProject_FiresOnExternalWrite(t *testing.T) {
	sb, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pkg := artifact.CodePackage{Files: map[string]string{"main.py": "print('hi')\n"}}
	project, err := sb.WriteProject(pkg, "watched")
	if err != nil {
		t.Fatalf("WriteProject: %v", err)
	}
	defer project.Close()

	pw, err := WatchProject(project)
	if err != nil {
		t.Skipf("fsnotify unavailable in this environment: %v", err)
	}
	defer pw.Close()

	if err := os.WriteFile(filepath.Join(project.Path, "main.py"), []byte("changed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-pw.Stale():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Stale() to fire after external write")
	}
}
