package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"agentpipe/internal/artifact"
)

func TestWriteProject_WritesFilesAndRequirements(t *testing.T) {
	root := t.TempDir()
	sb, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pkg := artifact.CodePackage{
		Files: map[string]string{
			"main.py":    "print('hello')\n",
			"util/a.py":  "def helper(): pass\n",
		},
		Plan: &artifact.ArchitecturalPlan{
			Analysis: artifact.Analysis{Dependencies: []string{"requests", "pyyaml"}},
		},
		EntryPoint: "main.py",
	}

	project, err := sb.WriteProject(pkg, "demo")
	if err != nil {
		t.Fatalf("WriteProject: %v", err)
	}
	defer project.Close()

	if _, err := os.Stat(filepath.Join(project.Path, "main.py")); err != nil {
		t.Fatalf("main.py not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(project.Path, "util", "a.py")); err != nil {
		t.Fatalf("util/a.py not written: %v", err)
	}
	reqs, err := os.ReadFile(filepath.Join(project.Path, "requirements.txt"))
	if err != nil {
		t.Fatalf("requirements.txt not written: %v", err)
	}
	if string(reqs) != "requests\npyyaml\n" {
		t.Fatalf("requirements.txt = %q", reqs)
	}
}

func TestWriteProject_RejectsPathTraversal(t *testing.T) {
	root := t.TempDir()
	sb, _ := New(root)
	pkg := artifact.CodePackage{Files: map[string]string{"../escape.py": "x = 1\n"}}
	if _, err := sb.WriteProject(pkg, "demo"); err == nil {
		t.Fatalf("expected path-traversal rejection")
	}
}

func TestExecute_RunsPythonEntryPoint(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available in this environment")
	}

	root := t.TempDir()
	sb, _ := New(root)
	pkg := artifact.CodePackage{Files: map[string]string{"main.py": "print('ok')\n"}}
	project, err := sb.WriteProject(pkg, "exec-demo")
	if err != nil {
		t.Fatalf("WriteProject: %v", err)
	}
	defer project.Close()

	result, err := sb.Execute(context.Background(), project.Path, "main.py", 5*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || result.ExitCode != 0 {
		t.Fatalf("result = %+v, want success exit 0", result)
	}
}

func TestExecute_TimesOut(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available in this environment")
	}

	root := t.TempDir()
	sb, _ := New(root)
	pkg := artifact.CodePackage{Files: map[string]string{"main.py": "import time\ntime.sleep(10)\n"}}
	project, err := sb.WriteProject(pkg, "timeout-demo")
	if err != nil {
		t.Fatalf("WriteProject: %v", err)
	}
	defer project.Close()

	result, err := sb.Execute(context.Background(), project.Path, "main.py", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Killed {
		t.Fatalf("result = %+v, want Killed", result)
	}
}
