package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentpipe/internal/artifact"
)

// Project is a scoped handle to a materialized project directory.
// Close always removes the directory, so callers can `defer
// project.Close()` immediately after WriteProject and get cleanup on
// every exit path, including panics — the scoped-acquisition pattern
// codeNERD's AuditCallback start/complete/error triad approximates
// with explicit emitAudit calls instead of deferred cleanup.
type Project struct {
	Path    string
	sandbox *Sandbox
}

// Close removes the project directory. Safe to call multiple times.
func (p *Project) Close() error {
	return p.sandbox.Cleanup(p.Path)
}

// WriteProject materializes a code package under workspaceRoot/projectName,
// deleting any existing directory of that name first. Every file in
// pkg.Files is written (creating parent directories as needed); if the
// architectural plan lists dependencies, a requirements.txt is written
// alongside them.
func (s *Sandbox) WriteProject(pkg artifact.CodePackage, projectName string) (*Project, error) {
	if projectName == "" || strings.ContainsAny(projectName, "/\\") {
		return nil, fmt.Errorf("sandbox: invalid project name %q", projectName)
	}

	projectPath := filepath.Join(s.workspaceRoot, projectName)

	if err := os.RemoveAll(projectPath); err != nil {
		return nil, fmt.Errorf("sandbox: clear existing project dir: %w", err)
	}
	if err := os.MkdirAll(projectPath, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create project dir: %w", err)
	}

	for name, content := range pkg.Files {
		if err := writeProjectFile(projectPath, name, content); err != nil {
			return nil, err
		}
	}

	if pkg.Plan != nil && len(pkg.Plan.Analysis.Dependencies) > 0 {
		reqs := strings.Join(pkg.Plan.Analysis.Dependencies, "\n") + "\n"
		if err := writeProjectFile(projectPath, "requirements.txt", reqs); err != nil {
			return nil, err
		}
	}

	return &Project{Path: projectPath, sandbox: s}, nil
}

// writeProjectFile writes one file under root, rejecting any name that
// would escape root via path traversal.
func writeProjectFile(root, name, content string) error {
	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return fmt.Errorf("sandbox: rejected path-traversal filename %q", name)
	}

	fullPath := filepath.Join(root, cleaned)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("sandbox: create parent dir for %q: %w", name, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("sandbox: write %q: %w", name, err)
	}
	return nil
}
