package sandbox

import (
	"github.com/fsnotify/fsnotify"

	"agentpipe/internal/logging"
)

// ProjectWatcher signals on Stale() when a file directly under a
// Project's directory is written, removed or renamed. It does
// not tell the pipeline's own writes apart from anyone else's, and it
// does not invalidate the Project itself.
type ProjectWatcher struct {
	watcher *fsnotify.Watcher
	stale   chan struct{}
}

// WatchProject starts watching project's directory for external
// writes. Callers should select on Stale() alongside their own work
// and re-materialize the project if it fires. If the platform watcher
// cannot be created or the directory cannot be added, WatchProject
// returns that error.
func WatchProject(project *Project) (*ProjectWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(project.Path); err != nil {
		_ = w.Close()
		return nil, err
	}

	pw := &ProjectWatcher{watcher: w, stale: make(chan struct{}, 1)}
	go pw.run()
	return pw, nil
}

func (pw *ProjectWatcher) run() {
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logging.Get(logging.CategorySandbox).Debug("project watcher: external change to %s", event.Name)
				select {
				case pw.stale <- struct{}{}:
				default:
				}
			}
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategorySandbox).Warn("project watcher error: %v", err)
		}
	}
}

// Stale fires at most once per detected change; callers drain
// it to learn the cached project should be re-verified before reuse.
func (pw *ProjectWatcher) Stale() <-chan struct{} { return pw.stale }

// Close stops the watcher.
func (pw *ProjectWatcher) Close() error { return pw.watcher.Close() }
