package serving

import (
	"context"
	"fmt"
	"iris-backend/internal/core"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileModel serves the artifact at a local path and reloads it whenever the
// file is replaced, e.g. by a new training run writing to the same path.
type FileModel struct {
	path string

	mu       sync.RWMutex
	artifact *core.Artifact

	reloaded chan struct{}
}

func NewFileModel(path string) (*FileModel, error) {
	artifact, err := core.LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	return &FileModel{path: path, artifact: artifact, reloaded: make(chan struct{}, 1)}, nil
}

func (m *FileModel) Artifact() *core.Artifact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.artifact
}

func (m *FileModel) Predict(instances [][]float64) (Prediction, error) {
	return Predict(m.Artifact(), instances)
}

// Reloaded receives a value after each successful reload.
func (m *FileModel) Reloaded() <-chan struct{} {
	return m.reloaded
}

func (m *FileModel) reload() {
	artifact, err := core.LoadArtifact(m.path)
	if err != nil {
		// a half finished replacement; the next event retries
		slog.Warn("error reloading model artifact", "path", m.path, "error", err)
		return
	}

	m.mu.Lock()
	m.artifact = artifact
	m.mu.Unlock()
	slog.Info("reloaded model artifact", "path", m.path)

	select {
	case m.reloaded <- struct{}{}:
	default:
	}
}

// Watch reloads the artifact on changes until ctx is done. Artifacts are
// replaced by rename, so the parent directory is watched rather than the file.
func (m *FileModel) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating file watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("error watching %s: %w", m.path, err)
	}

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				m.reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("file watcher error", "path", m.path, "error", err)
		}
	}
}
