// Package workspace manages the temporary files of one analysis task.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Workspace is an isolated temp directory for a single task.
type Workspace struct {
	Dir       string
	CreatedAt time.Time
}

// Create creates a new workspace in the system temp directory.
func Create() (*Workspace, error) {
	dir, err := os.MkdirTemp("", "music-assistant-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{
		Dir:       dir,
		CreatedAt: time.Now(),
	}, nil
}

// InputCopy returns the staged upload path inside the workspace.
func (w *Workspace) InputCopy() string { return filepath.Join(w.Dir, "input.wav") }

// Cleanup removes the workspace directory and all contents.
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.Dir)
}

// SaveInput streams an uploaded file into the workspace and returns its
// path.
func (w *Workspace) SaveInput(src io.Reader) (string, error) {
	dst, err := os.Create(w.InputCopy())
	if err != nil {
		return "", fmt.Errorf("create input copy: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write input copy: %w", err)
	}
	return w.InputCopy(), nil
}
