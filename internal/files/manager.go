package files

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Manager writes output files under a base directory. Every write replaces
// the target in full: content goes to a temporary sibling which is renamed
// over the destination only once it has been completely written.
type Manager struct {
	basePath string
}

// NewManager creates a new file manager instance
func NewManager(basePath string) *Manager {
	return &Manager{basePath: basePath}
}

// Resolve returns the full path for a path relative to the base directory
func (m *Manager) Resolve(path string) string {
	if filepath.IsAbs(path) || m.basePath == "" {
		return path
	}
	return filepath.Join(m.basePath, path)
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(m.Resolve(path))
	return err == nil
}

// EnsureDirectory creates a directory if it doesn't exist
func (m *Manager) EnsureDirectory(path string) error {
	fullPath := m.Resolve(path)

	slog.Debug("Ensuring directory exists",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	return os.MkdirAll(fullPath, 0755)
}

// WriteAtomic streams content produced by write into path
func (m *Manager) WriteAtomic(path string, write func(w io.Writer) error) (err error) {
	fullPath := m.Resolve(path)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", fullPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", fullPath, err)
	}

	slog.Debug("File written",
		slog.String("path", path),
		slog.String("full_path", fullPath))
	return nil
}
