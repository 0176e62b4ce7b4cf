package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Manager handles file storage in the destination directory. Files are named
// by the caller; the manager only answers existence questions and writes.
type Manager struct {
	outputDir string
	saved     int
}

// NewManager creates the destination directory if absent and returns a manager
// for it. Failure here aborts startup before any network activity.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{outputDir: outputDir}, nil
}

// Exists reports whether a file with the given name is already present in the
// destination directory. This is a plain path existence test, no hashing.
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(m.outputDir, name))
	return err == nil
}

// Save writes data to name in the destination directory via a temporary file
// and rename, so a partially written file never lands under the final name.
func (m *Manager) Save(name string, data []byte) (string, error) {
	filename := filepath.Join(m.outputDir, name)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = out.Write(data)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write file data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.saved++

	return filename, nil
}

// OutputDir returns the destination directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// SavedCount returns the number of files written through this manager
func (m *Manager) SavedCount() int {
	return m.saved
}
