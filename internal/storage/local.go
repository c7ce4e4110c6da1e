package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStorage keeps files under a directory on disk. It backs the agent's
// persisted session state (token, cached user, session id) and CSV
// downloads, standing in for the browser's local storage.
type LocalStorage struct {
	dir string
}

// Ensure LocalStorage implements StorageInterface
var _ StorageInterface = (*LocalStorage)(nil)

// NewLocalStorage creates a file store rooted at dir, creating it if needed.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Store writes data to a file, replacing any previous content.
func (s *LocalStorage) Store(filename string, data []byte) error {
	path, err := s.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	logrus.Debugf("Stored %s (%d bytes)", filename, len(data))
	return nil
}

// Retrieve reads a file's content.
func (s *LocalStorage) Retrieve(filename string) ([]byte, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return data, nil
}

// List returns the names of stored files matching the prefix.
func (s *LocalStorage) List(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if prefix == "" || strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Delete removes a file. Deleting a missing file is not an error.
func (s *LocalStorage) Delete(filename string) error {
	path, err := s.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	return nil
}

// resolve rejects names that would escape the storage directory.
func (s *LocalStorage) resolve(filename string) (string, error) {
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsRune(filename, filepath.Separator) {
		return "", fmt.Errorf("invalid storage filename %q", filename)
	}
	return filepath.Join(s.dir, filename), nil
}
