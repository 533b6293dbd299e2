// Package sheetstate remembers, on the client, which catalog image is attached
// to the study sheet being edited.
package sheetstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/nidhogg/dinobot/internal/catalog"
)

// Store reads, writes and clears the generated exercise image.
type Store interface {
	Get() (*catalog.ImageRecord, error)
	Set(rec catalog.ImageRecord) error
	Clear() error
}

const stateKey = "generated_exercise_image"

// FileStore keeps the state as a small JSON document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the state file under the user cache dir.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "dinobot", "sheet-state.json")
}

// Get returns the stored image, or nil when nothing is stored.
func (s *FileStore) Get() (*catalog.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sheet state: %w", err)
	}
	var doc map[string]*catalog.ImageRecord
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode sheet state: %w", err)
	}
	return doc[stateKey], nil
}

// Set replaces the stored image.
func (s *FileStore) Set(rec catalog.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(map[string]catalog.ImageRecord{stateKey: rec}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sheet state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write sheet state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Clear removes the stored image. Clearing an empty store is not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear sheet state: %w", err)
	}
	return nil
}
