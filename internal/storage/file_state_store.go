package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStateStore records sync times in a local JSON file, keyed by store then table.
// Used by the CLI outside AWS.
type FileStateStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStateStore creates a new FileStateStore that reads/writes to the given path.
func NewFileStateStore(path string) (*FileStateStore, error) {
	if path == "" {
		return nil, errors.New("state file path is required")
	}
	return &FileStateStore{path: path}, nil
}

// LastSyncTime returns when the table last finished syncing, or the zero time.
func (s *FileStateStore) LastSyncTime(_ context.Context, storeID string, table string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return time.Time{}, err
	}
	return state[storeID][table], nil
}

// SetLastSyncTime records when the table finished syncing.
func (s *FileStateStore) SetLastSyncTime(_ context.Context, storeID string, table string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}
	if state[storeID] == nil {
		state[storeID] = make(map[string]time.Time)
	}
	state[storeID][table] = t.UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	return nil
}

func (s *FileStateStore) read() (map[string]map[string]time.Time, error) {
	state := make(map[string]map[string]time.Time)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	if state == nil {
		state = make(map[string]map[string]time.Time)
	}
	return state, nil
}
