package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"tfcview/internal/types"
)

type FileSessionStateStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSessionStateStore(path string) *FileSessionStateStore {
	return &FileSessionStateStore{path: path}
}

func (s *FileSessionStateStore) Load(ctx context.Context) (*types.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &types.SessionState{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *FileSessionStateStore) Save(ctx context.Context, state *types.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state == nil {
		return errors.New("state is required")
	}
	return replaceFile(s.path, state)
}

func (s *FileSessionStateStore) Backend() string {
	return BackendFile
}

func (s *FileSessionStateStore) Close() error {
	return nil
}

// replaceFile writes v as indented JSON to a temp file in the same
// directory and renames it over path.
func replaceFile(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	file, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(file.Name())
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), path)
}
