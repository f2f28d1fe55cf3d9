package store

import (
	"context"
	"errors"
	"strings"

	"tfcview/internal/types"
)

const (
	BackendFile  = "file"
	BackendBbolt = "bbolt"
)

// SessionStateStore persists the selected organization and watched
// workspace between invocations.
type SessionStateStore interface {
	Load(ctx context.Context) (*types.SessionState, error)
	Save(ctx context.Context, state *types.SessionState) error
	Backend() string
	Close() error
}

type Paths struct {
	StatePath string
	DBPath    string
}

// Open picks the store for backend. A fresh bbolt store is seeded from the
// JSON file when one exists.
func Open(ctx context.Context, paths Paths, backend string) (SessionStateStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendBbolt:
		if strings.TrimSpace(paths.DBPath) == "" {
			return nil, errors.New("db path is required for bbolt store")
		}
		dst, err := NewBboltSessionStateStore(paths.DBPath)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(paths.StatePath) != "" {
			if err := seedFromFile(ctx, dst, NewFileSessionStateStore(paths.StatePath)); err != nil {
				_ = dst.Close()
				return nil, err
			}
		}
		return dst, nil
	case BackendFile:
		if strings.TrimSpace(paths.StatePath) == "" {
			return nil, errors.New("state path is required for file store")
		}
		return NewFileSessionStateStore(paths.StatePath), nil
	default:
		return nil, errors.New("unsupported store backend: " + backend)
	}
}

func seedFromFile(ctx context.Context, dst, src SessionStateStore) error {
	current, err := dst.Load(ctx)
	if err != nil {
		return err
	}
	if !isZeroState(current) {
		return nil
	}
	seed, err := src.Load(ctx)
	if err != nil {
		return err
	}
	if isZeroState(seed) {
		return nil
	}
	return dst.Save(ctx, seed)
}

func isZeroState(state *types.SessionState) bool {
	return state == nil || (state.OrganizationName == "" && state.WatchingWorkspaceID == "")
}
