package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"tfcview/internal/types"
)

var (
	bucketSession   = []byte("session")
	keySessionState = []byte("state")
)

type bboltSessionStateStore struct {
	db *bolt.DB
}

func NewBboltSessionStateStore(path string) (SessionStateStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("state db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &bboltSessionStateStore{db: db}, nil
}

func (s *bboltSessionStateStore) Load(ctx context.Context) (*types.SessionState, error) {
	state := &types.SessionState{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return nil
		}
		raw := b.Get(keySessionState)
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *bboltSessionStateStore) Save(ctx context.Context, state *types.SessionState) error {
	if state == nil {
		return errors.New("state is required")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return errors.New("session bucket missing")
		}
		return b.Put(keySessionState, raw)
	})
}

func (s *bboltSessionStateStore) Backend() string {
	return BackendBbolt
}

func (s *bboltSessionStateStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
