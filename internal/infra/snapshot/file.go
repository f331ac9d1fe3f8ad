// Package snapshot persists the venue volume snapshot.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"venue-panel/internal/domain"
)

// FileStore keeps the snapshot in a single JSON file. Writes go to a temp
// file that is renamed into place, and both reads and writes hold an
// advisory lock on a sibling .lock file so overlapping requests, including
// from other processes, never see a torn record.
type FileStore struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Read(ctx context.Context) (*domain.Snapshot, error) {
	unlock, err := s.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	return decode(data)
}

func (s *FileStore) Write(ctx context.Context, snapshot domain.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	unlock, err := s.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) acquire(ctx context.Context, exclusive bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}

	s.mu.Lock()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil || !locked {
		s.mu.Unlock()
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, fmt.Errorf("locking snapshot file: %w", err)
	}

	return func() {
		s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}

// decode parses a stored record. Anything without a volumes object is
// reported as domain.ErrMalformedSnapshot.
func decode(data []byte) (*domain.Snapshot, error) {
	var raw struct {
		Timestamp string          `json:"timestamp"`
		Volumes   map[string]*int `json:"volumes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}
	if raw.Volumes == nil {
		return nil, fmt.Errorf("%w: missing volumes", domain.ErrMalformedSnapshot)
	}

	snapshot := &domain.Snapshot{Volumes: make(map[string]int, len(raw.Volumes))}
	for zone, level := range raw.Volumes {
		if level != nil {
			snapshot.Volumes[zone] = *level
		}
	}
	if ts, err := parseTimestamp(raw.Timestamp); err == nil {
		snapshot.Timestamp = ts
	}
	return snapshot, nil
}
