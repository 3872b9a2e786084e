package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const fileExt = ".snap.json"

// FileStore keeps one file per snapshot under a directory.
type FileStore struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

type fileRecord struct {
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Data      []byte    `json:"data"`
}

// NewFileStore creates a file-backed snapshot store rooted at dir. The
// directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory snapshots are written to.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+fileExt)
}

// Save writes the snapshot to a temp file and renames it into place.
func (f *FileStore) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed{}
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir: %w", err)
	}

	raw, err := json.Marshal(fileRecord{ExpiresAt: expiresAt, Data: data})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("snapshot: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("snapshot: write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("snapshot: write %s: %w", key, err)
	}
	return nil
}

// Load reads a snapshot file. Missing or expired snapshots return (nil, nil).
func (f *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed{}
	}

	rec, err := f.read(key)
	if err != nil || rec == nil {
		return nil, err
	}
	if expired(rec.ExpiresAt, time.Now()) {
		return nil, nil
	}
	if rec.Data == nil {
		return []byte{}, nil
	}
	return rec.Data, nil
}

func (f *FileStore) read(key string) (*fileRecord, error) {
	raw, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", key, err)
	}

	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", key, err)
	}
	return &rec, nil
}

// Delete removes the snapshot file if it exists.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed{}
	}

	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("snapshot: delete %s: %w", key, err)
	}
	return nil
}

// Keys lists unexpired snapshots in the directory.
func (f *FileStore) Keys(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed{}
	}

	entries, err := os.ReadDir(f.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: list %s: %w", f.dir, err)
	}

	now := time.Now()
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		key := strings.TrimSuffix(name, fileExt)
		rec, err := f.read(key)
		if err != nil || rec == nil || expired(rec.ExpiresAt, now) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close marks the store closed. Files are left on disk.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
