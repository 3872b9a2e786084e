package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory snapshot store. Snapshots do not survive the
// process; it suits tests and single-run CLI use.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*storedSnapshot
	closed    bool
	done      chan struct{}
}

type storedSnapshot struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStoreOption configures MemoryStore behavior.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval sets how often expired snapshots are cleaned up.
// Non-positive values are ignored. Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(c *memoryStoreConfig) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	cfg := &memoryStoreConfig{
		cleanupInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &MemoryStore{
		snapshots: make(map[string]*storedSnapshot),
		done:      make(chan struct{}),
	}
	go store.cleanupLoop(cfg.cleanupInterval)
	return store
}

// Save stores a copy of data under key.
func (m *MemoryStore) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	if !validKey(key) {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	// Make a copy of data to prevent mutations
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.snapshots[key] = &storedSnapshot{
		data:      dataCopy,
		expiresAt: expiresAt,
	}
	return nil
}

// Load returns a copy of the snapshot if it exists and hasn't expired.
func (m *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	s, ok := m.snapshots[key]
	if !ok || expired(s.expiresAt, time.Now()) {
		return nil, nil
	}
	dataCopy := make([]byte, len(s.data))
	copy(dataCopy, s.data)
	return dataCopy, nil
}

// Delete removes a snapshot from the store.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	delete(m.snapshots, key)
	return nil
}

// Keys returns the keys of unexpired snapshots.
func (m *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	now := time.Now()
	keys := make([]string, 0, len(m.snapshots))
	for key, s := range m.snapshots {
		if !expired(s.expiresAt, now) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close shuts down the store and drops all snapshots.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)
	m.snapshots = nil
	return nil
}

// Count returns the number of snapshots held, expired ones included.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

func (m *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

func (m *MemoryStore) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	now := time.Now()
	for key, s := range m.snapshots {
		if expired(s.expiresAt, now) {
			delete(m.snapshots, key)
		}
	}
}
