package snapshot

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store defines the interface for snapshot persistence backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists data under key, overwriting any previous snapshot.
	// A zero expiresAt means the snapshot never expires.
	Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error

	// Load retrieves the snapshot stored under key.
	// Returns (nil, nil) if it doesn't exist or has expired.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes a snapshot.
	// Should not return an error if the snapshot doesn't exist.
	Delete(ctx context.Context, key string) error

	// Keys lists the keys of stored snapshots in sorted order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "snapshot store is closed"
}

// ErrInvalidKey is returned for keys that are empty or contain path
// separators.
var ErrInvalidKey = errors.New("snapshot: invalid key")

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`)
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && now.After(expiresAt)
}
