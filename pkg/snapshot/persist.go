package snapshot

import (
	"context"
	"time"

	"github.com/vango-dev/fluxreg/internal/errors"
)

// Dehydrator produces serializable state keyed by store name.
// *registry.Registry implements it.
type Dehydrator interface {
	Dehydrate() (map[string]any, error)
}

// Hydrator restores state keyed by store name.
// *registry.Registry implements it.
type Hydrator interface {
	Hydrate(serialized map[string]any) error
}

// Save dehydrates src and writes the envelope under key. A ttl of zero
// keeps the snapshot until deleted. Dehydrate errors are returned
// unchanged.
func Save(ctx context.Context, store Store, key string, src Dehydrator, ttl time.Duration) error {
	state, err := src.Dehydrate()
	if err != nil {
		return err
	}

	env, err := NewEnvelope(state)
	if err != nil {
		return err
	}
	data, err := Serialize(env)
	if err != nil {
		return errors.New("E181").Wrap(err)
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	if err := store.Save(ctx, key, data, expiresAt); err != nil {
		return errors.New("E180").WithDetailf("saving %q", key).Wrap(err)
	}
	return nil
}

// Load reads and decodes the envelope under key. It returns (nil, nil)
// when no snapshot exists.
func Load(ctx context.Context, store Store, key string) (*Envelope, error) {
	data, err := store.Load(ctx, key)
	if err != nil {
		return nil, errors.New("E180").WithDetailf("loading %q", key).Wrap(err)
	}
	if data == nil {
		return nil, nil
	}
	return Deserialize(data)
}

// Restore loads the snapshot under key and hydrates dst from it. found is
// false when no snapshot exists, in which case dst is untouched. Hydrate
// errors are returned unchanged.
func Restore(ctx context.Context, store Store, key string, dst Hydrator) (found bool, err error) {
	env, err := Load(ctx, store, key)
	if err != nil || env == nil {
		return false, err
	}

	state, err := env.State()
	if err != nil {
		return true, err
	}
	return true, dst.Hydrate(state)
}
