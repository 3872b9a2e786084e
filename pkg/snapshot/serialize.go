package snapshot

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/vango-dev/fluxreg/internal/errors"
)

// CurrentVersion is the current version of the envelope format.
// Increment when making breaking changes to the format.
const CurrentVersion = 1

// Envelope is the JSON form of a registry snapshot.
type Envelope struct {
	// Version is the serialization format version.
	Version int `json:"version"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`

	// Stores holds each store's dehydrated state by store name.
	Stores map[string]json.RawMessage `json:"stores"`
}

// NewEnvelope encodes dehydrated store state into an envelope.
func NewEnvelope(state map[string]any) (*Envelope, error) {
	env := &Envelope{
		Version:   CurrentVersion,
		CreatedAt: time.Now().UTC(),
		Stores:    make(map[string]json.RawMessage, len(state)),
	}
	for name, v := range state {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.New("E181").
				WithDetailf("store %q state is not JSON-encodable", name).
				Wrap(err)
		}
		env.Stores[name] = raw
	}
	return env, nil
}

// State decodes the envelope back into generic values keyed by store name.
func (e *Envelope) State() (map[string]any, error) {
	out := make(map[string]any, len(e.Stores))
	for name, raw := range e.Stores {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("E181").
				WithDetailf("store %q", name).
				Wrap(err)
		}
		out[name] = v
	}
	return out, nil
}

// Names returns the store names in the envelope, sorted.
func (e *Envelope) Names() []string {
	names := make([]string, 0, len(e.Stores))
	for name := range e.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Serialize converts an envelope to bytes.
func Serialize(env *Envelope) ([]byte, error) {
	env.Version = CurrentVersion
	return json.Marshal(env)
}

// Deserialize converts bytes back to an envelope. Envelopes from a newer
// format version are rejected.
func Deserialize(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.New("E181").Wrap(err)
	}
	if env.Version < 1 || env.Version > CurrentVersion {
		return nil, errors.New("E182").
			WithDetailf("got version %d, supported up to %d", env.Version, CurrentVersion)
	}
	if env.Stores == nil {
		env.Stores = map[string]json.RawMessage{}
	}
	return &env, nil
}
