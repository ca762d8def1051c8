package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is stamped into every envelope. Readers reject versions they
// do not understand instead of guessing at the payload shape.
const SchemaVersion = 1

// Metadata travels with every persisted document.
type Metadata struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"savedAt"`
}

type envelope struct {
	Metadata Metadata        `json:"metadata"`
	Data     json.RawMessage `json:"data"`
}

// SaveDocument wraps data in a versioned envelope and writes it to the store.
func SaveDocument[T any](ctx context.Context, s DocumentStore, name string, data T, now time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("repository.SaveDocument: marshal %s: %w", name, err)
	}
	body, err := json.Marshal(envelope{
		Metadata: Metadata{Version: SchemaVersion, SavedAt: now.UTC()},
		Data:     raw,
	})
	if err != nil {
		return fmt.Errorf("repository.SaveDocument: wrap %s: %w", name, err)
	}
	if err := s.Write(ctx, name, body); err != nil {
		return fmt.Errorf("repository.SaveDocument: write %s: %w", name, err)
	}
	return nil
}

// LoadDocument reads a document and unwraps its envelope into out.
// ErrNotFound passes through untouched so callers can seed defaults; any
// other failure (bad JSON, wrong version) is a distinct error and the caller
// decides whether to fall back.
func LoadDocument[T any](ctx context.Context, s DocumentStore, name string, out *T) (Metadata, error) {
	body, err := s.Read(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return Metadata{}, err
		}
		return Metadata{}, fmt.Errorf("repository.LoadDocument: read %s: %w", name, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Metadata{}, fmt.Errorf("repository.LoadDocument: decode %s: %w", name, err)
	}
	if env.Metadata.Version <= 0 || env.Metadata.Version > SchemaVersion {
		return env.Metadata, fmt.Errorf("repository.LoadDocument: %s has unsupported version %d", name, env.Metadata.Version)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return env.Metadata, fmt.Errorf("repository.LoadDocument: decode %s payload: %w", name, err)
	}
	return env.Metadata, nil
}
