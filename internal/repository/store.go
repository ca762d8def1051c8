// Package repository persists the market state as whole-document snapshots.
// Each document is a versioned JSON envelope written atomically; backends
// implement the DocumentStore interface over flat files or SQLite.
package repository

import (
	"context"
	"errors"
)

// Well-known document names. One document per state family keeps a partial
// write from corrupting unrelated state.
const (
	DocPrices   = "prices"
	DocChances  = "chances"
	DocSession  = "session"
	DocAccounts = "accounts"
)

// ErrNotFound signals that a document has never been written.
var ErrNotFound = errors.New("repository: document not found")

// IsNotFound reports whether err is the missing-document sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// DocumentStore reads and writes named snapshot documents. Writes must be
// atomic: a crash mid-write leaves the previous version readable.
type DocumentStore interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, body []byte) error
	Close() error
}
