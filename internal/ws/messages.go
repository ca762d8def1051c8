// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines the structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/memdexlab/memdex/internal/engine"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeSnapshot MsgType = "snapshot"
	MsgTypeError    MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// SnapshotMessage — broadcast after every state-changing operation.
// ──────────────────────────────────────────────────────────────────────────────

// SnapshotMessage carries the full aggregate market state.  The protocol is
// deliberately coarse: clients rerender from the snapshot instead of applying
// per-field patches, so a dropped message never desynchronises them.
type SnapshotMessage struct {
	Type      MsgType          `json:"type"`
	Snapshot  *engine.Snapshot `json:"snapshot"`
	Timestamp time.Time        `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
