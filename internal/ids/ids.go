// Package ids generates the opaque identifiers OrbitDock hands out for
// sessions, messages, approvals, and client requests created server-side
// (ids that arrive from a hook payload or a client command are used as-is).
package ids

import "github.com/google/uuid"

// NewSessionID returns a new opaque session identifier.
func NewSessionID() string {
	return "sess-" + uuid.NewString()
}

// NewApprovalID returns a new opaque approval correlation token.
func NewApprovalID() string {
	return "appr-" + uuid.NewString()
}

// NewMessageID returns a new opaque message identifier.
func NewMessageID() string {
	return "msg-" + uuid.NewString()
}

// NewRequestID returns a new opaque client-request correlation id, used when
// a caller (CLI, hook shell script) doesn't supply its own.
func NewRequestID() string {
	return "req-" + uuid.NewString()
}

// NewViewerID returns a new opaque id for a WebSocket viewer connection.
func NewViewerID() string {
	return "viewer-" + uuid.NewString()
}
