// Package apperr defines the error kinds shared across OrbitDock's
// components (spec §7): which ones are retryable at the caller layer, which
// ones close a connection, and which one is fatal at boot.
package apperr

import "errors"

// Kind classifies an error the way spec §7 enumerates them.
type Kind string

const (
	// TransientIO signals a retryable I/O failure (disk, socket).
	TransientIO Kind = "transient_io"
	// PersistBatchFailed signals a dropped persistence batch; the caller
	// continues, the batch is logged for reconcile on next write.
	PersistBatchFailed Kind = "persist_batch_failed"
	// ProtocolViolation signals a connector or client broke the protocol;
	// the offending connection is closed, the actor is never poisoned.
	ProtocolViolation Kind = "protocol_violation"
	// StaleApproval signals a decision referencing an approval id that no
	// longer matches the session's pending approval.
	StaleApproval Kind = "stale_approval"
	// NotFound signals an unknown session id.
	NotFound Kind = "not_found"
	// Conflict signals a duplicate create.
	Conflict Kind = "conflict"
	// Fatal signals a boot-time failure (migration) that must exit non-zero.
	Fatal Kind = "fatal"
)

// Error wraps an underlying error with a Kind and a stable external Code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with the given kind, stable code, and message.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an *Error that carries an underlying cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// CodeOf extracts the stable external code of err, or "internal_error" if
// err isn't an *Error — callers must never leak raw error text externally
// unless debug mode is set.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

var (
	// ErrStaleApproval is returned when a client Approve/AnswerQuestion
	// references an approval id that no longer matches the pending one.
	ErrStaleApproval = New(StaleApproval, "STALE_APPROVAL", "approval id does not match the session's pending approval")
	// ErrSessionNotFound is returned when a command targets an unknown session.
	ErrSessionNotFound = New(NotFound, "SESSION_NOT_FOUND", "session not found")
	// ErrSessionExists is returned when CreateSession targets an existing id.
	ErrSessionExists = New(Conflict, "SESSION_EXISTS", "session already exists")
)
