package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/orbitdock/orbitdock/internal/transition"
)

// maxHookBodyBytes bounds a single hook POST; hook payloads are small JSON
// objects, never file uploads.
const maxHookBodyBytes = 1 << 20

// bootstrapGate is a single atomic flag the hook handler checks on every
// request: false routes to the spool, true routes to live dispatch. It's
// its own tiny type rather than a bare field so MarkBootstrapComplete reads
// clearly at the call site in bootstrap.
type bootstrapGate struct {
	complete atomic.Bool
}

// errMalformedHook marks a parse failure that should produce a 400 (live
// request) or move a spooled line to the dead-letter file (drain).
var errMalformedHook = errors.New("malformed hook payload")

// handleHook implements POST /api/hook (spec §4.5, §6).
func (h *Handler) handleHook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxHookBodyBytes {
		writeError(w, http.StatusBadRequest, "request body too large")
		return
	}

	if !h.bootstrap.complete.Load() {
		if err := h.spool.Append(body); err != nil {
			slog.Error("ingest: failed to spool hook event", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to spool event")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.dispatchHookBody(body); err != nil {
		if errors.Is(err, errMalformedHook) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("ingest: hook dispatch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dispatchHookBody parses one hook payload and delivers it to the owning
// actor, creating a new actor on session_start if none is registered yet
// (spec §4.5: "creating the session on session_start"). A recognized-but-
// unknown sub-discriminator is logged and dropped per spec §9's "Unknown is
// logged with the raw JSON and discarded" rule, not treated as an error.
func (h *Handler) dispatchHookBody(body []byte) error {
	var env hookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errors.Join(errMalformedHook, err)
	}
	if env.SessionID == "" {
		return errors.Join(errMalformedHook, errors.New("session_id is required"))
	}

	event, ok := env.toHookEvent()
	if !ok {
		slog.Warn("ingest: unrecognized hook event, discarding", "type", env.Type, "event", env.Event, "phase", env.Phase, "raw", string(body))
		return nil
	}

	handle, found := h.registry.Lookup(env.SessionID)
	if !found {
		if env.Type != hookTypeSessionStart {
			slog.Warn("ingest: hook event for unknown session, discarding", "session_id", env.SessionID, "type", env.Type)
			return nil
		}
		created := h.newActor(env.SessionID)
		registered, ok := h.registry.Create(env.SessionID, created)
		if !ok {
			// Lost a create race against a concurrent session_start replay;
			// the registry already holds the winner, so stop our orphan.
			created.Stop()
		}
		handle = registered
	}

	session, ok := handle.(SessionHandle)
	if !ok {
		return errors.New("registered handle does not accept hook input")
	}
	session.Send(transition.Input{Hook: &event})
	return nil
}
