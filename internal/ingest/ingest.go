// Package ingest implements OrbitDock's HTTP surface: the hook lifecycle
// endpoint with offline spooling, HTTP control commands for clients that
// can't hold a WebSocket open (the MCP bridge use case), review-comment
// CRUD, and a status endpoint. Handler construction and route registration
// follow the teacher's internal/server route-handler idiom: one handler
// func per route, registered on a stdlib http.ServeMux, with small
// writeJSON/writeError helpers instead of a router dependency.
package ingest

import (
	"encoding/json"
	"net/http"

	"github.com/orbitdock/orbitdock/internal/persistence"
	"github.com/orbitdock/orbitdock/internal/registry"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// Registry is the subset of *registry.Registry the ingest handlers need:
// looking up a session's actor, and idempotently creating one for a
// hook-driven session_start.
type Registry interface {
	Lookup(id string) (registry.Handle, bool)
	Create(id string, handle registry.Handle) (registry.Handle, bool)
	IterActive(fn func(id string, h registry.Handle))
}

// SessionHandle is a registry.Handle that can also accept mailbox input.
// *sessionactor.Actor satisfies this; tests may supply a fake. It mirrors
// wsplane.SessionHandle exactly but is declared separately so ingest and
// wsplane stay independent packages neither importing the other.
type SessionHandle interface {
	registry.Handle
	Send(input transition.Input) bool
}

// Handler serves /api/hook, the HTTP control-command endpoints, review
// comments, and /api/status.
type Handler struct {
	mux *http.ServeMux

	registry     Registry
	newActor     NewActorFunc
	attachDirect AttachDirectFunc
	store        *persistence.Store
	spool        *Spool
	bootstrap    *bootstrapGate
}

// NewActorFunc constructs and registers a fresh actor for a session id seen
// for the first time by a hook's session_start event. Bootstrap supplies
// the closure so ingest never has to know about sessionactor.Deps wiring.
type NewActorFunc func(sessionID string) registry.Handle

// NewHandler builds a Handler. spoolPath/deadSpoolPath come from
// config.Config's SpoolPath/DeadSpoolPath. attachDirect may be nil, in which
// case POST /api/sessions (direct-integration session creation) responds
// 503 — bootstrap only wires it when a connector agent command is configured.
func NewHandler(reg Registry, newActor NewActorFunc, attachDirect AttachDirectFunc, store *persistence.Store, spoolPath, deadSpoolPath string) (*Handler, error) {
	spool, err := newSpool(spoolPath, deadSpoolPath)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		mux:          http.NewServeMux(),
		registry:     reg,
		newActor:     newActor,
		attachDirect: attachDirect,
		store:        store,
		spool:        spool,
		bootstrap:    &bootstrapGate{},
	}
	h.routes()
	return h, nil
}

func (h *Handler) routes() {
	h.mux.HandleFunc("POST /api/hook", h.handleHook)
	h.mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	h.mux.HandleFunc("POST /api/sessions/{id}/command", h.handleCommand)
	h.mux.HandleFunc("POST /api/sessions/{id}/review-comments", h.handleCreateReviewComment)
	h.mux.HandleFunc("GET /api/sessions/{id}/review-comments", h.handleListReviewComments)
	h.mux.HandleFunc("PATCH /api/sessions/{id}/review-comments/{commentID}", h.handlePatchReviewComment)
	h.mux.HandleFunc("GET /api/status", h.handleStatus)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// MarkBootstrapComplete flips the gate that routes hook POSTs to live
// dispatch instead of the spool. Bootstrap calls this once restore and
// spool drain have both finished.
func (h *Handler) MarkBootstrapComplete() {
	h.bootstrap.complete.Store(true)
}

// DrainSpool replays every line spooled before bootstrap completed, in
// order, through the same dispatch path a live hook POST uses. Call this
// once, before MarkBootstrapComplete, per spec §4.7's "drain hook spool"
// step.
func (h *Handler) DrainSpool() error {
	return h.spool.Drain(h.dispatchHookBody)
}

// writeJSON writes a JSON response, following the teacher's routes.go
// helper.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error body, following the teacher's routes.go
// helper.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
