package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/orbitdock/orbitdock/internal/ids"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// AttachDirectFunc starts the embedded-runtime connector for a freshly
// created session, wiring its translated events to deliver (the actor's
// Send). Bootstrap supplies the closure so ingest never imports
// internal/connector or internal/approval directly, the same decoupling
// NewActorFunc gives the hook-driven path.
type AttachDirectFunc func(ctx context.Context, sessionID, cwd, previousACPSessionID string, deliver func(transition.Input) bool) error

type createSessionRequest struct {
	ProjectPath          string `json:"project_path"`
	Branch               string `json:"branch"`
	Cwd                  string `json:"cwd"`
	PreviousACPSessionID string `json:"previous_acp_session_id"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// handleCreateSession implements POST /api/sessions: the direct-integration
// counterpart to a hook's session_start, for a UI client that wants
// OrbitDock to drive an embedded agent runtime (spec §1's "embedded agent
// runtime delivering bidirectional events via an in-process connector")
// rather than just observe one. It seeds the new actor through the same
// HookSessionStart reducer path a hook-driven session_start uses, tagged
// ProviderEmbeddedRuntime/IntegrationDirect, then attaches the connector
// bridge — a supplemented feature per SPEC_FULL.md, since spec.md specifies
// the connector's event/command interface but not how a direct session
// starts.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if h.attachDirect == nil {
		writeError(w, http.StatusServiceUnavailable, "direct integration is not configured on this server")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req createSessionRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}
	if req.Cwd == "" {
		req.Cwd = req.ProjectPath
	}

	sessionID := ids.NewSessionID()
	created := h.newActor(sessionID)
	handle, ok := h.registry.Create(sessionID, created)
	if !ok {
		// ids.NewSessionID collisions are not supposed to happen; stop the
		// orphan defensively rather than leak it.
		created.Stop()
		writeError(w, http.StatusConflict, "session id collision, retry")
		return
	}
	session, ok := handle.(SessionHandle)
	if !ok {
		writeError(w, http.StatusInternalServerError, "registered handle does not accept input")
		return
	}

	session.Send(transition.Input{Hook: &transition.HookEvent{
		Kind: transition.HookSessionStart,
		Payload: transition.HookPayload{
			ProjectPath:     req.ProjectPath,
			Branch:          req.Branch,
			Provider:        transition.ProviderEmbeddedRuntime,
			IntegrationMode: transition.IntegrationDirect,
		},
	}})

	if err := h.attachDirect(r.Context(), sessionID, req.Cwd, req.PreviousACPSessionID, session.Send); err != nil {
		slog.Error("ingest: failed to attach connector for direct session", "session_id", sessionID, "error", err)
		session.Send(transition.Input{Hook: &transition.HookEvent{Kind: transition.HookSessionEnd}})
		writeError(w, http.StatusBadGateway, "failed to start embedded agent runtime")
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sessionID})
}
