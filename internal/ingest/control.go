package ingest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/orbitdock/orbitdock/internal/apperr"
	"github.com/orbitdock/orbitdock/internal/ids"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// wireCommand mirrors transition.ClientCommand's JSON shape. It is kept as
// its own small type (rather than importing wsplane's unexported
// equivalent) so ingest and wsplane remain independent packages that both
// happen to speak the same command vocabulary over their respective
// transports, per spec §4.5: "same command set as WS."
type wireCommand struct {
	Kind                transition.ClientCommandKind `json:"kind"`
	Prompt              string                       `json:"prompt,omitempty"`
	ApprovalID          string                       `json:"approval_id,omitempty"`
	Decision            transition.ApprovalDecision  `json:"decision,omitempty"`
	Reason              string                       `json:"reason,omitempty"`
	Interrupt           bool                         `json:"interrupt,omitempty"`
	Answer              string                       `json:"answer,omitempty"`
	PermissionMode      string                       `json:"permission_mode,omitempty"`
	NewName             string                       `json:"new_name,omitempty"`
	FromMessageSequence int64                        `json:"from_message_sequence,omitempty"`
	Resume              *struct {
		Fork bool `json:"fork"`
	} `json:"resume,omitempty"`
}

func (w wireCommand) toDomain() transition.ClientCommand {
	cmd := transition.ClientCommand{
		Kind:                w.Kind,
		Prompt:              w.Prompt,
		ApprovalID:          w.ApprovalID,
		Decision:            w.Decision,
		Reason:              w.Reason,
		Interrupt:           w.Interrupt,
		Answer:              w.Answer,
		PermissionMode:      w.PermissionMode,
		NewName:             w.NewName,
		FromMessageSequence: w.FromMessageSequence,
	}
	if w.Resume != nil {
		cmd.Resume = &transition.ResumeOptions{Fork: w.Resume.Fork}
	}
	return cmd
}

// handleCommand implements POST /api/sessions/{id}/command, the HTTP
// control surface spec §4.5 calls out for "the MCP bridge use case (same
// command set as WS; not enumerated here)". Unlike the WS plane, there is
// no open connection to push an async Ack/Error back on, so this endpoint
// enqueues the command and replies 202 immediately; callers observe the
// outcome the same way any other WS subscriber would, via a Snapshot/Delta
// on /ws. A synchronous reply would need a cross-transport reply router
// shared with wsplane.Hub, which the spec's own "not enumerated here" scope
// note doesn't ask for — recorded in DESIGN.md as a deliberate
// simplification.
func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var wire wireCommand
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "invalid command body: "+err.Error())
		return
	}

	handle, found := h.registry.Lookup(sessionID)
	if !found {
		writeError(w, http.StatusNotFound, apperr.ErrSessionNotFound.Message)
		return
	}
	session, ok := handle.(SessionHandle)
	if !ok {
		writeError(w, http.StatusInternalServerError, "session handle does not support commands")
		return
	}

	cmd := wire.toDomain()
	requestID := ids.NewRequestID()
	if !session.Send(transition.Input{ClientRequestID: requestID, Client: &cmd}) {
		slog.Warn("ingest: session mailbox full, command dropped", "session_id", sessionID, "request_id", requestID)
		writeError(w, http.StatusServiceUnavailable, "session mailbox is full, try again")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID, "status": "accepted"})
}
