package wsplane

import (
	"encoding/json"
	"fmt"

	"github.com/orbitdock/orbitdock/internal/transition"
)

// clientEnvelope is the shape of every message a WS client sends, per spec
// §6's three kinds: subscribe, unsubscribe, command.
type clientEnvelope struct {
	Kind      string       `json:"kind"`
	SessionID string       `json:"session_id"`
	RequestID string       `json:"request_id,omitempty"`
	Command   *wireCommand `json:"command,omitempty"`
}

// wireCommand mirrors transition.ClientCommand with JSON tags; Kind reuses
// the same ClientCommandKind string constants so no translation table is
// needed between wire and domain representations.
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
	Resume              *wireResumeOptions           `json:"resume,omitempty"`
	FromMessageSequence int64                        `json:"from_message_sequence,omitempty"`
}

type wireResumeOptions struct {
	Fork bool `json:"fork"`
}

func (w *wireCommand) toDomain() transition.ClientCommand {
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

// Outbound wire message shapes, one constructor each so every call site gets
// a consistently-shaped "type" discriminator.

type snapshotMessage struct {
	Type      string                  `json:"type"`
	SessionID string                  `json:"session_id"`
	State     transition.SessionState `json:"state"`
}

func marshalSnapshot(sessionID string, state transition.SessionState) []byte {
	data, err := json.Marshal(snapshotMessage{Type: "snapshot", SessionID: sessionID, State: state})
	if err != nil {
		return fallbackErrorJSON(err)
	}
	return data
}

type deltaMessage struct {
	Type      string                    `json:"type"`
	SessionID string                    `json:"session_id"`
	Kind      transition.DeltaKind      `json:"kind"`
	Message   *transition.MessageState  `json:"message,omitempty"`
	Patch     map[string]any            `json:"patch,omitempty"`
	Approval  *transition.PendingApproval `json:"approval,omitempty"`
}

func marshalDelta(d transition.Delta) []byte {
	data, err := json.Marshal(deltaMessage{
		Type:      "delta",
		SessionID: d.SessionID,
		Kind:      d.Kind,
		Message:   d.Message,
		Patch:     d.Patch,
		Approval:  d.Approval,
	})
	if err != nil {
		return fallbackErrorJSON(err)
	}
	return data
}

type ackMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

func marshalAck(requestID string) []byte {
	data, _ := json.Marshal(ackMessage{Type: "ack", RequestID: requestID})
	return data
}

type errorMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func marshalError(requestID, code, message string) []byte {
	data, _ := json.Marshal(errorMessage{Type: "error", RequestID: requestID, Code: code, Message: message})
	return data
}

type pongMessage struct {
	Type string `json:"type"`
}

func marshalPong() []byte {
	data, _ := json.Marshal(pongMessage{Type: "pong"})
	return data
}

func fallbackErrorJSON(err error) []byte {
	data, _ := json.Marshal(errorMessage{Type: "error", Code: "ENCODE_FAILED", Message: fmt.Sprintf("failed to encode message: %v", err)})
	return data
}
