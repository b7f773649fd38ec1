package ingest

import (
	"encoding/json"
	"time"

	"github.com/orbitdock/orbitdock/internal/transition"
)

// Wire-level type discriminators for POST /api/hook (spec §6).
const (
	hookTypeSessionStart   = "claude_session_start"
	hookTypeSessionEnd     = "claude_session_end"
	hookTypeStatusEvent    = "claude_status_event"
	hookTypeToolEvent      = "claude_tool_event"
	hookTypeSubagentEvent  = "claude_subagent_event"
)

// Inner "event" sub-discriminators for claude_status_event and
// claude_subagent_event. Spec §9 notes the exact set varies by provider
// version; anything not in this list becomes Unknown{raw} and is discarded.
const (
	statusEventPromptSubmit = "user_prompt_submit"
	statusEventStop         = "stop"
	statusEventNotification = "notification"
	statusEventPreCompact   = "pre_compact"

	subagentEventStart = "start"
	subagentEventStop  = "stop"
)

// Inner "phase" sub-discriminator for claude_tool_event.
const (
	toolPhasePre         = "pre"
	toolPhasePost        = "post"
	toolPhasePostFailure = "post_failure"
)

// hookEnvelope is the union of every field any hook payload variant might
// carry (spec §9: "Dynamic JSON payloads... parse into a tagged union of
// known event variants"). ToolInput is kept as raw JSON since its shape is
// tool-specific and only needs to round-trip to storage, never be
// interpreted here.
type hookEnvelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	CWD       string          `json:"cwd"`
	Branch    string          `json:"branch"`
	Model     string          `json:"model"`
	Reason    string          `json:"reason"`
	Event     string          `json:"event"`
	Phase     string          `json:"phase"`
	Prompt    string          `json:"prompt"`
	Content   string          `json:"content"`
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
	ToolOutput     string     `json:"tool_output"`
	ToolDurationMS int64      `json:"tool_duration_ms"`
	IsError        bool       `json:"is_error"`
}

// toHookEvent maps the wire envelope to a transition.HookEvent. ok is false
// when the type (or inner sub-discriminator) is not recognized, signaling
// the caller to log-and-discard rather than dispatch or error.
func (e hookEnvelope) toHookEvent() (transition.HookEvent, bool) {
	switch e.Type {
	case hookTypeSessionStart:
		return transition.HookEvent{
			Kind: transition.HookSessionStart,
			Payload: transition.HookPayload{
				ProjectPath: e.CWD,
				Branch:      e.Branch,
				Model:       e.Model,
			},
		}, true

	case hookTypeSessionEnd:
		return transition.HookEvent{
			Kind:    transition.HookSessionEnd,
			Payload: transition.HookPayload{Content: e.Reason},
		}, true

	case hookTypeStatusEvent:
		return e.toStatusEvent()

	case hookTypeToolEvent:
		return e.toToolEvent()

	case hookTypeSubagentEvent:
		return e.toSubagentEvent()

	default:
		return transition.HookEvent{}, false
	}
}

func (e hookEnvelope) toStatusEvent() (transition.HookEvent, bool) {
	var kind transition.HookEventKind
	switch e.Event {
	case statusEventPromptSubmit:
		kind = transition.HookPromptSubmit
	case statusEventStop:
		kind = transition.HookStop
	case statusEventNotification:
		kind = transition.HookNotification
	case statusEventPreCompact:
		kind = transition.HookPreCompact
	default:
		return transition.HookEvent{}, false
	}
	return transition.HookEvent{
		Kind:    kind,
		Payload: transition.HookPayload{Content: e.Prompt},
	}, true
}

func (e hookEnvelope) toToolEvent() (transition.HookEvent, bool) {
	var kind transition.HookEventKind
	switch e.Phase {
	case toolPhasePre:
		kind = transition.HookPreTool
	case toolPhasePost:
		kind = transition.HookPostTool
	case toolPhasePostFailure:
		kind = transition.HookPostToolFailure
	default:
		return transition.HookEvent{}, false
	}
	return transition.HookEvent{
		Kind: kind,
		Payload: transition.HookPayload{
			ToolName:     e.ToolName,
			ToolInput:    string(e.ToolInput),
			ToolOutput:   e.ToolOutput,
			ToolDuration: time.Duration(e.ToolDurationMS) * time.Millisecond,
			IsError:      e.IsError,
		},
	}, true
}

func (e hookEnvelope) toSubagentEvent() (transition.HookEvent, bool) {
	var kind transition.HookEventKind
	switch e.Event {
	case subagentEventStart:
		kind = transition.HookSubagentStart
	case subagentEventStop:
		kind = transition.HookSubagentStop
	default:
		return transition.HookEvent{}, false
	}
	return transition.HookEvent{
		Kind:    kind,
		Payload: transition.HookPayload{Content: e.Content},
	}, true
}
