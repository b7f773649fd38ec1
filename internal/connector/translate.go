package connector

import (
	acpsdk "github.com/coder/acp-go-sdk"

	"github.com/orbitdock/orbitdock/internal/transition"
)

// translateNotification converts one ACP SessionNotification into zero or
// more ConnectorEvents, following the same per-field dispatch the teacher's
// ExtractMessages uses (user chunk / agent chunk / tool call / tool call
// update), generalized to OrbitDock's typed event Kinds instead of a flat
// chat-message row.
func translateNotification(notif acpsdk.SessionNotification) []transition.ConnectorEvent {
	u := notif.Update
	var events []transition.ConnectorEvent

	if u.UserMessageChunk != nil {
		if text := blockText(u.UserMessageChunk.Content); text != "" {
			events = append(events, transition.ConnectorEvent{
				Kind:    transition.ConnItemDelta,
				Payload: transition.ConnectorPayload{ItemType: transition.MessageUser, Content: text},
			})
		}
	}

	if u.AgentMessageChunk != nil {
		if text := blockText(u.AgentMessageChunk.Content); text != "" {
			events = append(events, transition.ConnectorEvent{
				Kind:    transition.ConnItemDelta,
				Payload: transition.ConnectorPayload{ItemType: transition.MessageAssistant, Content: text},
			})
		}
	}

	// Thought chunks and plan updates are intentionally not translated here,
	// matching the teacher's ExtractMessages: they would flood the session's
	// visible item log without adding anything actionable.

	if u.ToolCall != nil {
		events = append(events, transition.ConnectorEvent{
			Kind: transition.ConnItemCreated,
			Payload: transition.ConnectorPayload{
				ItemType:  transition.MessageTool,
				ToolName:  string(u.ToolCall.Kind),
				ToolInput: toolCallContentText(u.ToolCall.Content),
			},
		})
	}

	if u.ToolCallUpdate != nil {
		content := toolCallContentText(u.ToolCallUpdate.Content)
		kind := transition.ConnItemDelta
		toolName := ""
		if u.ToolCallUpdate.Kind != nil {
			toolName = string(*u.ToolCallUpdate.Kind)
		}
		if u.ToolCallUpdate.Status != nil && string(*u.ToolCallUpdate.Status) == "completed" {
			kind = transition.ConnItemCompleted
		}
		events = append(events, transition.ConnectorEvent{
			Kind: kind,
			Payload: transition.ConnectorPayload{
				ItemType: transition.MessageToolResult,
				ToolName: toolName,
				Content:  content,
			},
		})
	}

	return events
}

func blockText(block acpsdk.ContentBlock) string {
	if block.Text != nil {
		return block.Text.Text
	}
	return ""
}

func toolCallContentText(contents []acpsdk.ToolCallContent) string {
	var text string
	for _, c := range contents {
		if c.Content != nil && c.Content.Content.Text != nil {
			if text != "" {
				text += "\n"
			}
			text += c.Content.Content.Text.Text
		}
		if c.Diff != nil {
			if text != "" {
				text += "\n"
			}
			text += "diff: " + c.Diff.Path
		}
	}
	return text
}
