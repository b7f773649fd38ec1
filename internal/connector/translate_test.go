package connector

import (
	"testing"

	acpsdk "github.com/coder/acp-go-sdk"

	"github.com/orbitdock/orbitdock/internal/transition"
)

func TestTranslateNotificationUserMessageChunk(t *testing.T) {
	notif := acpsdk.SessionNotification{
		SessionId: "sess-1",
		Update: acpsdk.SessionUpdate{
			UserMessageChunk: &acpsdk.SessionUpdateUserMessageChunk{
				Content: acpsdk.ContentBlock{Text: &acpsdk.ContentBlockText{Text: "hello world"}},
			},
		},
	}

	events := translateNotification(notif)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != transition.ConnItemDelta || events[0].Payload.ItemType != transition.MessageUser {
		t.Fatalf("unexpected event: %+v", events[0])
	}
	if events[0].Payload.Content != "hello world" {
		t.Fatalf("Content = %q, want hello world", events[0].Payload.Content)
	}
}

func TestTranslateNotificationAgentMessageChunk(t *testing.T) {
	notif := acpsdk.SessionNotification{
		Update: acpsdk.SessionUpdate{
			AgentMessageChunk: &acpsdk.SessionUpdateAgentMessageChunk{
				Content: acpsdk.ContentBlock{Text: &acpsdk.ContentBlockText{Text: "I can help"}},
			},
		},
	}

	events := translateNotification(notif)
	if len(events) != 1 || events[0].Payload.ItemType != transition.MessageAssistant {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestTranslateNotificationToolCall(t *testing.T) {
	notif := acpsdk.SessionNotification{
		Update: acpsdk.SessionUpdate{
			ToolCall: &acpsdk.SessionUpdateToolCall{
				Kind: acpsdk.ToolKindRead,
				Content: []acpsdk.ToolCallContent{
					{Content: &acpsdk.ToolCallContentContent{Content: acpsdk.ContentBlock{Text: &acpsdk.ContentBlockText{Text: "file contents"}}}},
				},
			},
		},
	}

	events := translateNotification(notif)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != transition.ConnItemCreated || events[0].Payload.ItemType != transition.MessageTool {
		t.Fatalf("unexpected event: %+v", events[0])
	}
	if events[0].Payload.ToolInput != "file contents" {
		t.Fatalf("ToolInput = %q, want file contents", events[0].Payload.ToolInput)
	}
}

func TestTranslateNotificationToolCallUpdateCompleted(t *testing.T) {
	var status acpsdk.ToolCallStatus = "completed"
	notif := acpsdk.SessionNotification{
		Update: acpsdk.SessionUpdate{
			ToolCallUpdate: &acpsdk.SessionUpdateToolCallUpdate{
				Status: &status,
			},
		},
	}

	events := translateNotification(notif)
	if len(events) != 1 || events[0].Kind != transition.ConnItemCompleted {
		t.Fatalf("expected a completed event, got %+v", events)
	}
}

func TestTranslateNotificationEmptyUpdateProducesNoEvents(t *testing.T) {
	events := translateNotification(acpsdk.SessionNotification{})
	if len(events) != 0 {
		t.Fatalf("expected no events for an empty update, got %d", len(events))
	}
}

func TestOptionSetKeyStableForSameOptions(t *testing.T) {
	opts := []acpsdk.PermissionOption{{OptionId: "allow-once"}, {OptionId: "reject-once"}}
	if optionSetKey(opts) != optionSetKey(opts) {
		t.Fatal("expected optionSetKey to be stable for the same input")
	}
	if optionSetKey(opts) == optionSetKey(nil) {
		t.Fatal("expected distinct keys for distinct option sets")
	}
}
