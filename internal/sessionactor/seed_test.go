package sessionactor

import (
	"testing"

	"github.com/orbitdock/orbitdock/internal/persistence"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// TestFromRowSeedsMessagesAndSequence confirms a restored session gets its
// message log and NextMessageSequence seeded directly from storage rather
// than starting empty.
func TestFromRowSeedsMessagesAndSequence(t *testing.T) {
	row := persistence.Session{
		ID:     "s1",
		Status: string(transition.StatusActive),
	}
	messages := []persistence.Message{
		{ID: "m1", Sequence: 0, Type: string(transition.MessageUser), Content: "hi"},
		{ID: "m2", Sequence: 1, Type: string(transition.MessageAssistant), Content: "hello"},
	}

	state := FromRow(row, messages)

	if len(state.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(state.Messages))
	}
	if state.NextMessageSequence != 2 {
		t.Fatalf("next sequence = %d, want 2", state.NextMessageSequence)
	}
}

// TestFromRowRestoresPendingApproval confirms a pending question round-trips
// with the right approval kind.
func TestFromRowRestoresPendingApproval(t *testing.T) {
	row := persistence.Session{
		ID:                "s1",
		PendingApprovalID: "appr-1",
		PendingQuestion:   "proceed?",
	}

	state := FromRow(row, nil)

	if state.Pending == nil {
		t.Fatal("expected a pending approval")
	}
	if state.Pending.Kind != transition.ApprovalQuestion {
		t.Fatalf("kind = %q, want Question", state.Pending.Kind)
	}
}

// TestFromRowRestoresExecApproval confirms a pending approval with no
// question text restores as ApprovalExec, the only other kind that persists
// across restarts today.
func TestFromRowRestoresExecApproval(t *testing.T) {
	row := persistence.Session{
		ID:                "s1",
		PendingApprovalID: "appr-1",
		PendingToolName:   "rm -rf /tmp/x",
	}

	state := FromRow(row, nil)

	if state.Pending == nil {
		t.Fatal("expected a pending approval")
	}
	if state.Pending.Kind != transition.ApprovalExec {
		t.Fatalf("kind = %q, want Exec", state.Pending.Kind)
	}
}
