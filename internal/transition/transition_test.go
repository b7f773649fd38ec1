package transition

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/orbitdock/orbitdock/internal/persistence"
)

func baseState(id string) SessionState {
	return SessionState{
		ID:              id,
		Provider:        "embedded-runtime",
		IntegrationMode: "direct",
		Status:          StatusActive,
		WorkStatus:      WorkWaiting,
		AttentionReason: AttentionNone,
	}
}

func noAutoApprove(string) bool { return false }
func allAutoApprove(string) bool { return true }

func TestPreToolAutoApprovableSkipsApproval(t *testing.T) {
	state := baseState("sess-1")
	input := Input{Hook: &HookEvent{Kind: HookPreTool, Payload: HookPayload{ToolName: "read_file"}}}

	next, effects := Transition(state, input, time.Now(), GeneratedIDs{}, allAutoApprove)

	if next.Pending != nil {
		t.Fatalf("expected no pending approval for auto-approvable tool, got %+v", next.Pending)
	}
	if next.WorkStatus != WorkWorking {
		t.Errorf("WorkStatus = %v, want Working", next.WorkStatus)
	}
	// WorkStatus changed, so this must still persist (spec invariant 4):
	// restart must reproduce Working, not whatever was last written.
	if len(effects) != 1 || effects[0].Persist == nil {
		t.Fatalf("expected exactly one Persist effect for auto-approved pre_tool, got %+v", effects)
	}
}

func TestPreToolRequiringApprovalSetsPendingWithoutID(t *testing.T) {
	state := baseState("sess-1")
	input := Input{Hook: &HookEvent{Kind: HookPreTool, Payload: HookPayload{ToolName: "rm", ToolInput: "rm -rf /tmp/x"}}}

	next, effects := Transition(state, input, time.Now(), GeneratedIDs{}, noAutoApprove)

	if next.Pending == nil {
		t.Fatal("expected pending approval to be set")
	}
	if next.Pending.ApprovalID != "" {
		t.Errorf("expected no approval id for hook-driven pre_tool, got %q", next.Pending.ApprovalID)
	}
	if next.AttentionReason != AttentionAwaitingPermission {
		t.Errorf("AttentionReason = %v, want AwaitingPermission", next.AttentionReason)
	}
	if next.WorkStatus != WorkPermission {
		t.Errorf("WorkStatus = %v, want Permission", next.WorkStatus)
	}
	if len(effects) == 0 {
		t.Error("expected at least one Persist effect")
	}
}

// TestActivityOnlyHookEventsStillPersist covers spec §4.1's general rule
// that any transition changing persistence-relevant state (here,
// LastActivityAt) must emit at least one Persist effect, even when no other
// field changes — otherwise a restart would revert LastActivityAt to
// whatever was last written.
func TestActivityOnlyHookEventsStillPersist(t *testing.T) {
	for _, kind := range []HookEventKind{HookNotification, HookPreCompact, HookSubagentStart, HookSubagentStop} {
		state := baseState("sess-1")
		input := Input{Hook: &HookEvent{Kind: kind}}
		_, effects := Transition(state, input, time.Now(), GeneratedIDs{}, nil)

		if len(effects) != 1 || effects[0].Persist == nil {
			t.Errorf("%v: expected exactly one Persist effect, got %+v", kind, effects)
		}
	}
}

// TestActivityOnlyClientCommandsStillPersist is the ClientCommand analogue
// of TestActivityOnlyHookEventsStillPersist.
func TestActivityOnlyClientCommandsStillPersist(t *testing.T) {
	state := baseState("sess-1")
	input := Input{Client: &ClientCommand{Kind: CmdCompact}}
	_, effects := Transition(state, input, time.Now(), GeneratedIDs{}, nil)
	if len(effects) != 1 || effects[0].Persist == nil {
		t.Errorf("CmdCompact: expected exactly one Persist effect, got %+v", effects)
	}

	state2 := baseState("sess-1")
	input2 := Input{Client: &ClientCommand{Kind: CmdInterrupt}}
	_, effects2 := Transition(state2, input2, time.Now(), GeneratedIDs{}, nil)

	var sawPersist, sawInterrupt bool
	for _, e := range effects2 {
		if e.Persist != nil {
			sawPersist = true
		}
		if e.ConnectorCommand != nil && e.ConnectorCommand.Kind == ConnCmdInterrupt {
			sawInterrupt = true
		}
	}
	if !sawPersist {
		t.Error("CmdInterrupt: expected a Persist effect alongside the connector Interrupt command")
	}
	if !sawInterrupt {
		t.Error("CmdInterrupt: expected a ConnCmdInterrupt effect")
	}
}

func TestConnectorApprovalRequestedAssignsID(t *testing.T) {
	state := baseState("sess-1")
	input := Input{Connector: &ConnectorEvent{Kind: ConnApprovalRequested, Payload: ConnectorPayload{
		ApprovalKind: ApprovalExec, Command: "rm -rf /",
	}}}

	next, effects := Transition(state, input, time.Now(), GeneratedIDs{ApprovalID: "appr-123"}, nil)

	if next.Pending == nil || next.Pending.ApprovalID != "appr-123" {
		t.Fatalf("expected pending approval with id appr-123, got %+v", next.Pending)
	}
	if next.AttentionReason != AttentionAwaitingPermission {
		t.Errorf("AttentionReason = %v, want AwaitingPermission", next.AttentionReason)
	}

	var sawDelta bool
	for _, e := range effects {
		if e.BroadcastDelta != nil && e.BroadcastDelta.Kind == DeltaApprovalRequested {
			sawDelta = true
		}
	}
	if !sawDelta {
		t.Error("expected an ApprovalRequested broadcast delta")
	}
}

func TestApproveMatchingIDClearsPending(t *testing.T) {
	state := baseState("sess-1")
	state.WorkStatus = WorkPermission
	state.AttentionReason = AttentionAwaitingPermission
	state.Pending = &PendingApproval{ApprovalID: "appr-1", Kind: ApprovalExec, Command: "ls"}

	input := Input{Client: &ClientCommand{Kind: CmdApprove, ApprovalID: "appr-1", Decision: DecisionApproved}}
	next, effects := Transition(state, input, time.Now(), GeneratedIDs{}, nil)

	if next.Pending != nil {
		t.Fatal("expected pending cleared after matching approve")
	}
	if next.AttentionReason != AttentionNone {
		t.Errorf("AttentionReason = %v, want None", next.AttentionReason)
	}

	var sawSubmit, sawPersistDecision bool
	for _, e := range effects {
		if e.ConnectorCommand != nil && e.ConnectorCommand.Kind == ConnCmdSubmitApproval {
			sawSubmit = true
		}
		if e.Persist != nil {
			if _, ok := (*e.Persist).(persistence.RecordApprovalDecisionCmd); ok {
				sawPersistDecision = true
			}
		}
	}
	if !sawSubmit {
		t.Error("expected ConnectorCommand SubmitApproval effect")
	}
	if !sawPersistDecision {
		t.Error("expected at least one Persist effect")
	}
}

func TestDenyKeepsWorkStatusUnlessInterrupt(t *testing.T) {
	state := baseState("sess-1")
	state.WorkStatus = WorkPermission
	state.Pending = &PendingApproval{ApprovalID: "appr-1", Kind: ApprovalExec}

	input := Input{Client: &ClientCommand{Kind: CmdApprove, ApprovalID: "appr-1", Decision: DecisionDenied}}
	next, _ := Transition(state, input, time.Now(), GeneratedIDs{}, nil)

	if next.WorkStatus != WorkPermission {
		t.Errorf("WorkStatus = %v, want unchanged Permission after deny without interrupt", next.WorkStatus)
	}

	state2 := baseState("sess-1")
	state2.WorkStatus = WorkPermission
	state2.Pending = &PendingApproval{ApprovalID: "appr-1", Kind: ApprovalExec}
	input2 := Input{Client: &ClientCommand{Kind: CmdApprove, ApprovalID: "appr-1", Decision: DecisionDenied, Interrupt: true}}
	_, effects2 := Transition(state2, input2, time.Now(), GeneratedIDs{}, nil)

	var sawInterrupt bool
	for _, e := range effects2 {
		if e.ConnectorCommand != nil && e.ConnectorCommand.Kind == ConnCmdInterrupt {
			sawInterrupt = true
		}
	}
	if !sawInterrupt {
		t.Error("expected Interrupt effect when deny carries interrupt=true")
	}
}

func TestApproveMismatchedIDRejectsWithoutStateChange(t *testing.T) {
	state := baseState("sess-1")
	state.Pending = &PendingApproval{ApprovalID: "appr-1", Kind: ApprovalExec}

	input := Input{ClientRequestID: "req-1", Client: &ClientCommand{Kind: CmdApprove, ApprovalID: "appr-wrong", Decision: DecisionApproved}}
	next, effects := Transition(state, input, time.Now(), GeneratedIDs{}, nil)

	if next.Pending == nil || next.Pending.ApprovalID != "appr-1" {
		t.Fatal("expected pending approval untouched on mismatched id")
	}
	if len(effects) != 1 || effects[0].RejectWithError == nil {
		t.Fatalf("expected exactly one RejectWithError effect, got %+v", effects)
	}
	if effects[0].RejectWithError.Code != "STALE_APPROVAL" {
		t.Errorf("Code = %q, want STALE_APPROVAL", effects[0].RejectWithError.Code)
	}
	if effects[0].RejectWithError.ClientRequestID != "req-1" {
		t.Errorf("ClientRequestID = %q, want req-1", effects[0].RejectWithError.ClientRequestID)
	}
}

func TestItemDeltaMergesAndIsIdempotent(t *testing.T) {
	state := baseState("sess-1")
	state.Messages = []MessageState{{ID: "msg-1", Content: "hello"}}

	input := Input{Connector: &ConnectorEvent{Kind: ConnItemDelta, Payload: ConnectorPayload{ItemID: "msg-1", Content: " world"}}}
	next, effects := Transition(state, input, time.Now(), GeneratedIDs{}, nil)

	if next.Messages[0].Content != "hello world" {
		t.Fatalf("Content = %q, want merged", next.Messages[0].Content)
	}
	if len(next.Messages) != 1 {
		t.Fatalf("expected no new message created, got %d", len(next.Messages))
	}
	if len(effects) == 0 {
		t.Error("expected persist/broadcast effects for a real delta")
	}

	// Replaying the exact same non-empty chunk again must be a no-op: spec
	// §8 requires "a ConnectorEvent::ItemDelta delivered twice with
	// identical content is a no-op after the first." A naive
	// existing+delta==merged check would miss this and concatenate the
	// chunk twice ("hello world world").
	replay := Input{Connector: &ConnectorEvent{Kind: ConnItemDelta, Payload: ConnectorPayload{ItemID: "msg-1", Content: " world"}}}
	stillSame, replayEffects := Transition(next, replay, time.Now(), GeneratedIDs{}, nil)
	if stillSame.Messages[0].Content != "hello world" {
		t.Fatalf("content mutated on replayed identical delta: %q", stillSame.Messages[0].Content)
	}
	if len(replayEffects) != 0 {
		t.Errorf("expected no effects replaying an identical non-empty delta, got %d", len(replayEffects))
	}

	// A genuinely new, different chunk right after must still apply.
	fresh := Input{Connector: &ConnectorEvent{Kind: ConnItemDelta, Payload: ConnectorPayload{ItemID: "msg-1", Content: "!"}}}
	withFresh, freshEffects := Transition(stillSame, fresh, time.Now(), GeneratedIDs{}, nil)
	if withFresh.Messages[0].Content != "hello world!" {
		t.Fatalf("Content = %q, want hello world!", withFresh.Messages[0].Content)
	}
	if len(freshEffects) == 0 {
		t.Error("expected effects for a genuinely new delta chunk")
	}

	// An empty delta is also a no-op.
	empty := Input{Connector: &ConnectorEvent{Kind: ConnItemDelta, Payload: ConnectorPayload{ItemID: "msg-1", Content: ""}}}
	stillFresh, emptyEffects := Transition(withFresh, empty, time.Now(), GeneratedIDs{}, nil)
	if stillFresh.Messages[0].Content != "hello world!" {
		t.Fatalf("content mutated on empty delta replay: %q", stillFresh.Messages[0].Content)
	}
	if len(emptyEffects) != 0 {
		t.Errorf("expected no effects for an empty delta no-op, got %d", len(emptyEffects))
	}
}

func TestTurnCompletedSetsAwaitingReplyAndIncrementsTurn(t *testing.T) {
	state := baseState("sess-1")
	state.WorkStatus = WorkWorking
	state.TurnCount = 2

	input := Input{Connector: &ConnectorEvent{Kind: ConnTurnCompleted, Payload: ConnectorPayload{
		Usage: TokenUsage{InputTokens: 10, OutputTokens: 20},
	}}}
	next, effects := Transition(state, input, time.Now(), GeneratedIDs{}, nil)

	if next.AttentionReason != AttentionAwaitingReply {
		t.Errorf("AttentionReason = %v, want AwaitingReply", next.AttentionReason)
	}
	if next.WorkStatus != WorkWaiting {
		t.Errorf("WorkStatus = %v, want Waiting", next.WorkStatus)
	}
	if next.TurnCount != 3 {
		t.Errorf("TurnCount = %d, want 3", next.TurnCount)
	}

	var sawTurnDiff bool
	for _, e := range effects {
		if e.BroadcastDelta != nil && e.BroadcastDelta.Kind == DeltaTurnDiff {
			sawTurnDiff = true
		}
	}
	if !sawTurnDiff {
		t.Error("expected a TurnDiff broadcast delta")
	}
}

func TestSessionEndClearsApprovalAsAbort(t *testing.T) {
	state := baseState("sess-1")
	state.Pending = &PendingApproval{ApprovalID: "appr-1", Kind: ApprovalExec}

	input := Input{Client: &ClientCommand{Kind: CmdClose}}
	next, effects := Transition(state, input, time.Now(), GeneratedIDs{}, nil)

	if next.Status != StatusEnded {
		t.Errorf("Status = %v, want Ended", next.Status)
	}
	if next.Pending != nil {
		t.Error("expected pending approval cleared on session close")
	}

	var sawAbort bool
	for _, e := range effects {
		if e.Persist == nil {
			continue
		}
		if cmd, ok := (*e.Persist).(persistence.RecordApprovalDecisionCmd); ok {
			if cmd.Row.Decision != string(DecisionAbort) {
				t.Errorf("Decision = %q, want abort", cmd.Row.Decision)
			}
			sawAbort = true
		}
	}
	if !sawAbort {
		t.Error("expected a RecordApprovalDecisionCmd effect recording the abort")
	}
}

func TestResumeOnEndedSessionCreatesForkedSibling(t *testing.T) {
	state := baseState("sess-1")
	state.Status = StatusEnded
	state.Messages = []MessageState{
		{ID: "m1", Sequence: 0, Content: "hi"},
		{ID: "m2", Sequence: 1, Content: "there"},
	}
	state.NextMessageSequence = 2

	input := Input{Client: &ClientCommand{Kind: CmdResume, Resume: &ResumeOptions{Fork: true}}}
	next, effects := Transition(state, input, time.Now(), GeneratedIDs{NewSessionID: "sess-2"}, nil)

	if next.ID != "sess-2" {
		t.Fatalf("ID = %q, want sess-2", next.ID)
	}
	if next.ForkedFrom != "sess-1" {
		t.Errorf("ForkedFrom = %q, want sess-1", next.ForkedFrom)
	}
	if next.Status != StatusActive {
		t.Errorf("Status = %v, want Active", next.Status)
	}
	// Resume-as-fork carries the whole conversation, unlike CmdFork which
	// branches from one message.
	if len(next.Messages) != 2 || next.Messages[1].Content != "there" {
		t.Fatalf("expected full message history copied, got %+v", next.Messages)
	}
	if next.NextMessageSequence != 2 {
		t.Errorf("NextMessageSequence = %d, want 2", next.NextMessageSequence)
	}

	var appended int
	for _, e := range effects {
		if e.Persist == nil {
			continue
		}
		if cmd, ok := (*e.Persist).(persistence.AppendMessageCmd); ok {
			appended++
			if cmd.Message.SessionID != "sess-2" {
				t.Errorf("copied message persisted under %q, want sess-2", cmd.Message.SessionID)
			}
		}
	}
	if appended != 2 {
		t.Errorf("expected 2 AppendMessageCmd effects for the copied history, got %d", appended)
	}
}

func TestForkCopiesMessagesUpToSequenceAndForwardsToConnector(t *testing.T) {
	state := baseState("sess-1")
	state.Messages = []MessageState{
		{ID: "m1", Sequence: 0, Content: "hi"},
		{ID: "m2", Sequence: 1, Content: "there"},
		{ID: "m3", Sequence: 2, Content: "ignored"},
	}
	state.NextMessageSequence = 3

	input := Input{Client: &ClientCommand{Kind: CmdFork, FromMessageSequence: 1}}
	next, effects := Transition(state, input, time.Now(), GeneratedIDs{NewSessionID: "sess-1b"}, nil)

	if next.ID != "sess-1b" {
		t.Fatalf("ID = %q, want sess-1b", next.ID)
	}
	if next.ForkedFrom != "sess-1" {
		t.Errorf("ForkedFrom = %q, want sess-1", next.ForkedFrom)
	}
	if next.Status != StatusActive {
		t.Errorf("Status = %v, want Active", next.Status)
	}
	if next.Pending != nil {
		t.Error("expected empty approval state on the forked sibling")
	}
	if len(next.Messages) != 2 {
		t.Fatalf("expected messages up to sequence 1 copied, got %+v", next.Messages)
	}
	if next.Messages[0].Content != "hi" || next.Messages[1].Content != "there" {
		t.Fatalf("expected content-identical copies, got %+v", next.Messages)
	}
	if next.NextMessageSequence != 2 {
		t.Errorf("NextMessageSequence = %d, want 2", next.NextMessageSequence)
	}

	var appended int
	var sawConnectorFork bool
	for _, e := range effects {
		if e.Persist != nil {
			if cmd, ok := (*e.Persist).(persistence.AppendMessageCmd); ok {
				appended++
				if cmd.Message.SessionID != "sess-1b" {
					t.Errorf("copied message persisted under %q, want sess-1b", cmd.Message.SessionID)
				}
			}
		}
		if e.ConnectorCommand != nil && e.ConnectorCommand.Kind == ConnCmdFork {
			sawConnectorFork = true
			if e.ConnectorCommand.SessionID != "sess-1b" {
				t.Errorf("ConnectorCommand.SessionID = %q, want sess-1b", e.ConnectorCommand.SessionID)
			}
		}
	}
	if appended != 2 {
		t.Errorf("expected 2 AppendMessageCmd effects for the copied prefix, got %d", appended)
	}
	if !sawConnectorFork {
		t.Error("expected a ConnCmdFork effect directed at the new sibling")
	}
}

func TestResumeOnEndedSessionReopensSameIDWithoutFork(t *testing.T) {
	state := baseState("sess-1")
	state.Status = StatusEnded

	input := Input{Client: &ClientCommand{Kind: CmdResume, Resume: &ResumeOptions{Fork: false}}}
	next, _ := Transition(state, input, time.Now(), GeneratedIDs{NewSessionID: "sess-2"}, nil)

	if next.ID != "sess-1" {
		t.Fatalf("ID = %q, want unchanged sess-1", next.ID)
	}
	if next.Status != StatusActive {
		t.Errorf("Status = %v, want Active", next.Status)
	}
}

func TestConcurrentApprovalRequestedForceResolvesStaleAsAbort(t *testing.T) {
	state := baseState("sess-1")
	state.Pending = &PendingApproval{ApprovalID: "appr-old", Kind: ApprovalExec, Command: "ls"}

	input := Input{Connector: &ConnectorEvent{Kind: ConnApprovalRequested, Payload: ConnectorPayload{
		ApprovalKind: ApprovalPatch, Diff: "+x",
	}}}
	next, effects := Transition(state, input, time.Now(), GeneratedIDs{ApprovalID: "appr-new"}, nil)

	if next.Pending == nil || next.Pending.ApprovalID != "appr-new" {
		t.Fatalf("expected new pending appr-new, got %+v", next.Pending)
	}

	var sawStaleResolved bool
	for _, e := range effects {
		if e.Persist == nil {
			continue
		}
		if cmd, ok := (*e.Persist).(persistence.RecordApprovalDecisionCmd); ok {
			if cmd.Row.ID != "appr-old" || cmd.Row.Decision != string(DecisionAbort) {
				t.Errorf("stale approval recorded as %q/%q, want appr-old/abort", cmd.Row.ID, cmd.Row.Decision)
			}
			sawStaleResolved = true
		}
	}
	if !sawStaleResolved {
		t.Error("expected a persist effect recording the stale approval as resolved")
	}
}

func TestDisplayNameResolutionOrder(t *testing.T) {
	basename := func(p string) string { return filepath.Base(p) }

	cases := []struct {
		name  string
		state SessionState
		want  string
	}{
		{"summary wins", SessionState{ID: "abcdefgh1234", Summary: "Fix the bug", CustomName: "custom", FirstPrompt: "prompt", ProjectPath: "/a/b"}, "Fix the bug"},
		{"custom_name next", SessionState{ID: "abcdefgh1234", CustomName: "custom", FirstPrompt: "prompt", ProjectPath: "/a/b"}, "custom"},
		{"first_prompt next", SessionState{ID: "abcdefgh1234", FirstPrompt: "prompt", ProjectPath: "/a/b"}, "prompt"},
		{"project basename next", SessionState{ID: "abcdefgh1234", ProjectPath: "/a/b"}, "b"},
		{"fallback to id", SessionState{ID: "abcdefgh1234"}, "session-abcdefgh"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.state.DisplayName(basename)
			if got != tc.want {
				t.Errorf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}
