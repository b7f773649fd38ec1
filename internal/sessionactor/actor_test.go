package sessionactor

import (
	"sync"
	"testing"
	"time"

	"github.com/orbitdock/orbitdock/internal/transition"
)

func baseState(id string) transition.SessionState {
	return transition.SessionState{ID: id, Status: transition.StatusActive, WorkStatus: transition.WorkWorking}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestActorAppliesHookAndPublishesSnapshot(t *testing.T) {
	a := New(baseState("s1"), Deps{})
	defer a.Stop()

	a.Send(transition.Input{Hook: &transition.HookEvent{Kind: transition.HookPromptSubmit, Payload: transition.HookPayload{Content: "hi"}}})

	waitFor(t, func() bool { return len(a.Snapshot().Messages) == 1 })
	if got := a.Snapshot().Messages[0].Content; got != "hi" {
		t.Fatalf("Content = %q, want hi", got)
	}
}

func TestActorBroadcastsHookDelta(t *testing.T) {
	var mu sync.Mutex
	var deltas []transition.Delta
	var cmds []any

	deps := Deps{
		Broadcast: func(d transition.Delta) {
			mu.Lock()
			defer mu.Unlock()
			deltas = append(deltas, d)
		},
	}
	_ = cmds
	a := New(baseState("s1"), deps)
	defer a.Stop()

	a.Send(transition.Input{Hook: &transition.HookEvent{Kind: transition.HookPromptSubmit, Payload: transition.HookPayload{Content: "hi"}}})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(deltas) > 0
	})
}

func TestActorRepliesOnceForClientCommand(t *testing.T) {
	var mu sync.Mutex
	var replies []Reply

	deps := Deps{
		Reply: func(r Reply) {
			mu.Lock()
			defer mu.Unlock()
			replies = append(replies, r)
		},
	}
	a := New(baseState("s1"), deps)
	defer a.Stop()

	a.Send(transition.Input{
		ClientRequestID: "req-1",
		Client:          &transition.ClientCommand{Kind: transition.CmdSendPrompt, Prompt: "hello"},
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(replies) > 0
	})

	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 1 {
		t.Fatalf("expected exactly one reply, got %d: %+v", len(replies), replies)
	}
	if replies[0].ClientRequestID != "req-1" || replies[0].Err != nil {
		t.Fatalf("unexpected reply: %+v", replies[0])
	}
}

func TestActorRejectOnStaleApprovalRepliesWithError(t *testing.T) {
	var mu sync.Mutex
	var replies []Reply

	state := baseState("s1")
	state.WorkStatus = transition.WorkPermission
	state.Pending = &transition.PendingApproval{ApprovalID: "appr-1", Kind: transition.ApprovalExec}

	deps := Deps{
		Reply: func(r Reply) {
			mu.Lock()
			defer mu.Unlock()
			replies = append(replies, r)
		},
	}
	a := New(state, deps)
	defer a.Stop()

	a.Send(transition.Input{
		ClientRequestID: "req-2",
		Client:          &transition.ClientCommand{Kind: transition.CmdApprove, ApprovalID: "wrong-id", Decision: transition.DecisionApproved},
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(replies) > 0
	})

	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 1 || replies[0].Err == nil {
		t.Fatalf("expected one error reply, got %+v", replies)
	}
	if replies[0].Err.Code != "STALE_APPROVAL" {
		t.Fatalf("Code = %q, want STALE_APPROVAL", replies[0].Err.Code)
	}
}

func TestStopDrainsMailboxBeforeExit(t *testing.T) {
	var mu sync.Mutex
	count := 0
	deps := Deps{
		Reply: func(Reply) {
			mu.Lock()
			defer mu.Unlock()
			count++
		},
	}
	a := New(baseState("s1"), deps)

	for i := 0; i < 10; i++ {
		a.Send(transition.Input{ClientRequestID: "r", Client: &transition.ClientCommand{Kind: transition.CmdSendPrompt, Prompt: "x"}})
	}
	a.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count != 10 {
		t.Fatalf("expected all 10 queued inputs drained before Stop returned, got %d", count)
	}
}

func TestIsEndedReflectsStatus(t *testing.T) {
	a := New(baseState("s1"), Deps{})
	defer a.Stop()

	if a.IsEnded() {
		t.Fatal("expected fresh active session to not be ended")
	}

	a.Send(transition.Input{Hook: &transition.HookEvent{Kind: transition.HookSessionEnd}})
	waitFor(t, func() bool { return a.IsEnded() })
}
