// Package sessionactor runs one goroutine per session, applying
// transition.Transition to each Input in order and publishing the result
// atomically for lock-free reads. It is the direct generalization of the
// teacher's SessionHost (agent state behind mu, viewers behind viewerMu,
// replay buffer behind bufMu) collapsed onto a single snapshot plus one
// broadcast fan-out, since the Connector owns the agent-process bookkeeping
// the teacher keeps inline.
package sessionactor

import (
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/orbitdock/orbitdock/internal/ids"
	"github.com/orbitdock/orbitdock/internal/persistence"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// mailboxSize bounds each session's queue of pending inputs. Once that many
// are waiting, Send drops further inputs (and returns false) until the
// actor catches up.
const mailboxSize = 4096

// Reply is how the actor answers a client command that carried a request
// id: either a plain ack or a RejectWithError, delivered to whichever
// wsplane/ingest client issued the command.
type Reply struct {
	ClientRequestID string
	Err             *transition.RejectWithError
}

// Deps bundles everything an Actor needs to turn an Effect into action.
// Dispatch and Broadcast are nil-safe no-ops when a session has no attached
// connector or no subscribed clients yet.
type Deps struct {
	Store       *persistence.Store
	AutoApprove transition.AutoApprove
	Basename    func(path string) string

	// Dispatch delivers a ConnectorCommand effect to this session's
	// connector bridge, if one is attached.
	Dispatch func(transition.ConnectorCommand)

	// Broadcast fans a Delta out to every WS client subscribed to this
	// session.
	Broadcast func(transition.Delta)

	// Reply delivers a client-command outcome back to whichever client
	// issued it, keyed by ClientRequestID.
	Reply func(Reply)
}

// Actor owns one session's state machine. Its zero value is not usable;
// construct with New.
type Actor struct {
	id       string
	mailbox  chan transition.Input
	snapshot atomic.Pointer[transition.SessionState]
	deps     Deps
	stop     chan struct{}
	stopped  atomic.Bool
	done     chan struct{}
}

// New starts an Actor seeded with initial (either a fresh session or one
// restored from Persistence) and returns it already running.
func New(initial transition.SessionState, deps Deps) *Actor {
	a := &Actor{
		id:      initial.ID,
		mailbox: make(chan transition.Input, mailboxSize),
		deps:    deps,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	a.snapshot.Store(&initial)
	go a.run()
	return a
}

// ID implements registry.Handle.
func (a *Actor) ID() string { return a.id }

// LastActivity implements registry.Handle.
func (a *Actor) LastActivity() time.Time {
	return a.snapshot.Load().LastActivityAt
}

// IsEnded implements registry.Handle.
func (a *Actor) IsEnded() bool {
	return a.snapshot.Load().Status == transition.StatusEnded
}

// Snapshot returns the current published state, safe to call concurrently
// from any goroutine (the read path spec §4.2 calls lock-free).
func (a *Actor) Snapshot() transition.SessionState {
	return *a.snapshot.Load()
}

// Send enqueues input for processing. It never blocks the caller on a full
// mailbox; callers needing delivery guarantees should check the returned
// bool and surface a backpressure error upstream.
func (a *Actor) Send(input transition.Input) bool {
	select {
	case a.mailbox <- input:
		return true
	default:
		slog.Warn("session mailbox full, dropping input", "session_id", a.id)
		return false
	}
}

// Stop asks the actor's goroutine to exit after draining whatever is
// already queued. Safe to call more than once.
func (a *Actor) Stop() {
	if a.stopped.CompareAndSwap(false, true) {
		close(a.stop)
	}
	<-a.done
}

func (a *Actor) run() {
	defer close(a.done)
	for {
		select {
		case input := <-a.mailbox:
			a.apply(input)
		case <-a.stop:
			// Drain whatever arrived before Stop without blocking further.
			for {
				select {
				case input := <-a.mailbox:
					a.apply(input)
				default:
					return
				}
			}
		}
	}
}

func (a *Actor) apply(input transition.Input) {
	now := time.Now()
	genIDs := transition.GeneratedIDs{
		ApprovalID:   ids.NewApprovalID(),
		MessageID:    ids.NewMessageID(),
		NewSessionID: ids.NewSessionID(),
	}

	current := a.Snapshot()
	next, effects := transition.Transition(current, input, now, genIDs, a.deps.AutoApprove)
	a.snapshot.Store(&next)

	// Run every Persist first, then every ConnectorCommand, then every
	// BroadcastDelta, keeping the transition's order within each group.
	rank := func(e transition.Effect) int {
		switch {
		case e.Persist != nil:
			return 0
		case e.ConnectorCommand != nil:
			return 1
		case e.BroadcastDelta != nil:
			return 2
		}
		return 3
	}
	sort.SliceStable(effects, func(i, j int) bool { return rank(effects[i]) < rank(effects[j]) })

	var reject *transition.RejectWithError
	for _, eff := range effects {
		if r := a.execute(eff); r != nil {
			reject = r
		}
	}

	if a.deps.Reply == nil {
		return
	}
	switch {
	case reject != nil:
		a.deps.Reply(Reply{ClientRequestID: reject.ClientRequestID, Err: reject})
	case input.ClientRequestID != "":
		a.deps.Reply(Reply{ClientRequestID: input.ClientRequestID})
	}
}

// execute runs one Effect in the mandated order: persist enqueue, connector
// command, delta broadcast. Each step is independently nil-safe so a
// headless session (no connector attached yet, no subscribed viewers) still
// persists. It returns the effect's RejectWithError, if any, for apply to
// fold into the single reply it sends per Input.
func (a *Actor) execute(eff transition.Effect) *transition.RejectWithError {
	if eff.Persist != nil && a.deps.Store != nil {
		a.deps.Store.Enqueue(*eff.Persist)
	}
	if eff.ConnectorCommand != nil && a.deps.Dispatch != nil {
		a.deps.Dispatch(*eff.ConnectorCommand)
	}
	if eff.BroadcastDelta != nil && a.deps.Broadcast != nil {
		a.deps.Broadcast(*eff.BroadcastDelta)
	}
	return eff.RejectWithError
}
