package wsplane

import (
	"sync"

	"github.com/orbitdock/orbitdock/internal/registry"
	"github.com/orbitdock/orbitdock/internal/sessionactor"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// SessionHandle is what the Hub needs from a registered session beyond
// registry.Handle's lifecycle methods: a readable snapshot (for the
// subscribe-time Snapshot message) and a way to enqueue a client command.
// *sessionactor.Actor satisfies this; tests may supply a fake.
type SessionHandle interface {
	registry.Handle
	Snapshot() transition.SessionState
	Send(transition.Input) bool
}

// Lookup is the subset of *registry.Registry the Hub depends on, narrowed
// so tests can substitute a fake without standing up a real Registry.
type Lookup interface {
	Lookup(id string) (registry.Handle, bool)
}

// Hub owns every connected Client and routes two kinds of traffic into
// them: session Broadcasts (wired as every SessionActor's Deps.Broadcast)
// and client-command Replies (wired as Deps.Reply), fanned out to whichever
// client is subscribed or waiting on a given request id. It is the
// multi-session, multi-client generalization of the teacher's per-session
// viewer map (SessionHost.viewers).
type Hub struct {
	registry Lookup

	mu      sync.RWMutex
	clients map[string]*Client
	subs    map[string]map[string]*Client // session id -> client id -> client
	pending map[string]*Client            // request id -> client awaiting ack/error
}

// NewHub returns a Hub that resolves subscribe-time snapshots through reg.
func NewHub(reg Lookup) *Hub {
	return &Hub{
		registry: reg,
		clients:  make(map[string]*Client),
		subs:     make(map[string]map[string]*Client),
		pending:  make(map[string]*Client),
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	for sessionID, byClient := range h.subs {
		if _, ok := byClient[c.id]; ok {
			delete(byClient, c.id)
			if len(byClient) == 0 {
				delete(h.subs, sessionID)
			}
		}
	}
	for reqID, pendingClient := range h.pending {
		if pendingClient == c {
			delete(h.pending, reqID)
		}
	}
	h.mu.Unlock()
}

// subscribe adds c to sessionID's fan-out set and sends it a fresh
// Snapshot, per spec §4.5 rule 1: "Snapshot{session_id, state} on
// subscribe." A subscribe to an unknown session silently sends nothing
// further than what the caller already got from command validation.
func (h *Hub) subscribe(c *Client, sessionID string) {
	handle, ok := h.registry.Lookup(sessionID)
	if !ok {
		return
	}
	session, ok := handle.(SessionHandle)
	if !ok {
		return
	}

	h.mu.Lock()
	byClient, ok := h.subs[sessionID]
	if !ok {
		byClient = make(map[string]*Client)
		h.subs[sessionID] = byClient
	}
	byClient[c.id] = c
	h.mu.Unlock()

	c.addSubscription(sessionID)
	c.sendSnapshot(marshalSnapshot(sessionID, session.Snapshot()))
}

func (h *Hub) unsubscribe(c *Client, sessionID string) {
	h.mu.Lock()
	if byClient, ok := h.subs[sessionID]; ok {
		delete(byClient, c.id)
		if len(byClient) == 0 {
			delete(h.subs, sessionID)
		}
	}
	h.mu.Unlock()
	c.removeSubscription(sessionID)
}

// trackRequest remembers which client issued requestID so DeliverReply can
// route the eventual ack/error back to it.
func (h *Hub) trackRequest(requestID string, c *Client) {
	if requestID == "" {
		return
	}
	h.mu.Lock()
	h.pending[requestID] = c
	h.mu.Unlock()
}

// Broadcast fans delta out to every client subscribed to its session. Wired
// as sessionactor.Deps.Broadcast for every actor; must never block the
// calling actor goroutine, which Client.sendDelta guarantees.
func (h *Hub) Broadcast(delta transition.Delta) {
	data := marshalDelta(delta)

	h.mu.RLock()
	byClient := h.subs[delta.SessionID]
	targets := make([]*Client, 0, len(byClient))
	for _, c := range byClient {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.sendDelta(data)
	}
}

// DeliverReply routes a SessionActor's Reply to whichever client issued the
// originating request id. Wired as sessionactor.Deps.Reply for every actor.
func (h *Hub) DeliverReply(r sessionactor.Reply) {
	h.mu.Lock()
	c, ok := h.pending[r.ClientRequestID]
	delete(h.pending, r.ClientRequestID)
	h.mu.Unlock()
	if !ok {
		return
	}

	if r.Err != nil {
		c.sendPriority(marshalError(r.ClientRequestID, r.Err.Code, r.Err.Message))
		return
	}
	c.sendPriority(marshalAck(r.ClientRequestID))
}
