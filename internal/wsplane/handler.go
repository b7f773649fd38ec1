// Package wsplane implements the /ws subscription and control-command
// protocol: client lifecycle, per-client bounded send queues with
// drop-oldest backpressure, and snapshot+delta fan-out. It generalizes the
// teacher's per-session Viewer/Gateway pair (one gateway bridging exactly
// one WebSocket to one SessionHost) into a single endpoint serving many
// sessions, since OrbitDock's UI subscribes to whichever sessions it has
// open rather than attaching to one agent process per connection.
package wsplane

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orbitdock/orbitdock/internal/apperr"
	"github.com/orbitdock/orbitdock/internal/ids"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// Handler serves the /ws endpoint.
type Handler struct {
	hub      *Hub
	registry Lookup

	queueSize      int
	lagThreshold   int
	heartbeatEvery time.Duration
	missLimit      int

	upgrader websocket.Upgrader
}

// NewHandler builds a Handler. queueSize/lagThreshold/heartbeatEvery/
// missLimit mirror config.Config's WSClientQueueSize/WSLagThreshold/
// WSHeartbeatInterval/WSHeartbeatMissLimit.
func NewHandler(hub *Hub, reg Lookup, queueSize, lagThreshold int, heartbeatEvery time.Duration, missLimit int) *Handler {
	return &Handler{
		hub:            hub,
		registry:       reg,
		queueSize:      queueSize,
		lagThreshold:   lagThreshold,
		heartbeatEvery: heartbeatEvery,
		missLimit:      missLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// OrbitDock is a local, single-user server (spec §1); the UI is
			// served from the same origin the binary listens on, so the
			// default same-origin check is relaxed the way the teacher's
			// createUpgrader does for its local dev path.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request to a WebSocket and runs the client's read
// loop until it disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("wsplane: upgrade failed", "error", err)
		return
	}

	client := newClient(ids.NewViewerID(), conn, h.queueSize, h.lagThreshold, h.heartbeatEvery, h.missLimit)
	conn.SetPongHandler(func(string) error {
		client.onPong()
		return nil
	})

	h.hub.registerClient(client)
	go client.writePump()
	go client.heartbeatLoop()

	h.readLoop(client)

	h.hub.unregisterClient(client)
	for _, sessionID := range client.subscribedSessions() {
		h.hub.unsubscribe(client, sessionID)
	}
	client.close()
}

func (h *Handler) readLoop(client *Client) {
	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var env clientEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			client.sendPriority(marshalError("", "BAD_REQUEST", "malformed message: "+err.Error()))
			continue
		}

		switch env.Kind {
		case "subscribe":
			h.hub.subscribe(client, env.SessionID)
		case "unsubscribe":
			h.hub.unsubscribe(client, env.SessionID)
		case "command":
			h.handleCommand(client, env)
		default:
			client.sendPriority(marshalError(env.RequestID, "BAD_REQUEST", "unknown message kind: "+env.Kind))
		}
	}
}

func (h *Handler) handleCommand(client *Client, env clientEnvelope) {
	if env.Command == nil {
		client.sendPriority(marshalError(env.RequestID, "BAD_REQUEST", "command message missing command body"))
		return
	}

	handle, ok := h.registry.Lookup(env.SessionID)
	if !ok {
		client.sendPriority(marshalError(env.RequestID, apperr.ErrSessionNotFound.Code, apperr.ErrSessionNotFound.Message))
		return
	}
	session, ok := handle.(SessionHandle)
	if !ok {
		client.sendPriority(marshalError(env.RequestID, "internal_error", "session handle does not support commands"))
		return
	}

	cmd := env.Command.toDomain()
	input := transition.Input{ClientRequestID: env.RequestID, Client: &cmd}

	if env.RequestID != "" {
		h.hub.trackRequest(env.RequestID, client)
	}
	if !session.Send(input) {
		client.sendPriority(marshalError(env.RequestID, "backpressure", "session mailbox is full, try again"))
	}
}
