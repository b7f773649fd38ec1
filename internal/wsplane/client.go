package wsplane

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single WriteMessage call may block.
const writeWait = 10 * time.Second

// Client is one connected WS viewer: a subscription set plus a bounded send
// queue drained by a dedicated write pump goroutine, directly generalizing
// the teacher's Viewer (sendCh/done/once) to carry a subscription set
// instead of belonging to exactly one SessionHost.
type Client struct {
	id   string
	conn *websocket.Conn

	queueSize      int
	lagThreshold   int
	heartbeatEvery time.Duration
	missLimit      int

	send chan []byte
	done chan struct{}
	once sync.Once

	mu            sync.Mutex
	subscriptions map[string]struct{}

	saturation  atomic.Int32
	pongPending atomic.Bool
}

func newClient(id string, conn *websocket.Conn, queueSize, lagThreshold int, heartbeatEvery time.Duration, missLimit int) *Client {
	return &Client{
		id:             id,
		conn:           conn,
		queueSize:      queueSize,
		lagThreshold:   lagThreshold,
		heartbeatEvery: heartbeatEvery,
		missLimit:      missLimit,
		send:           make(chan []byte, queueSize),
		done:           make(chan struct{}),
		subscriptions:  make(map[string]struct{}),
	}
}

// ID is the opaque viewer id, used as the registry/hub key.
func (c *Client) ID() string { return c.id }

func (c *Client) isSubscribed(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[sessionID]
	return ok
}

func (c *Client) addSubscription(sessionID string) {
	c.mu.Lock()
	c.subscriptions[sessionID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) removeSubscription(sessionID string) {
	c.mu.Lock()
	delete(c.subscriptions, sessionID)
	c.mu.Unlock()
}

func (c *Client) subscribedSessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.subscriptions))
	for id := range c.subscriptions {
		ids = append(ids, id)
	}
	return ids
}

// close is idempotent; it signals the write pump and read loop to stop and
// closes the underlying connection.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// closeLagged disconnects the client with a LAGGED reason, per spec §4.5:
// "if the queue stays saturated beyond a threshold the client is
// disconnected ... it may reconnect and resubscribe to get a fresh
// snapshot."
func (c *Client) closeLagged() {
	slog.Warn("wsplane: client lagged, closing", "client_id", c.id, "saturation", c.saturation.Load())
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "LAGGED"),
		time.Now().Add(5*time.Second),
	)
	c.close()
}

// sendSnapshot blocks briefly so the initial Snapshot on subscribe is never
// silently dropped by a momentarily saturated queue, mirroring the teacher's
// sendToViewerWithTimeout used for buffered replay.
func (c *Client) sendSnapshot(data []byte) {
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()
	select {
	case c.send <- data:
	case <-c.done:
	case <-timer.C:
		slog.Warn("wsplane: snapshot send timed out", "client_id", c.id)
	}
}

// sendDelta enqueues a broadcast-worthy delta with drop-oldest backpressure:
// if the queue is full, the oldest queued message is evicted and the send
// retried once. The evicted message is whichever is oldest, a queued
// Snapshot included. Repeated saturation increments a counter that
// closeLagged acts on; a sendDelta that succeeds without evicting resets it.
func (c *Client) sendDelta(data []byte) {
	if c.trySend(data) {
		c.saturation.Store(0)
		return
	}
	c.evictOldestAndRetry(data)
}

// sendPriority is for ack/error/pong messages: they matter more than a
// queued delta, so on saturation we evict to make room exactly like
// sendDelta, following the teacher's sendToViewerPriority.
func (c *Client) sendPriority(data []byte) {
	if c.trySend(data) {
		return
	}
	c.evictOldestAndRetry(data)
}

func (c *Client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return true // client is gone; nothing more to do, not a saturation event
	default:
		return false
	}
}

func (c *Client) evictOldestAndRetry(data []byte) {
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- data:
	case <-c.done:
		return
	default:
		slog.Warn("wsplane: client send queue saturated even after eviction", "client_id", c.id)
	}
	if c.saturation.Add(1) >= int32(c.lagThreshold) {
		c.closeLagged()
	}
}

// writePump drains the send queue to the socket. On any write error it
// closes done so the read loop unblocks immediately instead of waiting on a
// read deadline, matching the teacher's viewerWritePump.
func (c *Client) writePump() {
	defer c.close()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Warn("wsplane: client write failed", "client_id", c.id, "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// heartbeatLoop pings every heartbeatEvery and counts consecutive unanswered
// pings; missLimit consecutive misses closes the connection. This extends
// the teacher's single-deadline ping/pong (Gateway.Run) with an explicit
// miss counter, since spec §6 calls for "miss 3" rather than one timeout.
func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.heartbeatEvery)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-ticker.C:
			if c.pongPending.Load() {
				misses++
				if misses >= c.missLimit {
					slog.Warn("wsplane: client missed heartbeats, closing", "client_id", c.id, "misses", misses)
					c.closeLagged()
					return
				}
			} else {
				misses = 0
			}
			c.pongPending.Store(true)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) onPong() {
	c.pongPending.Store(false)
}
