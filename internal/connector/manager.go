package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/orbitdock/orbitdock/internal/approval"
	"github.com/orbitdock/orbitdock/internal/retry"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// Manager owns every live Bridge, keyed by session id. It is the connector
// package's analogue of the teacher's per-workspace gateway registry,
// simplified to a single map since OrbitDock runs one agent type per
// session rather than per-container.
type Manager struct {
	mu      sync.Mutex
	bridges map[string]*Bridge

	agentCommand []string
	backoff      retry.Config
}

// NewManager returns a Manager that spawns agentCommand for every session
// it attaches.
func NewManager(agentCommand []string) *Manager {
	return &Manager{
		bridges:      make(map[string]*Bridge),
		agentCommand: agentCommand,
		backoff:      retry.DefaultConfig(),
	}
}

// Attach starts a Bridge for sessionID and registers it, replacing any
// existing bridge for that id. deliver is wired to the owning
// sessionactor.Actor.Send so translated events land on that session's
// mailbox.
func (m *Manager) Attach(ctx context.Context, sessionID, cwd, previousACPSessionID string, grants *approval.Cache, deliver func(transition.Input) bool) (*Bridge, error) {
	bridge, err := Start(ctx, sessionID, Config{
		AgentCommand:         m.agentCommand,
		Cwd:                  cwd,
		PreviousACPSessionID: previousACPSessionID,
		GrantCache:           grants,
		Deliver:              deliver,
	})
	if err != nil {
		return nil, fmt.Errorf("connector: attach session %s: %w", sessionID, err)
	}

	m.mu.Lock()
	if old, ok := m.bridges[sessionID]; ok {
		old.Stop()
	}
	m.bridges[sessionID] = bridge
	m.mu.Unlock()

	return bridge, nil
}

// AttachWithRetry is Attach wrapped in the shared reconnect backoff. Its
// caller is the attach function bootstrap hands to ingest for POST
// /api/sessions, which rides out a transient agent-binary launch failure
// this way instead of failing the session outright.
func (m *Manager) AttachWithRetry(ctx context.Context, sessionID, cwd, previousACPSessionID string, grants *approval.Cache, deliver func(transition.Input) bool) (*Bridge, error) {
	var bridge *Bridge
	err := retry.Do(ctx, m.backoff, "connector.attach", func(ctx context.Context) error {
		b, err := m.Attach(ctx, sessionID, cwd, previousACPSessionID, grants, deliver)
		if err != nil {
			return err
		}
		bridge = b
		return nil
	})
	return bridge, err
}

// Dispatch routes a ConnectorCommand to the bridge for its session, if one
// is attached. A session with no connector yet (pure hook-driven, never
// upgraded to embedded-runtime) silently drops connector commands — they
// only arise from transition paths an embedded-runtime session can reach.
func (m *Manager) Dispatch(cmd transition.ConnectorCommand) {
	m.mu.Lock()
	bridge, ok := m.bridges[cmd.SessionID]
	m.mu.Unlock()
	if !ok {
		slog.Debug("connector: dispatch with no attached bridge", "session_id", cmd.SessionID, "kind", cmd.Kind)
		return
	}
	bridge.Dispatch(cmd)
}

// Detach stops and removes the bridge for sessionID, if any.
func (m *Manager) Detach(sessionID string) {
	m.mu.Lock()
	bridge, ok := m.bridges[sessionID]
	delete(m.bridges, sessionID)
	m.mu.Unlock()
	if ok {
		bridge.Stop()
	}
}

// StopAll tears down every attached bridge, for shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	bridges := make([]*Bridge, 0, len(m.bridges))
	for _, b := range m.bridges {
		bridges = append(bridges, b)
	}
	m.bridges = make(map[string]*Bridge)
	m.mu.Unlock()

	for _, b := range bridges {
		b.Stop()
	}
}
