package connector

import (
	"testing"

	"github.com/orbitdock/orbitdock/internal/transition"
)

func TestDispatchWithNoAttachedBridgeIsNoop(t *testing.T) {
	m := NewManager([]string{"true"})
	// Should not panic even though no bridge is registered for this session.
	m.Dispatch(transition.ConnectorCommand{Kind: transition.ConnCmdSendTurn, SessionID: "sess-unknown"})
}

func TestDetachUnknownSessionIsNoop(t *testing.T) {
	m := NewManager([]string{"true"})
	m.Detach("sess-unknown")
}

func TestStopAllOnEmptyManagerIsNoop(t *testing.T) {
	m := NewManager([]string{"true"})
	m.StopAll()
}
