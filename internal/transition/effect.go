package transition

import "github.com/orbitdock/orbitdock/internal/persistence"

// Effect is the sum type Transition returns alongside the new state.
// SessionActor executes these in a fixed order: Persist, then
// ConnectorCommand, then BroadcastDelta, then the client reply.
type Effect struct {
	Persist          *persistence.Cmd
	ConnectorCommand *ConnectorCommand
	BroadcastDelta   *Delta
	RejectWithError  *RejectWithError
}

// ConnectorCommandKind enumerates the outbound commands the connector turns
// into ACP RPCs.
type ConnectorCommandKind string

const (
	ConnCmdSendTurn       ConnectorCommandKind = "SendTurn"
	ConnCmdSubmitApproval ConnectorCommandKind = "SubmitApproval"
	ConnCmdInterrupt      ConnectorCommandKind = "Interrupt"
	ConnCmdFork           ConnectorCommandKind = "Fork"
	ConnCmdDisconnect     ConnectorCommandKind = "Disconnect"
)

// ConnectorCommand is one outbound instruction for the Connector to deliver
// to the embedded agent runtime.
type ConnectorCommand struct {
	Kind       ConnectorCommandKind
	SessionID  string
	Prompt     string
	ApprovalID string
	Decision   ApprovalDecision
}

// DeltaKind enumerates the broadcast messages the WebSocket plane fans out
// to subscribed clients.
type DeltaKind string

const (
	DeltaMessageAppended DeltaKind = "MessageAppended"
	DeltaMessageUpdated  DeltaKind = "MessageUpdated"
	DeltaSessionPatched  DeltaKind = "SessionPatched"
	DeltaApprovalRequested DeltaKind = "ApprovalRequested"
	DeltaApprovalResolved  DeltaKind = "ApprovalResolved"
	DeltaTurnDiff        DeltaKind = "TurnDiff"
	DeltaSessionEnded    DeltaKind = "SessionEnded"
)

// Delta is one broadcast-worthy change to a session, fanned out on the
// session's broadcast channel to every subscribed WS client.
type Delta struct {
	Kind      DeltaKind
	SessionID string
	Message   *MessageState
	Patch     map[string]any
	Approval  *PendingApproval
	TurnDiff  *persistence.TurnDiff
}

// RejectWithError is returned instead of any state change when a client
// command fails validation (e.g. a stale approval id).
type RejectWithError struct {
	ClientRequestID string
	Code            string
	Message         string
}
