// Package transition implements OrbitDock's pure session state machine:
// (SessionState, Input, now) -> (SessionState, []Effect). Nothing in this
// package touches a clock, a socket, or a database; every timestamp and
// generated id crosses the boundary as a parameter.
package transition

import "time"

// Status is the coarse lifecycle phase of a session.
type Status string

const (
	StatusActive Status = "Active"
	StatusIdle   Status = "Idle"
	StatusEnded  Status = "Ended"
)

// WorkStatus describes what the agent is currently doing.
type WorkStatus string

const (
	WorkWorking    WorkStatus = "Working"
	WorkWaiting    WorkStatus = "Waiting"
	WorkPermission WorkStatus = "Permission"
	WorkUnknown    WorkStatus = "Unknown"
)

// AttentionReason describes why a session currently needs user attention,
// if at all.
type AttentionReason string

const (
	AttentionNone               AttentionReason = "None"
	AttentionAwaitingReply      AttentionReason = "AwaitingReply"
	AttentionAwaitingPermission AttentionReason = "AwaitingPermission"
	AttentionAwaitingQuestion   AttentionReason = "AwaitingQuestion"
)

// ApprovalKind classifies what a pending approval is asking permission for.
type ApprovalKind string

const (
	ApprovalExec     ApprovalKind = "Exec"
	ApprovalPatch    ApprovalKind = "Patch"
	ApprovalQuestion ApprovalKind = "Question"
)

// ApprovalDecision is the outcome recorded for a resolved approval.
type ApprovalDecision string

const (
	DecisionApproved           ApprovalDecision = "approved"
	DecisionApprovedForSession ApprovalDecision = "approved_for_session"
	DecisionApprovedAlways     ApprovalDecision = "approved_always"
	DecisionDenied             ApprovalDecision = "denied"
	DecisionAbort              ApprovalDecision = "abort"
)

// MessageType enumerates the kinds of entries in a session's message log.
type MessageType string

const (
	MessageUser       MessageType = "User"
	MessageAssistant  MessageType = "Assistant"
	MessageTool       MessageType = "Tool"
	MessageToolResult MessageType = "ToolResult"
	MessageThinking   MessageType = "Thinking"
	MessageSteer      MessageType = "Steer"
	MessageShell      MessageType = "Shell"
	MessageSystem     MessageType = "System"
)

// TokenUsage is a point-in-time token/cost snapshot.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// MessageState is the in-memory shape of one message in the session's log.
type MessageState struct {
	ID           string
	Sequence     int64
	Type         MessageType
	Content      string
	ToolName     string
	ToolInput    string
	ToolOutput   string
	ToolDuration time.Duration
	Usage        TokenUsage
	Images       []string
	Thinking     string
	IsInProgress bool
	Timestamp    time.Time

	// lastDeltaContent is the most recently applied ConnItemDelta chunk for
	// this message, unexported so it never crosses the wire in a Snapshot or
	// Delta. It is how transitionConnector recognizes a replayed delta
	// carrying the exact same content as a no-op instead of concatenating it
	// a second time.
	lastDeltaContent string
}

// PendingApproval is the single in-flight approval/question a session may
// have outstanding at once (invariant: at most one pending approval).
type PendingApproval struct {
	ApprovalID        string
	Kind              ApprovalKind
	Command           string
	Diff              string
	Question          string
	ProposedAmendment string
}

// Provider and IntegrationMode are the two axes spec §3 distinguishes a
// session by: which kind of agent reports its lifecycle, and whether
// OrbitDock only observes (passive, hook-driven) or also drives it
// (direct, embedded-runtime via internal/connector).
const (
	ProviderHookDriven      = "hook-driven"
	ProviderEmbeddedRuntime = "embedded-runtime"

	IntegrationPassive = "passive"
	IntegrationDirect  = "direct"
)

// SessionState is the full in-memory snapshot one SessionActor owns and
// publishes after every transition.
type SessionState struct {
	ID              string
	Provider        string // ProviderHookDriven | ProviderEmbeddedRuntime
	IntegrationMode string // IntegrationPassive | IntegrationDirect

	ProjectPath string
	Branch      string
	Model       string
	Summary     string
	CustomName  string
	FirstPrompt string
	LastMessage string

	Status          Status
	WorkStatus      WorkStatus
	AttentionReason AttentionReason

	Pending *PendingApproval

	Usage     TokenUsage
	TurnCount int

	StartedAt      time.Time
	LastActivityAt time.Time
	EndedAt        time.Time

	ForkedFrom        string
	TerminalSessionID string

	Messages []MessageState

	// NextMessageSequence is the sequence number the next appended message
	// receives; it only ever increases (invariant: monotonic sequence).
	NextMessageSequence int64
}

// DisplayName resolves the user-facing name for a session following
// summary -> custom_name -> first_prompt -> project path basename ->
// "session-<id[:8]>", in that order, skipping empty candidates.
func (s SessionState) DisplayName(basename func(path string) string) string {
	if s.Summary != "" {
		return s.Summary
	}
	if s.CustomName != "" {
		return s.CustomName
	}
	if s.FirstPrompt != "" {
		return s.FirstPrompt
	}
	if s.ProjectPath != "" && basename != nil {
		if name := basename(s.ProjectPath); name != "" {
			return name
		}
	}
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "session-" + id
}
