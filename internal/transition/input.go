package transition

// Input is the sum type of everything a SessionActor's mailbox can carry.
// Exactly one concrete field is non-nil on any given value; ClientRequestID
// is set when the input originated from a command the caller wants an
// Ack/Error reply for.
type Input struct {
	ClientRequestID string

	Hook      *HookEvent
	Connector *ConnectorEvent
	Client    *ClientCommand
	Tick      *TickEvent
}

// HookEventKind enumerates the lifecycle/status/tool/subagent events the
// hook-driven provider delivers over HTTP.
type HookEventKind string

const (
	HookSessionStart    HookEventKind = "session_start"
	HookSessionEnd      HookEventKind = "session_end"
	HookPromptSubmit    HookEventKind = "prompt_submit"
	HookStop            HookEventKind = "stop"
	HookNotification    HookEventKind = "notification"
	HookPreCompact      HookEventKind = "pre_compact"
	HookPreTool         HookEventKind = "pre_tool"
	HookPostTool        HookEventKind = "post_tool"
	HookPostToolFailure HookEventKind = "post_tool_failure"
	HookSubagentStart   HookEventKind = "subagent_start"
	HookSubagentStop    HookEventKind = "subagent_stop"
)

// HookEvent is one normalized event from the hook ingestion endpoint.
type HookEvent struct {
	Kind    HookEventKind
	Payload HookPayload
}

// HookPayload carries the fields any HookEventKind might need; unused
// fields are left zero. Tool auto-approval is decided from ToolName against
// a caller-supplied allowlist function, kept out of this struct so the rule
// can change without touching the wire shape.
type HookPayload struct {
	ToolName     string
	ToolInput    string
	ToolOutput   string
	ToolDuration int64 // nanoseconds
	Content      string
	Model        string
	ProjectPath  string
	Branch       string
	IsError      bool

	// Provider/IntegrationMode are only meaningful on HookSessionStart; a
	// real hook POST never sets them and session_start defaults to
	// ProviderHookDriven/IntegrationPassive. ingest's direct-session
	// endpoint sets them to ProviderEmbeddedRuntime/IntegrationDirect so a
	// connector-backed session is created through the same reducer path.
	Provider        string
	IntegrationMode string
}

// ConnectorEventKind enumerates the embedded-runtime events the connector
// translates from ACP session-update notifications.
type ConnectorEventKind string

const (
	ConnTurnStarted       ConnectorEventKind = "TurnStarted"
	ConnItemCreated       ConnectorEventKind = "ItemCreated"
	ConnItemDelta         ConnectorEventKind = "ItemDelta"
	ConnItemCompleted     ConnectorEventKind = "ItemCompleted"
	ConnApprovalRequested ConnectorEventKind = "ApprovalRequested"
	ConnQuestionAsked     ConnectorEventKind = "QuestionAsked"
	ConnTurnCompleted     ConnectorEventKind = "TurnCompleted"
	ConnTokenUsage        ConnectorEventKind = "TokenUsage"
	ConnDisconnected      ConnectorEventKind = "Disconnected"
)

// ConnectorEvent is one normalized event from the embedded agent runtime.
type ConnectorEvent struct {
	Kind    ConnectorEventKind
	Payload ConnectorPayload
}

// ConnectorPayload carries the fields any ConnectorEventKind might need.
type ConnectorPayload struct {
	ItemID            string
	ItemType          MessageType
	Content           string
	Thinking          string
	ToolName          string
	ToolInput         string
	ApprovalKind      ApprovalKind
	Command           string
	Diff              string
	Question          string
	ProposedAmendment string
	Usage             TokenUsage
	DisconnectReason  string
}

// ClientCommandKind enumerates the commands a WS/HTTP client can issue.
type ClientCommandKind string

const (
	CmdSendPrompt        ClientCommandKind = "SendPrompt"
	CmdSteer             ClientCommandKind = "Steer"
	CmdInterrupt         ClientCommandKind = "Interrupt"
	CmdApprove           ClientCommandKind = "Approve"
	CmdAnswerQuestion    ClientCommandKind = "AnswerQuestion"
	CmdFork              ClientCommandKind = "Fork"
	CmdCompact           ClientCommandKind = "Compact"
	CmdSetPermissionMode ClientCommandKind = "SetPermissionMode"
	CmdResume            ClientCommandKind = "Resume"
	CmdClose             ClientCommandKind = "Close"
	CmdRename            ClientCommandKind = "Rename"
)

// ClientCommand is one command issued by a UI/CLI client.
type ClientCommand struct {
	Kind ClientCommandKind

	Prompt         string
	ApprovalID     string
	Decision       ApprovalDecision
	Reason         string
	Interrupt      bool
	Answer         string
	PermissionMode string
	NewName        string
	Resume         *ResumeOptions

	// FromMessageSequence is CmdFork's cutoff: the child session receives a
	// content-identical copy of every message with Sequence <= this value
	// (spec §8 scenario 6). Unused by every other ClientCommandKind.
	FromMessageSequence int64
}

// ResumeOptions distinguishes the two Resume variants spec §4.1 leaves
// open: Fork resumes by duplicating the full message history into a new
// sibling session with ForkedFrom set, while a non-fork resume re-opens the
// same session id in place. Branching from a specific message (rather than
// the whole history) is CmdFork's job, not Resume's.
type ResumeOptions struct {
	Fork bool
}

// TickEvent drives heartbeat-only cleanup; transition never uses it for
// anything resembling physics or timers that affect agent behavior.
type TickEvent struct {
	Now int64 // unix nanoseconds, informational only at this layer
}
