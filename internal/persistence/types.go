package persistence

import "time"

// Session is the durable row shape for the sessions table. It mirrors the
// in-memory snapshot field for field; transition never reads from here
// directly, it only produces Cmd values that describe how this row changes.
type Session struct {
	ID                  string
	Provider            string
	IntegrationMode     string
	ProjectPath         string
	Branch              string
	Model               string
	Summary             string
	CustomName          string
	FirstPrompt         string
	LastMessage         string
	Status              string
	WorkStatus          string
	AttentionReason     string
	PendingToolName     string
	PendingToolInputRaw string
	PendingQuestion     string
	PendingApprovalID   string
	InputTokens         int64
	OutputTokens        int64
	CostUSD             float64
	TurnCount           int
	StartedAt           time.Time
	LastActivityAt      time.Time
	EndedAt             time.Time
	ForkedFrom          string
	TerminalSessionID   string
}

// Message is the durable row shape for the messages table.
type Message struct {
	SessionID     string
	ID            string
	Sequence      int64
	Type          string
	Content       string
	ToolName      string
	ToolInputRaw  string
	ToolOutput    string
	ToolDuration  time.Duration
	InputTokens   int64
	OutputTokens  int64
	ImagesRaw     string
	Thinking      string
	IsInProgress  bool
	Timestamp     time.Time
}

// TurnDiff is the durable row shape for the turn_diffs table.
type TurnDiff struct {
	SessionID    string
	TurnID       int64
	DiffText     string
	InputTokens  int64
	OutputTokens int64
	CreatedAt    time.Time
}

// ApprovalHistoryRow is the durable, immutable decision log row.
type ApprovalHistoryRow struct {
	ID                string
	SessionID         string
	Kind              string
	Command           string
	Diff              string
	Question          string
	ProposedAmendment string
	Decision          string
	Reason            string
	Interrupt         bool
	DecidedAt         time.Time
}

// ReviewComment is the durable row shape for the review_comments table.
type ReviewComment struct {
	ID        string
	SessionID string
	FilePath  string
	LineRange string
	Body      string
	Tag       string
	Status    string
	CreatedAt time.Time
}
