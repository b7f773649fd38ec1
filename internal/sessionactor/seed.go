package sessionactor

import (
	"github.com/orbitdock/orbitdock/internal/persistence"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// FromRow converts a persistence.Session row plus its recent messages into
// the in-memory SessionState an Actor is seeded from on bootstrap restore.
// Restore seeds the snapshot directly rather than replaying every historical
// Input through Transition (spec invariant 4: restore is a seed, not a
// replay).
func FromRow(row persistence.Session, messages []persistence.Message) transition.SessionState {
	state := transition.SessionState{
		ID:                row.ID,
		Provider:          row.Provider,
		IntegrationMode:   row.IntegrationMode,
		ProjectPath:       row.ProjectPath,
		Branch:            row.Branch,
		Model:             row.Model,
		Summary:           row.Summary,
		CustomName:        row.CustomName,
		FirstPrompt:       row.FirstPrompt,
		LastMessage:       row.LastMessage,
		Status:            transition.Status(row.Status),
		WorkStatus:        transition.WorkStatus(row.WorkStatus),
		AttentionReason:   transition.AttentionReason(row.AttentionReason),
		Usage:             transition.TokenUsage{InputTokens: row.InputTokens, OutputTokens: row.OutputTokens, CostUSD: row.CostUSD},
		TurnCount:         row.TurnCount,
		StartedAt:         row.StartedAt,
		LastActivityAt:    row.LastActivityAt,
		EndedAt:           row.EndedAt,
		ForkedFrom:        row.ForkedFrom,
		TerminalSessionID: row.TerminalSessionID,
	}

	if row.PendingApprovalID != "" {
		// The sessions row doesn't carry ApprovalKind directly; a pending
		// question restores as ApprovalQuestion, everything else as
		// ApprovalExec, since only the hook-driven pre_tool path (always
		// Exec) persists a pending approval across restarts today.
		kind := transition.ApprovalExec
		if row.PendingQuestion != "" {
			kind = transition.ApprovalQuestion
		}
		state.Pending = &transition.PendingApproval{
			ApprovalID: row.PendingApprovalID,
			Kind:       kind,
			Command:    row.PendingToolName,
			Question:   row.PendingQuestion,
		}
	}

	state.Messages = make([]transition.MessageState, 0, len(messages))
	for _, m := range messages {
		state.Messages = append(state.Messages, transition.MessageState{
			ID:           m.ID,
			Sequence:     m.Sequence,
			Type:         transition.MessageType(m.Type),
			Content:      m.Content,
			ToolName:     m.ToolName,
			ToolInput:    m.ToolInputRaw,
			ToolOutput:   m.ToolOutput,
			ToolDuration: m.ToolDuration,
			Usage:        transition.TokenUsage{InputTokens: m.InputTokens, OutputTokens: m.OutputTokens},
			Thinking:     m.Thinking,
			IsInProgress: m.IsInProgress,
			Timestamp:    m.Timestamp,
		})
		if m.Sequence >= state.NextMessageSequence {
			state.NextMessageSequence = m.Sequence + 1
		}
	}

	return state
}
