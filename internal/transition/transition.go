package transition

import (
	"time"

	"github.com/orbitdock/orbitdock/internal/persistence"
)

// GeneratedIDs carries every identifier a transition might need to mint.
// Transition never calls a random source itself; SessionActor generates
// these ahead of the call (via internal/ids) so the function stays pure.
type GeneratedIDs struct {
	ApprovalID   string
	MessageID    string
	NewSessionID string
}

// AutoApprove decides whether a pre_tool hook event needs no approval at
// all. It is a parameter rather than a hardcoded table so operators can
// configure an allowlist without touching this package.
type AutoApprove func(toolName string) bool

const (
	codeStaleApproval          = "STALE_APPROVAL"
	reasonSupersededConcurrent = "superseded_by_concurrent_request"
)

// Transition is OrbitDock's entire session state machine. It performs no
// I/O, reads no clock, and generates no ids — every side effect is
// expressed as a returned Effect for the caller to carry out.
func Transition(state SessionState, input Input, now time.Time, ids GeneratedIDs, autoApprove AutoApprove) (SessionState, []Effect) {
	switch {
	case input.Hook != nil:
		return transitionHook(state, *input.Hook, input.ClientRequestID, now, ids, autoApprove)
	case input.Connector != nil:
		return transitionConnector(state, *input.Connector, now, ids)
	case input.Client != nil:
		return transitionClient(state, *input.Client, input.ClientRequestID, now, ids)
	case input.Tick != nil:
		return state, nil
	default:
		return state, nil
	}
}

func transitionHook(state SessionState, ev HookEvent, reqID string, now time.Time, ids GeneratedIDs, autoApprove AutoApprove) (SessionState, []Effect) {
	switch ev.Kind {
	case HookSessionStart:
		state.Status = StatusActive
		state.WorkStatus = WorkWorking
		state.AttentionReason = AttentionNone
		state.StartedAt = now
		state.LastActivityAt = now
		state.ProjectPath = ev.Payload.ProjectPath
		state.Branch = ev.Payload.Branch
		state.Model = ev.Payload.Model
		state.Provider = ProviderHookDriven
		state.IntegrationMode = IntegrationPassive
		if ev.Payload.Provider != "" {
			state.Provider = ev.Payload.Provider
		}
		if ev.Payload.IntegrationMode != "" {
			state.IntegrationMode = ev.Payload.IntegrationMode
		}
		return state, persistEffects(upsertSessionCmd(state))

	case HookSessionEnd:
		return endSession(state, now)

	case HookPromptSubmit:
		state.LastActivityAt = now
		state.WorkStatus = WorkWorking
		state.AttentionReason = AttentionNone
		if state.FirstPrompt == "" {
			state.FirstPrompt = ev.Payload.Content
		}
		msg := appendMessage(&state, ids.MessageID, MessageUser, ev.Payload.Content, now)
		effects := append(persistEffects(upsertSessionCmd(state)), persistEffects(appendMessageCmd(state.ID, msg))...)
		return state, append(effects, broadcastEffect(Delta{Kind: DeltaMessageAppended, SessionID: state.ID, Message: &msg}))

	case HookStop:
		state.LastActivityAt = now
		state.WorkStatus = WorkWaiting
		state.AttentionReason = AttentionAwaitingReply
		return state, persistEffects(upsertSessionCmd(state))

	case HookNotification:
		state.LastActivityAt = now
		return state, persistEffects(upsertSessionCmd(state))

	case HookPreCompact:
		state.LastActivityAt = now
		return state, persistEffects(upsertSessionCmd(state))

	case HookPreTool:
		state.LastActivityAt = now
		if state.Pending == nil && autoApprove != nil && autoApprove(ev.Payload.ToolName) {
			state.WorkStatus = WorkWorking
			return state, persistEffects(upsertSessionCmd(state))
		}
		state.WorkStatus = WorkPermission
		state.AttentionReason = AttentionAwaitingPermission
		state.Pending = &PendingApproval{
			Kind:    ApprovalExec,
			Command: ev.Payload.ToolInput,
		}
		return state, persistEffects(upsertSessionCmd(state))

	case HookPostTool, HookPostToolFailure:
		state.LastActivityAt = now
		state.WorkStatus = WorkWorking
		msg := appendMessage(&state, ids.MessageID, MessageToolResult, ev.Payload.ToolOutput, now)
		msg.ToolName = ev.Payload.ToolName
		msg.ToolOutput = ev.Payload.ToolOutput
		msg.ToolDuration = time.Duration(ev.Payload.ToolDuration)
		state.Messages[len(state.Messages)-1] = msg
		return state, persistEffects(appendMessageCmd(state.ID, msg))

	case HookSubagentStart, HookSubagentStop:
		state.LastActivityAt = now
		return state, persistEffects(upsertSessionCmd(state))

	default:
		return state, nil
	}
}

func transitionConnector(state SessionState, ev ConnectorEvent, now time.Time, ids GeneratedIDs) (SessionState, []Effect) {
	switch ev.Kind {
	case ConnTurnStarted:
		state.WorkStatus = WorkWorking
		state.AttentionReason = AttentionNone
		state.LastActivityAt = now
		return state, persistEffects(upsertSessionCmd(state))

	case ConnItemCreated:
		msg := appendMessage(&state, ids.MessageID, ev.Payload.ItemType, ev.Payload.Content, now)
		msg.ToolName = ev.Payload.ToolName
		msg.ToolInput = ev.Payload.ToolInput
		msg.Thinking = ev.Payload.Thinking
		msg.IsInProgress = true
		state.Messages[len(state.Messages)-1] = msg
		state.LastActivityAt = now
		effects := persistEffects(appendMessageCmd(state.ID, msg))
		effects = append(effects, broadcastEffect(Delta{Kind: DeltaMessageAppended, SessionID: state.ID, Message: &msg}))
		return state, effects

	case ConnItemDelta:
		idx := findMessageIndex(state.Messages, ev.Payload.ItemID)
		if idx < 0 {
			return state, nil
		}
		existing := state.Messages[idx]
		if ev.Payload.Content == "" || existing.lastDeltaContent == ev.Payload.Content {
			// Idempotent replay: an empty delta, or the exact same chunk
			// this message already applied last, is a no-op (spec §8: "a
			// ConnectorEvent::ItemDelta delivered twice with identical
			// content is a no-op after the first").
			return state, nil
		}
		existing.Content += ev.Payload.Content
		existing.lastDeltaContent = ev.Payload.Content
		state.Messages[idx] = existing
		state.LastActivityAt = now
		effects := persistEffects(updateMessageCmd(state.ID, existing))
		effects = append(effects, broadcastEffect(Delta{Kind: DeltaMessageUpdated, SessionID: state.ID, Message: &existing}))
		return state, effects

	case ConnItemCompleted:
		idx := findMessageIndex(state.Messages, ev.Payload.ItemID)
		if idx < 0 {
			return state, nil
		}
		existing := state.Messages[idx]
		existing.IsInProgress = false
		if ev.Payload.Content != "" {
			existing.Content = ev.Payload.Content
		}
		state.Messages[idx] = existing
		state.LastActivityAt = now
		effects := persistEffects(updateMessageCmd(state.ID, existing))
		effects = append(effects, broadcastEffect(Delta{Kind: DeltaMessageUpdated, SessionID: state.ID, Message: &existing}))
		return state, effects

	case ConnApprovalRequested:
		var violationEffects []Effect
		if state.Pending != nil {
			// A second ApprovalRequested while one is outstanding is a
			// connector protocol violation: force-resolve the stale one as
			// an abort before accepting the new one.
			stale := *state.Pending
			violationEffects = persistEffects(recordApprovalDecisionCmd(state.ID, stale, DecisionAbort, reasonSupersededConcurrent, false, now))
			violationEffects = append(violationEffects, broadcastEffect(Delta{Kind: DeltaApprovalResolved, SessionID: state.ID, Approval: &stale}))
		}
		state.Pending = &PendingApproval{
			ApprovalID:        ids.ApprovalID,
			Kind:              ev.Payload.ApprovalKind,
			Command:           ev.Payload.Command,
			Diff:              ev.Payload.Diff,
			Question:          ev.Payload.Question,
			ProposedAmendment: ev.Payload.ProposedAmendment,
		}
		if ev.Payload.ApprovalKind == ApprovalQuestion {
			state.AttentionReason = AttentionAwaitingQuestion
		} else {
			state.AttentionReason = AttentionAwaitingPermission
		}
		state.WorkStatus = WorkPermission
		state.LastActivityAt = now

		effects := append(violationEffects, persistEffects(upsertSessionCmd(state))...)
		effects = append(effects, broadcastEffect(Delta{Kind: DeltaApprovalRequested, SessionID: state.ID, Approval: state.Pending}))
		return state, effects

	case ConnQuestionAsked:
		return transitionConnector(state, ConnectorEvent{Kind: ConnApprovalRequested, Payload: ConnectorPayload{
			ApprovalKind: ApprovalQuestion,
			Question:     ev.Payload.Question,
		}}, now, ids)

	case ConnTurnCompleted:
		state.AttentionReason = AttentionAwaitingReply
		state.WorkStatus = WorkWaiting
		state.TurnCount++
		state.Usage = ev.Payload.Usage
		state.LastActivityAt = now
		diff := persistence.TurnDiff{
			SessionID:    state.ID,
			TurnID:       int64(state.TurnCount),
			InputTokens:  ev.Payload.Usage.InputTokens,
			OutputTokens: ev.Payload.Usage.OutputTokens,
			CreatedAt:    now,
		}
		effects := persistEffects(upsertSessionCmd(state))
		effects = append(effects, persistEffect(persistence.WriteTurnDiffCmd{Diff: diff}))
		effects = append(effects, broadcastEffect(Delta{Kind: DeltaTurnDiff, SessionID: state.ID, TurnDiff: &diff}))
		return state, effects

	case ConnTokenUsage:
		state.Usage = ev.Payload.Usage
		state.LastActivityAt = now
		return state, persistEffects(upsertSessionCmd(state))

	case ConnDisconnected:
		state.WorkStatus = WorkUnknown
		state.LastActivityAt = now
		return state, persistEffects(upsertSessionCmd(state))

	default:
		return state, nil
	}
}

func transitionClient(state SessionState, cmd ClientCommand, reqID string, now time.Time, ids GeneratedIDs) (SessionState, []Effect) {
	switch cmd.Kind {
	case CmdSendPrompt:
		state.LastActivityAt = now
		state.WorkStatus = WorkWorking
		state.AttentionReason = AttentionNone
		if state.FirstPrompt == "" {
			state.FirstPrompt = cmd.Prompt
		}
		msg := appendMessage(&state, ids.MessageID, MessageUser, cmd.Prompt, now)
		effects := persistEffects(upsertSessionCmd(state))
		effects = append(effects, persistEffects(appendMessageCmd(state.ID, msg))...)
		effects = append(effects, connectorEffect(ConnectorCommand{Kind: ConnCmdSendTurn, SessionID: state.ID, Prompt: cmd.Prompt}))
		return state, effects

	case CmdSteer:
		state.LastActivityAt = now
		msg := appendMessage(&state, ids.MessageID, MessageSteer, cmd.Prompt, now)
		effects := persistEffects(appendMessageCmd(state.ID, msg))
		effects = append(effects, connectorEffect(ConnectorCommand{Kind: ConnCmdSendTurn, SessionID: state.ID, Prompt: cmd.Prompt}))
		return state, effects

	case CmdInterrupt:
		state.LastActivityAt = now
		effects := persistEffects(upsertSessionCmd(state))
		effects = append(effects, connectorEffect(ConnectorCommand{Kind: ConnCmdInterrupt, SessionID: state.ID}))
		return state, effects

	case CmdApprove:
		return approve(state, cmd, reqID, now)

	case CmdAnswerQuestion:
		if state.Pending == nil || state.Pending.ApprovalID != cmd.ApprovalID {
			return state, []Effect{rejectEffect(reqID, codeStaleApproval, "approval id does not match the session's pending approval")}
		}
		pending := *state.Pending
		state.Pending = nil
		state.AttentionReason = AttentionNone
		state.LastActivityAt = now
		row := toApprovalHistoryRow(state.ID, pending, DecisionApproved, cmd.Answer, false, now)
		effects := persistEffects(upsertSessionCmd(state))
		effects = append(effects, persistEffect(persistence.RecordApprovalDecisionCmd{Row: row}))
		effects = append(effects, connectorEffect(ConnectorCommand{Kind: ConnCmdSubmitApproval, SessionID: state.ID, ApprovalID: pending.ApprovalID, Decision: DecisionApproved}))
		effects = append(effects, broadcastEffect(Delta{Kind: DeltaApprovalResolved, SessionID: state.ID, Approval: &pending}))
		return state, effects

	case CmdFork:
		messages := messagesUpToSequence(state.Messages, cmd.FromMessageSequence)
		child, effects := forkChild(state, ids.NewSessionID, messages, now)
		effects = append(effects, connectorEffect(ConnectorCommand{Kind: ConnCmdFork, SessionID: child.ID}))
		return child, effects

	case CmdCompact:
		state.LastActivityAt = now
		return state, persistEffects(upsertSessionCmd(state))

	case CmdSetPermissionMode:
		state.LastActivityAt = now
		return state, persistEffects(upsertSessionCmd(state))

	case CmdResume:
		return resume(state, cmd, now, ids)

	case CmdClose:
		return endSession(state, now)

	case CmdRename:
		state.CustomName = cmd.NewName
		state.LastActivityAt = now
		effects := persistEffects(upsertSessionCmd(state))
		effects = append(effects, broadcastEffect(Delta{Kind: DeltaSessionPatched, SessionID: state.ID, Patch: map[string]any{"custom_name": cmd.NewName}}))
		return state, effects

	default:
		return state, nil
	}
}

func approve(state SessionState, cmd ClientCommand, reqID string, now time.Time) (SessionState, []Effect) {
	if state.Pending == nil || state.Pending.ApprovalID != cmd.ApprovalID {
		return state, []Effect{rejectEffect(reqID, codeStaleApproval, "approval id does not match the session's pending approval")}
	}

	pending := *state.Pending
	state.Pending = nil
	state.AttentionReason = AttentionNone
	state.LastActivityAt = now

	if cmd.Decision != DecisionDenied {
		state.WorkStatus = WorkWorking
	}

	row := toApprovalHistoryRow(state.ID, pending, cmd.Decision, cmd.Reason, cmd.Interrupt, now)
	effects := persistEffects(upsertSessionCmd(state))
	effects = append(effects, persistEffect(persistence.RecordApprovalDecisionCmd{Row: row}))
	effects = append(effects, connectorEffect(ConnectorCommand{
		Kind: ConnCmdSubmitApproval, SessionID: state.ID, ApprovalID: pending.ApprovalID, Decision: cmd.Decision,
	}))
	if cmd.Interrupt {
		effects = append(effects, connectorEffect(ConnectorCommand{Kind: ConnCmdInterrupt, SessionID: state.ID}))
	}
	effects = append(effects, broadcastEffect(Delta{Kind: DeltaApprovalResolved, SessionID: state.ID, Approval: &pending}))
	return state, effects
}

func resume(state SessionState, cmd ClientCommand, now time.Time, ids GeneratedIDs) (SessionState, []Effect) {
	if cmd.Resume != nil && cmd.Resume.Fork {
		// Resume-as-fork carries the whole conversation into the sibling,
		// unlike CmdFork which branches from one specific message.
		messages := append([]MessageState(nil), state.Messages...)
		return forkChild(state, ids.NewSessionID, messages, now)
	}

	state.Status = StatusActive
	state.WorkStatus = WorkWorking
	state.AttentionReason = AttentionNone
	state.Pending = nil
	state.LastActivityAt = now
	state.EndedAt = time.Time{}
	return state, persistEffects(upsertSessionCmd(state))
}

// forkChild builds a new sibling session from parent, seeded with a
// content-identical copy of messages (spec §8 scenario 6), and returns the
// child state plus the Persist effects needed to make it durable: an
// UpsertSessionCmd for the new row and one AppendMessageCmd per copied
// message.
func forkChild(parent SessionState, newID string, messages []MessageState, now time.Time) (SessionState, []Effect) {
	child := parent
	child.ID = newID
	child.ForkedFrom = parent.ID
	child.Status = StatusActive
	child.WorkStatus = WorkWorking
	child.AttentionReason = AttentionNone
	child.Pending = nil
	child.StartedAt = now
	child.LastActivityAt = now
	child.EndedAt = time.Time{}
	child.TurnCount = 0
	child.TerminalSessionID = ""
	child.Messages = messages
	child.NextMessageSequence = nextSequenceAfter(messages)

	effects := persistEffects(upsertSessionCmd(child))
	for _, m := range messages {
		effects = append(effects, persistEffects(appendMessageCmd(child.ID, m))...)
	}
	return child, effects
}

// messagesUpToSequence returns the content-identical prefix of messages
// whose Sequence is <= seq, preserving order.
func messagesUpToSequence(messages []MessageState, seq int64) []MessageState {
	var out []MessageState
	for _, m := range messages {
		if m.Sequence <= seq {
			out = append(out, m)
		}
	}
	return out
}

// nextSequenceAfter returns the sequence number a newly appended message to
// messages should receive: one past the highest sequence already present,
// or 0 for an empty slice.
func nextSequenceAfter(messages []MessageState) int64 {
	var max int64 = -1
	for _, m := range messages {
		if m.Sequence > max {
			max = m.Sequence
		}
	}
	return max + 1
}

func endSession(state SessionState, now time.Time) (SessionState, []Effect) {
	var effects []Effect
	if state.Pending != nil {
		pending := *state.Pending
		row := toApprovalHistoryRow(state.ID, pending, DecisionAbort, "session_ended", false, now)
		effects = append(effects, persistEffect(persistence.RecordApprovalDecisionCmd{Row: row}))
		effects = append(effects, broadcastEffect(Delta{Kind: DeltaApprovalResolved, SessionID: state.ID, Approval: &pending}))
		state.Pending = nil
	}
	state.Status = StatusEnded
	state.AttentionReason = AttentionNone
	state.EndedAt = now
	state.LastActivityAt = now

	effects = append(effects, persistEffect(persistence.SetEndedCmd{SessionID: state.ID, EndedAtNS: now.UnixNano()}))
	effects = append(effects, broadcastEffect(Delta{Kind: DeltaSessionEnded, SessionID: state.ID}))
	return state, effects
}

func appendMessage(state *SessionState, id string, msgType MessageType, content string, now time.Time) MessageState {
	msg := MessageState{
		ID:        id,
		Sequence:  state.NextMessageSequence,
		Type:      msgType,
		Content:   content,
		Timestamp: now,
	}
	state.NextMessageSequence++
	state.Messages = append(state.Messages, msg)
	if content != "" {
		state.LastMessage = content
	}
	return msg
}

func findMessageIndex(messages []MessageState, id string) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func toApprovalHistoryRow(sessionID string, p PendingApproval, decision ApprovalDecision, reason string, interrupt bool, now time.Time) persistence.ApprovalHistoryRow {
	return persistence.ApprovalHistoryRow{
		ID:                p.ApprovalID,
		SessionID:         sessionID,
		Kind:              string(p.Kind),
		Command:           p.Command,
		Diff:              p.Diff,
		Question:          p.Question,
		ProposedAmendment: p.ProposedAmendment,
		Decision:          string(decision),
		Reason:            reason,
		Interrupt:         interrupt,
		DecidedAt:         now,
	}
}

func upsertSessionCmd(state SessionState) persistence.Cmd {
	return persistence.UpsertSessionCmd{Session: persistence.Session{
		ID:                  state.ID,
		Provider:            state.Provider,
		IntegrationMode:     state.IntegrationMode,
		ProjectPath:         state.ProjectPath,
		Branch:              state.Branch,
		Model:               state.Model,
		Summary:             state.Summary,
		CustomName:          state.CustomName,
		FirstPrompt:         state.FirstPrompt,
		LastMessage:         state.LastMessage,
		Status:              string(state.Status),
		WorkStatus:          string(state.WorkStatus),
		AttentionReason:     string(state.AttentionReason),
		PendingToolName:     pendingToolName(state.Pending),
		PendingToolInputRaw: pendingCommand(state.Pending),
		PendingQuestion:     pendingQuestion(state.Pending),
		PendingApprovalID:   pendingApprovalID(state.Pending),
		InputTokens:         state.Usage.InputTokens,
		OutputTokens:        state.Usage.OutputTokens,
		CostUSD:             state.Usage.CostUSD,
		TurnCount:           state.TurnCount,
		StartedAt:           state.StartedAt,
		LastActivityAt:      state.LastActivityAt,
		EndedAt:             state.EndedAt,
		ForkedFrom:          state.ForkedFrom,
		TerminalSessionID:   state.TerminalSessionID,
	}}
}

func pendingToolName(p *PendingApproval) string {
	if p == nil || p.Kind != ApprovalExec {
		return ""
	}
	return p.Command
}

func pendingCommand(p *PendingApproval) string {
	if p == nil {
		return ""
	}
	if p.Diff != "" {
		return p.Diff
	}
	return p.Command
}

func pendingQuestion(p *PendingApproval) string {
	if p == nil {
		return ""
	}
	return p.Question
}

func pendingApprovalID(p *PendingApproval) string {
	if p == nil {
		return ""
	}
	return p.ApprovalID
}

func appendMessageCmd(sessionID string, m MessageState) persistence.Cmd {
	return persistence.AppendMessageCmd{Message: persistence.Message{
		SessionID:    sessionID,
		ID:           m.ID,
		Sequence:     m.Sequence,
		Type:         string(m.Type),
		Content:      m.Content,
		ToolName:     m.ToolName,
		ToolInputRaw: m.ToolInput,
		ToolOutput:   m.ToolOutput,
		ToolDuration: m.ToolDuration,
		InputTokens:  m.Usage.InputTokens,
		OutputTokens: m.Usage.OutputTokens,
		Thinking:     m.Thinking,
		IsInProgress: m.IsInProgress,
		Timestamp:    m.Timestamp,
	}}
}

func updateMessageCmd(sessionID string, m MessageState) persistence.Cmd {
	return persistence.UpdateMessageCmd{
		SessionID:    sessionID,
		MessageID:    m.ID,
		Content:      m.Content,
		ToolOutput:   m.ToolOutput,
		ToolDuration: m.ToolDuration.Nanoseconds(),
		InputTokens:  m.Usage.InputTokens,
		OutputTokens: m.Usage.OutputTokens,
		IsInProgress: m.IsInProgress,
	}
}

func recordApprovalDecisionCmd(sessionID string, p PendingApproval, decision ApprovalDecision, reason string, interrupt bool, now time.Time) persistence.Cmd {
	return persistence.RecordApprovalDecisionCmd{Row: toApprovalHistoryRow(sessionID, p, decision, reason, interrupt, now)}
}

func persistEffect(cmd persistence.Cmd) Effect {
	return Effect{Persist: &cmd}
}

func persistEffects(cmd persistence.Cmd) []Effect {
	return []Effect{persistEffect(cmd)}
}

func connectorEffect(cmd ConnectorCommand) Effect {
	return Effect{ConnectorCommand: &cmd}
}

func broadcastEffect(d Delta) Effect {
	return Effect{BroadcastDelta: &d}
}

func rejectEffect(reqID, code, message string) Effect {
	return Effect{RejectWithError: &RejectWithError{ClientRequestID: reqID, Code: code, Message: message}}
}
