package persistence

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/orbitdock/orbitdock/internal/retry"
)

// batchRetryConfig bounds the retry of one batch transaction against a
// transient SQLITE_BUSY/"database is locked" error — the single physical
// writer connection (store.go's SetMaxOpenConns(1)) rules out internal
// contention, but an external process holding the file lock (a sqlite3 CLI
// inspecting the db, a backup tool) can still make one commit bounce.
// Delays are kept far shorter than internal/retry's connector-reconnect
// defaults since a batch is already holding a begun transaction open.
var batchRetryConfig = retry.Config{
	InitialDelay: 10 * time.Millisecond,
	MaxDelay:     200 * time.Millisecond,
	MaxElapsed:   2 * time.Second,
	MaxAttempts:  5,
}

// isRetryableBusyErr reports whether err looks like a transient SQLite lock
// contention error rather than a real constraint/schema failure. modernc.org/
// sqlite doesn't export a typed busy-error the way database/sql drivers
// commonly do, so this matches on the same substrings sqlite3's own CLI uses
// for SQLITE_BUSY / SQLITE_LOCKED.
func isRetryableBusyErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}

// runWriter drains s.cmds, batching up to batchMax commands or batchWindow
// of wall time (whichever comes first) into one *sql.Tx. A batch that fails
// is logged and dropped whole; the caller that enqueued never learns the
// result, matching the fire-and-forget contract in spec §4.4.
func (s *Store) runWriter() {
	defer close(s.closed)

	batch := make([]Cmd, 0, s.batchMax)
	timer := time.NewTimer(s.batchWindow)
	if !timer.Stop() {
		<-timer.C
	}
	timerRunning := false

	flush := func() {
		if len(batch) == 0 {
			return
		}
		size := len(batch)
		err := retry.Do(context.Background(), batchRetryConfig, "persistence.batch", func(context.Context) error {
			applyErr := s.applyBatch(batch)
			if applyErr == nil {
				return nil
			}
			if isRetryableBusyErr(applyErr) {
				return applyErr
			}
			return retry.Permanent(applyErr)
		})
		if err != nil {
			slog.Error("persistence batch failed, dropping batch", "size", size, "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case cmd, ok := <-s.cmds:
			if !ok {
				flush()
				return
			}
			if len(batch) == 0 {
				timer.Reset(s.batchWindow)
				timerRunning = true
			}
			batch = append(batch, cmd)
			if len(batch) >= s.batchMax {
				if timerRunning && !timer.Stop() {
					<-timer.C
				}
				timerRunning = false
				flush()
			}

		case <-timer.C:
			timerRunning = false
			flush()

		case <-s.done:
			if timerRunning && !timer.Stop() {
				<-timer.C
			}
			// Drain whatever is already queued without blocking further.
			for {
				select {
				case cmd := <-s.cmds:
					batch = append(batch, cmd)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *Store) applyBatch(batch []Cmd) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	for _, cmd := range batch {
		if err := applyCmd(tx, cmd); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func applyCmd(tx *sql.Tx, cmd Cmd) error {
	switch c := cmd.(type) {
	case UpsertSessionCmd:
		return upsertSession(tx, c.Session)
	case AppendMessageCmd:
		return appendMessage(tx, c.Message)
	case UpdateMessageCmd:
		return updateMessage(tx, c)
	case RecordApprovalDecisionCmd:
		return recordApprovalDecision(tx, c.Row)
	case WriteTurnDiffCmd:
		return writeTurnDiff(tx, c.Diff)
	case SetEndedCmd:
		return setEnded(tx, c)
	case UpsertReviewCommentCmd:
		return upsertReviewComment(tx, c.Comment)
	case SetReviewCommentStatusCmd:
		return setReviewCommentStatus(tx, c)
	default:
		slog.Warn("persistence: unknown command type, skipping", "type", cmd)
		return nil
	}
}

func upsertSession(tx *sql.Tx, sess Session) error {
	_, err := tx.Exec(`
		INSERT INTO sessions (
			id, provider, integration_mode, project_path, branch, model, summary,
			custom_name, first_prompt, last_message, status, work_status,
			attention_reason, pending_tool_name, pending_tool_input_json,
			pending_question, pending_approval_id, input_tokens, output_tokens,
			cost_usd, turn_count, started_at, last_activity_at, ended_at,
			forked_from, terminal_session_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			integration_mode = excluded.integration_mode,
			project_path = excluded.project_path,
			branch = excluded.branch,
			model = excluded.model,
			summary = excluded.summary,
			custom_name = excluded.custom_name,
			first_prompt = excluded.first_prompt,
			last_message = excluded.last_message,
			status = excluded.status,
			work_status = excluded.work_status,
			attention_reason = excluded.attention_reason,
			pending_tool_name = excluded.pending_tool_name,
			pending_tool_input_json = excluded.pending_tool_input_json,
			pending_question = excluded.pending_question,
			pending_approval_id = excluded.pending_approval_id,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cost_usd = excluded.cost_usd,
			turn_count = excluded.turn_count,
			last_activity_at = excluded.last_activity_at,
			ended_at = excluded.ended_at,
			forked_from = excluded.forked_from,
			terminal_session_id = excluded.terminal_session_id
	`,
		sess.ID, sess.Provider, sess.IntegrationMode, sess.ProjectPath, sess.Branch, sess.Model, sess.Summary,
		sess.CustomName, sess.FirstPrompt, sess.LastMessage, sess.Status, sess.WorkStatus,
		sess.AttentionReason, sess.PendingToolName, sess.PendingToolInputRaw,
		sess.PendingQuestion, sess.PendingApprovalID, sess.InputTokens, sess.OutputTokens,
		sess.CostUSD, sess.TurnCount, formatTime(sess.StartedAt), formatTime(sess.LastActivityAt), formatTimeOrEmpty(sess.EndedAt),
		sess.ForkedFrom, sess.TerminalSessionID,
	)
	return err
}

func appendMessage(tx *sql.Tx, m Message) error {
	_, err := tx.Exec(`
		INSERT INTO messages (
			session_id, id, sequence, type, content, tool_name, tool_input_json,
			tool_output, tool_duration_ns, input_tokens, output_tokens,
			images_json, thinking, is_in_progress, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.SessionID, m.ID, m.Sequence, m.Type, m.Content, m.ToolName, m.ToolInputRaw,
		m.ToolOutput, m.ToolDuration.Nanoseconds(), m.InputTokens, m.OutputTokens,
		m.ImagesRaw, m.Thinking, boolToInt(m.IsInProgress), formatTime(m.Timestamp),
	)
	return err
}

func updateMessage(tx *sql.Tx, c UpdateMessageCmd) error {
	_, err := tx.Exec(`
		UPDATE messages SET
			content = ?,
			tool_output = ?,
			tool_duration_ns = CASE WHEN ? != 0 THEN ? ELSE tool_duration_ns END,
			input_tokens = ?,
			output_tokens = ?,
			is_in_progress = ?
		WHERE session_id = ? AND id = ?
	`,
		c.Content, c.ToolOutput, c.ToolDuration, c.ToolDuration, c.InputTokens, c.OutputTokens,
		boolToInt(c.IsInProgress), c.SessionID, c.MessageID,
	)
	return err
}

func recordApprovalDecision(tx *sql.Tx, row ApprovalHistoryRow) error {
	_, err := tx.Exec(`
		INSERT INTO approval_history (
			id, session_id, kind, command, diff, question, proposed_amendment,
			decision, reason, interrupt, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.ID, row.SessionID, row.Kind, row.Command, row.Diff, row.Question, row.ProposedAmendment,
		row.Decision, row.Reason, boolToInt(row.Interrupt), formatTime(row.DecidedAt),
	)
	return err
}

func writeTurnDiff(tx *sql.Tx, d TurnDiff) error {
	_, err := tx.Exec(`
		INSERT INTO turn_diffs (session_id, turn_id, diff_text, input_tokens, output_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, turn_id) DO UPDATE SET
			diff_text = excluded.diff_text,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens
	`, d.SessionID, d.TurnID, d.DiffText, d.InputTokens, d.OutputTokens, formatTime(d.CreatedAt))
	return err
}

func setEnded(tx *sql.Tx, c SetEndedCmd) error {
	_, err := tx.Exec(`UPDATE sessions SET status = 'Ended', ended_at = ? WHERE id = ?`,
		formatTime(time.Unix(0, c.EndedAtNS).UTC()), c.SessionID)
	return err
}

func upsertReviewComment(tx *sql.Tx, c ReviewComment) error {
	_, err := tx.Exec(`
		INSERT INTO review_comments (id, session_id, file_path, line_range, body, tag, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			line_range = excluded.line_range,
			body = excluded.body,
			tag = excluded.tag,
			status = excluded.status
	`, c.ID, c.SessionID, c.FilePath, c.LineRange, c.Body, c.Tag, c.Status, formatTime(c.CreatedAt))
	return err
}

func setReviewCommentStatus(tx *sql.Tx, c SetReviewCommentStatusCmd) error {
	_, err := tx.Exec(`UPDATE review_comments SET status = ? WHERE id = ?`, c.Status, c.ID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimeOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatTime(t)
}
