package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RestorableSessions returns every session row whose status is not Ended,
// for bootstrap to re-spawn actors from (spec: "on restart, only sessions
// with status != Ended are restored into actors").
func (s *Store) RestorableSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, integration_mode, project_path, branch, model, summary,
			custom_name, first_prompt, last_message, status, work_status,
			attention_reason, pending_tool_name, pending_tool_input_json,
			pending_question, pending_approval_id, input_tokens, output_tokens,
			cost_usd, turn_count, started_at, last_activity_at, ended_at,
			forked_from, terminal_session_id
		FROM sessions WHERE status != 'Ended'
	`)
	if err != nil {
		return nil, fmt.Errorf("query restorable sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(rows *sql.Rows) (Session, error) {
	var sess Session
	var started, lastActivity, ended string
	err := rows.Scan(
		&sess.ID, &sess.Provider, &sess.IntegrationMode, &sess.ProjectPath, &sess.Branch, &sess.Model, &sess.Summary,
		&sess.CustomName, &sess.FirstPrompt, &sess.LastMessage, &sess.Status, &sess.WorkStatus,
		&sess.AttentionReason, &sess.PendingToolName, &sess.PendingToolInputRaw,
		&sess.PendingQuestion, &sess.PendingApprovalID, &sess.InputTokens, &sess.OutputTokens,
		&sess.CostUSD, &sess.TurnCount, &started, &lastActivity, &ended,
		&sess.ForkedFrom, &sess.TerminalSessionID,
	)
	if err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.StartedAt = parseTime(started)
	sess.LastActivityAt = parseTime(lastActivity)
	sess.EndedAt = parseTime(ended)
	return sess, nil
}

// RecentMessages returns the last limit messages for a session ordered by
// sequence ascending, for the "last-K messages" replay buffer bootstrap
// seeds each restored actor with.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, id, sequence, type, content, tool_name, tool_input_json,
			tool_output, tool_duration_ns, input_tokens, output_tokens,
			images_json, thinking, is_in_progress, timestamp
		FROM messages WHERE session_id = ?
		ORDER BY sequence DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var durationNS int64
		var isInProgress int
		var ts string
		if err := rows.Scan(
			&m.SessionID, &m.ID, &m.Sequence, &m.Type, &m.Content, &m.ToolName, &m.ToolInputRaw,
			&m.ToolOutput, &durationNS, &m.InputTokens, &m.OutputTokens,
			&m.ImagesRaw, &m.Thinking, &isInProgress, &ts,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ToolDuration = time.Duration(durationNS)
		m.IsInProgress = isInProgress != 0
		m.Timestamp = parseTime(ts)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into ascending sequence order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ReviewComments returns every review comment recorded for a session.
func (s *Store) ReviewComments(ctx context.Context, sessionID string) ([]ReviewComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, file_path, line_range, body, tag, status, created_at
		FROM review_comments WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query review comments: %w", err)
	}
	defer rows.Close()

	var out []ReviewComment
	for rows.Next() {
		var c ReviewComment
		var created string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.FilePath, &c.LineRange, &c.Body, &c.Tag, &c.Status, &created); err != nil {
			return nil, fmt.Errorf("scan review comment: %w", err)
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
