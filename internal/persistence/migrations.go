package persistence

import "database/sql"

// migration is one forward-only schema step, numbered the same way the
// teacher's migrateV1/migrateV2 pair is: index in the slice plus one is the
// version recorded in schema_versions.
type migration func(*sql.Tx) error

var migrations = []migration{
	migrateV1Sessions,
	migrateV2Messages,
	migrateV3TurnDiffsAndApprovals,
	migrateV4ReviewComments,
}

func migrateV1Sessions(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id                      TEXT PRIMARY KEY,
			provider                TEXT NOT NULL,
			integration_mode        TEXT NOT NULL,
			project_path            TEXT NOT NULL DEFAULT '',
			branch                  TEXT NOT NULL DEFAULT '',
			model                   TEXT NOT NULL DEFAULT '',
			summary                 TEXT NOT NULL DEFAULT '',
			custom_name             TEXT NOT NULL DEFAULT '',
			first_prompt            TEXT NOT NULL DEFAULT '',
			last_message            TEXT NOT NULL DEFAULT '',
			status                  TEXT NOT NULL,
			work_status             TEXT NOT NULL,
			attention_reason        TEXT NOT NULL,
			pending_tool_name       TEXT NOT NULL DEFAULT '',
			pending_tool_input_json TEXT NOT NULL DEFAULT '',
			pending_question        TEXT NOT NULL DEFAULT '',
			pending_approval_id     TEXT NOT NULL DEFAULT '',
			input_tokens            INTEGER NOT NULL DEFAULT 0,
			output_tokens           INTEGER NOT NULL DEFAULT 0,
			cost_usd                REAL NOT NULL DEFAULT 0,
			turn_count              INTEGER NOT NULL DEFAULT 0,
			started_at              TEXT NOT NULL,
			last_activity_at        TEXT NOT NULL,
			ended_at                TEXT NOT NULL DEFAULT '',
			forked_from             TEXT NOT NULL DEFAULT '',
			terminal_session_id     TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	`)
	return err
}

func migrateV2Messages(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			session_id      TEXT NOT NULL,
			id              TEXT NOT NULL,
			sequence        INTEGER NOT NULL,
			type            TEXT NOT NULL,
			content         TEXT NOT NULL DEFAULT '',
			tool_name       TEXT NOT NULL DEFAULT '',
			tool_input_json TEXT NOT NULL DEFAULT '',
			tool_output     TEXT NOT NULL DEFAULT '',
			tool_duration_ns INTEGER NOT NULL DEFAULT 0,
			input_tokens    INTEGER NOT NULL DEFAULT 0,
			output_tokens   INTEGER NOT NULL DEFAULT 0,
			images_json     TEXT NOT NULL DEFAULT '',
			thinking        TEXT NOT NULL DEFAULT '',
			is_in_progress  INTEGER NOT NULL DEFAULT 0,
			timestamp       TEXT NOT NULL,
			PRIMARY KEY (session_id, id)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session_seq ON messages(session_id, sequence);
	`)
	return err
}

func migrateV3TurnDiffsAndApprovals(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS turn_diffs (
			session_id    TEXT NOT NULL,
			turn_id       INTEGER NOT NULL,
			diff_text     TEXT NOT NULL DEFAULT '',
			input_tokens  INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			PRIMARY KEY (session_id, turn_id)
		);

		CREATE TABLE IF NOT EXISTS approval_history (
			id                  TEXT PRIMARY KEY,
			session_id          TEXT NOT NULL,
			kind                TEXT NOT NULL,
			command             TEXT NOT NULL DEFAULT '',
			diff                TEXT NOT NULL DEFAULT '',
			question            TEXT NOT NULL DEFAULT '',
			proposed_amendment  TEXT NOT NULL DEFAULT '',
			decision            TEXT NOT NULL,
			reason              TEXT NOT NULL DEFAULT '',
			interrupt           INTEGER NOT NULL DEFAULT 0,
			decided_at          TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_approval_history_session ON approval_history(session_id);
	`)
	return err
}

func migrateV4ReviewComments(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS review_comments (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			file_path  TEXT NOT NULL,
			line_range TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL DEFAULT '',
			tag        TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_review_comments_session ON review_comments(session_id);
	`)
	return err
}
