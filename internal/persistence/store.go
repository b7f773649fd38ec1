// Package persistence is OrbitDock's single-writer SQLite layer: one
// goroutine owns the *sql.DB, every mutation arrives as a Cmd on a channel,
// and everything else reads from the in-memory snapshot instead (spec
// invariant: "only the Persistence actor issues SQL writes").
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/orbitdock/orbitdock/internal/apperr"
)

// Store owns the database connection and the batching writer goroutine.
type Store struct {
	db     *sql.DB
	cmds   chan Cmd
	done   chan struct{}
	closed chan struct{}

	batchMax    int
	batchWindow time.Duration
}

// Options configures the batching writer. Zero values fall back to the same
// defaults config.Config exposes (16 commands / 10ms / 4096 queue slots).
type Options struct {
	BatchMax    int
	BatchWindow time.Duration
	QueueSize   int
}

func (o Options) withDefaults() Options {
	if o.BatchMax <= 0 {
		o.BatchMax = 16
	}
	if o.BatchWindow <= 0 {
		o.BatchWindow = 10 * time.Millisecond
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 4096
	}
	return o
}

// Open creates or opens a SQLite database at dbPath, applies pending
// migrations, and starts the batching writer goroutine.
func Open(dbPath string, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single physical writer connection keeps SQLITE_BUSY from internal
	// contention impossible on the write path; reads below reuse the same
	// pool since modernc.org's driver multiplexes safely over one file with
	// WAL. An external process holding the file lock can still bounce a
	// commit, which runWriter retries via internal/retry (writer.go).
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{
		db:          db,
		cmds:        make(chan Cmd, opts.QueueSize),
		done:        make(chan struct{}),
		closed:      make(chan struct{}),
		batchMax:    opts.BatchMax,
		batchWindow: opts.BatchWindow,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.Fatal, "MIGRATION_FAILED", "apply schema migrations", err)
	}

	go s.runWriter()

	return s, nil
}

// Enqueue hands a Cmd to the writer. It never blocks on durability: the
// call returns once the command is in the channel, not once it's committed.
func (s *Store) Enqueue(cmd Cmd) {
	select {
	case s.cmds <- cmd:
	default:
		slog.Warn("persistence queue full, command dropped", "cmd", fmt.Sprintf("%T", cmd))
	}
}

// QueueDepth returns the number of Cmd values currently buffered ahead of
// the writer, for the status endpoint's operational visibility.
func (s *Store) QueueDepth() int {
	return len(s.cmds)
}

// Close stops the writer goroutine, flushing any batch already in flight,
// then closes the database.
func (s *Store) Close() error {
	close(s.done)
	<-s.closed
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&current); err != nil {
		return fmt.Errorf("read schema_versions: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		slog.Info("applying persistence migration", "version", version)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", version, err)
		}
		if err := migrations[i](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
