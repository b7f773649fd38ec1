package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Spool is the append-only disk buffer holding hook events received before
// bootstrap finished restoring sessions (spec §4.5, §6: "Offline spool").
// Appends happen from HTTP handler goroutines under a mutex; Drain runs
// once, from bootstrap, before any concurrent appends can occur again
// (MarkBootstrapComplete flips the gate only after Drain returns).
type Spool struct {
	mu            sync.Mutex
	path          string
	deadPath      string
}

func newSpool(path, deadPath string) (*Spool, error) {
	return &Spool{path: path, deadPath: deadPath}, nil
}

// Append writes one hook payload as a line to the spool file.
func (s *Spool) Append(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write spool line: %w", err)
	}
	return nil
}

// Drain replays every spooled line in order through dispatch. A line that
// dispatch reports as malformed (errMalformedHook) is moved to the
// dead-letter file instead of blocking the rest of the drain; any other
// dispatch error is logged here and the line is treated as consumed (spec gives no redelivery guarantee beyond hook
// lifecycle idempotence, which dispatch itself provides). Once every line
// has been read, the spool file is truncated so a restart doesn't replay
// it again.
func (s *Spool) Drain(dispatch func(line []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open spool for drain: %w", err)
	}

	var deadLines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		if err := dispatch(line); err != nil {
			if errors.Is(err, errMalformedHook) {
				deadLines = append(deadLines, line)
				continue
			}
			slog.Warn("ingest: spooled hook line not applied", "error", err)
		}
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return fmt.Errorf("scan spool: %w", scanErr)
	}

	if len(deadLines) > 0 {
		if err := s.appendDead(deadLines); err != nil {
			return err
		}
	}

	return os.Truncate(s.path, 0)
}

// spoolFileSize returns path's byte size, or 0 if it doesn't exist yet, for
// the status endpoint's "how much is queued offline" figure.
func spoolFileSize(path string) (int, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(info.Size()), nil
}

func (s *Spool) appendDead(lines [][]byte) error {
	f, err := os.OpenFile(s.deadPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open dead spool: %w", err)
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write dead spool line: %w", err)
		}
	}
	return nil
}
