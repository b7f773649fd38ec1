package ingest

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// RawEvent is one not-yet-parsed hook payload plus which source produced
// it, for diagnostics.
type RawEvent struct {
	Source string
	Body   []byte
}

// EventSource is anything that can feed raw payloads into the hook dispatch
// pipeline alongside /api/hook. An alternate provider's rollout-file
// watcher (explicitly out of scope per spec §1, "file-watching of an
// alternate provider's rollout files... treated as one of several event
// sources") is the other source named in the spec, proven out below as a
// boundary stub without implementing real rollout-file parsing.
type EventSource interface {
	// Events returns a channel of raw payloads; it is closed when the
	// source stops producing (e.g. Close is called or the watched path is
	// removed).
	Events() <-chan RawEvent
	Close() error
}

// FileWatchSource is the boundary stub for watching an alternate provider's
// session rollout files and turning file-append events into RawEvents.
// Real rollout-file parsing is out of scope (spec §1's Non-goals list); this
// type only proves the ingest pipeline is source-agnostic by watching a
// directory with fsnotify and forwarding a RawEvent whose Body is the path
// of the file whenever a file inside it is created or written; the file's
// content is not read here and is left to a future provider adapter.
type FileWatchSource struct {
	watcher *fsnotify.Watcher
	events  chan RawEvent
	done    chan struct{}
}

// NewFileWatchSource starts watching dir for file writes. It never parses
// rollout-file contents; see the type doc comment.
func NewFileWatchSource(dir string) (*FileWatchSource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	s := &FileWatchSource{
		watcher: watcher,
		events:  make(chan RawEvent, 64),
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *FileWatchSource) run() {
	defer close(s.events)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case s.events <- RawEvent{Source: "filewatch", Body: []byte(ev.Name)}:
			default:
				slog.Warn("ingest: filewatch event dropped, consumer too slow", "path", ev.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("ingest: filewatch error", "error", err)
		case <-s.done:
			return
		}
	}
}

func (s *FileWatchSource) Events() <-chan RawEvent { return s.events }

func (s *FileWatchSource) Close() error {
	close(s.done)
	return s.watcher.Close()
}
