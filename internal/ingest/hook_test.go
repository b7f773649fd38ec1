package ingest

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/orbitdock/orbitdock/internal/persistence"
	"github.com/orbitdock/orbitdock/internal/registry"
	"github.com/orbitdock/orbitdock/internal/sessionactor"
	"github.com/orbitdock/orbitdock/internal/transition"
)

func newTestHandler(t *testing.T) (*Handler, *registry.Registry, *persistence.Store) {
	t.Helper()
	reg := registry.New()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "orbitdock.db"), persistence.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	newActor := func(id string) registry.Handle {
		return sessionactor.New(transition.SessionState{ID: id, Status: transition.StatusActive}, sessionactor.Deps{Store: store})
	}

	h, err := NewHandler(reg, newActor, nil, store, filepath.Join(t.TempDir(), "hook-spool.ndjson"), filepath.Join(t.TempDir(), "hook-spool.dead"))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	h.MarkBootstrapComplete()
	return h, reg, store
}

// TestHookSessionStartCreatesSession confirms a session_start hook POST for
// an unknown id spawns and registers an actor instead of being discarded.
func TestHookSessionStartCreatesSession(t *testing.T) {
	h, reg, _ := newTestHandler(t)

	body := []byte(`{"type":"claude_session_start","session_id":"s1","cwd":"/tmp/proj","model":"m-a"}`)
	req := httptest.NewRequest("POST", "/api/hook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 204 {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, ok := reg.Lookup("s1"); !ok {
		t.Fatal("expected session s1 to be registered after session_start")
	}
}

// TestHookUnparsableBodyReturns400 confirms malformed JSON is rejected
// immediately rather than silently discarded or spooled.
func TestHookUnparsableBodyReturns400(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/hook", bytes.NewReader([]byte(`not json`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Fatalf("expected an error body, got %s (err=%v)", rec.Body.String(), err)
	}
}

// TestHookBeforeBootstrapSpools confirms requests arriving before bootstrap
// completes are appended to the spool and still get a 204, per spec §4.5.
func TestHookBeforeBootstrapSpools(t *testing.T) {
	reg := registry.New()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "orbitdock.db"), persistence.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	spoolPath := filepath.Join(t.TempDir(), "hook-spool.ndjson")
	newActor := func(id string) registry.Handle {
		return sessionactor.New(transition.SessionState{ID: id}, sessionactor.Deps{Store: store})
	}
	h, err := NewHandler(reg, newActor, nil, store, spoolPath, filepath.Join(t.TempDir(), "hook-spool.dead"))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	// Deliberately not calling MarkBootstrapComplete.

	body := []byte(`{"type":"claude_session_start","session_id":"s1","cwd":"/tmp"}`)
	req := httptest.NewRequest("POST", "/api/hook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 204 {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, ok := reg.Lookup("s1"); ok {
		t.Fatal("expected no session registered before bootstrap completes")
	}

	if err := h.DrainSpool(); err != nil {
		t.Fatalf("drain spool: %v", err)
	}
	if _, ok := reg.Lookup("s1"); !ok {
		t.Fatal("expected session to exist after draining the spool")
	}
}

// TestHookLifecycleRoundTrip exercises spec §10's scenario 1 end to end.
func TestHookLifecycleRoundTrip(t *testing.T) {
	h, reg, _ := newTestHandler(t)

	post := func(body string) {
		t.Helper()
		req := httptest.NewRequest("POST", "/api/hook", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != 204 {
			t.Fatalf("status = %d, want 204 for body %s", rec.Code, body)
		}
	}

	post(`{"type":"claude_session_start","session_id":"s1","cwd":"/tmp","model":"m-a"}`)
	post(`{"type":"claude_status_event","session_id":"s1","event":"user_prompt_submit","prompt":"hi"}`)
	post(`{"type":"claude_session_end","session_id":"s1","reason":"user_quit"}`)

	handle, ok := reg.Lookup("s1")
	if !ok {
		t.Fatal("expected session s1 to exist")
	}
	actor := handle.(*sessionactor.Actor)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if actor.Snapshot().Status == transition.StatusEnded {
			break
		}
		time.Sleep(time.Millisecond)
	}

	snap := actor.Snapshot()
	if snap.Status != transition.StatusEnded {
		t.Fatalf("status = %q, want Ended", snap.Status)
	}
	if snap.FirstPrompt != "hi" {
		t.Fatalf("first_prompt = %q, want %q", snap.FirstPrompt, "hi")
	}
}
