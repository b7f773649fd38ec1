package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/orbitdock/orbitdock/internal/transition"
)

// TestCreateSessionUnconfiguredReturns503 confirms a server with no connector
// agent command wired responds 503 rather than silently no-opping.
func TestCreateSessionUnconfiguredReturns503(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/sessions", bytes.NewReader([]byte(`{"project_path":"/tmp/proj"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

// TestCreateSessionAttachesAndSeeds confirms a successful attach answers 201
// with a session id and registers a handle that satisfies SessionHandle.
func TestCreateSessionAttachesAndSeeds(t *testing.T) {
	h, reg, _ := newTestHandler(t)
	h.attachDirect = func(ctx context.Context, sessionID, cwd, previousACPSessionID string, deliver func(transition.Input) bool) error {
		return nil
	}

	body := []byte(`{"project_path":"/tmp/proj","branch":"main"}`)
	req := httptest.NewRequest("POST", "/api/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
	var resp createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.SessionID == "" {
		t.Fatalf("expected a session_id in the response, got %s (err=%v)", rec.Body.String(), err)
	}

	handle, ok := reg.Lookup(resp.SessionID)
	if !ok {
		t.Fatal("expected the new session to be registered")
	}
	if _, ok := handle.(SessionHandle); !ok {
		t.Fatal("registered handle does not satisfy SessionHandle")
	}
}

// TestCreateSessionAttachFailureReturns502 confirms a failed connector
// attach is reported to the caller as 502 Bad Gateway.
func TestCreateSessionAttachFailureReturns502(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.attachDirect = func(ctx context.Context, sessionID, cwd, previousACPSessionID string, deliver func(transition.Input) bool) error {
		return errors.New("agent binary not found")
	}

	req := httptest.NewRequest("POST", "/api/sessions", bytes.NewReader([]byte(`{"project_path":"/tmp/proj"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 502 {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}
