package ingest

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
)

// TestHandleStatusBucketsByWorkStatus confirms GET /api/status reports
// session counts grouped by work_status plus the operational depth figures,
// grounded on the teacher's handleHealth.
func TestHandleStatusBucketsByWorkStatus(t *testing.T) {
	h, _, _ := newTestHandler(t)

	start := func(id string) {
		body := []byte(`{"type":"claude_session_start","session_id":"` + id + `","cwd":"/tmp"}`)
		req := httptest.NewRequest("POST", "/api/hook", bytes.NewReader(body))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	start("s1")
	start("s2")

	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var view statusView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if view.SessionCount != 2 {
		t.Fatalf("session_count = %d, want 2", view.SessionCount)
	}
	if total := sumCounts(view.ByWorkStatus); total != 2 {
		t.Fatalf("by_work_status total = %d, want 2: %+v", total, view.ByWorkStatus)
	}
}

func sumCounts(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
