package ingest

import (
	"net/http"

	"github.com/orbitdock/orbitdock/internal/registry"
	"github.com/orbitdock/orbitdock/internal/transition"
)

// snapshottable is the narrow read capability handleStatus needs from a
// registered handle; *sessionactor.Actor satisfies it alongside
// SessionHandle.
type snapshottable interface {
	Snapshot() transition.SessionState
}

type statusView struct {
	SessionCount  int            `json:"session_count"`
	ByWorkStatus  map[string]int `json:"by_work_status"`
	SpoolDepth    int            `json:"spool_depth_bytes"`
	PersistQueue  int            `json:"persist_queue_depth"`
}

// handleStatus implements GET /api/status, grounded on the teacher's
// handleHealth (session/queue counts instead of VM idle time), and is what
// the `status` CLI verb polls.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	byWork := map[string]int{}
	count := 0
	h.registry.IterActive(func(_ string, handle registry.Handle) {
		count++
		if s, ok := handle.(snapshottable); ok {
			byWork[string(s.Snapshot().WorkStatus)]++
		}
	})

	spoolDepth, _ := spoolFileSize(h.spool.path)

	writeJSON(w, http.StatusOK, statusView{
		SessionCount: count,
		ByWorkStatus: byWork,
		SpoolDepth:   spoolDepth,
		PersistQueue: h.store.QueueDepth(),
	})
}
