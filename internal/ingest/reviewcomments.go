package ingest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/orbitdock/orbitdock/internal/ids"
	"github.com/orbitdock/orbitdock/internal/persistence"
)

// reviewCommentView is the wire shape for a ReviewComment, matching
// persistence.ReviewComment field for field.
type reviewCommentView struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	FilePath  string    `json:"file_path"`
	LineRange string    `json:"line_range"`
	Body      string    `json:"body"`
	Tag       string    `json:"tag,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toReviewCommentView(c persistence.ReviewComment) reviewCommentView {
	return reviewCommentView{
		ID:        c.ID,
		SessionID: c.SessionID,
		FilePath:  c.FilePath,
		LineRange: c.LineRange,
		Body:      c.Body,
		Tag:       c.Tag,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

// handleCreateReviewComment implements POST /api/sessions/{id}/review-comments.
// ReviewComment has no operations in spec §3 beyond the entity shape; this
// endpoint is a supplemented feature (SPEC_FULL.md) since otherwise the
// schema has no way to ever be written to.
func (h *Handler) handleCreateReviewComment(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var body struct {
		FilePath  string `json:"file_path"`
		LineRange string `json:"line_range"`
		Body      string `json:"body"`
		Tag       string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.FilePath == "" || body.Body == "" {
		writeError(w, http.StatusBadRequest, "file_path and body are required")
		return
	}

	comment := persistence.ReviewComment{
		ID:        ids.NewRequestID(),
		SessionID: sessionID,
		FilePath:  body.FilePath,
		LineRange: body.LineRange,
		Body:      body.Body,
		Tag:       body.Tag,
		Status:    "Open",
		CreatedAt: time.Now(),
	}
	h.store.Enqueue(persistence.UpsertReviewCommentCmd{Comment: comment})

	writeJSON(w, http.StatusAccepted, toReviewCommentView(comment))
}

// handleListReviewComments implements GET /api/sessions/{id}/review-comments.
func (h *Handler) handleListReviewComments(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	comments, err := h.store.ReviewComments(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load review comments")
		return
	}

	views := make([]reviewCommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, toReviewCommentView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

// handlePatchReviewComment implements PATCH
// /api/sessions/{id}/review-comments/{commentID}, restricted to the one
// field a reviewer actually changes after creation: status.
func (h *Handler) handlePatchReviewComment(w http.ResponseWriter, r *http.Request) {
	commentID := r.PathValue("commentID")

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Status != "Open" && body.Status != "Resolved" {
		writeError(w, http.StatusBadRequest, `status must be "Open" or "Resolved"`)
		return
	}

	h.store.Enqueue(persistence.SetReviewCommentStatusCmd{ID: commentID, Status: body.Status})
	writeJSON(w, http.StatusAccepted, map[string]string{"id": commentID, "status": body.Status})
}
