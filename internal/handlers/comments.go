package handlers

import (
	"net/http"
	"strings"

	"quill/internal/events"
	"quill/internal/models"
)

type commentRequest struct {
	Content string `json:"content"`
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.visiblePost(w, r, id); !ok {
		return
	}
	comments, err := h.store.GetComments(r.Context(), id)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "Empty comments are not allowed")
		return
	}
	if _, ok := h.visiblePost(w, r, id); !ok {
		return
	}

	uid := viewer(r)
	author, err := h.store.GetUser(r.Context(), uid)
	if err != nil {
		storeError(w, r, err, "User not found")
		return
	}
	c, err := h.store.CreateComment(r.Context(), models.NewComment{PostID: id, UserID: uid, Content: content})
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	h.publish(r, events.PostCommented, events.PostCommentedEvent{CommentID: c.ID, PostID: id, UserID: uid, CreatedAt: c.CreatedAt})
	writeJSON(w, http.StatusCreated, models.CommentWithAuthor{Comment: *c, Author: models.SummaryOf(author)})
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ok, err := h.store.DeleteComment(r.Context(), id, viewer(r))
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
