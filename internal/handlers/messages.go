package handlers

import (
	"net/http"
	"strings"

	"quill/internal/events"
	"quill/internal/models"
	"quill/internal/storage"
)

type messageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) Conversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.store.GetConversations(r.Context(), viewer(r))
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.GetUnreadMessageCount(r.Context(), viewer(r))
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	other, ok := pathID(w, r, "userId")
	if !ok || !h.userExists(w, r, other) {
		return
	}
	msgs, err := h.store.GetMessages(r.Context(), viewer(r), other, queryInt(r, "limit", storage.DefaultMessageLimit))
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	other, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	var req messageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	uid := viewer(r)
	if other == uid {
		writeError(w, http.StatusBadRequest, "You cannot message yourself")
		return
	}
	if !h.userExists(w, r, other) {
		return
	}

	m, err := h.store.SendMessage(r.Context(), models.NewMessage{SenderID: uid, ReceiverID: other, Content: content})
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	h.publish(r, events.MessageSent, events.MessageSentEvent{MessageID: m.ID, SenderID: uid, ReceiverID: other, CreatedAt: m.CreatedAt})
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	other, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	changed, err := h.store.MarkMessagesAsRead(r.Context(), viewer(r), other)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": changed})
}
