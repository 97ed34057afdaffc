package handlers

import (
	"net/http"
	"strings"

	"quill/internal/events"
	"quill/internal/models"
)

const defaultSuggestions = 5

func (h *Handler) SuggestedAuthors(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.GetSuggestedAuthors(r.Context(), viewer(r), queryInt(r, "limit", defaultSuggestions))
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd models.UserUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			writeError(w, http.StatusBadRequest, "Display name cannot be empty")
			return
		}
		upd.DisplayName = &name
	}
	u, err := h.store.UpdateUser(r.Context(), viewer(r), upd)
	if err != nil {
		storeError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.store.GetUserProfile(r.Context(), id, viewer(r))
	if err != nil {
		storeError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// userExists writes a 404 and returns false when id names no user.
func (h *Handler) userExists(w http.ResponseWriter, r *http.Request, id int64) bool {
	if _, err := h.store.GetUser(r.Context(), id); err != nil {
		storeError(w, r, err, "User not found")
		return false
	}
	return true
}

func (h *Handler) UserPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !h.userExists(w, r, id) {
		return
	}
	posts, err := h.store.GetPosts(r.Context(), models.PostQuery{AuthorID: id, ViewerID: viewer(r)})
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) Followers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !h.userExists(w, r, id) {
		return
	}
	users, err := h.store.GetFollowers(r.Context(), id, viewer(r))
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) Following(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !h.userExists(w, r, id) {
		return
	}
	users, err := h.store.GetFollowing(r.Context(), id, viewer(r))
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !h.userExists(w, r, id) {
		return
	}
	f, err := h.store.FollowUser(r.Context(), viewer(r), id)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	h.publish(r, events.UserFollowed, events.UserFollowedEvent{FollowerID: f.FollowerID, FollowingID: f.FollowingID, CreatedAt: f.CreatedAt})
	h.GetUser(w, r)
}

func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ok, err := h.store.UnfollowUser(r.Context(), viewer(r), id)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Not following this user")
		return
	}
	h.GetUser(w, r)
}
