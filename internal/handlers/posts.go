package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"quill/internal/cache"
	"quill/internal/events"
	"quill/internal/models"
	"quill/internal/storage"
)

// ExcerptLength is the number of runes of content used when a post is
// created without an excerpt.
const ExcerptLength = 160

type postRequest struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Excerpt   string   `json:"excerpt"`
	ImageURL  *string  `json:"imageUrl"`
	Tags      []string `json:"tags"`
	Published *bool    `json:"published"`
}

func excerptOf(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) > ExcerptLength {
		runes = runes[:ExcerptLength]
	}
	return string(runes)
}

// cleanTags trims tags and drops empty ones, keeping the given order.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := models.PostQuery{
		Search:   strings.TrimSpace(qs.Get("search")),
		Tag:      strings.TrimSpace(qs.Get("tag")),
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
		ViewerID: viewer(r),
	}
	if v := qs.Get("authorId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid authorId")
			return
		}
		q.AuthorID = id
	}

	posts, err := h.store.GetPosts(r.Context(), q)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// visiblePost loads a post for the caller. Drafts are only visible to their
// author.
func (h *Handler) visiblePost(w http.ResponseWriter, r *http.Request, id int64) (*models.PostWithAuthor, bool) {
	uid := viewer(r)
	p, err := h.store.GetPost(r.Context(), id, uid)
	if err == nil && !p.Published && p.AuthorID != uid {
		err = storage.ErrNotFound
	}
	if err != nil {
		storeError(w, r, err, "Post not found")
		return nil, false
	}
	return p, true
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if p, ok := h.visiblePost(w, r, id); ok {
		writeJSON(w, http.StatusOK, p)
	}
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Title and content required")
		return
	}
	if strings.TrimSpace(req.Excerpt) == "" {
		req.Excerpt = excerptOf(req.Content)
	}
	published := true
	if req.Published != nil {
		published = *req.Published
	}

	uid := viewer(r)
	p, err := h.store.CreatePost(r.Context(), models.NewPost{
		Title:     req.Title,
		Content:   req.Content,
		Excerpt:   req.Excerpt,
		AuthorID:  uid,
		ImageURL:  req.ImageURL,
		Tags:      cleanTags(req.Tags),
		Published: published,
	})
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	h.invalidateTrending(r)
	h.publish(r, events.PostCreated, events.PostEvent{PostID: p.ID, AuthorID: uid, Title: p.Title, Tags: p.Tags, CreatedAt: p.CreatedAt})
	h.respondPost(w, r, http.StatusCreated, p.ID)
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var upd models.PostUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}
	if upd.Content != nil && strings.TrimSpace(*upd.Content) == "" {
		writeError(w, http.StatusBadRequest, "Content cannot be empty")
		return
	}
	if upd.Tags != nil {
		tags := cleanTags(*upd.Tags)
		upd.Tags = &tags
	}

	_, ok, err := h.store.UpdatePost(r.Context(), id, viewer(r), upd)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	h.invalidateTrending(r)
	h.respondPost(w, r, http.StatusOK, id)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	uid := viewer(r)
	ok, err := h.store.DeletePost(r.Context(), id, uid)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	h.invalidateTrending(r)
	h.publish(r, events.PostDeleted, events.PostEvent{PostID: id, AuthorID: uid})
	w.WriteHeader(http.StatusNoContent)
}

// respondPost writes the enriched view of post id as seen by the caller.
func (h *Handler) respondPost(w http.ResponseWriter, r *http.Request, status int, id int64) {
	p, err := h.store.GetPost(r.Context(), id, viewer(r))
	if err != nil {
		storeError(w, r, err, "Post not found")
		return
	}
	writeJSON(w, status, p)
}

func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.visiblePost(w, r, id); !ok {
		return
	}
	l, err := h.store.LikePost(r.Context(), viewer(r), id)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	h.publish(r, events.PostLiked, events.PostLikedEvent{PostID: id, UserID: l.UserID, CreatedAt: l.CreatedAt})
	h.respondPost(w, r, http.StatusOK, id)
}

func (h *Handler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ok, err := h.store.UnlikePost(r.Context(), viewer(r), id)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Like not found")
		return
	}
	h.respondPost(w, r, http.StatusOK, id)
}

func (h *Handler) BookmarkPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.visiblePost(w, r, id); !ok {
		return
	}
	if _, err := h.store.BookmarkPost(r.Context(), viewer(r), id); err != nil {
		storeError(w, r, err, "")
		return
	}
	h.respondPost(w, r, http.StatusOK, id)
}

func (h *Handler) UnbookmarkPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ok, err := h.store.UnbookmarkPost(r.Context(), viewer(r), id)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Bookmark not found")
		return
	}
	h.respondPost(w, r, http.StatusOK, id)
}

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.GetFeed(r.Context(), viewer(r), queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) Bookmarks(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.GetBookmarkedPosts(r.Context(), viewer(r))
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// TrendingTags serves the trending tag list from the cache when it holds one.
func (h *Handler) TrendingTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cache != nil {
		var tags []models.TagCount
		found, err := h.cache.Get(ctx, cache.TrendingTagsKey, &tags)
		if err != nil {
			log.Warn().Err(err).Msg("read trending tags cache")
		} else if found {
			writeJSON(w, http.StatusOK, tags)
			return
		}
	}

	tags, err := h.store.GetTrendingTags(ctx)
	if err != nil {
		storeError(w, r, err, "")
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, cache.TrendingTagsKey, tags); err != nil {
			log.Warn().Err(err).Msg("write trending tags cache")
		}
	}
	writeJSON(w, http.StatusOK, tags)
}
