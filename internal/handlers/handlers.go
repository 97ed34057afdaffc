package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"quill/internal/auth"
	"quill/internal/cache"
	"quill/internal/events"
	"quill/internal/storage"
)

type Handler struct {
	store    storage.Storage
	sessions *auth.Manager
	tokens   *auth.TokenManager
	cache    cache.Cache
	events   events.Publisher
}

func New(store storage.Storage, sessions *auth.Manager, tokens *auth.TokenManager, c cache.Cache, pub events.Publisher) *Handler {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Handler{store: store, sessions: sessions, tokens: tokens, cache: c, events: pub}
}

type ctxKey int

const userKey ctxKey = iota

// identify resolves the caller from a bearer token or the session cookie.
func (h *Handler) identify(r *http.Request) (int64, bool) {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		parts := strings.SplitN(hdr, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return 0, false
		}
		claims, err := h.tokens.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, false
		}
		return claims.UserID, true
	}
	return h.sessions.CurrentUserID(r)
}

// WithUser stores the caller's id, or 0 for anonymous requests, in the
// request context.
func (h *Handler) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := h.identify(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, uid)))
	})
}

func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if viewer(r) == 0 {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// viewer is the authenticated user id, 0 when anonymous.
func viewer(r *http.Request) int64 {
	uid, _ := r.Context().Value(userKey).(int64)
	return uid
}

// publish announces a domain event. Failures are logged and never reach the
// client.
func (h *Handler) publish(r *http.Request, subject string, event any) {
	if err := h.events.Publish(r.Context(), subject, event); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("publish event")
	}
}

func (h *Handler) invalidateTrending(r *http.Request) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(r.Context(), cache.TrendingTagsKey); err != nil {
		log.Warn().Err(err).Msg("invalidate trending tags")
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
