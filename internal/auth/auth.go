package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const sessionCookie = "quill_session"

// ErrNoSession is returned by a SessionStore when the id is unknown.
var ErrNoSession = errors.New("session not found")

// SessionStore persists session ids. MemSessions and SQLSessions implement it.
type SessionStore interface {
	Save(ctx context.Context, id string, userID int64, expires time.Time) error
	Lookup(ctx context.Context, id string) (userID int64, expires time.Time, err error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID int64) error
}

// Manager issues cookie sessions. A user holds at most one session; logging
// in again replaces the previous one.
type Manager struct {
	store  SessionStore
	maxAge time.Duration
	now    func() time.Time
}

func NewManager(store SessionStore, maxAge time.Duration) *Manager {
	return &Manager{store: store, maxAge: maxAge, now: time.Now}
}

// Create starts a session for userID and sets the cookie on w.
func (m *Manager) Create(w http.ResponseWriter, r *http.Request, userID int64) error {
	ctx := r.Context()
	if err := m.store.DeleteForUser(ctx, userID); err != nil {
		return err
	}

	id := uuid.New().String()
	expires := m.now().Add(m.maxAge).UTC()
	if err := m.store.Save(ctx, id, userID, expires); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	return nil
}

// Destroy ends the request's session, if any, and clears the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	var err error
	if c, _ := r.Cookie(sessionCookie); c != nil && c.Value != "" {
		err = m.store.Delete(r.Context(), c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	return err
}

func (m *Manager) CurrentUserID(r *http.Request) (int64, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return 0, false
	}
	uid, exp, err := m.store.Lookup(r.Context(), c.Value)
	if err != nil || m.now().After(exp) {
		return 0, false
	}
	return uid, true
}
