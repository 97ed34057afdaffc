package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/db"
)

func sessionStores(t *testing.T) map[string]SessionStore {
	conn, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))
	for _, name := range []string{"alice", "bob"} {
		_, err := conn.Exec(`INSERT INTO users(email,username,password_hash,display_name,created_at) VALUES(?,?,?,?,?)`,
			name+"@example.com", name, "x", name, time.Now().UTC())
		require.NoError(t, err)
	}
	return map[string]SessionStore{
		"memory": NewMemSessions(),
		"sqlite": NewSQLSessions(conn),
	}
}

// login runs Create and returns the cookie it set.
func login(t *testing.T, m *Manager, userID int64) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, m.Create(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), userID))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	return cookies[0]
}

func requestWith(c *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if c != nil {
		r.AddCookie(c)
	}
	return r
}

func TestSessionLifecycle(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, time.Hour)

			_, ok := m.CurrentUserID(requestWith(nil))
			assert.False(t, ok)

			c := login(t, m, 1)
			uid, ok := m.CurrentUserID(requestWith(c))
			require.True(t, ok)
			assert.Equal(t, int64(1), uid)

			rec := httptest.NewRecorder()
			require.NoError(t, m.Destroy(rec, requestWith(c)))
			cleared := rec.Result().Cookies()
			require.Len(t, cleared, 1)
			assert.Equal(t, "", cleared[0].Value)

			_, ok = m.CurrentUserID(requestWith(c))
			assert.False(t, ok)
		})
	}
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, time.Hour)
			first := login(t, m, 2)
			second := login(t, m, 2)

			_, ok := m.CurrentUserID(requestWith(first))
			assert.False(t, ok)
			uid, ok := m.CurrentUserID(requestWith(second))
			assert.True(t, ok)
			assert.Equal(t, int64(2), uid)
		})
	}
}

func TestExpiredSession(t *testing.T) {
	m := NewManager(NewMemSessions(), time.Minute)
	c := login(t, m, 1)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok := m.CurrentUserID(requestWith(c))
	assert.False(t, ok)
}

func TestUnknownCookie(t *testing.T) {
	m := NewManager(NewMemSessions(), time.Minute)
	_, ok := m.CurrentUserID(requestWith(&http.Cookie{Name: sessionCookie, Value: "forged"}))
	assert.False(t, ok)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPassword("secret1", hash))
	assert.False(t, CheckPassword("secret2", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	tok, err := tm.Generate(42)
	require.NoError(t, err)

	claims, err := tm.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
}

func TestTokenRejected(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	tok, err := tm.Generate(42)
	require.NoError(t, err)

	_, err = NewTokenManager("other-secret", time.Hour).Verify(tok)
	assert.Error(t, err)

	expired, err := NewTokenManager("test-secret", -time.Minute).Generate(42)
	require.NoError(t, err)
	_, err = tm.Verify(expired)
	assert.Error(t, err)

	_, err = tm.Verify("not-a-token")
	assert.Error(t, err)
}
