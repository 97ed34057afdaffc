package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/auth"
	"quill/internal/cache"
	"quill/internal/events"
	"quill/internal/models"
	"quill/internal/storage"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	events *events.Recorder
}

func newTestServer(t *testing.T) *testServer {
	rec := &events.Recorder{}
	h := New(
		storage.NewMemStorage(),
		auth.NewManager(auth.NewMemSessions(), time.Hour),
		auth.NewTokenManager("test-secret", time.Hour),
		cache.NewLRU(16, time.Minute),
		rec,
	)
	return &testServer{t: t, router: h.Routes(), events: rec}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// register creates a user and returns its id and bearer token.
func (s *testServer) register(name string) (int64, string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", "", registerRequest{
		Email:       name + "@example.com",
		Username:    name,
		Password:    "password",
		DisplayName: strings.ToUpper(name[:1]) + name[1:],
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[authResponse](s.t, rec)
	require.NotEmpty(s.t, resp.Token)
	return resp.User.ID, resp.Token
}

func (s *testServer) createPost(token, title string, tags ...string) models.PostWithAuthor {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/posts", token, postRequest{Title: title, Content: "Content of " + title, Tags: tags})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.PostWithAuthor](s.t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		req  registerRequest
		code int
	}{
		{"missing field", registerRequest{Email: "a@example.com", Username: "a", Password: "secret1"}, http.StatusBadRequest},
		{"bad email", registerRequest{Email: "nope", Username: "a", Password: "secret1", DisplayName: "A"}, http.StatusBadRequest},
		{"short password", registerRequest{Email: "a@example.com", Username: "a", Password: "12345", DisplayName: "A"}, http.StatusBadRequest},
		{"ok", registerRequest{Email: "a@example.com", Username: "a", Password: "123456", DisplayName: "A"}, http.StatusCreated},
		{"duplicate email", registerRequest{Email: "a@example.com", Username: "b", Password: "123456", DisplayName: "B"}, http.StatusConflict},
		{"duplicate username", registerRequest{Email: "b@example.com", Username: "a", Password: "123456", DisplayName: "B"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/auth/register", "", tt.req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(http.MethodPost, "/api/auth/register", "", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[errorBody](t, rec).Message)
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.register("alice")
	assert.Equal(t, []string{events.UserRegistered}, s.events.Subjects())

	rec := s.do(http.MethodPost, "/api/auth/login", "", loginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodPost, "/api/auth/login", "", loginRequest{Email: "nobody@example.com", Password: "password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", "", loginRequest{Email: "alice@example.com", Password: "password"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[authResponse](t, rec)
	assert.NotContains(t, rec.Body.String(), "password")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	// bearer token
	rec = s.do(http.MethodGet, "/api/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[models.User](t, rec).ID)

	// session cookie
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookies[0])
	out := httptest.NewRecorder()
	s.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)

	rec = s.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := auth.NewTokenManager("some-other-secret", time.Hour).Generate(id)
	require.NoError(t, err)
	rec = s.do(http.MethodGet, "/api/auth/me", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "tokens signed with another secret are rejected")
}

func TestPostLifecycle(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register("alice")
	_, bob := s.register("bob")

	rec := s.do(http.MethodPost, "/api/posts", "", postRequest{Title: "x", Content: "y"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodPost, "/api/posts", alice, postRequest{Title: " ", Content: "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long := strings.Repeat("é", ExcerptLength+40)
	rec = s.do(http.MethodPost, "/api/posts", alice, postRequest{Title: "Hello", Content: long, Tags: []string{"intro", " "}})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decode[models.PostWithAuthor](t, rec)
	assert.True(t, p.Published)
	assert.Equal(t, []string{"intro"}, p.Tags)
	assert.Equal(t, ExcerptLength, len([]rune(p.Excerpt)))
	assert.Equal(t, "alice", p.Author.Username)

	postPath := fmt.Sprintf("/api/posts/%d", p.ID)

	rec = s.do(http.MethodPost, postPath+"/like", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	liked := decode[models.PostWithAuthor](t, rec)
	assert.Equal(t, 1, liked.LikeCount)
	assert.True(t, liked.IsLiked)

	rec = s.do(http.MethodGet, "/api/posts", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.PostWithAuthor](t, rec)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsLiked)

	rec = s.do(http.MethodGet, "/api/posts", "", nil)
	list = decode[[]models.PostWithAuthor](t, rec)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsLiked)

	rec = s.do(http.MethodPatch, postPath, bob, models.PostUpdate{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	title := "Hello again"
	rec = s.do(http.MethodPatch, postPath, alice, models.PostUpdate{Title: &title})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, title, decode[models.PostWithAuthor](t, rec).Title)

	rec = s.do(http.MethodDelete, postPath, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodGet, postPath, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, postPath, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, postPath, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Post not found", decode[errorBody](t, rec).Message)

	assert.Equal(t, []string{
		events.UserRegistered, events.UserRegistered,
		events.PostCreated, events.PostLiked, events.PostDeleted,
	}, s.events.Subjects())
}

func TestUnlikeAndBookmarks(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register("alice")
	p := s.createPost(alice, "Hello")
	postPath := fmt.Sprintf("/api/posts/%d", p.ID)

	rec := s.do(http.MethodDelete, postPath+"/like", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, postPath+"/bookmark", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.PostWithAuthor](t, rec).IsBookmarked)

	rec = s.do(http.MethodGet, "/api/bookmarks", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.PostWithAuthor](t, rec), 1)

	rec = s.do(http.MethodDelete, postPath+"/bookmark", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.PostWithAuthor](t, rec).IsBookmarked)

	rec = s.do(http.MethodPost, "/api/posts/999/bookmark", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodPost, "/api/posts/abc/like", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDraftsAreHidden(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register("alice")
	_, bob := s.register("bob")

	draft := false
	rec := s.do(http.MethodPost, "/api/posts", alice, postRequest{Title: "Draft", Content: "wip", Published: &draft})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decode[models.PostWithAuthor](t, rec)
	assert.False(t, p.Published)

	path := fmt.Sprintf("/api/posts/%d", p.ID)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, path+"/like", bob, nil).Code)

	rec = s.do(http.MethodGet, "/api/posts", alice, nil)
	assert.Empty(t, decode[[]models.PostWithAuthor](t, rec))
}

func TestComments(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register("alice")
	_, bob := s.register("bob")
	p := s.createPost(alice, "Hello")
	path := fmt.Sprintf("/api/posts/%d/comments", p.ID)

	rec := s.do(http.MethodPost, path, bob, commentRequest{Content: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, path, bob, commentRequest{Content: "Nice post"})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decode[models.CommentWithAuthor](t, rec)
	assert.Equal(t, "bob", c.Author.Username)

	rec = s.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments := decode[[]models.CommentWithAuthor](t, rec)
	require.Len(t, comments, 1)
	assert.Equal(t, "Nice post", comments[0].Content)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", p.ID), "", nil)
	assert.Equal(t, 1, decode[models.PostWithAuthor](t, rec).CommentCount)

	commentPath := fmt.Sprintf("/api/comments/%d", c.ID)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, commentPath, alice, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, commentPath, bob, nil).Code)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/posts/404/comments", "", nil).Code)
}

func TestFollowAndFeed(t *testing.T) {
	s := newTestServer(t)
	aliceID, alice := s.register("alice")
	bobID, bob := s.register("bob")
	s.createPost(bob, "From bob")

	rec := s.do(http.MethodPost, fmt.Sprintf("/api/users/%d/follow", aliceID), alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/users/99/follow", alice, nil).Code)

	rec = s.do(http.MethodGet, "/api/feed", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.PostWithAuthor](t, rec))

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/users/%d/follow", bobID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[models.UserProfile](t, rec)
	assert.True(t, profile.IsFollowing)
	assert.Equal(t, 1, profile.FollowerCount)
	assert.Equal(t, 1, profile.PostCount)

	rec = s.do(http.MethodGet, "/api/feed", alice, nil)
	feed := decode[[]models.PostWithAuthor](t, rec)
	require.Len(t, feed, 1)
	assert.Equal(t, "From bob", feed[0].Title)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/users/%d/followers", bobID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	followers := decode[[]models.UserProfile](t, rec)
	require.Len(t, followers, 1)
	assert.Equal(t, aliceID, followers[0].ID)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/users/%d/posts", bobID), "", nil)
	assert.Len(t, decode[[]models.PostWithAuthor](t, rec), 1)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/api/users/%d/follow", bobID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.UserProfile](t, rec).IsFollowing)
	rec = s.do(http.MethodDelete, fmt.Sprintf("/api/users/%d/follow", bobID), alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/users/suggested", alice, nil)
	suggested := decode[[]models.UserProfile](t, rec)
	require.Len(t, suggested, 1)
	assert.Equal(t, bobID, suggested[0].ID)
}

func TestUpdateMe(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register("alice")

	empty := " "
	rec := s.do(http.MethodPatch, "/api/users/me", alice, models.UserUpdate{DisplayName: &empty})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bio := "Gopher"
	rec = s.do(http.MethodPatch, "/api/users/me", alice, models.UserUpdate{Bio: &bio})
	require.Equal(t, http.StatusOK, rec.Code)
	u := decode[models.User](t, rec)
	require.NotNil(t, u.Bio)
	assert.Equal(t, bio, *u.Bio)
}

func TestMessaging(t *testing.T) {
	s := newTestServer(t)
	aliceID, alice := s.register("alice")
	bobID, bob := s.register("bob")
	toBob := fmt.Sprintf("/api/messages/%d", bobID)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, toBob, alice, messageRequest{Content: ""}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, fmt.Sprintf("/api/messages/%d", aliceID), alice, messageRequest{Content: "me"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/messages/77", alice, messageRequest{Content: "hi"}).Code)

	for i := 0; i < 3; i++ {
		rec := s.do(http.MethodPost, toBob, alice, messageRequest{Content: fmt.Sprintf("hi %d", i)})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(http.MethodGet, "/api/messages/unread", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[map[string]int](t, rec)["count"])

	rec = s.do(http.MethodGet, "/api/messages/conversations", bob, nil)
	convs := decode[[]models.Conversation](t, rec)
	require.Len(t, convs, 1)
	assert.Equal(t, aliceID, convs[0].OtherUser.ID)
	assert.Equal(t, 3, convs[0].UnreadCount)
	assert.Equal(t, "hi 2", convs[0].LastMessage.Content)

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/messages/%d?limit=2", aliceID), bob, nil)
	msgs := decode[[]models.Message](t, rec)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi 1", msgs[0].Content)

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/messages/%d/read", aliceID), bob, nil)
	assert.True(t, decode[map[string]bool](t, rec)["updated"])
	rec = s.do(http.MethodPost, fmt.Sprintf("/api/messages/%d/read", aliceID), bob, nil)
	assert.False(t, decode[map[string]bool](t, rec)["updated"])

	rec = s.do(http.MethodGet, "/api/messages/unread", bob, nil)
	assert.Equal(t, 0, decode[map[string]int](t, rec)["count"])

	assert.Contains(t, s.events.Subjects(), events.MessageSent)
}

func TestTrendingTagsCacheInvalidation(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.register("alice")
	s.createPost(alice, "One", "go")

	rec := s.do(http.MethodGet, "/api/tags/trending", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.TagCount{{Tag: "go", Count: 1}}, decode[[]models.TagCount](t, rec))

	s.createPost(alice, "Two", "go", "web")
	rec = s.do(http.MethodGet, "/api/tags/trending", "", nil)
	assert.Equal(t, []models.TagCount{{Tag: "go", Count: 2}, {Tag: "web", Count: 1}}, decode[[]models.TagCount](t, rec))
}

func TestRoutingFallbacks(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestWithRecover(t *testing.T) {
	h := WithRecover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode[errorBody](t, rec).Message)
}
