package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes builds the API router. Every route passes through panic recovery,
// request logging and caller identification.
func (h *Handler) Routes() http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.HandleFunc("/health", h.Health).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	auth := h.RequireAuth

	api.HandleFunc("/auth/register", h.Register).Methods("POST")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	api.HandleFunc("/auth/me", auth(h.Me)).Methods("GET")

	api.HandleFunc("/posts", h.ListPosts).Methods("GET")
	api.HandleFunc("/posts", auth(h.CreatePost)).Methods("POST")
	api.HandleFunc("/posts/{id}", h.GetPost).Methods("GET")
	api.HandleFunc("/posts/{id}", auth(h.UpdatePost)).Methods("PATCH")
	api.HandleFunc("/posts/{id}", auth(h.DeletePost)).Methods("DELETE")
	api.HandleFunc("/posts/{id}/like", auth(h.LikePost)).Methods("POST")
	api.HandleFunc("/posts/{id}/like", auth(h.UnlikePost)).Methods("DELETE")
	api.HandleFunc("/posts/{id}/bookmark", auth(h.BookmarkPost)).Methods("POST")
	api.HandleFunc("/posts/{id}/bookmark", auth(h.UnbookmarkPost)).Methods("DELETE")
	api.HandleFunc("/posts/{id}/comments", h.ListComments).Methods("GET")
	api.HandleFunc("/posts/{id}/comments", auth(h.CreateComment)).Methods("POST")
	api.HandleFunc("/comments/{id}", auth(h.DeleteComment)).Methods("DELETE")

	api.HandleFunc("/feed", auth(h.Feed)).Methods("GET")
	api.HandleFunc("/bookmarks", auth(h.Bookmarks)).Methods("GET")
	api.HandleFunc("/tags/trending", h.TrendingTags).Methods("GET")

	api.HandleFunc("/users/suggested", h.SuggestedAuthors).Methods("GET")
	api.HandleFunc("/users/me", auth(h.UpdateMe)).Methods("PATCH")
	api.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	api.HandleFunc("/users/{id}/posts", h.UserPosts).Methods("GET")
	api.HandleFunc("/users/{id}/followers", h.Followers).Methods("GET")
	api.HandleFunc("/users/{id}/following", h.Following).Methods("GET")
	api.HandleFunc("/users/{id}/follow", auth(h.Follow)).Methods("POST")
	api.HandleFunc("/users/{id}/follow", auth(h.Unfollow)).Methods("DELETE")

	api.HandleFunc("/messages/conversations", auth(h.Conversations)).Methods("GET")
	api.HandleFunc("/messages/unread", auth(h.UnreadCount)).Methods("GET")
	api.HandleFunc("/messages/{userId}", auth(h.Messages)).Methods("GET")
	api.HandleFunc("/messages/{userId}", auth(h.SendMessage)).Methods("POST")
	api.HandleFunc("/messages/{userId}/read", auth(h.MarkRead)).Methods("POST")

	return WithRecover(LogRequests(h.WithUser(router)))
}
