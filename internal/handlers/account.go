package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"quill/internal/auth"
	"quill/internal/events"
	"quill/internal/models"
	"quill/internal/storage"
)

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	switch {
	case req.Email == "" || req.Username == "" || req.Password == "" || req.DisplayName == "":
		writeError(w, http.StatusBadRequest, "All fields required")
		return
	case !strings.Contains(req.Email, "@"):
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	case len(req.Password) < auth.MinPasswordLength:
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("hash password")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	u, err := h.store.CreateUser(r.Context(), models.NewUser{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
	})
	if err != nil {
		storeError(w, r, err, "")
		return
	}

	token, ok := h.startSession(w, r, u.ID)
	if !ok {
		return
	}
	h.publish(r, events.UserRegistered, events.UserRegisteredEvent{UserID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt})
	writeJSON(w, http.StatusCreated, authResponse{User: u, Token: token})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.store.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Wrong email or password")
		return
	} else if err != nil {
		storeError(w, r, err, "")
		return
	}
	if !auth.CheckPassword(req.Password, u.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Wrong email or password")
		return
	}

	token, ok := h.startSession(w, r, u.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

// startSession sets the session cookie and mints a bearer token.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, userID int64) (string, bool) {
	if err := h.sessions.Create(w, r, userID); err != nil {
		log.Error().Err(err).Int64("user", userID).Msg("create session")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return "", false
	}
	token, err := h.tokens.Generate(userID)
	if err != nil {
		log.Error().Err(err).Int64("user", userID).Msg("generate token")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return "", false
	}
	return token, true
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		log.Warn().Err(err).Msg("destroy session")
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUser(r.Context(), viewer(r))
	if err != nil {
		storeError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
