package handlers

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/jiangkunoa/chat-practise/internal/api/middleware"
)

// minPasswordLen rejects trivially weak passwords at registration.
const minPasswordLen = 6

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token used by both the HTTP API and the
// chat handshake.
type LoginResponse struct {
	Token string `json:"token"`
}

// UpdatePasswordRequest represents the password change request body.
type UpdatePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Register handles account creation.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Username = sanitizeUsername(req.Username)
	if req.Username == "" {
		h.Error(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(req.Password) < minPasswordLen {
		h.Error(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	existing, err := h.store.GetUserByName(r.Context(), req.Username)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil {
		h.Error(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := h.store.CreateUser(r.Context(), req.Username, string(hash)); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.JSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

// Login verifies credentials and issues a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.store.GetUserByName(r.Context(), req.Username)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.Error(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	tok, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.JSON(w, http.StatusOK, LoginResponse{Token: tok})
}

// UpdatePassword changes the authenticated user's password.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.NewPassword) < minPasswordLen {
		h.Error(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		h.Error(w, http.StatusUnauthorized, "old password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := h.store.UpdateUserPassword(r.Context(), user.ID, string(hash)); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
