package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/jiangkunoa/chat-practise/internal/store"
	"github.com/jiangkunoa/chat-practise/internal/token"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store  store.DataStore
	tokens *token.Manager
}

// NewHandler creates a new Handler with the given store and token manager.
func NewHandler(st store.DataStore, tokens *token.Manager) *Handler {
	return &Handler{store: st, tokens: tokens}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeUsername trims whitespace, strips control characters and limits the
// name to 64 characters.
func sanitizeUsername(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
