package api

import (
	"net/http"
	"strings"

	"github.com/ghosttrack/ghosttrack/internal/auth"
)

// Auth endpoints are deliberate stubs: a single configured admin password
// and a signed placeholder token. There is no user store.

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies the configured admin password and issues a token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid login payload")
		return
	}

	if h.cfg.AdminPasswordHash == "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Auth not configured - run `ghosttrack init` to set an admin password",
		})
		return
	}

	if !auth.VerifyPassword(req.Password, h.cfg.AdminPasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.auth.GenerateToken(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// Me echoes the identity behind a bearer token.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		writeError(w, http.StatusUnauthorized, "Missing bearer token")
		return
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"username": claims.Username,
		"message":  "GhostTrack auth is a placeholder",
	})
}
