package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"lablens/internal/auth"
	"lablens/internal/config"
)

// AuthHandler handles the demo session endpoints. There is no user
// store: one user account and one administrator account are configured
// through the environment.
type AuthHandler struct {
	authService *auth.Service
	config      *config.AuthConfig
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, cfg *config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		config:      cfg,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session token
type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login authenticates one of the configured demo accounts and issues a
// session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return
	}

	role, ok := h.authenticate(req.Email, req.Password)
	if !ok {
		slog.Warn("Login failed", "email", req.Email)
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(req.Email, role)
	if err != nil {
		slog.Error("Failed to generate token", "email", req.Email, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	slog.Info("Login successful", "email", req.Email, "role", role)
	respondWithJSON(w, http.StatusOK, LoginResponse{Token: token, Email: req.Email, Role: role})
}

func (h *AuthHandler) authenticate(email, password string) (string, bool) {
	if email == h.config.DemoUserEmail {
		if subtle.ConstantTimeCompare([]byte(password), []byte(h.config.DemoUserPassword)) == 1 {
			return auth.RoleUser, true
		}
		return "", false
	}
	if email == h.config.AdminEmail && h.config.AdminPasswordHash != "" {
		if h.authService.VerifyPassword(h.config.AdminPasswordHash, password) == nil {
			return auth.RoleAdmin, true
		}
	}
	return "", false
}

// Logout ends the session. Tokens are stateless, so the server only
// acknowledges; the client discards its copy.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
