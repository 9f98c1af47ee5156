package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhilgenberg/go-e-report/middleware"
)

type AuthHandler struct {
	passwordHash string
	jwtSecret    string
	now          func() time.Time
}

// NewAuthHandler checks logins against a bcrypt hash; an empty hash means
// the UI runs without login.
func NewAuthHandler(passwordHash, jwtSecret string) *AuthHandler {
	return &AuthHandler{passwordHash: passwordHash, jwtSecret: jwtSecret, now: time.Now}
}

func (h *AuthHandler) Enabled() bool {
	return h.passwordHash != ""
}

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.Enabled() {
		http.Error(w, "Login is disabled", http.StatusNotFound)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	now := h.now()
	tokenString, err := middleware.IssueToken(h.jwtSecret, "admin", now)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     tokenString,
		ExpiresAt: now.Add(middleware.TokenTTL),
	})
}
