package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/AnshRaj112/salvioris-moderation/internal/middleware"
	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/AnshRaj112/salvioris-moderation/internal/repository"
	"github.com/AnshRaj112/salvioris-moderation/pkg/utils"
)

type ModeratorFinder interface {
	FindByUsername(ctx context.Context, username string) (*repository.Moderator, error)
}

type ModeratorSessions interface {
	CreateModeratorSession(ctx context.Context, moderatorID uuid.UUID) (string, error)
	InvalidateModeratorSession(ctx context.Context, token string) error
}

// ModeratorSigninRequest represents the request to sign in as moderator
type ModeratorSigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ModeratorSigninResponse represents the response after moderator signin
type ModeratorSigninResponse struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	Moderator map[string]interface{} `json:"moderator,omitempty"`
	Token     string                 `json:"token,omitempty"`
}

type AuthHandler struct {
	moderators ModeratorFinder
	sessions   ModeratorSessions
	logger     *slog.Logger
	verify     func(password, hash string) (bool, error)
}

func NewAuthHandler(moderators ModeratorFinder, sessions ModeratorSessions, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		moderators: moderators,
		sessions:   sessions,
		logger:     logger.With("module", "handlers"),
		verify:     utils.VerifyPassword,
	}
}

// Signin handles moderator login
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req ModeratorSigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ModeratorSigninResponse{Message: "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, ModeratorSigninResponse{Message: "Username and password are required"})
		return
	}

	moderator, err := h.moderators.FindByUsername(r.Context(), req.Username)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusUnauthorized, ModeratorSigninResponse{Message: "Invalid username or password"})
		return
	}
	if err != nil {
		h.logger.Error("moderator lookup failed", "operation", "signin", "outcome", "failure", "error", err)
		writeJSON(w, http.StatusInternalServerError, ModeratorSigninResponse{Message: "Database error"})
		return
	}

	valid, err := h.verify(req.Password, moderator.PasswordHash)
	if err != nil || !valid {
		writeJSON(w, http.StatusUnauthorized, ModeratorSigninResponse{Message: "Invalid username or password"})
		return
	}

	token, err := h.sessions.CreateModeratorSession(r.Context(), moderator.ID)
	if err != nil {
		h.logger.Error("create moderator session failed", "operation", "signin", "outcome", "failure", "error", err)
		writeJSON(w, http.StatusInternalServerError, ModeratorSigninResponse{Message: "Failed to create session"})
		return
	}

	h.logger.Info("moderator signed in", "operation", "signin", "outcome", "success", "moderator_id", moderator.ID.String())
	writeJSON(w, http.StatusOK, ModeratorSigninResponse{
		Success: true,
		Message: "Moderator signed in successfully",
		Moderator: map[string]interface{}{
			"id":       moderator.ID.String(),
			"username": moderator.Username,
			"email":    moderator.Email,
		},
		Token: token,
	})
}

// Signout drops the caller's session token.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeFail(w, http.StatusBadRequest, "Missing session token")
		return
	}
	if err := h.sessions.InvalidateModeratorSession(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Signed out", nil)
}
