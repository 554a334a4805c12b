package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const moderatorIDKey contextKey = "moderator_id"

// SessionValidator resolves a moderator session token.
type SessionValidator interface {
	ValidateModeratorSession(ctx context.Context, token string) (uuid.UUID, bool, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireModerator rejects requests without a live moderator session and
// stores the moderator id in the request context.
func RequireModerator(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				unauthorized(w, "Missing session token")
				return
			}
			moderatorID, ok, err := sessions.ValidateModeratorSession(r.Context(), token)
			if err != nil || !ok {
				unauthorized(w, "Invalid or expired session")
				return
			}
			ctx := WithModeratorID(r.Context(), moderatorID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"` + message + `"}`))
}

func WithModeratorID(ctx context.Context, moderatorID string) context.Context {
	return context.WithValue(ctx, moderatorIDKey, moderatorID)
}

// ModeratorIDFromContext returns the moderator set by RequireModerator, or "".
func ModeratorIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(moderatorIDKey).(string)
	return id
}
