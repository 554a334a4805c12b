package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// ModeratorSessionDuration is 12 hours
	ModeratorSessionDuration = 12 * time.Hour
	// ModeratorSessionKeyPrefix is the Redis key prefix for moderator sessions
	ModeratorSessionKeyPrefix = "moderator_session:"
	// ModeratorToSessionKeyPrefix maps a moderator to their current session
	ModeratorToSessionKeyPrefix = "moderator_to_session:"

	// Platform user sessions, written by the identity service
	SessionKeyPrefix     = "session:"
	UserSessionKeyPrefix = "user_session:"
	// TokenInvalidatedKeyPrefix marks users whose tokens issued before the
	// stored timestamp must be rejected
	TokenInvalidatedKeyPrefix = "user_token_invalidated:"
	tokenInvalidatedTTL       = 30 * 24 * time.Hour
)

// SessionStore owns moderator sessions and user session invalidation in Redis.
type SessionStore struct {
	redis *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{redis: client}
}

// CreateModeratorSession issues a new token. Any previous session for the
// moderator is dropped so only one is live at a time.
func (s *SessionStore) CreateModeratorSession(ctx context.Context, moderatorID uuid.UUID) (string, error) {
	_ = s.InvalidateModeratorSessions(ctx, moderatorID)

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, ModeratorSessionKeyPrefix+token, moderatorID.String(), ModeratorSessionDuration)
	pipe.Set(ctx, ModeratorToSessionKeyPrefix+moderatorID.String(), token, ModeratorSessionDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateModeratorSession returns the moderator behind token, or false.
func (s *SessionStore) ValidateModeratorSession(ctx context.Context, token string) (uuid.UUID, bool, error) {
	if token == "" {
		return uuid.Nil, false, nil
	}
	raw, err := s.redis.Get(ctx, ModeratorSessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (s *SessionStore) InvalidateModeratorSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	key := ModeratorSessionKeyPrefix + token
	if id, err := s.redis.Get(ctx, key).Result(); err == nil && id != "" {
		s.redis.Del(ctx, ModeratorToSessionKeyPrefix+id)
	}
	return s.redis.Del(ctx, key).Err()
}

func (s *SessionStore) InvalidateModeratorSessions(ctx context.Context, moderatorID uuid.UUID) error {
	mapKey := ModeratorToSessionKeyPrefix + moderatorID.String()
	if token, err := s.redis.Get(ctx, mapKey).Result(); err == nil && token != "" {
		s.redis.Del(ctx, ModeratorSessionKeyPrefix+token)
	}
	return s.redis.Del(ctx, mapKey).Err()
}

// InvalidateUser drops the user's live session and records the invalidation
// time so any token issued earlier is refused at the edge.
func (s *SessionStore) InvalidateUser(ctx context.Context, userID string, at time.Time) error {
	mapKey := UserSessionKeyPrefix + userID
	if token, err := s.redis.Get(ctx, mapKey).Result(); err == nil && token != "" {
		s.redis.Del(ctx, SessionKeyPrefix+token)
	}
	if err := s.redis.Del(ctx, mapKey).Err(); err != nil {
		return fmt.Errorf("drop session mapping: %w", err)
	}
	return s.redis.Set(ctx, TokenInvalidatedKeyPrefix+userID, at.UTC().Format(time.RFC3339), tokenInvalidatedTTL).Err()
}
