package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/google/uuid"
)

const (
	TypeUserBanned         = "user.banned"
	TypeUserSuspended      = "user.suspended"
	TypeUserReactivated    = "user.reactivated"
	TypeModeratorsNotified = "notifyModeratorsAboutReports"
)

// Envelope wraps every event on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

type UserBanned struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type UserSuspended struct {
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UserReactivated struct {
	UserID string `json:"userId"`
}

type ModeratorNotification struct {
	AnalysisID     string                `json:"analysisId"`
	UserID         string                `json:"userId"`
	Classification models.Classification `json:"classification"`
	TotalReports   int                   `json:"totalReports"`
	Summary        string                `json:"summary"`
	CreatedAt      time.Time             `json:"createdAt"`
}

type ModeratorsNotified struct {
	Notifications []ModeratorNotification `json:"notifications"`
	Count         int                     `json:"count"`
}

// Bus encodes typed moderation events and hands them to a Publisher.
type Bus struct {
	pub Publisher
	now func() time.Time
}

func NewBus(pub Publisher) *Bus {
	return &Bus{pub: pub, now: time.Now}
}

// Encode builds the wire form of an event.
func (b *Bus) Encode(eventType, correlationID string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		OccurredAt:    b.now().UTC(),
		CorrelationID: correlationID,
		Data:          raw,
	})
}

func (b *Bus) emit(ctx context.Context, eventType, key string, data any) error {
	payload, err := b.Encode(eventType, correlationFrom(ctx), data)
	if err != nil {
		return err
	}
	return b.pub.Publish(ctx, eventType, payload, key)
}

func (b *Bus) UserBanned(ctx context.Context, e UserBanned) error {
	return b.emit(ctx, TypeUserBanned, e.UserID, e)
}

func (b *Bus) UserSuspended(ctx context.Context, e UserSuspended) error {
	return b.emit(ctx, TypeUserSuspended, e.UserID, e)
}

func (b *Bus) UserReactivated(ctx context.Context, e UserReactivated) error {
	return b.emit(ctx, TypeUserReactivated, e.UserID, e)
}

func (b *Bus) NotifyModerators(ctx context.Context, e ModeratorsNotified) error {
	return b.emit(ctx, TypeModeratorsNotified, "moderators", e)
}

type correlationKey struct{}

// WithCorrelationID tags ctx so emitted events carry the triggering operation.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	return correlationFrom(ctx)
}

func correlationFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
