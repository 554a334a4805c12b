package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	FeedChannel            = "moderation:feed"
	FeedEventPendingReview = "pending_analyses"
)

// FeedEvent is what connected moderators receive.
type FeedEvent struct {
	Type      string          `json:"type"`
	Count     int             `json:"count,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// FeedConn is the minimal websocket surface the hub writes to.
type FeedConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// FeedHub fans moderator feed events out to local websocket connections.
// Events travel through Redis so every instance's moderators see them.
type FeedHub struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]FeedConn
	redis  *redis.Client
	logger *slog.Logger
}

func NewFeedHub(client *redis.Client, logger *slog.Logger) *FeedHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHub{conns: make(map[uuid.UUID]FeedConn), redis: client, logger: logger}
}

// Register adds a connection and returns its handle for Unregister.
func (h *FeedHub) Register(conn FeedConn) uuid.UUID {
	id := uuid.New()
	h.mu.Lock()
	h.conns[id] = conn
	h.mu.Unlock()
	return id
}

func (h *FeedHub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *FeedHub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// FanOut writes the event to every local connection. Failed writers are
// dropped from the hub.
func (h *FeedHub) FanOut(event FeedEvent) {
	h.mu.RLock()
	targets := make(map[uuid.UUID]FeedConn, len(h.conns))
	for id, c := range h.conns {
		targets[id] = c
	}
	h.mu.RUnlock()

	for id, c := range targets {
		if err := c.WriteJSON(event); err != nil {
			h.logger.Warn("dropping moderator feed connection", "module", "feed", "error", err.Error())
			h.Unregister(id)
			_ = c.Close()
		}
	}
}

// Broadcast publishes the event to every instance. Without Redis it fans out
// locally only.
func (h *FeedHub) Broadcast(ctx context.Context, event FeedEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if h.redis == nil {
		h.FanOut(event)
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, FeedChannel, data).Err()
}

// Run relays Redis feed messages to local connections until ctx is done.
func (h *FeedHub) Run(ctx context.Context) {
	if h.redis == nil {
		h.logger.Warn("Redis client not initialized; moderator feed subscriber not started")
		return
	}

	backoff := time.Second
	for ctx.Err() == nil {
		func() {
			pubsub := h.redis.Subscribe(ctx, FeedChannel)
			defer pubsub.Close()

			h.logger.Info("Moderator feed subscriber started", "channel", FeedChannel)
			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.logger.Warn("moderator feed subscriber error", "error", err.Error())
					select {
					case <-ctx.Done():
					case <-time.After(backoff):
					}
					backoff = min(backoff*2, 30*time.Second)
					return
				}
				backoff = time.Second

				var event FeedEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.logger.Warn("failed to decode moderator feed event", "error", err.Error())
					continue
				}
				h.FanOut(event)
			}
		}()
	}
}
