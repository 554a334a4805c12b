package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/salvioris-moderation/internal/middleware"
	"github.com/AnshRaj112/salvioris-moderation/internal/services"
)

const (
	feedReadLimit    = 4 * 1024
	feedReadDeadline = 90 * time.Second
	feedWriteTimeout = 10 * time.Second
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS layer and the session token.
		return true
	},
}

type FeedRegistry interface {
	Register(conn services.FeedConn) uuid.UUID
	Unregister(id uuid.UUID)
}

// feedConn serializes writes; gorilla connections allow one writer at a time.
type feedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *feedConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *feedConn) Close() error {
	return c.conn.Close()
}

type feedClientMessage struct {
	Type string `json:"type"`
}

type FeedHandler struct {
	sessions middleware.SessionValidator
	hub      FeedRegistry
	logger   *slog.Logger
}

func NewFeedHandler(sessions middleware.SessionValidator, hub FeedRegistry, logger *slog.Logger) *FeedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandler{sessions: sessions, hub: hub, logger: logger.With("module", "feed")}
}

// ModeratorFeed streams moderator notifications over a WebSocket.
// The session token comes from "Authorization: Bearer" or the token query
// parameter for browser clients.
func (h *FeedHandler) ModeratorFeed(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		http.Error(w, "missing session token", http.StatusUnauthorized)
		return
	}
	moderatorID, ok, err := h.sessions.ValidateModeratorSession(r.Context(), token)
	if err != nil || !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	ws, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &feedConn{conn: ws}
	defer conn.Close()

	id := h.hub.Register(conn)
	defer h.hub.Unregister(id)
	h.logger.Info("moderator feed connected", "moderator_id", moderatorID.String(), "connection_id", id.String())

	_ = conn.WriteJSON(services.FeedEvent{Type: "connected", Timestamp: time.Now().UTC()})

	ws.SetReadLimit(feedReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(feedReadDeadline))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(feedReadDeadline))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(feedReadDeadline))

		var msg feedClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			_ = conn.WriteJSON(services.FeedEvent{Type: "pong", Timestamp: time.Now().UTC()})
		}
	}
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}
