package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/events"
	"github.com/AnshRaj112/salvioris-moderation/internal/models"
)

const (
	notifyLockName = "notify_moderators"
	notifyLockTTL  = 5 * time.Minute
)

type ModeratorEvents interface {
	NotifyModerators(ctx context.Context, e events.ModeratorsNotified) error
}

type FeedBroadcaster interface {
	Broadcast(ctx context.Context, event FeedEvent) error
}

// Notifier tells moderators about analyses awaiting a decision. The
// notified flag is written after the event is emitted, so a crash in
// between can repeat a notification but never loses one.
type Notifier struct {
	store      AnalysisRepository
	bus        ModeratorEvents
	feed       FeedBroadcaster
	locks      JobLocker
	dispatcher *Dispatcher
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewNotifier(store AnalysisRepository, bus ModeratorEvents, feed FeedBroadcaster, locks JobLocker, dispatcher *Dispatcher, timeout time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		store:      store,
		bus:        bus,
		feed:       feed,
		locks:      locks,
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// NotifyPendingAnalyses returns how many analyses were newly marked notified.
// A concurrent run holding the lock makes this a no-op.
func (n *Notifier) NotifyPendingAnalyses(ctx context.Context) (int, error) {
	release, ok, err := n.locks.TryLock(ctx, notifyLockName, notifyLockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire notify lock: %w", err)
	}
	if !ok {
		n.logger.Info("moderator notification already running", "module", "notifier")
		return 0, nil
	}
	defer release()

	pending, err := n.store.ListPendingNotification(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending analyses: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	payload := buildNotifications(pending)

	emitCtx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		emitCtx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.bus.NotifyModerators(emitCtx, payload); err != nil {
		return 0, fmt.Errorf("emit moderator notification: %w", err)
	}

	if n.feed != nil {
		raw, _ := json.Marshal(payload.Notifications)
		n.dispatcher.Do(ctx, "feed_broadcast", func(ctx context.Context) error {
			return n.feed.Broadcast(ctx, FeedEvent{
				Type:      FeedEventPendingReview,
				Count:     payload.Count,
				Payload:   raw,
				Timestamp: n.now().UTC(),
			})
		})
	}

	ids := make([]string, 0, len(pending))
	for _, a := range pending {
		ids = append(ids, a.ID.Hex())
	}
	marked, err := n.store.MarkNotified(ctx, ids, n.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark analyses notified: %w", err)
	}

	n.logger.Info("moderators notified",
		"module", "notifier", "correlation_id", events.CorrelationID(ctx), "count", payload.Count, "marked", marked)
	return int(marked), nil
}

func buildNotifications(pending []models.ModerationAnalysis) events.ModeratorsNotified {
	out := events.ModeratorsNotified{
		Notifications: make([]events.ModeratorNotification, 0, len(pending)),
		Count:         len(pending),
	}
	for _, a := range pending {
		out.Notifications = append(out.Notifications, events.ModeratorNotification{
			AnalysisID:     a.ID.Hex(),
			UserID:         a.UserID,
			Classification: a.Classification,
			TotalReports:   a.TotalReports,
			Summary:        a.AISummary,
			CreatedAt:      a.CreatedAt,
		})
	}
	return out
}
