package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(store *fakeAnalysisStore, bus *fakeBus, feed FeedBroadcaster, locks JobLocker) *Notifier {
	n := NewNotifier(store, bus, feed, locks, testDispatcher(), time.Second, discardLogger())
	n.now = fixedClock(time.Date(2026, 10, 17, 3, 30, 0, 0, time.UTC))
	return n
}

func TestNotifyPendingAnalysesNoopWhenEmpty(t *testing.T) {
	bus := &fakeBus{}
	n := newTestNotifier(newFakeAnalysisStore(), bus, &fakeFeed{}, newFakeLocker())

	count, err := n.NotifyPendingAnalyses(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, bus.notified)
}

func TestNotifyPendingAnalysesEmitsOnceAndMarks(t *testing.T) {
	store := newFakeAnalysisStore()
	store.put(&models.ModerationAnalysis{UserID: "u1", AnalyzedReportIDs: []string{"svc:1"}, Classification: models.ClassificationBan})
	store.put(&models.ModerationAnalysis{UserID: "u2", AnalyzedReportIDs: []string{"svc:2"}})
	store.put(&models.ModerationAnalysis{UserID: "u3", AnalyzedReportIDs: []string{"svc:3"}, Notified: true})
	store.put(&models.ModerationAnalysis{UserID: "u4", AnalyzedReportIDs: []string{"svc:4"}, Resolved: true})

	bus := &fakeBus{}
	feed := &fakeFeed{}
	n := newTestNotifier(store, bus, feed, newFakeLocker())

	count, err := n.NotifyPendingAnalyses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.Len(t, bus.notified, 1)
	assert.Equal(t, 2, bus.notified[0].Count)
	assert.Len(t, bus.notified[0].Notifications, 2)
	require.Len(t, feed.events, 1)
	assert.Equal(t, 2, feed.events[0].Count)

	again, err := n.NotifyPendingAnalyses(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Len(t, bus.notified, 1)
}

func TestNotifyPendingAnalysesLeavesFlagsWhenEmitFails(t *testing.T) {
	store := newFakeAnalysisStore()
	a := store.put(&models.ModerationAnalysis{UserID: "u1", AnalyzedReportIDs: []string{"svc:1"}})
	n := newTestNotifier(store, &fakeBus{err: errors.New("broker down")}, nil, newFakeLocker())

	_, err := n.NotifyPendingAnalyses(context.Background())
	require.Error(t, err)

	got, err := store.Get(context.Background(), a.ID.Hex())
	require.NoError(t, err)
	assert.False(t, got.Notified)
}

func TestNotifyPendingAnalysesSkipsWhenLocked(t *testing.T) {
	store := newFakeAnalysisStore()
	store.put(&models.ModerationAnalysis{UserID: "u1", AnalyzedReportIDs: []string{"svc:1"}})
	locks := newFakeLocker()
	release, _, _ := locks.TryLock(context.Background(), notifyLockName, time.Minute)
	defer release()

	bus := &fakeBus{}
	count, err := newTestNotifier(store, bus, nil, locks).NotifyPendingAnalyses(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, bus.notified)
}
