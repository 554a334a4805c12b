package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRun(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 10, 17, 2, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2026, 10, 17, 3, 0, 0, 0, loc), NextRun(now, 3, 0, loc))
	assert.Equal(t, time.Date(2026, 10, 18, 0, 5, 0, 0, loc), NextRun(now, 0, 5, loc))
	assert.Equal(t, time.Date(2026, 10, 18, 2, 30, 0, 0, loc), NextRun(now, 2, 30, loc))
}

func TestSchedulerRunsJobWhenTimerFires(t *testing.T) {
	ran := make(chan struct{}, 1)
	fire := make(chan time.Time)

	s := NewScheduler(time.UTC, discardLogger(), DailyJob{
		Name: "analysis", Hour: 3,
		Run: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	})
	s.after = func(time.Duration) <-chan time.Time { return fire }

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	fire <- time.Now()
	select {
	case <-ran:
	case <-time.After(time.Second):
		require.FailNow(t, "job did not run")
	}

	cancel()
	s.Wait()
}
