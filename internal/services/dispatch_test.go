package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherSwallowsErrorsAndPanics(t *testing.T) {
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)

	assert.True(t, d.Do(context.Background(), "ok", func(context.Context) error { return nil }))
	assert.False(t, d.Do(context.Background(), "fail", func(context.Context) error { return errors.New("boom") }))
	assert.False(t, d.Do(context.Background(), "panic", func(context.Context) error { panic("kaboom") }))
}

func TestDispatcherBoundsCalls(t *testing.T) {
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), 10*time.Millisecond)

	ok := d.Do(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.False(t, ok)
}
