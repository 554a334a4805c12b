package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/events"
)

// Dispatcher runs best-effort side effects: each call gets its own timeout,
// panics are recovered and failures are logged against the correlation id of
// the operation that triggered them. Nothing is ever returned to the caller
// beyond a success flag.
type Dispatcher struct {
	logger  *slog.Logger
	timeout time.Duration
}

func NewDispatcher(logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{logger: logger, timeout: timeout}
}

// Do runs fn synchronously and reports whether it succeeded.
func (d *Dispatcher) Do(ctx context.Context, operation string, fn func(ctx context.Context) error, attrs ...any) (ok bool) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	logAttrs := append([]any{
		"module", "moderation",
		"operation", operation,
		"correlation_id", events.CorrelationID(ctx),
	}, attrs...)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("side effect panicked", append(logAttrs, "outcome", "panic", "error", fmt.Sprint(r))...)
			ok = false
		}
	}()

	if err := fn(ctx); err != nil {
		d.logger.Warn("side effect failed", append(logAttrs, "outcome", "failure", "error", err.Error())...)
		return false
	}
	return true
}
