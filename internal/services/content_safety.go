package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/sethvargo/go-retry"
)

const (
	classifierMaxAttempts = 6
	classifierBaseDelay   = time.Second
	classifierMaxJitter   = time.Second
)

// TextClassifier is a single attempt against the safety provider. A
// provider-side 429 must surface as models.ErrProviderRateLimited.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (models.SafetyVerdict, error)
}

// ContentSafety retries rate-limited classifications with exponential backoff
// plus jitter. Any other error fails immediately.
type ContentSafety struct {
	classifier  TextClassifier
	logger      *slog.Logger
	timeout     time.Duration
	baseDelay   time.Duration
	maxJitter   time.Duration
	maxAttempts uint64
}

func NewContentSafety(classifier TextClassifier, logger *slog.Logger, timeout time.Duration) *ContentSafety {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentSafety{
		classifier:  classifier,
		logger:      logger,
		timeout:     timeout,
		baseDelay:   classifierBaseDelay,
		maxJitter:   classifierMaxJitter,
		maxAttempts: classifierMaxAttempts,
	}
}

// withPositiveJitter adds a random delay in [0, max) to every step.
func withPositiveJitter(max time.Duration, next retry.Backoff) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if max > 0 {
			d += time.Duration(rand.Int64N(int64(max)))
		}
		return d, false
	})
}

func (c *ContentSafety) backoff() retry.Backoff {
	b := retry.NewExponential(c.baseDelay)
	b = withPositiveJitter(c.maxJitter, b)
	return retry.WithMaxRetries(c.maxAttempts-1, b)
}

// ClassifyText classifies text, making at most six attempts.
func (c *ContentSafety) ClassifyText(ctx context.Context, text string) (models.SafetyVerdict, error) {
	var (
		verdict  models.SafetyVerdict
		attempts int
	)

	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempts++
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		v, err := c.classifier.Classify(callCtx, text)
		if err == nil {
			verdict = v
			return nil
		}
		if errors.Is(err, models.ErrProviderRateLimited) {
			c.logger.Warn("classifier rate limited",
				"module", "content_safety", "attempt", attempts, "max_attempts", c.maxAttempts)
			return retry.RetryableError(err)
		}
		return err
	})

	if err != nil {
		if errors.Is(err, models.ErrProviderRateLimited) {
			return models.SafetyVerdict{}, fmt.Errorf("%w after %d attempts: %v", models.ErrRateLimitExhausted, attempts, err)
		}
		return models.SafetyVerdict{}, fmt.Errorf("classify text: %w", err)
	}
	return verdict, nil
}
