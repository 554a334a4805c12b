package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyClassifier struct {
	calls       atomic.Int32
	rateLimited int32
	err         error
}

func (c *flakyClassifier) Classify(context.Context, string) (models.SafetyVerdict, error) {
	n := c.calls.Add(1)
	if c.err != nil {
		return models.SafetyVerdict{}, c.err
	}
	if c.rateLimited < 0 || n <= c.rateLimited {
		return models.SafetyVerdict{}, fmt.Errorf("%w: HTTP 429", models.ErrProviderRateLimited)
	}
	return models.SafetyVerdict{Flagged: true, Categories: map[string]bool{"hate": true}}, nil
}

func fastSafety(c TextClassifier) *ContentSafety {
	s := NewContentSafety(c, discardLogger(), time.Second)
	s.baseDelay = time.Millisecond
	s.maxJitter = time.Millisecond
	return s
}

func TestClassifyTextRecoversAfterFiveRateLimits(t *testing.T) {
	c := &flakyClassifier{rateLimited: 5}

	v, err := fastSafety(c).ClassifyText(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, v.IsOffensive())
	assert.Equal(t, int32(6), c.calls.Load())
}

func TestClassifyTextGivesUpAfterSixAttempts(t *testing.T) {
	c := &flakyClassifier{rateLimited: -1}

	_, err := fastSafety(c).ClassifyText(context.Background(), "text")
	require.ErrorIs(t, err, models.ErrRateLimitExhausted)
	assert.Equal(t, int32(6), c.calls.Load())
}

func TestClassifyTextOtherErrorsAreFatal(t *testing.T) {
	c := &flakyClassifier{err: errors.New("HTTP 500")}

	_, err := fastSafety(c).ClassifyText(context.Background(), "text")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrRateLimitExhausted)
	assert.Equal(t, int32(1), c.calls.Load())
}

func TestBackoffGrowsExponentiallyWithBoundedJitter(t *testing.T) {
	s := NewContentSafety(&flakyClassifier{}, discardLogger(), 0)
	b := s.backoff()

	base := time.Second
	for i := 0; i < 5; i++ {
		d, stop := b.Next()
		require.False(t, stop)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+time.Second)
		base *= 2
	}
	_, stop := b.Next()
	assert.True(t, stop)
}
