package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	mu      sync.Mutex
	written []any
	fail    bool
	closed  bool
}

func (c *recordingConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.written = append(c.written, v)
	return nil
}

func (c *recordingConn) Close() error {
	c.closed = true
	return nil
}

func TestFeedHubLocalBroadcast(t *testing.T) {
	hub := NewFeedHub(nil, discardLogger())
	good := &recordingConn{}
	bad := &recordingConn{fail: true}
	hub.Register(good)
	hub.Register(bad)

	require.NoError(t, hub.Broadcast(context.Background(), FeedEvent{Type: FeedEventPendingReview, Count: 2}))

	require.Len(t, good.written, 1)
	assert.Equal(t, 2, good.written[0].(FeedEvent).Count)
	assert.True(t, bad.closed)
	assert.Equal(t, 1, hub.Connections())
}
