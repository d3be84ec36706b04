package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindowRateLimiter(t *testing.T) {
	clock := time.Unix(1000, 0)
	rl := NewSlidingWindowRateLimiter(3, time.Second)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.IsAllowed(), "message %d", i)
	}
	assert.False(t, rl.IsAllowed())
	assert.Equal(t, 1, rl.Dropped())

	clock = clock.Add(500 * time.Millisecond)
	assert.False(t, rl.IsAllowed(), "window has not slid yet")

	clock = clock.Add(501 * time.Millisecond)
	assert.True(t, rl.IsAllowed())

	rl.Reset()
	assert.Equal(t, 0, rl.Dropped())
	assert.True(t, rl.IsAllowed())
}

func TestSlidingWindowDefaultWindow(t *testing.T) {
	rl := NewSlidingWindowRateLimiter(1, 0)
	assert.Equal(t, time.Second, rl.window)
}
