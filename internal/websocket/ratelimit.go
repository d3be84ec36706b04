package websocket

import (
	"sync"
	"time"
)

// SlidingWindowRateLimiter admits at most maxMessages within any window of
// the configured duration.
type SlidingWindowRateLimiter struct {
	maxMessages int
	window      time.Duration
	timestamps  []time.Time
	dropped     int
	now         func() time.Time
	mutex       sync.Mutex
}

// NewSlidingWindowRateLimiter creates a limiter. A non-positive window
// defaults to one second.
func NewSlidingWindowRateLimiter(maxMessages int, window time.Duration) *SlidingWindowRateLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &SlidingWindowRateLimiter{
		maxMessages: maxMessages,
		window:      window,
		timestamps:  make([]time.Time, 0, maxMessages),
		now:         time.Now,
	}
}

// IsAllowed records a message and reports whether it fits the window.
func (rl *SlidingWindowRateLimiter) IsAllowed() bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	rl.cleanOldTimestamps(now)

	if len(rl.timestamps) >= rl.maxMessages {
		rl.dropped++
		return false
	}

	rl.timestamps = append(rl.timestamps, now)
	return true
}

// Dropped returns how many messages were rejected so far.
func (rl *SlidingWindowRateLimiter) Dropped() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return rl.dropped
}

// Reset clears the window.
func (rl *SlidingWindowRateLimiter) Reset() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.timestamps = rl.timestamps[:0]
	rl.dropped = 0
}

// cleanOldTimestamps must be called with the mutex held.
func (rl *SlidingWindowRateLimiter) cleanOldTimestamps(now time.Time) {
	cutoff := now.Add(-rl.window)

	valid := 0
	for valid < len(rl.timestamps) && !rl.timestamps[valid].After(cutoff) {
		valid++
	}

	if valid > 0 {
		n := copy(rl.timestamps, rl.timestamps[valid:])
		rl.timestamps = rl.timestamps[:n]
	}
}
