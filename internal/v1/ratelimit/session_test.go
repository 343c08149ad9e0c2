package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionCounter_AllowsUpToCap(t *testing.T) {
	var c SessionCounter
	start := time.Now()

	for i := 0; i < SessionWindowCap; i++ {
		assert.True(t, c.Allow(start), "frame %d within the cap must be allowed", i+1)
	}
}

func TestSessionCounter_RejectsOverCap(t *testing.T) {
	var c SessionCounter
	start := time.Now()

	for i := 0; i < SessionWindowCap; i++ {
		c.Allow(start)
	}

	assert.False(t, c.Allow(start), "the 21st frame in the window must be rejected")
}

func TestSessionCounter_FrameIsAlwaysConsumed(t *testing.T) {
	var c SessionCounter
	start := time.Now()
	for i := 0; i < SessionWindowCap+5; i++ {
		c.Allow(start)
	}
	assert.Equal(t, SessionWindowCap+5, c.Count, "rejected frames still increment the counter")
}

func TestSessionCounter_ResetsAfterWindow(t *testing.T) {
	var c SessionCounter
	start := time.Now()
	for i := 0; i < SessionWindowCap; i++ {
		c.Allow(start)
	}
	assert.False(t, c.Allow(start))

	later := start.Add(SessionWindowMillis*time.Millisecond + time.Millisecond)
	assert.True(t, c.Allow(later), "a new window must reset the counter")
	assert.Equal(t, 1, c.Count)
}
