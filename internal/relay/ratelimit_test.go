package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsBurst(t *testing.T) {
	tb := newTokenBucket(5, time.Minute)

	for i := 0; i < 5; i++ {
		assert.True(t, tb.allow(), "request %d within burst", i)
	}
	assert.False(t, tb.allow(), "burst exhausted")
}

func TestTokenBucketRefills(t *testing.T) {
	tb := newTokenBucket(100, 100*time.Millisecond)

	for i := 0; i < 100; i++ {
		require.True(t, tb.allow())
	}
	require.False(t, tb.allow())

	time.Sleep(150 * time.Millisecond)
	assert.True(t, tb.allow(), "tokens refilled after the interval")
}

func TestTokenBucketSanitizesArguments(t *testing.T) {
	tb := newTokenBucket(0, 0)
	assert.True(t, tb.allow())
	assert.False(t, tb.allow())
}

func TestTokenBucketCapsAtCapacity(t *testing.T) {
	tb := newTokenBucket(2, 10*time.Millisecond)

	// A long quiet period never accumulates more than the capacity.
	time.Sleep(100 * time.Millisecond)
	assert.True(t, tb.allow())
	assert.True(t, tb.allow())
	assert.False(t, tb.allow())
}
