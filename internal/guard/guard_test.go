package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 256*time.Second, p.NextDelay(9))
	assert.Equal(t, 5*time.Minute, p.NextDelay(10))
	assert.Equal(t, 5*time.Minute, p.NextDelay(50))
}

func TestRetryPolicyExhausted(t *testing.T) {
	p := DefaultRetryPolicy()
	now := time.Now()

	assert.False(t, p.Exhausted(now.Add(-time.Hour), now))
	assert.False(t, p.Exhausted(now.Add(-24*time.Hour), now))
	assert.True(t, p.Exhausted(now.Add(-25*time.Hour), now))
}

func TestDeduperSeen(t *testing.T) {
	d := NewDeduper(time.Minute)

	assert.False(t, d.Seen("contest.result.confirmed:abc:1"))
	assert.True(t, d.Seen("contest.result.confirmed:abc:1"))
	assert.False(t, d.Seen("contest.result.confirmed:abc:2"))
	assert.False(t, d.Seen(""), "empty keys are never deduplicated")
	assert.False(t, d.Seen(""))
}

func TestDeduperExpiry(t *testing.T) {
	d := NewDeduper(time.Minute)
	base := time.Now()
	d.now = func() time.Time { return base }

	assert.False(t, d.Seen("key"))
	d.now = func() time.Time { return base.Add(30 * time.Second) }
	assert.True(t, d.Seen("key"))

	d.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.False(t, d.Seen("key"), "expired entries are treated as new")
}

func TestDeduperForget(t *testing.T) {
	d := NewDeduper(time.Minute)

	assert.False(t, d.Seen("key"))
	d.Forget("key")
	assert.False(t, d.Seen("key"))
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "user-1")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	ctx := context.Background()

	rl.Check(ctx, "user-1")
	rl.Check(ctx, "user-1")

	result := rl.Check(ctx, "user-1")
	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limit", result.Guard)

	other := rl.Check(ctx, "user-2")
	assert.True(t, other.Allowed, "keys are limited independently")
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ctx := context.Background()

	rl.Check(ctx, "user-1")
	assert.False(t, rl.Check(ctx, "user-1").Allowed)

	rl.Reset("user-1")
	assert.True(t, rl.Check(ctx, "user-1").Allowed)
}
