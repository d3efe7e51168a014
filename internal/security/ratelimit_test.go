package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/damione1/poker-rooms/internal/security"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows up to the limit per window", func(t *testing.T) {
		rl := security.NewRateLimiter(3, time.Minute)

		assert.True(t, rl.Allow("c1"))
		assert.True(t, rl.Allow("c1"))
		assert.True(t, rl.Allow("c1"))
		assert.False(t, rl.Allow("c1"))
	})

	t.Run("limits are per connection", func(t *testing.T) {
		rl := security.NewRateLimiter(1, time.Minute)

		assert.True(t, rl.Allow("c1"))
		assert.False(t, rl.Allow("c1"))
		assert.True(t, rl.Allow("c2"))
	})

	t.Run("window elapse resets tokens", func(t *testing.T) {
		rl := security.NewRateLimiter(1, 10*time.Millisecond)

		assert.True(t, rl.Allow("c1"))
		assert.False(t, rl.Allow("c1"))

		time.Sleep(20 * time.Millisecond)
		assert.True(t, rl.Allow("c1"))
	})

	t.Run("remove clears connection state", func(t *testing.T) {
		rl := security.NewRateLimiter(1, time.Minute)

		assert.True(t, rl.Allow("c1"))
		rl.Remove("c1")
		assert.True(t, rl.Allow("c1"))
	})
}
