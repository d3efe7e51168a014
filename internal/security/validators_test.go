package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/damione1/poker-rooms/internal/security"
)

func TestValidateRoomAddress(t *testing.T) {
	t.Run("accepts a 64-character hex id", func(t *testing.T) {
		id := strings.Repeat("ab", 32)
		assert.NoError(t, security.ValidateRoomAddress(id))
	})

	t.Run("accepts short names", func(t *testing.T) {
		assert.NoError(t, security.ValidateRoomAddress("sprint-42"))
		assert.NoError(t, security.ValidateRoomAddress("équipe"))
	})

	t.Run("accepts names of exactly 32 characters", func(t *testing.T) {
		assert.NoError(t, security.ValidateRoomAddress(strings.Repeat("a", 32)))
	})

	t.Run("rejects names over 32 characters", func(t *testing.T) {
		assert.Error(t, security.ValidateRoomAddress(strings.Repeat("a", 33)))
	})

	t.Run("rejects empty addresses", func(t *testing.T) {
		assert.Error(t, security.ValidateRoomAddress(""))
	})

	t.Run("rejects control characters", func(t *testing.T) {
		assert.Error(t, security.ValidateRoomAddress("room\x00"))
	})

	t.Run("uppercase hex is treated as a name, not an id", func(t *testing.T) {
		id := strings.Repeat("AB", 32)
		// 64 characters but not lowercase hex: too long for a name.
		assert.Error(t, security.ValidateRoomAddress(id))
	})
}
