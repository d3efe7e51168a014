package security

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/damione1/poker-rooms/internal/config"
)

var hexRoomIDRegex = regexp.MustCompile(fmt.Sprintf(`^[0-9a-f]{%d}$`, config.RoomIDHexLength))

// ValidateRoomAddress checks a room address before it reaches the
// coordinator. A room is addressed either by a generated 64-character hex
// identifier or by an arbitrary name of at most 32 characters; anything
// else is rejected here as a structured error.
func ValidateRoomAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("room address cannot be empty")
	}

	if hexRoomIDRegex.MatchString(addr) {
		return nil
	}

	if utf8.RuneCountInString(addr) > config.MaxNameLength {
		return fmt.Errorf("room name too long (max %d characters)", config.MaxNameLength)
	}

	for _, r := range addr {
		if r < 32 || r == 127 {
			return fmt.Errorf("room name contains control characters")
		}
	}

	return nil
}
