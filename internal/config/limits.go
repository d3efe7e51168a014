package config

import "time"

// WebSocket connection limits and constraints
const (
	// Participant names longer than this are truncated on join.
	MaxNameLength = 32

	// Room addressing: a room is either a generated hex id of this
	// length or a free-form name of at most MaxNameLength characters.
	RoomIDHexLength = 64

	// Rate limiting
	MaxMessagesPerSecond = 10
	RateLimitWindow      = time.Second

	// Timeouts
	WriteTimeout = 10 * time.Second
	PingInterval = 30 * time.Second

	// Inbound frame cap; anything larger kills the connection.
	MaxMessageBytes = 64 << 10

	// Delay before a client schedules its single reconnect attempt.
	ReconnectDelay = 3 * time.Second
)
