package room

import (
	"context"

	"github.com/damione1/poker-rooms/internal/checkpoint"
)

// Conn is the transport seen by the coordinator: an established,
// bidirectional connection that can be written to and torn down. The
// server wraps websockets in this; tests use fakes.
type Conn interface {
	// ID is a stable opaque identifier for the connection's lifetime,
	// used to key durable session attachments.
	ID() string
	Send(ctx context.Context, data []byte) error
	Close()
}

// Session is the coordinator's record of one connected participant. A
// session with an empty Name is anonymous: invisible to every listing,
// broadcast and vote collection until it joins.
type Session struct {
	UserID string
	Name   string
	Vote   *string
}

// Named reports whether the session has joined.
func (s *Session) Named() bool {
	return s.Name != ""
}

// Record returns the durable projection of the session.
func (s *Session) Record() checkpoint.SessionRecord {
	return checkpoint.SessionRecord{
		UserID: s.UserID,
		Name:   s.Name,
		Vote:   s.Vote,
	}
}
