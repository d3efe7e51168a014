// Package checkpoint persists per-connection session attachments so a
// hibernated room can rebuild its registry from still-open connections
// without clients rejoining.
package checkpoint

import "sync"

// SessionRecord is the durable projection of one session: everything the
// coordinator needs to resurrect a participant after hibernation.
type SessionRecord struct {
	UserID string
	Name   string
	Vote   *string
}

// Store is the checkpoint contract. Every mutation of a session's name or
// vote must land here in the same critical section as the in-memory write,
// so the two views never diverge.
type Store interface {
	PutSession(roomID, connID string, rec SessionRecord) error
	DeleteSession(roomID, connID string) error
	SessionsFor(roomID string) (map[string]SessionRecord, error)

	// Room-level reveal state is checkpointed alongside sessions so it
	// survives hibernation too.
	PutRevealed(roomID string, revealed bool) error
	Revealed(roomID string) (bool, error)

	// DeleteRoom drops all state for a room once its last connection is gone.
	DeleteRoom(roomID string) error
}

// MemStore is an in-process Store for tests and for running without a data
// directory. Hibernation recovery still works as long as the process lives.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]SessionRecord
	revealed map[string]bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]map[string]SessionRecord),
		revealed: make(map[string]bool),
	}
}

func (s *MemStore) PutSession(roomID, connID string, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[roomID] == nil {
		s.sessions[roomID] = make(map[string]SessionRecord)
	}
	s.sessions[roomID][connID] = rec
	return nil
}

func (s *MemStore) DeleteSession(roomID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conns, ok := s.sessions[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(s.sessions, roomID)
		}
	}
	return nil
}

func (s *MemStore) SessionsFor(roomID string) (map[string]SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make(map[string]SessionRecord, len(s.sessions[roomID]))
	for connID, rec := range s.sessions[roomID] {
		records[connID] = rec
	}
	return records, nil
}

func (s *MemStore) PutRevealed(roomID string, revealed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revealed[roomID] = revealed
	return nil
}

func (s *MemStore) Revealed(roomID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.revealed[roomID], nil
}

func (s *MemStore) DeleteRoom(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, roomID)
	delete(s.revealed, roomID)
	return nil
}
