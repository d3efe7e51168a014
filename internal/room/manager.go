package room

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/damione1/poker-rooms/internal/checkpoint"
	"github.com/damione1/poker-rooms/internal/metrics"
)

// Manager owns the set of live rooms and their open connections. It is
// the hibernation boundary: an idle room can be evicted from memory while
// its connections stay open, and the next message for that room rebuilds
// it from the checkpoint store.
type Manager struct {
	store   checkpoint.Store
	metrics *metrics.Metrics

	mu    sync.Mutex
	rooms map[string]*Room
	conns map[string]map[Conn]bool
}

func NewManager(store checkpoint.Store, m *metrics.Metrics) *Manager {
	return &Manager{
		store:   store,
		metrics: m,
		rooms:   make(map[string]*Room),
		conns:   make(map[string]map[Conn]bool),
	}
}

// Connect attaches a new connection to a room, waking the room first if
// it was hibernated, and registers an anonymous session for it.
func (m *Manager) Connect(ctx context.Context, roomID string, conn Conn) (*Room, *Session) {
	m.mu.Lock()
	// Resolve the room before registering the conn: a brand-new room must
	// not look like a hibernated one with a connection already attached.
	r := m.roomLocked(roomID)
	if m.conns[roomID] == nil {
		m.conns[roomID] = make(map[Conn]bool)
	}
	m.conns[roomID][conn] = true
	m.mu.Unlock()

	sess := r.Accept(ctx, conn)
	m.metrics.IncrementConnections()
	return r, sess
}

// Lookup returns the live room for an inbound message, resuming it if
// hibernated. Resumption happens before the message is processed.
func (m *Manager) Lookup(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomLocked(roomID)
}

// Disconnect detaches a connection from its room and tears the room down
// once the last connection is gone. A hibernated room is resumed first so
// that a named session's departure still reaches the others.
func (m *Manager) Disconnect(ctx context.Context, roomID string, conn Conn) {
	m.mu.Lock()
	r := m.roomLocked(roomID)
	if set, ok := m.conns[roomID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(m.conns, roomID)
		}
	}
	m.mu.Unlock()

	r.Disconnect(ctx, conn)
	m.metrics.DecrementConnections()

	m.mu.Lock()
	if len(m.conns[roomID]) == 0 {
		if _, ok := m.rooms[roomID]; ok {
			delete(m.rooms, roomID)
			m.metrics.DecrementRooms()
		}
		if err := m.store.DeleteRoom(roomID); err != nil {
			log.Printf("checkpoint room delete failed (room=%s): %v", roomID, err)
		}
	}
	m.mu.Unlock()
}

// Hibernate evicts a room's in-memory state, leaving its connections
// open. Session state already lives in the checkpoint store, so nothing
// else is written. Returns false if the room is not in memory.
func (m *Manager) Hibernate(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return false
	}
	delete(m.rooms, roomID)
	m.metrics.DecrementRooms()
	m.metrics.IncrementHibernations()
	return true
}

// HibernateIdle evicts every room idle for longer than the threshold.
func (m *Manager) HibernateIdle(threshold time.Duration) int {
	m.mu.Lock()
	var idle []string
	for id, r := range m.rooms {
		if r.IdleFor() > threshold {
			idle = append(idle, id)
		}
	}
	for _, id := range idle {
		delete(m.rooms, id)
		m.metrics.DecrementRooms()
		m.metrics.IncrementHibernations()
	}
	m.mu.Unlock()
	return len(idle)
}

// StartJanitor hibernates idle rooms on a fixed cadence until the context
// is cancelled.
func (m *Manager) StartJanitor(ctx context.Context, interval, idleThreshold time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := m.HibernateIdle(idleThreshold); n > 0 {
					log.Printf("hibernated %d idle room(s)", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// roomLocked returns the live room, resuming or creating it. Callers hold
// m.mu.
func (m *Manager) roomLocked(roomID string) *Room {
	if r, ok := m.rooms[roomID]; ok {
		return r
	}

	r := New(roomID, m.store, m.metrics)

	// Open connections mean the room was hibernated: rebuild its
	// registry from the durable attachments before anything else runs.
	if set := m.conns[roomID]; len(set) > 0 {
		conns := make([]Conn, 0, len(set))
		for conn := range set {
			conns = append(conns, conn)
		}

		records, err := m.store.SessionsFor(roomID)
		if err != nil {
			log.Printf("checkpoint load failed (room=%s): %v", roomID, err)
			records = map[string]checkpoint.SessionRecord{}
		}
		revealed, err := m.store.Revealed(roomID)
		if err != nil {
			log.Printf("checkpoint load failed (room=%s): %v", roomID, err)
		}

		r.restore(conns, records, revealed)
		m.metrics.IncrementResumes()
	}

	m.rooms[roomID] = r
	m.metrics.IncrementRooms()
	return r
}
