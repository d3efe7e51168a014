// Package client implements the consumer side of the room protocol: it
// connects, joins, mirrors every coordinator broadcast into local state
// and reconnects on a fixed delay when the connection drops.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/damione1/poker-rooms/internal/config"
	"github.com/damione1/poker-rooms/internal/protocol"
)

// Participant is one named session as mirrored locally.
type Participant struct {
	Name     string
	HasVoted bool
}

// Session maintains a live mirror of one room for one participant.
type Session struct {
	url  string
	name string

	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	closed       bool
	reconnect    *time.Timer
	dialCancel   context.CancelFunc
	userID       string
	revealed     bool
	participants map[string]Participant
	votes        map[string]*string
	onEmoji      func(fromUserID, toUserID, emoji string)
	lastError    string
}

// Dial connects to baseURL's websocket endpoint for the room and joins
// with the given display name.
func Dial(ctx context.Context, baseURL, room, name string) (*Session, error) {
	s := &Session{
		url:          fmt.Sprintf("%s/ws/%s", baseURL, room),
		name:         name,
		participants: make(map[string]Participant),
		votes:        make(map[string]*string),
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	s.conn = conn
	s.connected = true
	go s.readLoop(conn)
	return s, nil
}

// dial connects and sends the join frame. It holds no locks, so a slow
// dial never blocks the session's accessors or Close.
func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	join := protocol.MustEncode(protocol.TypeJoin, protocol.JoinPayload{Name: s.name})
	writeCtx, cancel := context.WithTimeout(ctx, config.WriteTimeout)
	err = conn.Write(writeCtx, websocket.MessageText, join)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("failed to join: %w", err)
	}

	return conn, nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			break
		}

		env, err := protocol.Decode(data)
		if err != nil {
			// Unrecognized frames are dropped, not fatal.
			continue
		}
		s.apply(env)
	}

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.connected = false
		s.scheduleReconnectLocked()
	}
	s.mu.Unlock()
}

// scheduleReconnectLocked arms exactly one reconnect attempt on a fixed
// delay. Callers hold s.mu.
func (s *Session) scheduleReconnectLocked() {
	if s.closed || s.reconnect != nil {
		return
	}

	s.reconnect = time.AfterFunc(config.ReconnectDelay, s.tryReconnect)
}

// tryReconnect runs one reconnect attempt. The dial happens outside the
// mutex under a cancellable context, so Close can abort it and accessors
// stay responsive while the server is unreachable.
func (s *Session) tryReconnect() {
	s.mu.Lock()
	s.reconnect = nil
	if s.closed || s.connected {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.dialCancel = cancel
	s.mu.Unlock()

	conn, err := s.dial(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialCancel = nil
	cancel()

	if err != nil {
		// Still down; try again after the same delay.
		s.scheduleReconnectLocked()
		return
	}
	if s.closed || s.connected {
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	s.conn = conn
	s.connected = true
	go s.readLoop(conn)
}

// apply mutates the local mirror for one inbound frame.
func (s *Session) apply(env *protocol.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch env.Type {
	case protocol.TypeJoined:
		var p protocol.JoinedPayload
		if protocol.DecodePayload(env, &p) == nil {
			s.userID = p.UserID
		}

	case protocol.TypeState:
		var p protocol.StatePayload
		if protocol.DecodePayload(env, &p) != nil {
			return
		}
		s.participants = make(map[string]Participant, len(p.Users))
		for _, u := range p.Users {
			s.participants[u.ID] = Participant{Name: u.Name, HasVoted: u.HasVoted}
		}
		s.revealed = p.Revealed
		s.votes = make(map[string]*string)
		for id, vote := range p.Votes {
			s.votes[id] = vote
		}

	case protocol.TypeUserJoined:
		var p protocol.UserJoinedPayload
		if protocol.DecodePayload(env, &p) != nil {
			return
		}
		entry := Participant{Name: p.Name}
		if existing, ok := s.participants[p.UserID]; ok {
			entry.HasVoted = existing.HasVoted
		}
		s.participants[p.UserID] = entry

	case protocol.TypeUserLeft:
		var p protocol.UserLeftPayload
		if protocol.DecodePayload(env, &p) != nil {
			return
		}
		delete(s.participants, p.UserID)
		delete(s.votes, p.UserID)

	case protocol.TypeVoted:
		var p protocol.VotedPayload
		if protocol.DecodePayload(env, &p) != nil {
			return
		}
		if entry, ok := s.participants[p.UserID]; ok {
			entry.HasVoted = p.HasVoted
			s.participants[p.UserID] = entry
		}

	case protocol.TypeRevealed:
		var p protocol.RevealedPayload
		if protocol.DecodePayload(env, &p) != nil {
			return
		}
		s.revealed = true
		s.votes = make(map[string]*string, len(p.Votes))
		for id, vote := range p.Votes {
			s.votes[id] = vote
		}

	case protocol.TypeReset:
		s.revealed = false
		s.votes = make(map[string]*string)
		for id, entry := range s.participants {
			entry.HasVoted = false
			s.participants[id] = entry
		}

	case protocol.TypeEmoji:
		var p protocol.EmojiEventPayload
		if protocol.DecodePayload(env, &p) != nil {
			return
		}
		if s.onEmoji != nil {
			fn := s.onEmoji
			s.mu.Unlock()
			fn(p.FromUserID, p.ToUserID, p.Emoji)
			s.mu.Lock()
		}

	case protocol.TypeError:
		var p protocol.ErrorPayload
		if protocol.DecodePayload(env, &p) == nil {
			s.lastError = p.Message
		}
	}
}

// sendWhileConnected serializes and sends a frame if the connection is
// open; calls while disconnected are dropped silently.
func (s *Session) sendWhileConnected(msgType string, payload any) {
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()

	if !connected || conn == nil {
		return
	}

	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.WriteTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, data)
}

// Vote casts (or, with nil, retracts) a vote.
func (s *Session) Vote(card *string) {
	s.sendWhileConnected(protocol.TypeVote, protocol.VotePayload{Card: card})
}

func (s *Session) Reveal() {
	s.sendWhileConnected(protocol.TypeReveal, nil)
}

func (s *Session) Reset() {
	s.sendWhileConnected(protocol.TypeReset, nil)
}

func (s *Session) Emoji(targetUserID, emoji string) {
	s.sendWhileConnected(protocol.TypeEmoji, protocol.EmojiPayload{
		TargetUserID: targetUserID,
		Emoji:        emoji,
	})
}

// OnEmoji registers the emoji callback. Single slot: the last
// registration wins.
func (s *Session) OnEmoji(fn func(fromUserID, toUserID, emoji string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEmoji = fn
}

// Close tears the session down and cancels any pending reconnect.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
		s.conn = nil
	}
	s.connected = false
}

// Accessors over the local mirror.

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) Revealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealed
}

func (s *Session) Participants() map[string]Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Participant, len(s.participants))
	for id, p := range s.participants {
		out[id] = p
	}
	return out
}

func (s *Session) Votes() map[string]*string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*string, len(s.votes))
	for id, vote := range s.votes {
		out[id] = vote
	}
	return out
}

func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}
