// Package room implements the per-room authoritative state machine: it
// tracks connected participants, enforces the hidden/revealed voting
// protocol and fans out state changes to every named session.
package room

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/damione1/poker-rooms/internal/checkpoint"
	"github.com/damione1/poker-rooms/internal/config"
	"github.com/damione1/poker-rooms/internal/metrics"
	"github.com/damione1/poker-rooms/internal/protocol"
)

// Reply for join-gated actions attempted by an anonymous session.
const errNotJoined = "Must join first"

// Room is one coordinator instance. All message handling for a room runs
// under its mutex, so handler bodies read-modify-write state without
// further synchronization and broadcasts complete before the handler
// returns.
type Room struct {
	id      string
	store   checkpoint.Store
	metrics *metrics.Metrics

	mu           sync.Mutex
	revealed     bool
	sessions     map[Conn]*Session
	lastActivity time.Time
}

func New(id string, store checkpoint.Store, m *metrics.Metrics) *Room {
	return &Room{
		id:           id,
		store:        store,
		metrics:      m,
		sessions:     make(map[Conn]*Session),
		lastActivity: time.Now(),
	}
}

func (r *Room) ID() string {
	return r.id
}

// Revealed reports the room's current state machine position.
func (r *Room) Revealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revealed
}

// IdleFor reports how long ago the room last processed a message.
func (r *Room) IdleFor() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastActivity)
}

// Accept registers a new connection as an anonymous session with a fresh
// userId. Nothing is broadcast: an anonymous session is invisible.
func (r *Room) Accept(ctx context.Context, conn Conn) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := &Session{UserID: uuid.NewString()}
	r.sessions[conn] = sess
	r.checkpointSession(conn, sess)
	r.lastActivity = time.Now()
	return sess
}

// restore rebuilds the registry from still-open connections and their
// durable attachments after hibernation. Connections without a checkpoint
// row come back as fresh anonymous sessions.
func (r *Room) restore(conns []Conn, records map[string]checkpoint.SessionRecord, revealed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revealed = revealed
	for _, conn := range conns {
		if rec, ok := records[conn.ID()]; ok {
			r.sessions[conn] = &Session{UserID: rec.UserID, Name: rec.Name, Vote: rec.Vote}
			continue
		}
		sess := &Session{UserID: uuid.NewString()}
		r.sessions[conn] = sess
		r.checkpointSession(conn, sess)
	}
	r.lastActivity = time.Now()
}

// HandleMessage processes one inbound frame from one connection. Every
// failure is reported to the sender alone; nothing here can take down the
// room or affect other sessions.
func (r *Room) HandleMessage(ctx context.Context, conn Conn, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActivity = time.Now()

	env, err := protocol.Decode(data)
	if err != nil {
		r.sendError(ctx, conn, err.Error())
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		var p protocol.JoinPayload
		if err := protocol.DecodePayload(env, &p); err != nil {
			r.sendError(ctx, conn, err.Error())
			return
		}
		r.handleJoin(ctx, conn, p.Name)

	case protocol.TypeVote:
		var p protocol.VotePayload
		if err := protocol.DecodePayload(env, &p); err != nil {
			r.sendError(ctx, conn, err.Error())
			return
		}
		r.handleVote(ctx, conn, p.Card)

	case protocol.TypeReveal:
		r.handleReveal(ctx, conn)

	case protocol.TypeReset:
		r.handleReset(ctx, conn)

	case protocol.TypeEmoji:
		var p protocol.EmojiPayload
		if err := protocol.DecodePayload(env, &p); err != nil {
			r.sendError(ctx, conn, err.Error())
			return
		}
		r.handleEmoji(ctx, conn, p.TargetUserID, p.Emoji)

	default:
		r.sendError(ctx, conn, fmt.Sprintf("unknown message type: %s", env.Type))
	}
}

// Disconnect removes the connection's session. Named sessions announce
// their departure to everyone remaining; anonymous ones vanish silently.
func (r *Room) Disconnect(ctx context.Context, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conn]
	if !ok {
		return
	}

	delete(r.sessions, conn)
	if err := r.store.DeleteSession(r.id, conn.ID()); err != nil {
		log.Printf("checkpoint delete failed (room=%s): %v", r.id, err)
	}

	if sess.Named() {
		r.broadcast(ctx, protocol.MustEncode(protocol.TypeUserLeft, protocol.UserLeftPayload{
			UserID: sess.UserID,
		}), nil)
	}
}

// Empty reports whether the registry has no sessions left.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions) == 0
}

// handleJoin names the session and replays the full room state to the
// requester. Re-joining repeats the sequence with the updated name. An
// empty name leaves the session anonymous: the requester still gets its
// snapshot and userId, but nothing is announced, and a previously named
// session withdraws from the others.
func (r *Room) handleJoin(ctx context.Context, conn Conn, name string) {
	sess := r.sessionFor(conn)
	wasNamed := sess.Named()
	sess.Name = truncateName(name)
	r.checkpointSession(conn, sess)

	state := protocol.StatePayload{
		Users:    r.userList(),
		Revealed: r.revealed,
	}
	if r.revealed {
		state.Votes = r.voteMap()
	}
	r.send(ctx, conn, protocol.MustEncode(protocol.TypeState, state))

	r.send(ctx, conn, protocol.MustEncode(protocol.TypeJoined, protocol.JoinedPayload{
		UserID: sess.UserID,
		Name:   sess.Name,
	}))

	switch {
	case sess.Named():
		r.broadcast(ctx, protocol.MustEncode(protocol.TypeUserJoined, protocol.UserJoinedPayload{
			UserID: sess.UserID,
			Name:   sess.Name,
		}), conn)
	case wasNamed:
		r.broadcast(ctx, protocol.MustEncode(protocol.TypeUserLeft, protocol.UserLeftPayload{
			UserID: sess.UserID,
		}), nil)
	}
}

// handleVote records the card (nil retracts) and shares only the fact
// that a vote exists. Raw values stay hidden until reveal.
func (r *Room) handleVote(ctx context.Context, conn Conn, card *string) {
	sess := r.sessionFor(conn)
	if !sess.Named() {
		r.sendError(ctx, conn, errNotJoined)
		return
	}

	sess.Vote = card
	r.checkpointSession(conn, sess)

	r.broadcast(ctx, protocol.MustEncode(protocol.TypeVoted, protocol.VotedPayload{
		UserID:   sess.UserID,
		HasVoted: card != nil,
	}), nil)
}

// handleReveal flips the room to revealed and publishes the complete vote
// map, with nil entries for participants that had not voted. No quorum
// check at this layer.
func (r *Room) handleReveal(ctx context.Context, conn Conn) {
	sess := r.sessionFor(conn)
	if !sess.Named() {
		r.sendError(ctx, conn, errNotJoined)
		return
	}

	r.revealed = true
	r.checkpointRevealed()

	r.broadcast(ctx, protocol.MustEncode(protocol.TypeRevealed, protocol.RevealedPayload{
		Votes: r.voteMap(),
	}), nil)
}

// handleReset returns the room to hidden and clears every session's vote,
// named or not.
func (r *Room) handleReset(ctx context.Context, conn Conn) {
	sess := r.sessionFor(conn)
	if !sess.Named() {
		r.sendError(ctx, conn, errNotJoined)
		return
	}

	r.revealed = false
	r.checkpointRevealed()

	for c, s := range r.sessions {
		if s.Vote == nil {
			continue
		}
		s.Vote = nil
		r.checkpointSession(c, s)
	}

	r.broadcast(ctx, protocol.MustEncode(protocol.TypeReset, nil), nil)
}

// handleEmoji relays an emoji throw to everyone, sender included. The
// target is not validated; clients that find no match render nothing.
func (r *Room) handleEmoji(ctx context.Context, conn Conn, targetUserID, emoji string) {
	sess := r.sessionFor(conn)
	if !sess.Named() {
		r.sendError(ctx, conn, errNotJoined)
		return
	}

	r.broadcast(ctx, protocol.MustEncode(protocol.TypeEmoji, protocol.EmojiEventPayload{
		FromUserID: sess.UserID,
		ToUserID:   targetUserID,
		Emoji:      emoji,
	}), nil)
}

// sessionFor returns the connection's session, creating an anonymous one
// if the registry somehow lost it.
func (r *Room) sessionFor(conn Conn) *Session {
	if sess, ok := r.sessions[conn]; ok {
		return sess
	}
	sess := &Session{UserID: uuid.NewString()}
	r.sessions[conn] = sess
	r.checkpointSession(conn, sess)
	return sess
}

// userList snapshots every named session for a state payload.
func (r *Room) userList() []protocol.UserEntry {
	users := make([]protocol.UserEntry, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if !sess.Named() {
			continue
		}
		users = append(users, protocol.UserEntry{
			ID:       sess.UserID,
			Name:     sess.Name,
			HasVoted: sess.Vote != nil,
		})
	}
	return users
}

// voteMap snapshots every named session's vote, nil for non-voters.
func (r *Room) voteMap() map[string]*string {
	votes := make(map[string]*string)
	for _, sess := range r.sessions {
		if !sess.Named() {
			continue
		}
		votes[sess.UserID] = sess.Vote
	}
	return votes
}

// broadcast fans one frame out to every named session except exclude.
// Per-recipient failures are isolated: failing connections are collected
// during the loop and dropped from the registry afterwards, without a
// synthesized userLeft.
func (r *Room) broadcast(ctx context.Context, data []byte, exclude Conn) {
	var failed []Conn
	for conn, sess := range r.sessions {
		if conn == exclude || !sess.Named() {
			continue
		}
		if err := conn.Send(ctx, data); err != nil {
			r.metrics.IncrementBroadcastErrors()
			failed = append(failed, conn)
			continue
		}
		r.metrics.IncrementMessagesSent()
	}

	for _, conn := range failed {
		delete(r.sessions, conn)
		if err := r.store.DeleteSession(r.id, conn.ID()); err != nil {
			log.Printf("checkpoint delete failed (room=%s): %v", r.id, err)
		}
		conn.Close()
	}
}

// send delivers a frame to a single connection. Failures are left for the
// connection's read loop to observe; the registry is not touched here.
func (r *Room) send(ctx context.Context, conn Conn, data []byte) {
	if err := conn.Send(ctx, data); err != nil {
		log.Printf("send failed (room=%s): %v", r.id, err)
		r.metrics.IncrementBroadcastErrors()
		return
	}
	r.metrics.IncrementMessagesSent()
}

func (r *Room) sendError(ctx context.Context, conn Conn, message string) {
	r.send(ctx, conn, protocol.MustEncode(protocol.TypeError, protocol.ErrorPayload{
		Message: message,
	}))
}

// checkpointSession mirrors a registry mutation to the durable store.
// Both writes happen under the room mutex, so the two views never diverge
// while the room is awake.
func (r *Room) checkpointSession(conn Conn, sess *Session) {
	if err := r.store.PutSession(r.id, conn.ID(), sess.Record()); err != nil {
		log.Printf("checkpoint write failed (room=%s): %v", r.id, err)
	}
}

func (r *Room) checkpointRevealed() {
	if err := r.store.PutRevealed(r.id, r.revealed); err != nil {
		log.Printf("checkpoint write failed (room=%s): %v", r.id, err)
	}
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) > config.MaxNameLength {
		return string(runes[:config.MaxNameLength])
	}
	return name
}
