package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damione1/poker-rooms/internal/checkpoint"
	"github.com/damione1/poker-rooms/internal/client"
	"github.com/damione1/poker-rooms/internal/config"
	"github.com/damione1/poker-rooms/internal/metrics"
	"github.com/damione1/poker-rooms/internal/server"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Bind:    "127.0.0.1",
		Port:    8080,
		Origins: []string{"*"},
	}
	srv := server.New(cfg, checkpoint.NewMemStore(), metrics.New())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func dialSession(t *testing.T, ts *httptest.Server, room, name string) *client.Session {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := client.Dial(ctx, ts.URL, room, name)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, cond, 3*time.Second, 20*time.Millisecond, msg)
}

func TestSession_JoinMirrorsState(t *testing.T) {
	ts := newTestServer(t)

	alice := dialSession(t, ts, "room-a", "Alice")

	eventually(t, func() bool { return alice.UserID() != "" }, "own userId never arrived")
	eventually(t, func() bool { return len(alice.Participants()) == 1 }, "own join never mirrored")

	assert.True(t, alice.Connected())
	assert.False(t, alice.Revealed())

	bob := dialSession(t, ts, "room-a", "Bob")
	eventually(t, func() bool { return len(alice.Participants()) == 2 }, "second participant never mirrored")
	eventually(t, func() bool { return len(bob.Participants()) == 2 }, "state snapshot never mirrored")
}

func TestSession_VotingRound(t *testing.T) {
	ts := newTestServer(t)

	alice := dialSession(t, ts, "room-b", "Alice")
	bob := dialSession(t, ts, "room-b", "Bob")
	eventually(t, func() bool { return len(bob.Participants()) == 2 }, "participants never mirrored")
	eventually(t, func() bool { return alice.UserID() != "" }, "alice userId never arrived")

	card := "5"
	alice.Vote(&card)

	eventually(t, func() bool {
		p, ok := bob.Participants()[alice.UserID()]
		return ok && p.HasVoted
	}, "hasVoted never mirrored")

	// Raw value stays hidden until reveal.
	assert.Empty(t, bob.Votes())
	assert.False(t, bob.Revealed())

	bob.Reveal()
	eventually(t, func() bool { return alice.Revealed() && bob.Revealed() }, "reveal never mirrored")

	votes := bob.Votes()
	require.Contains(t, votes, alice.UserID())
	require.NotNil(t, votes[alice.UserID()])
	assert.Equal(t, "5", *votes[alice.UserID()])
	require.Contains(t, votes, bob.UserID())
	assert.Nil(t, votes[bob.UserID()])

	alice.Reset()
	eventually(t, func() bool { return !alice.Revealed() && !bob.Revealed() }, "reset never mirrored")
	assert.Empty(t, bob.Votes())
	for _, p := range bob.Participants() {
		assert.False(t, p.HasVoted)
	}
}

func TestSession_UserLeft(t *testing.T) {
	ts := newTestServer(t)

	alice := dialSession(t, ts, "room-c", "Alice")
	bob := dialSession(t, ts, "room-c", "Bob")
	eventually(t, func() bool { return len(alice.Participants()) == 2 }, "participants never mirrored")
	eventually(t, func() bool { return bob.UserID() != "" }, "bob userId never arrived")
	bobID := bob.UserID()

	bob.Close()

	eventually(t, func() bool {
		_, ok := alice.Participants()[bobID]
		return !ok
	}, "departure never mirrored")
}

func TestSession_EmojiCallback(t *testing.T) {
	ts := newTestServer(t)

	alice := dialSession(t, ts, "room-d", "Alice")
	bob := dialSession(t, ts, "room-d", "Bob")
	eventually(t, func() bool { return len(alice.Participants()) == 2 }, "participants never mirrored")
	eventually(t, func() bool { return bob.UserID() != "" }, "bob userId never arrived")

	type event struct{ from, to, emoji string }
	got := make(chan event, 1)

	// Single slot: the first registration must be displaced by the second.
	bob.OnEmoji(func(from, to, emoji string) {
		t.Error("displaced callback should never fire")
	})
	bob.OnEmoji(func(from, to, emoji string) {
		got <- event{from, to, emoji}
	})

	alice.Emoji(bob.UserID(), "🎉")

	select {
	case e := <-got:
		assert.Equal(t, alice.UserID(), e.from)
		assert.Equal(t, bob.UserID(), e.to)
		assert.Equal(t, "🎉", e.emoji)
	case <-time.After(3 * time.Second):
		t.Fatal("emoji callback never fired")
	}
}

func TestSession_ActionsWhileDisconnectedAreDropped(t *testing.T) {
	ts := newTestServer(t)

	alice := dialSession(t, ts, "room-e", "Alice")
	eventually(t, func() bool { return alice.UserID() != "" }, "alice userId never arrived")

	alice.Close()
	assert.False(t, alice.Connected())

	// Silently dropped, no queueing and no panic.
	card := "5"
	alice.Vote(&card)
	alice.Reveal()
	alice.Reset()
	alice.Emoji("nobody", "🔥")
}

func TestSession_CloseDuringReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the fixed reconnect delay")
	}

	ts := newTestServer(t)

	alice := dialSession(t, ts, "room-g", "Alice")
	eventually(t, func() bool { return alice.Connected() && alice.UserID() != "" }, "never connected")

	// Take the server down entirely so every redial fails.
	ts.CloseClientConnections()
	ts.Close()
	eventually(t, func() bool { return !alice.Connected() }, "close never observed")

	// Accessors stay responsive across failing reconnect attempts.
	deadline := time.Now().Add(config.ReconnectDelay + time.Second)
	for time.Now().Before(deadline) {
		assert.False(t, alice.Connected())
		_ = alice.Participants()
		_ = alice.Votes()
		time.Sleep(50 * time.Millisecond)
	}

	alice.Close()

	// No attempt survives Close.
	time.Sleep(config.ReconnectDelay + time.Second)
	assert.False(t, alice.Connected())
}

func TestSession_Reconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("reconnect test waits out the fixed reconnect delay")
	}

	ts := newTestServer(t)

	alice := dialSession(t, ts, "room-f", "Alice")
	eventually(t, func() bool { return alice.Connected() && alice.UserID() != "" }, "never connected")

	// Sever every open connection; the server itself stays up.
	ts.CloseClientConnections()

	eventually(t, func() bool { return !alice.Connected() }, "close never observed")

	// One fixed-delay attempt reconnects and rejoins.
	assert.Eventually(t, func() bool {
		return alice.Connected() && len(alice.Participants()) == 1
	}, config.ReconnectDelay+3*time.Second, 50*time.Millisecond, "never reconnected")
}
