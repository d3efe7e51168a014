package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damione1/poker-rooms/internal/protocol"
)

func TestEncodeDecode(t *testing.T) {
	t.Run("tagged frame round trip", func(t *testing.T) {
		data, err := protocol.Encode(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})
		require.NoError(t, err)

		env, err := protocol.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, protocol.TypeJoin, env.Type)

		var p protocol.JoinPayload
		require.NoError(t, protocol.DecodePayload(env, &p))
		assert.Equal(t, "Alice", p.Name)
	})

	t.Run("bare frames omit the payload", func(t *testing.T) {
		data, err := protocol.Encode(protocol.TypeReveal, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"reveal"}`, string(data))
	})

	t.Run("absent payload decodes to the zero value", func(t *testing.T) {
		env, err := protocol.Decode([]byte(`{"type":"vote"}`))
		require.NoError(t, err)

		var p protocol.VotePayload
		require.NoError(t, protocol.DecodePayload(env, &p))
		assert.Nil(t, p.Card)
	})

	t.Run("null card survives the round trip", func(t *testing.T) {
		env, err := protocol.Decode([]byte(`{"type":"vote","payload":{"card":null}}`))
		require.NoError(t, err)

		var p protocol.VotePayload
		require.NoError(t, protocol.DecodePayload(env, &p))
		assert.Nil(t, p.Card)
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		_, err := protocol.Decode([]byte(`{oops`))
		assert.Error(t, err)
	})

	t.Run("missing type is rejected", func(t *testing.T) {
		_, err := protocol.Decode([]byte(`{"payload":{}}`))
		assert.Error(t, err)
	})

	t.Run("mismatched payload shape is rejected", func(t *testing.T) {
		env, err := protocol.Decode([]byte(`{"type":"emoji","payload":"boom"}`))
		require.NoError(t, err)

		var p protocol.EmojiPayload
		assert.Error(t, protocol.DecodePayload(env, &p))
	})
}

func TestStatePayload(t *testing.T) {
	t.Run("votes field is omitted while hidden", func(t *testing.T) {
		data, err := protocol.Encode(protocol.TypeState, protocol.StatePayload{
			Users:    []protocol.UserEntry{{ID: "u1", Name: "Alice", HasVoted: true}},
			Revealed: false,
		})
		require.NoError(t, err)
		assert.NotContains(t, string(data), "votes")
	})

	t.Run("nil vote entries are encoded as null", func(t *testing.T) {
		card := "5"
		data, err := protocol.Encode(protocol.TypeRevealed, protocol.RevealedPayload{
			Votes: map[string]*string{"u1": &card, "u2": nil},
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"revealed","payload":{"votes":{"u1":"5","u2":null}}}`, string(data))
	})
}
