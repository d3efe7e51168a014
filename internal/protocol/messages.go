// Package protocol defines the wire vocabulary shared by the room
// coordinator and its clients. Every frame is a JSON envelope with a type
// tag and an optional payload; both sides must agree on the catalog below
// or messages are silently dropped.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client → Server message types
const (
	TypeJoin   = "join"
	TypeVote   = "vote"
	TypeReveal = "reveal"
	TypeReset  = "reset"
	TypeEmoji  = "emoji"
)

// Server → Client message types
const (
	TypeJoined     = "joined"
	TypeState      = "state"
	TypeUserJoined = "userJoined"
	TypeUserLeft   = "userLeft"
	TypeVoted      = "voted"
	TypeRevealed   = "revealed"
	TypeError      = "error"
	// TypeReset and TypeEmoji are echoed back with the same tags.
)

// Envelope is the outer frame. Payload stays raw until the tag is known.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client → Server payloads

type JoinPayload struct {
	Name string `json:"name"`
}

// VotePayload carries the chosen card. A nil Card retracts the vote.
type VotePayload struct {
	Card *string `json:"card"`
}

type EmojiPayload struct {
	TargetUserID string `json:"targetUserId"`
	Emoji        string `json:"emoji"`
}

// Server → Client payloads

type JoinedPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type UserEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HasVoted bool   `json:"hasVoted"`
}

// StatePayload is the full room snapshot sent to a joining participant.
// Votes is only present while the room is revealed.
type StatePayload struct {
	Users    []UserEntry        `json:"users"`
	Revealed bool               `json:"revealed"`
	Votes    map[string]*string `json:"votes,omitempty"`
}

type UserJoinedPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type UserLeftPayload struct {
	UserID string `json:"userId"`
}

type VotedPayload struct {
	UserID   string `json:"userId"`
	HasVoted bool   `json:"hasVoted"`
}

// RevealedPayload maps every named participant to its vote; entries are
// nil for participants that had not voted.
type RevealedPayload struct {
	Votes map[string]*string `json:"votes"`
}

type EmojiEventPayload struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Emoji      string `json:"emoji"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode marshals a tagged message into a single JSON frame.
func Encode(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// MustEncode is Encode for payloads that cannot fail to marshal.
func MustEncode(msgType string, payload any) []byte {
	data, err := Encode(msgType, payload)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode parses the outer envelope of an inbound frame.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("invalid message: missing type")
	}
	return &env, nil
}

// DecodePayload unmarshals the envelope payload into dst. An absent
// payload leaves dst at its zero value, matching bare frames like reveal
// and reset.
func DecodePayload(env *Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return nil
}
