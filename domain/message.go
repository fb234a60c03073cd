// Package domain contains core concepts of the room system.
// This file defines chat messages and the events carried over the chat socket.
package domain

import (
	"encoding/json"
	"fmt"

	"tandem/errors"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one line of a chat room. It is identified by ID only,
// a second write with the same ID replaces the first one.
type ChatMessage struct {
	ID      string `json:"id" validate:"required,max=128"`
	User    string `json:"user" validate:"max=128"`
	Role    Role   `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

func (m ChatMessage) Key() string { return m.ID }

type EventType string

const (
	EventAll    EventType = "all"
	EventAdd    EventType = "add"
	EventUpdate EventType = "update"
)

// ChatEvent is an inbound add or update, and is echoed verbatim to peers.
type ChatEvent struct {
	Type EventType `json:"type" validate:"required,oneof=add update"`
	ChatMessage
}

// SnapshotEvent carries the whole history of a room.
type SnapshotEvent struct {
	Type     EventType     `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

func NewSnapshotEvent(messages []ChatMessage) SnapshotEvent {
	if messages == nil {
		messages = []ChatMessage{}
	}
	return SnapshotEvent{Type: EventAll, Messages: messages}
}

// ParseChatEvent rejects anything that is not a well formed add or update.
func ParseChatEvent(raw []byte) (ChatEvent, error) {
	var evt ChatEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return ChatEvent{}, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	if err := validate.Struct(evt); err != nil {
		return ChatEvent{}, fmt.Errorf("%w: %s", errors.ErrMalformedEvent, describe(err))
	}
	return evt, nil
}
