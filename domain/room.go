// Package domain contains core concepts of the room system.
// This file defines room identities and the parties a room belongs to.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"fmt"

	"tandem/errors"
)

// RoomID addresses one isolated room inside a party.
type RoomID string

// Party is the kind of room. Every party has its own set of rooms and collections.
type Party string

const (
	PartyChat   Party = "chat"
	PartyTandem Party = "tandem"
)

func (p Party) Valid() bool {
	return p == PartyChat || p == PartyTandem
}

// ParseRoomID accepts slugs only, so a room id can safely name a file or a key prefix.
func ParseRoomID(raw string) (RoomID, error) {
	if err := validate.Var(raw, "required,slug"); err != nil {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidRoomID, raw)
	}
	return RoomID(raw), nil
}

func ParseParty(raw string) (Party, error) {
	party := Party(raw)
	if !party.Valid() {
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownParty, raw)
	}
	return party, nil
}
