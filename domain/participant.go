// Package domain contains core concepts of the room system.
// This file defines partner tags and the invariants of partner scoped views.
package domain

import (
	"fmt"

	"tandem/errors"
)

// DefaultPartner is used when a request names no partner.
// Content tagged with it is merged into every partner's view.
const DefaultPartner = "default"

// ParsePartner falls back to DefaultPartner on an empty tag.
func ParsePartner(raw string) (string, error) {
	if raw == "" {
		return DefaultPartner, nil
	}
	if err := validate.Var(raw, "slug"); err != nil {
		return "", fmt.Errorf("%w: invalid partner %q", errors.ErrValidation, raw)
	}
	return raw, nil
}

// VisibleTo reports whether content tagged with owner shows up for partner.
func VisibleTo(owner, partner string) bool {
	return owner == partner || owner == DefaultPartner
}
