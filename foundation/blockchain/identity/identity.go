// Package identity constructs and validates node identities. A node id is
// 16 random bytes, hex encoded to a 32 character string. Its first hex
// character is the node's group, used by the overlay manager to balance
// internal versus external connections.
package identity

import (
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

// Length is the number of hex characters in a valid node id.
const Length = 32

// New generates a fresh, random node id.
func New() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Group returns the group byte (first hex character) of a node id.
func Group(nodeID string) byte {
	if len(nodeID) == 0 {
		return 0
	}
	return nodeID[0]
}

// Validate reports whether nodeID looks like a well formed identity.
func Validate(nodeID string) error {
	if len(nodeID) != Length {
		return errors.New("node id must be 32 hex characters")
	}
	if _, err := hex.DecodeString(nodeID); err != nil {
		return errors.New("node id must be hex encoded")
	}
	return nil
}
