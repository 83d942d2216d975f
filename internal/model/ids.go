// Package model holds the data types shared across the gateway and the
// world: session and entity identifiers, the GameOutput wire union, and
// account records. Persistence and game-mechanics detail live elsewhere;
// this package only carries the shapes that cross the gateway<->world
// boundary or the wire.
package model

import "github.com/google/uuid"

// SessionId is a 128-bit identifier, stable for the lifetime of a session
// across transport disconnects until the session is Closed or its
// reconnection token expires.
type SessionId = uuid.UUID

// NewSessionId returns a fresh random SessionId.
func NewSessionId() SessionId {
	return uuid.New()
}

// ParseSessionId parses the string form used on the wire.
func ParseSessionId(s string) (SessionId, error) {
	return uuid.Parse(s)
}

// PersistentEntityId is the stable, database-backed identifier for an
// avatar. Distinct from any transient in-memory handle used by the world's
// entity container (see internal/world.Handle) — the two must never be
// conflated across the network or persistence boundary.
type PersistentEntityId = uuid.UUID

// NewEntityId returns a fresh random PersistentEntityId.
func NewEntityId() PersistentEntityId {
	return uuid.New()
}

// ParseEntityId parses the string form used on the wire.
func ParseEntityId(s string) (PersistentEntityId, error) {
	return uuid.Parse(s)
}
