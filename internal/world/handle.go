package world

import "sync/atomic"

// Handle is a transient, process-lifetime identifier for an entity inside
// the world's in-memory container. Distinct from model.PersistentEntityId,
// which survives restarts — the two must never be conflated across the
// network or persistence boundary (see internal/model.PersistentEntityId).
//
// Grounded in the teacher's internal/world.ObjectIDGenerator (atomic
// counter handing out unique object IDs), simplified to a single counter
// since this world has no player/NPC/item ID-range convention to preserve.
type Handle uint64

var nextHandle atomic.Uint64

// NewHandle returns a fresh, unique Handle.
func NewHandle() Handle {
	return Handle(nextHandle.Add(1))
}
