// Package world is the in-memory entity container: a room graph plus the
// avatars and NPCs occupying it. Grounded in the teacher's
// internal/world.World (singleton object/region registry via sync.Map) but
// rebuilt for a room-graph MUD rather than a 2D spatial grid — see
// DESIGN.md's "entity container simplification" entry. One writer at a
// time, many concurrent readers, enforced with a single sync.RWMutex
// rather than the teacher's per-region sync.Map, since there is no spatial
// partitioning left to parallelize across.
package world

import (
	"fmt"
	"sync"

	"github.com/huhlig/wyldlands-gw/internal/model"
)

// World is the single entity container for one running game. Unlike the
// teacher's package-level singleton, this is an explicit value owned by
// internal/worldcore so tests can construct independent instances.
type World struct {
	mu sync.RWMutex

	rooms        map[RoomID]*Room
	entities     map[Handle]*Entity
	byPersistent map[model.PersistentEntityId]Handle
	byRoom       map[RoomID]map[Handle]struct{}
}

// New returns an empty World.
func New() *World {
	return &World{
		rooms:        make(map[RoomID]*Room),
		entities:     make(map[Handle]*Entity),
		byPersistent: make(map[model.PersistentEntityId]Handle),
		byRoom:       make(map[RoomID]map[Handle]struct{}),
	}
}

// AddRoom registers a room, replacing any existing room with the same ID.
func (w *World) AddRoom(r *Room) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rooms[r.ID] = r
}

// Room returns the room with the given ID, or nil if it doesn't exist.
func (w *World) Room(id RoomID) *Room {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rooms[id]
}

// RoomCount returns the number of rooms registered.
func (w *World) RoomCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.rooms)
}

// Spawn adds a new entity to room and returns it; its Handle field holds the
// transient Handle.
func (w *World) Spawn(persistentID model.PersistentEntityId, kind EntityKind, name string, room RoomID) (*Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.rooms[room]; !ok {
		return nil, fmt.Errorf("spawning %q: room %q does not exist", name, room)
	}

	e := &Entity{
		Handle:       NewHandle(),
		PersistentID: persistentID,
		Kind:         kind,
		Name:         name,
		Room:         room,
		Attributes:   make(map[string]string),
	}
	w.entities[e.Handle] = e
	w.byPersistent[persistentID] = e.Handle
	w.addToRoom(e.Handle, room)
	return e, nil
}

// Despawn removes an entity from the world entirely (disconnect, logout).
func (w *World) Despawn(h Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[h]
	if !ok {
		return
	}
	w.removeFromRoom(h, e.Room)
	delete(w.entities, h)
	delete(w.byPersistent, e.PersistentID)
}

// Entity returns the entity for h, or nil.
func (w *World) Entity(h Handle) *Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entities[h]
}

// HandleFor returns the transient Handle bound to a PersistentEntityId, if
// that entity is currently spawned in the world.
func (w *World) HandleFor(id model.PersistentEntityId) (Handle, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.byPersistent[id]
	return h, ok
}

// Move relocates an entity to a different room, validating the destination
// exists. Returns the prior room so callers can announce departure/arrival.
func (w *World) Move(h Handle, to RoomID) (from RoomID, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entities[h]
	if !ok {
		return "", fmt.Errorf("moving unknown handle %d", h)
	}
	if _, ok := w.rooms[to]; !ok {
		return "", fmt.Errorf("room %q does not exist", to)
	}

	from = e.Room
	w.removeFromRoom(h, from)
	e.Room = to
	w.addToRoom(h, to)
	return from, nil
}

// EntitiesInRoom returns the entities currently occupying room.
func (w *World) EntitiesInRoom(room RoomID) []*Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	handles := w.byRoom[room]
	out := make([]*Entity, 0, len(handles))
	for h := range handles {
		out = append(out, w.entities[h])
	}
	return out
}

// EntityCount returns the total number of spawned entities.
func (w *World) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

func (w *World) addToRoom(h Handle, room RoomID) {
	set, ok := w.byRoom[room]
	if !ok {
		set = make(map[Handle]struct{})
		w.byRoom[room] = set
	}
	set[h] = struct{}{}
}

func (w *World) removeFromRoom(h Handle, room RoomID) {
	if set, ok := w.byRoom[room]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(w.byRoom, room)
		}
	}
}
