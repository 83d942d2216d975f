package world

import "github.com/huhlig/wyldlands-gw/internal/model"

// EntityKind discriminates an Entity's nature for dispatch and persistence
// purposes.
type EntityKind int

const (
	KindAvatar EntityKind = iota
	KindNPC
)

// Entity is one occupant of the world: a player's avatar or an NPC. Game
// stats and inventory live in Attributes rather than typed fields so
// internal/worldcore's command table can grow without touching this
// package — mirrored by persist.EntityRecord.Attributes on the storage
// side.
type Entity struct {
	Handle       Handle
	PersistentID model.PersistentEntityId
	Kind         EntityKind
	Name         string
	Room         RoomID
	Attributes   map[string]string
}

// Attr returns an attribute, or "" if unset.
func (e *Entity) Attr(key string) string {
	return e.Attributes[key]
}

// SetAttr sets an attribute in place.
func (e *Entity) SetAttr(key, value string) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
}
