package world

import (
	"testing"

	"github.com/huhlig/wyldlands-gw/internal/model"
)

func twoRoomWorld() *World {
	w := New()
	w.AddRoom(&Room{ID: "town-square", Name: "Town Square", Exits: map[string]RoomID{"north": "market-street"}})
	w.AddRoom(&Room{ID: "market-street", Name: "Market Street", Exits: map[string]RoomID{"south": "town-square"}})
	return w
}

func TestWorld_SpawnUnknownRoomFails(t *testing.T) {
	w := New()
	if _, err := w.Spawn(model.NewEntityId(), KindAvatar, "Ghost", "nowhere"); err == nil {
		t.Fatal("expected spawning into a nonexistent room to fail")
	}
}

func TestWorld_SpawnAndEntitiesInRoom(t *testing.T) {
	w := twoRoomWorld()
	pid := model.NewEntityId()
	e, err := w.Spawn(pid, KindAvatar, "Alice", "town-square")
	if err != nil {
		t.Fatal(err)
	}

	if w.EntityCount() != 1 {
		t.Fatalf("entity count = %d, want 1", w.EntityCount())
	}
	in := w.EntitiesInRoom("town-square")
	if len(in) != 1 || in[0].Handle != e.Handle {
		t.Fatalf("entities in room = %+v", in)
	}

	h, ok := w.HandleFor(pid)
	if !ok || h != e.Handle {
		t.Fatalf("HandleFor(%v) = (%v, %v), want (%v, true)", pid, h, ok, e.Handle)
	}
}

func TestWorld_MoveRelocatesBetweenRooms(t *testing.T) {
	w := twoRoomWorld()
	e, err := w.Spawn(model.NewEntityId(), KindAvatar, "Bob", "town-square")
	if err != nil {
		t.Fatal(err)
	}

	from, err := w.Move(e.Handle, "market-street")
	if err != nil {
		t.Fatal(err)
	}
	if from != "town-square" {
		t.Fatalf("from = %q, want town-square", from)
	}
	if len(w.EntitiesInRoom("town-square")) != 0 {
		t.Fatal("town-square should be empty after the move")
	}
	if len(w.EntitiesInRoom("market-street")) != 1 {
		t.Fatal("market-street should have one occupant after the move")
	}
	if e.Room != "market-street" {
		t.Fatalf("entity's own Room field = %q, want market-street", e.Room)
	}
}

func TestWorld_MoveToUnknownRoomFails(t *testing.T) {
	w := twoRoomWorld()
	e, _ := w.Spawn(model.NewEntityId(), KindAvatar, "Carol", "town-square")
	if _, err := w.Move(e.Handle, "the-void"); err == nil {
		t.Fatal("expected moving into a nonexistent room to fail")
	}
	if e.Room != "town-square" {
		t.Fatal("a failed move must not change the entity's room")
	}
}

func TestWorld_DespawnRemovesFromRoomAndIndex(t *testing.T) {
	w := twoRoomWorld()
	pid := model.NewEntityId()
	e, _ := w.Spawn(pid, KindAvatar, "Dave", "town-square")

	w.Despawn(e.Handle)

	if w.EntityCount() != 0 {
		t.Fatal("entity count should be 0 after despawn")
	}
	if len(w.EntitiesInRoom("town-square")) != 0 {
		t.Fatal("despawned entity must not remain in its room")
	}
	if _, ok := w.HandleFor(pid); ok {
		t.Fatal("despawned entity must not resolve by persistent id")
	}
	if w.Entity(e.Handle) != nil {
		t.Fatal("despawned entity must not be retrievable by handle")
	}
}

func TestWorld_DespawnUnknownHandleIsANoop(t *testing.T) {
	w := twoRoomWorld()
	w.Despawn(Handle(999999))
}

func TestEntity_AttrSetAndGet(t *testing.T) {
	e := &Entity{Name: "Erin"}
	if e.Attr("level") != "" {
		t.Fatal("unset attribute must return empty string")
	}
	e.SetAttr("level", "5")
	if e.Attr("level") != "5" {
		t.Fatalf("level = %q, want 5", e.Attr("level"))
	}
}

func TestNewHandle_ReturnsDistinctValues(t *testing.T) {
	a := NewHandle()
	b := NewHandle()
	if a == b {
		t.Fatal("successive handles must be distinct")
	}
}

func TestRoom_ExitNames(t *testing.T) {
	r := &Room{ID: "x", Exits: map[string]RoomID{"north": "a", "south": "b"}}
	names := r.ExitNames()
	if len(names) != 2 {
		t.Fatalf("got %d exit names, want 2", len(names))
	}
}
