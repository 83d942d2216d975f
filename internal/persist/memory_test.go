package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

func TestMemoryStore_CreateAccountDuplicateLoginFails(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.CreateAccount(ctx, "alice", "pw"); err != nil {
		t.Fatal(err)
	}
	_, err := s.CreateAccount(ctx, "alice", "different-pw")
	if !errors.Is(err, wyerr.InvalidState) {
		t.Fatalf("got %v, want InvalidState", err)
	}
}

func TestMemoryStore_VerifyPasswordRejectsWrongPassword(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.CreateAccount(ctx, "bob", "correct-horse"); err != nil {
		t.Fatal(err)
	}

	ok, err := s.VerifyPassword(ctx, "bob", "correct-horse")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want true/nil", ok, err)
	}

	ok, err = s.VerifyPassword(ctx, "bob", "wrong")
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v, want false/nil", ok, err)
	}
}

func TestMemoryStore_LoadAccountByLoginNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, _, err := s.LoadAccountByLogin(context.Background(), "ghost"); !errors.Is(err, wyerr.NotFound) {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestMemoryStore_SaveEntityThenListAvatars(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	acc, err := s.CreateAccount(ctx, "carol", "pw")
	if err != nil {
		t.Fatal(err)
	}

	rec := EntityRecord{
		ID: model.NewEntityId(), OwnerID: acc.ID, Name: "Carol the Swift",
		RoomName: "town-square", Attributes: map[string]string{"level": "5"},
	}
	if err := s.SaveEntity(ctx, rec); err != nil {
		t.Fatal(err)
	}

	avatars, err := s.ListAvatars(ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(avatars) != 1 || avatars[0].Name != "Carol the Swift" || avatars[0].Level != 5 {
		t.Fatalf("avatars = %+v", avatars)
	}

	loaded, err := s.LoadAvatar(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RoomName != "town-square" {
		t.Fatalf("room = %q, want town-square", loaded.RoomName)
	}
}

func TestMemoryStore_SaveEntityUpdateDoesNotDuplicateOwnerIndex(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	acc, _ := s.CreateAccount(ctx, "dave", "pw")

	id := model.NewEntityId()
	rec := EntityRecord{ID: id, OwnerID: acc.ID, Name: "Dave", RoomName: "town-square"}
	if err := s.SaveEntity(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.RoomName = "market-street"
	if err := s.SaveEntity(ctx, rec); err != nil {
		t.Fatal(err)
	}

	avatars, err := s.ListAvatars(ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(avatars) != 1 {
		t.Fatalf("got %d avatars after re-saving the same entity, want 1", len(avatars))
	}

	loaded, err := s.LoadAvatar(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RoomName != "market-street" {
		t.Fatalf("room = %q, want updated value market-street", loaded.RoomName)
	}
}

func TestMemoryStore_PropertyRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.GetProperty(ctx, "banner.welcome"); !errors.Is(err, wyerr.NotFound) {
		t.Fatalf("got %v, want NotFound before SetProperty", err)
	}
	if err := s.SetProperty(ctx, "banner.welcome", "Welcome!"); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetProperty(ctx, "banner.welcome")
	if err != nil {
		t.Fatal(err)
	}
	if v != "Welcome!" {
		t.Fatalf("got %q, want %q", v, "Welcome!")
	}
}
