package worldcore

import (
	"context"
	"log/slog"
	"testing"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/persist"
	"github.com/huhlig/wyldlands-gw/internal/world"
)

func testWorld(t *testing.T) *world.World {
	t.Helper()
	w := world.New()
	w.AddRoom(&world.Room{
		ID: "town-square", Name: "Town Square",
		Description: "A bustling square.",
		Exits:       map[string]world.RoomID{"north": "market-street"},
	})
	w.AddRoom(&world.Room{
		ID: "market-street", Name: "Market Street",
		Description: "Stalls line the street.",
		Exits:       map[string]world.RoomID{"south": "town-square"},
	})
	return w
}

func testDispatcher(t *testing.T) (*Dispatcher, *persist.MemoryStore) {
	t.Helper()
	store := persist.NewMemoryStore()
	w := testWorld(t)
	log := slog.New(slog.DiscardHandler)
	return New(log, store, w, "town-square", nil), store
}

// TestDispatcher_HappyLogin drives §8 scenario 1: username/password login
// followed by character selection and a room description.
func TestDispatcher_HappyLogin(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()

	acc, err := store.CreateAccount(ctx, "alice", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveEntity(ctx, persist.EntityRecord{
		ID: model.NewEntityId(), OwnerID: acc.ID, Name: "Alice the Bold", RoomName: "town-square",
	}); err != nil {
		t.Fatal(err)
	}

	sid := model.NewSessionId()

	out, _, err := d.HandleInput(ctx, sid, "alice")
	if err != nil {
		t.Fatalf("username step: %v", err)
	}
	if len(out) != 1 || out[0].PlainText() == "" {
		t.Fatalf("expected password prompt, got %+v", out)
	}

	out, _, err = d.HandleInput(ctx, sid, "password123")
	if err != nil {
		t.Fatalf("password step: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected character menu, got %+v", out)
	}

	sess := d.sessions.Get(sid)
	if sess.State != StateAuthenticated {
		t.Fatalf("state after login = %s, want authenticated", sess.State)
	}

	out, _, err = d.HandleInput(ctx, sid, "1")
	if err != nil {
		t.Fatalf("character selection: %v", err)
	}
	if len(out) != 1 || out[0].Kind != model.OutputRoom {
		t.Fatalf("expected room description, got %+v", out)
	}
	if out[0].Room.Name != "Town Square" {
		t.Fatalf("room name = %q, want Town Square", out[0].Room.Name)
	}

	sess = d.sessions.Get(sid)
	if sess.State != StatePlaying {
		t.Fatalf("state after character selection = %s, want playing", sess.State)
	}
}

func TestDispatcher_LoginIncorrectPassword(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()
	if _, err := store.CreateAccount(ctx, "bob", "correct-horse"); err != nil {
		t.Fatal(err)
	}

	sid := model.NewSessionId()
	if _, _, err := d.HandleInput(ctx, sid, "bob"); err != nil {
		t.Fatal(err)
	}
	out, _, err := d.HandleInput(ctx, sid, "wrong-password")
	if err != nil {
		t.Fatal(err)
	}
	if out[0].PlainText() == "" {
		t.Fatal("expected a rejection message")
	}
	if d.sessions.Get(sid).State != StateUnauthenticated {
		t.Fatal("failed login must not advance state")
	}
}

func TestDispatcher_ExitEmitsSentinelAndReturnsToAuthenticated(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()

	acc, _ := store.CreateAccount(ctx, "carol", "pw")
	store.SaveEntity(ctx, persist.EntityRecord{ID: model.NewEntityId(), OwnerID: acc.ID, Name: "Carol", RoomName: "town-square"})

	sid := model.NewSessionId()
	d.HandleInput(ctx, sid, "carol")
	d.HandleInput(ctx, sid, "pw")
	if _, _, err := d.HandleInput(ctx, sid, "1"); err != nil {
		t.Fatal(err)
	}

	out, _, err := d.HandleInput(ctx, sid, "exit")
	if err != nil {
		t.Fatalf("exit command: %v", err)
	}
	if len(out) != 1 || out[0].PlainText() != exitSentinel {
		t.Fatalf("got %+v, want exit sentinel", out)
	}
	if d.sessions.Get(sid).State != StateAuthenticated {
		t.Fatal("exit must return the session to Authenticated")
	}
}

func TestDispatcher_MovementFollowsExits(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()
	acc, _ := store.CreateAccount(ctx, "dave", "pw")
	store.SaveEntity(ctx, persist.EntityRecord{ID: model.NewEntityId(), OwnerID: acc.ID, Name: "Dave", RoomName: "town-square"})

	sid := model.NewSessionId()
	d.HandleInput(ctx, sid, "dave")
	d.HandleInput(ctx, sid, "pw")
	d.HandleInput(ctx, sid, "1")

	out, _, err := d.HandleInput(ctx, sid, "north")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if out[0].Room.Name != "Market Street" {
		t.Fatalf("room = %q, want Market Street", out[0].Room.Name)
	}

	out, _, err = d.HandleInput(ctx, sid, "south")
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Room.Name != "Town Square" {
		t.Fatalf("room = %q, want Town Square", out[0].Room.Name)
	}
}

func TestDispatcher_CharacterCreationFlow(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()
	if _, err := store.CreateAccount(ctx, "erin", "pw"); err != nil {
		t.Fatal(err)
	}

	sid := model.NewSessionId()
	d.HandleInput(ctx, sid, "erin")
	d.HandleInput(ctx, sid, "pw")

	if _, _, err := d.HandleInput(ctx, sid, "create new"); err != nil {
		t.Fatal(err)
	}
	if d.sessions.Get(sid).State != StateCharacterCreation {
		t.Fatal("create new must enter character creation")
	}

	steps := []string{"Erinhero", "str 10 dex 10", "fireball", "brawler", "elvish"}
	var out []model.GameOutput
	var err error
	for _, s := range steps {
		out, _, err = d.HandleInput(ctx, sid, s)
		if err != nil {
			t.Fatalf("builder step %q: %v", s, err)
		}
	}
	_ = out

	out, _, err = d.HandleInput(ctx, sid, "yes")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected welcome + room, got %+v", out)
	}
	if d.sessions.Get(sid).State != StatePlaying {
		t.Fatal("character creation must finish in Playing")
	}

	avatars, err := store.ListAvatars(ctx, *d.sessions.Get(sid).AccountID)
	if err != nil {
		t.Fatal(err)
	}
	if len(avatars) != 1 || avatars[0].Name != "Erinhero" {
		t.Fatalf("avatars = %+v", avatars)
	}
}

func TestDispatcher_ReconnectReplaysQueuedCommandsInOrder(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()
	acc, _ := store.CreateAccount(ctx, "fiona", "pw")
	store.SaveEntity(ctx, persist.EntityRecord{ID: model.NewEntityId(), OwnerID: acc.ID, Name: "Fiona", RoomName: "town-square"})

	sid := model.NewSessionId()
	d.HandleInput(ctx, sid, "fiona")
	d.HandleInput(ctx, sid, "pw")
	d.HandleInput(ctx, sid, "1")

	out, err := d.HandleReconnect(ctx, sid, []string{"look", "north"})
	if err != nil {
		t.Fatalf("HandleReconnect: %v", err)
	}
	// "look" then "north" each produce one room output, in submission order.
	if len(out) != 2 {
		t.Fatalf("got %d outputs, want 2", len(out))
	}
	if out[0].Room.Name != "Town Square" || out[1].Room.Name != "Market Street" {
		t.Fatalf("outputs out of order: %+v", out)
	}
}

// TestDispatcher_EntityEventsAccumulateAndDrainOnce covers the out-of-band
// structured surface: entering play produces a char.vitals update, movement
// a room.info update, and DrainEntityEvents empties the queue exactly once.
func TestDispatcher_EntityEventsAccumulateAndDrainOnce(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()
	acc, _ := store.CreateAccount(ctx, "hana", "pw")
	store.SaveEntity(ctx, persist.EntityRecord{ID: model.NewEntityId(), OwnerID: acc.ID, Name: "Hana", RoomName: "town-square"})

	sid := model.NewSessionId()
	d.HandleInput(ctx, sid, "hana")
	d.HandleInput(ctx, sid, "pw")
	d.HandleInput(ctx, sid, "1")
	d.HandleInput(ctx, sid, "north")

	events := d.DrainEntityEvents(ctx, sid)
	if len(events) != 2 || events[0].Field != "char.vitals" || events[1].Field != "room.info" {
		t.Fatalf("got %+v, want char.vitals then room.info", events)
	}
	room, ok := events[1].Value.(model.TableValue)
	if !ok || room["name"] != model.StringValue("Market Street") {
		t.Fatalf("room.info payload = %+v", events[1].Value)
	}

	if more := d.DrainEntityEvents(ctx, sid); len(more) != 0 {
		t.Fatalf("drain must empty the queue: %+v", more)
	}
}

// TestDispatcher_PromptOnlyWhilePlaying: the command prompt trails output in
// Playing; the other states carry their prompts in-band.
func TestDispatcher_PromptOnlyWhilePlaying(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()
	acc, _ := store.CreateAccount(ctx, "ivy", "pw")
	store.SaveEntity(ctx, persist.EntityRecord{ID: model.NewEntityId(), OwnerID: acc.ID, Name: "Ivy", RoomName: "town-square"})

	sid := model.NewSessionId()
	d.HandleInput(ctx, sid, "ivy")
	if d.Prompt(ctx, sid) != "" {
		t.Fatal("no prompt while unauthenticated")
	}
	d.HandleInput(ctx, sid, "pw")
	if d.Prompt(ctx, sid) != "" {
		t.Fatal("no prompt during character selection")
	}
	d.HandleInput(ctx, sid, "1")
	if d.Prompt(ctx, sid) != "> " {
		t.Fatalf("prompt = %q, want \"> \"", d.Prompt(ctx, sid))
	}
}

// TestDispatcher_DeferredOutputsDrainAheadOfReplay drives §4.8's deferred
// events: output that failed delivery is held on the server session and
// re-sent before any replayed command's output, exactly once.
func TestDispatcher_DeferredOutputsDrainAheadOfReplay(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()
	acc, _ := store.CreateAccount(ctx, "gwen", "pw")
	store.SaveEntity(ctx, persist.EntityRecord{ID: model.NewEntityId(), OwnerID: acc.ID, Name: "Gwen", RoomName: "town-square"})

	sid := model.NewSessionId()
	d.HandleInput(ctx, sid, "gwen")
	d.HandleInput(ctx, sid, "pw")
	d.HandleInput(ctx, sid, "1")

	d.DeferOutputs(ctx, sid, []model.GameOutput{model.System("while you were away")})

	out, err := d.HandleReconnect(ctx, sid, []string{"look"})
	if err != nil {
		t.Fatalf("HandleReconnect: %v", err)
	}
	if len(out) != 2 || out[0].PlainText() != "while you were away" || out[1].Kind != model.OutputRoom {
		t.Fatalf("got %+v, want deferred event then replayed look", out)
	}

	// Drained exactly once: a second reconnect with no commands is empty.
	out, err = d.HandleReconnect(ctx, sid, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("deferred events must not replay twice: %+v", out)
	}
}
