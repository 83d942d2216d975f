package worldcore

import (
	"context"
	"strings"
	"testing"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/world"
)

// playingSession spawns an entity directly and puts sess in StatePlaying,
// bypassing login, so command-table tests don't have to re-derive the
// login flow already covered by dispatch_test.go.
func playingSession(t *testing.T, d *Dispatcher, role model.AccountRole) (model.SessionId, *ServerSession) {
	t.Helper()
	sid := model.NewSessionId()
	sess := d.sessions.GetOrCreate(sid)
	entityID := model.NewEntityId()
	entity, err := d.world.Spawn(entityID, world.KindAvatar, "Tester", "town-square")
	if err != nil {
		t.Fatal(err)
	}
	sess.EntityID = &entityID
	sess.Handle = entity.Handle
	sess.Role = role
	sess.State = StatePlaying
	return sid, sess
}

func TestCmdScore_BuilderSeesDebugFields(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := context.Background()

	sid, _ := playingSession(t, d, model.RolePlayer)
	out, _, err := d.HandleInput(ctx, sid, "score")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out[0].PlainText(), "[debug]") {
		t.Fatal("a plain player should not see builder debug fields")
	}

	sid, _ = playingSession(t, d, model.RoleBuilder)
	out, _, err = d.HandleInput(ctx, sid, "score")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out[0].PlainText(), "[debug]") {
		t.Fatal("a builder should see debug fields on their sheet")
	}
}

func TestCmdEdit_RequiresBuilderRole(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := context.Background()

	sid, sess := playingSession(t, d, model.RolePlayer)
	out, _, err := d.HandleInput(ctx, sid, "edit property banner.welcome")
	if err != nil {
		t.Fatal(err)
	}
	if sess.State != StatePlaying {
		t.Fatal("a plain player's edit attempt must not enter Editing")
	}
	if out[0].PlainText() == "" {
		t.Fatal("expected a rejection message")
	}
}

func TestCmdEdit_BuilderEntersEditingAndSaves(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()

	sid, sess := playingSession(t, d, model.RoleBuilder)
	if _, _, err := d.HandleInput(ctx, sid, "edit property banner.welcome"); err != nil {
		t.Fatal(err)
	}
	if sess.State != StateEditing {
		t.Fatalf("state = %s, want editing", sess.State)
	}

	if _, _, err := d.HandleInput(ctx, sid, "Welcome, builder!"); err != nil {
		t.Fatal(err)
	}
	out, _, err := d.HandleInput(ctx, sid, saveSentinel)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if sess.State != StatePlaying {
		t.Fatal("save must return to Playing")
	}
	if len(out) != 2 || out[1].PlainText() != "Saved." {
		t.Fatalf("got %+v", out)
	}

	got, err := store.GetProperty(ctx, "banner.welcome")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Welcome, builder!" {
		t.Fatalf("property = %q, want the edited text", got)
	}
}
