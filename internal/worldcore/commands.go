package worldcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/persist"
	"github.com/huhlig/wyldlands-gw/internal/world"
)

// exitSentinel is emitted by the "exit" command and interpreted by both
// the World (to transition this session back to Authenticated) and the
// Gateway UI (§4.8).
const exitSentinel = "[EXIT_TO_CHARACTER_SELECTION]"

// CommandFunc is one entry in the Playing-state command table: a verb
// handler over the current session and its (already-validated) arguments.
type CommandFunc func(ctx context.Context, d *Dispatcher, sess *ServerSession, args string) ([]model.GameOutput, error)

var directionAliases = map[string]string{
	"n": "north", "s": "south", "e": "east", "w": "west",
	"u": "up", "d": "down", "north": "north", "south": "south",
	"east": "east", "west": "west", "up": "up", "down": "down",
}

func defaultCommandTable() map[string]CommandFunc {
	table := map[string]CommandFunc{
		"look": cmdLook, "l": cmdLook,
		"inventory": cmdInventory, "i": cmdInventory,
		"say":   cmdSay,
		"score": cmdScore, "sheet": cmdScore,
		"exit": cmdExit, "quit": cmdExit,
		"edit": cmdEdit,
	}
	for alias, canonical := range directionAliases {
		dir := canonical
		table[alias] = func(ctx context.Context, d *Dispatcher, sess *ServerSession, args string) ([]model.GameOutput, error) {
			return cmdMove(ctx, d, sess, dir)
		}
	}
	return table
}

// stepPlaying splits input into verb + args and dispatches into the
// command table (§4.8).
func (d *Dispatcher) stepPlaying(ctx context.Context, sess *ServerSession, text string) ([]model.GameOutput, error) {
	verb, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	verb = strings.ToLower(verb)
	if verb == "" {
		return nil, nil
	}

	cmd, ok := d.commands[verb]
	if !ok {
		return []model.GameOutput{model.System("Unknown command: " + verb)}, nil
	}
	return cmd(ctx, d, sess, args)
}

// cmdMove moves sess's entity through the exit named direction.
func cmdMove(ctx context.Context, d *Dispatcher, sess *ServerSession, direction string) ([]model.GameOutput, error) {
	entity := d.world.Entity(sess.Handle)
	if entity == nil {
		return []model.GameOutput{model.System("You have no body to move.")}, nil
	}
	room := d.world.Room(entity.Room)
	if room == nil {
		return []model.GameOutput{model.System("You are nowhere.")}, nil
	}

	dest, ok := room.Exits[direction]
	if !ok {
		return []model.GameOutput{model.System("You can't go that way.")}, nil
	}
	if _, err := d.world.Move(sess.Handle, dest); err != nil {
		return nil, fmt.Errorf("moving: %w", err)
	}
	if destRoom := d.world.Room(dest); destRoom != nil {
		sess.PendingEntityEvents = append(sess.PendingEntityEvents, roomEvent(entity, destRoom))
	}
	return []model.GameOutput{lookOutput(d.world, dest)}, nil
}

// vitalsEvent builds the char.vitals update pushed when an avatar enters
// play or its sheet changes.
func vitalsEvent(e *world.Entity) model.EntityEvent {
	vitals := model.TableValue{"name": model.StringValue(e.Name)}
	for k, v := range e.Attributes {
		vitals[k] = model.StringValue(v)
	}
	return model.EntityEvent{EntityID: e.PersistentID, Field: "char.vitals", Value: vitals}
}

// roomEvent builds the room.info update pushed when an avatar changes rooms.
func roomEvent(e *world.Entity, r *world.Room) model.EntityEvent {
	exits := make(model.ArrayValue, 0, len(r.Exits))
	for name := range r.Exits {
		exits = append(exits, model.StringValue(name))
	}
	return model.EntityEvent{EntityID: e.PersistentID, Field: "room.info", Value: model.TableValue{
		"name":        model.StringValue(r.Name),
		"description": model.StringValue(r.Description),
		"exits":       exits,
	}}
}

func cmdLook(ctx context.Context, d *Dispatcher, sess *ServerSession, args string) ([]model.GameOutput, error) {
	entity := d.world.Entity(sess.Handle)
	if entity == nil {
		return []model.GameOutput{model.System("You have no body.")}, nil
	}
	return []model.GameOutput{lookOutput(d.world, entity.Room)}, nil
}

func lookOutput(w *world.World, roomID world.RoomID) model.GameOutput {
	room := w.Room(roomID)
	if room == nil {
		return model.System("You are in an undefined place.")
	}
	exits := room.ExitNames()
	return model.Room(model.RoomInfo{Name: room.Name, Description: room.Description, Exits: exits})
}

func cmdInventory(ctx context.Context, d *Dispatcher, sess *ServerSession, args string) ([]model.GameOutput, error) {
	entity := d.world.Entity(sess.Handle)
	if entity == nil {
		return []model.GameOutput{model.System("You have no body.")}, nil
	}
	items := entity.Attr("inventory")
	if items == "" {
		items = "(empty)"
	}
	return []model.GameOutput{model.System("You are carrying: " + items)}, nil
}

func cmdSay(ctx context.Context, d *Dispatcher, sess *ServerSession, args string) ([]model.GameOutput, error) {
	entity := d.world.Entity(sess.Handle)
	if entity == nil || args == "" {
		return []model.GameOutput{model.System("Say what?")}, nil
	}
	return []model.GameOutput{model.Text(fmt.Sprintf("%s says, \"%s\"", entity.Name, args))}, nil
}

func cmdScore(ctx context.Context, d *Dispatcher, sess *ServerSession, args string) ([]model.GameOutput, error) {
	entity := d.world.Entity(sess.Handle)
	if entity == nil {
		return []model.GameOutput{model.System("You have no body.")}, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\r\n", entity.Name)
	for _, key := range []string{"attributes", "skills", "talents", "nationality"} {
		if v := entity.Attr(key); v != "" {
			fmt.Fprintf(&b, "  %s: %s\r\n", key, v)
		}
	}
	if sess.Role.HasPermission(model.RoleBuilder) {
		fmt.Fprintf(&b, "  [debug] entity_id: %s\r\n", entity.PersistentID)
		fmt.Fprintf(&b, "  [debug] room: %s\r\n", entity.Room)
	}
	return []model.GameOutput{model.System(b.String())}, nil
}

// cmdEdit opens the Editing state against a property or avatar field
// (§4.8), gated on the builder role ladder (SPEC_FULL.md's Dispatch
// Supplements) — the only route into BeginEditing, since no admin UI is in
// scope.
func cmdEdit(ctx context.Context, d *Dispatcher, sess *ServerSession, args string) ([]model.GameOutput, error) {
	if !sess.Role.HasPermission(model.RoleBuilder) {
		return []model.GameOutput{model.System("You don't have permission to edit that.")}, nil
	}

	objectType, field, ok := strings.Cut(strings.TrimSpace(args), " ")
	objectType = strings.ToLower(objectType)
	if !ok || objectType == "" || field == "" {
		return []model.GameOutput{model.System("Usage: edit <property|avatar> <field>")}, nil
	}

	switch objectType {
	case "property":
		return []model.GameOutput{
			model.InputModeChange("keystroke", "property "+field),
			d.BeginEditing(sess, "property", field, field, "property "+field),
		}, nil
	case "avatar":
		if sess.EntityID == nil {
			return []model.GameOutput{model.System("You have no body to edit.")}, nil
		}
		return []model.GameOutput{
			model.InputModeChange("keystroke", "avatar "+field),
			d.BeginEditing(sess, "avatar", sess.EntityID.String(), field, "avatar "+field),
		}, nil
	default:
		return []model.GameOutput{model.System("Usage: edit <property|avatar> <field>")}, nil
	}
}

func cmdExit(ctx context.Context, d *Dispatcher, sess *ServerSession, args string) ([]model.GameOutput, error) {
	entity := d.world.Entity(sess.Handle)
	if entity != nil {
		if err := d.store.SaveEntity(ctx, persist.EntityRecord{
			ID:         entity.PersistentID,
			OwnerID:    valueOrZero(sess.AccountID),
			Name:       entity.Name,
			RoomName:   string(entity.Room),
			Attributes: entity.Attributes,
		}); err != nil {
			return nil, fmt.Errorf("saving avatar on exit: %w", err)
		}
		d.world.Despawn(sess.Handle)
	}
	sess.EntityID = nil
	sess.State = StateAuthenticated
	return []model.GameOutput{model.System(exitSentinel)}, nil
}

func valueOrZero(id *model.PersistentEntityId) model.PersistentEntityId {
	if id == nil {
		return model.PersistentEntityId{}
	}
	return *id
}
