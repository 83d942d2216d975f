package worldcore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/world"
)

// stepAuthenticated interprets input as a character-selection choice
// (§4.8): a list index plays an existing avatar, "create new" starts the
// character builder.
func (d *Dispatcher) stepAuthenticated(ctx context.Context, sess *ServerSession, text string) ([]model.GameOutput, error) {
	text = strings.TrimSpace(text)

	if strings.EqualFold(text, "create new") || strings.EqualFold(text, "new") {
		sess.Builder = NewCharacterBuilder()
		sess.State = StateCharacterCreation
		return []model.GameOutput{sess.Builder.Prompt()}, nil
	}

	idx, err := strconv.Atoi(text)
	if err != nil || idx < 1 || idx > len(sess.Avatars) {
		return []model.GameOutput{model.System("Enter a number to play, or 'create new' to build a character.")}, nil
	}
	chosen := sess.Avatars[idx-1]

	rec, err := d.store.LoadAvatar(ctx, chosen.EntityId)
	if err != nil {
		return nil, fmt.Errorf("loading avatar %s: %w", chosen.EntityId, err)
	}

	room := world.RoomID(rec.RoomName)
	if room == "" {
		room = d.startRoom
	}
	entity, err := d.world.Spawn(rec.ID, world.KindAvatar, rec.Name, room)
	if err != nil {
		return nil, fmt.Errorf("spawning avatar %s: %w", rec.Name, err)
	}
	for k, v := range rec.Attributes {
		entity.SetAttr(k, v)
	}

	sess.EntityID = &rec.ID
	sess.Handle = entity.Handle
	sess.State = StatePlaying
	sess.PendingEntityEvents = append(sess.PendingEntityEvents, vitalsEvent(entity))

	return []model.GameOutput{lookOutput(d.world, room)}, nil
}
