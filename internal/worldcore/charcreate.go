package worldcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/persist"
	"github.com/huhlig/wyldlands-gw/internal/world"
)

// builderStep is one stage of the linear character creation builder
// (§4.8): name → attributes → skills → talents → nationality → confirm.
type builderStep int

const (
	stepName builderStep = iota
	stepAttributes
	stepSkills
	stepTalents
	stepNationality
	stepConfirm
	stepDone
)

// CharacterBuilder walks a new account through character creation one
// prompt at a time, accumulating answers until Confirm completes the
// avatar and hands it to the dispatch core for persistence and spawn.
type CharacterBuilder struct {
	step        builderStep
	Name        string
	Attributes  string
	Skills      string
	Talents     string
	Nationality string
}

// NewCharacterBuilder starts a fresh builder at its first step.
func NewCharacterBuilder() *CharacterBuilder {
	return &CharacterBuilder{step: stepName}
}

// Prompt returns the question for the builder's current step.
func (b *CharacterBuilder) Prompt() model.GameOutput {
	switch b.step {
	case stepName:
		return model.System("Choose a name for your character: ")
	case stepAttributes:
		return model.System("Assign your attributes (e.g. 'str 10 dex 10 con 10'): ")
	case stepSkills:
		return model.System("Choose your starting skills, comma-separated: ")
	case stepTalents:
		return model.System("Choose a talent: ")
	case stepNationality:
		return model.System("Choose your nationality: ")
	case stepConfirm:
		return model.System(fmt.Sprintf(
			"Confirm character:\r\n  name: %s\r\n  attributes: %s\r\n  skills: %s\r\n  talents: %s\r\n  nationality: %s\r\nType 'yes' to confirm, 'no' to start over.",
			b.Name, b.Attributes, b.Skills, b.Talents, b.Nationality))
	default:
		return model.System("")
	}
}

// Advance feeds one line of input into the current step, returning either
// a follow-up prompt or a signal that the builder is complete.
func (b *CharacterBuilder) Advance(text string) (prompt model.GameOutput, done bool) {
	text = strings.TrimSpace(text)
	switch b.step {
	case stepName:
		if text == "" {
			return model.System("A name is required. Choose a name: "), false
		}
		b.Name = text
		b.step = stepAttributes
	case stepAttributes:
		b.Attributes = text
		b.step = stepSkills
	case stepSkills:
		b.Skills = text
		b.step = stepTalents
	case stepTalents:
		b.Talents = text
		b.step = stepNationality
	case stepNationality:
		b.Nationality = text
		b.step = stepConfirm
	case stepConfirm:
		if strings.EqualFold(text, "no") {
			*b = *NewCharacterBuilder()
			return b.Prompt(), false
		}
		if strings.EqualFold(text, "yes") {
			b.step = stepDone
			return model.GameOutput{}, true
		}
		return model.System("Type 'yes' to confirm, 'no' to start over."), false
	}
	return b.Prompt(), false
}

// stepCharacterCreation delegates to sess.Builder until it completes, then
// persists the new avatar and transitions to Playing (§4.8).
func (d *Dispatcher) stepCharacterCreation(ctx context.Context, sess *ServerSession, text string) ([]model.GameOutput, error) {
	prompt, done := sess.Builder.Advance(text)
	if !done {
		return []model.GameOutput{prompt}, nil
	}

	b := sess.Builder
	entityID := model.NewEntityId()
	rec := persist.EntityRecord{
		ID:       entityID,
		OwnerID:  *sess.AccountID,
		Name:     b.Name,
		RoomName: string(d.startRoom),
		Attributes: map[string]string{
			"attributes":  b.Attributes,
			"skills":      b.Skills,
			"talents":     b.Talents,
			"nationality": b.Nationality,
		},
	}
	if err := d.store.SaveEntity(ctx, rec); err != nil {
		return nil, fmt.Errorf("persisting new character %q: %w", b.Name, err)
	}

	entity, err := d.world.Spawn(entityID, world.KindAvatar, b.Name, d.startRoom)
	if err != nil {
		return nil, fmt.Errorf("spawning new character %q: %w", b.Name, err)
	}
	for k, v := range rec.Attributes {
		entity.SetAttr(k, v)
	}

	sess.EntityID = &entityID
	sess.Handle = entity.Handle
	sess.Builder = nil
	sess.State = StatePlaying
	sess.PendingEntityEvents = append(sess.PendingEntityEvents, vitalsEvent(entity))

	return []model.GameOutput{
		model.System(fmt.Sprintf("Welcome, %s!", b.Name)),
		lookOutput(d.world, d.startRoom),
	}, nil
}
