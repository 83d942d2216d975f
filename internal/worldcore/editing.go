package worldcore

import (
	"context"
	"strings"

	"github.com/huhlig/wyldlands-gw/internal/model"
)

// saveSentinel/cancelSentinel terminate an editing buffer (§4.8), matching
// the keystroke-mode tokens internal/protocol.WebSocketAdapter recognizes
// and offering the line-mode equivalent for telnet clients.
const (
	saveSentinel   = "@SAVE@"
	cancelSentinel = "@CANCEL@"
)

// FieldWriter is the collaborator spec.md §4.8 names for the Editing
// state's save step — generalized from
// original_source/server/src/ecs/components/persistence.rs's
// apply-then-mark-dirty-then-persist pattern (there, ECS marker
// components; here, a typed field write against either an avatar's
// attribute bag or a world property).
type FieldWriter interface {
	WriteField(ctx context.Context, objectType, objectID, field, value string) error
}

// storeFieldWriter implements FieldWriter against internal/persist.Store.
type storeFieldWriter struct {
	d *Dispatcher
}

func (w storeFieldWriter) WriteField(ctx context.Context, objectType, objectID, field, value string) error {
	switch objectType {
	case "property":
		return w.d.store.SetProperty(ctx, field, value)
	case "avatar":
		entityID, err := model.ParseEntityId(objectID)
		if err != nil {
			return err
		}
		rec, err := w.d.store.LoadAvatar(ctx, entityID)
		if err != nil {
			return err
		}
		if rec.Attributes == nil {
			rec.Attributes = make(map[string]string)
		}
		rec.Attributes[field] = value
		return w.d.store.SaveEntity(ctx, rec)
	default:
		return nil
	}
}

// BeginEditing switches sess into StateEditing against the named field of
// an object. In the command table it is reached only through the
// builder-only "edit" command (cmdEdit); no admin UI is in scope per
// SPEC_FULL.md's restated Non-goals.
func (d *Dispatcher) BeginEditing(sess *ServerSession, objectType, objectID, field, title string) model.GameOutput {
	sess.Editing = &EditingContext{ObjectType: objectType, ObjectID: objectID, Field: field, Title: title}
	sess.State = StateEditing
	return model.System("Editing " + title + ". Type your text, then " + saveSentinel + " to save or " + cancelSentinel + " to cancel.")
}

// stepEditing accumulates input into the active editing_context's buffer
// until a save or cancel sentinel arrives (§4.8).
func (d *Dispatcher) stepEditing(ctx context.Context, sess *ServerSession, text string) ([]model.GameOutput, error) {
	trimmed := strings.TrimSpace(text)
	ec := sess.Editing

	switch trimmed {
	case saveSentinel, "/save":
		writer := storeFieldWriter{d: d}
		err := writer.WriteField(ctx, ec.ObjectType, ec.ObjectID, ec.Field, ec.Buffer)
		sess.Editing = nil
		sess.State = StatePlaying
		if err != nil {
			return nil, err
		}
		return []model.GameOutput{model.InputModeChange("line", ""), model.System("Saved.")}, nil
	case cancelSentinel, "/cancel":
		sess.Editing = nil
		sess.State = StatePlaying
		return []model.GameOutput{model.InputModeChange("line", ""), model.System("Cancelled.")}, nil
	default:
		if ec.Buffer != "" {
			ec.Buffer += "\n"
		}
		ec.Buffer += text
		return nil, nil
	}
}
