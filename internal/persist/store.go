// Package persist implements the opaque persistence collaborator spec.md
// §6 names: account credential storage, avatar listing/loading, entity
// save, and world property storage. Grounded in the teacher's
// internal/db.DB (pgxpool connection/query shape, GetAccount/CreateAccount/
// UpdateLastLogin method style) but rewritten for bcrypt credentials and
// the spec's avatar/entity/property shapes instead of L2's account+player
// tables.
package persist

import (
	"context"

	"github.com/huhlig/wyldlands-gw/internal/model"
)

// Store is the persistence collaborator the world dispatch core depends on.
// Defined as an interface so internal/worldcore can be tested against
// MemoryStore without a database.
type Store interface {
	// LoadAccountByLogin returns the account for login, or wyerr.NotFound.
	LoadAccountByLogin(ctx context.Context, login string) (model.Account, string, error)

	// VerifyPassword checks plaintext against the stored hash for login.
	VerifyPassword(ctx context.Context, login, plaintext string) (bool, error)

	// CreateAccount inserts a new account with a bcrypt hash of plaintext,
	// returning wyerr.InvalidState if login is already taken.
	CreateAccount(ctx context.Context, login, plaintext string) (model.Account, error)

	// ListAvatars returns the character-selection summaries owned by
	// accountID.
	ListAvatars(ctx context.Context, accountID model.PersistentEntityId) ([]model.AvatarSummary, error)

	// LoadAvatar loads the full persisted entity state for entityID, or
	// wyerr.NotFound.
	LoadAvatar(ctx context.Context, entityID model.PersistentEntityId) (EntityRecord, error)

	// SaveEntity persists rec, upserting on rec.ID.
	SaveEntity(ctx context.Context, rec EntityRecord) error

	// GetProperty returns a single named world property (banners, UI
	// assets), or wyerr.NotFound.
	GetProperty(ctx context.Context, key string) (string, error)

	// SetProperty upserts a named world property.
	SetProperty(ctx context.Context, key, value string) error

	Close() error
}

// EntityRecord is the persisted shape of an avatar or NPC: identity plus
// opaque attribute bag, so internal/world's entity container can evolve its
// in-memory representation without a migration every time a new stat is
// added.
type EntityRecord struct {
	ID         model.PersistentEntityId
	OwnerID    model.PersistentEntityId
	Name       string
	RoomName   string
	Attributes map[string]string
}
