package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huhlig/wyldlands-gw/internal/config"
	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// PgxStore is the production Store backed by PostgreSQL, grounded in
// internal/db.DB's pgxpool connection and query style.
type PgxStore struct {
	pool *pgxpool.Pool
}

// NewPgxStore connects to the database described by cfg.
func NewPgxStore(ctx context.Context, cfg config.DatabaseConfig) (*PgxStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PgxStore{pool: pool}, nil
}

func (s *PgxStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PgxStore) LoadAccountByLogin(ctx context.Context, login string) (model.Account, string, error) {
	login = strings.ToLower(login)
	var acc model.Account
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT id, login, display_name, role, active, mfa_secret, password_hash
		 FROM accounts WHERE login = $1`, login,
	).Scan(&acc.ID, &acc.Login, &acc.Display, &acc.Role, &acc.Active, &acc.MFASecret, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, "", fmt.Errorf("account %q: %w", login, wyerr.NotFound)
		}
		return model.Account{}, "", fmt.Errorf("querying account %q: %w", login, err)
	}
	return acc, hash, nil
}

func (s *PgxStore) VerifyPassword(ctx context.Context, login, plaintext string) (bool, error) {
	_, hash, err := s.LoadAccountByLogin(ctx, login)
	if err != nil {
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *PgxStore) CreateAccount(ctx context.Context, login, plaintext string) (model.Account, error) {
	login = strings.ToLower(login)
	if _, _, err := s.LoadAccountByLogin(ctx, login); err == nil {
		return model.Account{}, fmt.Errorf("account %q already exists: %w", login, wyerr.InvalidState)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return model.Account{}, fmt.Errorf("hashing password: %w", err)
	}

	acc := model.Account{
		ID:      model.NewEntityId(),
		Login:   login,
		Display: login,
		Role:    model.RolePlayer,
		Active:  true,
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO accounts (id, login, display_name, role, active, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		acc.ID, acc.Login, acc.Display, acc.Role, acc.Active, string(hash),
	)
	if err != nil {
		return model.Account{}, fmt.Errorf("creating account %q: %w", login, err)
	}
	return acc, nil
}

func (s *PgxStore) ListAvatars(ctx context.Context, accountID model.PersistentEntityId) ([]model.AvatarSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, level FROM avatars WHERE account_id = $1 ORDER BY name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing avatars for %s: %w", accountID, err)
	}
	defer rows.Close()

	var out []model.AvatarSummary
	for rows.Next() {
		var a model.AvatarSummary
		if err := rows.Scan(&a.EntityId, &a.Name, &a.Level); err != nil {
			return nil, fmt.Errorf("scanning avatar row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PgxStore) LoadAvatar(ctx context.Context, entityID model.PersistentEntityId) (EntityRecord, error) {
	var rec EntityRecord
	var attrs map[string]string
	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, name, room_name, attributes FROM avatars WHERE id = $1`, entityID,
	).Scan(&rec.ID, &rec.OwnerID, &rec.Name, &rec.RoomName, &attrs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EntityRecord{}, fmt.Errorf("avatar %s: %w", entityID, wyerr.NotFound)
		}
		return EntityRecord{}, fmt.Errorf("querying avatar %s: %w", entityID, err)
	}
	rec.Attributes = attrs
	return rec, nil
}

func (s *PgxStore) SaveEntity(ctx context.Context, rec EntityRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO avatars (id, account_id, name, room_name, attributes)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, room_name = EXCLUDED.room_name, attributes = EXCLUDED.attributes`,
		rec.ID, rec.OwnerID, rec.Name, rec.RoomName, rec.Attributes,
	)
	if err != nil {
		return fmt.Errorf("saving entity %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PgxStore) GetProperty(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM world_properties WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("property %q: %w", key, wyerr.NotFound)
		}
		return "", fmt.Errorf("querying property %q: %w", key, err)
	}
	return value, nil
}

func (s *PgxStore) SetProperty(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO world_properties (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("setting property %q: %w", key, err)
	}
	return nil
}
