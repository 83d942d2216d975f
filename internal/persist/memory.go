package persist

import (
	"context"
	"fmt"
	"sync"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
	"golang.org/x/crypto/bcrypt"
)

// MemoryStore is an in-process Store used by worldcore's tests, standing in
// for testcontainers-backed integration tests (dropped per DESIGN.md since
// no docker daemon is available here and the toolchain is never run) —
// the same fake-collaborator pattern the teacher uses in non-container
// unit tests.
type MemoryStore struct {
	mu         sync.Mutex
	accounts   map[string]model.Account
	hashes     map[string]string
	avatars    map[model.PersistentEntityId]EntityRecord
	byAccount  map[model.PersistentEntityId][]model.PersistentEntityId
	properties map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[string]model.Account),
		hashes:     make(map[string]string),
		avatars:    make(map[model.PersistentEntityId]EntityRecord),
		byAccount:  make(map[model.PersistentEntityId][]model.PersistentEntityId),
		properties: make(map[string]string),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) LoadAccountByLogin(_ context.Context, login string) (model.Account, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[login]
	if !ok {
		return model.Account{}, "", fmt.Errorf("account %q: %w", login, wyerr.NotFound)
	}
	return acc, s.hashes[login], nil
}

func (s *MemoryStore) VerifyPassword(_ context.Context, login, plaintext string) (bool, error) {
	s.mu.Lock()
	hash, ok := s.hashes[login]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("account %q: %w", login, wyerr.NotFound)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, login, plaintext string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[login]; ok {
		return model.Account{}, fmt.Errorf("account %q already exists: %w", login, wyerr.InvalidState)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return model.Account{}, fmt.Errorf("hashing password: %w", err)
	}
	acc := model.Account{ID: model.NewEntityId(), Login: login, Display: login, Role: model.RolePlayer, Active: true}
	s.accounts[login] = acc
	s.hashes[login] = string(hash)
	return acc, nil
}

func (s *MemoryStore) ListAvatars(_ context.Context, accountID model.PersistentEntityId) ([]model.AvatarSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AvatarSummary
	for _, id := range s.byAccount[accountID] {
		rec := s.avatars[id]
		level := 1
		if lvl, ok := rec.Attributes["level"]; ok {
			fmt.Sscanf(lvl, "%d", &level)
		}
		out = append(out, model.AvatarSummary{EntityId: rec.ID, Name: rec.Name, Level: level})
	}
	return out, nil
}

func (s *MemoryStore) LoadAvatar(_ context.Context, entityID model.PersistentEntityId) (EntityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.avatars[entityID]
	if !ok {
		return EntityRecord{}, fmt.Errorf("avatar %s: %w", entityID, wyerr.NotFound)
	}
	return rec, nil
}

func (s *MemoryStore) SaveEntity(_ context.Context, rec EntityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.avatars[rec.ID]; !exists {
		s.byAccount[rec.OwnerID] = append(s.byAccount[rec.OwnerID], rec.ID)
	}
	s.avatars[rec.ID] = rec
	return nil
}

func (s *MemoryStore) GetProperty(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.properties[key]
	if !ok {
		return "", fmt.Errorf("property %q: %w", key, wyerr.NotFound)
	}
	return v, nil
}

func (s *MemoryStore) SetProperty(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[key] = value
	return nil
}
