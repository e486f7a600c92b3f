package store

import (
	"context"
	"sync"

	"github.com/splatsvc/coralgate/core"
)

// MemoryStore implements the TokenStore and VersionStore interfaces with an
// in-memory map. Primarily intended for testing.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]core.UserAccount              // keyed by external id
	tokens   map[string]map[core.TokenKind]core.TokenRecord // keyed by user id
	versions map[string]string
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]core.UserAccount),
		tokens:   make(map[string]map[core.TokenKind]core.TokenRecord),
		versions: make(map[string]string),
	}
}

// GetUser looks up an account by external identity.
func (s *MemoryStore) GetUser(ctx context.Context, externalID string) (*core.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[externalID]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return &user, nil
}

// CreateUser commits a new account together with its initial tokens.
func (s *MemoryStore) CreateUser(ctx context.Context, user *core.UserAccount, tokens []core.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ExternalID]; ok {
		return core.ErrUserExists
	}

	s.users[user.ExternalID] = *user
	records := make(map[core.TokenKind]core.TokenRecord, len(tokens))
	for _, t := range tokens {
		records[t.Kind] = t
	}
	s.tokens[user.ID] = records

	return nil
}

// DeleteUser removes an account and all its tokens.
func (s *MemoryStore) DeleteUser(ctx context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[externalID]
	if !ok {
		return core.ErrUserNotFound
	}
	delete(s.users, externalID)
	delete(s.tokens, user.ID)

	return nil
}

// GetToken reads one token record for a user.
func (s *MemoryStore) GetToken(ctx context.Context, userID string, kind core.TokenKind) (core.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tokens[userID][kind]
	if !ok {
		return core.TokenRecord{}, core.ErrTokenNotFound
	}
	return record, nil
}

// PutTokens overwrites the given token records for a user.
func (s *MemoryStore) PutTokens(ctx context.Context, userID string, tokens []core.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.tokens[userID]
	if !ok {
		records = make(map[core.TokenKind]core.TokenRecord)
		s.tokens[userID] = records
	}
	for _, t := range tokens {
		records[t.Kind] = t
	}

	return nil
}

// UpdateToken overwrites the value and expiry of a single token record.
func (s *MemoryStore) UpdateToken(ctx context.Context, userID string, kind core.TokenKind, value string, expiresAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[userID][kind]; !ok {
		return core.ErrTokenNotFound
	}
	s.tokens[userID][kind] = core.TokenRecord{Kind: kind, Value: value, ExpiresAt: expiresAt}

	return nil
}

// GetVersion reads one named version entry.
func (s *MemoryStore) GetVersion(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.versions[name]
	if !ok {
		return "", core.ErrVersionNotFound
	}
	return value, nil
}

// SetVersions commits all given entries together.
func (s *MemoryStore) SetVersions(ctx context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, value := range entries {
		s.versions[name] = value
	}

	return nil
}

// Clear removes all data from the store. Useful for resetting between tests.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]core.UserAccount)
	s.tokens = make(map[string]map[core.TokenKind]core.TokenRecord)
	s.versions = make(map[string]string)
}
