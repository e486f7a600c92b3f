package ports

import (
	"context"

	"github.com/splatsvc/coralgate/core"
)

// TokenStore persists user accounts and their token records.
//
// Multi-record writes are transactional: either every record in one
// exchange's output is committed or none are.
type TokenStore interface {
	// GetUser looks up an account by its external identity.
	// Returns core.ErrUserNotFound when absent.
	GetUser(ctx context.Context, externalID string) (*core.UserAccount, error)

	// CreateUser commits a new account together with its initial token
	// records in one transaction. Returns core.ErrUserExists when an
	// account already exists for the external identity.
	CreateUser(ctx context.Context, user *core.UserAccount, tokens []core.TokenRecord) error

	// DeleteUser removes an account and all its token records.
	DeleteUser(ctx context.Context, externalID string) error

	// GetToken reads one token record for a user.
	// Returns core.ErrTokenNotFound when absent.
	GetToken(ctx context.Context, userID string, kind core.TokenKind) (core.TokenRecord, error)

	// PutTokens overwrites the given token records for a user in one
	// transaction.
	PutTokens(ctx context.Context, userID string, tokens []core.TokenRecord) error

	// UpdateToken overwrites the value and expiry of a single token record.
	UpdateToken(ctx context.Context, userID string, kind core.TokenKind, value string, expiresAt int64) error
}

// VersionStore persists the app-version strings and the persisted-query
// hash map, refreshed out-of-band from hosted metadata feeds.
type VersionStore interface {
	// GetVersion reads one named version entry.
	// Returns core.ErrVersionNotFound when absent.
	GetVersion(ctx context.Context, name string) (string, error)

	// SetVersions commits all given entries in one transaction.
	SetVersions(ctx context.Context, entries map[string]string) error
}
