package ports

import (
	"context"

	"github.com/splatsvc/coralgate/core"
)

// Exchanger runs the upstream token-exchange chain. Every method returns a
// classified error (core.Error) on failure; none panic.
type Exchanger interface {
	// GenerateLoginChallenge produces fresh PKCE material and the login URL.
	GenerateLoginChallenge() (*core.LoginChallenge, error)

	// ExchangeSessionCode trades the session code embedded in the pasted-back
	// callback URL for a long-lived session token.
	ExchangeSessionCode(ctx context.Context, redirectedURL string, challenge *core.LoginChallenge) (string, error)

	// FetchIdentity trades a session token for the id/access token pair and
	// the account profile.
	FetchIdentity(ctx context.Context, sessionToken string) (*core.Identity, error)

	// GenerateGameToken runs the suffix chain from identity through the
	// web-access exchange to a fresh game-web token record.
	GenerateGameToken(ctx context.Context, sessionToken string) (core.TokenRecord, error)

	// GenerateBulletToken trades a game-web token for the bullet token record
	// used on the GraphQL endpoint.
	GenerateBulletToken(ctx context.Context, sessionToken, gameToken string) (core.TokenRecord, error)
}

// VersionProvider supplies the client-version strings and persisted-query
// hashes embedded in upstream requests.
type VersionProvider interface {
	// Current returns the cached version pair.
	Current(ctx context.Context) (core.VersionInfo, error)

	// HashFor returns the persisted-query hash registered for a query name.
	// Returns core.ErrHashNotFound when the name is unknown.
	HashFor(ctx context.Context, queryName string) (string, error)
}
