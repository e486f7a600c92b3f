package core

import "time"

// TokenKind identifies one of the three dependent service tokens a user owns.
type TokenKind int

const (
	// TokenSession is the long-lived session token obtained from the
	// interactive PKCE login. It is never refreshed automatically.
	TokenSession TokenKind = iota + 1

	// TokenGameWeb is the mid-lived web-access token scoped to the game's
	// companion service. Carried as the _gtoken cookie on downstream calls.
	TokenGameWeb

	// TokenBullet is the shortest-lived bearer token used directly on the
	// downstream GraphQL endpoint.
	TokenBullet
)

// String returns the store-stable name of the kind.
func (k TokenKind) String() string {
	switch k {
	case TokenSession:
		return "session"
	case TokenGameWeb:
		return "game_web"
	case TokenBullet:
		return "bullet"
	default:
		return "unknown"
	}
}

// TokenRecord is one persisted token owned by exactly one UserAccount.
// ExpiresAt is absolute epoch seconds.
type TokenRecord struct {
	Kind      TokenKind
	Value     string
	ExpiresAt int64
}

// Expired reports whether the record is expired at the given instant.
// The boundary is inclusive: a token expiring exactly now is expired.
func (t TokenRecord) Expired(now time.Time) bool {
	return t.ExpiresAt <= now.Unix()
}
