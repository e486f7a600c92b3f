package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide between retrying,
// escalating to a wider refresh, or surfacing a message to the user.
type Kind int

const (
	// KindNone means the error carries no classification.
	KindNone Kind = iota

	// KindInvalidURL means the user-supplied callback URL was malformed.
	KindInvalidURL

	// KindGetFailure covers any transport, parse, or unexpected-shape
	// failure from an upstream service.
	KindGetFailure

	// KindInvalidToken means an upstream rejected a token as expired or invalid.
	KindInvalidToken

	// KindUserNotRegistered means the account has never used the game online.
	// Terminal, not retriable.
	KindUserNotRegistered

	// KindObsoleteVersion means the cached client version string was rejected
	// upstream. Requires a version refresh, not retriable here.
	KindObsoleteVersion

	// KindMissingKeys is reserved for integrity-token edge cases.
	KindMissingKeys

	// KindKeyExpired is reserved for integrity-token edge cases.
	KindKeyExpired
)

// String returns the wire-stable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindGetFailure:
		return "get_failure"
	case KindInvalidToken:
		return "invalid_token"
	case KindUserNotRegistered:
		return "user_not_registered"
	case KindObsoleteVersion:
		return "obsolete_version"
	case KindMissingKeys:
		return "missing_keys"
	case KindKeyExpired:
		return "key_expired"
	default:
		return "none"
	}
}

// Error is a classified failure from an exchange or request operation.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// E builds a classified error. Cause may be nil.
func E(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the classification from an error chain.
// Unclassified errors report KindNone.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNone
}

var (
	// ErrUserNotFound is returned when no account exists for an external identity.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when an account already exists for an external identity.
	ErrUserExists = errors.New("user already registered")

	// ErrTokenNotFound is returned when a token record is missing from the store.
	ErrTokenNotFound = errors.New("token not found")

	// ErrVersionNotFound is returned when a version entry is missing from the store.
	ErrVersionNotFound = errors.New("version entry not found")

	// ErrHashNotFound is returned when no persisted-query hash exists for a query name.
	ErrHashNotFound = errors.New("persisted query hash not found")
)
