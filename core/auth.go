package core

// LoginChallenge holds the PKCE material for one login attempt.
// It is created per attempt, handed to the caller, and discarded once the
// session code is consumed or the attempt times out. Never persisted.
type LoginChallenge struct {
	State     string // opaque CSRF state embedded in the login URL
	Verifier  string // URL-safe base64, no padding
	Challenge string // URL-safe base64, no padding, of SHA-256(Verifier)
	LoginURL  string
}

// UserAccount binds an external identity to its owned token records.
// Only Language and Country survive from the upstream profile.
type UserAccount struct {
	ID         string
	ExternalID string
	Language   string
	Country    string
}

// Identity is the upstream account profile plus the id/access token pair.
// Ephemeral: held only for the duration of one exchange chain.
type Identity struct {
	IDToken     string
	AccessToken string
	Nickname    string
	Language    string
	Country     string
	Birthday    string
	AccountID   string
}

// IntegrityToken is a short-lived attestation obtained from the third-party
// integrity service. Single-use: each exchange step that needs one must
// request it freshly.
type IntegrityToken struct {
	Value     string
	RequestID string
	Timestamp string
}

// VersionInfo carries the two client-version strings embedded verbatim in
// upstream request headers. Refreshed out-of-band.
type VersionInfo struct {
	AppVersion     string
	WebViewVersion string
}
