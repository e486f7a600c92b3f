package nso

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/splatsvc/coralgate/core"
)

// GenerateLoginChallenge produces fresh PKCE material and the login URL the
// user opens to authenticate their account. The only failure mode is the
// randomness source.
func (c *Client) GenerateLoginChallenge() (*core.LoginChallenge, error) {
	stateBytes := make([]byte, 36)
	if _, err := rand.Read(stateBytes); err != nil {
		return nil, fmt.Errorf("generate login state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(stateBytes)

	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	// The challenge hashes the encoded verifier string, not the raw bytes.
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	params := url.Values{
		"state":                               {state},
		"redirect_uri":                        {c.cfg.RedirectURI},
		"client_id":                           {c.cfg.ClientID},
		"scope":                               {c.cfg.Scope},
		"response_type":                       {"session_token_code"},
		"session_token_code_challenge":        {challenge},
		"session_token_code_challenge_method": {"S256"},
		"theme":                               {"login_form"},
	}

	return &core.LoginChallenge{
		State:     state,
		Verifier:  verifier,
		Challenge: challenge,
		LoginURL:  fmt.Sprintf("%s/connect/1.0.0/authorize?%s", c.cfg.AccountsBaseURL, params.Encode()),
	}, nil
}
