package nso

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/splatsvc/coralgate/core"
)

// The session code sits between "de=" and the next "&" in the callback URL
// the user pastes back.
var sessionCodePattern = regexp.MustCompile(`de=(.*?)&`)

// ExchangeSessionCode extracts the session code from the pasted-back callback
// URL and trades it, together with the PKCE verifier, for a session token.
func (c *Client) ExchangeSessionCode(ctx context.Context, redirectedURL string, challenge *core.LoginChallenge) (string, error) {
	match := sessionCodePattern.FindStringSubmatch(redirectedURL)
	if match == nil {
		return "", core.E(core.KindInvalidURL, "the provided URL was not valid", nil)
	}
	sessionCode := match[1]

	appVersion, err := c.appVersion(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"client_id":                   {c.cfg.ClientID},
		"session_token_code":          {sessionCode},
		"session_token_code_verifier": {challenge.Verifier},
	}

	req, err := c.newRequest(ctx, http.MethodPost,
		c.cfg.AccountsBaseURL+"/connect/1.0.0/api/session_token",
		[]byte(form.Encode()),
		map[string]string{
			"User-Agent":      fmt.Sprintf("OnlineLounge/%s NASDKAPI Android", appVersion),
			"Accept-Language": "en-US",
			"Accept":          "application/json",
			"Content-Type":    "application/x-www-form-urlencoded",
		})
	if err != nil {
		return "", core.E(core.KindGetFailure, "unable to get session token", err)
	}

	status, body, err := c.do(req)
	if err != nil {
		return "", core.E(core.KindGetFailure, "unable to get session token", err)
	}
	if status != http.StatusOK {
		c.log.WithFields(map[string]interface{}{"status": status, "body": string(body)}).
			Warn("Session token exchange rejected")
		return "", core.E(core.KindGetFailure, "unable to get session token", nil)
	}

	var res struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.SessionToken == "" {
		return "", core.E(core.KindGetFailure, "unable to get session token", err)
	}

	return res.SessionToken, nil
}

// FetchIdentity trades a session token for the id/access token pair, then
// fetches the account profile with the access token. Both calls must succeed.
func (c *Client) FetchIdentity(ctx context.Context, sessionToken string) (*core.Identity, error) {
	tokenBody, err := json.Marshal(map[string]string{
		"client_id":     c.cfg.ClientID,
		"session_token": sessionToken,
		"grant_type":    "urn:ietf:params:oauth:grant-type:jwt-bearer-session-token",
	})
	if err != nil {
		return nil, core.E(core.KindGetFailure, "unable to get id/access token", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost,
		c.cfg.AccountsBaseURL+"/connect/1.0.0/api/token",
		tokenBody,
		map[string]string{
			"User-Agent":   "Dalvik/2.1.0 (Linux; U; Android 7.1.2)",
			"Accept":       "application/json",
			"Content-Type": "application/json",
		})
	if err != nil {
		return nil, core.E(core.KindGetFailure, "unable to get id/access token", err)
	}

	status, body, err := c.do(req)
	if err != nil {
		return nil, core.E(core.KindGetFailure, "unable to get id/access token", err)
	}
	switch status {
	case http.StatusBadRequest:
		return nil, core.E(core.KindGetFailure, "session token was incorrect", nil)
	case http.StatusUnauthorized:
		return nil, core.E(core.KindInvalidToken, "the session token was rejected", nil)
	case http.StatusOK:
	default:
		return nil, core.E(core.KindGetFailure, "unable to get id/access token", nil)
	}

	var tokens struct {
		IDToken     string `json:"id_token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokens); err != nil || tokens.IDToken == "" || tokens.AccessToken == "" {
		return nil, core.E(core.KindGetFailure, "unable to get id/access token", err)
	}

	identity := &core.Identity{
		IDToken:     tokens.IDToken,
		AccessToken: tokens.AccessToken,
	}

	req, err = c.newRequest(ctx, http.MethodGet,
		c.cfg.AccountsAPIBaseURL+"/2.0.0/users/me",
		nil,
		map[string]string{
			"User-Agent":    "NASDKAPI; Android",
			"Content-Type":  "application/json",
			"Accept":        "application/json",
			"Authorization": "Bearer " + tokens.AccessToken,
		})
	if err != nil {
		return nil, core.E(core.KindGetFailure, "unable to get account profile", err)
	}

	status, body, err = c.do(req)
	if err != nil || status != http.StatusOK {
		return nil, core.E(core.KindGetFailure, "unable to get account profile", err)
	}

	var profile struct {
		Nickname string `json:"nickname"`
		Language string `json:"language"`
		Country  string `json:"country"`
		Birthday string `json:"birthday"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(body, &profile); err != nil || profile.ID == "" {
		return nil, core.E(core.KindGetFailure, "unable to get account profile", err)
	}

	identity.Nickname = profile.Nickname
	identity.Language = profile.Language
	identity.Country = profile.Country
	identity.Birthday = profile.Birthday
	identity.AccountID = profile.ID

	return identity, nil
}
