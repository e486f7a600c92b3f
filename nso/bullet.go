package nso

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/splatsvc/coralgate/config"
	"github.com/splatsvc/coralgate/core"
)

// exchangeBullet trades a game-web token for the bearer token used on the
// downstream GraphQL endpoint. Status codes distinguish caller-visible
// failures from ones a refresh can repair: 204 means the account never
// played the title online, 401 means the game-web token is stale, 403 means
// the cached web-view version was rejected.
func (c *Client) exchangeBullet(ctx context.Context, identity *core.Identity, gameToken string) (string, error) {
	info, err := c.versions.Current(ctx)
	if err != nil {
		return "", core.E(core.KindGetFailure, "web-view version unavailable", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost,
		c.cfg.SplatNetBaseURL+"/api/bullet_tokens",
		nil,
		map[string]string{
			"Content-Type":     "application/json",
			"Accept-Language":  identity.Language,
			"User-Agent":       config.MobileUserAgent,
			"X-Web-View-Ver":   info.WebViewVersion,
			"X-NACOUNTRY":      identity.Country,
			"Accept":           "*/*",
			"Origin":           c.cfg.SplatNetBaseURL,
			"X-Requested-With": "com.nintendo.znca",
		})
	if err != nil {
		return "", core.E(core.KindGetFailure, "unable to get bullet token", err)
	}
	req.AddCookie(&http.Cookie{Name: "_gtoken", Value: gameToken})
	req.AddCookie(&http.Cookie{Name: "_dnt", Value: "1"})

	status, body, err := c.do(req)
	if err != nil {
		return "", core.E(core.KindGetFailure, "unable to get bullet token", err)
	}

	switch status {
	case http.StatusNoContent:
		return "", core.E(core.KindUserNotRegistered,
			"you must play at least one game online to use this application", nil)
	case http.StatusUnauthorized:
		return "", core.E(core.KindInvalidToken, "the game-web token has expired", nil)
	case http.StatusForbidden:
		return "", core.E(core.KindObsoleteVersion, "the cached web-view version is too old", nil)
	case http.StatusOK, http.StatusCreated:
	default:
		c.log.WithFields(map[string]interface{}{"status": status}).
			Warn("Bullet token exchange rejected")
		return "", core.E(core.KindGetFailure, "unable to get bullet token", nil)
	}

	var res struct {
		BulletToken string `json:"bulletToken"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.BulletToken == "" {
		return "", core.E(core.KindGetFailure, "unable to get bullet token", err)
	}

	return res.BulletToken, nil
}
