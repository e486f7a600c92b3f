package nso

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/splatsvc/coralgate/core"
)

// webAccessRequest is the fixed body shape of the web-access exchange.
type webAccessRequest struct {
	Parameter webAccessParameter `json:"parameter"`
}

type webAccessParameter struct {
	F          string      `json:"f"`
	Language   string      `json:"language"`
	NABirthday string      `json:"naBirthday"`
	NACountry  string      `json:"naCountry"`
	NAIDToken  string      `json:"naIdToken"`
	RequestID  string      `json:"requestId"`
	Timestamp  json.Number `json:"timestamp"`
}

// gameTokenRequest is the fixed body shape of the game-web exchange.
type gameTokenRequest struct {
	Parameter gameTokenParameter `json:"parameter"`
}

type gameTokenParameter struct {
	F                 string      `json:"f"`
	ID                int64       `json:"id"`
	RegistrationToken string      `json:"registrationToken"`
	RequestID         string      `json:"requestId"`
	Timestamp         json.Number `json:"timestamp"`
}

// exchangeWebAccess trades identity fields plus a fresh LOGIN-step integrity
// token for the platform web-access token and the account-correlation id.
func (c *Client) exchangeWebAccess(ctx context.Context, identity *core.Identity) (string, string, error) {
	integrity, err := c.issueIntegrityToken(ctx, stepLogin, identity.IDToken, identity.AccountID, "")
	if err != nil {
		return "", "", err
	}

	appVersion, err := c.appVersion(ctx)
	if err != nil {
		return "", "", err
	}

	body, err := json.Marshal(webAccessRequest{Parameter: webAccessParameter{
		F:          integrity.Value,
		Language:   identity.Language,
		NABirthday: identity.Birthday,
		NACountry:  identity.Country,
		NAIDToken:  identity.IDToken,
		RequestID:  integrity.RequestID,
		Timestamp:  json.Number(integrity.Timestamp),
	}})
	if err != nil {
		return "", "", core.E(core.KindGetFailure, "unable to get web-access token", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost,
		c.cfg.CoralBaseURL+"/v3/Account/Login",
		body, c.coralHeaders(appVersion, ""))
	if err != nil {
		return "", "", core.E(core.KindGetFailure, "unable to get web-access token", err)
	}

	status, resBody, err := c.do(req)
	if err != nil || status != http.StatusOK {
		return "", "", core.E(core.KindGetFailure, "unable to get web-access token", err)
	}

	var res struct {
		Result struct {
			WebAPIServerCredential struct {
				AccessToken string `json:"accessToken"`
			} `json:"webApiServerCredential"`
			User struct {
				ID json.Number `json:"id"`
			} `json:"user"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resBody, &res); err != nil || res.Result.WebAPIServerCredential.AccessToken == "" {
		return "", "", core.E(core.KindGetFailure, "unable to get web-access token", err)
	}

	return res.Result.WebAPIServerCredential.AccessToken, res.Result.User.ID.String(), nil
}

// exchangeGameToken trades the web-access token for the short-lived game-web
// token. The GAME-step integrity token is issued internally and carries the
// correlation id from the web-access exchange.
func (c *Client) exchangeGameToken(ctx context.Context, identity *core.Identity, webToken, correlationID string) (string, error) {
	integrity, err := c.issueIntegrityToken(ctx, stepGame, webToken, identity.AccountID, correlationID)
	if err != nil {
		return "", err
	}

	appVersion, err := c.appVersion(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(gameTokenRequest{Parameter: gameTokenParameter{
		F:                 integrity.Value,
		ID:                c.cfg.GameServiceID,
		RegistrationToken: webToken,
		RequestID:         integrity.RequestID,
		Timestamp:         json.Number(integrity.Timestamp),
	}})
	if err != nil {
		return "", core.E(core.KindGetFailure, "unable to get game-web token", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost,
		c.cfg.CoralBaseURL+"/v2/Game/GetWebServiceToken",
		body, c.coralHeaders(appVersion, webToken))
	if err != nil {
		return "", core.E(core.KindGetFailure, "unable to get game-web token", err)
	}

	status, resBody, err := c.do(req)
	if err != nil || status != http.StatusOK {
		return "", core.E(core.KindGetFailure, "unable to get game-web token", err)
	}

	var res struct {
		Result struct {
			AccessToken string `json:"accessToken"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resBody, &res); err != nil || res.Result.AccessToken == "" {
		return "", core.E(core.KindGetFailure, "unable to get game-web token", err)
	}

	return res.Result.AccessToken, nil
}

func (c *Client) coralHeaders(appVersion, bearer string) map[string]string {
	headers := map[string]string{
		"X-Platform":       "Android",
		"X-ProductVersion": appVersion,
		"Content-Type":     "application/json; charset=utf-8",
		"User-Agent":       fmt.Sprintf("com.nintendo.znca/%s(Android/7.1.2)", appVersion),
	}
	if bearer != "" {
		headers["Authorization"] = "Bearer " + bearer
	}
	return headers
}
