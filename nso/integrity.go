package nso

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/splatsvc/coralgate/core"
)

// integrityStep selects the attestation hash method. The web-access exchange
// and the game-web exchange each require their own freshly issued token.
type integrityStep int

const (
	stepLogin integrityStep = 1
	stepGame  integrityStep = 2
)

// issueIntegrityToken calls the external attestation service for a single-use
// integrity token. correlationID is supplied only for stepGame.
func (c *Client) issueIntegrityToken(ctx context.Context, step integrityStep, token, accountID, correlationID string) (core.IntegrityToken, error) {
	appVersion, err := c.appVersion(ctx)
	if err != nil {
		return core.IntegrityToken{}, err
	}

	payload := map[string]interface{}{
		"token":       token,
		"hash_method": int(step),
	}
	if accountID != "" {
		payload["na_id"] = accountID
	}
	if correlationID != "" && step == stepGame {
		payload["coral_user_id"] = correlationID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return core.IntegrityToken{}, core.E(core.KindGetFailure, "unable to build integrity request", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.IntegrityTokenURL, body,
		map[string]string{
			"X-znca-Platform": "Android",
			"X-znca-Version":  appVersion,
			"User-Agent":      fmt.Sprintf("%s/%s", c.cfg.ServiceName, c.cfg.ServiceVersion),
			"Content-Type":    "application/json; charset=utf-8",
		})
	if err != nil {
		return core.IntegrityToken{}, core.E(core.KindGetFailure, "unable to get integrity token", err)
	}

	status, resBody, err := c.do(req)
	if err != nil {
		return core.IntegrityToken{}, core.E(core.KindGetFailure, "unable to get integrity token", err)
	}
	if status != http.StatusOK {
		c.log.WithFields(map[string]interface{}{"status": status, "step": int(step)}).
			Warn("Integrity service rejected request")
		return core.IntegrityToken{}, core.E(core.KindGetFailure,
			fmt.Sprintf("unable to get step %d integrity token", step), nil)
	}

	var res struct {
		F         string      `json:"f"`
		RequestID string      `json:"request_id"`
		Timestamp json.Number `json:"timestamp"`
	}
	if err := json.Unmarshal(resBody, &res); err != nil || res.F == "" {
		return core.IntegrityToken{}, core.E(core.KindGetFailure,
			fmt.Sprintf("unable to get step %d integrity token", step), err)
	}

	if res.RequestID == "" {
		res.RequestID = uuid.NewString()
	}

	return core.IntegrityToken{
		Value:     res.F,
		RequestID: res.RequestID,
		Timestamp: res.Timestamp.String(),
	}, nil
}
