// Package nso implements the upstream token-exchange chain: PKCE login-link
// generation, the session/identity exchanges against the account service, the
// integrity-token client, and the web-access, game-web, and bullet token
// exchanges. Request header sets and body shapes are part of the upstream
// wire contract and are reproduced exactly.
package nso

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/splatsvc/coralgate/config"
	"github.com/splatsvc/coralgate/core"
	"github.com/splatsvc/coralgate/ports"
)

// Client runs the exchange chain against the upstream services.
// It implements ports.Exchanger.
type Client struct {
	cfg      *config.Config
	http     *http.Client
	versions ports.VersionProvider
	log      *logrus.Logger

	now func() time.Time
}

// NewClient creates an exchanger backed by a connection-limited transport.
// Timeouts are per HTTP call; there is no overall deadline across a chain.
func NewClient(cfg *config.Config, versions ports.VersionProvider, logger *logrus.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     100,
				MaxIdleConnsPerHost: 10,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		versions: versions,
		log:      logger,
		now:      time.Now,
	}
}

// GenerateGameToken runs the suffix chain from a stored session token to a
// fresh game-web token record: identity fetch, web-access exchange, then the
// game-web exchange. Each of the two later steps requests its own fresh
// integrity token.
func (c *Client) GenerateGameToken(ctx context.Context, sessionToken string) (core.TokenRecord, error) {
	identity, err := c.FetchIdentity(ctx, sessionToken)
	if err != nil {
		return core.TokenRecord{}, err
	}

	webToken, correlationID, err := c.exchangeWebAccess(ctx, identity)
	if err != nil {
		return core.TokenRecord{}, err
	}

	gameToken, err := c.exchangeGameToken(ctx, identity, webToken, correlationID)
	if err != nil {
		return core.TokenRecord{}, err
	}

	return core.TokenRecord{
		Kind:      core.TokenGameWeb,
		Value:     gameToken,
		ExpiresAt: c.gameTokenExpiry(gameToken),
	}, nil
}

// GenerateBulletToken trades a game-web token for a bullet token record.
func (c *Client) GenerateBulletToken(ctx context.Context, sessionToken, gameToken string) (core.TokenRecord, error) {
	identity, err := c.FetchIdentity(ctx, sessionToken)
	if err != nil {
		return core.TokenRecord{}, err
	}

	bulletToken, err := c.exchangeBullet(ctx, identity, gameToken)
	if err != nil {
		return core.TokenRecord{}, err
	}

	return core.TokenRecord{
		Kind:      core.TokenBullet,
		Value:     bulletToken,
		ExpiresAt: c.now().Add(c.cfg.BulletTTL).Unix(),
	}, nil
}

// gameTokenExpiry derives the expiry of an issued game-web token. The token
// is a JWT whose exp claim is authoritative when parseable; opaque values
// fall back to the configured offset.
func (c *Client) gameTokenExpiry(token string) int64 {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Unix()
		}
	}
	return c.now().Add(c.cfg.GameWebTTL).Unix()
}

// do executes a request and drains the body. The raw status and body are for
// internal classification and logging only, never surfaced to callers.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// appVersion reads the cached client app version used in exchange headers.
func (c *Client) appVersion(ctx context.Context) (string, error) {
	info, err := c.versions.Current(ctx)
	if err != nil {
		return "", core.E(core.KindGetFailure, "app version unavailable", err)
	}
	return info.AppVersion, nil
}
