package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/splatsvc/coralgate/config"
	"github.com/splatsvc/coralgate/core"
	"github.com/splatsvc/coralgate/ports"
)

// QueryService executes persisted GraphQL queries on behalf of a user,
// attaching the bullet token as bearer and the game-web token as cookie.
//
// The retry policy is a hard invariant: one forced full refresh after a
// failed response, then exactly one retry. Never more than two downstream
// attempts per call.
type QueryService struct {
	store    ports.TokenStore
	refresh  *RefreshService
	versions ports.VersionProvider
	cfg      *config.Config
	http     *http.Client
	log      *logrus.Logger
}

// NewQueryService creates a new authenticated request executor.
func NewQueryService(
	store ports.TokenStore,
	refresh *RefreshService,
	versions ports.VersionProvider,
	cfg *config.Config,
	logger *logrus.Logger,
) *QueryService {
	return &QueryService{
		store:    store,
		refresh:  refresh,
		versions: versions,
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.HTTPTimeout},
		log:      logger,
	}
}

// Execute sends the named persisted query with the given variables and
// returns the raw JSON result.
func (s *QueryService) Execute(ctx context.Context, externalID, queryName string, variables map[string]interface{}) (json.RawMessage, error) {
	user, err := s.store.GetUser(ctx, externalID)
	if err != nil {
		return nil, err
	}

	// Refresh known-expired tokens up front. A failure here is logged but
	// not fatal: the request itself decides whether the tokens still work.
	outcome, err := s.refresh.EnsureFresh(ctx, user)
	if err != nil {
		s.log.WithError(err).WithField("user", externalID).
			Warn("Pre-request refresh failed")
	} else if outcome != RefreshAlreadyValid {
		s.log.WithFields(logrus.Fields{"user": externalID, "outcome": outcome.String()}).
			Info("Refreshed tokens before request")
	}

	hash, err := s.versions.HashFor(ctx, queryName)
	if err != nil {
		return nil, core.E(core.KindGetFailure, fmt.Sprintf("no persisted query hash for %q", queryName), err)
	}

	if variables == nil {
		variables = map[string]interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"variables": variables,
		"extensions": map[string]interface{}{
			"persistedQuery": map[string]interface{}{
				"version":    1,
				"sha256Hash": hash,
			},
		},
	})
	if err != nil {
		return nil, core.E(core.KindGetFailure, "unable to build query body", err)
	}

	status, result, err := s.attempt(ctx, user, body)
	if err != nil {
		return nil, core.E(core.KindGetFailure, "query request failed", err)
	}

	if status != http.StatusOK {
		// Force a full refresh once, rebuild with the new tokens, retry once.
		if err := s.refresh.RefreshAll(ctx, user); err != nil {
			s.log.WithError(err).WithField("user", externalID).
				Warn("Failed to refresh tokens after initial failure")
			return nil, core.E(core.KindGetFailure, "query failed and token refresh failed", err)
		}
		s.log.WithField("user", externalID).Info("Refreshed tokens after initial failure")

		status, result, err = s.attempt(ctx, user, body)
		if err != nil {
			return nil, core.E(core.KindGetFailure, "query retry failed", err)
		}
		if status != http.StatusOK {
			s.log.WithFields(logrus.Fields{"user": externalID, "status": status}).
				Warn("Second request failed after successful token refresh")
			return nil, core.E(core.KindGetFailure, "query failed after token refresh", nil)
		}
	}

	return result, nil
}

// attempt reads the current tokens fresh from the store and performs a single
// downstream POST.
func (s *QueryService) attempt(ctx context.Context, user *core.UserAccount, body []byte) (int, json.RawMessage, error) {
	gameToken, err := s.store.GetToken(ctx, user.ID, core.TokenGameWeb)
	if err != nil {
		return 0, nil, err
	}
	bulletToken, err := s.store.GetToken(ctx, user.ID, core.TokenBullet)
	if err != nil {
		return 0, nil, err
	}

	info, err := s.versions.Current(ctx)
	if err != nil {
		return 0, nil, err
	}

	endpoint := s.cfg.SplatNetBaseURL + "/api/graphql"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Authorization", "Bearer "+bulletToken.Value)
	req.Header.Set("Accept-Language", user.Language)
	req.Header.Set("User-Agent", config.MobileUserAgent)
	req.Header.Set("X-Web-View-Ver", info.WebViewVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", endpoint)
	req.Header.Set("X-Requested-With", "com.nintendo.znca")
	req.Header.Set("Referer", fmt.Sprintf("%s?lang=%s", endpoint, user.Language))
	req.AddCookie(&http.Cookie{Name: "_gtoken", Value: gameToken.Value})
	req.AddCookie(&http.Cookie{Name: "_dnt", Value: "1"})

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, result, nil
}
