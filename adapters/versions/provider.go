// Package versions supplies the client-version strings and persisted-query
// hash map embedded in upstream requests. Values live in the store and are
// refreshed out-of-band from hosted metadata feeds.
package versions

import (
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

// Store entry names.
const (
	AppVersionName     = "AppVersion"
	WebViewVersionName = "WebViewVersion"
	QueryHashesName    = "GraphQLHashes"
)

// Provider implements ports.VersionProvider over a VersionStore and keeps the
// entries current from the hosted metadata feeds.
type Provider struct {
	store ports.VersionStore
	cfg   *config.Config
	http  *http.Client
	log   *logrus.Logger
}

// NewProvider creates a store-backed version provider.
func NewProvider(store ports.VersionStore, cfg *config.Config, logger *logrus.Logger) *Provider {
	return &Provider{
		store: store,
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.HTTPTimeout},
		log:   logger,
	}
}

// Current returns the cached version pair.
func (p *Provider) Current(ctx context.Context) (core.VersionInfo, error) {
	appVersion, err := p.store.GetVersion(ctx, AppVersionName)
	if err != nil {
		return core.VersionInfo{}, err
	}
	webViewVersion, err := p.store.GetVersion(ctx, WebViewVersionName)
	if err != nil {
		return core.VersionInfo{}, err
	}
	return core.VersionInfo{AppVersion: appVersion, WebViewVersion: webViewVersion}, nil
}

// HashFor returns the persisted-query hash registered for a query name.
func (p *Provider) HashFor(ctx context.Context, queryName string) (string, error) {
	raw, err := p.store.GetVersion(ctx, QueryHashesName)
	if err != nil {
		return "", err
	}

	var hashes map[string]string
	if err := json.Unmarshal([]byte(raw), &hashes); err != nil {
		return "", fmt.Errorf("corrupt query hash map: %w", err)
	}

	hash, ok := hashes[queryName]
	if !ok {
		return "", core.ErrHashNotFound
	}
	return hash, nil
}

// Update fetches the app version, web-view version, and persisted-query hash
// map from the hosted feeds and commits all three entries together. On any
// failure nothing is written.
func (p *Provider) Update(ctx context.Context) error {
	appVersion, err := p.fetchField(ctx, p.cfg.AppVersionFeedURL, "version")
	if err != nil {
		return fmt.Errorf("fetch app version: %w", err)
	}

	webViewVersion, err := p.fetchField(ctx, p.cfg.WebViewVersionFeedURL, "web_app_ver")
	if err != nil {
		return fmt.Errorf("fetch web-view version: %w", err)
	}

	hashes, err := p.fetchQueryHashes(ctx)
	if err != nil {
		return fmt.Errorf("fetch query hashes: %w", err)
	}

	entries := map[string]string{
		AppVersionName:     appVersion,
		WebViewVersionName: webViewVersion,
		QueryHashesName:    hashes,
	}
	if err := p.store.SetVersions(ctx, entries); err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{
		"app_version":      appVersion,
		"web_view_version": webViewVersion,
	}).Info("Updated app versions")

	return nil
}

func (p *Provider) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p *Provider) fetchField(ctx context.Context, url, field string) (string, error) {
	body, err := p.fetch(ctx, url)
	if err != nil {
		return "", err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", err
	}

	var value string
	if err := json.Unmarshal(doc[field], &value); err != nil {
		return "", fmt.Errorf("feed missing %q field: %w", field, err)
	}
	return value, nil
}

func (p *Provider) fetchQueryHashes(ctx context.Context) (string, error) {
	body, err := p.fetch(ctx, p.cfg.QueryHashFeedURL)
	if err != nil {
		return "", err
	}

	var doc struct {
		GraphQL struct {
			HashMap map[string]string `json:"hash_map"`
		} `json:"graphql"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", err
	}
	if len(doc.GraphQL.HashMap) == 0 {
		return "", fmt.Errorf("feed carried no hash map")
	}

	encoded, err := json.Marshal(doc.GraphQL.HashMap)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
