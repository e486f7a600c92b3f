package versions

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splatsvc/coralgate/adapters/store"
	"github.com/splatsvc/coralgate/config"
	"github.com/splatsvc/coralgate/core"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// feedServers fakes the three hosted metadata feeds. Any entry in broken
// responds with a 500 instead.
func feedServers(t *testing.T, broken map[string]bool) *config.Config {
	t.Helper()

	serve := func(path, body string) string {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if broken[path] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			io.WriteString(w, body)
		}))
		t.Cleanup(server.Close)
		return server.URL
	}

	return &config.Config{
		HTTPTimeout:           5 * time.Second,
		AppVersionFeedURL:     serve("app", `{"version":"2.10.0","build":5678}`),
		WebViewVersionFeedURL: serve("webview", `{"web_app_ver":"6.0.0-abcdef","revision":"abcdef"}`),
		QueryHashFeedURL:      serve("hashes", `{"graphql":{"hash_map":{"HomeQuery":"abc123","StageScheduleQuery":"def456"}}}`),
	}
}

func TestUpdateAndCurrent(t *testing.T) {
	ms := store.NewMemoryStore()
	provider := NewProvider(ms, feedServers(t, nil), testLogger())

	require.NoError(t, provider.Update(context.Background()))

	info, err := provider.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.10.0", info.AppVersion)
	assert.Equal(t, "6.0.0-abcdef", info.WebViewVersion)
}

func TestHashFor(t *testing.T) {
	ms := store.NewMemoryStore()
	provider := NewProvider(ms, feedServers(t, nil), testLogger())
	require.NoError(t, provider.Update(context.Background()))

	hash, err := provider.HashFor(context.Background(), "StageScheduleQuery")
	require.NoError(t, err)
	assert.Equal(t, "def456", hash)

	_, err = provider.HashFor(context.Background(), "NoSuchQuery")
	assert.ErrorIs(t, err, core.ErrHashNotFound)
}

func TestCurrentWithoutCachedEntries(t *testing.T) {
	provider := NewProvider(store.NewMemoryStore(), feedServers(t, nil), testLogger())

	_, err := provider.Current(context.Background())
	assert.ErrorIs(t, err, core.ErrVersionNotFound)
}

func TestUpdateFeedFailureWritesNothing(t *testing.T) {
	tests := []string{"app", "webview", "hashes"}

	for _, broken := range tests {
		t.Run(broken, func(t *testing.T) {
			ms := store.NewMemoryStore()
			provider := NewProvider(ms, feedServers(t, map[string]bool{broken: true}), testLogger())

			require.Error(t, provider.Update(context.Background()))

			// A partial fetch must not commit anything.
			_, err := ms.GetVersion(context.Background(), AppVersionName)
			assert.ErrorIs(t, err, core.ErrVersionNotFound)
			_, err = ms.GetVersion(context.Background(), QueryHashesName)
			assert.ErrorIs(t, err, core.ErrVersionNotFound)
		})
	}
}

func TestUpdateKeepsPreviousEntriesOnFailure(t *testing.T) {
	ms := store.NewMemoryStore()
	provider := NewProvider(ms, feedServers(t, nil), testLogger())
	require.NoError(t, provider.Update(context.Background()))

	// Later refresh against a broken feed leaves the cached entries intact.
	brokenProvider := NewProvider(ms, feedServers(t, map[string]bool{"hashes": true}), testLogger())
	require.Error(t, brokenProvider.Update(context.Background()))

	info, err := provider.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.10.0", info.AppVersion)

	hash, err := provider.HashFor(context.Background(), "HomeQuery")
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
}
