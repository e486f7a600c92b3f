package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// MobileUserAgent is the browser user-agent presented on the companion-app
// web endpoints (bullet exchange and GraphQL). Part of the wire contract.
const MobileUserAgent = "Mozilla/5.0 (Linux; Android 11; Pixel 5) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/94.0.4606.61 Mobile Safari/537.36"

// Config is the process-wide immutable configuration, loaded once at startup
// and passed explicitly into each component.
type Config struct {
	ListenAddr     string
	RedisURL       string
	ServiceName    string
	ServiceVersion string

	// Upstream endpoints. The paths appended to these are part of the wire
	// contract and fixed in the nso package.
	AccountsBaseURL    string
	AccountsAPIBaseURL string
	CoralBaseURL       string
	SplatNetBaseURL    string
	IntegrityTokenURL  string

	// Fixed provider registration.
	ClientID      string
	RedirectURI   string
	Scope         string
	GameServiceID int64

	// Hosted metadata feeds consumed by the version provider.
	AppVersionFeedURL     string
	WebViewVersionFeedURL string
	QueryHashFeedURL      string

	// Expiry offsets applied when an upstream response carries no expiry
	// of its own.
	SessionTTL time.Duration
	GameWebTTL time.Duration
	BulletTTL  time.Duration

	HTTPTimeout            time.Duration
	VersionRefreshInterval time.Duration
}

// Load reads configuration from the environment, overlaying local .env files
// when present. Missing values fall back to the upstream provider defaults.
func Load(logger *logrus.Logger) *Config {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil && logger != nil {
			logger.WithError(err).Warnf("Failed to load %s", file)
		}
	}

	return &Config{
		ListenAddr:     GetEnv("CORALGATE_LISTEN_ADDR", ":9000"),
		RedisURL:       GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		ServiceName:    GetEnv("CORALGATE_SERVICE_NAME", "coralgate"),
		ServiceVersion: GetEnv("CORALGATE_SERVICE_VERSION", "0.1.0"),

		AccountsBaseURL:    GetEnv("NSO_ACCOUNTS_URL", "https://accounts.nintendo.com"),
		AccountsAPIBaseURL: GetEnv("NSO_ACCOUNTS_API_URL", "https://api.accounts.nintendo.com"),
		CoralBaseURL:       GetEnv("NSO_CORAL_URL", "https://api-lp1.znc.srv.nintendo.net"),
		SplatNetBaseURL:    GetEnv("NSO_SPLATNET_URL", "https://api.lp1.av5ja.srv.nintendo.net"),
		IntegrityTokenURL:  GetEnv("NSO_INTEGRITY_URL", "https://nxapi-znca-api.fancy.org.uk/api/znca/f"),

		ClientID:      GetEnv("NSO_CLIENT_ID", "71b963c1b7b6d119"),
		RedirectURI:   GetEnv("NSO_REDIRECT_URI", "npf71b963c1b7b6d119://auth"),
		Scope:         GetEnv("NSO_SCOPE", "openid user user.birthday user.mii user.screenName"),
		GameServiceID: GetEnvInt64("NSO_GAME_SERVICE_ID", 4834290508791808),

		AppVersionFeedURL:     GetEnv("NSO_APP_VERSION_FEED", "https://raw.githubusercontent.com/nintendoapis/nintendo-app-versions/main/data/coral-google-play.json"),
		WebViewVersionFeedURL: GetEnv("NSO_WEBVIEW_VERSION_FEED", "https://raw.githubusercontent.com/nintendoapis/nintendo-app-versions/main/data/splatnet3-app.json"),
		QueryHashFeedURL:      GetEnv("NSO_QUERY_HASH_FEED", "https://raw.githubusercontent.com/imink-app/SplatNet3/master/Data/splatnet3_webview_data.json"),

		SessionTTL: GetEnvDuration("TOKEN_SESSION_TTL", 63072000*time.Second),
		GameWebTTL: GetEnvDuration("TOKEN_GAME_WEB_TTL", 21600*time.Second),
		BulletTTL:  GetEnvDuration("TOKEN_BULLET_TTL", 7000*time.Second),

		HTTPTimeout:            GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		VersionRefreshInterval: GetEnvDuration("VERSION_REFRESH_INTERVAL", 6*time.Hour),
	}
}

// GetEnv gets an environment variable with a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt64 gets an integer environment variable with a default value.
func GetEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvDuration gets a duration environment variable with a default value.
// Plain integers are interpreted as seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// GetLogLevel gets the log level from the environment.
func GetLogLevel() logrus.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
