package main

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/splatsvc/coralgate/adapters/events"
	"github.com/splatsvc/coralgate/adapters/store"
	"github.com/splatsvc/coralgate/adapters/versions"
	"github.com/splatsvc/coralgate/config"
	"github.com/splatsvc/coralgate/logging"
	"github.com/splatsvc/coralgate/nso"
	"github.com/splatsvc/coralgate/service"
	"github.com/splatsvc/coralgate/transport/http"
)

func main() {
	logger := logging.NewLoggerWithService("coralgate")
	cfg := config.Load(logger)

	ctx := context.Background()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse Redis URL")
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: redisClient},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create event publisher")
	}

	tokenStore := store.NewRedisStore(redisClient)
	eventPub := events.NewWatermillPublisher(publisher)

	versionProvider := versions.NewProvider(tokenStore, cfg, logger)
	if err := versionProvider.Update(ctx); err != nil {
		// Stale cached versions are usable; a cold store is not.
		if _, verr := versionProvider.Current(ctx); verr != nil {
			logger.WithError(err).Fatal("Failed to seed app versions")
		}
		logger.WithError(err).Warn("Version update failed, using cached entries")
	}
	go refreshVersions(ctx, versionProvider, cfg.VersionRefreshInterval, logger)

	exchanger := nso.NewClient(cfg, versionProvider, logger)

	authService := service.NewAuthService(exchanger, tokenStore, eventPub, cfg.SessionTTL, logger)
	refreshService := service.NewRefreshService(exchanger, tokenStore, eventPub, logger)
	queryService := service.NewQueryService(tokenStore, refreshService, versionProvider, cfg, logger)

	handlers := http.NewHandlers(authService, refreshService, queryService, tokenStore)
	router := http.SetupRouter(handlers)

	logger.WithField("addr", cfg.ListenAddr).Info("Starting server")
	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

func refreshVersions(ctx context.Context, provider *versions.Provider, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := provider.Update(ctx); err != nil {
				logger.WithError(err).Warn("Version update failed")
			}
		}
	}
}
