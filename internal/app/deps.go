package app

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gearmarket/backend/internal/auth"
	"github.com/gearmarket/backend/internal/config"
	"github.com/gearmarket/backend/internal/db"
	"github.com/gearmarket/backend/internal/handlers"
	"github.com/gearmarket/backend/internal/metrics"
	"github.com/gearmarket/backend/internal/middleware"
	"github.com/gearmarket/backend/internal/repositories"
	"github.com/gearmarket/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, registry *prometheus.Registry) (handlers.Dependencies, error) {
	sessionStore := repositories.NewPostgresSessionStore(pool)
	manager := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore)

	authLimiter := middleware.NewIPRateLimiter(cfg.AuthRateRequests, cfg.AuthRateWindow, cfg.AuthRateBurst, 10*time.Minute)

	var images handlers.ImageStorage
	if strings.TrimSpace(cfg.ObjectStore.Bucket) != "" {
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, err
		}
		images = s3
	}

	var metricsHandler = metrics.Handler(registry)

	return handlers.Dependencies{
		Users:               repositories.NewPostgresUserRepository(pool),
		Profiles:            repositories.NewPostgresProfileRepository(pool),
		Ads:                 repositories.NewPostgresAdRepository(pool),
		Sessions:            manager,
		Verifier:            manager,
		Images:              images,
		AuthLimiter:         authLimiter,
		RequireEmailConfirm: cfg.RequireEmailConfirm,
		Metrics:             metricsHandler,
	}, nil
}
