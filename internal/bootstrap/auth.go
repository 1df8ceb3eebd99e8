package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/adapters/devauth"
	"github.com/interviewlens/lens-api/internal/adapters/oidc"
	redisadapter "github.com/interviewlens/lens-api/internal/adapters/redis"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/service"
)

// AuthStackConfig contains configuration for building the auth service.
type AuthStackConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Users       core.UserRepository
	Logger      *slog.Logger
}

// BuildAuthService wires the token verifier selected by the auth mode, the
// Redis-backed verification cache, and the user repository into an AuthService.
func BuildAuthService(ctx context.Context, cfg AuthStackConfig) (*service.AuthService, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	verifier, err := buildTokenVerifier(ctx, cfg.Auth, logger)
	if err != nil {
		return nil, err
	}

	var cache core.TokenCache
	if cfg.RedisClient != nil {
		cache = redisadapter.NewTokenCache(cfg.RedisClient, cfg.Auth.SessionTTL)
	} else {
		logger.Warn("redis client not configured; bearer tokens are verified on every request")
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Verifier: verifier,
		Cache:    cache,
		Users:    cfg.Users,
		Config:   cfg.Auth,
		Logger:   logger,
	})
}

//nolint:ireturn // the verifier implementation depends on the configured auth mode.
func buildTokenVerifier(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (core.TokenVerifier, error) {
	switch cfg.Mode {
	case config.AuthModeMock:
		logger.Warn("mock auth enabled; every request is attributed to the configured dev identity")
		verifier, err := devauth.NewVerifier(cfg.DevAuth)
		if err != nil {
			return nil, fmt.Errorf("create dev auth verifier: %w", err)
		}
		return verifier, nil

	case config.AuthModeOIDC:
		verifier, err := oidc.NewVerifier(ctx, cfg.OIDC, nil)
		if err != nil {
			return nil, fmt.Errorf("create oidc verifier: %w", err)
		}
		return verifier, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", cfg.Mode)
	}
}
