package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/core"
	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Verifier core.TokenVerifier
	Cache    core.TokenCache
	Users    core.UserRepository
	Config   config.AuthConfig
	Logger   *slog.Logger
}

// AuthService authenticates bearer tokens and lazily provisions user accounts.
// Verification results are cached by token digest so the issuer is consulted
// once per cache TTL, not once per request.
type AuthService struct {
	verifier core.TokenVerifier
	cache    core.TokenCache
	users    core.UserRepository
	cfg      config.AuthConfig
	logger   *slog.Logger
}

// NewAuthService constructs a new AuthService. Cache is optional.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Verifier == nil || opts.Users == nil {
		return nil, fmt.Errorf("verifier and users are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		verifier: opts.Verifier,
		cache:    opts.Cache,
		users:    opts.Users,
		cfg:      opts.Config,
		logger:   logger,
	}, nil
}

// Authenticate resolves a raw bearer token to its user record, creating the
// account with the starting credit grant on first sight. Cache problems never
// fail a request; the token is simply re-verified.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*model.User, error) {
	if rawToken == "" {
		return nil, apperrors.Unauthorized("missing bearer token")
	}

	identity, cached := s.lookupCached(ctx, rawToken)
	if !cached {
		verified, err := s.verifier.Verify(ctx, rawToken)
		if err != nil {
			return nil, err
		}
		identity = verified

		if s.cache != nil {
			if err := s.cache.Save(ctx, rawToken, identity); err != nil {
				s.logger.WarnContext(ctx, "token cache save failed", "error", err)
			}
		}
	}

	user, err := s.users.EnsureUser(ctx, identity.UserID, identity.Email, s.cfg.StartingCredits)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return user, nil
}

func (s *AuthService) lookupCached(ctx context.Context, rawToken string) (model.Identity, bool) {
	if s.cache == nil {
		return model.Identity{}, false
	}
	identity, err := s.cache.Get(ctx, rawToken)
	if err != nil {
		return model.Identity{}, false
	}
	if identity.UserID == "" {
		return model.Identity{}, false
	}
	return identity, true
}
