// Package devauth provides a static token verifier for local development.
package devauth

import (
	"context"
	"errors"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/domain/model"
)

// Verifier accepts any non-empty bearer token and returns a fixed identity.
// It stands in for the OIDC verifier when AUTH_MODE=mock.
type Verifier struct {
	identity model.Identity
}

// NewVerifier constructs a dev verifier from config.
func NewVerifier(cfg config.DevAuthConfig) (*Verifier, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	return &Verifier{
		identity: model.Identity{
			UserID: cfg.UserID,
			Email:  cfg.Email,
		},
	}, nil
}

// Verify ignores the token contents and returns the configured identity.
// An empty token is still rejected so unauthenticated requests surface.
func (v *Verifier) Verify(_ context.Context, rawToken string) (model.Identity, error) {
	if rawToken == "" {
		return model.Identity{}, errors.New("missing bearer token")
	}
	return v.identity, nil
}
