// Package oidc verifies bearer ID tokens against the configured identity
// provider.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/domain/model"
	apperrors "github.com/interviewlens/lens-api/internal/errors"
)

// Verifier validates ID tokens issued by a single OIDC provider.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewVerifier performs OIDC discovery against the configured issuer and
// returns a token verifier bound to the expected audience.
func NewVerifier(ctx context.Context, cfg config.OIDCConfig, httpClient *http.Client) (*Verifier, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	// Accept either the bare issuer or a pasted discovery URL
	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")

	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Verifier{
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.Audience}),
	}, nil
}

type tokenClaims struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

// Verify checks the token signature, issuer, audience, and expiry, and maps
// the claims to an Identity.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (model.Identity, error) {
	if rawToken == "" {
		return model.Identity{}, apperrors.Unauthorized("missing bearer token")
	}

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return model.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid bearer token")
	}

	var claims tokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return model.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "parse token claims")
	}
	if claims.Sub == "" {
		return model.Identity{}, apperrors.Unauthorized("token has no subject")
	}

	return model.Identity{
		UserID: claims.Sub,
		Email:  firstNonEmpty(claims.Email, claims.PreferredUsername),
	}, nil
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
