package redis

// Package redis provides Redis-based adapters for the lens system.

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/interviewlens/lens-api/internal/domain/model"
)

// TokenCache memoizes bearer token verification so repeated requests with the
// same token skip signature checks and claim mapping. Keys are token digests;
// raw tokens are never stored.
type TokenCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewTokenCache creates a Redis-backed token verification cache.
func NewTokenCache(client redis.UniversalClient, ttl time.Duration) *TokenCache {
	return &TokenCache{
		client: client,
		prefix: "token:",
		ttl:    ttl,
	}
}

// NewTokenCacheWithPrefix creates a token cache with a custom key prefix.
func NewTokenCacheWithPrefix(client redis.UniversalClient, prefix string, ttl time.Duration) *TokenCache {
	return &TokenCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *TokenCache) key(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Save stores the identity under the token digest for the configured TTL.
// The TTL stays short of token lifetimes so revocation lag is bounded.
func (c *TokenCache) Save(ctx context.Context, rawToken string, identity model.Identity) error {
	if rawToken == "" {
		return errors.New("token cannot be empty")
	}
	if c.ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return c.client.Set(ctx, c.key(rawToken), data, c.ttl).Err()
}

// Get returns the cached identity for the token, or ErrNotFound.
func (c *TokenCache) Get(ctx context.Context, rawToken string) (model.Identity, error) {
	if rawToken == "" {
		return model.Identity{}, ErrNotFound
	}

	data, err := c.client.Get(ctx, c.key(rawToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Identity{}, ErrNotFound
		}
		return model.Identity{}, fmt.Errorf("redis get: %w", err)
	}

	var identity model.Identity
	if unmarshalErr := json.Unmarshal([]byte(data), &identity); unmarshalErr != nil {
		return model.Identity{}, fmt.Errorf("unmarshal identity: %w", unmarshalErr)
	}
	return identity, nil
}

// Delete removes the cached entry for the token.
func (c *TokenCache) Delete(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return c.client.Del(ctx, c.key(rawToken)).Err()
}

// ErrNotFound is returned when a token is not present in the cache.
type notFoundError struct{}

func (notFoundError) Error() string { return "token not found" }

var ErrNotFound error = notFoundError{}
