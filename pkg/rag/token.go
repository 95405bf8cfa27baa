package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/loomchat/attachment-backend/pkg/types"
)

const tokenCacheKeyPrefix = "attachment-backend:rag-token:"

// TokenIssuer mints short-lived bearer tokens for calls to the embedding
// service. Tokens are scoped to the acting user and cached in Redis so that
// retried activities reuse a still-valid token instead of minting a new one.
type TokenIssuer struct {
	secret      []byte
	ttl         time.Duration
	redisClient *redis.Client
}

// NewTokenIssuer builds a TokenIssuer. The Redis client is optional, without
// it every call mints a fresh token.
func NewTokenIssuer(secret string, ttl time.Duration, redisClient *redis.Client) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		secret:      []byte(secret),
		ttl:         ttl,
		redisClient: redisClient,
	}
}

// Token returns a bearer token scoped to the user.
func (t *TokenIssuer) Token(ctx context.Context, userUID types.UserUIDType) (string, error) {
	cacheKey := tokenCacheKeyPrefix + userUID.String()

	if t.redisClient != nil {
		if cached, err := t.redisClient.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userUID.String(),
		"iss": "attachment-backend",
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing bearer token: %w", err)
	}

	if t.redisClient != nil {
		// Expire the cache entry before the token itself so a cached token is
		// never already expired when used.
		cacheTTL := t.ttl - time.Minute
		if cacheTTL > 0 {
			t.redisClient.Set(ctx, cacheKey, signed, cacheTTL)
		}
	}

	return signed, nil
}
