package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "jwt:revoked:"

// TokenBlacklist is the Redis revocation list shared with the auth service.
// Tokens are stored hashed until their own expiry.
type TokenBlacklist struct {
	cache domain.CacheRepository
}

// NewTokenBlacklist creates a blacklist over the given cache
func NewTokenBlacklist(cache domain.CacheRepository) *TokenBlacklist {
	return &TokenBlacklist{cache: cache}
}

// Revoke blacklists a token until expiresAt
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.cache.Set(ctx, blacklistKey(token), "1", ttl)
}

// IsBlacklisted reports whether token was revoked
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	_, err := b.cache.Get(ctx, blacklistKey(token))
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}
