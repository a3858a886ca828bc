// Package apikey resolves opaque API keys presented by external agents to
// the owning account id. Keys are pre-issued elsewhere; only the SHA-256
// hash is ever stored or looked up, so a database leak does not expose the
// raw credentials.
package apikey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"zenbook/internal/database"
)

// ErrUnknownKey is returned for missing, unknown or deactivated keys.
var ErrUnknownKey = errors.New("unknown api key")

// Store is the persistence the validator needs.
type Store interface {
	GetAccountIDByKeyHash(ctx context.Context, keyHash string) (string, error)
	TouchAPIKey(ctx context.Context, keyHash string) error
}

// Validator resolves raw keys to account ids, optionally caching the
// hash-to-account mapping in redis.
type Validator struct {
	store Store
	cache *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewValidator creates a validator. cache may be nil to disable caching.
func NewValidator(store Store, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) *Validator {
	return &Validator{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "apikey").Logger(),
	}
}

// HashKey returns the hex SHA-256 of a raw key, the only form the store sees.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Resolve validates a raw key and returns the owning account id. Every
// successful use bumps the key's last-used timestamp.
func (v *Validator) Resolve(ctx context.Context, rawKey string) (string, error) {
	if rawKey == "" {
		return "", ErrUnknownKey
	}
	keyHash := HashKey(rawKey)

	if accountID, ok := v.cacheGet(ctx, keyHash); ok {
		v.touch(ctx, keyHash)
		return accountID, nil
	}

	accountID, err := v.store.GetAccountIDByKeyHash(ctx, keyHash)
	if errors.Is(err, database.ErrNotFound) {
		return "", ErrUnknownKey
	}
	if err != nil {
		return "", fmt.Errorf("lookup api key: %w", err)
	}

	v.cacheSet(ctx, keyHash, accountID)
	v.touch(ctx, keyHash)
	return accountID, nil
}

func (v *Validator) touch(ctx context.Context, keyHash string) {
	if err := v.store.TouchAPIKey(ctx, keyHash); err != nil {
		v.log.Warn().Err(err).Msg("failed to update key last_used_at")
	}
}

func cacheKey(keyHash string) string {
	return "apikey:" + keyHash
}

func (v *Validator) cacheGet(ctx context.Context, keyHash string) (string, bool) {
	if v.cache == nil {
		return "", false
	}
	accountID, err := v.cache.Get(ctx, cacheKey(keyHash)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		v.log.Warn().Err(err).Msg("api key cache read failed")
		return "", false
	}
	return accountID, true
}

func (v *Validator) cacheSet(ctx context.Context, keyHash, accountID string) {
	if v.cache == nil {
		return
	}
	if err := v.cache.Set(ctx, cacheKey(keyHash), accountID, v.ttl).Err(); err != nil {
		v.log.Warn().Err(err).Msg("api key cache write failed")
	}
}
