// Package session stores the one-time payment nonce between form submission
// and charge execution, keyed by browser session.
package session

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-payments/internal/logger"
)

// NonceKey is the fixed session key the nonce lives under.
const NonceKey = "payment_nonce"

// RedisStore keeps nonces in Redis with a TTL, so an abandoned checkout
// cannot hold a live nonce forever.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedisStore(client *redis.Client, log *logger.Logger) *RedisStore {
	return &RedisStore{
		Client: client,
		TTL:    nonceTTL(log),
		Logger: log,
	}
}

// nonceTTL returns the nonce lifetime from the environment or the default.
func nonceTTL(log *logger.Logger) time.Duration {
	defaultTTL := 30 * time.Minute

	ttlStr := os.Getenv("PAYMENT_NONCE_TTL_MINUTES")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlMin, err := strconv.Atoi(ttlStr)
	if err != nil || ttlMin <= 0 {
		log.Warn("SESSION", fmt.Sprintf("Invalid PAYMENT_NONCE_TTL_MINUTES value '%s', using default 30 minutes", ttlStr))
		return defaultTTL
	}
	return time.Duration(ttlMin) * time.Minute
}

func key(sessionID string) string {
	return NonceKey + ":" + sessionID
}

// Get returns the live nonce for a session, or "" if none exists.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, error) {
	val, err := s.Client.Get(ctx, key(sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: get nonce: %w", err)
	}
	return val, nil
}

// Set stores the nonce for a session, replacing any previous one.
func (s *RedisStore) Set(ctx context.Context, sessionID, nonce string) error {
	if err := s.Client.Set(ctx, key(sessionID), nonce, s.TTL).Err(); err != nil {
		return fmt.Errorf("session: set nonce: %w", err)
	}
	return nil
}

// Delete consumes the nonce. Deleting an already-consumed nonce is a no-op.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.Client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: delete nonce: %w", err)
	}
	return nil
}
