package billing

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyRevealTTL bounds how long an unclaimed license key stays retrievable.
const KeyRevealTTL = 24 * time.Hour

const keyRevealPrefix = "billing:reveal:"

// KeyReveal holds a freshly minted license key until its owner has seen it once.
type KeyReveal interface {
	Stash(ctx context.Context, sessionID, key string) error
	// Claim returns the key and forgets it. A second claim returns "".
	Claim(ctx context.Context, sessionID string) (string, error)
}

type RedisKeyReveal struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisKeyReveal(client *redis.Client) *RedisKeyReveal {
	return &RedisKeyReveal{client: client, ttl: KeyRevealTTL}
}

func (r *RedisKeyReveal) Stash(ctx context.Context, sessionID, key string) error {
	return r.client.Set(ctx, keyRevealPrefix+sessionID, key, r.ttl).Err()
}

func (r *RedisKeyReveal) Claim(ctx context.Context, sessionID string) (string, error) {
	key, err := r.client.GetDel(ctx, keyRevealPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return key, err
}

// noopKeyReveal is used when no cache is configured; keys are then shown only
// in the confirming response.
type noopKeyReveal struct{}

func (noopKeyReveal) Stash(context.Context, string, string) error   { return nil }
func (noopKeyReveal) Claim(context.Context, string) (string, error) { return "", nil }
