package lock

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKey = "referral:crawl:batch"
	DefaultTTL = 2 * time.Hour
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Redis holds a SET NX key with a random token. TTL bounds how long a
// crashed holder can block later runs.
type Redis struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	key, ttl := r.Key, r.TTL
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	log.Printf("[lock] acquired redis key=%s ttl=%s", key, ttl)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.Client, []string{key}, token).Err(); err != nil {
			log.Printf("[lock] release redis key=%s error: %v", key, err)
		}
	}, nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
