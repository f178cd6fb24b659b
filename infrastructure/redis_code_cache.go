package infrastructure

import (
	"context"
	"fmt"
	"time"

	"refwallet/events"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const codeKeyPrefix = "refwallet:code:"

// RedisCodeCache remembers referral codes that are known to exist.
// Codes are never reassigned, so positive entries cannot go stale.
type RedisCodeCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient initializes a redis client
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisCodeCache creates a code cache over rdb
func NewRedisCodeCache(rdb *redis.Client, ttl time.Duration) *RedisCodeCache {
	return &RedisCodeCache{rdb: rdb, ttl: ttl}
}

// Contains reports whether the code is cached
func (c *RedisCodeCache) Contains(ctx context.Context, code string) (bool, error) {
	n, err := c.rdb.Exists(ctx, codeKeyPrefix+code).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cached code: %w", err)
	}
	return n > 0, nil
}

// Add caches the code
func (c *RedisCodeCache) Add(ctx context.Context, code string) error {
	if err := c.rdb.Set(ctx, codeKeyPrefix+code, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache code: %w", err)
	}
	return nil
}

// Ping checks the connection
func (c *RedisCodeCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Attach caches every newly assigned code as soon as its transaction commits
func (c *RedisCodeCache) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventTypeCodeAssigned, func(ctx context.Context, event events.Event) {
		assigned, ok := event.(events.CodeAssignedEvent)
		if !ok {
			return
		}
		if err := c.Add(ctx, assigned.Code); err != nil {
			log.WithError(err).WithField("code", assigned.Code).Warn("Failed to cache assigned referral code")
		}
	})
}
