package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kineticare/kineticare-backend/internal/platform/envutil"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
)

// Cache is a thin read-through layer over Redis. Callers must tolerate a nil
// Cache and any error from it; Redis being down never breaks a request.
type Cache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func New(log *logger.Logger) (*Cache, error) {
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Cache{
		log: log.With("service", "Cache"),
		rdb: rdb,
	}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != goredis.Nil {
			c.log.Debug("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (c *Cache) Set(ctx context.Context, key, val string, ttl time.Duration) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		c.log.Debug("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
