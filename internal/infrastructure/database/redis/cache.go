package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = apperrors.New(apperrors.ErrCodeNotFound, "cache miss")

// Cache is a JSON-serializing key/value cache over Redis with a configurable
// key prefix.
type Cache struct {
	client *redis.Client
	prefix string
	logger logging.Logger
}

// NewCache constructs a Cache.  All keys are stored under the given prefix.
func NewCache(client *redis.Client, prefix string, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cache{
		client: client,
		prefix: prefix,
		logger: logger.Named("cache"),
	}
}

// Get loads the value stored at key into out.  A missing key yields
// ErrCacheMiss; transport failures yield ErrCodeCacheError.
func (c *Cache) Get(ctx context.Context, key string, out interface{}) error {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "cache read failed").WithDetail(key)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "cache value decode failed").WithDetail(key)
	}
	return nil
}

// Set stores value at key with the given TTL.  A zero TTL stores without
// expiry.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "cache value encode failed").WithDetail(key)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "cache write failed").WithDetail(key)
	}
	return nil
}

// Delete removes a key.  Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCacheError, "cache delete failed").WithDetail(key)
	}
	return nil
}
