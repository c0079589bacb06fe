package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rentchain/rental-client/internal/interfaces"
)

// Records is a read-through cache of decoded contract records. Cache failures never fail a read,
// the chain stays the source of truth.
type Records struct {
	ttl   time.Duration
	store Store
	log   interfaces.ILogger
}

func NewRecords(store Store, ttl time.Duration, log interfaces.ILogger) *Records {
	return &Records{ttl: ttl, store: store, log: log}
}

// Put stores a freshly read record
func (c *Records) Put(ctx context.Context, key string, record interface{}) {
	data, err := json.Marshal(record)
	if err != nil {
		c.log.Warnf("cannot encode record %s: %s", key, err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warnf("cache write %s failed: %s", key, err)
	}
}

// Lookup decodes a cached record into dst and reports whether it was found
func (c *Records) Lookup(ctx context.Context, key string, dst interface{}) bool {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.log.Warnf("cache read %s failed: %s", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warnf("dropping undecodable cache entry %s: %s", key, err)
		_ = c.store.Del(ctx, key)
		return false
	}
	return true
}

func (c *Records) Invalidate(ctx context.Context, keys ...string) {
	if err := c.store.Del(ctx, keys...); err != nil {
		c.log.Warnf("cache invalidate failed: %s", err)
	}
}

func (c *Records) Close() error {
	return c.store.Close()
}

// ReadThrough returns the cached record for key or loads, stores and returns it
func ReadThrough[T any](ctx context.Context, c *Records, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c.Lookup(ctx, key, &cached) {
		return cached, nil
	}

	fresh, err := load(ctx)
	if err != nil {
		return fresh, err
	}
	c.Put(ctx, key, fresh)
	return fresh, nil
}
