package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-vending/internal/resilience"
	"github.com/noah-isme/backend-vending/internal/vending"
)

// Cache memoizes quote results in Redis as JSON.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	breaker *resilience.Breaker
}

// NewCache constructs a cache helper. A nil client yields a cache that always misses.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "vending:quote:"}
}

// WithBreaker guards Redis calls with b. While it is open lookups and stores
// fail fast with resilience.ErrOpenCircuit.
func (c *Cache) WithBreaker(b *resilience.Breaker) *Cache {
	c.breaker = b
	return c
}

// Enabled reports whether the cache is backed by Redis.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() || key == "" {
		return false, nil
	}
	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var getErr error
		data, getErr = c.client.Get(ctx, c.prefix+key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			return nil
		}
		return getErr
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
	})
}

// Key derives the memoization key for a quote. The schedule version is part of
// the key so a reload never serves results computed against an older schedule.
func Key(version, appID string, platform vending.PlatformID, appShare int, price vending.Money, preferred bool) string {
	tier := "std"
	if preferred {
		tier = "pref"
	}
	return fmt.Sprintf("%s:%s:%s:%d:%d:%s", version, appID, platform, appShare, price, tier)
}
