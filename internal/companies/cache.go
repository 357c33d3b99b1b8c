package companies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "companies:settings:version"

// Cache wraps Redis based caching of company settings with versioned keys.
// A nil Cache or client falls through to the loader.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Key composes the settings key of a company under the current version.
func (c *Cache) Key(ctx context.Context, companyID int64) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("companies:settings:%d:%d", companyID, ver), nil
}

// Fetch loads a cached company or populates it using the loader.
func (c *Cache) Fetch(ctx context.Context, companyID int64, loader func(context.Context) (Company, error)) (Company, error) {
	if loader == nil {
		return Company{}, errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key, err := c.Key(ctx, companyID)
	if err != nil {
		return Company{}, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var company Company
		if err := json.Unmarshal(payload, &company); err == nil {
			return company, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return Company{}, err
	}
	company, err := loader(ctx)
	if err != nil {
		return Company{}, err
	}
	raw, err := json.Marshal(company)
	if err != nil {
		return Company{}, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return Company{}, err
	}
	return company, nil
}

// Bump invalidates every cached entry by incrementing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
