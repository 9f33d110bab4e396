package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"shop-assistant/internal/domain"
)

// CatalogReader is the browse side of the catalog: category listings that
// tolerate being a little stale. Product lookups that feed cart or order
// writes read the table directly and are not part of it.
type CatalogReader interface {
	ProductsByCategory(ctx context.Context, categoryID string, limit int) ([]domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// redisAPI is the subset of the go-redis client used by CatalogCache.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CatalogCache is a read-through Redis cache in front of a CatalogReader.
// Cache errors are logged and fall through to the source; misses are not
// cached.
type CatalogCache struct {
	source CatalogReader
	rdb    redisAPI
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCatalogCache wraps source with a cache whose entries live for ttl.
func NewCatalogCache(source CatalogReader, rdb redisAPI, ttl time.Duration, log zerolog.Logger) (*CatalogCache, error) {
	if source == nil || rdb == nil {
		return nil, errors.New("repository: catalog cache needs a source and a redis client")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CatalogCache{source: source, rdb: rdb, ttl: ttl, log: log}, nil
}

func (c *CatalogCache) ProductsByCategory(ctx context.Context, categoryID string, limit int) ([]domain.Product, error) {
	k := fmt.Sprintf("catalog:category:%s:%d", categoryID, limit)
	return cached(ctx, c, k, func() ([]domain.Product, error) { return c.source.ProductsByCategory(ctx, categoryID, limit) })
}

func (c *CatalogCache) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return cached(ctx, c, "catalog:categories", func() ([]domain.Category, error) { return c.source.ListCategories(ctx) })
}

func cached[T any](ctx context.Context, c *CatalogCache, k string, load func() (T, error)) (T, error) {
	raw, err := c.rdb.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			return v, nil
		}
		c.log.Warn().Str("key", k).Msg("discarding undecodable catalog cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", k).Msg("catalog cache read failed")
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.rdb.Set(ctx, k, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", k).Msg("catalog cache write failed")
	}
	return v, nil
}
