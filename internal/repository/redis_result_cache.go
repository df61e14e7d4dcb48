package repository

import (
	"context"
	"time"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/repository"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/cache"
)

// CacheResultCache implements ResultCache on the cache service (Redis in
// production, in-memory in tests).
type CacheResultCache struct {
	svc cache.Service
	ttl time.Duration
}

// NewCacheResultCache creates a result cache with the given TTL.
func NewCacheResultCache(svc cache.Service, ttl time.Duration) repository.ResultCache {
	return &CacheResultCache{svc: svc, ttl: ttl}
}

func latestKey(symbol string) string {
	return "latest:" + symbol
}

func (c *CacheResultCache) StoreLatest(ctx context.Context, res *models.ConfluenceResult) error {
	if res == nil {
		return nil
	}
	return c.svc.Set(ctx, latestKey(res.Symbol), res, c.ttl)
}

func (c *CacheResultCache) Latest(ctx context.Context, symbol string) (*models.ConfluenceResult, error) {
	var res models.ConfluenceResult
	if err := c.svc.Get(ctx, latestKey(symbol), &res); err != nil {
		return nil, err
	}
	return &res, nil
}
