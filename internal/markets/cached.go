package markets

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/crossmarket-arb/pkg/cache"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

// CachedResolver wraps a Resolver with caching. Token ids and condition
// ids never change for a market, so a long TTL is safe.
type CachedResolver struct {
	inner Resolver
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedResolver creates a caching resolver.
func NewCachedResolver(inner Resolver, c cache.Cache) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: c,
		ttl:   24 * time.Hour,
	}
}

// GetMarketMeta resolves from cache first, falling back to the inner
// resolver on miss.
func (r *CachedResolver) GetMarketMeta(ctx context.Context, marketID string) (*types.MarketMeta, error) {
	key := fmt.Sprintf("meta:%s", marketID)

	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			if meta, ok := cached.(*types.MarketMeta); ok {
				MetaCacheHitsTotal.Inc()
				return meta, nil
			}
		}
		MetaCacheMissesTotal.Inc()
	}

	meta, err := r.inner.GetMarketMeta(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(key, meta, r.ttl)
	}
	return meta, nil
}
