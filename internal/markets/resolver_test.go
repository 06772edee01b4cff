package markets_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/crossmarket-arb/internal/markets"
	"github.com/mselser95/crossmarket-arb/internal/testutil"
	"github.com/mselser95/crossmarket-arb/pkg/types"
)

func TestGetMarketMeta(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/m1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"conditionId": "0xabc",
			"yesTokenId": "111",
			"noTokenId": "222",
			"slug": "will-it-rain"
		}`))
	}))
	defer server.Close()

	client := markets.NewMetadataClient(server.URL)
	meta, err := client.GetMarketMeta(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetMarketMeta() error: %v", err)
	}

	if meta.ConditionID != "0xabc" || meta.YesTokenID != "111" || meta.NoTokenID != "222" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Slug != "will-it-rain" {
		t.Errorf("slug = %q", meta.Slug)
	}
}

func TestGetMarketMetaErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not-found", http.StatusNotFound, `{}`},
		{"server-error", http.StatusInternalServerError, `{}`},
		{"incomplete-metadata", http.StatusOK, `{"conditionId": "0xabc"}`},
		{"malformed-json", http.StatusOK, `{"conditionId": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := markets.NewMetadataClient(server.URL)
			if _, err := client.GetMarketMeta(context.Background(), "m1"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// mapCache is a synchronous cache.Cache for resolver tests; ristretto's
// buffered writes would race immediate reads.
type mapCache struct {
	mu    sync.Mutex
	items map[string]interface{}
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]interface{})}
}

func (c *mapCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(key string, value interface{}, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return true
}

func (c *mapCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *mapCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]interface{})
}

func (c *mapCache) Close() {}

// countingResolver wraps a resolver and counts upstream hits.
type countingResolver struct {
	inner markets.Resolver
	calls int
}

func (r *countingResolver) GetMarketMeta(ctx context.Context, marketID string) (*types.MarketMeta, error) {
	r.calls++
	return r.inner.GetMarketMeta(ctx, marketID)
}

func TestCachedResolver(t *testing.T) {
	t.Parallel()

	upstream := &countingResolver{
		inner: &testutil.MockResolver{Metas: map[string]*types.MarketMeta{
			"m1": testutil.NewTestMeta("0xabc", "111", "222"),
		}},
	}
	resolver := markets.NewCachedResolver(upstream, newMapCache())

	first, err := resolver.GetMarketMeta(context.Background(), "m1")
	if err != nil {
		t.Fatalf("first GetMarketMeta() error: %v", err)
	}
	second, err := resolver.GetMarketMeta(context.Background(), "m1")
	if err != nil {
		t.Fatalf("second GetMarketMeta() error: %v", err)
	}

	if upstream.calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (second read served from cache)", upstream.calls)
	}
	if first.ConditionID != second.ConditionID {
		t.Errorf("cached metadata differs: %+v vs %+v", first, second)
	}
}

func TestCachedResolverErrorNotCached(t *testing.T) {
	t.Parallel()

	failing := &testutil.MockResolver{Metas: map[string]*types.MarketMeta{}}
	upstream := &countingResolver{inner: failing}
	resolver := markets.NewCachedResolver(upstream, newMapCache())

	if _, err := resolver.GetMarketMeta(context.Background(), "missing"); err == nil {
		t.Fatal("expected resolution error")
	}
	if _, err := resolver.GetMarketMeta(context.Background(), "missing"); err == nil {
		t.Fatal("expected resolution error")
	}
	if upstream.calls != 2 {
		t.Errorf("upstream calls = %d, want 2 (failures are not cached)", upstream.calls)
	}
}

func TestCachedResolverNilCache(t *testing.T) {
	t.Parallel()

	upstream := &countingResolver{
		inner: &testutil.MockResolver{Metas: map[string]*types.MarketMeta{
			"m1": testutil.NewTestMeta("0xabc", "111", "222"),
		}},
	}
	resolver := markets.NewCachedResolver(upstream, nil)

	if _, err := resolver.GetMarketMeta(context.Background(), "m1"); err != nil {
		t.Fatalf("GetMarketMeta() error: %v", err)
	}
	if _, err := resolver.GetMarketMeta(context.Background(), "m1"); err != nil {
		t.Fatalf("GetMarketMeta() error: %v", err)
	}
	if upstream.calls != 2 {
		t.Errorf("upstream calls = %d, want 2 without a cache", upstream.calls)
	}
}
