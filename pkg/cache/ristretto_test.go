package cache

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("NewRistrettoCache() error: %v", err)
	}
	rc := c.(*RistrettoCache)
	t.Cleanup(rc.Close)
	return rc
}

func TestCacheSetGet(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)

	if ok := c.Set("k1", "v1", time.Minute); !ok {
		t.Fatal("Set() rejected the entry")
	}
	c.Wait()

	got, found := c.Get("k1")
	if !found || got != "v1" {
		t.Errorf("Get(k1) = %v, %v", got, found)
	}

	if _, found := c.Get("missing"); found {
		t.Error("Get(missing) must report a miss")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	c.Set("k1", "v1", 10*time.Millisecond)
	c.Wait()

	time.Sleep(50 * time.Millisecond)
	if _, found := c.Get("k1"); found {
		t.Error("entry must expire after its TTL")
	}
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	c.Set("k1", "v1", time.Minute)
	c.Wait()

	c.Delete("k1")
	if _, found := c.Get("k1"); found {
		t.Error("deleted entry must not resolve")
	}
}

func TestCacheClear(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	c.Set("k1", "v1", time.Minute)
	c.Set("k2", "v2", time.Minute)
	c.Wait()

	c.Clear()
	if _, found := c.Get("k1"); found {
		t.Error("cleared cache must not resolve old keys")
	}
}
