package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(10, 0)

	if err := mc.Set(ctx, "a", []byte("value-a"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := mc.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "value-a" {
		t.Errorf("expected value-a, got %s", got)
	}

	if _, err := mc.Get(ctx, "missing"); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheNoExpiryWithZeroTTL(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(10, 0)

	if err := mc.Set(ctx, "persistent", []byte("data"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// With TTL 0 the entry must survive arbitrarily long
	time.Sleep(20 * time.Millisecond)

	if _, err := mc.Get(ctx, "persistent"); err != nil {
		t.Errorf("entry with zero TTL expired: %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(10, 0)

	if err := mc.Set(ctx, "short", []byte("data"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if _, err := mc.Get(ctx, "short"); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(3, 0)

	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		if err := mc.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatalf("Set %s failed: %v", k, err)
		}
	}

	// Touch "a" so that "b" becomes the LRU entry
	if _, err := mc.Get(ctx, "a"); err != nil {
		t.Fatalf("Get a failed: %v", err)
	}

	if err := mc.Set(ctx, "d", []byte("d"), 0); err != nil {
		t.Fatalf("Set d failed: %v", err)
	}

	if _, err := mc.Get(ctx, "b"); err != ErrCacheMiss {
		t.Errorf("expected b to be evicted, got %v", err)
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, err := mc.Get(ctx, k); err != nil {
			t.Errorf("expected %s to survive eviction, got %v", k, err)
		}
	}

	if mc.Size() != 3 {
		t.Errorf("expected size 3, got %d", mc.Size())
	}
}

func TestMemoryCacheUpdateExisting(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(10, 0)

	_ = mc.Set(ctx, "k", []byte("v1"), 0)
	_ = mc.Set(ctx, "k", []byte("v2"), 0)

	got, err := mc.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("expected updated value v2, got %s", got)
	}
	if mc.Size() != 1 {
		t.Errorf("expected size 1 after update, got %d", mc.Size())
	}
}

func TestResponseKey(t *testing.T) {
	k1 := ResponseKey("gemini", "hello")
	k2 := ResponseKey("gemini", "hello")
	k3 := ResponseKey("mistral", "hello")
	k4 := ResponseKey("gemini", "world")

	if k1 != k2 {
		t.Error("same provider and prompt must produce the same key")
	}
	if k1 == k3 {
		t.Error("different providers must produce different keys")
	}
	if k1 == k4 {
		t.Error("different prompts must produce different keys")
	}
}

func TestMultiLayerCacheMemoryOnly(t *testing.T) {
	ctx := context.Background()
	mlc, err := NewMultiLayerCache(&Config{
		MemoryEnabled:    true,
		MemoryMaxEntries: 100,
		MemoryTTL:        0,
	})
	if err != nil {
		t.Fatalf("NewMultiLayerCache failed: %v", err)
	}
	defer mlc.Close()

	if err := mlc.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := mlc.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("expected v, got %s", got)
	}

	if _, err := mlc.Get(ctx, "missing"); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}

	stats := mlc.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if rate := stats.HitRate(); rate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", rate)
	}
}

func BenchmarkMemoryCacheGet(b *testing.B) {
	ctx := context.Background()
	mc := NewMemoryCache(1000, 0)
	_ = mc.Set(ctx, "bench", []byte("payload"), 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mc.Get(ctx, "bench")
	}
}
