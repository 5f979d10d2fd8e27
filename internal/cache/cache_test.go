package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLocalCache(t *testing.T) {
	t.Run("GetSetRoundTrip", func(t *testing.T) {
		cache, err := NewLocalCache(LocalConfig{Dir: t.TempDir()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx := context.Background()

		// Initially empty
		result, ok, err := cache.Get(ctx, "golden retriever")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok || result != nil {
			t.Fatalf("expected miss for empty cache, got %q", result)
		}

		if err := cache.Set(ctx, "golden retriever", []byte(`[{"title":"Dogs"}]`)); err != nil {
			t.Fatalf("unexpected error on set: %v", err)
		}

		result, ok, err = cache.Get(ctx, "golden retriever")
		if err != nil {
			t.Fatalf("unexpected error on get: %v", err)
		}
		if !ok {
			t.Fatal("expected hit, got miss")
		}
		if string(result) != `[{"title":"Dogs"}]` {
			t.Errorf("unexpected cached value %q", result)
		}

		_, ok, _ = cache.Get(ctx, "other key")
		if ok {
			t.Error("distinct keys must not collide")
		}
	})

	t.Run("CreateDirectoryIfNeeded", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "dir")

		cache, err := NewLocalCache(LocalConfig{Dir: dir})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := cache.Set(context.Background(), "k", []byte("v")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("cache directory was not created: %v", err)
		}
	})

	t.Run("ExpiredEntriesMiss", func(t *testing.T) {
		cache, err := NewLocalCache(LocalConfig{Dir: t.TempDir(), TTL: time.Minute})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx := context.Background()
		if err := cache.Set(ctx, "k", []byte("v")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cache.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, ok, err := cache.Get(ctx, "k")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected expired entry to miss")
		}
	})

	t.Run("OverwriteLeavesNoTempFiles", func(t *testing.T) {
		dir := t.TempDir()
		cache, err := NewLocalCache(LocalConfig{Dir: dir})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx := context.Background()
		_ = cache.Set(ctx, "k", []byte("one"))
		_ = cache.Set(ctx, "k", []byte("two"))

		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Fatalf("expected exactly one cache file, got %d", len(entries))
		}
		got, _, _ := cache.Get(ctx, "k")
		if string(got) != "two" {
			t.Errorf("expected latest value, got %q", got)
		}
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		cache, err := NewLocalCache(LocalConfig{Dir: t.TempDir()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = cache.Set(ctx, "shared", []byte("value"))
			}()
			go func() {
				defer wg.Done()
				_, _, _ = cache.Get(ctx, "shared")
			}()
		}
		wg.Wait()

		got, ok, err := cache.Get(ctx, "shared")
		if err != nil || !ok || string(got) != "value" {
			t.Errorf("unexpected result after concurrent access: %q %v %v", got, ok, err)
		}
	})
}

func TestNewLocalCache_RequiresDir(t *testing.T) {
	if _, err := NewLocalCache(LocalConfig{}); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestNew(t *testing.T) {
	c, err := New(Config{Type: TypeNone})
	if err != nil || c != nil {
		t.Fatalf("expected disabled cache, got %v, %v", c, err)
	}

	c, err = New(Config{Type: TypeLocal, TTL: time.Hour, Local: LocalConfig{Dir: t.TempDir()}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	local, ok := c.(*LocalCache)
	if !ok {
		t.Fatalf("expected *LocalCache, got %T", c)
	}
	if local.ttl != time.Hour {
		t.Errorf("expected TTL to be inherited, got %v", local.ttl)
	}

	if _, err := New(Config{Type: "memcached"}); err == nil {
		t.Error("expected error for unknown cache type")
	}

	if _, err := New(Config{Type: TypeRedis, Redis: RedisConfig{URL: "not a url"}}); err == nil {
		t.Error("expected error for invalid redis URL")
	}
}
