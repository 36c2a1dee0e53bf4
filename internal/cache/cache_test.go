package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, "analysis:g1:all", []byte(`{"total_chargebacks":3}`), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, "analysis:g1:all")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != `{"total_chargebacks":3}` {
			t.Errorf("unexpected value %q", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = cache.Set(ctx, "gen", []byte("a"), time.Minute)
		_ = cache.Set(ctx, "gen", []byte("b"), time.Minute)

		val, _ := cache.Get(ctx, "gen")
		if string(val) != "b" {
			t.Errorf("expected 'b', got '%s'", string(val))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, "expiring", []byte("temp"), 10*time.Millisecond)

		val, _ := cache.Get(ctx, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("ZeroTTLNeverExpires", func(t *testing.T) {
		_ = cache.Set(ctx, "analysis:generation", []byte("g2"), 0)

		time.Sleep(5 * time.Millisecond)

		val, _ := cache.Get(ctx, "analysis:generation")
		if string(val) != "g2" {
			t.Errorf("expected 'g2', got '%s'", string(val))
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, "c", []byte("3"), time.Minute)

		// Touch 'a' so 'b' becomes the oldest.
		_, _ = smallCache.Get(ctx, "a")

		_ = smallCache.Set(ctx, "d", []byte("4"), time.Minute)

		val, _ := smallCache.Get(ctx, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		val, _ = smallCache.Get(ctx, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}

		val, _ := testCache.Get(ctx, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()

	t.Run("GetHit", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		cache := NewRedisCacheWithClient(client)

		mock.ExpectGet("kestrel:analysis:g1:all").SetVal("cached")

		val, err := cache.Get(ctx, "analysis:g1:all")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "cached" {
			t.Errorf("expected 'cached', got '%s'", string(val))
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("GetMissIsNil", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		cache := NewRedisCacheWithClient(client)

		mock.ExpectGet("kestrel:missing").RedisNil()

		val, err := cache.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("expected no error on miss, got %v", err)
		}
		if val != nil {
			t.Errorf("expected nil on miss, got %v", val)
		}
	})

	t.Run("GetError", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		cache := NewRedisCacheWithClient(client)

		mock.ExpectGet("kestrel:k").SetErr(errors.New("connection refused"))

		if _, err := cache.Get(ctx, "k"); err == nil {
			t.Error("expected error from redis")
		}
	})

	t.Run("SetWithTTL", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		cache := NewRedisCacheWithClient(client)

		mock.ExpectSet("kestrel:k", []byte("v"), time.Minute).SetVal("OK")

		if err := cache.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("SetWithoutExpiry", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		cache := NewRedisCacheWithClient(client)

		mock.ExpectSet("kestrel:analysis:generation", []byte("g2"), 0).SetVal("OK")

		if err := cache.Set(ctx, "analysis:generation", []byte("g2"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		cache := NewRedisCacheWithClient(client)

		mock.ExpectDel("kestrel:k").SetVal(1)

		if err := cache.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestTwoPhaseCache(t *testing.T) {
	ctx := context.Background()

	t.Run("L2HitPopulatesL1", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		cache := newTwoPhase(NewLRUCache(10), NewRedisCacheWithClient(client), time.Minute)

		// Only one remote read is expected; the second Get is served by L1.
		mock.ExpectGet("kestrel:k").SetVal("remote")

		for i := 0; i < 2; i++ {
			val, err := cache.Get(ctx, "k")
			if err != nil {
				t.Fatalf("Get %d failed: %v", i, err)
			}
			if string(val) != "remote" {
				t.Errorf("Get %d: expected 'remote', got '%s'", i, string(val))
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("SetWritesBothTiers", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		local := NewLRUCache(10)
		cache := newTwoPhase(local, NewRedisCacheWithClient(client), time.Minute)

		mock.ExpectSet("kestrel:analysis:generation", []byte("g3"), 0).SetVal("OK")

		if err := cache.Set(ctx, "analysis:generation", []byte("g3"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, _ := local.Get(ctx, "analysis:generation")
		if string(val) != "g3" {
			t.Errorf("expected L1 to hold 'g3', got '%s'", string(val))
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("DeleteBothTiers", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		local := NewLRUCache(10)
		cache := newTwoPhase(local, NewRedisCacheWithClient(client), time.Minute)

		_ = local.Set(ctx, "k", []byte("v"), time.Minute)
		mock.ExpectDel("kestrel:k").SetVal(1)

		if err := cache.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if val, _ := local.Get(ctx, "k"); val != nil {
			t.Error("expected L1 entry to be removed")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := New(domain.CacheConfig{Type: "memcached"})
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
