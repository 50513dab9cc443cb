package quota

import (
	"context"
	"sync"
	"testing"
	"time"
)

var storeEpoch = time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

func TestMemoryStore_Take(t *testing.T) {
	t.Run("TC-1: should allow burst then deny", func(t *testing.T) {
		// Arrange
		store := NewMemoryStore(MemoryStoreConfig{RequestsPerSec: 1, Burst: 3, MaxKeys: 10})
		ctx := context.Background()

		// Act & Assert - burst drains
		for i := 0; i < 3; i++ {
			res, err := store.Take(ctx, "caller-1", storeEpoch)
			if err != nil {
				t.Fatalf("take %d failed: %v", i+1, err)
			}
			if !res.Allowed {
				t.Fatalf("take %d should be allowed", i+1)
			}
			if res.Remaining != 2-i {
				t.Errorf("take %d: expected remaining %d, got %d", i+1, 2-i, res.Remaining)
			}
		}

		// Assert - bucket empty
		res, err := store.Take(ctx, "caller-1", storeEpoch)
		if err != nil {
			t.Fatalf("take failed: %v", err)
		}
		if res.Allowed {
			t.Error("expected denial after burst drained")
		}
		if res.RetryAfter <= 0 {
			t.Errorf("expected positive retry-after, got %v", res.RetryAfter)
		}
	})

	t.Run("TC-2: should refill over elapsed time", func(t *testing.T) {
		// Arrange - 2 tokens per second
		store := NewMemoryStore(MemoryStoreConfig{RequestsPerSec: 2, Burst: 1, MaxKeys: 10})
		ctx := context.Background()

		if res, _ := store.Take(ctx, "caller-1", storeEpoch); !res.Allowed {
			t.Fatal("first take should be allowed")
		}
		if res, _ := store.Take(ctx, "caller-1", storeEpoch); res.Allowed {
			t.Fatal("second take at the same instant should be denied")
		}

		// Act - half a second refills one token at 2/sec
		res, err := store.Take(ctx, "caller-1", storeEpoch.Add(500*time.Millisecond))

		// Assert
		if err != nil {
			t.Fatalf("take failed: %v", err)
		}
		if !res.Allowed {
			t.Error("expected refilled token to be granted")
		}
	})

	t.Run("TC-3: should cap refill at burst", func(t *testing.T) {
		// Arrange
		store := NewMemoryStore(MemoryStoreConfig{RequestsPerSec: 100, Burst: 2, MaxKeys: 10})
		ctx := context.Background()
		if res, _ := store.Take(ctx, "caller-1", storeEpoch); !res.Allowed {
			t.Fatal("first take should be allowed")
		}

		// Act - an hour of idle time must not bank more than burst
		later := storeEpoch.Add(time.Hour)
		allowed := 0
		for i := 0; i < 5; i++ {
			if res, _ := store.Take(ctx, "caller-1", later); res.Allowed {
				allowed++
			}
		}

		// Assert
		if allowed != 2 {
			t.Errorf("expected exactly burst (2) takes after idle, got %d", allowed)
		}
	})

	t.Run("TC-4: should report retry-after matching the token deficit", func(t *testing.T) {
		// Arrange - 2 tokens per second means a 500ms wait per token
		store := NewMemoryStore(MemoryStoreConfig{RequestsPerSec: 2, Burst: 1, MaxKeys: 10})
		ctx := context.Background()
		if res, _ := store.Take(ctx, "caller-1", storeEpoch); !res.Allowed {
			t.Fatal("first take should be allowed")
		}

		// Act
		res, _ := store.Take(ctx, "caller-1", storeEpoch)

		// Assert
		if res.RetryAfter != 500*time.Millisecond {
			t.Errorf("expected retry-after 500ms, got %v", res.RetryAfter)
		}
	})

	t.Run("TC-5: should isolate keys", func(t *testing.T) {
		// Arrange
		store := NewMemoryStore(MemoryStoreConfig{RequestsPerSec: 1, Burst: 1, MaxKeys: 10})
		ctx := context.Background()
		if res, _ := store.Take(ctx, "caller-1", storeEpoch); !res.Allowed {
			t.Fatal("caller-1 take should be allowed")
		}

		// Act
		res, _ := store.Take(ctx, "caller-2", storeEpoch)

		// Assert
		if !res.Allowed {
			t.Error("caller-2 should have its own bucket")
		}
	})
}

func TestMemoryStore_Eviction(t *testing.T) {
	t.Run("TC-1: should evict the idlest key at capacity", func(t *testing.T) {
		// Arrange
		var evicted int
		store := NewMemoryStore(MemoryStoreConfig{
			RequestsPerSec: 1,
			Burst:          5,
			MaxKeys:        2,
			OnEvict:        func(count int) { evicted += count },
		})
		ctx := context.Background()

		_, _ = store.Take(ctx, "old", storeEpoch)
		_, _ = store.Take(ctx, "recent", storeEpoch.Add(time.Minute))

		// Act - a third caller exceeds the cap
		res, err := store.Take(ctx, "new", storeEpoch.Add(2*time.Minute))

		// Assert
		if err != nil {
			t.Fatalf("take failed: %v", err)
		}
		if !res.Allowed {
			t.Error("new caller should be allowed after eviction")
		}
		if evicted != 1 {
			t.Errorf("expected 1 eviction, got %d", evicted)
		}
		count, _ := store.Len(ctx)
		if count != 2 {
			t.Errorf("expected 2 tracked keys, got %d", count)
		}

		// The evicted key gets a fresh bucket on return.
		back, _ := store.Take(ctx, "old", storeEpoch.Add(3*time.Minute))
		if !back.Allowed || back.Remaining != 4 {
			t.Errorf("expected fresh bucket for evicted key, got allowed=%v remaining=%d", back.Allowed, back.Remaining)
		}
	})
}

func TestMemoryStore_PruneIdle(t *testing.T) {
	t.Run("TC-1: should drop keys idle past the cutoff", func(t *testing.T) {
		// Arrange
		store := NewMemoryStore(MemoryStoreConfig{RequestsPerSec: 1, Burst: 1, MaxKeys: 10})
		ctx := context.Background()
		_, _ = store.Take(ctx, "idle-1", storeEpoch)
		_, _ = store.Take(ctx, "idle-2", storeEpoch)
		_, _ = store.Take(ctx, "active", storeEpoch.Add(10*time.Minute))

		// Act
		removed, err := store.PruneIdle(ctx, storeEpoch.Add(5*time.Minute))

		// Assert
		if err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if removed != 2 {
			t.Errorf("expected 2 pruned keys, got %d", removed)
		}
		count, _ := store.Len(ctx)
		if count != 1 {
			t.Errorf("expected 1 tracked key, got %d", count)
		}
	})
}

func TestMemoryStore_ConcurrentTake(t *testing.T) {
	t.Run("TC-1: should grant exactly burst under contention", func(t *testing.T) {
		// Arrange - all takes share one instant, so no refill happens
		store := NewMemoryStore(MemoryStoreConfig{RequestsPerSec: 1, Burst: 10, MaxKeys: 10})
		ctx := context.Background()

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0

		// Act
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := store.Take(ctx, "caller-1", storeEpoch)
				if err != nil {
					t.Errorf("take failed: %v", err)
					return
				}
				if res.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		// Assert
		if allowed != 10 {
			t.Errorf("expected exactly 10 grants, got %d", allowed)
		}
	})
}
