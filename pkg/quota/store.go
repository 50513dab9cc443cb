package quota

import (
	"context"
	"math"
	"sync"
	"time"
)

// bucket is one caller's token state. tokens is fractional between
// refills; lastSeen doubles as the refill anchor and the idle marker.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// MemoryStore is a thread-safe in-memory Store.
//
// Buckets refill lazily on access, so an idle key costs nothing per tick.
// When the key cap is reached and a new caller arrives, the idlest bucket
// is evicted with a linear scan; eviction only happens on insertion at
// capacity, and the janitor's PruneIdle keeps the map small long before
// the cap matters.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rate    float64
	burst   float64
	maxKeys int
	onEvict func(count int)
}

// MemoryStoreConfig holds construction parameters for MemoryStore.
type MemoryStoreConfig struct {
	// RequestsPerSec is the refill rate per key.
	RequestsPerSec float64

	// Burst is the bucket capacity per key.
	Burst int

	// MaxKeys caps the number of tracked keys.
	MaxKeys int

	// OnEvict, when set, is called with the number of keys evicted to
	// make room for a new caller. Called while the store lock is held,
	// so it must not call back into the store.
	OnEvict func(count int)
}

// NewMemoryStore creates an in-memory bucket store. Out-of-range values
// fall back to defaults.
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = DefaultConfig().RequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultConfig().MaxKeys
	}
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		rate:    cfg.RequestsPerSec,
		burst:   float64(cfg.Burst),
		maxKeys: cfg.MaxKeys,
		onEvict: cfg.OnEvict,
	}
}

// Take implements Store. The refill computation and the token consumption
// run under one lock acquisition.
func (s *MemoryStore) Take(_ context.Context, key string, now time.Time) (TakeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		if len(s.buckets) >= s.maxKeys {
			s.evictIdlest()
		}
		b = &bucket{tokens: s.burst}
		s.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		if elapsed > 0 {
			b.tokens = math.Min(s.burst, b.tokens+elapsed*s.rate)
		}
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return TakeResult{Allowed: true, Remaining: int(b.tokens)}, nil
	}

	wait := time.Duration((1 - b.tokens) / s.rate * float64(time.Second))
	return TakeResult{Allowed: false, Remaining: 0, RetryAfter: wait}, nil
}

// Len implements Store.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets), nil
}

// PruneIdle implements Store.
func (s *MemoryStore) PruneIdle(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed, nil
}

// evictIdlest removes the least recently seen key. Caller holds s.mu.
func (s *MemoryStore) evictIdlest() {
	var idlestKey string
	var idlest time.Time
	for key, b := range s.buckets {
		if idlestKey == "" || b.lastSeen.Before(idlest) {
			idlestKey, idlest = key, b.lastSeen
		}
	}
	if idlestKey == "" {
		return
	}
	delete(s.buckets, idlestKey)
	if s.onEvict != nil {
		s.onEvict(1)
	}
}
