package cache

import (
	"context"
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time // zero = no expire
}

func (i item[V]) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// MemoryCache keeps entries in process. A janitor goroutine sweeps expired
// keys until Stop is called.
type MemoryCache[V any] struct {
	mu    sync.Mutex
	items map[string]item[V]
	now   func() time.Time
	quit  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a cache with a 1s janitor.
func NewMemoryCache[V any]() *MemoryCache[V] {
	return NewMemoryCacheWithOptions[V](time.Second, time.Now)
}

// NewMemoryCacheWithOptions allows customizing the janitor interval and the clock.
func NewMemoryCacheWithOptions[V any](janitorInterval time.Duration, now func() time.Time) *MemoryCache[V] {
	mc := &MemoryCache[V]{
		items: make(map[string]item[V]),
		now:   now,
		quit:  make(chan struct{}),
	}
	go mc.startJanitor(janitorInterval)
	return mc
}

// Stop terminates the janitor goroutine.
func (mc *MemoryCache[V]) Stop() {
	mc.once.Do(func() { close(mc.quit) })
}

func (mc *MemoryCache[V]) Close() error {
	mc.Stop()
	return nil
}

func (mc *MemoryCache[V]) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return mc.now().Add(ttl)
}

func (mc *MemoryCache[V]) Get(_ context.Context, key string) (V, error) {
	var zero V
	mc.mu.Lock()
	defer mc.mu.Unlock()

	itm, ok := mc.items[key]
	if !ok {
		return zero, ErrCacheMiss
	}
	if itm.expired(mc.now()) {
		delete(mc.items, key)
		return zero, ErrCacheMiss
	}
	return itm.value, nil
}

func (mc *MemoryCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	mc.mu.Lock()
	mc.items[key] = item[V]{value: value, expiresAt: mc.expiry(ttl)}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache[V]) SetNX(_ context.Context, key string, value V, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if itm, ok := mc.items[key]; ok && !itm.expired(mc.now()) {
		return false, nil
	}
	mc.items[key] = item[V]{value: value, expiresAt: mc.expiry(ttl)}
	return true, nil
}

func (mc *MemoryCache[V]) Delete(_ context.Context, key string) error {
	mc.mu.Lock()
	delete(mc.items, key)
	mc.mu.Unlock()
	return nil
}

// Len reports the number of live entries.
func (mc *MemoryCache[V]) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	n := 0
	for _, itm := range mc.items {
		if !itm.expired(now) {
			n++
		}
	}
	return n
}

func (mc *MemoryCache[V]) sweep() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	for k, itm := range mc.items {
		if itm.expired(now) {
			delete(mc.items, k)
		}
	}
}

func (mc *MemoryCache[V]) startJanitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mc.sweep()
		case <-mc.quit:
			return
		}
	}
}
