package actions

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// FetchCache deduplicates concurrent fetch_url/download requests for the
// same URL: a second caller for a key already in flight attaches to the
// first call's result instead of issuing a second outbound request.
// Selected by the cache.backend config setting: LRUFetchCache for
// "memory", RedisFetchCache for "redis".
type FetchCache interface {
	GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error)
}

type fetchCall struct {
	wg  sync.WaitGroup
	val []byte
	err error
}

// LRUFetchCache is the "lite" profile backend: an in-process LRU of
// completed fetch results plus in-process dedup of in-flight fetches.
type LRUFetchCache struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, []byte]
	inflight map[string]*fetchCall
	ttl      time.Duration
}

// NewLRUFetchCache builds an LRUFetchCache holding up to size completed
// results, each evicted after ttl (0 disables expiry, relying only on LRU
// eviction).
func NewLRUFetchCache(size int, ttl time.Duration) (*LRUFetchCache, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &LRUFetchCache{
		cache:    cache,
		inflight: make(map[string]*fetchCall),
		ttl:      ttl,
	}, nil
}

func (c *LRUFetchCache) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		call.wg.Wait()
		return call.val, call.err
	}
	call := &fetchCall{}
	call.wg.Add(1)
	c.inflight[key] = call
	c.mu.Unlock()

	call.val, call.err = fetch(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	call.wg.Done()

	if call.err == nil {
		c.cache.Add(key, call.val)
		if c.ttl > 0 {
			ttlKey := key
			time.AfterFunc(c.ttl, func() { c.cache.Remove(ttlKey) })
		}
	}
	return call.val, call.err
}

// RedisFetchCache is the "standard" profile backend: completed results are
// stored in Redis with a TTL so that multiple controller processes sharing
// one Redis instance dedup fetches across process boundaries; in-flight
// dedup within this process still uses an in-memory map.
type RedisFetchCache struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.Mutex
	inflight map[string]*fetchCall
}

// NewRedisFetchCache builds a RedisFetchCache around an existing client.
func NewRedisFetchCache(client *redis.Client, ttl time.Duration) *RedisFetchCache {
	return &RedisFetchCache{
		client:   client,
		ttl:      ttl,
		inflight: make(map[string]*fetchCall),
	}
}

func (c *RedisFetchCache) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if v, err := c.client.Get(ctx, key).Bytes(); err == nil {
		return v, nil
	}

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		call.wg.Wait()
		return call.val, call.err
	}
	call := &fetchCall{}
	call.wg.Add(1)
	c.inflight[key] = call
	c.mu.Unlock()

	call.val, call.err = fetch(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	call.wg.Done()

	if call.err == nil {
		// Caching is an optimization; a Redis write failure must not fail the
		// fetch that already succeeded.
		c.client.Set(ctx, key, call.val, c.ttl)
	}
	return call.val, call.err
}
