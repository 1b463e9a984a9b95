package sync

import "sync"

// ShardedMap partitions a keyed map over independently locked shards. Callers
// on different keys only contend when their keys hash to the same shard.
type ShardedMap[V any] struct {
	shards []mapShard[V]
}

type mapShard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

// NewShardedMap creates a ShardedMap with n shards (64 when n <= 0).
func NewShardedMap[V any](n int) *ShardedMap[V] {
	if n <= 0 {
		n = defaultShards
	}
	sm := &ShardedMap[V]{shards: make([]mapShard[V], n)}
	for i := range sm.shards {
		sm.shards[i].m = make(map[string]V)
	}
	return sm
}

// With runs fn on the shard owning key while holding its write lock. fn may
// read and write any entry of that shard, but should only touch key.
func (sm *ShardedMap[V]) With(key string, fn func(m map[string]V) error) error {
	sh := &sm.shards[shardIndex(key, len(sm.shards))]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return fn(sh.m)
}

// Get returns the entry for key under the shard's read lock.
func (sm *ShardedMap[V]) Get(key string) (V, bool) {
	sh := &sm.shards[shardIndex(key, len(sm.shards))]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.m[key]
	return v, ok
}

// Range calls fn for every entry, one shard read lock at a time. It stops
// when fn returns false.
func (sm *ShardedMap[V]) Range(fn func(key string, v V) bool) {
	for i := range sm.shards {
		sh := &sm.shards[i]
		sh.mu.RLock()
		for k, v := range sh.m {
			if !fn(k, v) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// DeleteFunc removes the entries for which drop returns true, locking one
// shard at a time, and reports how many were removed.
func (sm *ShardedMap[V]) DeleteFunc(drop func(key string, v V) bool) int {
	deleted := 0
	for i := range sm.shards {
		sh := &sm.shards[i]
		sh.mu.Lock()
		for k, v := range sh.m {
			if drop(k, v) {
				delete(sh.m, k)
				deleted++
			}
		}
		sh.mu.Unlock()
	}
	return deleted
}
