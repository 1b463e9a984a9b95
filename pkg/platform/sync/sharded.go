package sync

import (
	"hash/fnv"
	"sync"
)

const defaultShards = 64

// ShardedMutex spreads keyed critical sections over a fixed set of RW locks so
// that operations on different tenants or records rarely contend.
type ShardedMutex struct {
	shards []sync.RWMutex
}

// NewShardedMutex creates a ShardedMutex with n shards (64 when n <= 0).
func NewShardedMutex(n int) *ShardedMutex {
	if n <= 0 {
		n = defaultShards
	}
	return &ShardedMutex{shards: make([]sync.RWMutex, n)}
}

// Key joins the parts of a composite key, typically tenant id and record id.
func Key(parts ...string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	n := len(parts) - 1
	for _, p := range parts {
		n += len(p)
	}
	b := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			b = append(b, '/')
		}
		b = append(b, p...)
	}
	return string(b)
}

func (m *ShardedMutex) Lock(key string)    { m.shard(key).Lock() }
func (m *ShardedMutex) Unlock(key string)  { m.shard(key).Unlock() }
func (m *ShardedMutex) RLock(key string)   { m.shard(key).RLock() }
func (m *ShardedMutex) RUnlock(key string) { m.shard(key).RUnlock() }

// With runs fn while holding the write lock for key.
func (m *ShardedMutex) With(key string, fn func() error) error {
	mu := m.shard(key)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// WithRead runs fn while holding the read lock for key.
func (m *ShardedMutex) WithRead(key string, fn func() error) error {
	mu := m.shard(key)
	mu.RLock()
	defer mu.RUnlock()
	return fn()
}

func (m *ShardedMutex) shard(key string) *sync.RWMutex {
	return &m.shards[shardIndex(key, len(m.shards))]
}

func shardIndex(key string, n int) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
