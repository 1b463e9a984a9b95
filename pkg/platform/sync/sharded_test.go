package sync

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_SerializesSameKey(t *testing.T) {
	m := NewShardedMutex(8)
	counter := 0

	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.With(Key("tenant-a", "task-1"), func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestShardedMutex_WithReturnsCallbackError(t *testing.T) {
	m := NewShardedMutex(0)
	want := errors.New("terminal")

	err := m.With("k", func() error { return want })
	assert.ErrorIs(t, err, want)

	// lock must have been released
	m.Lock("k")
	m.Unlock("k")
}

func TestShardedMutex_ConcurrentReaders(t *testing.T) {
	m := NewShardedMutex(4)
	m.RLock("k")
	done := make(chan struct{})
	go func() {
		_ = m.WithRead("k", func() error { return nil })
		close(done)
	}()
	<-done
	m.RUnlock("k")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "", Key())
	assert.Equal(t, "a", Key("a"))
	assert.Equal(t, "a/b/c", Key("a", "b", "c"))
}
