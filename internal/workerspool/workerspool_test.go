package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_LimitsParallelism(t *testing.T) {
	const maxParallelism = 3
	pool := NewWithParallelism(maxParallelism)
	assert.True(t, pool.IsEnabled())
	assert.False(t, pool.IsUnlimited())

	var running, peak atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	const numTasks = 10
	wg.Add(numTasks)
	go func() {
		for range numTasks {
			pool.WaitToStart(func() {
				defer wg.Done()
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				<-release
				running.Add(-1)
			})
		}
	}()
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, int(peak.Load()), maxParallelism)
	assert.Equal(t, int32(0), running.Load())
}

func TestPool_Inline(t *testing.T) {
	pool := NewWithParallelism(0)
	assert.False(t, pool.IsEnabled())
	var count int
	for range 5 {
		pool.WaitToStart(func() { count++ })
	}
	// Inline execution: no synchronization needed.
	assert.Equal(t, 5, count)
	assert.Equal(t, 0, pool.NumRunning())
}

func TestPool_Unlimited(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(-1)
	assert.True(t, pool.IsUnlimited())
	assert.Equal(t, -1, pool.MaxParallelism())

	// All tasks must be running at the same time for this not to deadlock.
	const numTasks = 64
	var wg sync.WaitGroup
	wg.Add(numTasks)
	allStarted := make(chan struct{})
	var started atomic.Int32
	for range numTasks {
		pool.WaitToStart(func() {
			defer wg.Done()
			if started.Add(1) == numTasks {
				close(allStarted)
			}
			<-allStarted
		})
	}
	wg.Wait()
	assert.Equal(t, int32(numTasks), started.Load())
}
