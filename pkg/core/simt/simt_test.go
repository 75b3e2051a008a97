// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simt

import (
	"flag"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gomlx/warpreduce/pkg/support/xsync"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
	_ = flag.Set("v", "1")
}

func TestLaunchConfigValidate(t *testing.T) {
	for _, cfg := range []LaunchConfig{{1, 32}, {3, 64}, {1, 96}, {2, MaxBlockDim}} {
		require.NoError(t, cfg.Validate(), "cfg=%+v", cfg)
	}
	for _, cfg := range []LaunchConfig{{0, 32}, {1, 0}, {1, 16}, {1, 48}, {1, MaxBlockDim + GroupSize}, {-1, 32}} {
		err := cfg.Validate()
		require.Error(t, err, "cfg=%+v", cfg)
		assert.ErrorIs(t, err, ErrInvalidLaunch)
	}
	cfg := LaunchConfig{GridDim: 3, BlockDim: 96}
	assert.Equal(t, 3, cfg.NumGroups())
	assert.Equal(t, 288, cfg.NumLanes())
}

func TestShuffleXor(t *testing.T) {
	var regs [GroupSize]int
	for lane := range regs {
		regs[lane] = lane * 10
	}
	for _, mask := range []int{16, 8, 4, 2, 1} {
		partner := ShuffleXor(&regs, mask)
		for lane := range partner {
			assert.Equal(t, (lane^mask)*10, partner[lane])
		}
	}
	// Source registers are untouched.
	assert.Equal(t, 310, regs[31])
}

func TestNewWithConfig(t *testing.T) {
	d, err := NewWithConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSharedBytes, d.SharedBytes())

	d, err = NewWithConfig("simt:parallelism=2,shared=1024")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Parallelism())
	assert.Equal(t, 1024, d.SharedBytes())
	assert.Contains(t, d.Description(), "parallelism=2")

	d, err = NewWithConfig(" parallelism = -1 ")
	require.NoError(t, err)
	assert.Equal(t, -1, d.Parallelism())

	for _, config := range []string{"cuda:parallelism=1", "parallelism", "parallelism=x", "shared=2", "parallelism=-2", "foo=1"} {
		_, err = NewWithConfig(config)
		assert.Error(t, err, "config=%q", config)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(ConfigEnvVar, "parallelism=0")
	d := MustNew()
	assert.Equal(t, 0, d.Parallelism())
	assert.Contains(t, d.Description(), "parallelism=0 (inline)")
}

func TestLaunch(t *testing.T) {
	for _, config := range []string{"parallelism=0", "parallelism=1", "parallelism=4", "parallelism=-1"} {
		t.Run(config, func(t *testing.T) {
			d, err := NewWithConfig(config)
			require.NoError(t, err)
			cfg := LaunchConfig{GridDim: 5, BlockDim: 128}
			var mu sync.Mutex
			seen := make(map[int]int)
			err = d.Launch(cfg, func(g *Group) {
				assert.Equal(t, 4, g.NumGroups())
				assert.Equal(t, 128, g.BlockDim())
				assert.Equal(t, 5, g.GridDim())
				assert.Equal(t, g.ID() == 0, g.IsFirst())
				mu.Lock()
				defer mu.Unlock()
				for lane := range GroupSize {
					seen[g.GlobalIndex(lane)]++
					assert.Equal(t, g.ID()*GroupSize+lane, g.LaneIndex(lane))
				}
			})
			require.NoError(t, err)
			require.Len(t, seen, cfg.NumLanes())
			for idx := range cfg.NumLanes() {
				assert.Equal(t, 1, seen[idx], "lane %d", idx)
			}
			d.Finalize()
			assert.True(t, d.IsFinalized())
			assert.ErrorIs(t, d.Launch(cfg, func(*Group) {}), ErrDeviceFinalized)
		})
	}
}

func TestFinalizeWaitsForLaunch(t *testing.T) {
	d := must.M1(NewWithConfig("parallelism=2"))
	started := make(chan struct{})
	release := make(chan struct{})
	launchErr := make(chan error, 1)
	go func() {
		launchErr <- d.Launch(LaunchConfig{GridDim: 1, BlockDim: GroupSize}, func(*Group) {
			close(started)
			<-release
		})
	}()
	<-started
	assert.Equal(t, 1, d.inflight.Count())

	var finalized atomic.Bool
	finalizeDone := make(chan struct{})
	go func() {
		d.Finalize()
		finalized.Store(true)
		close(finalizeDone)
	}()
	// Launches after Finalize started are rejected, and not left counted as in-flight.
	for !d.IsFinalized() {
		runtime.Gosched()
	}
	err := d.Launch(LaunchConfig{GridDim: 1, BlockDim: GroupSize}, func(*Group) {})
	assert.ErrorIs(t, err, ErrDeviceFinalized)
	assert.False(t, finalized.Load(), "Finalize returned while a launch was running")
	assert.Equal(t, 1, d.inflight.Count())

	close(release)
	require.NoError(t, <-launchErr)
	<-finalizeDone
	assert.True(t, finalized.Load())
	assert.Zero(t, d.inflight.Count())
}

func TestLaunchInvalid(t *testing.T) {
	d := must.M1(NewWithConfig("parallelism=1"))
	var called atomic.Int32
	err := d.Launch(LaunchConfig{GridDim: 1, BlockDim: 33}, func(*Group) { called.Add(1) })
	assert.ErrorIs(t, err, ErrInvalidLaunch)
	assert.Zero(t, called.Load())
}

func TestSyncAndShared(t *testing.T) {
	d := must.M1(NewWithConfig("parallelism=2"))
	cfg := LaunchConfig{GridDim: 4, BlockDim: 256}
	results := make([]float32, cfg.GridDim)
	err := d.Launch(cfg, func(g *Group) {
		shared := g.Shared().Float32s("partials", g.NumGroups())
		// Freshly allocated arenas are zeroed, even when reused across blocks.
		assert.Zero(t, shared[g.ID()])
		g.Sync()
		shared[g.ID()] = float32(g.ID() + 1)
		g.Sync()
		if g.IsFirst() {
			var total float32
			for _, v := range shared {
				total += v
			}
			results[g.BlockIdx()] = total
		}
		g.Sync()
	})
	require.NoError(t, err)
	for _, v := range results {
		assert.Equal(t, float32(36), v)
	}
}

func TestArena(t *testing.T) {
	a := newArena(64)
	assert.Equal(t, 64, a.Capacity())
	s1 := a.Float32s("a", 4)
	s2 := a.Float32s("a", 4)
	s1[0] = 7
	assert.Equal(t, float32(7), s2[0])
	assert.Equal(t, 16, a.Used())
	_ = a.Float32s("b", 12)
	assert.Equal(t, 64, a.Used())
	assert.Panics(t, func() { a.Float32s("c", 1) })
	assert.Panics(t, func() { a.Float32s("a", 5) })
	a.reset()
	assert.Zero(t, a.Used())
	assert.Zero(t, a.Float32s("b", 16)[0])
}

func TestLaunchFailure(t *testing.T) {
	d := must.M1(NewWithConfig("parallelism=2"))
	cfg := LaunchConfig{GridDim: 3, BlockDim: 128}
	rootCause := errors.New("lane exploded")
	err := d.Launch(cfg, func(g *Group) {
		if g.BlockIdx() == 1 && g.ID() == 2 {
			panic(rootCause)
		}
		// Other groups of block 1 would wait forever without the barrier abort.
		g.Sync()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, rootCause)
	assert.NotErrorIs(t, err, xsync.ErrBarrierAborted)
	assert.Contains(t, err.Error(), "block 1, group 2")

	err = d.Launch(cfg, func(g *Group) {
		_ = g.Shared().Float32s("too-big", DefaultSharedBytes)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared memory exhausted")

	err = d.Launch(LaunchConfig{GridDim: 1, BlockDim: 32}, func(g *Group) { panic("not an error") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an error")
}
