// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simt

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/warpreduce/internal/workerspool"
	"github.com/gomlx/warpreduce/pkg/support/xsync"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"golang.org/x/sys/cpu"
	"k8s.io/klog/v2"
)

// DeviceName is the name accepted as an optional prefix of the configuration, as in "simt:parallelism=4".
const DeviceName = "simt"

// ConfigEnvVar is the environment variable with the default device configuration used by New.
//
// The format is a comma-separated list of "<option>=<value>", optionally prefixed by "simt:". Options:
//
//   - parallelism: maximum number of blocks running in parallel. 0 runs blocks inline, one at a time,
//     -1 is unlimited. Default is runtime.NumCPU().
//   - shared: capacity in bytes of the shared memory arena of each block. Default is DefaultSharedBytes.
//
// Example: WARPREDUCE_DEVICE="parallelism=2,shared=16384"
const ConfigEnvVar = "WARPREDUCE_DEVICE"

// DefaultConfig is used by New if ConfigEnvVar is not set.
var DefaultConfig string

// ErrDeviceFinalized is returned by Launch on a device after Finalize was called.
var ErrDeviceFinalized = errors.New("device finalized")

// Kernel is a group program: it is called once for every group of every block of a launch, and it executes
// the 32 lanes of its group in lockstep.
type Kernel func(g *Group)

// Device executes kernel launches on the CPU.
type Device struct {
	config      string
	sharedBytes int

	pool       *workerspool.Pool
	arenaPool  sync.Pool
	inflight   *xsync.DynamicWaitGroup
	isFinalize atomic.Bool
}

// New returns a new Device configured from the environment variable ConfigEnvVar, or from DefaultConfig if it
// is not set. See ConfigEnvVar for the format.
func New() (*Device, error) {
	config, found := os.LookupEnv(ConfigEnvVar)
	if !found {
		config = DefaultConfig
	}
	return NewWithConfig(config)
}

// MustNew is like New, but panics on error.
func MustNew() *Device {
	return must.M1(New())
}

// NewWithConfig returns a new Device for the given configuration. See ConfigEnvVar for the format.
func NewWithConfig(config string) (*Device, error) {
	d := &Device{
		config:      config,
		sharedBytes: DefaultSharedBytes,
		pool:        workerspool.New(),
		inflight:    xsync.NewDynamicWaitGroup(),
	}
	options := config
	if name, rest, found := strings.Cut(config, ":"); found {
		if name != DeviceName {
			return nil, errors.Errorf("unknown device %q in configuration %q, only %q is supported", name, config, DeviceName)
		}
		options = rest
	}
	for _, part := range strings.Split(options, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, errors.Errorf("invalid device option %q in configuration %q, expected <option>=<value>", part, config)
		}
		intValue, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid value for device option %q in configuration %q", key, config)
		}
		switch strings.TrimSpace(key) {
		case "parallelism":
			if intValue < -1 {
				return nil, errors.Errorf("device option parallelism must be >= -1, got %d", intValue)
			}
			d.pool.SetMaxParallelism(intValue)
		case "shared":
			if intValue < 4 {
				return nil, errors.Errorf("device option shared must be >= 4 bytes, got %d", intValue)
			}
			d.sharedBytes = intValue
		default:
			return nil, errors.Errorf("unknown device option %q in configuration %q", key, config)
		}
	}
	d.arenaPool.New = func() any { return newArena(d.sharedBytes) }
	klog.V(1).Infof("simt device created: %s", d.Description())
	return d, nil
}

// Name returns the short name of the device.
func (d *Device) Name() string {
	return "SIMT emulator (" + DeviceName + ")"
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	return DeviceName
}

// Description is a longer description of the Device, including the host it runs on.
func (d *Device) Description() string {
	parallelism := strconv.Itoa(d.pool.MaxParallelism())
	if !d.pool.IsEnabled() {
		parallelism += " (inline)"
	}
	return fmt.Sprintf("%s on %s/%s [%s]: parallelism=%s, shared=%s per block",
		d.Name(), runtime.GOOS, runtime.GOARCH, strings.Join(hostFeatures(), ","),
		parallelism, humanize.IBytes(uint64(d.sharedBytes)))
}

// hostFeatures lists the SIMD features of the host CPU the emulated lanes run on.
func hostFeatures() (features []string) {
	switch runtime.GOARCH {
	case "amd64", "386":
		for _, f := range []struct {
			name string
			has  bool
		}{{"sse4.1", cpu.X86.HasSSE41}, {"avx2", cpu.X86.HasAVX2}, {"fma", cpu.X86.HasFMA}, {"avx512f", cpu.X86.HasAVX512F}} {
			if f.has {
				features = append(features, f.name)
			}
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "neon")
		}
		if cpu.ARM64.HasSVE {
			features = append(features, "sve")
		}
	}
	if len(features) == 0 {
		features = []string{"generic"}
	}
	return
}

// Parallelism returns the maximum number of blocks executed in parallel (0 for inline, -1 for unlimited).
func (d *Device) Parallelism() int {
	return d.pool.MaxParallelism()
}

// SharedBytes returns the capacity of each block's shared memory arena.
func (d *Device) SharedBytes() int {
	return d.sharedBytes
}

// Finalize waits for in-flight launches to finish and makes the device invalid for new launches.
func (d *Device) Finalize() {
	d.isFinalize.Store(true)
	d.inflight.Wait()
}

// IsFinalized returns whether Finalize was called.
func (d *Device) IsFinalized() bool {
	return d.isFinalize.Load()
}

// Launch executes the kernel for every group of every block of the configured grid, and waits for it to finish.
//
// Blocks are scheduled on the device's worker pool, and all groups of a block run concurrently so they can meet
// at the block barrier (Group.Sync). If a group panics, its block is aborted (sibling groups waiting at the barrier
// are released) and Launch returns the error of the first failing group. Other blocks run to completion.
func (d *Device) Launch(cfg LaunchConfig, kernel Kernel) error {
	// Counted as in-flight before checking for Finalize, so Finalize can't return while the launch starts.
	d.inflight.Add(1)
	defer d.inflight.Done()
	if d.isFinalize.Load() {
		return errors.WithStack(ErrDeviceFinalized)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	klog.V(1).Infof("launch: grid=%d blocks x %d lanes (%d groups per block)", cfg.GridDim, cfg.BlockDim, cfg.NumGroups())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	wg.Add(cfg.GridDim)
	for blockIdx := range cfg.GridDim {
		d.pool.WaitToStart(func() {
			defer wg.Done()
			if err := d.runBlock(cfg, blockIdx, kernel); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return firstErr
}

// blockState is shared by all groups of one block execution.
type blockState struct {
	cfg     LaunchConfig
	idx     int
	barrier *xsync.Barrier
	arena   *Arena
}

// runBlock executes all groups of one block concurrently, and returns the root cause error if any group failed.
func (d *Device) runBlock(cfg LaunchConfig, blockIdx int, kernel Kernel) error {
	arena := d.arenaPool.Get().(*Arena)
	defer func() {
		arena.reset()
		d.arenaPool.Put(arena)
	}()
	numGroups := cfg.NumGroups()
	block := &blockState{
		cfg:     cfg,
		idx:     blockIdx,
		barrier: xsync.NewBarrier(numGroups),
		arena:   arena,
	}
	if klog.V(2).Enabled() {
		klog.Infof("block %d: starting %d groups, %d blocks running in the pool", blockIdx, numGroups, d.pool.NumRunning())
	}

	groupErrs := make([]error, numGroups)
	var wg sync.WaitGroup
	wg.Add(numGroups)
	for groupID := range numGroups {
		go func() {
			defer wg.Done()
			g := &Group{block: block, id: groupID}
			exception := exceptions.Try(func() { kernel(g) })
			if exception == nil {
				return
			}
			err, ok := exception.(error)
			if !ok {
				err = errors.Errorf("%v", exception)
			}
			groupErrs[groupID] = err
			block.barrier.Abort(errors.Errorf("group %d failed", groupID))
		}()
	}
	wg.Wait()
	if klog.V(2).Enabled() {
		klog.Infof("block %d: finished, shared memory used %s of %s", blockIdx,
			humanize.IBytes(uint64(arena.Used())), humanize.IBytes(uint64(arena.Capacity())))
	}

	// Prefer the root cause over the errors of groups released by the aborted barrier.
	var rootErr error
	rootGroup := -1
	for groupID, err := range groupErrs {
		if err == nil {
			continue
		}
		if rootErr == nil || (errors.Is(rootErr, xsync.ErrBarrierAborted) && !errors.Is(err, xsync.ErrBarrierAborted)) {
			rootErr, rootGroup = err, groupID
		}
	}
	if rootErr != nil {
		klog.V(1).Infof("block %d, group %d failed: %v", blockIdx, rootGroup, rootErr)
		return errors.WithMessagef(rootErr, "kernel failed in block %d, group %d", blockIdx, rootGroup)
	}
	return nil
}
