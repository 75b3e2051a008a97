// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package simt emulates, on the CPU, the SIMT execution model GPU reduction kernels are written against:
// lanes grouped in lockstep groups of 32 ("warps"), groups cooperating within a block through a
// block-scoped shared memory arena and a block-wide barrier, and blocks forming a grid.
//
// Lockstep is modelled structurally: a Kernel is a group program, called once per group, and it executes
// all 32 lanes of the group over a register file (one slot per lane, e.g. [GroupSize]float32). Register
// exchange between lanes of a group (see ShuffleXor) therefore needs no synchronization at all, while
// groups of a block run concurrently in their own goroutines and only meet at Group.Sync.
//
// Example, a block-level sum where each lane holds its block-global index:
//
//	device := simt.MustNew()
//	err := device.Launch(simt.LaunchConfig{GridDim: 1, BlockDim: 64}, func(g *simt.Group) {
//		var regs [simt.GroupSize]reduce.Vec1
//		for lane := range regs {
//			regs[lane][0] = float32(g.LaneIndex(lane))
//		}
//		reduce.BlockReduceSum1(g, &regs, reduce.NewStaging[reduce.Vec1](g, "sum"))
//		// regs[*][0] == 2016 in group 0.
//	})
package simt

import (
	"github.com/pkg/errors"
)

const (
	// GroupSize is the number of lanes in a group (a "warp"): they execute in lockstep and
	// exchange registers directly.
	GroupSize = 32

	// MaxBlockDim is the maximum number of lanes in a block. With GroupSize lanes per group, a block
	// holds at most GroupSize groups, so the per-group results of a block fit in one group.
	MaxBlockDim = GroupSize * GroupSize

	// DefaultSharedBytes is the default capacity of the block-scoped shared memory arena.
	DefaultSharedBytes = 48 * 1024
)

// ErrInvalidLaunch is returned (wrapped) by Device.Launch for launch configurations the device cannot run.
var ErrInvalidLaunch = errors.New("invalid launch configuration")

// LaunchConfig defines the shape of a kernel launch.
type LaunchConfig struct {
	// GridDim is the number of blocks in the grid.
	GridDim int

	// BlockDim is the number of lanes per block: it must be a multiple of GroupSize, and at most MaxBlockDim.
	BlockDim int
}

// NumGroups returns the number of groups per block.
func (cfg LaunchConfig) NumGroups() int {
	return cfg.BlockDim / GroupSize
}

// NumLanes returns the total number of lanes of the launch.
func (cfg LaunchConfig) NumLanes() int {
	return cfg.GridDim * cfg.BlockDim
}

// Validate returns an error wrapping ErrInvalidLaunch if the configuration can't be launched.
func (cfg LaunchConfig) Validate() error {
	if cfg.GridDim < 1 {
		return errors.WithMessagef(ErrInvalidLaunch, "GridDim must be >= 1, got %d", cfg.GridDim)
	}
	if cfg.BlockDim < GroupSize || cfg.BlockDim%GroupSize != 0 {
		return errors.WithMessagef(ErrInvalidLaunch, "BlockDim must be a positive multiple of %d, got %d",
			GroupSize, cfg.BlockDim)
	}
	if cfg.BlockDim > MaxBlockDim {
		return errors.WithMessagef(ErrInvalidLaunch, "BlockDim must be <= %d, got %d", MaxBlockDim, cfg.BlockDim)
	}
	return nil
}

// ShuffleXor returns, for every lane, the register value held by lane `lane ^ laneMask`, the equivalent of
// __shfl_xor_sync over the full group.
//
// All lanes read before anyone writes, since the result is a copy: callers combine it with their own
// register file afterward.
func ShuffleXor[V any](regs *[GroupSize]V, laneMask int) (partner [GroupSize]V) {
	for lane := range partner {
		partner[lane] = regs[lane^laneMask]
	}
	return
}
