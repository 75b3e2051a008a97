// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simt

// Group is the handle a Kernel gets for the group (warp) it executes: its position in the block and grid,
// the block barrier and the block's shared memory.
type Group struct {
	block *blockState
	id    int
}

// ID returns the index of the group within its block (the "warp id").
func (g *Group) ID() int {
	return g.id
}

// IsFirst returns whether this is the first group of the block, the one that holds block reductions.
func (g *Group) IsFirst() bool {
	return g.id == 0
}

// NumGroups returns the number of groups in the block.
func (g *Group) NumGroups() int {
	return g.block.cfg.NumGroups()
}

// BlockIdx returns the index of the block within the grid.
func (g *Group) BlockIdx() int {
	return g.block.idx
}

// BlockDim returns the number of lanes per block.
func (g *Group) BlockDim() int {
	return g.block.cfg.BlockDim
}

// GridDim returns the number of blocks in the grid.
func (g *Group) GridDim() int {
	return g.block.cfg.GridDim
}

// LaneIndex returns the block-global index of the given lane of this group ("threadIdx.x").
func (g *Group) LaneIndex(lane int) int {
	return g.id*GroupSize + lane
}

// GlobalIndex returns the grid-global index of the given lane of this group.
func (g *Group) GlobalIndex(lane int) int {
	return g.block.idx*g.block.cfg.BlockDim + g.LaneIndex(lane)
}

// Sync is the block barrier: it returns only once every group of the block called it. Writes to shared memory
// made before Sync are visible to every group after it.
//
// Every group must reach every Sync of the kernel: skipping one is a contract violation. If a sibling group
// fails, Sync panics with an error wrapping xsync.ErrBarrierAborted, failing the block.
func (g *Group) Sync() {
	if err := g.block.barrier.Wait(); err != nil {
		panic(err)
	}
}

// Shared returns the block-scoped shared memory arena.
func (g *Group) Shared() *Arena {
	return g.block.arena
}
