// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reduce

import (
	"github.com/gomlx/warpreduce/pkg/core/simt"
)

// Staging is the block-scoped buffer a BlockReduce uses to exchange per-group values: one slot per
// (component, group), laid out as [width][simt.GroupSize] float32, followed by one [width] broadcast
// slot used by BlockAllReduce.
//
// Slot (c, g) is written only by lane 0 of group g, and read only by lanes of the first group after the
// block barrier.
type Staging[V Accumulator] struct {
	slots []float32
}

// NewStaging returns the staging buffer of the call site named site, carved from the block's shared memory:
// all groups of the block calling it with the same site get the same buffer.
//
// Each call site of BlockReduce or BlockAllReduce should use its own site. Reusing a site for a later
// reduction of the same kernel is only safe after a g.Sync() separating the two, since a fast group could
// otherwise overwrite its slot before the first group read it.
func NewStaging[V Accumulator](g *simt.Group, site string) *Staging[V] {
	width := WidthOf[V]()
	return &Staging[V]{slots: g.Shared().Float32s(site, width*(simt.GroupSize+1))}
}

// Slot returns the staged value of component c of group groupID.
func (s *Staging[V]) Slot(c, groupID int) float32 {
	return s.slots[c*simt.GroupSize+groupID]
}

// broadcast returns the [width] broadcast slot.
func (s *Staging[V]) broadcast() []float32 {
	return s.slots[WidthOf[V]()*simt.GroupSize:]
}
