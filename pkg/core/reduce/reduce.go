// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package reduce implements the two-tier reduction of running maxima and running sums used by
// normalization kernels (softmax, layer norm, attention scores): GroupReduce across the 32 lanes of a
// group by register exchange only, and BlockReduce across all groups of a block through a shared
// staging buffer and the block barrier.
//
// Every lane holds an accumulator vector of width 1, 2 or 4 (Vec1, Vec2, Vec4), and the kind of reduction
// is selected by an operation type (SumOp, MaxOp). Both are type parameters, so unsupported combinations
// don't compile.
//
// Two forms of each operation exist: the generic one (GroupReduce[MaxOp](&regs)), and the specialized
// ones generated by internal/cmd/reduce_generator (GroupReduceMax1(&regs)), with the rounds and the
// vector components unrolled. They produce bitwise identical results.
package reduce

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/warpreduce/pkg/core/simt"
)

//go:generate go tool enumer -type=Kind -text -output=gen_kind_enumer.go reduce.go
//go:generate go run ../../../internal/cmd/reduce_generator

// Kind of reduction.
type Kind int

const (
	// Max is the running maximum, with identity NegSentinel.
	Max Kind = iota

	// Sum is the running sum, with identity 0.
	Sum
)

// NegSentinel is the identity of Max: a large negative finite value, not -Inf, so that arithmetic
// on reduced values of empty inputs (e.g. exp(x - max)) stays finite.
const NegSentinel float32 = -1e8

// Identity returns the identity element of the reduction kind.
func Identity(kind Kind) float32 {
	switch kind {
	case Max:
		return NegSentinel
	case Sum:
		return 0
	}
	exceptions.Panicf("reduce.Identity: invalid reduction kind %s", kind)
	return 0
}

// Accumulator is the constraint for the per-lane accumulator vectors.
type Accumulator interface {
	~[1]float32 | ~[2]float32 | ~[4]float32
}

type (
	// Vec1 is a width 1 accumulator vector.
	Vec1 [1]float32

	// Vec2 is a width 2 accumulator vector: e.g. sum and sum of squares in layer norm.
	Vec2 [2]float32

	// Vec4 is a width 4 accumulator vector: e.g. four rows reduced at once.
	Vec4 [4]float32
)

// WidthOf returns the number of components of the accumulator vector V.
func WidthOf[V Accumulator]() int {
	var v V
	return len(v)
}

// Op is the constraint for the reduction operation types, which carry no data: the combine and the
// identity are resolved at compile time.
type Op interface {
	SumOp | MaxOp

	// Kind of the reduction.
	Kind() Kind

	// Identity returns the value x such that Combine(x, y) == y for every y.
	Identity() float32

	// Combine returns `a op b`, where a is the lane's own value, and b its partner's.
	Combine(a, b float32) float32
}

// SumOp is the Op of Sum reductions: IEEE float32 addition, no overflow guard.
type SumOp struct{}

// Kind implements Op.
func (SumOp) Kind() Kind { return Sum }

// Identity implements Op.
func (SumOp) Identity() float32 { return 0 }

// Combine implements Op.
func (SumOp) Combine(a, b float32) float32 { return a + b }

// MaxOp is the Op of Max reductions. NaN propagates.
type MaxOp struct{}

// Kind implements Op.
func (MaxOp) Kind() Kind { return Max }

// Identity implements Op.
func (MaxOp) Identity() float32 { return NegSentinel }

// Combine implements Op.
func (MaxOp) Combine(a, b float32) float32 { return max(a, b) }

// GroupReduce reduces the accumulator vectors of the 32 lanes of a group, in-place: on return every lane
// holds the same (bitwise identical) reduced vector.
//
// It is an XOR butterfly over five rounds, with partner distances 16, 8, 4, 2 and 1: in every round all
// lanes read their partner's vector before any lane writes.
func GroupReduce[O Op, V Accumulator](regs *[simt.GroupSize]V) {
	var op O
	for laneMask := simt.GroupSize / 2; laneMask > 0; laneMask >>= 1 {
		partner := simt.ShuffleXor(regs, laneMask)
		for lane := range regs {
			for c := range len(regs[lane]) {
				regs[lane][c] = op.Combine(regs[lane][c], partner[lane][c])
			}
		}
	}
}

// BlockReduce reduces the accumulator vectors of all lanes of the block. It must be called by every group
// of the block, with the same staging buffer (see NewStaging).
//
// On return the lanes of the first group of the block (g.IsFirst()) hold the reduced vector. Lanes of the
// other groups hold the identity of the reduction, and must not be used: see BlockAllReduce if the value
// is needed block-wide.
func BlockReduce[O Op, V Accumulator](g *simt.Group, regs *[simt.GroupSize]V, staging *Staging[V]) {
	var op O
	GroupReduce[O](regs)

	// Lane 0 stages the group's value, one write per component.
	groupID := g.ID()
	for c := range len(regs[0]) {
		staging.slots[c*simt.GroupSize+groupID] = regs[0][c]
	}
	g.Sync()

	numGroups := g.NumGroups()
	identity := op.Identity()
	for lane := range regs {
		loadStaged := g.LaneIndex(lane) < numGroups
		for c := range len(regs[lane]) {
			if loadStaged {
				regs[lane][c] = staging.slots[c*simt.GroupSize+lane]
			} else {
				regs[lane][c] = identity
			}
		}
	}
	GroupReduce[O](regs)
}

// BlockAllReduce is like BlockReduce, but the reduced vector is broadcast to every lane of every group of
// the block. It costs one extra block barrier.
func BlockAllReduce[O Op, V Accumulator](g *simt.Group, regs *[simt.GroupSize]V, staging *Staging[V]) {
	BlockReduce[O](g, regs, staging)
	broadcast := staging.broadcast()
	if g.IsFirst() {
		for c := range len(regs[0]) {
			broadcast[c] = regs[0][c]
		}
	}
	g.Sync()
	for lane := range regs {
		for c := range len(regs[lane]) {
			regs[lane][c] = broadcast[c]
		}
	}
}

// GenericGroupReduce returns the generic GroupReduce instantiated for the kind.
func GenericGroupReduce[V Accumulator](kind Kind) (GroupReduceFn[V], error) {
	switch kind {
	case Max:
		return GroupReduce[MaxOp, V], nil
	case Sum:
		return GroupReduce[SumOp, V], nil
	}
	return nil, invalidKindError(kind)
}

// GenericBlockReduce returns the generic BlockReduce instantiated for the kind.
func GenericBlockReduce[V Accumulator](kind Kind) (BlockReduceFn[V], error) {
	switch kind {
	case Max:
		return BlockReduce[MaxOp, V], nil
	case Sum:
		return BlockReduce[SumOp, V], nil
	}
	return nil, invalidKindError(kind)
}

// GenericBlockAllReduce returns the generic BlockAllReduce instantiated for the kind.
func GenericBlockAllReduce[V Accumulator](kind Kind) (BlockReduceFn[V], error) {
	switch kind {
	case Max:
		return BlockAllReduce[MaxOp, V], nil
	case Sum:
		return BlockAllReduce[SumOp, V], nil
	}
	return nil, invalidKindError(kind)
}
