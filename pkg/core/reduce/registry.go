// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reduce

import (
	"reflect"

	"github.com/gomlx/warpreduce/pkg/core/simt"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrNotSpecialized is returned (wrapped) when no specialized variant exists for a (kind, width).
var ErrNotSpecialized = errors.New("no specialized reduction")

// GroupReduceFn is the signature of GroupReduce for accumulator vectors V.
type GroupReduceFn[V Accumulator] func(regs *[simt.GroupSize]V)

// BlockReduceFn is the signature of BlockReduce and BlockAllReduce for accumulator vectors V.
type BlockReduceFn[V Accumulator] func(g *simt.Group, regs *[simt.GroupSize]V, staging *Staging[V])

type registryKey struct {
	kind  Kind
	width int
}

// Registries of the specialized variants, populated by the init() of the generated code, so read-only
// afterward.
var (
	groupReduceRegistry    = make(map[registryKey]any)
	blockReduceRegistry    = make(map[registryKey]any)
	blockAllReduceRegistry = make(map[registryKey]any)
)

func registerGroupReduce[V Accumulator](kind Kind, fn GroupReduceFn[V]) {
	groupReduceRegistry[registryKey{kind, WidthOf[V]()}] = fn
}

func registerBlockReduce[V Accumulator](kind Kind, fn BlockReduceFn[V]) {
	blockReduceRegistry[registryKey{kind, WidthOf[V]()}] = fn
}

func registerBlockAllReduce[V Accumulator](kind Kind, fn BlockReduceFn[V]) {
	blockAllReduceRegistry[registryKey{kind, WidthOf[V]()}] = fn
}

func lookup[Fn any](registry map[registryKey]any, name string, kind Kind, width int) (Fn, error) {
	entry, found := registry[registryKey{kind, width}]
	if !found {
		var zero Fn
		return zero, errors.WithMessagef(ErrNotSpecialized, "%s for kind %s, width %d", name, kind, width)
	}
	fn, ok := entry.(Fn)
	if !ok {
		// Only possible if a user defined type shares the width of a Vec type.
		var zero Fn
		return zero, errors.WithMessagef(ErrNotSpecialized, "%s for kind %s: registered for %s, requested %s",
			name, kind, reflect.TypeOf(entry), reflect.TypeOf(zero))
	}
	klog.V(2).Infof("using specialized %s for kind %s, width %d", name, kind, width)
	return fn, nil
}

// SpecializedGroupReduce returns the specialized GroupReduce for the kind and the accumulator V.
func SpecializedGroupReduce[V Accumulator](kind Kind) (GroupReduceFn[V], error) {
	return lookup[GroupReduceFn[V]](groupReduceRegistry, "GroupReduce", kind, WidthOf[V]())
}

// SpecializedBlockReduce returns the specialized BlockReduce for the kind and the accumulator V.
func SpecializedBlockReduce[V Accumulator](kind Kind) (BlockReduceFn[V], error) {
	return lookup[BlockReduceFn[V]](blockReduceRegistry, "BlockReduce", kind, WidthOf[V]())
}

// SpecializedBlockAllReduce returns the specialized BlockAllReduce for the kind and the accumulator V.
func SpecializedBlockAllReduce[V Accumulator](kind Kind) (BlockReduceFn[V], error) {
	return lookup[BlockReduceFn[V]](blockAllReduceRegistry, "BlockAllReduce", kind, WidthOf[V]())
}

func invalidKindError(kind Kind) error {
	return errors.Errorf("invalid reduction kind %s, valid kinds are %v", kind, KindStrings())
}
