// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"github.com/gomlx/warpreduce/pkg/core/dtypes"
	"github.com/gomlx/warpreduce/pkg/core/reduce"
	"github.com/gomlx/warpreduce/pkg/core/simt"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// packedRows is the number of rows reduced per block by packed reductions, one per component of reduce.Vec4.
const packedRows = 4

// RowReduceBuilder configures a row-wise reduction. Create it with RowReduce, and run it with Done.
type RowReduceBuilder[T dtypes.Float] struct {
	device   *simt.Device
	kind     reduce.Kind
	rows     [][]T
	blockDim int
	packed   bool
}

// RowReduce creates the reduction of each of the rows, with the given kind.
//
// Rows may have different lengths. The reduction of an empty row is the identity of the kind.
//
// Results saturate to the finite range of T: e.g. for float16 the Max of an empty row is -65504, not -Inf.
func RowReduce[T dtypes.Float](device *simt.Device, kind reduce.Kind, rows [][]T) *RowReduceBuilder[T] {
	return &RowReduceBuilder[T]{
		device:   device,
		kind:     kind,
		rows:     rows,
		blockDim: DefaultBlockDim,
	}
}

// BlockDim sets the number of lanes per block. It must be a multiple of simt.GroupSize. Default is DefaultBlockDim.
func (b *RowReduceBuilder[T]) BlockDim(blockDim int) *RowReduceBuilder[T] {
	b.blockDim = blockDim
	return b
}

// Packed reduces 4 rows per block, one per component of the accumulator vector. The last block is padded
// with the identity if the number of rows is not a multiple of 4. Results are the same as unpacked.
func (b *RowReduceBuilder[T]) Packed() *RowReduceBuilder[T] {
	b.packed = true
	return b
}

// Done runs the reduction and returns one value per row.
func (b *RowReduceBuilder[T]) Done() ([]T, error) {
	out := make([]T, len(b.rows))
	if len(b.rows) == 0 {
		return out, nil
	}
	combine, err := combineFn(b.kind)
	if err != nil {
		return nil, err
	}
	numBlocks := len(b.rows)
	if b.packed {
		numBlocks = (len(b.rows) + packedRows - 1) / packedRows
	}
	cfg, err := launchConfig(numBlocks, b.blockDim)
	if err != nil {
		return nil, errors.WithMessagef(err, "RowReduce(%s)", b.kind)
	}
	klog.V(2).Infof("RowReduce(%s): %d rows of %s, packed=%v, %d blocks of %d lanes",
		b.kind, len(b.rows), dtypes.FromGenericsType[T](), b.packed, cfg.GridDim, cfg.BlockDim)
	if b.packed {
		err = b.runPacked(cfg, combine, out)
	} else {
		err = b.run(cfg, combine, out)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "RowReduce(%s)", b.kind)
	}
	return out, nil
}

func (b *RowReduceBuilder[T]) run(cfg simt.LaunchConfig, combine func(a, b float32) float32, out []T) error {
	blockReduce, err := reduce.SpecializedBlockReduce[reduce.Vec1](b.kind)
	if err != nil {
		return err
	}
	identity := reduce.Identity(b.kind)
	toFloat32, _ := dtypes.Converters[T]()
	fromFloat32 := dtypes.SaturatingFromFloat32[T]()
	return b.device.Launch(cfg, func(g *simt.Group) {
		row := b.rows[g.BlockIdx()]
		var regs [simt.GroupSize]reduce.Vec1
		for lane := range regs {
			regs[lane][0] = partial(row, g.LaneIndex(lane), g.BlockDim(), identity, combine, toFloat32)
		}
		blockReduce(g, &regs, reduce.NewStaging[reduce.Vec1](g, "row"))
		if g.IsFirst() {
			out[g.BlockIdx()] = fromFloat32(regs[0][0])
		}
	})
}

func (b *RowReduceBuilder[T]) runPacked(cfg simt.LaunchConfig, combine func(a, b float32) float32, out []T) error {
	blockReduce, err := reduce.SpecializedBlockReduce[reduce.Vec4](b.kind)
	if err != nil {
		return err
	}
	identity := reduce.Identity(b.kind)
	toFloat32, _ := dtypes.Converters[T]()
	fromFloat32 := dtypes.SaturatingFromFloat32[T]()
	return b.device.Launch(cfg, func(g *simt.Group) {
		firstRow := g.BlockIdx() * packedRows
		var regs [simt.GroupSize]reduce.Vec4
		for lane := range regs {
			for r := range packedRows {
				if firstRow+r < len(b.rows) {
					regs[lane][r] = partial(b.rows[firstRow+r], g.LaneIndex(lane), g.BlockDim(), identity, combine, toFloat32)
				} else {
					regs[lane][r] = identity
				}
			}
		}
		blockReduce(g, &regs, reduce.NewStaging[reduce.Vec4](g, "rows"))
		if g.IsFirst() {
			for r := range packedRows {
				if firstRow+r < len(out) {
					out[firstRow+r] = fromFloat32(regs[0][r])
				}
			}
		}
	})
}

// RowSum returns the sum of each row, with the default configuration.
func RowSum[T dtypes.Float](device *simt.Device, rows [][]T) ([]T, error) {
	return RowReduce(device, reduce.Sum, rows).Done()
}

// RowMax returns the maximum of each row, with the default configuration.
func RowMax[T dtypes.Float](device *simt.Device, rows [][]T) ([]T, error) {
	return RowReduce(device, reduce.Max, rows).Done()
}

// RowSums4 returns the sum of each row, reducing 4 rows per block.
func RowSums4[T dtypes.Float](device *simt.Device, rows [][]T) ([]T, error) {
	return RowReduce(device, reduce.Sum, rows).Packed().Done()
}
