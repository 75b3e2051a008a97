// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"math"

	"github.com/gomlx/warpreduce/pkg/core/dtypes"
	"github.com/gomlx/warpreduce/pkg/core/reduce"
	"github.com/gomlx/warpreduce/pkg/core/simt"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SoftmaxBuilder configures a row-wise softmax. Create it with Softmax, and run it with Done.
type SoftmaxBuilder[T dtypes.Float] struct {
	device      *simt.Device
	rows        [][]T
	temperature float32
	blockDim    int
}

// Softmax creates the softmax of each of the rows: y_i = exp(x_i/temperature - max) / sum_j exp(x_j/temperature - max),
// where max is the maximum of x/temperature over the row.
func Softmax[T dtypes.Float](device *simt.Device, rows [][]T) *SoftmaxBuilder[T] {
	return &SoftmaxBuilder[T]{
		device:      device,
		rows:        rows,
		temperature: 1,
		blockDim:    DefaultBlockDim,
	}
}

// Temperature divides the inputs before the softmax. It must be > 0. Default is 1.
func (b *SoftmaxBuilder[T]) Temperature(temperature float32) *SoftmaxBuilder[T] {
	b.temperature = temperature
	return b
}

// BlockDim sets the number of lanes per block. It must be a multiple of simt.GroupSize. Default is DefaultBlockDim.
func (b *SoftmaxBuilder[T]) BlockDim(blockDim int) *SoftmaxBuilder[T] {
	b.blockDim = blockDim
	return b
}

// Done runs the softmax, and returns the outputs with the same shape as the rows.
func (b *SoftmaxBuilder[T]) Done() ([][]T, error) {
	if !(b.temperature > 0) {
		return nil, errors.Errorf("Softmax: temperature must be > 0, got %g", b.temperature)
	}
	out := make([][]T, len(b.rows))
	for ii, row := range b.rows {
		out[ii] = make([]T, len(row))
	}
	if len(b.rows) == 0 {
		return out, nil
	}
	cfg, err := launchConfig(len(b.rows), b.blockDim)
	if err != nil {
		return nil, errors.WithMessage(err, "Softmax")
	}
	klog.V(2).Infof("Softmax: %d rows of %s, temperature=%g, %d lanes per block",
		len(b.rows), dtypes.FromGenericsType[T](), b.temperature, cfg.BlockDim)

	toFloat32, fromFloat32 := dtypes.Converters[T]()
	invTemperature := 1 / b.temperature
	scaled := func(x T) float32 { return toFloat32(x) * invTemperature }
	err = b.device.Launch(cfg, func(g *simt.Group) {
		row, y := b.rows[g.BlockIdx()], out[g.BlockIdx()]
		blockDim := g.BlockDim()

		var regs [simt.GroupSize]reduce.Vec1
		for lane := range regs {
			acc := reduce.NegSentinel
			for col := g.LaneIndex(lane); col < len(row); col += blockDim {
				acc = max(acc, scaled(row[col]))
			}
			regs[lane][0] = acc
		}
		reduce.BlockAllReduceMax1(g, &regs, reduce.NewStaging[reduce.Vec1](g, "max"))
		var rowMax [simt.GroupSize]float32
		for lane := range regs {
			rowMax[lane] = regs[lane][0]
			var acc float32
			for col := g.LaneIndex(lane); col < len(row); col += blockDim {
				acc += float32(math.Exp(float64(scaled(row[col]) - rowMax[lane])))
			}
			regs[lane][0] = acc
		}
		reduce.BlockAllReduceSum1(g, &regs, reduce.NewStaging[reduce.Vec1](g, "sum"))
		for lane := range regs {
			invSum := 1 / regs[lane][0]
			for col := g.LaneIndex(lane); col < len(row); col += blockDim {
				y[col] = fromFloat32(float32(math.Exp(float64(scaled(row[col])-rowMax[lane]))) * invSum)
			}
		}
	})
	if err != nil {
		return nil, errors.WithMessage(err, "Softmax")
	}
	return out, nil
}
