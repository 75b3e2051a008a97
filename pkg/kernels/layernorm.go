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

// DefaultLayerNormEpsilon is the default epsilon added to the variance by LayerNorm.
const DefaultLayerNormEpsilon = 1e-5

// LayerNormBuilder configures a row-wise layer normalization. Create it with LayerNorm, and run it with Done.
type LayerNormBuilder[T dtypes.Float] struct {
	device      *simt.Device
	rows        [][]T
	gamma, beta []T
	epsilon     float32
	blockDim    int
}

// LayerNorm creates the layer normalization of each of the rows:
//
//	y = (x - mean) / sqrt(variance + epsilon) * gamma + beta
//
// where mean and (population) variance are computed over the row. The sum and the sum of squares are
// reduced together, in one width 2 reduction.
//
// All rows must have the same length as gamma and beta.
func LayerNorm[T dtypes.Float](device *simt.Device, rows [][]T, gamma, beta []T) *LayerNormBuilder[T] {
	return &LayerNormBuilder[T]{
		device:   device,
		rows:     rows,
		gamma:    gamma,
		beta:     beta,
		epsilon:  DefaultLayerNormEpsilon,
		blockDim: DefaultBlockDim,
	}
}

// Epsilon sets the value added to the variance, for numerical stability. Default is DefaultLayerNormEpsilon.
func (b *LayerNormBuilder[T]) Epsilon(epsilon float32) *LayerNormBuilder[T] {
	b.epsilon = epsilon
	return b
}

// BlockDim sets the number of lanes per block. It must be a multiple of simt.GroupSize. Default is DefaultBlockDim.
func (b *LayerNormBuilder[T]) BlockDim(blockDim int) *LayerNormBuilder[T] {
	b.blockDim = blockDim
	return b
}

func (b *LayerNormBuilder[T]) validate() error {
	numCols := len(b.gamma)
	if numCols == 0 {
		return errors.New("LayerNorm: gamma must not be empty")
	}
	if len(b.beta) != numCols {
		return errors.Errorf("LayerNorm: gamma has length %d, but beta has length %d", numCols, len(b.beta))
	}
	for ii, row := range b.rows {
		if len(row) != numCols {
			return errors.Errorf("LayerNorm: row #%d has length %d, but gamma has length %d", ii, len(row), numCols)
		}
	}
	if b.epsilon < 0 || math.IsNaN(float64(b.epsilon)) {
		return errors.Errorf("LayerNorm: epsilon must be >= 0, got %g", b.epsilon)
	}
	return nil
}

// Done runs the layer normalization, and returns the outputs with the same shape as the rows.
func (b *LayerNormBuilder[T]) Done() ([][]T, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	out := make([][]T, len(b.rows))
	for ii := range out {
		out[ii] = make([]T, len(b.gamma))
	}
	if len(b.rows) == 0 {
		return out, nil
	}
	cfg, err := launchConfig(len(b.rows), b.blockDim)
	if err != nil {
		return nil, errors.WithMessage(err, "LayerNorm")
	}
	klog.V(2).Infof("LayerNorm: %d rows x %d columns of %s, epsilon=%g, %d lanes per block",
		len(b.rows), len(b.gamma), dtypes.FromGenericsType[T](), b.epsilon, cfg.BlockDim)

	toFloat32, fromFloat32 := dtypes.Converters[T]()
	gamma := make([]float32, len(b.gamma))
	beta := make([]float32, len(b.beta))
	dtypes.ConvertSlice(gamma, b.gamma)
	dtypes.ConvertSlice(beta, b.beta)
	numCols := float32(len(gamma))
	err = b.device.Launch(cfg, func(g *simt.Group) {
		row, y := b.rows[g.BlockIdx()], out[g.BlockIdx()]
		blockDim := g.BlockDim()

		// Component 0: sum, component 1: sum of squares.
		var regs [simt.GroupSize]reduce.Vec2
		for lane := range regs {
			var moments reduce.Vec2
			for col := g.LaneIndex(lane); col < len(row); col += blockDim {
				x := toFloat32(row[col])
				moments[0] += x
				moments[1] += x * x
			}
			regs[lane] = moments
		}
		reduce.BlockAllReduceSum2(g, &regs, reduce.NewStaging[reduce.Vec2](g, "moments"))
		for lane := range regs {
			mean := regs[lane][0] / numCols
			variance := max(regs[lane][1]/numCols-mean*mean, 0)
			invStd := float32(1 / math.Sqrt(float64(variance+b.epsilon)))
			for col := g.LaneIndex(lane); col < len(row); col += blockDim {
				y[col] = fromFloat32((toFloat32(row[col])-mean)*invStd*gamma[col] + beta[col])
			}
		}
	})
	if err != nil {
		return nil, errors.WithMessage(err, "LayerNorm")
	}
	return out, nil
}
