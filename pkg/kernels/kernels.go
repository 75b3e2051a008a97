// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernels implements row-wise kernels on top of the block reductions of package reduce: row sums
// and maxima, softmax and layer normalization.
//
// All kernels run one block per row (or per 4 rows, for packed reductions), with the lanes of the block
// striding over the columns. They accept any of the dtypes.Float types, and accumulate in float32.
//
// Kernels are configured with builders, finished with Done:
//
//	probabilities, err := kernels.Softmax(device, logits).Temperature(0.7).Done()
package kernels

import (
	"github.com/gomlx/warpreduce/pkg/core/dtypes"
	"github.com/gomlx/warpreduce/pkg/core/reduce"
	"github.com/gomlx/warpreduce/pkg/core/simt"
	"github.com/pkg/errors"
)

// DefaultBlockDim is the number of lanes per block used if not configured otherwise.
const DefaultBlockDim = 256

// launchConfig checks the block dimension, and returns the configuration to launch numBlocks blocks.
func launchConfig(numBlocks, blockDim int) (simt.LaunchConfig, error) {
	cfg := simt.LaunchConfig{GridDim: numBlocks, BlockDim: blockDim}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// combineFn returns the combine function of the kind, for the per-lane partial accumulation.
func combineFn(kind reduce.Kind) (func(a, b float32) float32, error) {
	switch kind {
	case reduce.Max:
		return reduce.MaxOp{}.Combine, nil
	case reduce.Sum:
		return reduce.SumOp{}.Combine, nil
	}
	return nil, errors.Errorf("invalid reduction kind %s", kind)
}

// partial accumulates the columns of row assigned to the block lane laneIndex: laneIndex, laneIndex+blockDim, ...
func partial[T dtypes.Float](row []T, laneIndex, blockDim int, identity float32,
	combine func(a, b float32) float32, toFloat32 func(T) float32) float32 {
	acc := identity
	for col := laneIndex; col < len(row); col += blockDim {
		acc = combine(acc, toFloat32(row[col]))
	}
	return acc
}
