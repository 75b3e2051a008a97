// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gomlx/warpreduce/pkg/core/dtypes"
	"github.com/gomlx/warpreduce/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/warpreduce/pkg/core/reduce"
	"github.com/gomlx/warpreduce/pkg/core/reference"
	"github.com/gomlx/warpreduce/pkg/core/simt"
	"github.com/gomlx/warpreduce/ui/commandline"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// validator holds the configuration of a validation run.
type validator struct {
	device             *simt.Device
	kind               reduce.Kind
	dtype              dtypes.DType
	gridDim, trials    int
	seed               uint64
	allReduce, generic bool
	tolerance          float64
}

// result of the trials of one block dimension.
type result struct {
	blockDim   int
	maxRelErr  float64
	nonUniform int
	elapsed    time.Duration
	numLanes   int64
	tolerance  float64
}

func (r result) ok() bool {
	return r.nonUniform == 0 && r.maxRelErr <= r.tolerance
}

func (v *validator) operationName() string {
	name := "BlockReduce"
	if v.allReduce {
		name = "BlockAllReduce"
	}
	if v.generic {
		return fmt.Sprintf("%s[%sOp] (generic)", name, v.kind)
	}
	return name + v.kind.String()
}

func blockReduceFn[V reduce.Accumulator](v *validator) (reduce.BlockReduceFn[V], error) {
	switch {
	case v.generic && v.allReduce:
		return reduce.GenericBlockAllReduce[V](v.kind)
	case v.generic:
		return reduce.GenericBlockReduce[V](v.kind)
	case v.allReduce:
		return reduce.SpecializedBlockAllReduce[V](v.kind)
	}
	return reduce.SpecializedBlockReduce[V](v.kind)
}

// randomValue draws a value in [-0.5, 1.5) in the validator's dtype, and returns it as float32.
func (v *validator) randomValue(rng *rand.Rand) float32 {
	x := rng.Float32()*2 - 0.5
	switch v.dtype {
	case dtypes.Float16:
		return float16.Fromfloat32(x).Float32()
	case dtypes.BFloat16:
		return bfloat16.FromFloat32(x).Float32()
	}
	return x
}

// validate runs the trials for every block dimension.
func validate[V reduce.Accumulator](v *validator, blockDims []int) ([]result, error) {
	blockReduce, err := blockReduceFn[V](v)
	if err != nil {
		return nil, err
	}
	width := reduce.WidthOf[V]()
	rng := rand.New(rand.NewPCG(v.seed, uint64(width)))
	pBar := commandline.NewProgressBar(len(blockDims)*v.trials, v.operationName(), "trials")
	defer pBar.Done()

	results := make([]result, 0, len(blockDims))
	for _, blockDim := range blockDims {
		cfg := simt.LaunchConfig{GridDim: v.gridDim, BlockDim: blockDim}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		r := result{blockDim: blockDim, tolerance: v.tolerance}
		if v.kind == reduce.Max {
			// Maxima are exact.
			r.tolerance = 0
		}
		inputs := make([]V, cfg.NumLanes())
		outputs := make([]V, cfg.NumLanes())
		for range v.trials {
			for ii := range inputs {
				for c := range width {
					inputs[ii][c] = v.randomValue(rng)
				}
			}
			start := time.Now()
			err := v.device.Launch(cfg, func(g *simt.Group) {
				var regs [simt.GroupSize]V
				for lane := range regs {
					regs[lane] = inputs[g.GlobalIndex(lane)]
				}
				blockReduce(g, &regs, reduce.NewStaging[V](g, "validate"))
				for lane := range regs {
					outputs[g.GlobalIndex(lane)] = regs[lane]
				}
			})
			r.elapsed += time.Since(start)
			if err != nil {
				return nil, errors.WithMessagef(err, "blockDim=%d", blockDim)
			}
			r.numLanes += int64(cfg.NumLanes())
			checkLaunch(&r, v.kind, cfg, v.allReduce, inputs, outputs)
			pBar.Add(1)
		}
		klog.V(1).Infof("blockDim=%d: max relative error %g, %d non-uniform blocks, %s",
			blockDim, r.maxRelErr, r.nonUniform, commandline.FormatDuration(r.elapsed))
		results = append(results, r)
	}
	return results, nil
}

// checkLaunch updates r with the uniformity and the errors of the outputs of one launch.
func checkLaunch[V reduce.Accumulator](r *result, kind reduce.Kind, cfg simt.LaunchConfig, allReduce bool,
	inputs, outputs []V) {
	width := reduce.WidthOf[V]()
	validLanes := simt.GroupSize
	if allReduce {
		validLanes = cfg.BlockDim
	}
	column := make([]float64, cfg.BlockDim)
	for blockIdx := range cfg.GridDim {
		blockInputs := inputs[blockIdx*cfg.BlockDim : (blockIdx+1)*cfg.BlockDim]
		blockOutputs := outputs[blockIdx*cfg.BlockDim : (blockIdx+1)*cfg.BlockDim]
		uniform := true
		for c := range width {
			for lane := range validLanes {
				if math.Float32bits(blockOutputs[lane][c]) != math.Float32bits(blockOutputs[0][c]) {
					uniform = false
				}
			}
			for ii, x := range blockInputs {
				column[ii] = float64(x[c])
			}
			var want float64
			if kind == reduce.Max {
				want = reference.Max(column)
			} else {
				want = reference.Sum(column)
			}
			got := []float64{float64(blockOutputs[0][c])}
			r.maxRelErr = max(r.maxRelErr, reference.RelativeError(got, []float64{want}, 1))
		}
		if !uniform {
			r.nonUniform++
		}
	}
}
