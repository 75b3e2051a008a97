// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"
	"time"

	"github.com/gomlx/warpreduce/pkg/core/dtypes"
	"github.com/gomlx/warpreduce/pkg/core/reduce"
	"github.com/gomlx/warpreduce/pkg/core/simt"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(kind reduce.Kind) *validator {
	return &validator{
		device:    must.M1(simt.NewWithConfig("parallelism=2")),
		kind:      kind,
		dtype:     dtypes.Float32,
		gridDim:   2,
		trials:    2,
		seed:      1,
		tolerance: 1e-5,
	}
}

func TestValidate(t *testing.T) {
	for _, kind := range reduce.KindValues() {
		for _, allReduce := range []bool{false, true} {
			for _, generic := range []bool{false, true} {
				v := newTestValidator(kind)
				v.allReduce, v.generic = allReduce, generic
				results, err := validate[reduce.Vec2](v, []int{32, 96, 1024})
				require.NoError(t, err)
				require.Len(t, results, 3)
				for _, r := range results {
					assert.True(t, r.ok(), "%s: blockDim=%d, result=%+v", v.operationName(), r.blockDim, r)
					assert.Equal(t, int64(2*2*r.blockDim), r.numLanes)
				}
				// One row per block dim, plus the totals.
				assert.Equal(t, 4, resultsTable(results).NumRows())
				numLanes, _ := totals(results)
				assert.Equal(t, int64(2*2*(32+96+1024)), numLanes)
			}
		}
	}
}

func TestTotals(t *testing.T) {
	results := []result{
		{blockDim: 32, numLanes: 640, elapsed: time.Millisecond},
		{blockDim: 64, numLanes: 1280, elapsed: 3 * time.Millisecond},
	}
	numLanes, elapsed := totals(results)
	assert.Equal(t, int64(1920), numLanes)
	assert.Equal(t, 4*time.Millisecond, elapsed)
	assert.Equal(t, 3, resultsTable(results).NumRows())
	assert.Equal(t, 1, resultsTable(results[:1]).NumRows())
}

func TestValidateInvalidBlockDim(t *testing.T) {
	_, err := validate[reduce.Vec1](newTestValidator(reduce.Sum), []int{48})
	assert.ErrorIs(t, err, simt.ErrInvalidLaunch)
}

func TestCheckLaunch(t *testing.T) {
	cfg := simt.LaunchConfig{GridDim: 1, BlockDim: 64}
	inputs := make([]reduce.Vec1, cfg.NumLanes())
	outputs := make([]reduce.Vec1, cfg.NumLanes())
	for ii := range inputs {
		inputs[ii] = reduce.Vec1{1}
	}
	for lane := range simt.GroupSize {
		outputs[lane] = reduce.Vec1{64}
	}
	r := result{tolerance: 1e-5}
	checkLaunch(&r, reduce.Sum, cfg, false, inputs, outputs)
	assert.True(t, r.ok())

	// With all-reduce, the second group must hold the result too.
	r = result{tolerance: 1e-5}
	checkLaunch(&r, reduce.Sum, cfg, true, inputs, outputs)
	assert.Equal(t, 1, r.nonUniform)
	assert.False(t, r.ok())

	outputs[5] = reduce.Vec1{63}
	r = result{tolerance: 1e-5}
	checkLaunch(&r, reduce.Sum, cfg, false, inputs, outputs)
	assert.Equal(t, 1, r.nonUniform)

	for lane := range simt.GroupSize {
		outputs[lane] = reduce.Vec1{60}
	}
	r = result{tolerance: 1e-5}
	checkLaunch(&r, reduce.Sum, cfg, false, inputs, outputs)
	assert.InDelta(t, 4.0/64, r.maxRelErr, 1e-9)
	assert.False(t, r.ok())
}

func TestOperationName(t *testing.T) {
	v := newTestValidator(reduce.Max)
	assert.Equal(t, "BlockReduceMax", v.operationName())
	v.allReduce, v.generic = true, true
	assert.Equal(t, "BlockAllReduce[MaxOp] (generic)", v.operationName())
}
