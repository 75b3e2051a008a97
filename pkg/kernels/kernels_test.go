// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"flag"
	"math"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/gomlx/warpreduce/pkg/core/dtypes"
	"github.com/gomlx/warpreduce/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/warpreduce/pkg/core/reduce"
	"github.com/gomlx/warpreduce/pkg/core/reference"
	"github.com/gomlx/warpreduce/pkg/core/simt"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

var device *simt.Device

func init() {
	klog.InitFlags(nil)
}

func TestMain(m *testing.M) {
	flag.Parse()
	device = must.M1(simt.NewWithConfig("parallelism=-1"))
	code := m.Run()
	device.Finalize()
	os.Exit(code)
}

// tolerance of the outputs of type T, relative to the float64 reference.
func tolerance[T dtypes.Float]() float64 {
	switch dtypes.FromGenericsType[T]() {
	case dtypes.Float16:
		return 2e-3
	case dtypes.BFloat16:
		return 1.6e-2
	}
	return 1e-4
}

func randomRows[T dtypes.Float](rng *rand.Rand, lengths ...int) [][]T {
	rows := make([][]T, len(lengths))
	for ii, length := range lengths {
		rows[ii] = make([]T, length)
		for col := range length {
			rows[ii][col] = dtypes.FromFloat32[T](rng.Float32()*2 - 1)
		}
	}
	return rows
}

func toFloat64[T dtypes.Float](values []T) []float64 {
	out := make([]float64, len(values))
	for ii, v := range values {
		out[ii] = float64(dtypes.ToFloat32(v))
	}
	return out
}

// saturated clamps x to the finite range of T, as the row reductions do with their outputs.
func saturated[T dtypes.Float](x float64) float64 {
	limit := dtypes.FromGenericsType[T]().MaxFinite()
	return min(max(x, -limit), limit)
}

func testRowReduce[T dtypes.Float](t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	rows := randomRows[T](rng, 1, 31, 0, 1000, 257, 64, 3)
	for _, kind := range reduce.KindValues() {
		want := make([]float64, len(rows))
		for ii, row := range rows {
			if kind == reduce.Sum {
				want[ii] = reference.Sum(toFloat64(row))
			} else {
				want[ii] = reference.Max(toFloat64(row))
			}
			want[ii] = saturated[T](want[ii])
		}
		for _, blockDim := range []int{32, 96, 256, 1024} {
			got, err := RowReduce(device, kind, rows).BlockDim(blockDim).Done()
			require.NoError(t, err)
			assert.LessOrEqual(t, reference.RelativeError(toFloat64(got), want, 1), tolerance[T](),
				"kind=%s, blockDim=%d", kind, blockDim)

			packed, err := RowReduce(device, kind, rows).BlockDim(blockDim).Packed().Done()
			require.NoError(t, err)
			assert.Equal(t, toFloat64(got), toFloat64(packed), "kind=%s, blockDim=%d", kind, blockDim)
		}
	}
}

func TestRowReduce(t *testing.T) {
	t.Run("Float32", testRowReduce[float32])
	t.Run("Float64", testRowReduce[float64])
	t.Run("Float16", testRowReduce[float16.Float16])
	t.Run("BFloat16", testRowReduce[bfloat16.BFloat16])
}

// testEmptyRows checks the reductions of empty rows, whose Max is the identity saturated to T.
func testEmptyRows[T dtypes.Float](t *testing.T, wantEmptyMax float32) {
	half := dtypes.FromFloat32[T](0.5)
	rows := [][]T{{}, {half}, {}, {}, {half, half}}
	for _, packed := range []bool{false, true} {
		maxBuilder := RowReduce(device, reduce.Max, rows).BlockDim(64)
		sumBuilder := RowReduce(device, reduce.Sum, rows).BlockDim(64)
		if packed {
			maxBuilder.Packed()
			sumBuilder.Packed()
		}
		maxima, err := maxBuilder.Done()
		require.NoError(t, err)
		sums, err := sumBuilder.Done()
		require.NoError(t, err)
		for _, ii := range []int{0, 2, 3} {
			gotMax := dtypes.ToFloat32(maxima[ii])
			assert.False(t, math.IsInf(float64(gotMax), 0), "packed=%v, row #%d: max is %g", packed, ii, gotMax)
			assert.Equal(t, wantEmptyMax, gotMax, "packed=%v, row #%d", packed, ii)
			assert.Equal(t, float32(0), dtypes.ToFloat32(sums[ii]), "packed=%v, row #%d", packed, ii)
		}
		assert.Equal(t, float32(0.5), dtypes.ToFloat32(maxima[1]), "packed=%v", packed)
		assert.Equal(t, float32(1), dtypes.ToFloat32(sums[4]), "packed=%v", packed)
	}
}

func TestRowReduceEmptyRows(t *testing.T) {
	t.Run("Float32", func(t *testing.T) { testEmptyRows[float32](t, reduce.NegSentinel) })
	t.Run("Float64", func(t *testing.T) { testEmptyRows[float64](t, reduce.NegSentinel) })
	t.Run("Float16", func(t *testing.T) { testEmptyRows[float16.Float16](t, -65504) })
	t.Run("BFloat16", func(t *testing.T) {
		testEmptyRows[bfloat16.BFloat16](t, bfloat16.FromFloat32(reduce.NegSentinel).Float32())
	})
}

func TestRowShortcuts(t *testing.T) {
	rows := [][]float32{{1, 2, 3}, {-4, -5}, {}, {10}, {0.5, 0.5}}
	sums, err := RowSum(device, rows)
	require.NoError(t, err)
	assert.Equal(t, []float32{6, -9, 0, 10, 1}, sums)

	sums4, err := RowSums4(device, rows)
	require.NoError(t, err)
	assert.Equal(t, sums, sums4)

	maxima, err := RowMax(device, rows)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, -4, reduce.NegSentinel, 10, 0.5}, maxima)

	empty, err := RowSum[float64](device, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRowReduceErrors(t *testing.T) {
	rows := [][]float32{{1, 2}}
	_, err := RowReduce(device, reduce.Sum, rows).BlockDim(48).Done()
	assert.ErrorIs(t, err, simt.ErrInvalidLaunch)
	_, err = RowReduce(device, reduce.Sum, rows).BlockDim(2048).Packed().Done()
	assert.ErrorIs(t, err, simt.ErrInvalidLaunch)
	_, err = RowReduce(device, reduce.Kind(5), rows).Done()
	assert.Error(t, err)
}

func testSoftmax[T dtypes.Float](t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	rows := randomRows[T](rng, 10, 1, 300, 33)
	for _, temperature := range []float32{1, 0.5, 3} {
		got, err := Softmax(device, rows).Temperature(temperature).BlockDim(64).Done()
		require.NoError(t, err)
		require.Len(t, got, len(rows))
		for ii, row := range rows {
			want := reference.Softmax(toFloat64(row), float64(temperature))
			gotRow := toFloat64(got[ii])
			assert.LessOrEqual(t, reference.RelativeError(gotRow, want, 1e-3), tolerance[T](),
				"row #%d, temperature=%g", ii, temperature)
			assert.InDelta(t, 1.0, reference.Sum(gotRow), 10*tolerance[T]())
		}
	}
}

func TestSoftmax(t *testing.T) {
	t.Run("Float32", testSoftmax[float32])
	t.Run("Float64", testSoftmax[float64])
	t.Run("Float16", testSoftmax[float16.Float16])
	t.Run("BFloat16", testSoftmax[bfloat16.BFloat16])
}

func TestSoftmaxEdgeCases(t *testing.T) {
	// Large logits don't overflow, since the row maximum is subtracted.
	got, err := Softmax(device, [][]float32{{1000, 1000}, {}}).Done()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, got[0])
	assert.Empty(t, got[1])

	_, err = Softmax(device, [][]float32{{1}}).Temperature(0).Done()
	assert.Error(t, err)
	_, err = Softmax(device, [][]float32{{1}}).Temperature(float32(math.NaN())).Done()
	assert.Error(t, err)
	_, err = Softmax(device, [][]float32{{1}}).BlockDim(0).Done()
	assert.ErrorIs(t, err, simt.ErrInvalidLaunch)
}

func testLayerNorm[T dtypes.Float](t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	const numCols = 200
	rows := randomRows[T](rng, numCols, numCols, numCols)
	gamma := randomRows[T](rng, numCols)[0]
	beta := randomRows[T](rng, numCols)[0]
	for _, blockDim := range []int{32, 128, 256} {
		got, err := LayerNorm(device, rows, gamma, beta).Epsilon(1e-5).BlockDim(blockDim).Done()
		require.NoError(t, err)
		for ii, row := range rows {
			want := reference.LayerNorm(toFloat64(row), toFloat64(gamma), toFloat64(beta), 1e-5)
			assert.LessOrEqual(t, reference.RelativeError(toFloat64(got[ii]), want, 1e-1), 10*tolerance[T](),
				"row #%d, blockDim=%d", ii, blockDim)
		}
	}
}

func TestLayerNorm(t *testing.T) {
	t.Run("Float32", testLayerNorm[float32])
	t.Run("Float64", testLayerNorm[float64])
	t.Run("Float16", testLayerNorm[float16.Float16])
	t.Run("BFloat16", testLayerNorm[bfloat16.BFloat16])
}

func TestLayerNormValidation(t *testing.T) {
	gamma, beta := []float32{1, 1}, []float32{0, 0}
	got, err := LayerNorm(device, [][]float32{{1, 3}}, gamma, beta).Epsilon(0).Done()
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 1}, got[0])

	// Constant rows normalize to beta.
	got, err = LayerNorm(device, [][]float32{{5, 5}}, gamma, []float32{0.25, -0.25}).Done()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.25}, got[0])

	_, err = LayerNorm(device, [][]float32{{1, 2, 3}}, gamma, beta).Done()
	assert.Error(t, err)
	_, err = LayerNorm(device, [][]float32{{1, 2}}, gamma, []float32{0}).Done()
	assert.Error(t, err)
	_, err = LayerNorm(device, [][]float32{}, []float32{}, []float32{}).Done()
	assert.Error(t, err)
	_, err = LayerNorm(device, [][]float32{{1, 2}}, gamma, beta).Epsilon(-1).Done()
	assert.Error(t, err)
	_, err = LayerNorm(device, [][]float32{{1, 2}}, gamma, beta).BlockDim(100).Done()
	assert.ErrorIs(t, err, simt.ErrInvalidLaunch)
}
