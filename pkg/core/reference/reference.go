// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package reference implements sequential float64 versions of the reductions and of the kernels built
// on them, used to validate the results of the SIMT implementations.
package reference

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sum returns the sum of x, 0 if empty.
func Sum(x []float64) float64 {
	return floats.Sum(x)
}

// Max returns the maximum of x. For an empty x it returns the identity of Max, -1e8, like the reductions.
// NaN propagates.
func Max(x []float64) float64 {
	if len(x) == 0 {
		return -1e8
	}
	// floats.Max skips NaN unless it is the first element.
	if floats.HasNaN(x) {
		return math.NaN()
	}
	return floats.Max(x)
}

// Softmax returns softmax(x / temperature).
func Softmax(x []float64, temperature float64) []float64 {
	y := make([]float64, len(x))
	if len(x) == 0 {
		return y
	}
	floats.ScaleTo(y, 1/temperature, x)
	floats.AddConst(-Max(y), y)
	for ii, v := range y {
		y[ii] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(y), y)
	return y
}

// LayerNorm returns (x - mean) / sqrt(variance + epsilon) * gamma + beta, with the population variance of x.
func LayerNorm(x, gamma, beta []float64, epsilon float64) []float64 {
	mean, variance := stat.PopMeanVariance(x, nil)
	invStd := 1 / math.Sqrt(variance+epsilon)
	y := make([]float64, len(x))
	for ii, v := range x {
		y[ii] = (v-mean)*invStd*gamma[ii] + beta[ii]
	}
	return y
}

// RelativeError returns the largest element-wise |got - want| / max(|want|, floor), where floor keeps
// values close to zero from dominating: below it the error is absolute.
func RelativeError(got, want []float64, floor float64) float64 {
	if len(got) != len(want) {
		return math.Inf(1)
	}
	var worst float64
	for ii := range got {
		if math.IsNaN(got[ii]) != math.IsNaN(want[ii]) {
			return math.Inf(1)
		}
		if math.IsNaN(got[ii]) {
			continue
		}
		err := math.Abs(got[ii]-want[ii]) / max(math.Abs(want[ii]), floor)
		worst = max(worst, err)
	}
	return worst
}
