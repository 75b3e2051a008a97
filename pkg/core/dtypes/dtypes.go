// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes defines the floating-point data types kernels accept as input, and their conversions
// to and from the float32 accumulators used by the reductions.
//
// The enum values follow the XLA/PJRT numbering, so they stay aligned with github.com/gomlx/gomlx.
package dtypes

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/warpreduce/pkg/core/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DType is an enum representing the data type of kernel inputs and outputs.
type DType int32

const (
	// InvalidDType is the zero value.
	InvalidDType DType = 0

	// Float16 is IEEE 754 half precision, see github.com/x448/float16.
	Float16 DType = 10

	// Float32 is IEEE 754 single precision, the accumulator type of all reductions.
	Float32 DType = 11

	// Float64 is IEEE 754 double precision. It is narrowed to float32 when loaded into accumulators.
	Float64 DType = 12

	// BFloat16 is the "brain" float, see package bfloat16.
	BFloat16 DType = 13
)

// Float is the constraint of Go types that can be fed to kernels.
type Float interface {
	float32 | float64 | float16.Float16 | bfloat16.BFloat16
}

// MapOfNames maps names (and lower-case aliases) to DType values.
var MapOfNames = map[string]DType{
	"InvalidDType": InvalidDType,
	"Float16":      Float16,
	"F16":          Float16,
	"Float32":      Float32,
	"F32":          Float32,
	"Float64":      Float64,
	"F64":          Float64,
	"BFloat16":     BFloat16,
	"BF16":         BFloat16,
}

func init() {
	// Add a mapping to the lower-case version of the names.
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if _, found := MapOfNames[lowerKey]; !found {
			MapOfNames[lowerKey] = MapOfNames[key]
		}
	}
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	switch dtype {
	case Float16:
		return "Float16"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case BFloat16:
		return "BFloat16"
	case InvalidDType:
		return "InvalidDType"
	}
	return "DType(" + strconv.Itoa(int(dtype)) + ")"
}

// Parse returns the DType for the given name, case-insensitive (e.g.: "float16", "bf16").
func Parse(name string) (DType, error) {
	if dtype, found := MapOfNames[name]; found && dtype != InvalidDType {
		return dtype, nil
	}
	if dtype, found := MapOfNames[strings.ToLower(name)]; found && dtype != InvalidDType {
		return dtype, nil
	}
	return InvalidDType, errors.Errorf("unknown dtype %q", name)
}

// Size returns the number of bytes of one element of the dtype, or 0 if invalid.
func (dtype DType) Size() int {
	switch dtype {
	case Float16, BFloat16:
		return 2
	case Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// MaxFinite returns the largest finite value representable by the dtype, or 0 if invalid.
func (dtype DType) MaxFinite() float64 {
	switch dtype {
	case Float16:
		return float64(maxFiniteFloat16.Float32())
	case BFloat16:
		return float64(bfloat16.MaxFinite.Float32())
	case Float32:
		return math.MaxFloat32
	case Float64:
		return math.MaxFloat64
	}
	return 0
}

// maxFiniteFloat16 is 65504.
const maxFiniteFloat16 = float16.Float16(0x7BFF)

// FromGenericsType returns the DType enum for the given Go type.
func FromGenericsType[T Float]() DType {
	var t T
	switch any(t).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case float16.Float16:
		return Float16
	case bfloat16.BFloat16:
		return BFloat16
	}
	return InvalidDType
}

// Converters returns the functions converting values of type T to and from float32.
//
// They are resolved once per instantiation, so kernels can call them per element without a type switch.
func Converters[T Float]() (toFloat32 func(T) float32, fromFloat32 func(float32) T) {
	var t T
	switch any(t).(type) {
	case float32:
		toFloat32 = any(func(v float32) float32 { return v }).(func(T) float32)
		fromFloat32 = any(func(f float32) float32 { return f }).(func(float32) T)
	case float64:
		toFloat32 = any(func(v float64) float32 { return float32(v) }).(func(T) float32)
		fromFloat32 = any(func(f float32) float64 { return float64(f) }).(func(float32) T)
	case float16.Float16:
		toFloat32 = any(func(v float16.Float16) float32 { return v.Float32() }).(func(T) float32)
		fromFloat32 = any(float16.Fromfloat32).(func(float32) T)
	case bfloat16.BFloat16:
		toFloat32 = any(func(v bfloat16.BFloat16) float32 { return v.Float32() }).(func(T) float32)
		fromFloat32 = any(bfloat16.FromFloat32).(func(float32) T)
	}
	return
}

// ToFloat32 converts a single value to float32.
func ToFloat32[T Float](v T) float32 {
	toFloat32, _ := Converters[T]()
	return toFloat32(v)
}

// FromFloat32 converts a float32 to the type T, rounding to the nearest representable value.
func FromFloat32[T Float](f float32) T {
	_, fromFloat32 := Converters[T]()
	return fromFloat32(f)
}

// SaturatingFromFloat32 returns a conversion from float32 to T that clamps finite values beyond the range of
// T to its largest finite magnitude (see DType.MaxFinite), where FromFloat32 would round them to infinity.
// Infinities and NaN are converted as is.
func SaturatingFromFloat32[T Float]() func(float32) T {
	_, fromFloat32 := Converters[T]()
	dtype := FromGenericsType[T]()
	if dtype == Float32 || dtype == Float64 {
		return fromFloat32
	}
	limit := float32(dtype.MaxFinite())
	return func(f float32) T {
		if f > limit && !math.IsInf(float64(f), 1) {
			f = limit
		} else if f < -limit && !math.IsInf(float64(f), -1) {
			f = -limit
		}
		return fromFloat32(f)
	}
}

// ConvertSlice converts src to dst element-wise, going through float32: both must have the same length.
func ConvertSlice[From, To Float](dst []To, src []From) {
	if len(dst) != len(src) {
		panic(errors.Errorf("ConvertSlice: dst has length %d, src has length %d", len(dst), len(src)))
	}
	toFloat32, _ := Converters[From]()
	_, fromFloat32 := Converters[To]()
	for ii, v := range src {
		dst[ii] = fromFloat32(toFloat32(v))
	}
}
