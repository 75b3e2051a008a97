// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// warpreduce validates and benchmarks the block reductions on the SIMT emulator.
//
// For every block dimension, it launches a number of trials with random inputs, checks that the reduced
// value is uniform across the lanes where it is valid and that it matches the float64 reference, and
// reports the worst relative error and the throughput:
//
//	warpreduce -kind=max -width=4 -block_dims=64,1024 -trials=20
//
// The device is configured with -device, or with the WARPREDUCE_DEVICE environment variable.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/warpreduce/pkg/core/dtypes"
	"github.com/gomlx/warpreduce/pkg/core/reduce"
	"github.com/gomlx/warpreduce/pkg/core/simt"
	"github.com/gomlx/warpreduce/pkg/support/xslices"
	"github.com/gomlx/warpreduce/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagKind = flag.String("kind", "sum", fmt.Sprintf("Kind of reduction, one of %v (case insensitive).", reduce.KindStrings()))

	flagWidth = flag.Int("width", 1, "Width of the accumulator vectors: 1, 2 or 4.")

	flagBlockDims = xslices.Flag("block_dims", []int{32, 64, 96, 256, 1024},
		"Comma-separated list of block dimensions (lanes per block) to validate, multiples of 32 up to 1024.",
		strconv.Atoi)

	flagGrid   = flag.Int("grid", 8, "Number of blocks per launch.")
	flagTrials = flag.Int("trials", 10, "Number of launches, with different random inputs, per block dimension.")
	flagSeed   = flag.Uint64("seed", 42, "Seed of the random inputs.")

	flagDevice = flag.String("device", "", "Device configuration, e.g. \"parallelism=4,shared=49152\". "+
		"If empty, it uses the environment variable "+simt.ConfigEnvVar+".")

	flagAllReduce = flag.Bool("all_reduce", false, "Validate BlockAllReduce, whose result is valid in every lane, "+
		"instead of BlockReduce, valid only in the first group of the block.")

	flagGeneric = flag.Bool("generic", false, "Use the generic reductions instead of the generated specializations.")

	flagDType = flag.String("dtype", "float32", "DType the random inputs are drawn in before being loaded "+
		"into the float32 accumulators: float32, float64, float16 or bfloat16.")

	flagTolerance = flag.Float64("tolerance", 1e-5, "Maximum relative error of sums, against the float64 reference.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if err := run(); err != nil {
		klog.Errorf("warpreduce failed: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	kind, err := reduce.KindString(*flagKind)
	if err != nil {
		return err
	}
	dtype, err := dtypes.Parse(*flagDType)
	if err != nil {
		return err
	}
	var device *simt.Device
	if *flagDevice != "" {
		device, err = simt.NewWithConfig(*flagDevice)
	} else {
		device, err = simt.New()
	}
	if err != nil {
		return err
	}
	defer device.Finalize()

	v := &validator{
		device:    device,
		kind:      kind,
		dtype:     dtype,
		gridDim:   *flagGrid,
		trials:    *flagTrials,
		seed:      *flagSeed,
		allReduce: *flagAllReduce,
		generic:   *flagGeneric,
		tolerance: *flagTolerance,
	}
	var results []result
	switch *flagWidth {
	case 1:
		results, err = validate[reduce.Vec1](v, *flagBlockDims)
	case 2:
		results, err = validate[reduce.Vec2](v, *flagBlockDims)
	case 4:
		results, err = validate[reduce.Vec4](v, *flagBlockDims)
	default:
		return errors.Errorf("invalid -width=%d, it must be 1, 2 or 4", *flagWidth)
	}
	if err != nil {
		return err
	}

	fmt.Println(commandline.Title(fmt.Sprintf("%s, width %d, %s", v.operationName(), *flagWidth, device.Description())))
	fmt.Println(resultsTable(results).Render())
	var failed []string
	for _, r := range results {
		if !r.ok() {
			failed = append(failed, strconv.Itoa(r.blockDim))
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("validation failed for block dims %s", strings.Join(failed, ","))
	}
	return nil
}
