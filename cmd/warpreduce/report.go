// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/warpreduce/pkg/support/xslices"
	"github.com/gomlx/warpreduce/ui/commandline"
)

// totals returns the number of lanes reduced and the time spent over all results.
func totals(results []result) (numLanes int64, elapsed time.Duration) {
	numLanes = xslices.Sum(xslices.Map(results, func(r result) int64 { return r.numLanes }))
	elapsed = xslices.Sum(xslices.Map(results, func(r result) time.Duration { return r.elapsed }))
	return
}

// resultsTable builds the report table, failed block dimensions in red, and a totals row if there is more
// than one block dimension.
func resultsTable(results []result) *commandline.Table {
	table := commandline.NewTable("Block dim", "Status", "Max rel. error", "Non-uniform blocks", "Lanes", "Elapsed", "Throughput")
	for _, r := range results {
		status := "ok"
		if !r.ok() {
			status = "FAILED"
		}
		table.Row(!r.ok(),
			humanize.Comma(int64(r.blockDim)),
			status,
			fmt.Sprintf("%.3g", r.maxRelErr),
			humanize.Comma(int64(r.nonUniform)),
			humanize.Comma(r.numLanes),
			commandline.FormatDuration(r.elapsed),
			commandline.FormatRate(r.numLanes, r.elapsed, "lanes"))
	}
	if len(results) > 1 {
		numLanes, elapsed := totals(results)
		table.Row(false, "Total", "", "", "",
			humanize.Comma(numLanes),
			commandline.FormatDuration(elapsed),
			commandline.FormatRate(numLanes, elapsed, "lanes"))
	}
	return table
}
