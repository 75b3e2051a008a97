// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDuration pretty prints duration without a long list of decimal points.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d)/float64(time.Microsecond))
	}
	return d.String()
}

// FormatRate formats count units processed in d as a rate per second with an SI prefix, e.g. "1.5 Mlanes/s".
func FormatRate(count int64, d time.Duration, unit string) string {
	if d <= 0 {
		return "-"
	}
	return humanize.SIWithDigits(float64(count)/d.Seconds(), 2, unit+"/s")
}
