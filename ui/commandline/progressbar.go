// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// ProgressBar displays the progression of a fixed number of steps on the command line.
type ProgressBar struct {
	bar     *progressbar.ProgressBar
	termenv *termenv.Output
	writer  io.Writer
}

// NewProgressBar creates a progress bar for total steps, written to os.Stdout.
// The cursor is hidden until Done is called.
func NewProgressBar(total int, description, stepsName string) *ProgressBar {
	return newProgressBar(os.Stdout, total, description, stepsName)
}

func newProgressBar(w io.Writer, total int, description, stepsName string) *ProgressBar {
	pBar := &ProgressBar{
		termenv: termenv.NewOutput(w),
		writer:  w,
	}
	pBar.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(stepsName),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(w),
	)
	pBar.termenv.HideCursor()
	return pBar
}

// Add advances the progress bar by amount steps.
func (pBar *ProgressBar) Add(amount int) {
	_ = pBar.bar.Add(amount)
}

// Done finishes the progress bar, and restores the cursor.
func (pBar *ProgressBar) Done() {
	_ = pBar.bar.Finish()
	pBar.termenv.ShowCursor()
	_, _ = fmt.Fprintln(pBar.writer)
}
