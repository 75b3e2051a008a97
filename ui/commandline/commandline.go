// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI tools for the command line: report tables, progress bars
// and formatting of durations and rates.
package commandline

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	redRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

// Table is a report table where rows can be highlighted in red, e.g. for failed checks.
type Table struct {
	table *lgtable.Table
	count int
	reds  map[int]bool
}

// NewTable creates a Table with the given headers. The first column is right aligned, the others left aligned.
func NewTable(headers ...string) *Table {
	t := &Table{reds: make(map[int]bool)}
	t.table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row == lgtable.HeaderRow {
				return headerRowStyle
			}
			switch {
			case t.reds[row]:
				s = redRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
	if len(headers) > 0 {
		t.table.Headers(headers...)
	}
	return t
}

// Row appends a row to the table, highlighted in red if isRed.
func (t *Table) Row(isRed bool, cells ...string) {
	if isRed {
		t.reds[t.count] = true
	}
	t.table.Row(cells...)
	t.count++
}

// NumRows returns the number of rows added so far, not counting the header.
func (t *Table) NumRows() int {
	return t.count
}

// Render returns the table as a string ready to be printed.
func (t *Table) Render() string {
	return t.table.Render()
}

// Title renders a section title.
func Title(title string) string {
	return titleStyle.Render(title)
}
