// SPDX-License-Identifier: Apache-2.0

package decoders

// ColumnLayout describes where each column of a multi-column chart starts.
// Rows are numbered across the whole document; row k sits on page
// k/RowsPerPage and holds depth base+(k%RowsPerPage)*RowStepMm for each
// base of that page. Rows past the last page reuse the last page.
//
// The layout is fitted to one document family. A chart printed with another
// row count or page structure needs its own ColumnLayout.
type ColumnLayout struct {
	RowsPerPage int
	RowStepMm   int
	Pages       [][]int

	// TailPrefix and TailMinDepth describe the single-column remainder that
	// some charts print as standalone 4-digit depth + 5-digit volume tokens.
	TailPrefix   string
	TailMinDepth int
}

// DefaultLayout is a 3-page chart with four 350 mm columns per page and a
// final single column starting at 2800 mm.
var DefaultLayout = ColumnLayout{
	RowsPerPage: 35,
	RowStepMm:   10,
	Pages: [][]int{
		{0, 350, 700, 1050},
		{1400, 1750, 2100, 2450},
		{2800},
	},
	TailPrefix:   "28",
	TailMinDepth: 2800,
}

// ExpectedDepths returns the depths printed on the given row, dropping any
// deeper than maxDepth.
func (l ColumnLayout) ExpectedDepths(row, maxDepth int) []int {
	if len(l.Pages) == 0 || l.RowsPerPage <= 0 || row < 0 {
		return nil
	}
	page := min(row/l.RowsPerPage, len(l.Pages)-1)
	local := row % l.RowsPerPage

	depths := make([]int, 0, len(l.Pages[page]))
	for _, base := range l.Pages[page] {
		d := base + local*l.RowStepMm
		if d <= maxDepth {
			depths = append(depths, d)
		}
	}
	return depths
}
