// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"strconv"
	"strings"

	"github.com/atgproj/atg-mcp/internal/dipchart"
)

const (
	// fallbackVolumeWidth is how many digits a volume takes when the next
	// column's depth cannot be found.
	fallbackVolumeWidth = 5
	tailTokenLen        = 9
	tailDepthDigits     = 4
)

// Concatenated decodes charts whose text layer renders each printed row as one
// unbroken digit string, e.g. "0735034087009254105016252" for the row holding
// depths 0, 350, 700 and 1050. Column depths come from a ColumnLayout.
type Concatenated struct {
	layout ColumnLayout
}

// NewConcatenated creates a Concatenated decoder using layout.
func NewConcatenated(layout ColumnLayout) *Concatenated {
	return &Concatenated{layout: layout}
}

func (d *Concatenated) Method() dipchart.Method {
	return dipchart.MethodConcatenated
}

// CanHandle returns true when at least one concatenated row exists.
func (d *Concatenated) CanHandle(tokens dipchart.Tokens) bool {
	return len(tokens.Rows) > 0
}

// Decode keeps the first volume seen for each depth.
func (d *Concatenated) Decode(tokens dipchart.Tokens, limits dipchart.Limits) dipchart.Candidate {
	byDepth := make(map[int]float64)
	keep := func(p dipchart.Pair) {
		if _, ok := byDepth[p.Depth]; !ok {
			byDepth[p.Depth] = p.Volume
		}
	}

	for i, row := range tokens.Rows {
		depths := d.layout.ExpectedDepths(i, limits.MaxDepthMm)
		for _, p := range ParseRow(row.Digits, depths, limits) {
			keep(p)
		}
	}
	for _, p := range d.tailPairs(tokens, limits) {
		keep(p)
	}

	return dipchart.Candidate{
		Method: dipchart.MethodConcatenated,
		Pairs:  dipchart.FilterMonotonic(dipchart.FromMap(byDepth)),
	}
}

// tailPairs reads standalone tokens such as "280049523" (depth 2800,
// volume 49523).
func (d *Concatenated) tailPairs(tokens dipchart.Tokens, limits dipchart.Limits) []dipchart.Pair {
	if d.layout.TailPrefix == "" {
		return nil
	}
	var out []dipchart.Pair
	for _, tok := range tokens.All {
		if len(tok.Digits) != tailTokenLen || !strings.HasPrefix(tok.Digits, d.layout.TailPrefix) {
			continue
		}
		if !tokens.Isolated(tok) {
			continue
		}
		depth, err := strconv.Atoi(tok.Digits[:tailDepthDigits])
		if err != nil {
			continue
		}
		v, err := strconv.Atoi(tok.Digits[tailDepthDigits:])
		if err != nil {
			continue
		}
		volume := float64(v)
		if depth < d.layout.TailMinDepth || depth > limits.MaxDepthMm || !limits.VolumeInRange(volume) {
			continue
		}
		out = append(out, dipchart.Pair{Depth: depth, Volume: volume})
	}
	return out
}

// ParseRow splits one concatenated row using the depths expected on it.
// Each depth is looked up in the unread part of the row, tolerating drift;
// its volume runs up to where the next expected depth appears, or takes a
// fixed width when that depth is missing. The last column takes the rest.
func ParseRow(row string, depths []int, limits dipchart.Limits) []dipchart.Pair {
	var out []dipchart.Pair
	rest := row
	for i, depth := range depths {
		marker := strconv.Itoa(depth)
		if !strings.HasPrefix(rest, marker) {
			idx := strings.Index(rest, marker)
			if idx < 0 {
				continue
			}
			rest = rest[idx:]
		}
		rest = rest[len(marker):]

		var volumeStr string
		if i+1 < len(depths) {
			next := strings.Index(rest, strconv.Itoa(depths[i+1]))
			if next > 0 {
				volumeStr, rest = rest[:next], rest[next:]
			} else {
				w := min(fallbackVolumeWidth, len(rest))
				volumeStr, rest = rest[:w], rest[w:]
			}
		} else {
			volumeStr, rest = rest, ""
		}

		v, err := strconv.Atoi(volumeStr)
		if err != nil {
			continue
		}
		if volume := float64(v); limits.VolumeInRange(volume) {
			out = append(out, dipchart.Pair{Depth: depth, Volume: volume})
		}
	}
	return out
}
