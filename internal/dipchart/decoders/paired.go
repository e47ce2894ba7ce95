// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"strconv"

	"github.com/atgproj/atg-mcp/internal/dipchart"
)

// Paired decodes clean two-column charts where depth and volume appear as
// separate numbers. Every consecutive pair of tokens is tried.
type Paired struct{}

// NewPaired creates a Paired decoder.
func NewPaired() *Paired {
	return &Paired{}
}

func (d *Paired) Method() dipchart.Method {
	return dipchart.MethodPaired
}

func (d *Paired) CanHandle(dipchart.Tokens) bool {
	return true
}

// Decode keeps the higher volume when a depth repeats; a smaller volume at
// the same depth is treated as noise.
func (d *Paired) Decode(tokens dipchart.Tokens, limits dipchart.Limits) dipchart.Candidate {
	byDepth := make(map[int]float64)
	for i := 0; i+1 < len(tokens.All); i++ {
		depth, err := strconv.Atoi(tokens.All[i].Digits)
		if err != nil || !limits.DepthInRange(depth) {
			continue
		}
		v, err := strconv.Atoi(tokens.All[i+1].Digits)
		if err != nil {
			continue
		}
		volume := float64(v)
		if !limits.VolumeInRange(volume) {
			continue
		}
		if existing, ok := byDepth[depth]; !ok || existing < volume {
			byDepth[depth] = volume
		}
	}
	return dipchart.Candidate{
		Method: dipchart.MethodPaired,
		Pairs:  dipchart.FilterMonotonic(dipchart.FromMap(byDepth)),
	}
}
