// SPDX-License-Identifier: Apache-2.0

package dipchart

import (
	"math"
	"sort"
)

// Volume converts a raw product depth into liters using table and the tank's
// offset. The offset is subtracted first and the result never goes below
// zero. Depths outside the table saturate at its first or last volume; an
// empty table yields 0.
func Volume(table Table, offset Offset, rawDepthMm float64) float64 {
	if len(table) == 0 {
		return 0
	}
	depth := CalibrateProduct(rawDepthMm, offset)

	if depth <= float64(table.First().Depth) {
		return table.First().Volume
	}
	if depth >= float64(table.Last().Depth) {
		return table.Last().Volume
	}

	// first entry strictly deeper than depth; always in [1, len-1] here
	hi := sort.Search(len(table), func(i int) bool { return float64(table[i].Depth) > depth })
	lower, upper := table[hi-1], table[hi]

	span := upper.Depth - lower.Depth
	if span == 0 {
		return lower.Volume
	}
	frac := (depth - float64(lower.Depth)) / float64(span)
	return round2(lower.Volume + frac*(upper.Volume-lower.Volume))
}

// CalibrateProduct applies the product offset to a raw depth, clamped at zero.
// A NaN reading counts as zero.
func CalibrateProduct(rawProductMm float64, offset Offset) float64 {
	return clampOffset(rawProductMm, offset.ProductMm)
}

// CalibrateWater applies the water offset to a raw water level, clamped at
// zero. No table is involved.
func CalibrateWater(rawWaterMm float64, offset Offset) float64 {
	return clampOffset(rawWaterMm, offset.WaterMm)
}

func clampOffset(raw, offset float64) float64 {
	v := raw - offset
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
