// SPDX-License-Identifier: Apache-2.0

package dipchart

import (
	"math"
	"sort"
)

const (
	// maxLitresPerMm is the steepest average slope accepted between two
	// consecutive kept entries.
	maxLitresPerMm = 30.0
	// smallGapMm and minJumpL bound the absolute volume step allowed across
	// a short depth gap.
	smallGapMm = 5
	minJumpL   = 100.0
)

// FromMap returns the entries of byDepth sorted by depth.
func FromMap(byDepth map[int]float64) Table {
	out := make(Table, 0, len(byDepth))
	for d, v := range byDepth {
		out = append(out, Pair{Depth: d, Volume: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out
}

// FilterMonotonic drops entries that would break increasing volume with depth
// or that jump implausibly far from the previous kept entry. pairs must be
// sorted by depth with duplicates already collapsed.
func FilterMonotonic(pairs Table) Table {
	if len(pairs) == 0 {
		return Table{}
	}

	out := make(Table, 0, len(pairs))
	lastDepth, lastVolume := -1, -1.0
	for _, p := range pairs {
		if p.Volume <= lastVolume {
			continue
		}

		if lastVolume > 0 && lastDepth >= 0 {
			gap := p.Depth - lastDepth
			jump := p.Volume - lastVolume
			if jump/float64(gap) > maxLitresPerMm {
				continue
			}
			if gap <= smallGapMm && jump > math.Max(minJumpL, lastVolume*0.5) {
				continue
			}
		}

		out = append(out, p)
		lastDepth, lastVolume = p.Depth, p.Volume
	}
	return out
}
