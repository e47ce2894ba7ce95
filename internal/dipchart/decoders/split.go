// SPDX-License-Identifier: Apache-2.0

package decoders

import (
	"math"
	"strconv"

	"github.com/atgproj/atg-mcp/internal/dipchart"
)

const (
	maxDepthDigits = 4
	// preferredRatio is the liters-per-millimeter a split is scored against.
	preferredRatio = 10.0
	// idealRatio settles depth collisions between two tokens.
	idealRatio       = 15.0
	offRangePenalty  = 1000.0
	plausibleMinRate = 1.0
	plausibleMaxRate = 30.0
)

// Split decodes charts whose depth and volume columns were fused into one
// token without a separator ("1121" is depth 11, volume 21). Each token is
// split where the volume-per-millimeter ratio looks most like a real tank.
type Split struct{}

// NewSplit creates a Split decoder.
func NewSplit() *Split {
	return &Split{}
}

func (d *Split) Method() dipchart.Method {
	return dipchart.MethodSplit
}

// CanHandle always returns true; tokens without a valid split are skipped.
func (d *Split) CanHandle(dipchart.Tokens) bool {
	return true
}

func (d *Split) Decode(tokens dipchart.Tokens, limits dipchart.Limits) dipchart.Candidate {
	byDepth := make(map[int]float64)
	for _, tok := range tokens.All {
		if len(tok.Digits) < 2 {
			continue
		}
		best, ok := BestSplit(tok.Digits, limits)
		if !ok {
			continue
		}
		existing, seen := byDepth[best.Depth]
		if !seen || collisionDistance(best.Volume, best.Depth) < collisionDistance(existing, best.Depth) {
			byDepth[best.Depth] = best.Volume
		}
	}
	return dipchart.Candidate{
		Method: dipchart.MethodSplit,
		Pairs:  dipchart.FilterMonotonic(dipchart.FromMap(byDepth)),
	}
}

// BestSplit returns the lowest-scoring way to read digits as a 1-4 digit
// depth followed by a volume. Ties go to the shorter depth prefix.
func BestSplit(digits string, limits dipchart.Limits) (dipchart.Pair, bool) {
	var (
		best      dipchart.Pair
		bestScore = math.Inf(1)
		found     bool
	)
	for pos := 1; pos <= min(maxDepthDigits, len(digits)-1); pos++ {
		score, pair, ok := scoreSplit(digits[:pos], digits[pos:], limits)
		if !ok {
			continue
		}
		if score < bestScore {
			best, bestScore, found = pair, score, true
		}
	}
	return best, found
}

func scoreSplit(depthStr, volumeStr string, limits dipchart.Limits) (float64, dipchart.Pair, bool) {
	if len(volumeStr) > 1 && volumeStr[0] == '0' {
		return 0, dipchart.Pair{}, false
	}
	depth, err := strconv.Atoi(depthStr)
	if err != nil {
		return 0, dipchart.Pair{}, false
	}
	v, err := strconv.Atoi(volumeStr)
	if err != nil {
		return 0, dipchart.Pair{}, false
	}
	volume := float64(v)
	if !limits.DepthInRange(depth) || !limits.VolumeInRange(volume) {
		return 0, dipchart.Pair{}, false
	}

	// the first few millimeters of a tank hold a handful of liters
	if depth <= 5 && (volume < 5 || volume > 50) {
		return 0, dipchart.Pair{}, false
	}
	if depth > 5 && depth <= 20 && volume > float64(depth*10) {
		return 0, dipchart.Pair{}, false
	}

	ratio := volume / float64(max(depth, 1))
	if depth > 10 && (ratio < 0.5 || ratio > 100) {
		return 0, dipchart.Pair{}, false
	}

	score := math.Abs(ratio - preferredRatio)
	if ratio < plausibleMinRate || ratio > plausibleMaxRate {
		score += offRangePenalty
	}
	return score, dipchart.Pair{Depth: depth, Volume: volume}, true
}

func collisionDistance(volume float64, depth int) float64 {
	return math.Abs(volume/float64(max(depth, 1)) - idealRatio)
}
