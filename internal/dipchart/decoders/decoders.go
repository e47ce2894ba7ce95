// SPDX-License-Identifier: Apache-2.0

// Package decoders holds the strategies that rebuild a strapping table from
// the digit stream of a chart's text layer.
package decoders

import "github.com/atgproj/atg-mcp/internal/dipchart"

// DefaultPipeline builds a Pipeline with every decoder registered.
// Order is the tie-break priority: concatenated, split, paired.
func DefaultPipeline() *dipchart.Pipeline {
	return dipchart.NewPipeline(
		NewConcatenated(DefaultLayout),
		NewSplit(),
		NewPaired(),
	)
}

// Reconstruct rebuilds a strapping table from chart text. It never fails;
// an empty Result.Table means no usable calibration data was found.
func Reconstruct(text string, limits dipchart.Limits) dipchart.Result {
	return DefaultPipeline().Run(text, limits)
}
