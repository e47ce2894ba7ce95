// SPDX-License-Identifier: Apache-2.0

package dipchart

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Pair is one row of a strapping table: product depth in millimeters and the
// volume held at that depth in liters.
type Pair struct {
	Depth  int     `json:"depth" yaml:"depth"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// Table is a strapping (DIP) table ordered by strictly increasing depth.
type Table []Pair

// First returns the shallowest entry. The table must not be empty.
func (t Table) First() Pair { return t[0] }

// Last returns the deepest entry. The table must not be empty.
func (t Table) Last() Pair { return t[len(t)-1] }

// Clone returns a copy that shares no memory with t.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// Fingerprint hashes depths and volumes so two uploads of the same chart can
// be recognised without comparing every row.
func (t Table) Fingerprint() string {
	d := xxhash.New()
	var buf [16]byte
	for _, p := range t {
		binary.LittleEndian.PutUint64(buf[:8], uint64(p.Depth))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(p.Volume))
		_, _ = d.Write(buf[:])
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Method names a decoding strategy.
type Method string

const (
	MethodConcatenated Method = "concatenated"
	MethodSplit        Method = "split"
	MethodPaired       Method = "paired"
)

// Candidate is the output of a single decoder before selection.
type Candidate struct {
	Method Method `json:"method"`
	Pairs  Table  `json:"pairs"`
}

// Limits bounds the depths and volumes a decoder may accept.
type Limits struct {
	MaxDepthMm int     `json:"max_depth_mm" yaml:"max_depth_mm"`
	MaxVolumeL float64 `json:"max_volume_l" yaml:"max_volume_l"`
}

// DefaultLimits returns the bounds used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxDepthMm: 3000, MaxVolumeL: 55000}
}

// DepthInRange reports whether depth lies in [0, MaxDepthMm].
func (l Limits) DepthInRange(depth int) bool {
	return depth >= 0 && depth <= l.MaxDepthMm
}

// VolumeInRange reports whether volume lies in (0, MaxVolumeL].
func (l Limits) VolumeInRange(volume float64) bool {
	return volume > 0 && volume <= l.MaxVolumeL
}

// Decoder turns the tokens of a chart into a candidate table.
type Decoder interface {
	Method() Method
	// CanHandle reports whether the decoder has anything to work on.
	CanHandle(tokens Tokens) bool
	// Decode must be deterministic and must not fail: tokens that cannot be
	// interpreted are skipped.
	Decode(tokens Tokens, limits Limits) Candidate
}

// Offset is the per-tank correction subtracted from raw sensor readings.
// The zero value means no correction.
type Offset struct {
	ProductMm float64 `json:"product_offset_mm" yaml:"product_offset_mm"`
	WaterMm   float64 `json:"water_offset_mm" yaml:"water_offset_mm"`
}

// IsZero reports whether the offset applies no correction.
func (o Offset) IsZero() bool { return o.ProductMm == 0 && o.WaterMm == 0 }
