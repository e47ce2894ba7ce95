// SPDX-License-Identifier: Apache-2.0

// Package ingest calibrates raw gauge readings and archives them as
// compact time series.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/atgproj/atg-mcp/internal/logging"
	"github.com/atgproj/atg-mcp/internal/tank"
)

// Reading is one raw sample reported by a tank gauge.
type Reading struct {
	TankID    string    `json:"tank_id"`
	ProductMm float64   `json:"product_mm"`
	WaterMm   float64   `json:"water_mm"`
	TempC     float64   `json:"temp_c"`
	Status    string    `json:"status,omitempty"`
	Time      time.Time `json:"time"`
}

// Processed is a reading after calibration. Product and water are the
// displayed, offset-corrected levels; VolumeL is computed from the raw
// product level so the offset is applied exactly once.
type Processed struct {
	Reading
	CalibratedProductMm float64         `json:"calibrated_product_mm"`
	CalibratedWaterMm   float64         `json:"calibrated_water_mm"`
	VolumeL             float64         `json:"volume_l"`
	HasChart            bool            `json:"has_chart"`
	Offset              dipchart.Offset `json:"offset"`
}

// Calibrator supplies offsets and volumes for a tank.
type Calibrator interface {
	Offset(tankID string) dipchart.Offset
	Volume(tankID string, rawDepthMm float64) (float64, error)
}

// Processor turns raw readings into calibrated ones and hands them to an
// optional archive.
type Processor struct {
	calibrator Calibrator
	archive    *Archive
	now        func() time.Time
}

// NewProcessor creates a Processor. archive may be nil.
func NewProcessor(calibrator Calibrator, archive *Archive) *Processor {
	return &Processor{calibrator: calibrator, archive: archive, now: time.Now}
}

// Process calibrates r. A tank without any strapping table gets volume 0
// rather than an error.
func (p *Processor) Process(ctx context.Context, r Reading) (Processed, error) {
	if err := tank.ValidateID(r.TankID); err != nil {
		return Processed{}, err
	}
	for name, v := range map[string]float64{"product_mm": r.ProductMm, "water_mm": r.WaterMm, "temp_c": r.TempC} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Processed{}, fmt.Errorf("reading for %s: %s is not a finite number", r.TankID, name)
		}
	}
	if r.Time.IsZero() {
		r.Time = p.now()
	}
	r.Time = r.Time.UTC()

	offset := p.calibrator.Offset(r.TankID)
	out := Processed{
		Reading:             r,
		CalibratedProductMm: dipchart.CalibrateProduct(r.ProductMm, offset),
		CalibratedWaterMm:   dipchart.CalibrateWater(r.WaterMm, offset),
		Offset:              offset,
	}

	vol, err := p.calibrator.Volume(r.TankID, r.ProductMm)
	switch {
	case err == nil:
		out.VolumeL = vol
		out.HasChart = true
	case errors.Is(err, tank.ErrUnknownTank):
	default:
		return Processed{}, err
	}

	log := logging.Logger()
	if !offset.IsZero() {
		log.Debug("calibration applied",
			slog.String("tank", r.TankID),
			slog.Float64("raw_product_mm", r.ProductMm),
			slog.Float64("product_mm", out.CalibratedProductMm),
			slog.Float64("raw_water_mm", r.WaterMm),
			slog.Float64("water_mm", out.CalibratedWaterMm))
	}

	if p.archive != nil {
		p.archive.Append(ctx, out)
	}
	return out, nil
}
