// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/atgproj/atg-mcp/internal/ingest"
	"github.com/atgproj/atg-mcp/internal/tank"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MetadataProcessReading describes the process_reading tool.
var MetadataProcessReading = &mcp.Tool{
	Name: "process_reading",
	Description: "Calibrate one raw gauge reading. Returns offset-corrected product and water levels " +
		"and the volume computed from the raw product level. The reading is archived when an " +
		"archive is configured. Tanks without any strapping table get volume 0.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"tank_id", "product_mm"},
		"properties": map[string]interface{}{
			"tank_id":    tankIDProp,
			"product_mm": numberProp("Raw product level in mm."),
			"water_mm":   numberProp("Raw water level in mm."),
			"temp_c":     numberProp("Product temperature in degrees Celsius."),
			"status":     stringProp("Gauge status string, stored as-is."),
			"time":       stringProp("RFC 3339 timestamp of the reading. Defaults to now."),
		},
	},
}

// InputProcessReading is the input for the ProcessReading tool.
type InputProcessReading struct {
	TankID    string  `json:"tank_id"`
	ProductMm float64 `json:"product_mm"`
	WaterMm   float64 `json:"water_mm"`
	TempC     float64 `json:"temp_c"`
	Status    string  `json:"status"`
	Time      string  `json:"time"`
}

// OutputProcessReading is the output for the ProcessReading tool.
type OutputProcessReading struct {
	TankID              string  `json:"tank_id"`
	Time                string  `json:"time"`
	RawProductMm        float64 `json:"raw_product_mm"`
	RawWaterMm          float64 `json:"raw_water_mm"`
	ProductMm           float64 `json:"product_mm"`
	WaterMm             float64 `json:"water_mm"`
	TempC               float64 `json:"temp_c"`
	VolumeL             float64 `json:"volume_l"`
	HasChart            bool    `json:"has_chart"`
	Status              string  `json:"status,omitempty"`
	ProductOffsetMm     float64 `json:"product_offset_mm"`
	WaterOffsetMm       float64 `json:"water_offset_mm"`
	PendingArchiveCount int     `json:"pending_archive_count"`
}

// ProcessReading calibrates and archives a gauge reading.
func (s *Service) ProcessReading(ctx context.Context, _ *mcp.CallToolRequest, input InputProcessReading) (*mcp.CallToolResult, OutputProcessReading, error) {
	r := ingest.Reading{
		TankID:    input.TankID,
		ProductMm: input.ProductMm,
		WaterMm:   input.WaterMm,
		TempC:     input.TempC,
		Status:    input.Status,
	}
	if input.Time != "" {
		ts, err := time.Parse(time.RFC3339, input.Time)
		if err != nil {
			return nil, OutputProcessReading{}, fmt.Errorf("time: %w", err)
		}
		r.Time = ts
	}

	p, err := s.processor.Process(ctx, r)
	if err != nil {
		return nil, OutputProcessReading{}, err
	}
	out := OutputProcessReading{
		TankID:          p.TankID,
		Time:            p.Time.Format(time.RFC3339Nano),
		RawProductMm:    p.ProductMm,
		RawWaterMm:      p.WaterMm,
		ProductMm:       p.CalibratedProductMm,
		WaterMm:         p.CalibratedWaterMm,
		TempC:           p.TempC,
		VolumeL:         p.VolumeL,
		HasChart:        p.HasChart,
		Status:          p.Status,
		ProductOffsetMm: p.Offset.ProductMm,
		WaterOffsetMm:   p.Offset.WaterMm,
	}
	if s.archive != nil {
		out.PendingArchiveCount = s.archive.Pending()
	}
	return nil, out, nil
}

// MetadataReadingHistory describes the reading_history tool.
var MetadataReadingHistory = &mcp.Tool{
	Name: "reading_history",
	Description: "Return the archived, calibrated readings of a tank in time order. Buffered " +
		"readings are flushed first. Fails when no archive is configured.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"tank_id"},
		"properties": map[string]interface{}{
			"tank_id": tankIDProp,
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Return only the most recent readings. 0 returns all.",
			},
		},
	},
}

// InputReadingHistory is the input for the ReadingHistory tool.
type InputReadingHistory struct {
	TankID string `json:"tank_id"`
	Limit  int    `json:"limit"`
}

// HistorySample is one archived reading.
type HistorySample struct {
	Time      string  `json:"time"`
	ProductMm float64 `json:"product_mm"`
	WaterMm   float64 `json:"water_mm"`
	VolumeL   float64 `json:"volume_l"`
	TempC     float64 `json:"temp_c"`
	Status    string  `json:"status,omitempty"`
}

// OutputReadingHistory is the output for the ReadingHistory tool.
type OutputReadingHistory struct {
	TankID  string          `json:"tank_id"`
	Samples []HistorySample `json:"samples"`
}

// ReadingHistory returns the archived readings of a tank.
func (s *Service) ReadingHistory(ctx context.Context, _ *mcp.CallToolRequest, input InputReadingHistory) (*mcp.CallToolResult, OutputReadingHistory, error) {
	if err := tank.ValidateID(input.TankID); err != nil {
		return nil, OutputReadingHistory{}, err
	}
	if s.archive == nil {
		return nil, OutputReadingHistory{}, fmt.Errorf("reading archive is not configured")
	}
	if err := s.archive.Flush(ctx); err != nil {
		return nil, OutputReadingHistory{}, err
	}
	samples, err := s.archive.Samples(ctx, input.TankID)
	if err != nil {
		return nil, OutputReadingHistory{}, err
	}
	if input.Limit > 0 && len(samples) > input.Limit {
		samples = samples[len(samples)-input.Limit:]
	}

	out := OutputReadingHistory{TankID: input.TankID, Samples: make([]HistorySample, len(samples))}
	for i, smp := range samples {
		out.Samples[i] = HistorySample{
			Time:      smp.Time.Format(time.RFC3339Nano),
			ProductMm: smp.ProductMm,
			WaterMm:   smp.WaterMm,
			VolumeL:   smp.VolumeL,
			TempC:     smp.TempC,
			Status:    smp.Status,
		}
	}
	return nil, out, nil
}
