// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"log/slog"
	"sort"

	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/atgproj/atg-mcp/internal/logging"
	"github.com/atgproj/atg-mcp/internal/tank"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MetadataInterpolateVolume describes the interpolate_volume tool.
var MetadataInterpolateVolume = &mcp.Tool{
	Name: "interpolate_volume",
	Description: "Convert a raw product level into liters using the tank's strapping table. The " +
		"tank's product offset is subtracted first (never below 0). Levels outside the table " +
		"saturate at its first or last volume. Tanks without their own table use the default one.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"tank_id", "product_mm"},
		"properties": map[string]interface{}{
			"tank_id":    tankIDProp,
			"product_mm": numberProp("Raw product level reported by the gauge, in mm."),
		},
	},
}

// InputInterpolateVolume is the input for the InterpolateVolume tool.
type InputInterpolateVolume struct {
	TankID    string  `json:"tank_id"`
	ProductMm float64 `json:"product_mm"`
}

// OutputInterpolateVolume is the output for the InterpolateVolume tool.
type OutputInterpolateVolume struct {
	TankID              string  `json:"tank_id"`
	RawProductMm        float64 `json:"raw_product_mm"`
	CalibratedProductMm float64 `json:"calibrated_product_mm"`
	VolumeL             float64 `json:"volume_l"`
	// ChartTankID is the tank whose table was used; "default" on fallback.
	ChartTankID   string `json:"chart_tank_id"`
	ChartRevision string `json:"chart_revision"`
}

// InterpolateVolume returns the volume held at a raw product level.
func (s *Service) InterpolateVolume(_ context.Context, _ *mcp.CallToolRequest, input InputInterpolateVolume) (*mcp.CallToolResult, OutputInterpolateVolume, error) {
	if err := tank.ValidateID(input.TankID); err != nil {
		return nil, OutputInterpolateVolume{}, err
	}
	vol, err := s.store.Volume(input.TankID, input.ProductMm)
	if err != nil {
		return nil, OutputInterpolateVolume{}, err
	}
	chart, _ := s.store.Chart(input.TankID)
	return nil, OutputInterpolateVolume{
		TankID:              input.TankID,
		RawProductMm:        input.ProductMm,
		CalibratedProductMm: dipchart.CalibrateProduct(input.ProductMm, s.store.Offset(input.TankID)),
		VolumeL:             vol,
		ChartTankID:         chart.TankID,
		ChartRevision:       chart.Revision,
	}, nil
}

// MetadataCalibrateWater describes the calibrate_water tool.
var MetadataCalibrateWater = &mcp.Tool{
	Name:        "calibrate_water",
	Description: "Apply the tank's water offset to a raw water level. The result never goes below 0.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"tank_id", "water_mm"},
		"properties": map[string]interface{}{
			"tank_id":  tankIDProp,
			"water_mm": numberProp("Raw water level reported by the gauge, in mm."),
		},
	},
}

// InputCalibrateWater is the input for the CalibrateWater tool.
type InputCalibrateWater struct {
	TankID  string  `json:"tank_id"`
	WaterMm float64 `json:"water_mm"`
}

// OutputCalibrateWater is the output for the CalibrateWater tool.
type OutputCalibrateWater struct {
	TankID            string  `json:"tank_id"`
	RawWaterMm        float64 `json:"raw_water_mm"`
	CalibratedWaterMm float64 `json:"calibrated_water_mm"`
}

// CalibrateWater corrects a raw water level.
func (s *Service) CalibrateWater(_ context.Context, _ *mcp.CallToolRequest, input InputCalibrateWater) (*mcp.CallToolResult, OutputCalibrateWater, error) {
	if err := tank.ValidateID(input.TankID); err != nil {
		return nil, OutputCalibrateWater{}, err
	}
	return nil, OutputCalibrateWater{
		TankID:            input.TankID,
		RawWaterMm:        input.WaterMm,
		CalibratedWaterMm: dipchart.CalibrateWater(input.WaterMm, s.store.Offset(input.TankID)),
	}, nil
}

// Calibration is the stored state of one tank.
type Calibration struct {
	TankID          string  `json:"tank_id"`
	ProductOffsetMm float64 `json:"product_offset_mm"`
	WaterOffsetMm   float64 `json:"water_offset_mm"`
	// HasChart is false when the tank would fall back to the default table.
	HasChart      bool   `json:"has_chart"`
	ChartRevision string `json:"chart_revision,omitempty"`
	ChartEntries  int    `json:"chart_entries"`
}

func (s *Service) calibration(tankID string) Calibration {
	off := s.store.Offset(tankID)
	c := Calibration{TankID: tankID, ProductOffsetMm: off.ProductMm, WaterOffsetMm: off.WaterMm}
	if chart, ok := s.store.Chart(tankID); ok && chart.TankID == tankID {
		c.HasChart = true
		c.ChartRevision = chart.Revision
		c.ChartEntries = len(chart.Table)
	}
	return c
}

// MetadataGetCalibration describes the get_calibration tool.
var MetadataGetCalibration = &mcp.Tool{
	Name:        "get_calibration",
	Description: "Return the product and water offsets of a tank and whether it has its own strapping table. Unknown tanks report zero offsets.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"tank_id"},
		"properties": map[string]interface{}{
			"tank_id": tankIDProp,
		},
	},
}

// InputGetCalibration is the input for the GetCalibration tool.
type InputGetCalibration struct {
	TankID string `json:"tank_id"`
}

// GetCalibration returns the calibration of one tank.
func (s *Service) GetCalibration(_ context.Context, _ *mcp.CallToolRequest, input InputGetCalibration) (*mcp.CallToolResult, Calibration, error) {
	if err := tank.ValidateID(input.TankID); err != nil {
		return nil, Calibration{}, err
	}
	return nil, s.calibration(input.TankID), nil
}

// MetadataSetCalibration describes the set_calibration tool.
var MetadataSetCalibration = &mcp.Tool{
	Name: "set_calibration",
	Description: "Store the product and water offsets of a tank. Both are subtracted from raw gauge " +
		"readings; omitted values are stored as 0. Takes effect for every later lookup.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"tank_id"},
		"properties": map[string]interface{}{
			"tank_id":           tankIDProp,
			"product_offset_mm": numberProp("Offset subtracted from raw product levels, in mm."),
			"water_offset_mm":   numberProp("Offset subtracted from raw water levels, in mm."),
		},
	},
}

// InputSetCalibration is the input for the SetCalibration tool.
type InputSetCalibration struct {
	TankID          string  `json:"tank_id"`
	ProductOffsetMm float64 `json:"product_offset_mm"`
	WaterOffsetMm   float64 `json:"water_offset_mm"`
}

// SetCalibration persists new offsets for a tank.
func (s *Service) SetCalibration(ctx context.Context, _ *mcp.CallToolRequest, input InputSetCalibration) (*mcp.CallToolResult, Calibration, error) {
	off := dipchart.Offset{ProductMm: input.ProductOffsetMm, WaterMm: input.WaterOffsetMm}
	if err := s.store.SetOffset(ctx, input.TankID, off); err != nil {
		return nil, Calibration{}, err
	}
	return nil, s.calibration(input.TankID), nil
}

// MetadataListCalibrations describes the list_calibrations tool.
var MetadataListCalibrations = &mcp.Tool{
	Name:        "list_calibrations",
	Description: "List every tank that has a strapping table or calibration offsets, ordered by tank id.",
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	},
}

// InputListCalibrations is the input for the ListCalibrations tool.
type InputListCalibrations struct{}

// OutputListCalibrations is the output for the ListCalibrations tool.
type OutputListCalibrations struct {
	Tanks []Calibration `json:"tanks"`
}

// ListCalibrations returns the calibration of every known tank.
func (s *Service) ListCalibrations(_ context.Context, _ *mcp.CallToolRequest, _ InputListCalibrations) (*mcp.CallToolResult, OutputListCalibrations, error) {
	ids := make(map[string]struct{})
	for _, c := range s.store.Charts() {
		ids[c.TankID] = struct{}{}
	}
	for id := range s.store.Offsets() {
		ids[id] = struct{}{}
	}

	out := OutputListCalibrations{Tanks: make([]Calibration, 0, len(ids))}
	for id := range ids {
		out.Tanks = append(out.Tanks, s.calibration(id))
	}
	sort.Slice(out.Tanks, func(i, j int) bool { return out.Tanks[i].TankID < out.Tanks[j].TankID })
	return nil, out, nil
}

// MetadataDeleteTank describes the delete_tank tool.
var MetadataDeleteTank = &mcp.Tool{
	Name:        "delete_tank",
	Description: "Remove a tank's strapping table, calibration offsets and not yet archived readings.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"tank_id"},
		"properties": map[string]interface{}{
			"tank_id": tankIDProp,
		},
	},
}

// InputDeleteTank is the input for the DeleteTank tool.
type InputDeleteTank struct {
	TankID string `json:"tank_id"`
}

// OutputDeleteTank is the output for the DeleteTank tool.
type OutputDeleteTank struct {
	TankID            string `json:"tank_id"`
	DiscardedReadings int    `json:"discarded_readings"`
}

// DeleteTank forgets everything stored for a tank.
func (s *Service) DeleteTank(ctx context.Context, _ *mcp.CallToolRequest, input InputDeleteTank) (*mcp.CallToolResult, OutputDeleteTank, error) {
	if err := s.store.Delete(ctx, input.TankID); err != nil {
		return nil, OutputDeleteTank{}, err
	}
	out := OutputDeleteTank{TankID: input.TankID}
	if s.archive != nil {
		out.DiscardedReadings = s.archive.Discard(input.TankID)
	}
	logging.Logger().Info("tank removed", slog.String("tank", input.TankID), slog.Int("discarded_readings", out.DiscardedReadings))
	return nil, out, nil
}

// MetadataReloadCalibrations describes the reload_calibrations tool.
var MetadataReloadCalibrations = &mcp.Tool{
	Name: "reload_calibrations",
	Description: "Re-read every strapping table and calibration offset from storage, replacing " +
		"what the server holds in memory. Use after editing the data directory by hand.",
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	},
}

// InputReloadCalibrations is the input for the ReloadCalibrations tool.
type InputReloadCalibrations struct{}

// OutputReloadCalibrations is the output for the ReloadCalibrations tool.
type OutputReloadCalibrations struct {
	Charts       int `json:"charts"`
	Calibrations int `json:"calibrations"`
}

// ReloadCalibrations replaces the in-memory state with the stored one.
func (s *Service) ReloadCalibrations(ctx context.Context, _ *mcp.CallToolRequest, _ InputReloadCalibrations) (*mcp.CallToolResult, OutputReloadCalibrations, error) {
	if err := s.store.Reload(ctx); err != nil {
		return nil, OutputReloadCalibrations{}, err
	}
	return nil, OutputReloadCalibrations{
		Charts:       len(s.store.Charts()),
		Calibrations: len(s.store.Offsets()),
	}, nil
}
