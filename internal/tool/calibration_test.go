// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"testing"

	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/atgproj/atg-mcp/internal/tank"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChart(t *testing.T, s *Service, tankID string) {
	t.Helper()
	require.NoError(t, s.store.PutChart(context.Background(), tank.Chart{
		TankID:   tankID,
		Revision: "rev-" + tankID,
		Method:   dipchart.MethodPaired,
		Table:    dipchart.Table{{Depth: 0, Volume: 10}, {Depth: 100, Volume: 1000}},
	}))
}

func TestInterpolateVolume(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	s := newService(t)
	seedChart(t, s, "T1")
	_, _, err := s.SetCalibration(ctx, req, InputSetCalibration{TankID: "T1", ProductOffsetMm: 20})
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   InputInterpolateVolume
		wantErr error
		want    OutputInterpolateVolume
	}{
		{
			name:  "offset applied before lookup",
			input: InputInterpolateVolume{TankID: "T1", ProductMm: 50},
			want: OutputInterpolateVolume{
				TankID: "T1", RawProductMm: 50, CalibratedProductMm: 30, VolumeL: 307,
				ChartTankID: "T1", ChartRevision: "rev-T1",
			},
		},
		{
			name:  "beyond the table saturates",
			input: InputInterpolateVolume{TankID: "T1", ProductMm: 5000},
			want: OutputInterpolateVolume{
				TankID: "T1", RawProductMm: 5000, CalibratedProductMm: 4980, VolumeL: 1000,
				ChartTankID: "T1", ChartRevision: "rev-T1",
			},
		},
		{
			name:    "unknown tank without default",
			input:   InputInterpolateVolume{TankID: "T2", ProductMm: 50},
			wantErr: tank.ErrUnknownTank,
		},
		{
			name:    "invalid id",
			input:   InputInterpolateVolume{TankID: "", ProductMm: 50},
			wantErr: tank.ErrInvalidTankID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := s.InterpolateVolume(ctx, req, tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, output)
		})
	}
}

func TestInterpolateVolume_DefaultFallback(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	seedChart(t, s, tank.DefaultTankID)

	_, output, err := s.InterpolateVolume(ctx, &mcp.CallToolRequest{}, InputInterpolateVolume{TankID: "T7", ProductMm: 50})
	require.NoError(t, err)
	assert.Equal(t, 505.0, output.VolumeL)
	assert.Equal(t, tank.DefaultTankID, output.ChartTankID)
}

func TestCalibrateWater(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	s := newService(t)
	_, _, err := s.SetCalibration(ctx, req, InputSetCalibration{TankID: "T1", WaterOffsetMm: 5})
	require.NoError(t, err)

	_, out, err := s.CalibrateWater(ctx, req, InputCalibrateWater{TankID: "T1", WaterMm: 8})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out.CalibratedWaterMm)

	_, out, err = s.CalibrateWater(ctx, req, InputCalibrateWater{TankID: "T1", WaterMm: 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.CalibratedWaterMm, "never below zero")

	_, out, err = s.CalibrateWater(ctx, req, InputCalibrateWater{TankID: "T9", WaterMm: 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out.CalibratedWaterMm, "no offset stored")
}

func TestCalibrationLifecycle(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	s := newService(t)
	seedChart(t, s, "T1")

	_, got, err := s.GetCalibration(ctx, req, InputGetCalibration{TankID: "T2"})
	require.NoError(t, err)
	assert.Equal(t, Calibration{TankID: "T2"}, got, "unknown tanks report zero offsets")

	_, got, err = s.SetCalibration(ctx, req, InputSetCalibration{TankID: "T2", ProductOffsetMm: 12.5, WaterOffsetMm: 3})
	require.NoError(t, err)
	assert.Equal(t, Calibration{TankID: "T2", ProductOffsetMm: 12.5, WaterOffsetMm: 3}, got)

	_, list, err := s.ListCalibrations(ctx, req, InputListCalibrations{})
	require.NoError(t, err)
	require.Len(t, list.Tanks, 2)
	assert.Equal(t, Calibration{TankID: "T1", HasChart: true, ChartRevision: "rev-T1", ChartEntries: 2}, list.Tanks[0])
	assert.Equal(t, "T2", list.Tanks[1].TankID)

	_, del, err := s.DeleteTank(ctx, req, InputDeleteTank{TankID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, OutputDeleteTank{TankID: "T1"}, del)

	_, list, err = s.ListCalibrations(ctx, req, InputListCalibrations{})
	require.NoError(t, err)
	require.Len(t, list.Tanks, 1)
	assert.Equal(t, "T2", list.Tanks[0].TankID)

	_, _, err = s.SetCalibration(ctx, req, InputSetCalibration{TankID: "bad/id"})
	assert.ErrorIs(t, err, tank.ErrInvalidTankID)
}

func TestReloadCalibrations(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	backend := tank.NewMemoryBackend()
	s := NewService(tank.NewStore(backend, dipchart.DefaultLimits()), nil)

	// written behind the store's back, as a hand edit of the data directory would be
	require.NoError(t, backend.SaveOffset(ctx, "T1", dipchart.Offset{ProductMm: 4}))
	require.NoError(t, backend.SaveChart(ctx, tank.Chart{
		TankID: "T1", Revision: "r1", Method: dipchart.MethodPaired,
		Table: dipchart.Table{{Depth: 0, Volume: 10}, {Depth: 100, Volume: 1000}},
	}))

	_, got, err := s.GetCalibration(ctx, req, InputGetCalibration{TankID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, Calibration{TankID: "T1"}, got)

	_, out, err := s.ReloadCalibrations(ctx, req, InputReloadCalibrations{})
	require.NoError(t, err)
	assert.Equal(t, OutputReloadCalibrations{Charts: 1, Calibrations: 1}, out)

	_, got, err = s.GetCalibration(ctx, req, InputGetCalibration{TankID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, Calibration{TankID: "T1", ProductOffsetMm: 4, HasChart: true, ChartRevision: "r1", ChartEntries: 2}, got)
}
