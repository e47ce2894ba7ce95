// SPDX-License-Identifier: Apache-2.0

package tank_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/atgproj/atg-mcp/internal/tank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fusedChart = "06 17 28 39 410 512 614"

func lineChart(id string) tank.Chart {
	return tank.Chart{
		TankID:   id,
		Revision: "r1",
		Method:   dipchart.MethodPaired,
		Table:    dipchart.Table{{Depth: 0, Volume: 10}, {Depth: 100, Volume: 1000}},
	}
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func TestStore_Volume(t *testing.T) {
	ctx := context.Background()
	s := tank.NewStore(tank.NewMemoryBackend(), dipchart.DefaultLimits())

	_, err := s.Volume("T1", 50)
	require.ErrorIs(t, err, tank.ErrUnknownTank)

	require.NoError(t, s.PutChart(ctx, lineChart("T1")))
	v, err := s.Volume("T1", 50)
	require.NoError(t, err)
	assert.Equal(t, 505.0, v)

	require.NoError(t, s.SetOffset(ctx, "T1", dipchart.Offset{ProductMm: 20}))
	v, err = s.Volume("T1", 50)
	require.NoError(t, err)
	assert.Equal(t, 307.0, v)
}

func TestStore_DefaultChartFallback(t *testing.T) {
	ctx := context.Background()
	s := tank.NewStore(tank.NewMemoryBackend(), dipchart.DefaultLimits())
	require.NoError(t, s.PutChart(ctx, lineChart(tank.DefaultTankID)))

	c, ok := s.Chart("ATG83729")
	require.True(t, ok)
	assert.Equal(t, tank.DefaultTankID, c.TankID)

	// the tank's own offset still applies to the shared chart
	require.NoError(t, s.SetOffset(ctx, "ATG83729", dipchart.Offset{ProductMm: 20}))
	v, err := s.Volume("ATG83729", 50)
	require.NoError(t, err)
	assert.Equal(t, 307.0, v)
}

func TestStore_OffsetDefaultsToZero(t *testing.T) {
	s := tank.NewStore(tank.NewMemoryBackend(), dipchart.DefaultLimits())
	assert.True(t, s.Offset("nobody").IsZero())
	assert.Empty(t, s.Offsets())
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

func TestStore_Upload(t *testing.T) {
	ctx := context.Background()
	backend := tank.NewMemoryBackend()
	s := tank.NewStore(backend, dipchart.DefaultLimits())

	chart, res, err := s.Upload(ctx, "T1", fusedChart)
	require.NoError(t, err)
	assert.Equal(t, dipchart.MethodSplit, chart.Method)
	assert.Equal(t, res.Table, chart.Table)
	assert.Len(t, chart.Table, 7)
	assert.NotEmpty(t, chart.Revision)
	assert.Equal(t, chart.Table.Fingerprint(), chart.Fingerprint)
	assert.False(t, chart.UploadedAt.IsZero())

	persisted, err := backend.LoadCharts(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, chart.Revision, persisted[0].Revision)
}

func TestStore_UploadWithoutDataKeepsPreviousChart(t *testing.T) {
	ctx := context.Background()
	s := tank.NewStore(tank.NewMemoryBackend(), dipchart.DefaultLimits())
	require.NoError(t, s.PutChart(ctx, lineChart("T1")))

	_, res, err := s.Upload(ctx, "T1", "scanned page without text")
	require.ErrorIs(t, err, tank.ErrNoCalibrationData)
	assert.True(t, res.Empty())

	c, ok := s.Chart("T1")
	require.True(t, ok)
	assert.Equal(t, "r1", c.Revision)
}

func TestStore_RejectsInvalidTankID(t *testing.T) {
	ctx := context.Background()
	s := tank.NewStore(tank.NewMemoryBackend(), dipchart.DefaultLimits())

	for _, id := range []string{"", "../x", "a/b", ".hidden"} {
		assert.ErrorIs(t, s.SetOffset(ctx, id, dipchart.Offset{}), tank.ErrInvalidTankID, "id %q", id)
		_, _, err := s.Upload(ctx, id, fusedChart)
		assert.ErrorIs(t, err, tank.ErrInvalidTankID, "id %q", id)
	}
}

func TestStore_PutChartRejectsEmptyTable(t *testing.T) {
	s := tank.NewStore(tank.NewMemoryBackend(), dipchart.DefaultLimits())
	err := s.PutChart(context.Background(), tank.Chart{TankID: "T1"})
	assert.ErrorIs(t, err, tank.ErrNoCalibrationData)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	backend := tank.NewMemoryBackend()
	s := tank.NewStore(backend, dipchart.DefaultLimits())
	require.NoError(t, s.PutChart(ctx, lineChart("T1")))
	require.NoError(t, s.SetOffset(ctx, "T1", dipchart.Offset{ProductMm: 3}))

	require.NoError(t, s.Delete(ctx, "T1"))
	_, ok := s.Chart("T1")
	assert.False(t, ok)
	assert.True(t, s.Offset("T1").IsZero())

	offsets, err := backend.LoadOffsets(ctx)
	require.NoError(t, err)
	assert.Empty(t, offsets)
}

type failingBackend struct {
	*tank.MemoryBackend
}

func (failingBackend) SaveChart(context.Context, tank.Chart) error { return errors.New("disk full") }

func TestStore_BackendFailureLeavesSnapshotUntouched(t *testing.T) {
	s := tank.NewStore(failingBackend{tank.NewMemoryBackend()}, dipchart.DefaultLimits())
	err := s.PutChart(context.Background(), lineChart("T1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	_, ok := s.Chart("T1")
	assert.False(t, ok)
}

func TestStore_Reload(t *testing.T) {
	ctx := context.Background()
	backend := tank.NewMemoryBackend()
	require.NoError(t, backend.SaveChart(ctx, lineChart("T1")))
	require.NoError(t, backend.SaveOffset(ctx, "T1", dipchart.Offset{WaterMm: 4}))

	s := tank.NewStore(backend, dipchart.DefaultLimits())
	require.NoError(t, s.Reload(ctx))

	_, ok := s.Chart("T1")
	assert.True(t, ok)
	assert.Equal(t, dipchart.Offset{WaterMm: 4}, s.Offset("T1"))
	assert.Len(t, s.Charts(), 1)
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

// pausingBackend reads offsets, then waits for release before returning them.
type pausingBackend struct {
	*tank.MemoryBackend
	loaded  chan struct{}
	release chan struct{}
}

func (b pausingBackend) LoadOffsets(ctx context.Context) (map[string]dipchart.Offset, error) {
	offsets, err := b.MemoryBackend.LoadOffsets(ctx)
	close(b.loaded)
	<-b.release
	return offsets, err
}

func TestStore_ReloadDoesNotLoseConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	backend := pausingBackend{
		MemoryBackend: tank.NewMemoryBackend(),
		loaded:        make(chan struct{}),
		release:       make(chan struct{}),
	}
	s := tank.NewStore(backend, dipchart.DefaultLimits())

	reloaded := make(chan error, 1)
	go func() { reloaded <- s.Reload(ctx) }()
	<-backend.loaded

	written := make(chan error, 1)
	go func() { written <- s.SetOffset(ctx, "T1", dipchart.Offset{ProductMm: 7}) }()
	time.Sleep(20 * time.Millisecond)
	close(backend.release)

	require.NoError(t, <-reloaded)
	require.NoError(t, <-written)
	assert.Equal(t, dipchart.Offset{ProductMm: 7}, s.Offset("T1"))
}

func TestStore_ConcurrentReadersSeeWholeTables(t *testing.T) {
	ctx := context.Background()
	s := tank.NewStore(tank.NewMemoryBackend(), dipchart.DefaultLimits())

	small := dipchart.Table{{Depth: 0, Volume: 10}, {Depth: 100, Volume: 1000}}
	large := dipchart.Table{{Depth: 0, Volume: 20}, {Depth: 100, Volume: 2000}}
	require.NoError(t, s.PutChart(ctx, tank.Chart{TankID: "T1", Revision: "a", Method: dipchart.MethodPaired, Table: small}))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				v, err := s.Volume("T1", 50)
				if err != nil || (v != 505 && v != 1010) {
					t.Errorf("torn read: v=%v err=%v", v, err)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		table := small
		if i%2 == 0 {
			table = large
		}
		require.NoError(t, s.PutChart(ctx, tank.Chart{TankID: "T1", Revision: "b", Method: dipchart.MethodPaired, Table: table}))
		require.NoError(t, s.SetOffset(ctx, "T2", dipchart.Offset{ProductMm: float64(i)}))
	}
	close(stop)
	wg.Wait()
}
