// SPDX-License-Identifier: Apache-2.0

package tank

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/atgproj/atg-mcp/internal/dipchart/decoders"
	"github.com/atgproj/atg-mcp/internal/logging"
	"github.com/google/uuid"
)

// snapshot is never mutated once published.
type snapshot struct {
	charts  map[string]Chart
	offsets map[string]dipchart.Offset
}

func (s *snapshot) clone() *snapshot {
	return &snapshot{charts: maps.Clone(s.charts), offsets: maps.Clone(s.offsets)}
}

// Store serves charts and offsets to concurrent readers. Readers load an
// immutable snapshot and never block; writers persist through the Backend,
// then publish a new snapshot.
type Store struct {
	backend Backend
	limits  dipchart.Limits
	now     func() time.Time

	current atomic.Pointer[snapshot]
	// writeMu serializes writers so no update is lost between clone and swap.
	writeMu sync.Mutex
}

// NewStore creates an empty Store. Call Reload to read what the backend holds.
func NewStore(backend Backend, limits dipchart.Limits) *Store {
	s := &Store{backend: backend, limits: limits, now: time.Now}
	s.current.Store(&snapshot{
		charts:  map[string]Chart{},
		offsets: map[string]dipchart.Offset{},
	})
	return s
}

// Limits returns the decoding bounds used for uploads.
func (s *Store) Limits() dipchart.Limits { return s.limits }

// Reload replaces the in-memory state with the backend's. Writers wait until
// the new snapshot is published.
func (s *Store) Reload(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	charts, err := s.backend.LoadCharts(ctx)
	if err != nil {
		return fmt.Errorf("load charts: %w", err)
	}
	offsets, err := s.backend.LoadOffsets(ctx)
	if err != nil {
		return fmt.Errorf("load offsets: %w", err)
	}

	next := &snapshot{
		charts:  make(map[string]Chart, len(charts)),
		offsets: make(map[string]dipchart.Offset, len(offsets)),
	}
	for _, c := range charts {
		next.charts[c.TankID] = c
	}
	maps.Copy(next.offsets, offsets)

	s.current.Store(next)

	logging.Logger().Info("tank store loaded", slog.Int("charts", len(next.charts)), slog.Int("offsets", len(next.offsets)))
	return nil
}

// Chart returns the chart for tankID, falling back to the default chart.
func (s *Store) Chart(tankID string) (Chart, bool) {
	snap := s.current.Load()
	if c, ok := snap.charts[tankID]; ok {
		return c, true
	}
	c, ok := snap.charts[DefaultTankID]
	return c, ok
}

// Charts returns every stored chart ordered by tank id.
func (s *Store) Charts() []Chart {
	snap := s.current.Load()
	out := make([]Chart, 0, len(snap.charts))
	for _, c := range snap.charts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TankID < out[j].TankID })
	return out
}

// Offset returns the calibration offset of tankID; unknown tanks get zero.
func (s *Store) Offset(tankID string) dipchart.Offset {
	return s.current.Load().offsets[tankID]
}

// Offsets returns a copy of every stored offset.
func (s *Store) Offsets() map[string]dipchart.Offset {
	return maps.Clone(s.current.Load().offsets)
}

// Volume converts a raw product depth of tankID into liters. The table and
// offset come from the same snapshot.
func (s *Store) Volume(tankID string, rawDepthMm float64) (float64, error) {
	snap := s.current.Load()
	c, ok := snap.charts[tankID]
	if !ok {
		if c, ok = snap.charts[DefaultTankID]; !ok {
			return 0, fmt.Errorf("%w %q", ErrUnknownTank, tankID)
		}
	}
	return dipchart.Volume(c.Table, snap.offsets[tankID], rawDepthMm), nil
}

// PutChart persists chart and makes it visible to readers.
func (s *Store) PutChart(ctx context.Context, chart Chart) error {
	if err := ValidateID(chart.TankID); err != nil {
		return err
	}
	if len(chart.Table) == 0 {
		return ErrNoCalibrationData
	}
	chart.Table = chart.Table.Clone()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.SaveChart(ctx, chart); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	next := s.current.Load().clone()
	next.charts[chart.TankID] = chart
	s.current.Store(next)

	logging.Logger().Info("strapping table replaced",
		slog.String("tank", chart.TankID),
		slog.String("revision", chart.Revision),
		slog.Int("entries", len(chart.Table)))
	return nil
}

// Upload rebuilds a strapping table from chart text and stores it for
// tankID. A chart nobody can decode returns ErrNoCalibrationData and leaves
// the previous table in place.
func (s *Store) Upload(ctx context.Context, tankID, text string) (Chart, dipchart.Result, error) {
	if err := ValidateID(tankID); err != nil {
		return Chart{}, dipchart.Result{}, err
	}
	res := decoders.Reconstruct(text, s.limits)
	if res.Empty() {
		return Chart{}, res, fmt.Errorf("tank %s: %w", tankID, ErrNoCalibrationData)
	}

	chart := Chart{
		TankID:      tankID,
		Revision:    uuid.NewString(),
		Method:      res.Method,
		Fingerprint: res.Table.Fingerprint(),
		UploadedAt:  s.now().UTC(),
		Table:       res.Table,
	}
	if err := s.PutChart(ctx, chart); err != nil {
		return Chart{}, res, err
	}
	return chart, res, nil
}

// SetOffset persists a new calibration offset for tankID and publishes it.
func (s *Store) SetOffset(ctx context.Context, tankID string, offset dipchart.Offset) error {
	if err := ValidateID(tankID); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.SaveOffset(ctx, tankID, offset); err != nil {
		return fmt.Errorf("save offset: %w", err)
	}
	next := s.current.Load().clone()
	next.offsets[tankID] = offset
	s.current.Store(next)

	logging.Logger().Info("calibration updated",
		slog.String("tank", tankID),
		slog.Float64("product_offset_mm", offset.ProductMm),
		slog.Float64("water_offset_mm", offset.WaterMm))
	return nil
}

// Delete removes the chart and offset of tankID.
func (s *Store) Delete(ctx context.Context, tankID string) error {
	if err := ValidateID(tankID); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.DeleteChart(ctx, tankID); err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}
	if err := s.backend.DeleteOffset(ctx, tankID); err != nil {
		return fmt.Errorf("delete offset: %w", err)
	}
	next := s.current.Load().clone()
	delete(next.charts, tankID)
	delete(next.offsets, tankID)
	s.current.Store(next)

	logging.Logger().Info("tank deleted", slog.String("tank", tankID))
	return nil
}
