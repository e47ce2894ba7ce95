// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/mebo"
	"github.com/atgproj/atg-mcp/internal/logging"
	"github.com/google/uuid"
)

const (
	blobExt = ".mebo"

	metricProduct = "product_mm"
	metricWater   = "water_mm"
	metricVolume  = "volume_l"
	metricTemp    = "temp_c"

	// DefaultFlushThreshold is the number of buffered readings per tank that
	// triggers a flush.
	DefaultFlushThreshold = 1024
	maxPointsPerMetric    = math.MaxUint16
)

// MetricName returns the archived series name of a tank's measurement.
func MetricName(tankID, measurement string) string {
	return tankID + "." + measurement
}

// Sample is one archived, calibrated reading.
type Sample struct {
	Time      time.Time `json:"time"`
	ProductMm float64   `json:"product_mm"`
	WaterMm   float64   `json:"water_mm"`
	VolumeL   float64   `json:"volume_l"`
	TempC     float64   `json:"temp_c"`
	Status    string    `json:"status,omitempty"`
}

// Archive buffers processed readings per tank and writes them to dir as
// mebo numeric blobs, one file per flush.
type Archive struct {
	dir       string
	threshold int

	mu      sync.Mutex
	pending map[string][]Processed
}

// NewArchive creates dir if needed. A threshold <= 0 selects
// DefaultFlushThreshold.
func NewArchive(dir string, threshold int) (*Archive, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("archive: directory is empty")
	}
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	threshold = min(threshold, maxPointsPerMetric)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return &Archive{dir: dir, threshold: threshold, pending: make(map[string][]Processed)}, nil
}

// Append buffers p and flushes its tank once the threshold is reached. A
// failed flush keeps the readings buffered for the next attempt and is only
// logged; a tank whose buffer reaches the per-metric limit loses its oldest
// reading.
func (a *Archive) Append(ctx context.Context, p Processed) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := a.pending[p.TankID]
	if len(buf) >= maxPointsPerMetric {
		logging.Logger().Warn("archive buffer full, dropping oldest reading", slog.String("tank", p.TankID))
		buf = buf[1:]
	}
	a.pending[p.TankID] = append(buf, p)
	if len(a.pending[p.TankID]) < a.threshold {
		return
	}
	if err := a.flushLocked(ctx, p.TankID); err != nil {
		logging.Logger().Warn("archive flush failed, readings stay buffered",
			slog.String("tank", p.TankID),
			slog.Int("buffered", len(a.pending[p.TankID])),
			slog.Any("error", err))
	}
}

// Pending returns the number of buffered readings across all tanks.
func (a *Archive) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, ps := range a.pending {
		n += len(ps)
	}
	return n
}

// Discard drops the buffered readings of tankID and returns how many there
// were. Flushed blobs are left alone.
func (a *Archive) Discard(tankID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.pending[tankID])
	delete(a.pending, tankID)
	return n
}

// Flush writes the buffered readings of every tank, one blob per tank.
// Tanks that fail stay buffered; their errors are joined.
func (a *Archive) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	tanks := make([]string, 0, len(a.pending))
	for id, ps := range a.pending {
		if len(ps) > 0 {
			tanks = append(tanks, id)
		}
	}
	sort.Strings(tanks)

	var errs []error
	for _, id := range tanks {
		if err := a.flushLocked(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("tank %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// flushLocked writes one tank's buffer to its own blob. Only the first
// metric of a blob decodes exact timestamps, so a blob never holds more than
// one tank. Callers must hold a.mu.
func (a *Archive) flushLocked(ctx context.Context, tankID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ps := a.pending[tankID]
	if len(ps) == 0 {
		return nil
	}

	start := ps[0].Time
	for _, p := range ps {
		if p.Time.Before(start) {
			start = p.Time
		}
	}

	data, err := encodeBlob(start, tankID, ps)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("readings-%020d-%s%s", start.UnixMicro(), uuid.NewString(), blobExt)
	if err := os.WriteFile(filepath.Join(a.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	delete(a.pending, tankID)

	logging.Logger().Info("readings archived",
		slog.String("file", name),
		slog.String("tank", tankID),
		slog.Int("readings", len(ps)),
		slog.Int("bytes", len(data)))
	return nil
}

// encodeBlob writes product_mm first; DecodeSamples takes times from it.
func encodeBlob(start time.Time, id string, ps []Processed) ([]byte, error) {
	enc, err := mebo.NewTaggedNumericEncoder(start)
	if err != nil {
		return nil, fmt.Errorf("archive encoder: %w", err)
	}

	type series struct {
		name  string
		value func(Processed) float64
		tag   func(Processed) string
	}
	noTag := func(Processed) string { return "" }

	for _, s := range []series{
		{metricProduct, func(p Processed) float64 { return p.CalibratedProductMm }, func(p Processed) string { return p.Status }},
		{metricWater, func(p Processed) float64 { return p.CalibratedWaterMm }, noTag},
		{metricVolume, func(p Processed) float64 { return p.VolumeL }, noTag},
		{metricTemp, func(p Processed) float64 { return p.TempC }, noTag},
	} {
		if err := enc.StartMetricName(MetricName(id, s.name), len(ps)); err != nil {
			return nil, fmt.Errorf("archive %s: %w", id, err)
		}
		for _, p := range ps {
			if err := enc.AddDataPoint(p.Time.UnixMicro(), s.value(p), s.tag(p)); err != nil {
				return nil, fmt.Errorf("archive %s: %w", id, err)
			}
		}
		if err := enc.EndMetric(); err != nil {
			return nil, fmt.Errorf("archive %s: %w", id, err)
		}
	}

	data, err := enc.Finish()
	if err != nil {
		return nil, fmt.Errorf("archive finish: %w", err)
	}
	return data, nil
}

// Samples returns every flushed reading of tankID in time order. Buffered
// readings are not included; call Flush first to see them.
func (a *Archive) Samples(ctx context.Context, tankID string) ([]Sample, error) {
	files, err := filepath.Glob(filepath.Join(a.dir, "*"+blobExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []Sample
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		samples, err := DecodeSamples(data, tankID)
		if err != nil {
			logging.Logger().Warn("skipping archive file", slog.String("file", filepath.Base(f)), slog.Any("error", err))
			continue
		}
		out = append(out, samples...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// DecodeSamples extracts the readings of tankID from one archived blob. A
// blob that does not mention the tank yields no samples.
func DecodeSamples(data []byte, tankID string) ([]Sample, error) {
	dec, err := mebo.NewNumericDecoder(data)
	if err != nil {
		return nil, fmt.Errorf("archive decoder: %w", err)
	}
	b, err := dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("archive decode: %w", err)
	}

	n := b.LenByName(MetricName(tankID, metricProduct))
	if n == 0 {
		return nil, nil
	}
	out := make([]Sample, n)
	for i, dp := range b.AllByName(MetricName(tankID, metricProduct)) {
		if i >= n {
			break
		}
		out[i].Time = time.UnixMicro(dp.Ts).UTC()
		out[i].ProductMm = dp.Val
		out[i].Status = dp.Tag
	}
	fill := func(measurement string, set func(*Sample, float64)) {
		for i, dp := range b.AllByName(MetricName(tankID, measurement)) {
			if i < n {
				set(&out[i], dp.Val)
			}
		}
	}
	fill(metricWater, func(s *Sample, v float64) { s.WaterMm = v })
	fill(metricVolume, func(s *Sample, v float64) { s.VolumeL = v })
	fill(metricTemp, func(s *Sample, v float64) { s.TempC = v })
	return out, nil
}
