// SPDX-License-Identifier: Apache-2.0

package tank

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/atgproj/atg-mcp/internal/logging"
	"github.com/atgproj/atg-mcp/internal/schema"
	"github.com/goccy/go-yaml"
)

const (
	chartsDir       = "charts"
	chartExt        = ".yaml"
	calibrationFile = "calibration.yaml"
)

type calibrationDoc struct {
	Tanks map[string]dipchart.Offset `yaml:"tanks"`
}

// FileBackend stores one YAML document per chart under <dir>/charts and all
// offsets in <dir>/calibration.yaml. Files are replaced atomically.
type FileBackend struct {
	dir string
	// mu serializes read-modify-write cycles on calibration.yaml.
	mu sync.Mutex
}

// NewFileBackend creates the directory layout under dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file backend: directory is empty")
	}
	if err := os.MkdirAll(filepath.Join(dir, chartsDir), 0o755); err != nil {
		return nil, fmt.Errorf("file backend: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) chartPath(tankID string) string {
	return filepath.Join(b.dir, chartsDir, tankID+chartExt)
}

// LoadCharts reads every chart file. Files that fail validation are logged
// and skipped so one bad upload cannot take the others down.
func (b *FileBackend) LoadCharts(ctx context.Context) ([]Chart, error) {
	entries, err := os.ReadDir(filepath.Join(b.dir, chartsDir))
	if err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}

	var charts []Chart
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), chartExt) {
			continue
		}
		chart, err := b.readChart(filepath.Join(b.dir, chartsDir, e.Name()))
		if err != nil {
			logging.Logger().Warn("skipping chart file", slog.String("file", e.Name()), slog.Any("error", err))
			continue
		}
		charts = append(charts, chart)
	}
	sort.Slice(charts, func(i, j int) bool { return charts[i].TankID < charts[j].TankID })
	return charts, nil
}

func (b *FileBackend) readChart(path string) (Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Chart{}, err
	}
	if err := schema.ValidateYAML(schema.Chart, filepath.Base(path), data); err != nil {
		return Chart{}, err
	}
	var chart Chart
	if err := yaml.Unmarshal(data, &chart); err != nil {
		return Chart{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if want := strings.TrimSuffix(filepath.Base(path), chartExt); chart.TankID != want {
		return Chart{}, fmt.Errorf("chart in %s belongs to tank %q", filepath.Base(path), chart.TankID)
	}
	return chart, nil
}

func (b *FileBackend) SaveChart(ctx context.Context, chart Chart) error {
	if err := ValidateID(chart.TankID); err != nil {
		return err
	}
	data, err := yaml.Marshal(chart)
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	return writeAtomic(ctx, b.chartPath(chart.TankID), data)
}

func (b *FileBackend) DeleteChart(_ context.Context, tankID string) error {
	if err := ValidateID(tankID); err != nil {
		return err
	}
	err := os.Remove(b.chartPath(tankID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete chart: %w", err)
	}
	return nil
}

func (b *FileBackend) LoadOffsets(_ context.Context) (map[string]dipchart.Offset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.readCalibration()
	if err != nil {
		return nil, err
	}
	return doc.Tanks, nil
}

func (b *FileBackend) SaveOffset(ctx context.Context, tankID string, offset dipchart.Offset) error {
	if err := ValidateID(tankID); err != nil {
		return err
	}
	return b.updateCalibration(ctx, func(doc *calibrationDoc) {
		doc.Tanks[tankID] = offset
	})
}

func (b *FileBackend) DeleteOffset(ctx context.Context, tankID string) error {
	return b.updateCalibration(ctx, func(doc *calibrationDoc) {
		delete(doc.Tanks, tankID)
	})
}

func (b *FileBackend) updateCalibration(ctx context.Context, fn func(*calibrationDoc)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.readCalibration()
	if err != nil {
		return err
	}
	fn(&doc)
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode calibration: %w", err)
	}
	return writeAtomic(ctx, filepath.Join(b.dir, calibrationFile), data)
}

// readCalibration returns an empty document when the file does not exist yet.
// Callers must hold b.mu.
func (b *FileBackend) readCalibration() (calibrationDoc, error) {
	doc := calibrationDoc{Tanks: make(map[string]dipchart.Offset)}
	data, err := os.ReadFile(filepath.Join(b.dir, calibrationFile))
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read calibration: %w", err)
	}
	if err := schema.ValidateYAML(schema.Calibration, calibrationFile, data); err != nil {
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode calibration: %w", err)
	}
	if doc.Tanks == nil {
		doc.Tanks = make(map[string]dipchart.Offset)
	}
	return doc, nil
}

// writeAtomic writes data to a temporary file next to dest and renames it
// over dest.
func writeAtomic(ctx context.Context, dest string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
