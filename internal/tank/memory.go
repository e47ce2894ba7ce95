// SPDX-License-Identifier: Apache-2.0

package tank

import (
	"context"
	"sort"
	"sync"

	"github.com/atgproj/atg-mcp/internal/dipchart"
)

// MemoryBackend keeps everything in process memory. It is used when no data
// directory is configured and in tests.
type MemoryBackend struct {
	mu      sync.Mutex
	charts  map[string]Chart
	offsets map[string]dipchart.Offset
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		charts:  make(map[string]Chart),
		offsets: make(map[string]dipchart.Offset),
	}
}

func (b *MemoryBackend) LoadCharts(_ context.Context) ([]Chart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Chart, 0, len(b.charts))
	for _, c := range b.charts {
		c.Table = c.Table.Clone()
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TankID < out[j].TankID })
	return out, nil
}

func (b *MemoryBackend) SaveChart(_ context.Context, chart Chart) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	chart.Table = chart.Table.Clone()
	b.charts[chart.TankID] = chart
	return nil
}

func (b *MemoryBackend) DeleteChart(_ context.Context, tankID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.charts, tankID)
	return nil
}

func (b *MemoryBackend) LoadOffsets(_ context.Context) (map[string]dipchart.Offset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]dipchart.Offset, len(b.offsets))
	for id, o := range b.offsets {
		out[id] = o
	}
	return out, nil
}

func (b *MemoryBackend) SaveOffset(_ context.Context, tankID string, offset dipchart.Offset) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offsets[tankID] = offset
	return nil
}

func (b *MemoryBackend) DeleteOffset(_ context.Context, tankID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.offsets, tankID)
	return nil
}
