// SPDX-License-Identifier: Apache-2.0

// Package tank keeps the strapping tables and calibration offsets of every
// tank and answers volume lookups against them.
package tank

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/atgproj/atg-mcp/internal/dipchart"
)

// DefaultTankID names the chart used by tanks that have none of their own.
const DefaultTankID = "default"

var (
	// ErrNoCalibrationData is returned when an uploaded chart yields no entries.
	ErrNoCalibrationData = errors.New("no usable calibration data found")
	// ErrUnknownTank is returned when neither the tank nor the default has a chart.
	ErrUnknownTank = errors.New("no strapping table for tank")
	// ErrInvalidTankID is returned for ids that cannot be stored safely.
	ErrInvalidTankID = errors.New("invalid tank id")
)

var tankIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateID checks that id can be used as a tank identifier.
func ValidateID(id string) error {
	if !tankIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidTankID, id)
	}
	return nil
}

// Chart is a stored strapping table and where it came from.
type Chart struct {
	TankID      string          `json:"tank_id" yaml:"tank_id"`
	Revision    string          `json:"revision" yaml:"revision"`
	Method      dipchart.Method `json:"method" yaml:"method"`
	Fingerprint string          `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	UploadedAt  time.Time       `json:"uploaded_at" yaml:"uploaded_at"`
	Table       dipchart.Table  `json:"table" yaml:"table"`
}

// Backend persists charts and offsets. Implementations must be safe for
// concurrent use.
type Backend interface {
	LoadCharts(ctx context.Context) ([]Chart, error)
	SaveChart(ctx context.Context, chart Chart) error
	DeleteChart(ctx context.Context, tankID string) error
	LoadOffsets(ctx context.Context) (map[string]dipchart.Offset, error)
	SaveOffset(ctx context.Context, tankID string, offset dipchart.Offset) error
	DeleteOffset(ctx context.Context, tankID string) error
}
