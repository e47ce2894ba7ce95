// SPDX-License-Identifier: Apache-2.0

// Package tool exposes strapping-table reconstruction, volume lookup and
// calibration as MCP tools.
package tool

import (
	"github.com/atgproj/atg-mcp/internal/ingest"
	"github.com/atgproj/atg-mcp/internal/tank"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Service carries the state shared by the tool handlers.
type Service struct {
	store     *tank.Store
	processor *ingest.Processor
	archive   *ingest.Archive
}

// NewService creates a Service. archive may be nil, in which case readings
// are calibrated but not kept.
func NewService(store *tank.Store, archive *ingest.Archive) *Service {
	return &Service{
		store:     store,
		processor: ingest.NewProcessor(store, archive),
		archive:   archive,
	}
}

// Register adds every tool to server.
func (s *Service) Register(server *mcp.Server) {
	mcp.AddTool(server, MetadataReconstructDipChart, s.ReconstructDipChart)
	mcp.AddTool(server, MetadataUploadDipChart, s.UploadDipChart)
	mcp.AddTool(server, MetadataInterpolateVolume, s.InterpolateVolume)
	mcp.AddTool(server, MetadataCalibrateWater, s.CalibrateWater)
	mcp.AddTool(server, MetadataGetCalibration, s.GetCalibration)
	mcp.AddTool(server, MetadataSetCalibration, s.SetCalibration)
	mcp.AddTool(server, MetadataListCalibrations, s.ListCalibrations)
	mcp.AddTool(server, MetadataReloadCalibrations, s.ReloadCalibrations)
	mcp.AddTool(server, MetadataDeleteTank, s.DeleteTank)
	mcp.AddTool(server, MetadataProcessReading, s.ProcessReading)
	mcp.AddTool(server, MetadataReadingHistory, s.ReadingHistory)
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

var tankIDProp = stringProp("Tank identifier, e.g. ATG83729. Letters, digits, '.', '_' and '-'.")
