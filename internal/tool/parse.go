// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/atgproj/atg-mcp/internal/dipchart/decoders"
	"github.com/atgproj/atg-mcp/internal/extract"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MetadataReconstructDipChart describes the reconstruct_dip_chart tool.
var MetadataReconstructDipChart = &mcp.Tool{
	Name: "reconstruct_dip_chart",
	Description: "Rebuild a strapping (DIP) table from the text of a dip chart without storing it. " +
		"Depth/volume pairs are recovered from digit runs that lost their separators during PDF " +
		"extraction. Three decoders run (concatenated rows, fused split pairs, whitespace pairs) and " +
		"the one producing the most entries wins. Returns the table sorted by depth in mm with " +
		"volumes in liters, the winning method and per-decoder entry counts.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": stringProp("Text extracted from the dip chart. Either content or path is required."),
			"path":    stringProp("Local path of a dip chart PDF or text file."),
		},
	},
}

// InputReconstructDipChart is the input for the ReconstructDipChart tool.
type InputReconstructDipChart struct {
	Content string `json:"content"`
	Path    string `json:"path"`
}

// OutputReconstructDipChart is the output for the ReconstructDipChart tool.
type OutputReconstructDipChart struct {
	// Table is the reconstructed strapping table, empty if nothing decoded.
	Table dipchart.Table `json:"table"`
	// Method is the decoder that produced Table.
	Method     dipchart.Method             `json:"method,omitempty"`
	Candidates []dipchart.CandidateSummary `json:"candidates"`
	TokenCount int                         `json:"token_count"`
	Summary    TableSummary                `json:"summary"`
}

// TableSummary gives the extent of a table.
type TableSummary struct {
	Entries    int     `json:"entries"`
	MinDepthMm int     `json:"min_depth_mm"`
	MaxDepthMm int     `json:"max_depth_mm"`
	MinVolumeL float64 `json:"min_volume_l"`
	MaxVolumeL float64 `json:"max_volume_l"`
}

func summarize(t dipchart.Table) TableSummary {
	if len(t) == 0 {
		return TableSummary{}
	}
	return TableSummary{
		Entries:    len(t),
		MinDepthMm: t.First().Depth,
		MaxDepthMm: t.Last().Depth,
		MinVolumeL: t.First().Volume,
		MaxVolumeL: t.Last().Volume,
	}
}

func chartText(ctx context.Context, content, path string) (string, error) {
	switch {
	case strings.TrimSpace(content) != "":
		return content, nil
	case strings.TrimSpace(path) != "":
		return extract.FileText(ctx, path)
	}
	return "", fmt.Errorf("content or path is required")
}

// ReconstructDipChart decodes a chart and returns the table it describes.
func (s *Service) ReconstructDipChart(ctx context.Context, _ *mcp.CallToolRequest, input InputReconstructDipChart) (*mcp.CallToolResult, OutputReconstructDipChart, error) {
	text, err := chartText(ctx, input.Content, input.Path)
	if err != nil {
		return nil, OutputReconstructDipChart{}, err
	}

	res := decoders.Reconstruct(text, s.store.Limits())
	out := OutputReconstructDipChart{
		Table:      res.Table,
		Method:     res.Method,
		Candidates: res.Candidates,
		TokenCount: res.TokenCount,
		Summary:    summarize(res.Table),
	}
	if out.Candidates == nil {
		out.Candidates = []dipchart.CandidateSummary{}
	}
	return nil, out, nil
}

// MetadataUploadDipChart describes the upload_dip_chart tool.
var MetadataUploadDipChart = &mcp.Tool{
	Name: "upload_dip_chart",
	Description: "Reconstruct a dip chart and store it as the strapping table of a tank, replacing " +
		"any previous table atomically. Use tank_id \"default\" for the table shared by tanks that " +
		"have none. Fails without changing anything when no entries can be decoded.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"tank_id"},
		"properties": map[string]interface{}{
			"tank_id": tankIDProp,
			"content": stringProp("Text extracted from the dip chart. Either content or path is required."),
			"path":    stringProp("Local path of a dip chart PDF or text file."),
		},
	},
}

// InputUploadDipChart is the input for the UploadDipChart tool.
type InputUploadDipChart struct {
	TankID  string `json:"tank_id"`
	Content string `json:"content"`
	Path    string `json:"path"`
}

// OutputUploadDipChart is the output for the UploadDipChart tool.
type OutputUploadDipChart struct {
	TankID      string          `json:"tank_id"`
	Revision    string          `json:"revision"`
	Method      dipchart.Method `json:"method"`
	Fingerprint string          `json:"fingerprint"`
	UploadedAt  string          `json:"uploaded_at"`
	Summary     TableSummary    `json:"summary"`
}

// UploadDipChart reconstructs and stores a tank's strapping table.
func (s *Service) UploadDipChart(ctx context.Context, _ *mcp.CallToolRequest, input InputUploadDipChart) (*mcp.CallToolResult, OutputUploadDipChart, error) {
	text, err := chartText(ctx, input.Content, input.Path)
	if err != nil {
		return nil, OutputUploadDipChart{}, err
	}

	chart, _, err := s.store.Upload(ctx, input.TankID, text)
	if err != nil {
		return nil, OutputUploadDipChart{}, err
	}
	return nil, OutputUploadDipChart{
		TankID:      chart.TankID,
		Revision:    chart.Revision,
		Method:      chart.Method,
		Fingerprint: chart.Fingerprint,
		UploadedAt:  chart.UploadedAt.Format(time.RFC3339),
		Summary:     summarize(chart.Table),
	}, nil
}
