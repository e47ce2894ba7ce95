// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/atgproj/atg-mcp/internal/dipchart"
	"github.com/atgproj/atg-mcp/internal/dipchart/decoders"
	"github.com/atgproj/atg-mcp/internal/extract"
	"github.com/atgproj/atg-mcp/internal/logging"
	"github.com/atgproj/atg-mcp/internal/tool"
	"github.com/goccy/go-yaml"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			archive, err := a.openArchive()
			if err != nil {
				return err
			}

			server := mcp.NewServer(&mcp.Implementation{Name: "atg-mcp", Version: version}, nil)
			tool.NewService(store, archive).Register(server)

			log := logging.Logger()
			log.Info("serving on stdio", slog.String("version", version), slog.Int("charts", len(store.Charts())))
			runErr := server.Run(ctx, &mcp.StdioTransport{})

			if archive != nil {
				// the serve context is usually cancelled by now
				if err := archive.Flush(context.WithoutCancel(ctx)); err != nil {
					log.Error("final archive flush failed", slog.Any("error", err))
				}
			}
			if errors.Is(runErr, context.Canceled) {
				return nil
			}
			return runErr
		},
	}
}

// parseReport is the YAML document printed for each parsed chart.
type parseReport struct {
	File       string                      `yaml:"file"`
	Method     dipchart.Method             `yaml:"method,omitempty"`
	Entries    int                         `yaml:"entries"`
	Candidates []dipchart.CandidateSummary `yaml:"candidates,omitempty"`
	Table      dipchart.Table              `yaml:"table,omitempty"`
	Error      string                      `yaml:"error,omitempty"`
}

func newParseCmd(a *app) *cobra.Command {
	var summaryOnly bool
	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Reconstruct strapping tables from dip chart PDFs or text files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			reports := make([]parseReport, len(files))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, file := range files {
				g.Go(func() error {
					reports[i] = parseFile(ctx, file, a.cfg.Limits)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failed := 0
			for i := range reports {
				if reports[i].Error != "" || reports[i].Entries == 0 {
					failed++
				}
				if summaryOnly {
					reports[i].Table = nil
				}
			}
			out, err := yaml.Marshal(reports)
			if err != nil {
				return err
			}
			if _, err := a.stdout.Write(out); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d charts produced no table", failed, len(files))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "omit the tables from the output")
	return cmd
}

func parseFile(ctx context.Context, file string, limits dipchart.Limits) parseReport {
	rep := parseReport{File: filepath.Base(file)}
	text, err := extract.FileText(ctx, file)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	res := decoders.Reconstruct(text, limits)
	rep.Method = res.Method
	rep.Entries = len(res.Table)
	rep.Candidates = res.Candidates
	rep.Table = res.Table
	return rep
}

func newUploadCmd(a *app) *cobra.Command {
	var tankID string
	cmd := &cobra.Command{
		Use:   "upload --tank ID FILE",
		Short: "Reconstruct a dip chart and store it for a tank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			text, err := extract.FileText(ctx, args[0])
			if err != nil {
				return err
			}
			chart, _, err := store.Upload(ctx, tankID, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: %d entries (%s), depth %d-%d mm, revision %s\n",
				chart.TankID, len(chart.Table), chart.Method,
				chart.Table.First().Depth, chart.Table.Last().Depth, chart.Revision)
			return nil
		},
	}
	cmd.Flags().StringVar(&tankID, "tank", "", "tank id")
	_ = cmd.MarkFlagRequired("tank")
	return cmd
}

func newVolumeCmd(a *app) *cobra.Command {
	var (
		tankID string
		depth  float64
	)
	cmd := &cobra.Command{
		Use:   "volume --tank ID --depth MM",
		Short: "Print the volume at a raw product level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			vol, err := store.Volume(tankID, depth)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%.2f\n", vol)
			return nil
		},
	}
	cmd.Flags().StringVar(&tankID, "tank", "", "tank id")
	cmd.Flags().Float64Var(&depth, "depth", 0, "raw product level in mm")
	_ = cmd.MarkFlagRequired("tank")
	_ = cmd.MarkFlagRequired("depth")
	return cmd
}

func newCalibrateCmd(a *app) *cobra.Command {
	var (
		tankID         string
		product, water float64
	)
	cmd := &cobra.Command{
		Use:   "calibrate --tank ID [--product MM] [--water MM]",
		Short: "Store the calibration offsets of a tank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			// omitted flags keep the stored value
			off := store.Offset(tankID)
			if cmd.Flags().Changed("product") {
				off.ProductMm = product
			}
			if cmd.Flags().Changed("water") {
				off.WaterMm = water
			}
			if err := store.SetOffset(ctx, tankID, off); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: product offset %g mm, water offset %g mm\n", tankID, off.ProductMm, off.WaterMm)
			return nil
		},
	}
	cmd.Flags().StringVar(&tankID, "tank", "", "tank id")
	cmd.Flags().Float64Var(&product, "product", 0, "offset subtracted from raw product levels, mm (default: keep stored)")
	cmd.Flags().Float64Var(&water, "water", 0, "offset subtracted from raw water levels, mm (default: keep stored)")
	_ = cmd.MarkFlagRequired("tank")
	return cmd
}
