// SPDX-License-Identifier: Apache-2.0

// Command atg-mcp reconstructs tank strapping tables from dip chart PDFs and
// serves volume lookups over the Model Context Protocol.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/atgproj/atg-mcp/internal/config"
	"github.com/atgproj/atg-mcp/internal/ingest"
	"github.com/atgproj/atg-mcp/internal/logging"
	"github.com/atgproj/atg-mcp/internal/tank"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) int {
	cmd := newRootCmd(stdout, stderr, lookupEnv)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
}

type rootFlags struct {
	configPath string
	dataDir    string
	archiveDir string
	logLevel   string
	logFormat  string
}

func newRootCmd(stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	var f rootFlags

	root := &cobra.Command{
		Use:           "atg-mcp",
		Short:         "Strapping table reconstruction and tank volume service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f, lookupEnv)
			if err != nil {
				return err
			}
			a.cfg = cfg
			lg, err := logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			logging.SetLogger(lg.With(slog.String("cmd", cmd.Name())))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML config file")
	pf.StringVar(&f.dataDir, "data-dir", "", "directory holding charts and calibration (empty keeps them in memory)")
	pf.StringVar(&f.archiveDir, "archive-dir", "", "directory receiving archived readings (empty disables the archive)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&f.logFormat, "log-format", "", "text or json")

	root.AddCommand(
		newServeCmd(a),
		newParseCmd(a),
		newUploadCmd(a),
		newVolumeCmd(a),
		newCalibrateCmd(a),
	)
	return root
}

// loadConfig layers defaults, the config file, the environment and finally
// any flag set on the command line.
func loadConfig(cmd *cobra.Command, f rootFlags, lookupEnv func(string) (string, bool)) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if cfg, err = config.ApplyEnv(cfg, lookupEnv); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if flags.Changed("archive-dir") {
		cfg.ArchiveDir = f.archiveDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	return cfg, config.Validate(cfg)
}

// openStore loads the configured backend into a Store.
func (a *app) openStore(ctx context.Context) (*tank.Store, error) {
	var backend tank.Backend = tank.NewMemoryBackend()
	if a.cfg.DataDir != "" {
		fb, err := tank.NewFileBackend(a.cfg.DataDir)
		if err != nil {
			return nil, err
		}
		backend = fb
	}
	store := tank.NewStore(backend, a.cfg.Limits)
	if err := store.Reload(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// openArchive returns nil when no archive directory is configured.
func (a *app) openArchive() (*ingest.Archive, error) {
	if a.cfg.ArchiveDir == "" {
		return nil, nil
	}
	return ingest.NewArchive(a.cfg.ArchiveDir, a.cfg.ArchiveFlushThreshold)
}
