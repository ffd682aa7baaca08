// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"stream2media/internal/capture"
	"stream2media/internal/config"
	"stream2media/internal/download"
	"stream2media/internal/history"
	"stream2media/internal/httputil"
	"stream2media/internal/logger"
	"stream2media/internal/orchestrator"
	"stream2media/internal/playlist"
	"stream2media/internal/provider"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig    string
	flagProviders []string
	flagOutput    string
	flagFormat    string
	flagTimeout   time.Duration
	flagCapture   string
	flagFirst     bool
	flagJSON      bool
	flagDebug     bool
	flagNoHistory bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

// ledger is open for the duration of a command when history is enabled.
var ledger *history.Ledger

var rootCmd = &cobra.Command{
	Use:   "stream2media [query]",
	Short: "Search Ukrainian streaming sites and save episodes locally",
	Long: `stream2media searches several Ukrainian streaming sites at once,
lists dub groups and episodes, and downloads the selected episode's
HLS stream into a single mkv or ts file.`,
	Args:               cobra.ArbitraryArgs,
	PersistentPreRunE:  loadConfig,
	PersistentPostRunE: closeLedger,
	RunE:               searchRun,
	SilenceUsage:       true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: $XDG_CONFIG_HOME/stream2media/config.toml)")
	rootCmd.PersistentFlags().StringSliceVarP(&flagProviders, "provider", "p", nil, "Only use these providers, e.g. -p uakino,uaflix")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Output directory")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "", "Output format: mkv | ts")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "Per-request timeout")
	rootCmd.PersistentFlags().StringVar(&flagCapture, "capture", "", "Write raw provider responses to this directory")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Print results as JSON instead of prompting")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoHistory, "no-history", false, "Do not record processed episodes")
	rootCmd.Flags().BoolVar(&flagFirst, "first", false, "Process the first episode of the first hit without prompting")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(populateCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if len(flagProviders) > 0 {
		cfg.OnlyProviders(flagProviders)
	}
	if flagOutput != "" {
		cfg.OutputDir = flagOutput
	}
	if flagFormat != "" {
		cfg.Format = strings.ToLower(flagFormat)
	}
	if flagTimeout > 0 {
		cfg.Timeout = config.Duration{Duration: flagTimeout}
	}
	if flagCapture != "" {
		cfg.CaptureDir = flagCapture
	}
	if flagDebug {
		cfg.Debug = true
	}
	if flagNoHistory {
		cfg.History = false
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l := logger.New(cfg.Debug)
	cmd.SetContext(logger.Into(cmd.Context(), l))
	l.Debug("config loaded", "providers", cfg.EnabledProviders(), "format", cfg.Format)

	return nil
}

func closeLedger(cmd *cobra.Command, args []string) error {
	if ledger == nil {
		return nil
	}
	err := ledger.Close()
	ledger = nil
	return err
}

// openLedger opens the history ledger once per command. A failure disables
// history for the run rather than aborting it.
func openLedger(l *log.Logger) *history.Ledger {
	if !cfg.History {
		return nil
	}
	if ledger != nil {
		return ledger
	}
	var err error
	ledger, err = history.OpenDefault()
	if err != nil {
		l.Warn("history disabled", "err", err)
		return nil
	}
	return ledger
}

// newOrchestrator wires the shared client, segment resolver, assembler and
// ledger into an orchestrator for the current configuration.
func newOrchestrator(cmd *cobra.Command) (*orchestrator.Orchestrator, error) {
	l := logger.From(cmd.Context())

	outDir, err := cfg.ExpandOutputDir()
	if err != nil {
		return nil, fmt.Errorf("resolving output dir: %w", err)
	}

	fs := afero.NewOsFs()

	var recorder *capture.Recorder
	if cfg.CaptureDir != "" {
		recorder = capture.NewRecorder(fs, cfg.CaptureDir)
		l.Info("capturing responses", "dir", cfg.CaptureDir)
	}

	client := httputil.NewClient(httputil.Options{
		Timeout:      cfg.Timeout.Duration,
		MinHostDelay: cfg.MinHostDelay.Duration,
		UserAgent:    cfg.UserAgent,
		Recorder:     recorder,
	})

	deps := provider.Deps{
		Client:   client,
		Resolver: playlist.NewResolver(client, fs, filepath.Join(outDir, ".segments")),
	}
	reg := provider.Default()

	pipeline := &orchestrator.Pipeline{
		Registry: reg,
		Deps:     deps,
		Assembler: &download.Assembler{
			FS:    fs,
			Dir:   outDir,
			Muxer: download.FFmpeg{Path: cfg.FFmpeg},
		},
		Format: cfg.Format,
	}
	if lg := openLedger(l); lg != nil {
		pipeline.Ledger = lg
	}

	o := orchestrator.New(cfg, reg, pipeline, orchestrator.WithDeps(deps))
	if _, unknown := o.Providers(); len(unknown) > 0 {
		l.Warn("unknown providers in config", "ids", unknown)
	}
	return o, nil
}
