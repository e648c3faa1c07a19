package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ekisa-team/edgeport/internal/config"
	"github.com/ekisa-team/edgeport/internal/env"
	"github.com/ekisa-team/edgeport/internal/envvar"
	"github.com/ekisa-team/edgeport/internal/exporter"
	"github.com/ekisa-team/edgeport/internal/exporter/dryrun"
	"github.com/ekisa-team/edgeport/internal/exporter/ultralytics"
	"github.com/ekisa-team/edgeport/internal/logger"
	"github.com/ekisa-team/edgeport/internal/service"
	"github.com/ekisa-team/edgeport/internal/xfs"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		flagConfigPath   = flag.String("config", "", "Path to config file (default: config.yaml in the user config dir if present, else built-in defaults)")
		flagSchemaPath   = flag.String("schema", "", "Path to schema file (embedded schema when empty)")
		flagLogFile      = flag.String("log-file", defaultLogFile(), "Path to log file (empty disables file logging)")
		flagWatch        = flag.Bool("watch", false, "Re-run the conversion when the weights or config file change")
		flagDryRun       = flag.Bool("dry-run", false, "Log the export commands without running them")
		flagVersionCheck = flag.Bool("version-check", false, "Log the export facility version before exporting")
	)
	flag.Parse()

	environment := env.FromEnv()

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(*flagLogFile != ""),
			logger.WithLogFile(xfs.ExpandTilde(*flagLogFile)),
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := configPath(*flagConfigPath)

	cfg, err := config.Load(cfgPath, *flagSchemaPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return 1
	}

	r := &runner{
		dryRun:       *flagDryRun,
		versionCheck: *flagVersionCheck,
	}

	if err := r.convert(ctx, cfg); err != nil {
		slog.Error("Conversion failed", "error", err)
		if !*flagWatch {
			return 1
		}
	}

	if !*flagWatch {
		return 0
	}

	reloaded := make(chan struct{}, 1)
	watcher, err := config.NewWatcher(cfgPath, *flagSchemaPath, []string{weightsPath(cfg)}, func(_ *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}

		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	if err != nil {
		slog.Error("Failed to create watcher", "error", err)
		return 1
	}
	defer watcher.Close()

	slog.Info("Watching for changes", "config", cfgPath, "weights", weightsPath(cfg))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutting down")
			return 0
		case <-reloaded:
			if err := r.convert(ctx, watcher.Snapshot()); err != nil {
				slog.Error("Conversion failed", "error", err)
			}
		}
	}
}

// runner runs one conversion with the options fixed by the command line.
type runner struct {
	dryRun       bool
	versionCheck bool
}

func (r *runner) convert(ctx context.Context, cfg *config.Config) error {
	if r.dryRun {
		cfg = cfg.Clone()
		cfg.Exporter.Facility = string(exporter.FacilityDryRun)
	}

	registry := newRegistry(cfg)
	defer registry.Close()

	driver := service.NewDriver(cfg, registry, service.WithVersionCheck(r.versionCheck))

	_, err := driver.Run(ctx)
	return err
}

// newRegistry registers the available export facilities. A missing `yolo`
// binary is recorded on the registry: the driver reports it once the
// weights load.
func newRegistry(cfg *config.Config) *exporter.Registry {
	registry := exporter.NewRegistry()

	if err := registry.Register(dryrun.NewBackend(cfg.Exporter.Binary)); err != nil {
		slog.Error("Failed to register facility", "facility", exporter.FacilityDryRun, "error", err)
	}

	if cfg.Exporter.Facility != string(exporter.FacilityUltralytics) {
		return registry
	}

	backend, err := ultralytics.NewBackend(cfg.Exporter.Binary, cfg.Exporter.Timeout.Std())
	if err != nil {
		slog.Debug("Export facility unavailable", "facility", exporter.FacilityUltralytics, "error", err)
		registry.MarkUnavailable(exporter.FacilityUltralytics, err)
		return registry
	}

	if err := registry.Register(backend); err != nil {
		slog.Error("Failed to register facility", "facility", exporter.FacilityUltralytics, "error", err)
	}

	return registry
}

func weightsPath(cfg *config.Config) string {
	weights := xfs.ExpandTilde(cfg.Weights)
	if filepath.IsAbs(weights) {
		return weights
	}

	dir := "."
	if cfg.WorkDir != "" {
		dir = xfs.ExpandTilde(cfg.WorkDir)
	}
	return filepath.Join(dir, weights)
}

// configPath returns the -config value, or config.yaml in the user config
// directory when the flag is empty and that file exists. An empty result
// selects the built-in defaults.
func configPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}

	p := filepath.Join(config.DefaultConfigPath(), "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}

	return ""
}

func defaultLogFile() string {
	if p := os.Getenv(envvar.EdgeportLogFile); p != "" {
		return p
	}
	return config.DefaultLogPath()
}
