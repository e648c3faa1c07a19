package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ekisa-team/edgeport/internal/config"
	"github.com/ekisa-team/edgeport/internal/config/source"
	"github.com/ekisa-team/edgeport/internal/exporter"
	"github.com/ekisa-team/edgeport/internal/model"
	"github.com/ekisa-team/edgeport/internal/xfs"
)

// Driver loads one weights file and runs the configured exports against it,
// one after another, printing a progress line before and after each.
type Driver struct {
	cfg          *config.Config
	exporters    *exporter.Registry
	downloader   source.Downloader
	stdout       io.Writer
	versionCheck bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithStdout sets where progress lines are printed (os.Stdout by default).
func WithStdout(w io.Writer) Option {
	return func(d *Driver) {
		d.stdout = w
	}
}

// WithDownloader overrides the downloader picked for the configured source.
func WithDownloader(dl source.Downloader) Option {
	return func(d *Driver) {
		d.downloader = dl
	}
}

// WithVersionCheck logs the facility version before the first export.
func WithVersionCheck(enabled bool) Option {
	return func(d *Driver) {
		d.versionCheck = enabled
	}
}

// NewDriver creates a driver for cfg. The config is copied, so later
// changes by the caller do not affect the driver.
func NewDriver(cfg *config.Config, exporters *exporter.Registry, opts ...Option) *Driver {
	d := &Driver{
		cfg:       cfg.Clone(),
		exporters: exporters,
		stdout:    os.Stdout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Report describes a run.
type Report struct {
	Handle *model.Handle
	Steps  []StepReport
}

// StepReport describes one finished export.
type StepReport struct {
	Name      string
	Format    string
	Artifacts []string
	Metadata  *exporter.ResponseMetadata
}

// Run executes the load step and every export in order. It stops at the
// first failure; artifacts of earlier exports are left in place. The
// returned report covers the steps that finished.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	workDir, err := filepath.Abs(d.workDir())
	if err != nil {
		return nil, fmt.Errorf("resolve work dir: %w", err)
	}

	handle, err := d.load(ctx, workDir)
	if err != nil {
		return nil, err
	}

	report := &Report{Handle: handle}

	facility := exporter.Facility(d.cfg.Exporter.Facility)
	exp, err := d.exporters.Lookup(facility)
	if err != nil {
		return report, err
	}

	if d.versionCheck {
		d.logVersion(ctx, facility)
	}

	for _, step := range d.cfg.Exports {
		result, err := d.export(ctx, exp, handle, workDir, step)
		if err != nil {
			return report, err
		}
		report.Steps = append(report.Steps, *result)
	}

	d.print(d.cfg.CompleteMessage, handle)

	slog.Info("Conversion finished", "weights", handle.Path, "exports", len(report.Steps))
	return report, nil
}

func (d *Driver) workDir() string {
	if d.cfg.WorkDir != "" {
		return xfs.ExpandTilde(d.cfg.WorkDir)
	}
	return "."
}

// load resolves the weights path and loads it, fetching it first when it is
// missing and a source is configured.
func (d *Driver) load(ctx context.Context, workDir string) (*model.Handle, error) {
	weights := xfs.ExpandTilde(d.cfg.Weights)
	path := weights
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, weights)
	}

	handle, err := model.Load(path)
	if err == nil || !errors.Is(err, model.ErrNotFound) {
		return handle, err
	}

	src, srcErr := d.cfg.GetSource()
	if srcErr != nil {
		return nil, err
	}

	dl, dlErr := d.downloaderFor(ctx, src)
	if dlErr != nil {
		return nil, fmt.Errorf("%w (fetch failed: %w)", err, dlErr)
	}

	slog.Info("Weights missing, fetching from source", "path", path, "source", src.Type())
	if _, _, dlErr := dl.Download(ctx, src, filepath.Dir(path), filepath.Base(path)); dlErr != nil {
		return nil, fmt.Errorf("%w (fetch failed: %w)", err, dlErr)
	}

	return model.Load(path)
}

func (d *Driver) downloaderFor(ctx context.Context, src config.WeightsSource) (source.Downloader, error) {
	if d.downloader != nil {
		return d.downloader, nil
	}
	return source.GetDownloader(ctx, src.Type())
}

func (d *Driver) export(ctx context.Context, exp exporter.Exporter, handle *model.Handle, workDir string, step config.ExportConfig) (*StepReport, error) {
	d.print(step.StartMessage, handle)

	before, err := xfs.TakeSnapshot(workDir)
	if err != nil {
		slog.Warn("Failed to snapshot work dir", "dir", workDir, "error", err)
	}

	start := time.Now()
	resp, err := exp.Export(ctx, &exporter.Request{
		WeightsPath: handle.Path,
		WorkDir:     workDir,
		Format:      step.Format,
		Options:     config.CloneOptions(step.Options),
	})
	if err != nil {
		slog.Error("Export failed", "name", step.Name, "format", step.Format, "error", err)
		return nil, fmt.Errorf("%s export: %w", step.Name, err)
	}

	var artifacts []string
	if before != nil {
		after, err := xfs.TakeSnapshot(workDir)
		if err != nil {
			slog.Warn("Failed to snapshot work dir", "dir", workDir, "error", err)
		} else {
			artifacts = xfs.Changed(before, after)
		}
	}

	slog.Info("Export finished",
		"name", step.Name,
		"format", step.Format,
		"duration", time.Since(start).Round(time.Millisecond),
		"artifacts", artifacts)

	d.print(step.DoneMessage, handle)

	var meta *exporter.ResponseMetadata
	if resp != nil {
		meta = resp.Metadata
	}

	return &StepReport{
		Name:      step.Name,
		Format:    step.Format,
		Artifacts: artifacts,
		Metadata:  meta,
	}, nil
}

func (d *Driver) logVersion(ctx context.Context, facility exporter.Facility) {
	vp, ok := d.exporters.GetVersionProber(facility)
	if !ok {
		slog.Debug("Facility does not report a version", "facility", facility)
		return
	}

	v, err := vp.Version(ctx)
	if err != nil {
		slog.Warn("Failed to probe facility version", "facility", facility, "error", err)
		return
	}

	slog.Info("Export facility", "facility", facility, "version", v)
}

// print writes a progress line. Empty messages are skipped.
func (d *Driver) print(msg string, handle *model.Handle) {
	if msg == "" {
		return
	}

	fmt.Fprintln(d.stdout, strings.ReplaceAll(msg, "{stem}", handle.Name))
}
