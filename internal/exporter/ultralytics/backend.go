package ultralytics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ekisa-team/edgeport/internal/exporter"
)

// Backend implements exporter.Exporter and exporter.VersionProber on top of
// the Ultralytics `yolo` CLI.
type Backend struct {
	executor *exporter.Executor
}

// NewBackend creates a new Ultralytics backend. binary is resolved against PATH.
func NewBackend(binary string, timeout time.Duration) (*Backend, error) {
	executor, err := exporter.NewExecutor(binary, timeout)
	if err != nil {
		return nil, err
	}

	return NewBackendWithExecutor(executor), nil
}

// NewBackendWithExecutor creates a backend around an existing executor.
func NewBackendWithExecutor(executor *exporter.Executor) *Backend {
	return &Backend{executor: executor}
}

// Facility returns the facility identifier.
func (b *Backend) Facility() exporter.Facility {
	return exporter.FacilityUltralytics
}

// Export runs `yolo export` for a single format. The CLI's progress output is
// forwarded to the debug log line by line.
func (b *Backend) Export(ctx context.Context, req *exporter.Request) (*exporter.Response, error) {
	args, err := BuildArgs(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", exporter.ErrExportFailed, req.Format, err)
	}

	slog.Debug("Invoking export facility", "binary", b.executor.BinaryPath(), "args", strings.Join(args, " "), "dir", req.WorkDir)

	start := time.Now()
	ch, err := b.executor.Stream(ctx, req.WorkDir, args, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", exporter.ErrExportFailed, req.Format, err)
	}

	var streamErr error
	for chunk := range ch {
		if chunk.Error != nil {
			streamErr = chunk.Error
		}
		if line := strings.TrimRight(string(chunk.Data), "\r\n"); line != "" {
			slog.Debug("Export output", "format", req.Format, "line", line)
		}
	}

	if streamErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", exporter.ErrExportFailed, req.Format, streamErr)
	}

	return &exporter.Response{
		Metadata: &exporter.ResponseMetadata{
			Facility:  b.Facility(),
			Format:    req.Format,
			Model:     req.WeightsPath,
			Timestamp: time.Now(),
			Duration:  time.Since(start),
			Args:      args,
		},
	}, nil
}

// Version returns the output of `yolo version`.
func (b *Backend) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := b.executor.Execute(ctx, "", []string{"version"}, nil)
	if err != nil {
		return "", fmt.Errorf("version probe failed: %w\nstderr: %s", err, stderr)
	}

	return strings.TrimSpace(string(stdout)), nil
}

// Close cleans up resources. The CLI does not hold any between calls.
func (b *Backend) Close() error {
	return nil
}
