package dryrun

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ekisa-team/edgeport/internal/exporter"
	"github.com/ekisa-team/edgeport/internal/exporter/ultralytics"
)

// Backend implements exporter.Exporter without running anything. It logs the
// command line the Ultralytics facility would have been invoked with.
type Backend struct {
	binary string
}

// NewBackend creates a new dry-run backend reporting commands for binary.
func NewBackend(binary string) *Backend {
	return &Backend{binary: binary}
}

// Facility returns the facility identifier.
func (b *Backend) Facility() exporter.Facility {
	return exporter.FacilityDryRun
}

// Export validates the request and logs the command it stands for.
func (b *Backend) Export(ctx context.Context, req *exporter.Request) (*exporter.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args, err := ultralytics.BuildArgs(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", exporter.ErrExportFailed, req.Format, err)
	}

	slog.Info("Dry run, skipping export", "command", b.binary+" "+strings.Join(args, " "), "dir", req.WorkDir)

	return &exporter.Response{
		Metadata: &exporter.ResponseMetadata{
			Facility:  b.Facility(),
			Format:    req.Format,
			Model:     req.WeightsPath,
			Timestamp: time.Now(),
			Args:      args,
		},
	}, nil
}

// Close cleans up resources. Dry runs hold none.
func (b *Backend) Close() error {
	return nil
}
