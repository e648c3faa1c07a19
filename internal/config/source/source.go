package source

import (
	"context"
	"fmt"

	"github.com/ekisa-team/edgeport/internal/config"
)

// Downloader fetches a weights file into a target directory.
type Downloader interface {
	// Download fetches weights into targetDir and returns the local path.
	// The boolean reports whether an up-to-date copy was already present.
	Download(ctx context.Context, src config.WeightsSource, targetDir, weights string) (string, bool, error)
}

// GetDownloader returns the downloader for a source type.
func GetDownloader(_ context.Context, t config.SourceType) (Downloader, error) {
	switch t {
	case config.SourceTypeHuggingFace:
		return NewHuggingFaceDownloader(), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", t)
	}
}
