package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ekisa-team/edgeport/internal/config"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	defaultBinary     = "hf"
	markerFilename    = ".edgeport-downloaded"
)

// HuggingFaceDownloader downloads weights from Hugging Face with the `hf` CLI.
type HuggingFaceDownloader struct {
	binary     string
	retryDelay time.Duration
	maxRetries int
	timeout    time.Duration
}

// NewHuggingFaceDownloader creates a downloader using the `hf` CLI from PATH.
func NewHuggingFaceDownloader() *HuggingFaceDownloader {
	return &HuggingFaceDownloader{
		binary:     defaultBinary,
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
		timeout:    defaultTimeout,
	}
}

// Download downloads the weights file from a Hugging Face repository into targetDir.
func (d *HuggingFaceDownloader) Download(ctx context.Context, src config.WeightsSource, targetDir, weights string) (string, bool, error) {
	hfSource, ok := src.(config.HuggingFaceSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", src)
	}

	repo := strings.TrimSpace(hfSource.Repo)
	if repo == "" {
		return "", false, fmt.Errorf("invalid repo name: %q", hfSource.Repo)
	}

	weightsPath := filepath.Join(targetDir, weights)
	markerPath := filepath.Join(targetDir, markerFilename)
	markerContent := d.markerContent(repo, hfSource.Revision, weights)

	if _, err := os.Stat(weightsPath); err == nil && !hfSource.ForceDownload {
		if !d.shouldRedownload(markerPath, markerContent) {
			slog.Info("Weights already downloaded and up-to-date (marker match), skipping", "repo", repo, "path", weightsPath)
			return weightsPath, true, nil
		}
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	args := d.buildArgs(hfSource, repo, targetDir, weights)
	slog.Debug("Download command", "binary", d.binary, "args", strings.Join(redactArgs(args), " "))

	var lastErr error
	for attempt := range d.maxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "repo", repo, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(d.retryDelay):
			}
		} else {
			slog.Info("Downloading weights", "repo", repo, "path", weightsPath)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		cmd := exec.CommandContext(attemptCtx, d.binary, args...)
		output, err := cmd.CombinedOutput()
		cancel()

		if err == nil {
			if _, statErr := os.Stat(weightsPath); statErr != nil {
				return "", false, fmt.Errorf("download of %s from %s produced no weights file: %w", weights, repo, statErr)
			}

			if err := os.WriteFile(markerPath, []byte(markerContent), 0o644); err != nil {
				slog.Warn("Failed to write download marker", "path", markerPath, "error", err)
			}

			slog.Info("Weights downloaded successfully", "repo", repo, "path", weightsPath, "attempt", attempt+1)
			return weightsPath, false, nil
		}

		lastErr = err
		slog.Error("Failed to download weights", "repo", repo, "attempt", attempt+1, "error", err, "output", string(output))

		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			slog.Warn("Download timed out", "repo", repo, "attempt", attempt+1)
		}
		if ctx.Err() != nil {
			return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
		}
	}

	return "", false, fmt.Errorf("download of %s from %s failed after %d attempts: %w", weights, repo, d.maxRetries, lastErr)
}

// buildArgs builds `hf download` arguments. Without include patterns only
// the weights file itself is requested.
func (d *HuggingFaceDownloader) buildArgs(src config.HuggingFaceSource, repo, targetDir, weights string) []string {
	args := []string{"download", repo}

	if len(src.Include) == 0 {
		args = append(args, weights)
	}

	args = append(args, "--local-dir", targetDir)

	if src.Revision != "" {
		args = append(args, "--revision", src.Revision)
	}
	if src.RepoType != "" {
		args = append(args, "--repo-type", src.RepoType)
	}
	for _, inc := range src.Include {
		args = append(args, "--include", inc)
	}
	for _, exc := range src.Exclude {
		args = append(args, "--exclude", exc)
	}
	if src.ForceDownload {
		args = append(args, "--force-download")
	}
	if src.Token != "" {
		args = append(args, "--token", src.Token)
	}
	if src.MaxWorkers > 0 {
		args = append(args, "--max-workers", fmt.Sprintf("%d", src.MaxWorkers))
	}

	return args
}

// markerContent generates the expected content of the marker file.
// Used to detect if we need to redownload due to config change.
func (d *HuggingFaceDownloader) markerContent(repo, revision, weights string) string {
	return fmt.Sprintf("repo: %s\nrevision: %s\nweights: %s\n", repo, revision, weights)
}

// shouldRedownload checks if the weights should be redownloaded by comparing marker content.
func (d *HuggingFaceDownloader) shouldRedownload(markerPath, expectedContent string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		slog.Debug("Marker file missing or unreadable", "path", markerPath, "error", err)
		return true
	}

	if string(content) != expectedContent {
		slog.Info("Source config changed (marker mismatch), will redownload",
			"marker_path", markerPath,
			"expected_snippet", expectedContent,
			"actual_snippet", string(content))
		return true
	}

	return false
}

// redactArgs hides the token value in an argument list for logging.
func redactArgs(args []string) []string {
	out := slices.Clone(args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--token" {
			out[i+1] = "***"
		}
	}
	return out
}
