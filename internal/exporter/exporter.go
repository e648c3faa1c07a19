package exporter

import (
	"context"
	"time"
)

// Facility is a string identifier for an external model-export facility.
type Facility string

const (
	FacilityUltralytics Facility = "ultralytics"
	FacilityDryRun      Facility = "dryrun"
)

// Exporter defines the core interface for all export facilities.
type Exporter interface {
	// Facility returns the facility identifier.
	Facility() Facility

	// Export converts the weights into a single target format.
	Export(ctx context.Context, req *Request) (*Response, error)

	// Close cleans up resources.
	Close() error
}

// VersionProber is an optional interface for facilities that can report
// their own version.
type VersionProber interface {
	Exporter

	// Version returns the facility's version string.
	Version(ctx context.Context) (string, error)
}

// Request encapsulates all parameters for an export call.
type Request struct {
	// WeightsPath is the path to the weights file.
	WeightsPath string

	// WorkDir is the directory the facility writes its artifacts into.
	WorkDir string

	// Format is the facility's target format name, e.g. "tflite".
	Format string

	// Options contains facility-specific export options.
	Options map[string]any
}

// Response contains the result of an export call.
type Response struct {
	Metadata *ResponseMetadata
}

// ResponseMetadata contains metadata about the export.
type ResponseMetadata struct {
	Facility  Facility      `json:"facility"`
	Format    string        `json:"format"`
	Model     string        `json:"model"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Args      []string      `json:"args"`
}

// StreamChunk represents a single chunk of facility output.
type StreamChunk struct {
	// Data is the chunk content.
	Data []byte

	// Done indicates if this is the final chunk.
	Done bool

	// Error if something went wrong.
	Error error
}
