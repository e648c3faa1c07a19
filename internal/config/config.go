package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// SourceType represents the type of weights source.
type SourceType string

const (
	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
)

// Error definitions for the config package.
var (
	ErrInvalid  = errors.New("invalid configuration")
	ErrNoSource = errors.New("no source configured for weights")
)

// Config holds the main configuration for the application.
type Config struct {
	Version         string         `json:"version"                    yaml:"version"`
	Weights         string         `json:"weights"                    yaml:"weights"`
	WorkDir         string         `json:"work_dir,omitempty"         yaml:"work_dir,omitempty"`
	Source          SourceConfig   `json:"source,omitempty"           yaml:"source,omitempty"`
	Exporter        ExporterConfig `json:"exporter"                   yaml:"exporter"`
	Exports         []ExportConfig `json:"exports"                    yaml:"exports"`
	CompleteMessage string         `json:"complete_message,omitempty" yaml:"complete_message,omitempty"`
}

// ExporterConfig selects and tunes the export facility.
type ExporterConfig struct {
	Facility string   `json:"facility"          yaml:"facility"`
	Binary   string   `json:"binary"            yaml:"binary"`
	Timeout  Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ExportConfig is one export step: a target format, its facility options
// and the progress lines printed around it. "{stem}" in a message is
// replaced with the weights file name without extension.
type ExportConfig struct {
	Name         string         `json:"name"                    yaml:"name"`
	Format       string         `json:"format"                  yaml:"format"`
	Options      map[string]any `json:"options,omitempty"       yaml:"options,omitempty"`
	StartMessage string         `json:"start_message,omitempty" yaml:"start_message,omitempty"`
	DoneMessage  string         `json:"done_message,omitempty"  yaml:"done_message,omitempty"`
}

// Clone returns a deep copy of the export configuration.
func (e ExportConfig) Clone() ExportConfig {
	e.Options = CloneOptions(e.Options)
	return e
}

// CloneOptions deep-copies an options map, including nested lists and maps.
func CloneOptions(opts map[string]any) map[string]any {
	if opts == nil {
		return nil
	}

	out := make(map[string]any, len(opts))
	for k, v := range opts {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		return CloneOptions(x)
	default:
		return v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Exports = make([]ExportConfig, len(c.Exports))
	for i, e := range c.Exports {
		out.Exports[i] = e.Clone()
	}
	if hf := c.Source.HuggingFace; hf != nil {
		cp := *hf
		cp.Include = append([]string(nil), hf.Include...)
		cp.Exclude = append([]string(nil), hf.Exclude...)
		out.Source.HuggingFace = &cp
	}
	return &out
}

// Validate checks invariants the schema cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Weights) == "" {
		return fmt.Errorf("%w: weights is required", ErrInvalid)
	}
	if len(c.Exports) == 0 {
		return fmt.Errorf("%w: at least one export is required", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Exports))
	for i, e := range c.Exports {
		if e.Name == "" || e.Format == "" {
			return fmt.Errorf("%w: exports[%d] needs a name and a format", ErrInvalid, i)
		}
		if seen[e.Name] {
			return fmt.Errorf("%w: duplicate export name %q", ErrInvalid, e.Name)
		}
		seen[e.Name] = true
	}

	return nil
}

// -------------------------
// Source definitions
// -------------------------

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// WeightsSource represents a remote source for the weights file.
type WeightsSource interface {
	Type() SourceType
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// GetSource returns the active weights source.
func (c *Config) GetSource() (WeightsSource, error) {
	if c.Source.HuggingFace != nil {
		return *c.Source.HuggingFace, nil
	}

	return nil, ErrNoSource
}

// SetHuggingFaceSource sets the Hugging Face source.
func (c *Config) SetHuggingFaceSource(source HuggingFaceSource) {
	c.Source.HuggingFace = &source
}

// -------------------------
// Duration
// -------------------------

// Duration is a time.Duration written as a Go duration string ("30m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: timeout: %w", ErrInvalid, err)
	}

	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
