package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	// DefaultWeights is the weights file read from the working directory.
	DefaultWeights = "yolov8n.pt"

	// DefaultBinary is the Ultralytics CLI entry point.
	DefaultBinary = "yolo"

	// DefaultFacility is the export facility used when none is configured.
	DefaultFacility = "ultralytics"

	// DefaultTimeout bounds a single export call.
	DefaultTimeout = 30 * time.Minute

	// DefaultImageSize is the square input resolution of both exports.
	DefaultImageSize = 640

	// DefaultCompleteMessage is printed once every export succeeded.
	DefaultCompleteMessage = "Conversion complete!"

	currentVersion = "1"
)

// DefaultConfig returns the built-in configuration: a float32 TFLite export
// followed by a Core ML export with embedded NMS. Every call returns fresh
// values so callers never share option maps.
func DefaultConfig() *Config {
	return &Config{
		Version: currentVersion,
		Weights: DefaultWeights,
		Exporter: ExporterConfig{
			Facility: DefaultFacility,
			Binary:   DefaultBinary,
			Timeout:  Duration(DefaultTimeout),
		},
		Exports: []ExportConfig{
			DefaultTFLiteExport(),
			DefaultCoreMLExport(),
		},
		CompleteMessage: DefaultCompleteMessage,
	}
}

// DefaultTFLiteExport is the mobile-inference export: float32, no int8.
func DefaultTFLiteExport() ExportConfig {
	return ExportConfig{
		Name:   "tflite",
		Format: "tflite",
		Options: map[string]any{
			"imgsz": DefaultImageSize,
			"half":  false,
			"int8":  false,
		},
		StartMessage: "Exporting to TFLite (Float32)...",
		DoneMessage:  "TFLite model exported as {stem}_float32.tflite",
	}
}

// DefaultCoreMLExport is the Apple-platform export with NMS in the model.
func DefaultCoreMLExport() ExportConfig {
	return ExportConfig{
		Name:   "coreml",
		Format: "coreml",
		Options: map[string]any{
			"imgsz": DefaultImageSize,
			"nms":   true,
		},
		StartMessage: "Exporting to Core ML (for iOS)...",
		DoneMessage:  "Core ML model exported as {stem}.mlmodel (or {stem}.mlpackage)",
	}
}

// applyDefaults fills fields a config file left empty.
func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = currentVersion
	}
	if cfg.Weights == "" {
		cfg.Weights = DefaultWeights
	}
	if cfg.Exporter.Facility == "" {
		cfg.Exporter.Facility = DefaultFacility
	}
	if cfg.Exporter.Binary == "" {
		cfg.Exporter.Binary = DefaultBinary
	}
	if cfg.Exporter.Timeout <= 0 {
		cfg.Exporter.Timeout = Duration(DefaultTimeout)
	}
	if len(cfg.Exports) == 0 {
		cfg.Exports = DefaultConfig().Exports
	}
	if cfg.CompleteMessage == "" {
		cfg.CompleteMessage = DefaultCompleteMessage
	}
}

// DefaultConfigPath returns the default path for the edgeport config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "edgeport", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "edgeport")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "edgeport")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "edgeport")
		}
		return filepath.Join(home, ".config", "edgeport")
	}
}

// DefaultLogPath returns the default path for the edgeport log file.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "edgeport", "logs", "edgeport.log")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "edgeport", "logs", "edgeport.log")
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "edgeport", "edgeport.log")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			return filepath.Join(xdg, "edgeport", "edgeport.log")
		}
		return filepath.Join(home, ".local", "state", "edgeport", "edgeport.log")
	}
}
