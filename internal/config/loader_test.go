package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ekisa-team/edgeport/internal/envvar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(envvar.EdgeportYoloBin, "")
	t.Setenv(envvar.EdgeportWorkDir, "")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_File(t *testing.T) {
	t.Setenv(envvar.EdgeportYoloBin, "")
	t.Setenv(envvar.EdgeportWorkDir, "")

	path := writeConfig(t, `
version: "1"
weights: yolov8s.pt
work_dir: /srv/models
source:
  huggingface:
    repo: Ultralytics/YOLOv8
    include: [yolov8s.pt]
exporter:
  facility: dryrun
  timeout: 5m
exports:
  - name: onnx
    format: onnx
    options:
      imgsz: [480, 640]
      opset: 12
    start_message: "Exporting {stem} to ONNX..."
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "yolov8s.pt", cfg.Weights)
	assert.Equal(t, "/srv/models", cfg.WorkDir)
	assert.Equal(t, "dryrun", cfg.Exporter.Facility)
	assert.Equal(t, DefaultBinary, cfg.Exporter.Binary)
	assert.Equal(t, 5*time.Minute, cfg.Exporter.Timeout.Std())
	assert.Equal(t, DefaultCompleteMessage, cfg.CompleteMessage)
	require.NotNil(t, cfg.Source.HuggingFace)
	assert.Equal(t, []string{"yolov8s.pt"}, cfg.Source.HuggingFace.Include)

	require.Len(t, cfg.Exports, 1)
	assert.Equal(t, "onnx", cfg.Exports[0].Format)
	assert.Equal(t, []any{480, 640}, cfg.Exports[0].Options["imgsz"])
	assert.Equal(t, 12, cfg.Exports[0].Options["opset"])
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	t.Setenv(envvar.EdgeportYoloBin, "")
	t.Setenv(envvar.EdgeportWorkDir, "")

	cfg, err := Load(writeConfig(t, ""), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(envvar.EdgeportYoloBin, "/opt/venv/bin/yolo")
	t.Setenv(envvar.EdgeportWorkDir, "/data")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "/opt/venv/bin/yolo", cfg.Exporter.Binary)
	assert.Equal(t, "/data", cfg.WorkDir)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "exports: [\n"},
		{"unknown field", "weigths: yolov8n.pt\n"},
		{"unknown format", "exports:\n  - name: x\n    format: caffe\n"},
		{"unknown facility", "exporter:\n  facility: tensorrt\n"},
		{"bad timeout", "exporter:\n  timeout: soon\n"},
		{"export without name", "exports:\n  - format: onnx\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content), "")
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAndValidate_ExternalSchema(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "strict.schema.json")
	require.NoError(t, os.WriteFile(schema, []byte(`{"type":"object","required":["weights"]}`), 0o644))

	_, err := LoadAndValidate(writeConfig(t, "version: \"1\"\n"), schema)
	assert.ErrorIs(t, err, ErrInvalid)

	cfg, err := LoadAndValidate(writeConfig(t, "weights: best.pt\n"), schema)
	require.NoError(t, err)
	assert.Equal(t, "best.pt", cfg.Weights)
}
