package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/ekisa-team/edgeport/internal/envvar"
	"github.com/ekisa-team/edgeport/internal/xfs"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

const embeddedSchemaURL = "edgeport.v1.schema.json"

//go:embed edgeport.v1.schema.json
var embeddedSchema []byte

// Load returns the configuration for a run. An empty path yields the
// built-in defaults. Environment overrides are applied last.
func Load(path, schemaPath string) (*Config, error) {
	var (
		cfg *Config
		err error
	)

	if path == "" {
		cfg = DefaultConfig()
	} else {
		cfg, err = LoadAndValidate(xfs.ExpandTilde(path), schemaPath)
		if err != nil {
			return nil, err
		}
		applyDefaults(cfg)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadAndValidate loads the YAML file at path and validates it against the
// schema at schemaPath, or the embedded schema when schemaPath is empty.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML: %w", ErrInvalid, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: validation failed: %w", ErrInvalid, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal into Config struct: %w", ErrInvalid, err)
	}

	return &config, nil
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	if schemaPath != "" {
		return jsonschema.Compile(xfs.ExpandTilde(schemaPath))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(embeddedSchemaURL, bytes.NewReader(embeddedSchema)); err != nil {
		return nil, err
	}

	return compiler.Compile(embeddedSchemaURL)
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) {
	if bin := os.Getenv(envvar.EdgeportYoloBin); bin != "" {
		cfg.Exporter.Binary = xfs.ExpandTilde(bin)
	}
	if dir := os.Getenv(envvar.EdgeportWorkDir); dir != "" {
		cfg.WorkDir = xfs.ExpandTilde(dir)
	}
}
