package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/edgeport/internal/envvar"
)

// Environment is the runtime environment edgeport is running in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv reads the environment from EDGEPORT_ENV. Unknown or empty values
// resolve to Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.EdgeportEnv))
}

// Parse converts a raw value into an Environment.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return Production
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}
