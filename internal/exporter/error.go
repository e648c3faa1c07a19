package exporter

import "errors"

// Error definitions for the exporter package.
var (
	ErrFacilityNotFound  = errors.New("export facility not found in registry")
	ErrAlreadyRegistered = errors.New("export facility is already registered in the registry")
	ErrBinaryNotFound    = errors.New("export facility binary not found")
	ErrExportFailed      = errors.New("export failed")
	ErrInvalidOptions    = errors.New("invalid export options")
)
