package exporter

import (
	"errors"
	"fmt"
	"sync"
)

// Registry manages exporter instances.
type Registry struct {
	exporters   map[Facility]Exporter
	unavailable map[Facility]error
	mu          sync.RWMutex
}

// NewRegistry creates a new exporter registry.
func NewRegistry() *Registry {
	return &Registry{
		exporters:   make(map[Facility]Exporter),
		unavailable: make(map[Facility]error),
	}
}

// Register adds an exporter to the registry.
func (r *Registry) Register(e Exporter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.exporters[e.Facility()]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, e.Facility())
	}

	r.exporters[e.Facility()] = e
	return nil
}

// Get retrieves an exporter by facility.
func (r *Registry) Get(facility Facility) (Exporter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.exporters[facility]
	return e, ok
}

// MarkUnavailable records why a facility could not be registered.
func (r *Registry) MarkUnavailable(facility Facility, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unavailable[facility] = cause
}

// Lookup is Get with an error: ErrFacilityNotFound, joined with the cause
// recorded by MarkUnavailable if there is one.
func (r *Registry) Lookup(facility Facility) (Exporter, error) {
	if e, ok := r.Get(facility); ok {
		return e, nil
	}

	r.mu.RLock()
	cause := r.unavailable[facility]
	r.mu.RUnlock()

	if cause != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFacilityNotFound, facility, cause)
	}

	return nil, fmt.Errorf("%w: %s", ErrFacilityNotFound, facility)
}

// GetVersionProber retrieves an exporter that can report its version.
func (r *Registry) GetVersionProber(facility Facility) (VersionProber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.exporters[facility]
	if !ok {
		return nil, false
	}

	vp, ok := e.(VersionProber)
	return vp, ok
}

// Close closes all registered exporters and joins their errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.exporters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
