package exporter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mock types ---

type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) Facility() Facility {
	args := m.Called()
	return args.Get(0).(Facility)
}

func (m *MockExporter) Export(ctx context.Context, req *Request) (*Response, error) {
	args := m.Called(ctx, req)
	if resp, ok := args.Get(0).(*Response); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExporter) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockVersionProber struct {
	MockExporter
}

func (m *MockVersionProber) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// --- Tests ---

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	mockExporter := new(MockExporter)
	mockExporter.On("Facility").Return(FacilityUltralytics)

	assert.NoError(t, reg.Register(mockExporter))

	got, ok := reg.Get(FacilityUltralytics)
	assert.True(t, ok)
	assert.Equal(t, mockExporter, got)

	// Ensure a missing facility returns false
	_, ok = reg.Get("missing")
	assert.False(t, ok)

	mockExporter.AssertExpectations(t)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := NewRegistry()

	first := new(MockExporter)
	first.On("Facility").Return(FacilityDryRun)
	second := new(MockExporter)
	second.On("Facility").Return(FacilityDryRun)

	assert.NoError(t, reg.Register(first))
	assert.ErrorIs(t, reg.Register(second), ErrAlreadyRegistered)

	got, _ := reg.Get(FacilityDryRun)
	assert.Same(t, first, got)
}

func TestRegistry_GetVersionProber(t *testing.T) {
	reg := NewRegistry()

	// Exporter without version support
	plain := new(MockExporter)
	plain.On("Facility").Return(FacilityDryRun)
	assert.NoError(t, reg.Register(plain))

	vp, ok := reg.GetVersionProber(FacilityDryRun)
	assert.False(t, ok)
	assert.Nil(t, vp)

	// Exporter with version support
	prober := new(MockVersionProber)
	prober.On("Facility").Return(FacilityUltralytics)
	assert.NoError(t, reg.Register(prober))

	vp, ok = reg.GetVersionProber(FacilityUltralytics)
	assert.True(t, ok)
	assert.Equal(t, prober, vp)

	_, ok = reg.GetVersionProber("missing")
	assert.False(t, ok)

	plain.AssertExpectations(t)
	prober.AssertExpectations(t)
}

func TestRegistry_Close(t *testing.T) {
	reg := NewRegistry()

	e1 := new(MockExporter)
	e2 := new(MockExporter)
	e1.On("Facility").Return(FacilityUltralytics)
	e2.On("Facility").Return(FacilityDryRun)

	e1.On("Close").Return(nil).Once()
	e2.On("Close").Return(nil).Once()

	assert.NoError(t, reg.Register(e1))
	assert.NoError(t, reg.Register(e2))

	err := reg.Close()
	assert.NoError(t, err)

	e1.AssertExpectations(t)
	e2.AssertExpectations(t)
}

func TestRegistry_CloseErrorPropagation(t *testing.T) {
	reg := NewRegistry()

	e1 := new(MockExporter)
	e2 := new(MockExporter)

	e1.On("Facility").Return(FacilityUltralytics)
	e2.On("Facility").Return(FacilityDryRun)

	e1.On("Close").Return(errors.New("close failed")).Once()
	e2.On("Close").Return(nil).Once()

	assert.NoError(t, reg.Register(e1))
	assert.NoError(t, reg.Register(e2))

	err := reg.Close()
	assert.EqualError(t, err, "close failed")

	e1.AssertExpectations(t)
	e2.AssertExpectations(t)
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry()

	dryRun := new(MockExporter)
	dryRun.On("Facility").Return(FacilityDryRun)
	assert.NoError(t, reg.Register(dryRun))

	got, err := reg.Lookup(FacilityDryRun)
	assert.NoError(t, err)
	assert.Same(t, dryRun, got)

	_, err = reg.Lookup(FacilityUltralytics)
	assert.ErrorIs(t, err, ErrFacilityNotFound)
	assert.NotErrorIs(t, err, ErrBinaryNotFound)

	_, lookErr := NewExecutor("edgeport-no-such-yolo", time.Second)
	reg.MarkUnavailable(FacilityUltralytics, lookErr)

	_, err = reg.Lookup(FacilityUltralytics)
	assert.ErrorIs(t, err, ErrFacilityNotFound)
	assert.ErrorIs(t, err, ErrBinaryNotFound)
	assert.ErrorContains(t, err, "edgeport-no-such-yolo")
}
