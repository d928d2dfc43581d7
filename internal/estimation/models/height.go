package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pose.report/internal/estimation"
)

// HeightUpdate is one barometric altitude sample.
type HeightUpdate struct {
	Height float64 // altitude above the pressure reference (m)
	StdDev float64 // per-sample noise override; 0 uses the model default
}

// Covariance lets a sample carry its own noise. Returns nil when the sample
// has no override.
func (u HeightUpdate) Covariance() mat.Symmetric {
	if u.StdDev <= 0 {
		return nil
	}
	r := mat.NewSymDense(1, nil)
	r.SetSym(0, 0, u.StdDev*u.StdDev)
	return r
}

// HeightModel observes the z component of the state from a barometric
// altimeter. The reference elevation is subtracted from raw samples so the
// observation is in the estimator's local frame.
type HeightModel struct {
	params    *estimation.ParameterList
	stdDev    float64
	elevation float64 // reference elevation subtracted from raw samples

	sigma      mat.Symmetric // runtime override of the default noise
	lastHeight float64
}

// NewHeightModel returns a height model with default tuning.
func NewHeightModel() *HeightModel {
	m := &HeightModel{params: estimation.NewParameterList()}
	m.params.AddFloat("stddev", &m.stdDev, 10.0)
	m.params.AddFloat("elevation", &m.elevation, 0)
	return m
}

// Init binds the model; the height model needs nothing from the estimator.
func (m *HeightModel) Init(e *estimation.Estimator, s *estimation.State) error { return nil }

// Cleanup releases the binding.
func (m *HeightModel) Cleanup() {}

// Reset clears transient model state.
func (m *HeightModel) Reset(s *estimation.State) { m.lastHeight = 0 }

// ApplyStatusMask reports validity: a barometer contributes in every mode.
func (m *HeightModel) ApplyStatusMask(status estimation.SystemStatus) bool { return true }

// StatusFlags declares the modes this model contributes to.
func (m *HeightModel) StatusFlags() estimation.SystemStatus {
	return estimation.StatusZPosition | estimation.StatusZVelocity
}

// Dimension returns the measurement vector length.
func (m *HeightModel) Dimension() int { return 1 }

// Predicted returns the expected altitude for the current state.
func (m *HeightModel) Predicted(s *estimation.State) mat.Vector {
	return mat.NewVecDense(1, []float64{s.Vector().AtVec(estimation.StateZ)})
}

// Jacobian returns the observation matrix: a single row selecting z.
func (m *HeightModel) Jacobian(s *estimation.State) mat.Matrix {
	h := mat.NewDense(1, s.Dim(), nil)
	h.Set(0, estimation.StateZ, 1)
	return h
}

// MeasurementVector converts a sample into the local frame.
func (m *HeightModel) MeasurementVector(u HeightUpdate) mat.Vector {
	return mat.NewVecDense(1, []float64{u.Height - m.elevation})
}

// NoiseCovariance returns the configured default sample noise.
func (m *HeightModel) NoiseCovariance() mat.Symmetric {
	if m.sigma != nil {
		return m.sigma
	}
	r := mat.NewSymDense(1, nil)
	r.SetSym(0, 0, m.stdDev*m.stdDev)
	return r
}

// SetNoiseCovariance overrides the default sample noise.
func (m *HeightModel) SetNoiseCovariance(sigma mat.Symmetric) { m.sigma = sigma }

// Parameters exposes the model tunables.
func (m *HeightModel) Parameters() *estimation.ParameterList { return m.params }

// AfterUpdate keeps the corrected altitude for diagnostics.
func (m *HeightModel) AfterUpdate(s *estimation.State) {
	m.lastHeight = s.Vector().AtVec(estimation.StateZ)
}

// LastHeight returns the altitude after the most recent accepted update.
func (m *HeightModel) LastHeight() float64 { return m.lastHeight }

// SetElevation moves the pressure reference.
func (m *HeightModel) SetElevation(elevation float64) { m.elevation = elevation }

// HeightChannel is the measurement channel type for barometric altitude.
type HeightChannel = estimation.Channel[HeightUpdate, *HeightModel]

// NewHeightChannel creates a height channel with a fresh model.
func NewHeightChannel(name string) *HeightChannel {
	return estimation.NewChannel[HeightUpdate](NewHeightModel(), name)
}
