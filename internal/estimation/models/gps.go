package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pose.report/internal/estimation"
)

// GPSUpdate is one GPS fix projected into the estimator's local plane.
type GPSUpdate struct {
	X, Y   float64 // east/north position (m)
	VX, VY float64 // east/north velocity (m/s)

	// Satellites is the number of satellites used for the fix; 0 means the
	// receiver did not report it.
	Satellites int

	// Cov optionally carries the receiver's own 4x4 fix covariance.
	Cov mat.Symmetric
}

// Covariance returns the fix covariance, or nil to use the model default.
func (u GPSUpdate) Covariance() mat.Symmetric { return u.Cov }

// GPSModel observes horizontal position and velocity. Fixes with too few
// satellites are rejected ahead of dispatch.
type GPSModel struct {
	params        *estimation.ParameterList
	stdDevPos     float64 // position noise (m)
	stdDevVel     float64 // velocity noise (m/s)
	minSatellites int

	sigma mat.Symmetric
}

// NewGPSModel returns a GPS model with default tuning.
func NewGPSModel() *GPSModel {
	m := &GPSModel{params: estimation.NewParameterList()}
	m.params.AddFloat("position_stddev", &m.stdDevPos, 10.0)
	m.params.AddFloat("velocity_stddev", &m.stdDevVel, 1.0)
	m.params.AddInt("min_satellites", &m.minSatellites, 4)
	return m
}

// Init binds the model; the GPS model needs nothing from the estimator.
func (m *GPSModel) Init(e *estimation.Estimator, s *estimation.State) error { return nil }

// Cleanup releases the binding.
func (m *GPSModel) Cleanup() {}

// Reset clears transient model state.
func (m *GPSModel) Reset(s *estimation.State) {}

// ApplyStatusMask reports validity: GPS contributes in every mode.
func (m *GPSModel) ApplyStatusMask(status estimation.SystemStatus) bool { return true }

// StatusFlags declares the modes this model contributes to.
func (m *GPSModel) StatusFlags() estimation.SystemStatus {
	return estimation.StatusXYPosition | estimation.StatusXYVelocity
}

// Dimension returns the measurement vector length.
func (m *GPSModel) Dimension() int { return 4 }

// Predicted returns the expected fix for the current state.
func (m *GPSModel) Predicted(s *estimation.State) mat.Vector {
	x := s.Vector()
	return mat.NewVecDense(4, []float64{
		x.AtVec(estimation.StateX),
		x.AtVec(estimation.StateY),
		x.AtVec(estimation.StateVX),
		x.AtVec(estimation.StateVY),
	})
}

// Jacobian returns the observation matrix selecting x, y, vx, vy.
func (m *GPSModel) Jacobian(s *estimation.State) mat.Matrix {
	h := mat.NewDense(4, s.Dim(), nil)
	h.Set(0, estimation.StateX, 1)
	h.Set(1, estimation.StateY, 1)
	h.Set(2, estimation.StateVX, 1)
	h.Set(3, estimation.StateVY, 1)
	return h
}

// MeasurementVector extracts the fix as a measurement vector.
func (m *GPSModel) MeasurementVector(u GPSUpdate) mat.Vector {
	return mat.NewVecDense(4, []float64{u.X, u.Y, u.VX, u.VY})
}

// BeforeUpdate rejects fixes with too few satellites. A fix that does not
// report a satellite count passes.
func (m *GPSModel) BeforeUpdate(s *estimation.State, u GPSUpdate) bool {
	return u.Satellites == 0 || u.Satellites >= m.minSatellites
}

// NoiseCovariance returns the configured default fix noise.
func (m *GPSModel) NoiseCovariance() mat.Symmetric {
	if m.sigma != nil {
		return m.sigma
	}
	r := mat.NewSymDense(4, nil)
	r.SetSym(0, 0, m.stdDevPos*m.stdDevPos)
	r.SetSym(1, 1, m.stdDevPos*m.stdDevPos)
	r.SetSym(2, 2, m.stdDevVel*m.stdDevVel)
	r.SetSym(3, 3, m.stdDevVel*m.stdDevVel)
	return r
}

// SetNoiseCovariance overrides the default fix noise.
func (m *GPSModel) SetNoiseCovariance(sigma mat.Symmetric) { m.sigma = sigma }

// Parameters exposes the model tunables.
func (m *GPSModel) Parameters() *estimation.ParameterList { return m.params }

// GPSChannel is the measurement channel type for GPS fixes.
type GPSChannel = estimation.Channel[GPSUpdate, *GPSModel]

// NewGPSChannel creates a GPS channel with a fresh model.
func NewGPSChannel(name string) *GPSChannel {
	return estimation.NewChannel[GPSUpdate](NewGPSModel(), name)
}
