package models

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pose.report/internal/estimation"
)

// HeadingUpdate is one magnetic heading sample, already tilt-compensated by
// the magnetometer driver.
type HeadingUpdate struct {
	Heading float64 // magnetic heading (rad)
}

// MagneticModel observes the yaw component of the state from a magnetometer.
// Heading is only usable once roll/pitch are observable, so the model masks
// itself out until the attitude modes are up.
type MagneticModel struct {
	params      *estimation.ParameterList
	stdDev      float64 // heading noise (rad)
	declination float64 // local magnetic declination, added to samples (rad)

	sigma mat.Symmetric
	state *estimation.State
}

// NewMagneticModel returns a magnetic heading model with default tuning.
func NewMagneticModel() *MagneticModel {
	m := &MagneticModel{params: estimation.NewParameterList()}
	m.params.AddFloat("stddev", &m.stdDev, 10*math.Pi/180)
	m.params.AddFloat("declination", &m.declination, 0)
	return m
}

// Init keeps the state handle so heading samples can be unwrapped relative to
// the current yaw estimate.
func (m *MagneticModel) Init(e *estimation.Estimator, s *estimation.State) error {
	m.state = s
	return nil
}

// Cleanup drops the state handle.
func (m *MagneticModel) Cleanup() { m.state = nil }

// Reset clears transient model state.
func (m *MagneticModel) Reset(s *estimation.State) {}

// ApplyStatusMask masks the channel out until roll/pitch are observable.
func (m *MagneticModel) ApplyStatusMask(status estimation.SystemStatus) bool {
	return status.Contains(estimation.StatusRollPitch)
}

// StatusFlags declares the modes this model contributes to.
func (m *MagneticModel) StatusFlags() estimation.SystemStatus {
	return estimation.StatusYaw
}

// Dimension returns the measurement vector length.
func (m *MagneticModel) Dimension() int { return 1 }

// Predicted returns the expected heading for the current state.
func (m *MagneticModel) Predicted(s *estimation.State) mat.Vector {
	return mat.NewVecDense(1, []float64{s.Vector().AtVec(estimation.StateYaw)})
}

// Jacobian returns the observation matrix: a single row selecting yaw.
func (m *MagneticModel) Jacobian(s *estimation.State) mat.Matrix {
	h := mat.NewDense(1, s.Dim(), nil)
	h.Set(0, estimation.StateYaw, 1)
	return h
}

// MeasurementVector applies declination and unwraps the sample onto the
// branch nearest the current yaw estimate, so the innovation never jumps by
// a full turn at the ±π seam.
func (m *MagneticModel) MeasurementVector(u HeadingUpdate) mat.Vector {
	heading := normalizeAngle(u.Heading + m.declination)
	if m.state != nil {
		yaw := m.state.Vector().AtVec(estimation.StateYaw)
		heading = yaw + normalizeAngle(heading-yaw)
	}
	return mat.NewVecDense(1, []float64{heading})
}

// NoiseCovariance returns the configured default heading noise.
func (m *MagneticModel) NoiseCovariance() mat.Symmetric {
	if m.sigma != nil {
		return m.sigma
	}
	r := mat.NewSymDense(1, nil)
	r.SetSym(0, 0, m.stdDev*m.stdDev)
	return r
}

// SetNoiseCovariance overrides the default heading noise.
func (m *MagneticModel) SetNoiseCovariance(sigma mat.Symmetric) { m.sigma = sigma }

// Parameters exposes the model tunables.
func (m *MagneticModel) Parameters() *estimation.ParameterList { return m.params }

// AfterUpdate renormalises the corrected yaw into [-π, π].
func (m *MagneticModel) AfterUpdate(s *estimation.State) {
	x := s.Vector()
	x.SetVec(estimation.StateYaw, normalizeAngle(x.AtVec(estimation.StateYaw)))
}

// normalizeAngle wraps a into [-π, π].
func normalizeAngle(a float64) float64 {
	return math.Atan2(math.Sin(a), math.Cos(a))
}

// MagneticChannel is the measurement channel type for magnetic heading.
type MagneticChannel = estimation.Channel[HeadingUpdate, *MagneticModel]

// NewMagneticChannel creates a magnetic heading channel with a fresh model.
func NewMagneticChannel(name string) *MagneticChannel {
	return estimation.NewChannel[HeadingUpdate](NewMagneticModel(), name)
}
