package estimation

import "gonum.org/v1/gonum/mat"

// Observation describes how a measurement maps onto the state: the expected
// measurement for the current estimate and its Jacobian. The dispatch core
// forwards it, together with the measurement vector and noise covariance, to
// the filter's correction step.
type Observation interface {
	// Dimension returns the measurement vector length.
	Dimension() int

	// Predicted returns the expected measurement h(x) for the current state.
	Predicted(s *State) mat.Vector

	// Jacobian returns dh/dx evaluated at the current state
	// (Dimension() rows by s.Dim() columns).
	Jacobian(s *State) mat.Matrix
}

// Model is the sensor-model capability a measurement channel binds to. One
// model instance belongs to exactly one channel for the channel's lifetime
// and is only touched from the tick-loop thread.
type Model interface {
	Observation

	// Init binds the model to the running estimator and state. A failure
	// aborts the owning channel's initialisation.
	Init(e *Estimator, s *State) error

	// Cleanup releases anything acquired by Init. Safe after a failed Init.
	Cleanup()

	// Reset clears transient model state without destroying the binding.
	Reset(s *State)

	// ApplyStatusMask reports whether the model is valid under the given
	// operational status.
	ApplyStatusMask(status SystemStatus) bool

	// StatusFlags declares which operational modes this model contributes to.
	StatusFlags() SystemStatus

	// NoiseCovariance returns the default additive-noise covariance used when
	// an update does not carry its own.
	NoiseCovariance() mat.Symmetric

	// SetNoiseCovariance overrides the default additive-noise covariance.
	SetNoiseCovariance(sigma mat.Symmetric)

	// Parameters exposes the model's tunables for aggregation by the channel.
	Parameters() *ParameterList
}

// UpdateModel binds a Model to the concrete update-message type it consumes.
type UpdateModel[U any] interface {
	Model

	// MeasurementVector extracts the measurement vector from an update.
	MeasurementVector(u U) mat.Vector
}

// UpdateGate is optionally implemented by models that need a validity or
// outlier gate ahead of the shared dispatch algorithm (e.g. rejecting a GPS
// fix with too few satellites). Returning false drops the update without
// side effects.
type UpdateGate[U any] interface {
	BeforeUpdate(s *State, u U) bool
}

// PostUpdater is optionally implemented by models that refresh derived
// quantities after a correction has been applied.
type PostUpdater interface {
	AfterUpdate(s *State)
}

// VectorCarrier is optionally implemented by update messages that carry an
// explicit measurement vector, overriding the model's extraction.
type VectorCarrier interface {
	MeasurementVector() mat.Vector
}

// CovarianceCarrier is optionally implemented by update messages that carry
// their own noise covariance. A nil return falls back to the model default.
type CovarianceCarrier interface {
	Covariance() mat.Symmetric
}
