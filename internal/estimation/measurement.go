package estimation

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrUpdateType is returned when an update message of the wrong type reaches
// a channel through the type-erased path. Channel wiring is fixed at setup,
// so a mismatch is a programming-contract violation, never a recoverable
// runtime condition.
var ErrUpdateType = errors.New("update message type mismatch")

// ProcessResult summarises one Process call on a channel.
type ProcessResult struct {
	Drained  int // updates removed from the queue
	Accepted int // updates that resulted in a filter correction
}

// Measurement is the estimator-facing contract of one sensor channel: its
// identity, enable state, timing state, status-gated activity and the update
// dispatch protocol. Concrete channels are instances of Channel bound to one
// model type and one update-message type.
//
// Init, Cleanup, Reset, Process, Update, IncreaseTimer, Enable and Disable
// belong to the tick-loop thread. Add alone may be called concurrently from
// producer goroutines.
type Measurement interface {
	// Name returns the unique channel identifier.
	Name() string

	// Init binds the channel to the running estimator and state. It must be
	// called exactly once before any Process; a model failure aborts it.
	Init(e *Estimator, s *State) error

	// Cleanup releases resources acquired by Init. Safe even if Init failed;
	// afterwards Process is a no-op until the channel is initialised again.
	Cleanup()

	// Reset clears transient state (timer, model internals) without
	// destroying the channel.
	Reset(s *State)

	// StatusFlags returns the operational modes this channel contributes to.
	StatusFlags() SystemStatus

	// Active reports whether the channel should participate under the given
	// operational status.
	Active(status SystemStatus) bool

	// Parameters returns the channel's tunables, model tunables included.
	Parameters() *ParameterList

	// Add enqueues one update message through the type-erased boundary.
	// A message of the wrong bound type returns ErrUpdateType.
	Add(update any) error

	// Update gates, extracts and applies one update. The bool reports whether
	// the update was actually applied; gating outcomes are not errors.
	Update(f Filter, s *State, update any) (bool, error)

	// Process drains the channel's queue in FIFO order, dispatching every
	// pending update. A filter error aborts the drain and propagates.
	Process(f Filter, s *State) (ProcessResult, error)

	// ClearPending discards all queued updates without side effects and
	// returns how many were dropped. Used when a channel is inactive at
	// drain time.
	ClearPending() int

	// Enabled, Enable and Disable form the channel-level kill switch,
	// independent of status-based activity.
	Enabled() bool
	Enable()
	Disable()

	// IncreaseTimer advances the staleness/rate-limit clock by dt seconds.
	// Called once per tick whether or not an update arrived.
	IncreaseTimer(dt float64)

	// Timedout reports whether the time since the last accepted update
	// exceeds the timeout threshold (only meaningful with a threshold > 0).
	Timedout() bool
}

// Channel binds one concrete model type and one concrete update-message type
// to the Measurement contract. It exclusively owns its model and queue for
// its whole lifetime.
//
// Instantiate with the update type explicit and the model type inferred:
//
//	ch := estimation.NewChannel[models.HeightUpdate](models.NewHeightModel(), "baro")
type Channel[U any, M UpdateModel[U]] struct {
	name        string
	params      *ParameterList
	model       M
	queue       *Queue[U]
	enabled     bool
	minInterval float64 // seconds; 0 disables rate limiting
	timeout     float64 // seconds; 0 disables staleness detection
	timer       float64 // seconds since last accepted update
	initialized bool
}

// NewChannel creates a channel owning the given model. The model's tunables
// are merged into the channel's parameter list.
func NewChannel[U any, M UpdateModel[U]](model M, name string) *Channel[U, M] {
	c := &Channel[U, M]{
		name:   name,
		params: NewParameterList(),
		model:  model,
		queue:  NewQueue[U](),
	}
	c.params.AddBool("enabled", &c.enabled, true)
	c.params.AddFloat("min_interval", &c.minInterval, 0)
	c.params.AddFloat("timeout", &c.timeout, 0)
	c.params.Merge(model.Parameters())
	return c
}

// Name returns the channel identifier.
func (c *Channel[U, M]) Name() string { return c.name }

// Model returns the bound model instance.
func (c *Channel[U, M]) Model() M { return c.model }

// Parameters returns the aggregated channel and model tunables.
func (c *Channel[U, M]) Parameters() *ParameterList { return c.params }

// StatusFlags returns the model's declared mode contributions.
func (c *Channel[U, M]) StatusFlags() SystemStatus { return c.model.StatusFlags() }

// Init initialises the model first, then the channel; it fails if the model
// fails and leaves the channel uninitialised.
func (c *Channel[U, M]) Init(e *Estimator, s *State) error {
	if err := c.model.Init(e, s); err != nil {
		return fmt.Errorf("channel %s: model init: %w", c.name, err)
	}
	c.timer = 0
	c.initialized = true
	return nil
}

// Cleanup releases the model and marks the channel uninitialised. Safe to
// call after a failed Init; Process is a no-op until the next Init.
func (c *Channel[U, M]) Cleanup() {
	c.model.Cleanup()
	c.initialized = false
}

// Reset clears the timer and the model's transient state.
func (c *Channel[U, M]) Reset(s *State) {
	c.model.Reset(s)
	c.timer = 0
}

// Active reports whether the channel participates under status: the channel
// must be enabled and the model must accept the status mask.
func (c *Channel[U, M]) Active(status SystemStatus) bool {
	return c.enabled && c.model.ApplyStatusMask(status)
}

// AddUpdate enqueues one update through the statically typed path. Safe for
// concurrent use from any producer goroutine.
func (c *Channel[U, M]) AddUpdate(u U) {
	c.queue.Push(u)
}

// Add enqueues one update through the type-erased boundary.
func (c *Channel[U, M]) Add(update any) error {
	u, ok := update.(U)
	if !ok {
		return fmt.Errorf("channel %s: %w: got %T", c.name, ErrUpdateType, update)
	}
	c.queue.Push(u)
	return nil
}

// Pending returns the number of queued updates.
func (c *Channel[U, M]) Pending() int { return c.queue.Len() }

// ClearPending discards all queued updates.
func (c *Channel[U, M]) ClearPending() int {
	return len(c.queue.Drain())
}

// Process drains the queue and dispatches every pending update in FIFO
// arrival order. A correction error aborts the drain; remaining updates of
// that drain are discarded with the failed one.
func (c *Channel[U, M]) Process(f Filter, s *State) (ProcessResult, error) {
	if !c.initialized {
		return ProcessResult{}, nil
	}
	var res ProcessResult
	for _, u := range c.queue.Drain() {
		res.Drained++
		applied, err := c.update(f, s, u)
		if err != nil {
			return res, fmt.Errorf("channel %s: %w", c.name, err)
		}
		if applied {
			res.Accepted++
		}
	}
	return res, nil
}

// Update dispatches one update through the type-erased boundary. A message of
// the wrong bound type returns ErrUpdateType.
func (c *Channel[U, M]) Update(f Filter, s *State, update any) (bool, error) {
	u, ok := update.(U)
	if !ok {
		return false, fmt.Errorf("channel %s: %w: got %T", c.name, ErrUpdateType, update)
	}
	return c.update(f, s, u)
}

// update is the central gating/dispatch algorithm. Gating outcomes return
// (false, nil); only a filter correction failure is an error.
func (c *Channel[U, M]) update(f Filter, s *State, u U) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	if c.minInterval > 0 && c.timer < c.minInterval {
		// rate-limited out; the queue entry is consumed, not retried
		return false, nil
	}
	if gate, ok := any(c.model).(UpdateGate[U]); ok && !gate.BeforeUpdate(s, u) {
		return false, nil
	}

	y := c.measurementVector(u)
	R := c.noiseCovariance(u)
	if err := f.Correct(s, c.model, y, R); err != nil {
		return false, err
	}

	if post, ok := any(c.model).(PostUpdater); ok {
		post.AfterUpdate(s)
	}
	c.Updated()
	return true, nil
}

// measurementVector prefers a vector carried by the update itself over the
// model's extraction.
func (c *Channel[U, M]) measurementVector(u U) mat.Vector {
	if vc, ok := any(u).(VectorCarrier); ok {
		if y := vc.MeasurementVector(); y != nil {
			return y
		}
	}
	return c.model.MeasurementVector(u)
}

// noiseCovariance prefers a covariance carried by the update itself over the
// model's configured default.
func (c *Channel[U, M]) noiseCovariance(u U) mat.Symmetric {
	if cc, ok := any(u).(CovarianceCarrier); ok {
		if r := cc.Covariance(); r != nil {
			return r
		}
	}
	return c.model.NoiseCovariance()
}

// SetNoiseCovariance overrides the model's default additive-noise covariance.
func (c *Channel[U, M]) SetNoiseCovariance(sigma mat.Symmetric) {
	c.model.SetNoiseCovariance(sigma)
}

// Enabled reports the channel-level kill switch.
func (c *Channel[U, M]) Enabled() bool { return c.enabled }

// Enable turns the channel on.
func (c *Channel[U, M]) Enable() { c.enabled = true }

// Disable turns the channel off; subsequent updates are discarded without
// side effects.
func (c *Channel[U, M]) Disable() { c.enabled = false }

// MinInterval returns the rate limit in seconds (0 = no limit).
func (c *Channel[U, M]) MinInterval() float64 { return c.minInterval }

// SetMinInterval sets the minimum spacing between accepted updates.
func (c *Channel[U, M]) SetMinInterval(seconds float64) { c.minInterval = seconds }

// Timeout returns the staleness threshold in seconds (0 = no detection).
func (c *Channel[U, M]) Timeout() float64 { return c.timeout }

// SetTimeout sets the staleness threshold.
func (c *Channel[U, M]) SetTimeout(seconds float64) { c.timeout = seconds }

// IncreaseTimer advances the staleness/rate-limit clock.
func (c *Channel[U, M]) IncreaseTimer(dt float64) {
	c.timer += dt
}

// Updated resets the clock; called whenever an update is accepted.
func (c *Channel[U, M]) Updated() {
	c.timer = 0
}

// Timedout reports staleness once the clock passes the threshold.
func (c *Channel[U, M]) Timedout() bool {
	return c.timeout > 0 && c.timer > c.timeout
}
