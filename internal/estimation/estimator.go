package estimation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

// Recorder receives per-channel measurement outcomes for diagnostics.
// Implementations must not block the tick loop.
type Recorder interface {
	// RecordProcess reports the outcome of one Process call on a channel.
	RecordProcess(runID, channel string, drained, accepted int)

	// RecordEvent reports a discrete channel event such as "timeout" or
	// "timeout_cleared".
	RecordEvent(runID, channel, event string)
}

// Estimator owns the state, the filter, the registered measurement channels
// and the operational status. Channel registration happens during setup;
// Init, Reset, Step and Run belong to a single tick-loop goroutine. Sensor
// producers only ever touch the channels' Add path.
type Estimator struct {
	filter       Filter
	state        *State
	measurements *Measurements
	status       SystemStatus
	clock        timeutil.Clock
	recorder     Recorder
	runID        string
	stale        map[string]bool // last observed staleness per channel
	initialized  bool
}

// New returns an estimator correcting the given state through filter. A nil
// state gets the standard layout.
func New(filter Filter, state *State) *Estimator {
	if state == nil {
		state = NewState()
	}
	return &Estimator{
		filter:       filter,
		state:        state,
		measurements: NewMeasurements(),
		clock:        timeutil.RealClock{},
		stale:        make(map[string]bool),
	}
}

// SetClock replaces the clock used by Run. For tests.
func (e *Estimator) SetClock(c timeutil.Clock) { e.clock = c }

// SetRecorder attaches a diagnostics recorder. Call before Init.
func (e *Estimator) SetRecorder(r Recorder) { e.recorder = r }

// AddMeasurement registers a channel. Registration is only valid during
// setup, before Init.
func (e *Estimator) AddMeasurement(m Measurement) error {
	if e.initialized {
		return fmt.Errorf("cannot register %q: estimator already initialized", m.Name())
	}
	return e.measurements.Add(m)
}

// Measurement returns the channel registered under name, or nil.
func (e *Estimator) Measurement(name string) Measurement {
	return e.measurements.Get(name)
}

// Measurements returns the channel registry.
func (e *Estimator) Measurements() *Measurements { return e.measurements }

// State returns the estimate.
func (e *Estimator) State() *State { return e.state }

// Status returns the current operational status.
func (e *Estimator) Status() SystemStatus { return e.status }

// SetStatusFlags sets the given mode flags.
func (e *Estimator) SetStatusFlags(mask SystemStatus) { e.status |= mask }

// ClearStatusFlags clears the given mode flags.
func (e *Estimator) ClearStatusFlags(mask SystemStatus) { e.status &^= mask }

// RunID identifies the current initialized session; empty before Init.
func (e *Estimator) RunID() string { return e.runID }

// Init initialises every registered channel in registration order. The first
// failure aborts initialisation, cleans up the channels initialised so far
// and leaves the estimator unusable until a successful retry.
func (e *Estimator) Init() error {
	if e.initialized {
		return errors.New("estimator already initialized")
	}
	e.runID = uuid.New().String()
	for i, m := range e.measurements.All() {
		if err := m.Init(e, e.state); err != nil {
			for _, done := range e.measurements.All()[:i] {
				done.Cleanup()
			}
			return fmt.Errorf("estimator init: %w", err)
		}
	}
	e.initialized = true
	monitoring.Logf("estimator run %s: initialized %d channels: %v",
		e.runID, e.measurements.Len(), e.measurements.Names())
	if e.recorder != nil {
		for _, name := range e.measurements.Names() {
			e.recorder.RecordEvent(e.runID, name, "init")
		}
	}
	return nil
}

// Cleanup releases every channel. Safe to call after a failed Init.
func (e *Estimator) Cleanup() {
	for _, m := range e.measurements.All() {
		m.Cleanup()
	}
	e.initialized = false
}

// Reset clears the state and every channel's transient state without
// re-registering anything, e.g. after a long outage.
func (e *Estimator) Reset() {
	e.state.Reset()
	for _, m := range e.measurements.All() {
		m.Reset(e.state)
	}
	e.stale = make(map[string]bool)
	e.status &^= StatusDegraded
}

// Step runs one filter tick: advance every channel's staleness clock, then
// process every active channel in registration order. Queued updates of
// channels inactive under the current status are dropped without side
// effects. A correction error aborts the tick and propagates.
func (e *Estimator) Step(dt float64) error {
	if !e.initialized {
		return nil
	}
	for _, m := range e.measurements.All() {
		m.IncreaseTimer(dt)
	}
	for _, m := range e.measurements.All() {
		if !m.Active(e.status) {
			if dropped := m.ClearPending(); dropped > 0 && e.recorder != nil {
				e.recorder.RecordProcess(e.runID, m.Name(), dropped, 0)
			}
			continue
		}
		res, err := m.Process(e.filter, e.state)
		if err != nil {
			return fmt.Errorf("estimator step: %w", err)
		}
		if res.Drained > 0 && e.recorder != nil {
			e.recorder.RecordProcess(e.runID, m.Name(), res.Drained, res.Accepted)
		}
	}
	e.updateHealth()
	return nil
}

// updateHealth folds per-channel staleness into the degraded flag and logs
// transitions.
func (e *Estimator) updateHealth() {
	anyStale := false
	for _, m := range e.measurements.All() {
		name := m.Name()
		stale := m.Timedout()
		if stale != e.stale[name] {
			event := "timeout_cleared"
			if stale {
				event = "timeout"
			}
			monitoring.Logf("channel %s: %s", name, event)
			if e.recorder != nil {
				e.recorder.RecordEvent(e.runID, name, event)
			}
			e.stale[name] = stale
		}
		if stale {
			anyStale = true
		}
	}
	if anyStale {
		e.status |= StatusDegraded
	} else {
		e.status &^= StatusDegraded
	}
}

// Run drives Step at a fixed period until ctx is cancelled or a tick fails.
func (e *Estimator) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("invalid tick period %v", period)
	}
	ticker := e.clock.NewTicker(period)
	defer ticker.Stop()
	dt := period.Seconds()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := e.Step(dt); err != nil {
				return err
			}
		}
	}
}
