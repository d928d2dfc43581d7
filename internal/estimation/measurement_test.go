package estimation

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// stubUpdate is the update message for stubModel. The carrier interfaces are
// implemented so both the override and the fallback paths get exercised.
type stubUpdate struct {
	value float64
	vec   mat.Vector    // non-nil overrides the model's extraction
	cov   mat.Symmetric // non-nil overrides the model's default noise
}

func (u stubUpdate) MeasurementVector() mat.Vector { return u.vec }
func (u stubUpdate) Covariance() mat.Symmetric     { return u.cov }

// stubModel is a 1-dim model observing state component 0, with hook and
// failure behaviour controlled per test.
type stubModel struct {
	params   *ParameterList
	initErr  error
	inits    int
	cleanups int
	resets   int

	requiredStatus SystemStatus // Active requires these flags; 0 = always
	before         func(*State, stubUpdate) bool
	afterCalls     int

	sigma mat.Symmetric
}

func newStubModel() *stubModel {
	return &stubModel{params: NewParameterList()}
}

func (m *stubModel) Init(e *Estimator, s *State) error {
	if m.initErr != nil {
		return m.initErr
	}
	m.inits++
	return nil
}

func (m *stubModel) Cleanup()                  { m.cleanups++ }
func (m *stubModel) Reset(s *State)            { m.resets++ }
func (m *stubModel) StatusFlags() SystemStatus { return 0 }

func (m *stubModel) ApplyStatusMask(status SystemStatus) bool {
	return status.Contains(m.requiredStatus)
}

func (m *stubModel) Dimension() int { return 1 }

func (m *stubModel) Predicted(s *State) mat.Vector {
	return mat.NewVecDense(1, []float64{s.Vector().AtVec(0)})
}

func (m *stubModel) Jacobian(s *State) mat.Matrix {
	h := mat.NewDense(1, s.Dim(), nil)
	h.Set(0, 0, 1)
	return h
}

func (m *stubModel) MeasurementVector(u stubUpdate) mat.Vector {
	return mat.NewVecDense(1, []float64{u.value})
}

func (m *stubModel) NoiseCovariance() mat.Symmetric {
	if m.sigma != nil {
		return m.sigma
	}
	r := mat.NewSymDense(1, nil)
	r.SetSym(0, 0, 1)
	return r
}

func (m *stubModel) SetNoiseCovariance(sigma mat.Symmetric) { m.sigma = sigma }
func (m *stubModel) Parameters() *ParameterList             { return m.params }

func (m *stubModel) BeforeUpdate(s *State, u stubUpdate) bool {
	if m.before == nil {
		return true
	}
	return m.before(s, u)
}

func (m *stubModel) AfterUpdate(s *State) { m.afterCalls++ }

type stubChannel = Channel[stubUpdate, *stubModel]

func newStubChannel(name string) (*stubChannel, *stubModel) {
	model := newStubModel()
	return NewChannel[stubUpdate](model, name), model
}

// correction records one filter handoff.
type correction struct {
	value float64
	noise float64
}

// recordingFilter captures every correction in order; used to verify FIFO
// dispatch and the numeric handoff contract.
type recordingFilter struct {
	mu          sync.Mutex
	corrections []correction
	err         error
}

func (f *recordingFilter) Correct(s *State, obs Observation, y mat.Vector, R mat.Symmetric) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrections = append(f.corrections, correction{value: y.AtVec(0), noise: R.At(0, 0)})
	return nil
}

func (f *recordingFilter) values() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	vals := make([]float64, len(f.corrections))
	for i, c := range f.corrections {
		vals[i] = c.value
	}
	return vals
}

func initChannel(t *testing.T, c *stubChannel) *State {
	t.Helper()
	s := NewStateSized(1)
	require.NoError(t, c.Init(nil, s))
	return s
}

func TestChannelAcceptsImmediateUpdate(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	s := initChannel(t, c)
	f := &recordingFilter{}

	c.IncreaseTimer(0.02)
	c.AddUpdate(stubUpdate{value: 3})
	res, err := c.Process(f, s)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Drained: 1, Accepted: 1}, res)
	assert.Equal(t, []float64{3}, f.values())
	assert.Zero(t, c.timer, "accepting an update must reset the clock")
}

func TestChannelDisabledNeverCorrects(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	s := initChannel(t, c)
	f := &recordingFilter{}

	c.Disable()
	require.False(t, c.Enabled())

	for i := 0; i < 5; i++ {
		c.AddUpdate(stubUpdate{value: float64(i)})
		res, err := c.Process(f, s)
		require.NoError(t, err)
		assert.Zero(t, res.Accepted)
	}
	assert.Empty(t, f.values())

	c.Enable()
	assert.True(t, c.Enabled())
}

func TestChannelRateLimit(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	c.SetMinInterval(0.1)
	s := initChannel(t, c)
	f := &recordingFilter{}

	// both updates land in the same drain; the first accept resets the
	// clock, rate-limiting the second out (dropped, not deferred)
	c.IncreaseTimer(0.2)
	c.AddUpdate(stubUpdate{value: 1})
	c.AddUpdate(stubUpdate{value: 2})
	res, err := c.Process(f, s)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Drained: 2, Accepted: 1}, res)
	assert.Equal(t, []float64{1}, f.values())

	// nothing was deferred
	res, err = c.Process(f, s)
	require.NoError(t, err)
	assert.Zero(t, res.Drained)
}

func TestChannelTimeout(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	c.SetTimeout(1.0)
	s := initChannel(t, c)
	f := &recordingFilter{}

	assert.False(t, c.Timedout())
	c.IncreaseTimer(0.9)
	assert.False(t, c.Timedout())
	c.IncreaseTimer(0.2)
	assert.True(t, c.Timedout())

	c.AddUpdate(stubUpdate{value: 1})
	_, err := c.Process(f, s)
	require.NoError(t, err)
	assert.False(t, c.Timedout(), "an accepted update clears staleness")
}

func TestChannelTimeoutDisabledByZeroThreshold(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	c.IncreaseTimer(1e6)
	assert.False(t, c.Timedout())
}

func TestChannelFIFOOrder(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	s := initChannel(t, c)
	f := &recordingFilter{}

	for _, v := range []float64{1, 2, 3} {
		c.AddUpdate(stubUpdate{value: v})
	}
	res, err := c.Process(f, s)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Accepted)
	assert.Equal(t, []float64{1, 2, 3}, f.values())
}

func TestChannelTypeMismatch(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	s := initChannel(t, c)
	f := &recordingFilter{}

	err := c.Add("not an update")
	require.ErrorIs(t, err, ErrUpdateType)

	applied, err := c.Update(f, s, 42)
	require.ErrorIs(t, err, ErrUpdateType)
	assert.False(t, applied)
	assert.Empty(t, f.values(), "a mismatched message must never reach the filter")
}

func TestChannelAddErasedRightType(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	s := initChannel(t, c)
	f := &recordingFilter{}

	require.NoError(t, c.Add(stubUpdate{value: 7}))
	res, err := c.Process(f, s)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, []float64{7}, f.values())
}

func TestChannelCleanupAfterFailedInit(t *testing.T) {
	t.Parallel()

	c, model := newStubChannel("test")
	model.initErr = errors.New("sensor absent")
	s := NewStateSized(1)

	err := c.Init(nil, s)
	require.Error(t, err)

	// cleanup must not fault, and the channel must stay inert
	c.Cleanup()
	assert.Equal(t, 1, model.cleanups)

	c.AddUpdate(stubUpdate{value: 1})
	f := &recordingFilter{}
	res, err := c.Process(f, s)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{}, res)
	assert.Empty(t, f.values())
}

func TestChannelModelInitShortCircuits(t *testing.T) {
	t.Parallel()

	c, model := newStubChannel("test")
	model.initErr = errors.New("boom")
	err := c.Init(nil, NewStateSized(1))
	require.Error(t, err)
	assert.Zero(t, model.inits)
}

func TestChannelActiveStatusMask(t *testing.T) {
	t.Parallel()

	c, model := newStubChannel("test")
	model.requiredStatus = StatusRollPitch

	assert.False(t, c.Active(0))
	assert.True(t, c.Active(StatusRollPitch))
	assert.True(t, c.Active(StatusRollPitch|StatusReady))

	c.Disable()
	assert.False(t, c.Active(StatusRollPitch), "disable overrides status activity")
}

func TestChannelBeforeUpdateGate(t *testing.T) {
	t.Parallel()

	c, model := newStubChannel("test")
	s := initChannel(t, c)
	f := &recordingFilter{}

	model.before = func(_ *State, u stubUpdate) bool { return u.value >= 0 }

	c.AddUpdate(stubUpdate{value: -1})
	c.AddUpdate(stubUpdate{value: 5})
	res, err := c.Process(f, s)
	require.NoError(t, err)
	assert.Equal(t, ProcessResult{Drained: 2, Accepted: 1}, res)
	assert.Equal(t, []float64{5}, f.values())
}

func TestChannelAfterUpdateOnlyOnAccept(t *testing.T) {
	t.Parallel()

	c, model := newStubChannel("test")
	s := initChannel(t, c)
	f := &recordingFilter{}

	model.before = func(_ *State, u stubUpdate) bool { return u.value > 0 }
	c.AddUpdate(stubUpdate{value: -1})
	c.AddUpdate(stubUpdate{value: 1})
	_, err := c.Process(f, s)
	require.NoError(t, err)
	assert.Equal(t, 1, model.afterCalls)
}

func TestChannelVectorAndCovarianceOverrides(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	s := initChannel(t, c)
	f := &recordingFilter{}

	override := mat.NewSymDense(1, []float64{25})
	c.AddUpdate(stubUpdate{value: 1}) // model extraction, default noise
	c.AddUpdate(stubUpdate{
		value: 2,
		vec:   mat.NewVecDense(1, []float64{99}),
		cov:   override,
	})
	_, err := c.Process(f, s)
	require.NoError(t, err)

	require.Len(t, f.corrections, 2)
	assert.Equal(t, correction{value: 1, noise: 1}, f.corrections[0])
	assert.Equal(t, correction{value: 99, noise: 25}, f.corrections[1])
}

func TestChannelSetNoiseCovariance(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	s := initChannel(t, c)
	f := &recordingFilter{}

	c.SetNoiseCovariance(mat.NewSymDense(1, []float64{0.04}))
	c.AddUpdate(stubUpdate{value: 1})
	_, err := c.Process(f, s)
	require.NoError(t, err)

	require.Len(t, f.corrections, 1)
	assert.Equal(t, 0.04, f.corrections[0].noise)
}

func TestChannelFilterErrorPropagates(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	c.SetTimeout(1.0)
	s := initChannel(t, c)
	f := &recordingFilter{err: errors.New("singular")}

	c.IncreaseTimer(2.0)
	c.AddUpdate(stubUpdate{value: 1})
	_, err := c.Process(f, s)
	require.Error(t, err)
	assert.True(t, c.Timedout(), "a failed correction must not mark the channel updated")
}

func TestChannelReset(t *testing.T) {
	t.Parallel()

	c, model := newStubChannel("test")
	s := initChannel(t, c)

	c.SetTimeout(1.0)
	c.IncreaseTimer(5)
	require.True(t, c.Timedout())

	c.Reset(s)
	assert.False(t, c.Timedout())
	assert.Equal(t, 1, model.resets)
}

func TestChannelClearPending(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("test")
	c.AddUpdate(stubUpdate{value: 1})
	c.AddUpdate(stubUpdate{value: 2})
	assert.Equal(t, 2, c.Pending())
	assert.Equal(t, 2, c.ClearPending())
	assert.Zero(t, c.Pending())
}

func TestChannelParametersIncludeModelTunables(t *testing.T) {
	t.Parallel()

	model := newStubModel()
	var stddev float64
	model.params.AddFloat("stddev", &stddev, 2)
	c := NewChannel[stubUpdate](model, "test")

	require.NoError(t, c.Parameters().Set("stddev", 4))
	assert.Equal(t, 4.0, stddev)

	require.NoError(t, c.Parameters().Set("min_interval", 0.25))
	assert.Equal(t, 0.25, c.MinInterval())
}

// TestChannelAltitudeScenario walks the canonical altitude channel timeline:
// min_interval 0.1s, timeout 1.0s, samples at t=0.0, 0.05, 0.12 and 2.0.
// Only the t=0.05 sample is rate-limited out, and the gap before t=2.0
// trips staleness until that sample is accepted.
func TestChannelAltitudeScenario(t *testing.T) {
	t.Parallel()

	c, _ := newStubChannel("altitude")
	c.SetMinInterval(0.1)
	c.SetTimeout(1.0)
	s := initChannel(t, c)
	f := &recordingFilter{}

	step := func(dt, sample float64) (accepted int, staleBefore bool) {
		c.IncreaseTimer(dt)
		staleBefore = c.Timedout()
		c.AddUpdate(stubUpdate{value: sample})
		res, err := c.Process(f, s)
		require.NoError(t, err)
		return res.Accepted, staleBefore
	}

	// the estimator has been ticking ahead of the first sample
	accepted, stale := step(0.2, 100) // t=0.0
	assert.Equal(t, 1, accepted)
	assert.False(t, stale)

	accepted, stale = step(0.05, 101) // t=0.05, inside the rate limit
	assert.Zero(t, accepted)
	assert.False(t, stale)

	accepted, stale = step(0.07, 102) // t=0.12
	assert.Equal(t, 1, accepted)
	assert.False(t, stale)

	accepted, stale = step(1.88, 103) // t=2.0, after a >1s gap
	assert.Equal(t, 1, accepted)
	assert.True(t, stale, "the gap before t=2.0 exceeds the timeout")
	assert.False(t, c.Timedout(), "accepting the late sample clears staleness")

	assert.Equal(t, []float64{100, 102, 103}, f.values())
}
