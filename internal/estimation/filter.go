package estimation

import "gonum.org/v1/gonum/mat"

// Filter is the correction service the dispatch core hands accepted
// measurements to. The core treats it as opaque: it never retries or
// interprets a correction failure beyond propagating it.
//
// Correct applies one measurement correction to the state in place. obs is
// the accepted channel's observation capability, y the measurement vector and
// R its noise covariance. An error is fatal for that tick's correction on
// that channel; the channel is not marked updated.
type Filter interface {
	Correct(s *State, obs Observation, y mat.Vector, R mat.Symmetric) error
}
