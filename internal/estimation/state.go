package estimation

import "gonum.org/v1/gonum/mat"

// State vector layout used by the shipped sensor models. The dispatch core
// itself never inspects the layout; it only passes the State through to the
// filter and the models.
const (
	StateX = iota // east position (m)
	StateY        // north position (m)
	StateZ        // height (m)
	StateVX       // east velocity (m/s)
	StateVY       // north velocity (m/s)
	StateVZ       // vertical velocity (m/s)
	StateYaw      // heading (rad)

	StateDimension
)

// State holds the estimate vector and its covariance. It is an opaque handle
// from the dispatch core's point of view: only the filter and the measurement
// models read or mutate it, and only from the tick-loop thread.
type State struct {
	x *mat.VecDense
	p *mat.SymDense
}

// NewState returns a zero state of the standard layout with unit covariance.
func NewState() *State {
	return NewStateSized(StateDimension)
}

// NewStateSized returns a zero state of dimension n with unit covariance.
func NewStateSized(n int) *State {
	s := &State{
		x: mat.NewVecDense(n, nil),
		p: mat.NewSymDense(n, nil),
	}
	for i := 0; i < n; i++ {
		s.p.SetSym(i, i, 1)
	}
	return s
}

// Dim returns the state dimension.
func (s *State) Dim() int { return s.x.Len() }

// Vector returns the mutable estimate vector.
func (s *State) Vector() *mat.VecDense { return s.x }

// Covariance returns the mutable estimate covariance.
func (s *State) Covariance() *mat.SymDense { return s.p }

// Reset zeroes the estimate and restores unit covariance.
func (s *State) Reset() {
	n := s.Dim()
	s.x.Zero()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if i == j {
				s.p.SetSym(i, j, 1)
			} else {
				s.p.SetSym(i, j, 0)
			}
		}
	}
}
