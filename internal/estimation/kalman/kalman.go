// Package kalman provides the default correction step used by the estimator:
// a standard extended-Kalman measurement update on gonum matrices. The
// dispatch core only depends on the estimation.Filter interface; this package
// is one pluggable implementation of it.
package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pose.report/internal/estimation"
)

// Corrector applies EKF measurement updates in place. It is stateless and
// safe to share across channels; all calls come from the tick-loop thread.
type Corrector struct{}

// New returns a Corrector.
func New() *Corrector { return &Corrector{} }

// Correct applies one measurement update:
//
//	S = H P Hᵀ + R
//	K = P Hᵀ S⁻¹
//	x ← x + K (y − h(x))
//	P ← (I − K H) P
//
// A singular innovation covariance is reported as an error; the state is
// left untouched in that case.
func (c *Corrector) Correct(s *estimation.State, obs estimation.Observation, y mat.Vector, R mat.Symmetric) error {
	n := s.Dim()
	m := obs.Dimension()
	if y.Len() != m {
		return fmt.Errorf("measurement vector length %d, observation dimension %d", y.Len(), m)
	}
	if R.SymmetricDim() != m {
		return fmt.Errorf("noise covariance dimension %d, observation dimension %d", R.SymmetricDim(), m)
	}

	H := obs.Jacobian(s)
	if hr, hc := H.Dims(); hr != m || hc != n {
		return fmt.Errorf("jacobian is %dx%d, want %dx%d", hr, hc, m, n)
	}
	P := s.Covariance()

	// S = H P Hᵀ + R
	var hp mat.Dense
	hp.Mul(H, P)
	var innovCov mat.Dense
	innovCov.Mul(&hp, H.T())
	innovCov.Add(&innovCov, denseOf(R))

	var innovCovInv mat.Dense
	if err := innovCovInv.Inverse(&innovCov); err != nil {
		return fmt.Errorf("innovation covariance not invertible: %w", err)
	}

	// K = P Hᵀ S⁻¹
	var pht mat.Dense
	pht.Mul(P, H.T())
	var gain mat.Dense
	gain.Mul(&pht, &innovCovInv)

	// ν = y − h(x)
	var innovation mat.VecDense
	innovation.SubVec(y, obs.Predicted(s))

	// x ← x + K ν
	var dx mat.VecDense
	dx.MulVec(&gain, &innovation)
	s.Vector().AddVec(s.Vector(), &dx)

	// P ← (I − K H) P
	var kh mat.Dense
	kh.Mul(&gain, H)
	ikh := identity(n)
	ikh.Sub(ikh, &kh)
	var newP mat.Dense
	newP.Mul(ikh, P)

	// re-symmetrise to absorb round-off
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			P.SetSym(i, j, 0.5*(newP.At(i, j)+newP.At(j, i)))
		}
	}
	return nil
}

func denseOf(s mat.Symmetric) *mat.Dense {
	n := s.SymmetricDim()
	d := mat.NewDense(n, n, nil)
	d.Copy(s)
	return d
}

func identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}
