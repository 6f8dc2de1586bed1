package flightcore

import (
	"math"

	"github.com/ChristopherRabotin/gokalman"
	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

// symmetryEpsilon bounds the allowed |P01-P10| drift after a Joseph-form
// update (§8 invariant 1). Scaled against the magnitude of the cross terms
// (at least 1) so it remains meaningful whether they are near zero or in the
// hundreds.
const symmetryEpsilon = 1e-6

// kalmanState is the 2-state (altitude, vertical velocity) filter living
// inside the estimator task (§3 "Kalman state"). It is never shared outside
// the owning Estimator.
type kalmanState struct {
	h, v                   float64
	p00, p01, p10, p11     float64
}

// newKalmanState returns the filter in its power-on configuration (§3):
// h=0, v=0, P00=25, P11=100, cross-terms zero.
func newKalmanState() kalmanState {
	return kalmanState{h: 0, v: 0, p00: 25, p01: 0, p10: 0, p11: 100}
}

// symmetric reports whether P01 and P10 agree within symmetryEpsilon,
// scaled to the magnitude of the covariance (§8 invariant 1).
func (kf kalmanState) symmetric() bool {
	scale := math.Max(1.0, math.Max(math.Abs(kf.p01), math.Abs(kf.p10)))
	return floats.EqualWithinAbs(kf.p01, kf.p10, symmetryEpsilon*scale)
}

// predict advances the filter by dt seconds under the constant-acceleration
// process noise model of §4.2:
//
//	F = [[1, dt], [0, 1]]
//	Q = sigmaA^2 * [[dt^4/4, dt^3/2], [dt^3/2, dt^2]]
//	P <- F P F^T + Q
func (kf *kalmanState) predict(dtS, sigmaA float64) {
	kf.h = kf.h + kf.v*dtS

	dt2 := dtS * dtS
	dt3 := dt2 * dtS
	dt4 := dt2 * dt2
	sa2 := sigmaA * sigmaA

	q00 := sa2 * (dt4 / 4)
	q01 := sa2 * (dt3 / 2)
	q10 := q01
	q11 := sa2 * dt2

	// FP = F*P
	fp00 := kf.p00 + dtS*kf.p10
	fp01 := kf.p01 + dtS*kf.p11
	fp10 := kf.p10
	fp11 := kf.p11

	// P = FP*F^T + Q
	kf.p00 = fp00 + dtS*fp01 + q00
	kf.p01 = fp01 + q01
	kf.p10 = fp10 + dtS*fp11 + q10
	kf.p11 = fp11 + q11
}

// nis returns the normalized innovation squared of measurement z (with
// noise variance R) against the filter's current (predicted) state,
// along with the innovation and innovation variance (§4.2).
func (kf kalmanState) nis(z, r float64) (nisVal, innovation, innovationVar float64) {
	y := z - kf.h
	s := kf.p00 + r
	if s < 1e-9 {
		return NISHardThreshold, y, s
	}
	return (y * y) / s, y, s
}

// update applies a scalar Kalman measurement update (H = [1 0]) and
// rewrites the covariance in Joseph form, via gonum dense-matrix algebra,
// to preserve symmetry and positive-semidefiniteness under thousands of
// cycles of floating point accumulation (§4.2, §9 "Kalman covariance").
// It is a no-op if the innovation variance is numerically degenerate.
func (kf *kalmanState) update(z, r float64) {
	s := kf.p00 + r
	if s < 1e-9 {
		return
	}
	k0 := kf.p00 / s
	k1 := kf.p10 / s

	y := z - kf.h
	kf.h += k0 * y
	kf.v += k1 * y

	p := mat64.NewDense(2, 2, []float64{kf.p00, kf.p01, kf.p10, kf.p11})
	k := mat64.NewDense(2, 1, []float64{k0, k1})
	h := mat64.NewDense(1, 2, []float64{1, 0})
	identity := gokalman.DenseIdentity(2)

	var kh mat64.Dense
	kh.Mul(k, h)

	var imKH mat64.Dense
	imKH.Sub(identity, &kh)

	var left mat64.Dense
	left.Mul(&imKH, p)

	var joseph mat64.Dense
	joseph.Mul(&left, imKH.T())

	var krk mat64.Dense
	krk.Mul(k, k.T())
	krk.Scale(r, &krk)

	var result mat64.Dense
	result.Add(&joseph, &krk)

	kf.p00 = result.At(0, 0)
	kf.p01 = result.At(0, 1)
	kf.p10 = result.At(1, 0)
	kf.p11 = result.At(1, 1)
}
