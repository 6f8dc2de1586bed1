package flightcore

import (
	"math"
	"testing"
)

func TestNewKalmanStateZeroed(t *testing.T) {
	kf := newKalmanState()
	if kf.h != 0 || kf.v != 0 {
		t.Fatalf("expected zeroed state, got h=%f v=%f", kf.h, kf.v)
	}
	if kf.p00 != 25 || kf.p11 != 100 {
		t.Fatalf("unexpected initial covariance: p00=%f p11=%f", kf.p00, kf.p11)
	}
	if !kf.symmetric() {
		t.Fatal("initial covariance must be symmetric")
	}
}

func TestPredictAdvancesAltitudeByVelocity(t *testing.T) {
	kf := newKalmanState()
	kf.v = 10
	kf.predict(1.0, SigmaAccelMPS2)
	if math.Abs(kf.h-10) > 1e-9 {
		t.Fatalf("expected h=10 after 1s at v=10, got %f", kf.h)
	}
	if kf.p00 <= 25 {
		t.Fatalf("expected covariance to grow under prediction, got p00=%f", kf.p00)
	}
}

func TestPredictGrowsUncertainty(t *testing.T) {
	kf := newKalmanState()
	p00Before := kf.p00
	for i := 0; i < 10; i++ {
		kf.predict(0.03, SigmaAccelMPS2)
	}
	if kf.p00 <= p00Before {
		t.Fatalf("expected p00 to grow over repeated predicts, got %f (was %f)", kf.p00, p00Before)
	}
	if !kf.symmetric() {
		t.Fatal("covariance must remain symmetric after repeated predicts")
	}
}

func TestUpdateReducesUncertainty(t *testing.T) {
	kf := newKalmanState()
	kf.predict(0.03, SigmaAccelMPS2)
	before := kf.p00
	kf.update(1.0, SigmaBaro0M*SigmaBaro0M)
	if kf.p00 >= before {
		t.Fatalf("expected p00 to shrink after update, got %f (was %f)", kf.p00, before)
	}
	if !kf.symmetric() {
		t.Fatal("covariance must remain symmetric after Joseph-form update")
	}
}

func TestUpdateConvergesTowardMeasurement(t *testing.T) {
	kf := newKalmanState()
	for i := 0; i < 200; i++ {
		kf.predict(0.03, SigmaAccelMPS2)
		kf.update(100.0, SigmaBaro0M*SigmaBaro0M)
	}
	if math.Abs(kf.h-100.0) > 1.0 {
		t.Fatalf("expected filter to converge near 100, got %f", kf.h)
	}
}

func TestNisDegenerateVarianceReturnsHardThreshold(t *testing.T) {
	kf := newKalmanState()
	kf.p00 = 0
	nisVal, _, _ := kf.nis(0, -1)
	if nisVal != NISHardThreshold {
		t.Fatalf("expected hard-threshold NIS for degenerate variance, got %f", nisVal)
	}
}

func TestNisZeroForExactMatch(t *testing.T) {
	kf := newKalmanState()
	kf.h = 50
	nisVal, innovation, _ := kf.nis(50, 1.0)
	if innovation != 0 {
		t.Fatalf("expected zero innovation, got %f", innovation)
	}
	if nisVal != 0 {
		t.Fatalf("expected zero NIS for exact match, got %f", nisVal)
	}
}

func TestUpdateNoOpOnDegenerateVariance(t *testing.T) {
	kf := newKalmanState()
	kf.p00 = 0
	before := kf
	kf.update(1000, -1)
	if kf != before {
		t.Fatalf("expected update to be a no-op on degenerate variance, got %+v (was %+v)", kf, before)
	}
}
