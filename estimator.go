package flightcore

import (
	"math"
	"time"

	kitlog "github.com/go-kit/kit/log"
)

// Barometer is a single barometric pressure sensor (§6 "Sensor interface").
// It is a pure poll interface: no configuration, no streaming.
type Barometer interface {
	Sample() (pressurePa, temperatureC float64, err error)
}

// barometerChannel tracks one barometer's NIS-gated health over time
// (§4.2 "Health counter").
type barometerChannel struct {
	faultCount uint8
	healthy    bool
}

func newBarometerChannel() barometerChannel {
	return barometerChannel{faultCount: 0, healthy: true}
}

// recordOutcome updates the health counter: NIS above the soft threshold or
// a read failure (passed in as an NIS above the hard threshold) increments the saturating fault counter; any better outcome
// decrements it. healthy is true iff the counter is below FaultLimit.
func (c *barometerChannel) recordOutcome(nisVal float64) {
	if nisVal > NISSoftThreshold {
		if c.faultCount < 255 {
			c.faultCount++
		}
	} else if c.faultCount > 0 {
		c.faultCount--
	}
	c.healthy = c.faultCount < FaultLimit
}

// accepted reports whether a measurement with the given NIS should be
// fused, per §4.2: healthy AND NIS below the hard reject threshold.
func (c *barometerChannel) accepted(nisVal float64) bool {
	return c.healthy && nisVal < NISHardThreshold
}

// pressureTempToAltitude converts a pressure/temperature pair to altitude
// using the barometric formula of §4.2.
func pressureTempToAltitude(pressurePa, temperatureC float64) float64 {
	tempK := temperatureC + 273.15
	return (gasConstantAirJPerKgK * tempK / gravityMPS2) * math.Log(seaLevelPressurePa/pressurePa)
}

// validPressure rejects readings outside the open interval (1000, 200000)
// Pa (§4.2, §8 boundary behaviour).
func validPressure(pressurePa float64) bool {
	return pressurePa > minValidPressurePa && pressurePa < maxValidPressurePa
}

// reading is one cycle's judged measurement from a single barometer.
type reading struct {
	valid    bool
	pressure float64
	altitude float64
	temp     float64
	nis      float64
}

// Estimator is the dual-barometer, NIS-gated, Kalman-fused altitude/
// velocity estimator task (§4.2). It owns its Kalman state privately; only
// published EstimatorSnapshot values leave the task.
type Estimator struct {
	baro0, baro1 Barometer
	clock        Clock
	store        *Store
	logger       kitlog.Logger

	kf          kalmanState
	initialized bool
	ch0, ch1    barometerChannel

	r0, r1 float64
}

// NewEstimator constructs an Estimator. Either barometer may be nil; at
// least one must be non-nil (§4.2 "Inputs": devices are optional, zero
// available is fatal). The caller is expected to have already checked this
// via Run's return value before relying on published snapshots.
func NewEstimator(baro0, baro1 Barometer, clock Clock, store *Store) *Estimator {
	return &Estimator{
		baro0:  baro0,
		baro1:  baro1,
		clock:  clock,
		store:  store,
		logger: newLogger("baro"),
		kf:     newKalmanState(),
		ch0:    newBarometerChannel(),
		ch1:    newBarometerChannel(),
		r0:     SigmaBaro0M * SigmaBaro0M,
		r1:     SigmaBaro1M * SigmaBaro1M,
	}
}

// Run executes one estimator task iteration: clamps the given dt (RunLoop
// measures it), predicts,
// assesses both channels against a single shared pre-update snapshot,
// fuses accepted measurements in order of smaller measurement noise, and
// publishes the result. It returns ErrNoBarometerReady if neither
// barometer is configured, matching the original firmware's fatal
// initialisation path (§4.2 "Failure semantics").
func (e *Estimator) Run(dtS float64, now int64) error {
	if e.baro0 == nil && e.baro1 == nil {
		e.logger.Log("level", "error", "msg", "no barometers ready")
		return ErrNoBarometerReady
	}

	if dtS < DtClampMinS {
		dtS = DtClampMinS
	}
	if dtS > DtClampMaxS {
		dtS = DtClampMaxS
	}

	e.kf.predict(dtS, SigmaAccelMPS2)
	predicted := e.kf // pre-update snapshot both channels are judged against

	r0 := e.readChannel(e.baro0, &e.ch0, predicted, e.r0)
	r1 := e.readChannel(e.baro1, &e.ch1, predicted, e.r1)

	if !e.initialized {
		e.initialized = e.initializeFrom(r0, r1)
	}

	e.fuse(r0, r1)

	ground := e.store.ReadState().GroundAltitudeM
	snapshot := EstimatorSnapshot{
		Baro0:         measurementOf(r0, e.ch0),
		Baro1:         measurementOf(r1, e.ch1),
		AltitudeM:     e.kf.h,
		AltitudeAGLM:  e.kf.h - ground,
		AltVarianceM2: e.kf.p00,
		VelocityMPS:   e.kf.v,
		VelVarianceM2: e.kf.p11,
		TimestampMS:   now,
	}
	if !e.store.ReadState().GroundReady {
		snapshot.AltitudeAGLM = 0
	}
	e.store.PublishBaro(snapshot)
	return nil
}

// readChannel reads and assesses a single barometer against the shared
// predicted state. A nil device or a read/validity failure is treated as a
// hard fault for this cycle (§4.2 "Failure semantics").
func (e *Estimator) readChannel(dev Barometer, ch *barometerChannel, predicted kalmanState, r float64) reading {
	if dev == nil {
		ch.recordOutcome(NISHardThreshold + 1)
		return reading{valid: false}
	}
	pressure, temp, err := dev.Sample()
	if err != nil || !validPressure(pressure) {
		ch.recordOutcome(NISHardThreshold + 1)
		return reading{valid: false}
	}
	altitude := pressureTempToAltitude(pressure, temp)
	nisVal, _, _ := predicted.nis(altitude, r)
	ch.recordOutcome(nisVal)
	return reading{valid: true, pressure: pressure, altitude: altitude, temp: temp, nis: nisVal}
}

// initializeFrom re-seeds the filter from the first cycle with at least
// one valid measurement (§4.2 "First-cycle initialisation").
func (e *Estimator) initializeFrom(r0, r1 reading) bool {
	switch {
	case r0.valid && r1.valid:
		e.kf.h = 0.5 * (r0.altitude + r1.altitude)
		e.kf.p00 = 0.5 * (e.r0 + e.r1)
	case r0.valid:
		e.kf.h = r0.altitude
		e.kf.p00 = e.r0
	case r1.valid:
		e.kf.h = r1.altitude
		e.kf.p00 = e.r1
	default:
		return false
	}
	e.kf.v = 0
	e.kf.p01 = 0
	e.kf.p10 = 0
	e.kf.p11 = 100
	return true
}

// fuse applies the accepted measurements in order of increasing R (ties:
// baro0 first), per §4.2.
func (e *Estimator) fuse(r0, r1 reading) {
	accept0 := r0.valid && e.ch0.accepted(r0.nis)
	accept1 := r1.valid && e.ch1.accepted(r1.nis)

	switch {
	case accept0 && accept1:
		if e.r0 <= e.r1 {
			e.kf.update(r0.altitude, e.r0)
			e.kf.update(r1.altitude, e.r1)
		} else {
			e.kf.update(r1.altitude, e.r1)
			e.kf.update(r0.altitude, e.r0)
		}
	case accept0:
		e.kf.update(r0.altitude, e.r0)
	case accept1:
		e.kf.update(r1.altitude, e.r1)
	}
}

func measurementOf(r reading, ch barometerChannel) BaroMeasurement {
	return BaroMeasurement{
		PressurePa:   r.pressure,
		TemperatureC: r.temp,
		AltitudeM:    r.altitude,
		NIS:          r.nis,
		FaultCount:   ch.faultCount,
		Healthy:      ch.healthy,
	}
}

// RunLoop drives Run on a fixed-period ticker until stop is closed,
// measuring actual elapsed time between iterations rather than assuming
// the nominal period (§4.2 "Period").
func (e *Estimator) RunLoop(stop <-chan struct{}) error {
	if e.baro0 == nil && e.baro1 == nil {
		return ErrNoBarometerReady
	}
	ticker := time.NewTicker(EstimatorPeriodMS * time.Millisecond)
	defer ticker.Stop()

	last := e.clock.NowMS()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			now := e.clock.NowMS()
			dtS := float64(now-last) / 1000.0
			last = now
			if err := e.Run(dtS, now); err != nil {
				return err
			}
		}
	}
}
