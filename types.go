// Package flightcore implements the onboard flight computer core of a model
// rocket recovery system: a dual-barometer altitude/velocity estimator, a
// six-phase flight state machine, and a pyrotechnic deployment driver.
package flightcore

import "fmt"

// FlightPhase enumerates the six phases of the flight state machine (§4.3).
type FlightPhase uint8

const (
	// PhaseStandby is the initial phase: ground calibration, then waiting
	// for liftoff.
	PhaseStandby FlightPhase = iota
	// PhaseAscent is powered/coasting flight up to apogee.
	PhaseAscent
	// PhaseMachLock is entered at transonic velocities, where barometric
	// altitude is considered unreliable for recovery decisions.
	PhaseMachLock
	// PhaseDrogueDescent follows apogee detection; the drogue parachute is
	// fired after a fixed delay.
	PhaseDrogueDescent
	// PhaseMainDescent is entered once the drogue has been commanded and the
	// main-deploy altitude is reached; the main parachute fires on entry.
	PhaseMainDescent
	// PhaseLanded is terminal.
	PhaseLanded
)

func (p FlightPhase) String() string {
	switch p {
	case PhaseStandby:
		return "STANDBY"
	case PhaseAscent:
		return "ASCENT"
	case PhaseMachLock:
		return "MACH_LOCK"
	case PhaseDrogueDescent:
		return "DROGUE_DESCENT"
	case PhaseMainDescent:
		return "MAIN_DESCENT"
	case PhaseLanded:
		return "LANDED"
	default:
		return fmt.Sprintf("FlightPhase(%d)", uint8(p))
	}
}

// ImuSample is a single triaxial accel/gyro reading. The core passes this
// through unmodified; no attitude fusion is performed (§1 Non-goals).
type ImuSample struct {
	AccelMPS2  [3]float64
	GyroRadS   [3]float64
	TimestampMS int64
}

// BaroMeasurement is the per-cycle state of a single barometer channel:
// the raw reading plus the estimator's judgement of it (§3).
type BaroMeasurement struct {
	PressurePa     float64
	TemperatureC   float64
	AltitudeM      float64
	NIS            float64
	FaultCount     uint8
	Healthy        bool
}

// EstimatorSnapshot is published once per estimator cycle (§3, §4.2).
type EstimatorSnapshot struct {
	Baro0 BaroMeasurement
	Baro1 BaroMeasurement

	AltitudeM    float64 // fused absolute altitude
	AltitudeAGLM float64 // altitude relative to calibrated ground altitude
	AltVarianceM2 float64 // P00
	VelocityMPS  float64
	VelVarianceM2 float64 // P11

	TimestampMS int64
}

// StateSnapshot is published once per state-machine cycle (§3, §4.3).
type StateSnapshot struct {
	Phase           FlightPhase
	GroundAltitudeM float64
	GroundReady     bool
	TimestampMS     int64
}

// PyroSnapshot is the decoded pyro status plus host-side intent (§3, §4.4).
// Field layout follows the original firmware's struct pyro_data: requested
// flags live alongside the decoded acknowledgement/outcome bits rather than
// in a separate struct (SPEC_FULL.md §13).
type PyroSnapshot struct {
	StatusByte byte

	DrogueRequested bool
	DrogueFireAck   bool
	DrogueFired     bool
	DrogueFail      bool
	DrogueContOK    bool

	MainRequested bool
	MainFireAck   bool
	MainFired     bool
	MainFail      bool
	MainContOK    bool

	TimestampMS int64
}
