package flightcore

import (
	"math"
	"time"

	kitlog "github.com/go-kit/kit/log"
)

// PyroActuator is the subset of the pyro driver's public API the state
// machine is allowed to call (§4.4 "Do not expose synchronous fire APIs
// that block on ACK — the public API is fire-and-queue").
type PyroActuator interface {
	FireDrogue() error
	FireMain() error
}

// repeatCheck is the sole debounce mechanism in the state machine (§4.3
// "Repeat-check discipline"): a saturating counter that requires a
// predicate to hold on N consecutive cycles before reporting true.
type repeatCheck struct {
	count uint8
}

// update advances the counter: increments (saturating at 255) if condition
// holds, resets to zero otherwise. Returns true once the count reaches
// required.
func (c *repeatCheck) update(condition bool, required uint8) bool {
	if condition {
		if c.count < 255 {
			c.count++
		}
	} else {
		c.count = 0
	}
	return c.count >= required
}

func (c *repeatCheck) reset() {
	c.count = 0
}

// sample is one cycle's estimator readout, reduced to what the state
// machine's transition predicates need (§4.3 "Model").
type sample struct {
	altitudeAbsM float64
	velocityMPS  float64
	timestampMS  int64
}

// StateMachine is the flight-phase state machine task (§4.3). It reads the
// latest estimator snapshot each cycle, evaluates the transition predicate
// of the current phase, and invokes each pyro action (drogue, main) at most
// once per reset.
type StateMachine struct {
	store  *Store
	pyro   PyroActuator
	logger kitlog.Logger

	phase FlightPhase

	entryTimeMS int64

	groundWarmupEndMS int64
	groundSumM        float64
	groundSamples     uint8
	groundAltitudeM   float64
	groundReady       bool

	ascentCheck      repeatCheck
	machLockCheck    repeatCheck
	machUnlockCheck  repeatCheck
	drogueMainCheck  repeatCheck
	landedCheck      repeatCheck
	lastLandedCheckMS int64

	drogueFired bool
	mainFired   bool
}

// NewStateMachine constructs a StateMachine in STANDBY, with ground
// calibration warmup beginning at the given start timestamp.
func NewStateMachine(store *Store, pyro PyroActuator, startMS int64) *StateMachine {
	return &StateMachine{
		store:             store,
		pyro:              pyro,
		logger:            newLogger("state"),
		phase:             PhaseStandby,
		entryTimeMS:       startMS,
		groundWarmupEndMS: startMS + GroundWarmupMS,
	}
}

// Step runs one state-machine cycle against s, transitioning phase (and
// firing the main on MAIN_DESCENT entry), then publishes the resulting
// snapshot. The drogue delay timer is not run here; see tickDrogueTimer.
func (m *StateMachine) Step(s sample) {
	next := m.evaluate(s)
	m.transitionTo(next, s)

	m.store.PublishState(StateSnapshot{
		Phase:           m.phase,
		GroundAltitudeM: m.groundAltitudeM,
		GroundReady:     m.groundReady,
		TimestampMS:     s.timestampMS,
	})
}

func (m *StateMachine) relativeAltitude(s sample) float64 {
	return s.altitudeAbsM - m.groundAltitudeM
}

// evaluate dispatches to the current phase's predicate, mirroring the
// original firmware's per-state update_* functions (SPEC_FULL.md, DESIGN.md).
func (m *StateMachine) evaluate(s sample) FlightPhase {
	switch m.phase {
	case PhaseStandby:
		return m.evalStandby(s)
	case PhaseAscent:
		return m.evalAscent(s)
	case PhaseMachLock:
		return m.evalMachLock(s)
	case PhaseDrogueDescent:
		return m.evalDrogueDescent(s)
	case PhaseMainDescent:
		return m.evalMainDescent(s)
	case PhaseLanded:
		return PhaseLanded
	default:
		return m.phase
	}
}

// evalStandby runs ground calibration (warmup, then averaging) before
// evaluating the ascent predicate (§4.3 "Ground altitude calibration").
func (m *StateMachine) evalStandby(s sample) FlightPhase {
	if !m.groundReady {
		if s.timestampMS < m.groundWarmupEndMS {
			return PhaseStandby
		}
		m.groundSumM += s.altitudeAbsM
		m.groundSamples++
		if m.groundSamples >= GroundAverageSamples {
			m.groundAltitudeM = m.groundSumM / float64(m.groundSamples)
			m.groundReady = true
		}
		return PhaseStandby
	}

	rel := m.relativeAltitude(s)
	ascendCondition := rel > AscentAltitudeM && s.velocityMPS > AscentVelocityMPS
	if m.ascentCheck.update(ascendCondition, AscentChecks) {
		return PhaseAscent
	}
	return PhaseStandby
}

func (m *StateMachine) evalAscent(s sample) FlightPhase {
	if m.machLockCheck.update(s.velocityMPS > MachLockVelocityMPS, MachLockChecks) {
		return PhaseMachLock
	}
	if m.drogueMainCheck.update(s.velocityMPS < DrogueVelocityMPS, DrogueChecks) {
		return PhaseDrogueDescent
	}
	return PhaseAscent
}

// evalMachLock only evaluates the unlock predicate: a direct MACH_LOCK ->
// DROGUE_DESCENT transition is not permitted (§4.3, spec Open Questions).
func (m *StateMachine) evalMachLock(s sample) FlightPhase {
	if m.machUnlockCheck.update(s.velocityMPS < MachUnlockVelocityMPS, MachUnlockChecks) {
		return PhaseAscent
	}
	return PhaseMachLock
}

func (m *StateMachine) evalDrogueDescent(s sample) FlightPhase {
	if !m.drogueFired {
		return PhaseDrogueDescent
	}
	rel := m.relativeAltitude(s)
	if m.drogueMainCheck.update(rel < MainDeployAltitudeM, MainChecks) {
		return PhaseMainDescent
	}
	return PhaseDrogueDescent
}

// evalMainDescent paces the landed check to at most once per
// LandedIntervalMS (§4.3 "LANDED-check pacing"): a qualifying sample only
// counts toward the LandedChecks-of-LandedChecks tally if the interval has
// elapsed; any non-qualifying sample resets both the counter and the
// pacing clock.
func (m *StateMachine) evalMainDescent(s sample) FlightPhase {
	landed := math.Abs(s.velocityMPS) < LandedVelocityMPS
	if !landed {
		m.landedCheck.update(false, LandedChecks)
		m.lastLandedCheckMS = s.timestampMS
		return PhaseMainDescent
	}

	if s.timestampMS-m.lastLandedCheckMS >= LandedIntervalMS {
		m.lastLandedCheckMS = s.timestampMS
		if m.landedCheck.update(true, LandedChecks) {
			return PhaseLanded
		}
	}
	return PhaseMainDescent
}

// transitionTo moves to next, running the target phase's entry hook; it is
// a no-op when next equals the current phase (§9 "State dispatch").
func (m *StateMachine) transitionTo(next FlightPhase, s sample) {
	if next == m.phase {
		return
	}
	m.logger.Log("level", "info", "msg", "phase change", "from", m.phase, "to", next)
	m.phase = next
	m.entryTimeMS = s.timestampMS

	switch next {
	case PhaseStandby:
		m.ascentCheck.reset()
		m.groundSumM = 0
		m.groundSamples = 0
		m.groundAltitudeM = 0
		m.groundReady = false
	case PhaseAscent:
		// Re-entering ASCENT from MACH_LOCK must clear both the mach-lock
		// and drogue predicates' counters, or a stale drogue_main_check
		// tally from before mach-lock could fire a spurious transition
		// immediately on re-entry (SPEC_FULL.md §13).
		m.machLockCheck.reset()
		m.drogueMainCheck.reset()
	case PhaseMachLock:
		m.machUnlockCheck.reset()
	case PhaseDrogueDescent:
		m.drogueMainCheck.reset()
		m.drogueFired = false
	case PhaseMainDescent:
		m.landedCheck.reset()
		m.lastLandedCheckMS = s.timestampMS
		if err := m.pyro.FireMain(); err != nil {
			m.logger.Log("level", "error", "msg", "fire main dispatch failed", "err", err)
		}
		m.mainFired = true
	case PhaseLanded:
		m.logger.Log("level", "notice", "msg", "landed")
	}
}

// tickDrogueTimer fires the drogue exactly once, DrogueDelayMS after
// DROGUE_DESCENT entry (§4.3 "Drogue fire timing"). It must be called
// every cycle the machine spends in DROGUE_DESCENT, before the transition
// predicate is evaluated, so MAIN_DESCENT stays gated on the local latch
// rather than on observing the pyro ACK (§5 ordering guarantee).
func (m *StateMachine) tickDrogueTimer(s sample) {
	if m.phase != PhaseDrogueDescent || m.drogueFired {
		return
	}
	if s.timestampMS-m.entryTimeMS >= DrogueDelayMS {
		if err := m.pyro.FireDrogue(); err != nil {
			m.logger.Log("level", "error", "msg", "fire drogue dispatch failed", "err", err)
		}
		m.drogueFired = true
	}
}

// RunLoop drives Step on a fixed period against the store's latest
// estimator snapshot until stop is closed (§2, §4.3 "Period").
func (m *StateMachine) RunLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(StateMachinePeriodMS * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			est := m.store.ReadBaro()
			s := sample{altitudeAbsM: est.AltitudeM, velocityMPS: est.VelocityMPS, timestampMS: est.TimestampMS}
			m.tickDrogueTimer(s)
			m.Step(s)
		}
	}
}
