package flightcore

import "testing"

type fakePyro struct {
	drogueFired int
	mainFired   int
}

func (p *fakePyro) FireDrogue() error {
	p.drogueFired++
	return nil
}

func (p *fakePyro) FireMain() error {
	p.mainFired++
	return nil
}

func calibratedMachine() (*StateMachine, *fakePyro) {
	pyro := &fakePyro{}
	m := NewStateMachine(NewStore(), pyro, 0)
	// Run past warmup and averaging at ground level (0 m, 0 m/s).
	t := int64(0)
	for t < GroundWarmupMS+int64(GroundAverageSamples)*StateMachinePeriodMS {
		m.Step(sample{altitudeAbsM: 0, velocityMPS: 0, timestampMS: t})
		t += StateMachinePeriodMS
	}
	if m.phase != PhaseStandby || !m.groundReady {
		panic("test setup: ground calibration did not complete")
	}
	return m, pyro
}

func TestCalmStandbyStaysStandby(t *testing.T) {
	m, _ := calibratedMachine()
	for i := 0; i < 20; i++ {
		m.Step(sample{altitudeAbsM: 0, velocityMPS: 0, timestampMS: int64(i) * StateMachinePeriodMS})
	}
	if m.phase != PhaseStandby {
		t.Fatalf("expected STANDBY under calm conditions, got %s", m.phase)
	}
}

func TestNominalAscentStart(t *testing.T) {
	m, _ := calibratedMachine()
	base := m.entryTimeMS
	for i := 0; i < int(AscentChecks)+2; i++ {
		m.Step(sample{altitudeAbsM: 100, velocityMPS: 50, timestampMS: base + int64(i)*StateMachinePeriodMS})
	}
	if m.phase != PhaseAscent {
		t.Fatalf("expected ASCENT after sustained climb, got %s", m.phase)
	}
}

func TestMachLockRoundTrip(t *testing.T) {
	m, _ := calibratedMachine()
	ts := int64(0)
	step := func(alt, vel float64) {
		ts += StateMachinePeriodMS
		m.Step(sample{altitudeAbsM: alt, velocityMPS: vel, timestampMS: ts})
	}
	for i := 0; i < int(AscentChecks)+1; i++ {
		step(100, 50)
	}
	if m.phase != PhaseAscent {
		t.Fatalf("expected ASCENT before mach lock, got %s", m.phase)
	}
	for i := 0; i < int(MachLockChecks)+1; i++ {
		step(500, 200)
	}
	if m.phase != PhaseMachLock {
		t.Fatalf("expected MACH_LOCK at high velocity, got %s", m.phase)
	}
	for i := 0; i < int(MachUnlockChecks)+1; i++ {
		step(500, 100)
	}
	if m.phase != PhaseAscent {
		t.Fatalf("expected return to ASCENT after mach unlock, got %s", m.phase)
	}
}

func TestDrogueFireTiming(t *testing.T) {
	m, pyro := calibratedMachine()
	ts := int64(0)
	step := func(alt, vel float64) {
		ts += StateMachinePeriodMS
		s := sample{altitudeAbsM: alt, velocityMPS: vel, timestampMS: ts}
		m.tickDrogueTimer(s)
		m.Step(s)
	}
	for i := 0; i < int(AscentChecks)+1; i++ {
		step(100, 50)
	}
	for i := 0; i < int(DrogueChecks)+1; i++ {
		step(1000, 2)
	}
	if m.phase != PhaseDrogueDescent {
		t.Fatalf("expected DROGUE_DESCENT, got %s", m.phase)
	}
	if pyro.drogueFired != 0 {
		t.Fatal("drogue must not fire before the delay elapses")
	}
	entry := m.entryTimeMS
	for ts < entry+DrogueDelayMS+StateMachinePeriodMS {
		step(1000, 2)
	}
	if pyro.drogueFired != 1 {
		t.Fatalf("expected drogue fired exactly once after delay, got %d", pyro.drogueFired)
	}
}

func TestMainDeployGatedOnDrogue(t *testing.T) {
	m, pyro := calibratedMachine()
	ts := int64(0)
	step := func(alt, vel float64) {
		ts += StateMachinePeriodMS
		s := sample{altitudeAbsM: alt, velocityMPS: vel, timestampMS: ts}
		m.tickDrogueTimer(s)
		m.Step(s)
	}
	for i := 0; i < int(AscentChecks)+1; i++ {
		step(100, 50)
	}
	for i := 0; i < int(DrogueChecks)+1; i++ {
		step(1000, 2)
	}
	// Below MainDeployAltitudeM, but drogue has not fired yet: must not deploy main.
	for i := 0; i < int(MainChecks)+1; i++ {
		step(100, 2)
	}
	if m.phase != PhaseDrogueDescent {
		t.Fatalf("expected to remain in DROGUE_DESCENT until drogue fires, got %s", m.phase)
	}
	if pyro.mainFired != 0 {
		t.Fatal("main must not fire before drogue")
	}

	entry := m.entryTimeMS
	for ts < entry+DrogueDelayMS+StateMachinePeriodMS {
		step(1000, 2)
	}
	for i := 0; i < int(MainChecks)+1; i++ {
		step(100, 2)
	}
	if m.phase != PhaseMainDescent {
		t.Fatalf("expected MAIN_DESCENT after drogue fired and altitude dropped, got %s", m.phase)
	}
	if pyro.mainFired != 1 {
		t.Fatalf("expected main fired exactly once, got %d", pyro.mainFired)
	}
}

func TestLandedRequiresPacedChecks(t *testing.T) {
	m, _ := calibratedMachine()
	ts := int64(0)
	step := func(alt, vel float64) {
		ts += StateMachinePeriodMS
		s := sample{altitudeAbsM: alt, velocityMPS: vel, timestampMS: ts}
		m.tickDrogueTimer(s)
		m.Step(s)
	}
	for i := 0; i < int(AscentChecks)+1; i++ {
		step(100, 50)
	}
	for i := 0; i < int(DrogueChecks)+1; i++ {
		step(1000, 2)
	}
	entry := m.entryTimeMS
	for ts < entry+DrogueDelayMS+StateMachinePeriodMS {
		step(1000, 2)
	}
	for i := 0; i < int(MainChecks)+1; i++ {
		step(10, 2)
	}
	if m.phase != PhaseMainDescent {
		t.Fatalf("expected MAIN_DESCENT, got %s", m.phase)
	}

	// Landed checks are paced at LandedIntervalMS: pumping many fast
	// cycles without advancing time that far must not reach LANDED.
	for i := 0; i < int(LandedChecks)*3; i++ {
		step(0, 0.1)
	}
	if m.phase == PhaseLanded {
		t.Fatal("expected landed check pacing to prevent premature LANDED")
	}

	for i := 0; i < int(LandedChecks)+1; i++ {
		ts += LandedIntervalMS
		s := sample{altitudeAbsM: 0, velocityMPS: 0.1, timestampMS: ts}
		m.Step(s)
	}
	if m.phase != PhaseLanded {
		t.Fatalf("expected LANDED after paced checks complete, got %s", m.phase)
	}
}

func TestTransitionToNoOpOnSamePhase(t *testing.T) {
	m, _ := calibratedMachine()
	before := m.entryTimeMS
	m.transitionTo(PhaseStandby, sample{timestampMS: before + 1000})
	if m.entryTimeMS != before {
		t.Fatal("transitioning to the current phase must be a no-op")
	}
}
