package flightcore

import "time"

// All tuning values are compile-time constants (§6): the flight computer
// accepts no runtime configuration, CLI, or environment surface.
const (
	// --- Estimator (§4.2, §6) ---

	EstimatorPeriodMS = 30
	SigmaAccelMPS2    = 45.0 // process-noise std dev of acceleration
	SigmaBaro0M       = 1.5 // baro0 measurement noise std dev
	SigmaBaro1M       = 1.5 // baro1 measurement noise std dev
	NISSoftThreshold  = 6.0
	NISHardThreshold  = 25.0
	FaultLimit        = 5

	DtClampMinS = 0.001
	DtClampMaxS = 0.200

	gasConstantAirJPerKgK = 287.05
	gravityMPS2           = 9.80665
	seaLevelPressurePa    = 101325.0
	minValidPressurePa    = 1000.0
	maxValidPressurePa    = 200000.0

	// --- State machine (§4.3, §6) ---

	StateMachinePeriodMS = 20

	// GroundWarmupMS is an Open Question in the spec (§9): it pins the
	// value at 1500 ms, chosen to be >= 500 ms and to give the estimator
	// ~50 cycles at the nominal 30 ms baro period to settle before
	// ground-altitude averaging starts (SPEC_FULL.md §15).
	GroundWarmupMS        = 1500
	GroundAverageSamples  = 10
	AscentAltitudeM       = 25.0
	AscentVelocityMPS     = 5.0
	AscentChecks          = 5
	MachLockVelocityMPS   = 150.0
	MachLockChecks        = 10
	MachUnlockVelocityMPS = 150.0
	MachUnlockChecks      = 10
	DrogueVelocityMPS     = 5.0
	DrogueChecks          = 5
	DrogueDelayMS         = 3000
	MainDeployAltitudeM   = 488.0
	MainChecks            = 5
	LandedVelocityMPS     = 4.0
	LandedChecks          = 6
	LandedIntervalMS      = 10000

	// --- Pyro (§4.4, §6) ---

	PyroPollMS       = 100
	PyroRetryMS      = 10
	PyroMaxRetries   = 100
	PyroQueueDepth   = 10

	// --- IMU (§2) ---

	ImuPeriodMS = 50
)

const (
	pyroPollTimeout = PyroPollMS * time.Millisecond
	pyroRetryDelay  = PyroRetryMS * time.Millisecond
)

// Pyro command bytes (§4.4).
const (
	pyroCmdFireDrogue byte = 0x01
	pyroCmdFireMain   byte = 0x02
	pyroCmdStatusReq  byte = 0x55
)

// Pyro status byte bit layout (§4.4).
const (
	pyroBitDrogueFired byte = 1 << 0
	pyroBitMainFired   byte = 1 << 1
	pyroBitDrogueFail  byte = 1 << 2
	pyroBitMainFail    byte = 1 << 3
	pyroBitDrogueCont  byte = 1 << 4
	pyroBitMainCont    byte = 1 << 5
	pyroBitDrogueAck   byte = 1 << 6
	pyroBitMainAck     byte = 1 << 7
)
