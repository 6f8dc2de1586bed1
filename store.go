package flightcore

import (
	"sync"

	kitlog "github.com/go-kit/kit/log"
)

// Store is the shared, mutex-protected snapshot store (§4.1). Each of the
// four slots is serialised independently, writes are last-writer-wins, and
// readers get a full copy with no aliasing of live state. There is no
// subscription or history: a read always returns the most recently
// published value for that slot, observed either fully before or fully
// after any concurrent publish.
type Store struct {
	logger kitlog.Logger

	imuMu sync.Mutex
	imu   ImuSample

	baroMu sync.Mutex
	baro   EstimatorSnapshot

	stateMu sync.Mutex
	state   StateSnapshot

	pyroMu sync.Mutex
	pyro   PyroSnapshot
}

// NewStore returns an empty Store. All slots start at their zero value
// until the first publish from the owning task.
func NewStore() *Store {
	return &Store{logger: newLogger("store")}
}

// PublishImu publishes a new IMU snapshot.
func (s *Store) PublishImu(v ImuSample) {
	s.imuMu.Lock()
	s.imu = v
	s.imuMu.Unlock()
}

// ReadImu returns the most recently published IMU snapshot.
func (s *Store) ReadImu() ImuSample {
	s.imuMu.Lock()
	defer s.imuMu.Unlock()
	return s.imu
}

// PublishBaro publishes a new estimator snapshot.
func (s *Store) PublishBaro(v EstimatorSnapshot) {
	s.baroMu.Lock()
	s.baro = v
	s.baroMu.Unlock()
}

// ReadBaro returns the most recently published estimator snapshot.
func (s *Store) ReadBaro() EstimatorSnapshot {
	s.baroMu.Lock()
	defer s.baroMu.Unlock()
	return s.baro
}

// PublishState publishes a new state-machine snapshot.
func (s *Store) PublishState(v StateSnapshot) {
	s.stateMu.Lock()
	s.state = v
	s.stateMu.Unlock()
}

// ReadState returns the most recently published state-machine snapshot.
func (s *Store) ReadState() StateSnapshot {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// PublishPyro publishes a new pyro snapshot, logging a diagnostic line for
// each boolean field that changed since the previous publish (§4.1),
// following the original firmware's set_pyro_data per-field diff
// (SPEC_FULL.md §13): ack/fired/cont-ok/requested changes log at info
// level, the two failure bits log at error level.
func (s *Store) PublishPyro(v PyroSnapshot) {
	s.pyroMu.Lock()
	prev := s.pyro
	s.pyro = v
	s.pyroMu.Unlock()

	s.logPyroFieldChange("drogue_requested", prev.DrogueRequested, v.DrogueRequested, false)
	s.logPyroFieldChange("main_requested", prev.MainRequested, v.MainRequested, false)
	s.logPyroFieldChange("drogue_fire_ack", prev.DrogueFireAck, v.DrogueFireAck, false)
	s.logPyroFieldChange("main_fire_ack", prev.MainFireAck, v.MainFireAck, false)
	s.logPyroFieldChange("drogue_fired", prev.DrogueFired, v.DrogueFired, false)
	s.logPyroFieldChange("main_fired", prev.MainFired, v.MainFired, false)
	s.logPyroFieldChange("drogue_fail", prev.DrogueFail, v.DrogueFail, true)
	s.logPyroFieldChange("main_fail", prev.MainFail, v.MainFail, true)
	s.logPyroFieldChange("drogue_cont_ok", prev.DrogueContOK, v.DrogueContOK, false)
	s.logPyroFieldChange("main_cont_ok", prev.MainContOK, v.MainContOK, false)
}

func (s *Store) logPyroFieldChange(field string, from, to, isFailure bool) {
	if from == to {
		return
	}
	level := "info"
	if isFailure {
		level = "error"
	}
	s.logger.Log("level", level, "field", field, "from", from, "to", to)
}

// ReadPyro returns the most recently published pyro snapshot.
func (s *Store) ReadPyro() PyroSnapshot {
	s.pyroMu.Lock()
	defer s.pyroMu.Unlock()
	return s.pyro
}
