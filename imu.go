package flightcore

import (
	"time"

	kitlog "github.com/go-kit/kit/log"
)

// ImuSensor is a triaxial accelerometer/gyroscope sensor (§2). The core
// never fuses attitude from it; it is sampled and republished unmodified.
type ImuSensor interface {
	Sample() (accelMPS2, gyroRadS [3]float64, err error)
}

// ImuSampler is the IMU pass-through task: it holds no fusion state and
// performs no filtering, matching the Non-goal that attitude estimation is
// out of scope (§1).
type ImuSampler struct {
	sensor ImuSensor
	clock  Clock
	store  *Store
	logger kitlog.Logger
}

// NewImuSampler constructs an ImuSampler. A nil sensor is permitted: the
// IMU is diagnostic telemetry only, never load-bearing for flight-phase or
// pyro decisions (§2), so its absence is not fatal.
func NewImuSampler(sensor ImuSensor, clock Clock, store *Store) *ImuSampler {
	return &ImuSampler{
		sensor: sensor,
		clock:  clock,
		store:  store,
		logger: newLogger("imu"),
	}
}

// Run samples the sensor once and publishes the result, if a sensor is
// configured.
func (s *ImuSampler) Run(now int64) {
	if s.sensor == nil {
		return
	}
	accel, gyro, err := s.sensor.Sample()
	if err != nil {
		s.logger.Log("level", "error", "msg", "imu sample failed", "err", err)
		return
	}
	s.store.PublishImu(ImuSample{AccelMPS2: accel, GyroRadS: gyro, TimestampMS: now})
}

// RunLoop drives Run on a fixed period until stop is closed (§2 "Period").
func (s *ImuSampler) RunLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(ImuPeriodMS * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Run(s.clock.NowMS())
		}
	}
}
