// Command flightcore runs the onboard flight computer core: the
// estimator, state machine, pyro driver, and IMU sampler, each on its own
// goroutine, sharing a single snapshot store. There is no CLI surface and
// no configuration file: every tuning value is a compile-time constant
// (§6), so main's only job is wiring tasks to sensor drivers and running
// until signalled to stop.
package main

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cloudburst-avionics/flightcore"
)

func main() {
	clock := flightcore.NewMonotonicClock()
	store := flightcore.NewStore()

	// No concrete hardware drivers ship in this module (§1 Non-goals): a
	// real deployment supplies its own Barometer/Link/ImuSensor
	// implementations here. Barometers and the IMU are optional (§4.2,
	// §2), but the pyro link is not: NewPyroDriver below is fatal without
	// one, matching §4.4's failure semantics.
	var baro0, baro1 flightcore.Barometer
	var imuSensor flightcore.ImuSensor
	var link flightcore.Link

	pyro, err := flightcore.NewPyroDriver(link, store, clock)
	if err != nil {
		log.Fatalf("pyro driver init: %s", err)
	}

	estimator := flightcore.NewEstimator(baro0, baro1, clock, store)
	state := flightcore.NewStateMachine(store, pyro, clock.NowMS())
	imu := flightcore.NewImuSampler(imuSensor, clock, store)

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		if err := estimator.RunLoop(stop); err != nil {
			log.Printf("estimator stopped: %s", err)
		}
	}()
	go func() {
		defer wg.Done()
		state.RunLoop(stop)
	}()
	go func() {
		defer wg.Done()
		pyro.RunLoop(stop)
	}()
	go func() {
		defer wg.Done()
		imu.RunLoop(stop)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	close(stop)
	wg.Wait()
}
