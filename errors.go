package flightcore

import "errors"

// Error taxonomy per spec §7. Errors never cross a task boundary: each is
// handled (logged, counted, or returned to a direct caller) at the point
// where it arises.
var (
	// ErrNoBarometerReady is a fatal initialisation error: the estimator
	// task cannot run with zero barometers.
	ErrNoBarometerReady = errors.New("flightcore: no barometer ready")

	// ErrPyroLinkNotReady is a fatal initialisation error: the pyro driver
	// cannot run without a transport.
	ErrPyroLinkNotReady = errors.New("flightcore: pyro link not ready")

	// ErrQueueFull is returned by FireDrogue/FireMain when the command
	// queue has no free slot.
	ErrQueueFull = errors.New("flightcore: pyro command queue full")
)
