package flightcore

import (
	"time"

	kitlog "github.com/go-kit/kit/log"
)

// Link is the byte-level transport to the pyro channel controller (§4.4
// "Transport"): one command byte out, one status byte back, synchronously.
type Link interface {
	Transact(cmd byte) (status byte, err error)
}

type pyroCommand struct {
	cmd    byte
	isMain bool
}

// PyroDriver is the pyrotechnic command/acknowledge task (§4.4). Fire
// requests are enqueued non-blocking by FireDrogue/FireMain; the driver
// goroutine owns the Link exclusively and retries each command until
// acknowledged or exhausted, polling status on every idle cycle.
type PyroDriver struct {
	link   Link
	store  *Store
	clock  Clock
	logger kitlog.Logger
	queue  chan pyroCommand
}

// NewPyroDriver constructs a PyroDriver. link must be non-nil: a missing
// link is a fatal initialisation error (§4.4 "Failure semantics"), unlike
// the estimator's optional barometers.
func NewPyroDriver(link Link, store *Store, clock Clock) (*PyroDriver, error) {
	if link == nil {
		return nil, ErrPyroLinkNotReady
	}
	return &PyroDriver{
		link:   link,
		store:  store,
		clock:  clock,
		logger: newLogger("pyro"),
		queue:  make(chan pyroCommand, PyroQueueDepth),
	}, nil
}

// FireDrogue enqueues a drogue fire command, marking the request in the
// published snapshot before the enqueue is attempted (§4.4, §13): the
// requested flag is visible even if the queue is momentarily full.
func (d *PyroDriver) FireDrogue() error {
	return d.enqueue(pyroCommand{cmd: pyroCmdFireDrogue, isMain: false})
}

// FireMain enqueues a main fire command; see FireDrogue.
func (d *PyroDriver) FireMain() error {
	return d.enqueue(pyroCommand{cmd: pyroCmdFireMain, isMain: true})
}

func (d *PyroDriver) enqueue(c pyroCommand) error {
	cur := d.store.ReadPyro()
	if c.isMain {
		cur.MainRequested = true
	} else {
		cur.DrogueRequested = true
	}
	cur.TimestampMS = d.clock.NowMS()
	d.store.PublishPyro(cur)

	select {
	case d.queue <- c:
		return nil
	default:
		d.logger.Log("level", "error", "msg", "pyro queue full", "cmd", c.cmd)
		return ErrQueueFull
	}
}

// RunLoop is the driver's main loop (§4.4 "Task behaviour"): an initial
// status poll at startup, then repeatedly wait up to PyroPollMS for a
// queued command, executing it with retry-until-ack if one arrives; every
// iteration, whether or not a command was dequeued, ends with a 0x55
// status-request transaction to refresh the snapshot (mirroring
// pyro_thread_fn's unconditional trailing request_pyro_status() call).
func (d *PyroDriver) RunLoop(stop <-chan struct{}) {
	if status, err := d.link.Transact(pyroCmdStatusReq); err == nil {
		d.publishStatus(status)
	} else {
		d.logger.Log("level", "error", "msg", "initial status poll failed", "err", err)
	}

	for {
		select {
		case <-stop:
			return
		case cmd := <-d.queue:
			d.execute(cmd)
		case <-time.After(pyroPollTimeout):
		}

		status, err := d.link.Transact(pyroCmdStatusReq)
		if err != nil {
			d.logger.Log("level", "error", "msg", "status poll failed", "err", err)
			continue
		}
		d.publishStatus(status)
	}
}

// execute retries cmd at PyroRetryMS cadence until the relevant ack bit is
// set or PyroMaxRetries attempts are exhausted (§4.4 "Retry-until-ack").
func (d *PyroDriver) execute(cmd pyroCommand) {
	for attempt := 0; attempt < PyroMaxRetries; attempt++ {
		status, err := d.link.Transact(cmd.cmd)
		if err != nil {
			d.logger.Log("level", "error", "msg", "pyro transact failed", "cmd", cmd.cmd, "attempt", attempt, "err", err)
			time.Sleep(pyroRetryDelay)
			continue
		}
		d.publishStatus(status)

		if acked(status, cmd.isMain) {
			d.logFireResult(cmd, true)
			return
		}
		time.Sleep(pyroRetryDelay)
	}
	d.logFireResult(cmd, false)
}

func acked(status byte, isMain bool) bool {
	if isMain {
		return status&pyroBitMainAck != 0
	}
	return status&pyroBitDrogueAck != 0
}

func (d *PyroDriver) logFireResult(cmd pyroCommand, ok bool) {
	which := "drogue"
	if cmd.isMain {
		which = "main"
	}
	if ok {
		d.logger.Log("level", "info", "msg", "fire command acked", "channel", which)
		return
	}
	d.logger.Log("level", "error", "msg", "fire command not acked, retries exhausted", "channel", which)
}

// decodeStatus unpacks a raw status byte into the boolean fields of
// PyroSnapshot, per the bit layout in config.go (§4.4 "Status byte").
func decodeStatus(status byte) PyroSnapshot {
	return PyroSnapshot{
		StatusByte:    status,
		DrogueFireAck: status&pyroBitDrogueAck != 0,
		DrogueFired:   status&pyroBitDrogueFired != 0,
		DrogueFail:    status&pyroBitDrogueFail != 0,
		DrogueContOK:  status&pyroBitDrogueCont != 0,
		MainFireAck:   status&pyroBitMainAck != 0,
		MainFired:     status&pyroBitMainFired != 0,
		MainFail:      status&pyroBitMainFail != 0,
		MainContOK:    status&pyroBitMainCont != 0,
	}
}

// publishStatus decodes status and merges it into the store, preserving
// the Requested flags already recorded by FireDrogue/FireMain (§13: the
// requested flags live in PyroSnapshot itself, decoded bits never clear
// them).
func (d *PyroDriver) publishStatus(status byte) {
	decoded := decodeStatus(status)
	cur := d.store.ReadPyro()
	decoded.DrogueRequested = cur.DrogueRequested
	decoded.MainRequested = cur.MainRequested
	decoded.TimestampMS = d.clock.NowMS()
	d.store.PublishPyro(decoded)
}
