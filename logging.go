package flightcore

import (
	"os"

	kitlog "github.com/go-kit/kit/log"
)

// newLogger returns a logfmt logger tagged with the owning subsystem,
// mirroring the teacher's SCLogInit: one sync writer to stdout, one "subsys"
// key per task.
func newLogger(subsys string) kitlog.Logger {
	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	return kitlog.With(l, "subsys", subsys)
}
