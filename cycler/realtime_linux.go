//go:build linux

package cycler

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

var realtimeOnce sync.Once

// SetRealtimeScheduling attempts to switch the calling OS thread to
// SCHED_FIFO at a low static priority, matching the teacher's pattern of
// probing an optional capability and degrading gracefully on failure
// (network/ziti.go's optional-transport fallback): a container without
// CAP_SYS_NICE simply keeps the default scheduling policy.
func SetRealtimeScheduling() {
	realtimeOnce.Do(func() {
		param := &unix.SchedParam{Priority: 10}
		if err := unix.SchedSetscheduler(0, unix.SCHED_FIFO, param); err != nil {
			logrus.WithError(err).Warn("cycler: could not set SCHED_FIFO, continuing with default scheduling")
		}
	})
}
