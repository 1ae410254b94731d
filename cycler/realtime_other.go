//go:build !linux

package cycler

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var realtimeOnce sync.Once

// SetRealtimeScheduling is a documented no-op outside Linux: SCHED_FIFO
// has no equivalent exposed the same way on other platforms this runs on
// during development.
func SetRealtimeScheduling() {
	realtimeOnce.Do(func() {
		logrus.Debug("cycler: real-time scheduling not supported on this platform, continuing with default scheduling")
	})
}
