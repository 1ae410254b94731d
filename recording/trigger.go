package recording

import (
	"time"

	"github.com/fieldcore/cyclerd/hardware"
)

// Always records every cycle. This is the default trigger policy.
type Always struct{}

// ShouldRecord always reports true.
func (Always) ShouldRecord(time.Time, uint64) bool { return true }

// EveryNth records one cycle out of every n, starting with cycle 0.
type EveryNth struct {
	N uint64
}

// ShouldRecord reports true when cycleIndex is a multiple of N.
func (e EveryNth) ShouldRecord(_ time.Time, cycleIndex uint64) bool {
	if e.N == 0 {
		return false
	}
	return cycleIndex%e.N == 0
}

// HardwareGated defers the recording decision to the operator's
// hardware-level "should I record" switch, consulted once per cycle.
type HardwareGated struct {
	Hardware hardware.Interface
}

// ShouldRecord reports hw.ShouldRecord().
func (h HardwareGated) ShouldRecord(time.Time, uint64) bool {
	if h.Hardware == nil {
		return false
	}
	return h.Hardware.ShouldRecord()
}
