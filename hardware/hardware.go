// Package hardware defines the narrow interface a cycler uses to reach the
// outside world: the wall clock, the operator's "should I record" switch,
// and the audible overrun warning. Production builds wire a real interface
// elsewhere; cyclerd itself only depends on this interface and the
// NullInterface stub used in tests and headless runs.
//
// Grounded on the queue package's pattern of pairing a narrow interface
// with an always-available mock implementation, so callers never have a
// special no-hardware code path.
package hardware

import "time"

// Interface is everything a cycler needs from the robot's hardware layer.
type Interface interface {
	// Now returns the current hardware clock reading used to timestamp a
	// cycle's database.
	Now() time.Time
	// ShouldRecord reports whether the operator currently wants cycles
	// recorded; consulted by recording.HardwareGated.
	ShouldRecord() bool
	// WriteToSpeakers plays an audible warning, used for cycle overrun
	// notifications.
	WriteToSpeakers(message string) error
}

// NullInterface is a no-hardware stub: the clock is the process clock,
// recording is always requested, and speaker writes are discarded.
type NullInterface struct{}

// Now returns time.Now().
func (NullInterface) Now() time.Time { return time.Now() }

// ShouldRecord always reports true.
func (NullInterface) ShouldRecord() bool { return true }

// WriteToSpeakers discards the message.
func (NullInterface) WriteToSpeakers(string) error { return nil }
