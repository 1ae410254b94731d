// Package cycler implements the cycler runtime (component F): the
// nine-step per-cycle loop that drives one cycler instance's thread for
// the life of the process, real-time and perception variants alike.
//
// Grounded on worker.Worker.Start's select-on-stop-channel loop shape,
// generalized from a generic job-processing iteration to the fixed
// setup/gather/cycle/publish/record sequence; cancellation follows
// coordinator.Coordinator's context/cancel lifecycle.
package cycler

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/fieldcore/cyclerd/hardware"
	"github.com/fieldcore/cyclerd/metrics"
)

// Kind distinguishes the real-time and perception cycler variants, which
// differ only in their step 4/7 post-setup and post-cycle actions.
type Kind int

const (
	RealTime Kind = iota
	Perception
)

func (k Kind) String() string {
	if k == Perception {
		return "perception"
	}
	return "realtime"
}

// Instance is the per-cycler-type glue a codegen-generated package
// implements: it owns the node set, the own-database slot, and knows how
// to run its setup and cycle node lists (steps 3-7). RunSetup and
// RunCycle each return the bytes that belong in this cycle's recording
// frame when wantFrame is true (nil otherwise) — see §4.7's frame
// assembly order.
type Instance interface {
	Name() string
	Kind() Kind
	// RunSetup runs the setup nodes in catalog order. For real-time
	// instances the Runner drains the perception pipeline after it returns.
	RunSetup(now time.Time, wantFrame bool) (frameBytes []byte, err error)
	// RunCycle runs the cycle nodes in catalog order. The Runner then
	// publishes the database, consumes the perception pipeline's persistent
	// entries and records historic data (the last two for real-time
	// instances only). Neither the codegen-generated RunSetup/RunCycle nor
	// the Runner calls PerceptionPipeline.Announce or Finalize.
	RunCycle(now time.Time, wantFrame bool) (frameBytes []byte, err error)
	// Database returns this cycle's own-database snapshot: the combined
	// main outputs of every node run so far this cycle. The Runner
	// publishes it to DatabaseHub/PerceptionPipeline/HistoricStore after a
	// successful RunSetup/RunCycle so other cyclers can borrow it.
	Database() any
}

// NodeConstructionError wraps a failure from Instance.RunSetup, naming the
// cycler it came from so callers can distinguish a setup-phase failure
// from a cycle-phase one (NodeCycleError) with errors.As.
type NodeConstructionError struct {
	Cycler string
	Err    error
}

func (e *NodeConstructionError) Error() string {
	return fmt.Sprintf("cycler %s: setup: %v", e.Cycler, e.Err)
}

func (e *NodeConstructionError) Unwrap() error { return e.Err }

// NodeCycleError wraps a failure from Instance.RunCycle.
type NodeCycleError struct {
	Cycler string
	Err    error
}

func (e *NodeCycleError) Error() string {
	return fmt.Sprintf("cycler %s: cycle: %v", e.Cycler, e.Err)
}

func (e *NodeCycleError) Unwrap() error { return e.Err }

// Frame is one recorded cycle, ready for a Sink.
type Frame struct {
	Instance string
	Index    uint64
	Now      time.Time
	Duration time.Duration
	Bytes    []byte
}

// Sink persists recorded frames; back-pressure must surface as an error
// from Write, which cancels the owning cycler for that cycle per §4.7/§7.
type Sink interface {
	Write(Frame) error
}

// Trigger decides, once per cycle, whether this cycle should be recorded.
type Trigger interface {
	ShouldRecord(now time.Time, cycleIndex uint64) bool
}

// Config configures one Runner.
type Config struct {
	Instance Instance
	Hardware hardware.Interface
	Metrics  *metrics.Metrics // optional
	Sink     Sink             // optional; no recording if nil
	Trigger  Trigger          // optional; defaults to never-record if nil
	// Budget is the wall-clock duration a cycle may take before an
	// overrun warning fires. Zero disables overrun detection.
	Budget time.Duration

	// Hub publishes this instance's database snapshot after every cycle
	// so other cyclers can borrow it through a slot.Buffer (§4.6 steps
	// 4/5). Optional; no cross-cycler publish happens if nil.
	Hub *DatabaseHub
	// Perception drains and folds finalized perception outputs into the
	// real-time aggregator before RunCycle, and participates in the
	// Historic/Perception eviction-boundary exchange after it. Optional;
	// only meaningful for RealTime-kind instances.
	Perception *PerceptionPipeline
	// Historic records this instance's database snapshot into its own
	// historic window after every cycle. Optional.
	Historic *HistoricStore
}

// Runner drives one cycler instance's loop on the calling goroutine until
// ctx is cancelled or a node returns an error.
type Runner struct {
	cfg        Config
	cycleIndex atomic.Uint64
}

// New returns a Runner for cfg. cfg.Hardware defaults to
// hardware.NullInterface if nil.
func New(cfg Config) *Runner {
	if cfg.Hardware == nil {
		cfg.Hardware = hardware.NullInterface{}
	}
	return &Runner{cfg: cfg}
}

// Run executes the cycle loop until ctx is done or a node call fails. It
// locks its goroutine to one OS thread for the whole loop and calls
// SetRealtimeScheduling, which switches only the thread of the first
// Runner in the process to call it, whatever that instance's Kind. The
// returned error, if any, names the instance and the phase (setup or
// cycle) that failed, per §4.6's cancellation contract: any node error
// cancels all cyclers.
func (r *Runner) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	SetRealtimeScheduling()

	name := r.cfg.Instance.Name()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := time.Now()
		now := r.cfg.Hardware.Now()
		idx := r.cycleIndex.Load()

		wantFrame := r.cfg.Sink != nil && r.cfg.Trigger != nil && r.cfg.Trigger.ShouldRecord(now, idx)

		setupBytes, err := r.cfg.Instance.RunSetup(now, wantFrame)
		if err != nil {
			return &NodeConstructionError{Cycler: name, Err: err}
		}

		if r.cfg.Perception != nil && r.cfg.Instance.Kind() == RealTime {
			r.cfg.Perception.DrainAndUpdate(now)
		}

		cycleBytes, err := r.cfg.Instance.RunCycle(now, wantFrame)
		if err != nil {
			return &NodeCycleError{Cycler: name, Err: err}
		}

		if r.cfg.Hub != nil {
			_ = r.cfg.Hub.Publish(name, r.cfg.Instance.Database())
		}

		if r.cfg.Perception != nil && r.cfg.Instance.Kind() == RealTime {
			r.cfg.Perception.ConsumePersistent()
		}

		if r.cfg.Historic != nil && r.cfg.Instance.Kind() == RealTime {
			var evictBefore time.Time
			if r.cfg.Perception != nil {
				if ts, ok := r.cfg.Perception.Aggregator().OldestTemporary(); ok {
					evictBefore = ts
				}
			}
			r.cfg.Historic.Record(name, now, r.cfg.Instance.Database(), evictBefore)

			if r.cfg.Perception != nil {
				if ts, ok := r.cfg.Historic.For(name).Oldest(); ok {
					r.cfg.Perception.Aggregator().EvictTemporaryBefore(ts)
				}
			}
		}

		duration := time.Since(start)
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.CycleDuration.WithLabelValues(name).Observe(duration.Seconds())
		}

		if r.cfg.Budget > 0 && duration > r.cfg.Budget {
			_ = r.cfg.Hardware.WriteToSpeakers(fmt.Sprintf("cycle overrun on %s", name))
			if r.cfg.Metrics != nil {
				r.cfg.Metrics.CycleOverruns.WithLabelValues(name).Inc()
			}
		}

		if wantFrame {
			frame := Frame{
				Instance: name,
				Index:    idx,
				Now:      now,
				Duration: duration,
				Bytes:    append(setupBytes, cycleBytes...),
			}
			if err := r.cfg.Sink.Write(frame); err != nil {
				if r.cfg.Metrics != nil {
					r.cfg.Metrics.RecordingErrors.WithLabelValues(name).Inc()
				}
				return fmt.Errorf("cycler %s: recording: %w", name, err)
			}
			if r.cfg.Metrics != nil {
				r.cfg.Metrics.RecordedFrames.WithLabelValues(name).Inc()
			}
		}

		r.cycleIndex.Add(1)
	}
}

// CycleIndex returns the number of cycles completed so far.
func (r *Runner) CycleIndex() uint64 { return r.cycleIndex.Load() }

// Name returns the owning instance's name, for logging and supervision.
func (r *Runner) Name() string { return r.cfg.Instance.Name() }
