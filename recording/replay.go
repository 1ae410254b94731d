package recording

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ReplayInstance is the replay-mode counterpart of cycler.Instance: rather
// than computing setup-node outputs and gathering live cross-cycler
// inputs, it deserializes everything from the recorded frame bytes, per
// §4.7's replay contract. It still runs every node's cycle step so
// per-node side effects (e.g. additional outputs) occur identically to a
// live run; only where values come from differs.
type ReplayInstance interface {
	Name() string
	// RunFromFrame deserializes cross-cycler/historic/perception inputs
	// and per-node state from frameBytes, reads each setup node's main
	// outputs directly from the frame, and then runs the cycle nodes.
	RunFromFrame(now time.Time, frameBytes []byte) error
}

// Driver replays recorded frames back through a ReplayInstance in cycle
// order, grounded on worker.Pool's sequential-processing loop shape
// (worker/pool.go), replacing the live queue dequeue with a frame read.
type Driver struct {
	Sink     *BoltSink
	Instance ReplayInstance
}

// Run replays every recorded frame for the driver's instance, in cycle
// order, until ctx is cancelled, the frames are exhausted, or a frame
// fails to apply.
func (d *Driver) Run(ctx context.Context) error {
	name := d.Instance.Name()
	var indices []uint64
	err := d.Sink.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			indices = append(indices, binary.BigEndian.Uint64(k))
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("recording: replay %s: list frames: %w", name, err)
	}

	for _, i := range indices {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frameBytes, now, _, err := d.Sink.Read(name, i)
		if err != nil {
			return fmt.Errorf("recording: replay %s: read frame %d: %w", name, i, err)
		}

		if err := d.Instance.RunFromFrame(now, frameBytes); err != nil {
			return fmt.Errorf("recording: replay %s: frame %d: %w", name, i, err)
		}
	}
	return nil
}
