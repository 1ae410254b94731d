// Package recording implements the recording/replay engine (component G):
// building a per-cycle frame, persisting it to a bounded sink, and
// replaying previously recorded frames back through a cycler.
//
// The sink is grounded on the reference platform's db/bolt wrapper
// (Open/CreateBucket/Put/Get over go.etcd.io/bbolt), generalized from a
// JSON-per-key store to a raw-bytes-per-cycle-index store: one bucket per
// cycler instance, key = big-endian cycle index, value = the gob-encoded
// frame bytes built during that cycle.
package recording

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fieldcore/cyclerd/cycler"
)

// BackpressureError wraps a Sink write failure, naming the instance whose
// frame could not be persisted — surfaced synchronously from Write so the
// owning cycler can treat it as fatal for that cycle, per §4.7/§7.
type BackpressureError struct {
	Instance string
	Err      error
}

func (e *BackpressureError) Error() string {
	return fmt.Sprintf("recording: backpressure on %s: %v", e.Instance, e.Err)
}

func (e *BackpressureError) Unwrap() error { return e.Err }

// BoltSink persists frames to a bbolt database, one bucket per cycler
// instance. It satisfies cycler.Sink.
type BoltSink struct {
	db *bolt.DB
}

// OpenBoltSink opens or creates the bbolt file at path.
func OpenBoltSink(path string) (*BoltSink, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("recording: open bolt sink: %w", err)
	}
	return &BoltSink{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltSink) Close() error {
	return s.db.Close()
}

// Write stores frame under its instance's bucket, keyed by cycle index.
// A write failure is returned synchronously so the caller can surface it
// as a fatal error for that cycle, per §4.7's back-pressure rule.
func (s *BoltSink) Write(frame cycler.Frame) error {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, frame.Index)

	meta := frameMeta{
		Now:      frame.Now,
		Duration: frame.Duration,
	}
	metaBytes, err := encodeGob(meta)
	if err != nil {
		return &BackpressureError{Instance: frame.Instance, Err: fmt.Errorf("encode frame metadata: %w", err)}
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(frame.Instance))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", frame.Instance, err)
		}
		if err := b.Put(key, frame.Bytes); err != nil {
			return fmt.Errorf("write frame %d: %w", frame.Index, err)
		}
		metaBucket, err := tx.CreateBucketIfNotExists([]byte(frame.Instance + ":meta"))
		if err != nil {
			return fmt.Errorf("create meta bucket %s: %w", frame.Instance, err)
		}
		return metaBucket.Put(key, metaBytes)
	})
	if err != nil {
		return &BackpressureError{Instance: frame.Instance, Err: err}
	}
	return nil
}

// Read returns the recorded bytes and timing metadata for one cycle of
// one instance, for use by a replay driver.
func (s *BoltSink) Read(instance string, index uint64) ([]byte, time.Time, time.Duration, error) {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)

	var frameBytes []byte
	var meta frameMeta

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(instance))
		if b == nil {
			return fmt.Errorf("recording: no bucket for instance %s", instance)
		}
		v := b.Get(key)
		if v == nil {
			return fmt.Errorf("recording: no frame %d for instance %s", index, instance)
		}
		frameBytes = append([]byte(nil), v...)

		metaBucket := tx.Bucket([]byte(instance + ":meta"))
		if metaBucket == nil {
			return fmt.Errorf("recording: no metadata bucket for instance %s", instance)
		}
		mv := metaBucket.Get(key)
		if mv == nil {
			return fmt.Errorf("recording: no metadata for frame %d of instance %s", index, instance)
		}
		return decodeGob(mv, &meta)
	})
	if err != nil {
		return nil, time.Time{}, 0, err
	}
	return frameBytes, meta.Now, meta.Duration, nil
}

// Count returns the number of recorded frames for an instance.
func (s *BoltSink) Count(instance string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(instance))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

type frameMeta struct {
	Now      time.Time
	Duration time.Duration
}
