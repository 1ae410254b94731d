// Package future implements the future queue: an announce/finalize
// producer-consumer handoff keyed by cycle timestamp, used by the
// perception cycler to publish a database slot before its contents are
// known, and later fill it in once the owning cycle actually runs.
//
// Grounded on the Redis-backed job queue's enqueue/dequeue/mark-processing
// lifecycle (queue/redis/queue.go in the reference platform), generalized
// here from a FIFO job queue to a timestamp-keyed map so any Finalize can
// locate its Announce regardless of arrival order, with an in-process
// implementation here and future/redisqueue offering a separate
// Redis-backed queue with its own context-taking, error-returning API.
package future

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotAnnounced is returned by Finalize when no Announce exists for the
// given timestamp.
var ErrNotAnnounced = errors.New("future: no announcement for this timestamp")

// ErrAlreadyFinalized is returned by Finalize when the timestamp was
// already filled in.
var ErrAlreadyFinalized = errors.New("future: timestamp already finalized")

// Entry is one pending or completed future.
type Entry struct {
	Timestamp time.Time
	Done      bool
	Value     any
}

// Queue is an in-process, mutex-guarded announce/finalize queue. The
// methods of future/redisqueue.Queue take a context and return errors, so
// the two are not interchangeable without changing caller code.
type Queue struct {
	mu      sync.Mutex
	entries map[time.Time]*Entry
	order   []time.Time
	maxSize int
}

// New returns an empty queue that keeps at most maxSize entries (pending
// or finalized but not yet drained), evicting the earliest-announced entry,
// finalized or not, when a new Announce would exceed it. maxSize <= 0
// means unbounded.
func New(maxSize int) *Queue {
	return &Queue{
		entries: make(map[time.Time]*Entry),
		maxSize: maxSize,
	}
}

// Announce registers a pending future for ts. It is an error to announce
// the same timestamp twice.
func (q *Queue) Announce(ts time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.entries[ts]; exists {
		return errors.New("future: timestamp already announced")
	}

	if q.maxSize > 0 && len(q.entries) >= q.maxSize {
		q.evictOldestLocked()
	}

	q.entries[ts] = &Entry{Timestamp: ts}
	q.order = append(q.order, ts)
	return nil
}

// Finalize fills in the value for a previously announced timestamp.
func (q *Queue) Finalize(ts time.Time, value any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[ts]
	if !ok {
		return ErrNotAnnounced
	}
	if e.Done {
		return ErrAlreadyFinalized
	}
	e.Value = value
	e.Done = true
	return nil
}

// Get returns the entry for ts, if any.
func (q *Queue) Get(ts time.Time) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[ts]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Pending returns the timestamps of every announced-but-not-finalized
// entry, oldest first.
func (q *Queue) Pending() []time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []time.Time
	for _, ts := range q.order {
		if e, ok := q.entries[ts]; ok && !e.Done {
			pending = append(pending, ts)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Before(pending[j]) })
	return pending
}

// Drain returns every finalized entry with timestamp <= now, in
// timestamp order, and removes them from the queue. Announces without a
// matching finalize at drain time are left in place for a later Drain —
// the consumer never blocks waiting for a laggy producer (§4.4).
func (q *Queue) Drain(now time.Time) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var drained []Entry
	var remaining []time.Time
	for _, ts := range q.order {
		e, ok := q.entries[ts]
		if !ok {
			continue
		}
		if e.Done && !ts.After(now) {
			drained = append(drained, *e)
			delete(q.entries, ts)
			continue
		}
		remaining = append(remaining, ts)
	}
	q.order = remaining

	sort.Slice(drained, func(i, j int) bool { return drained[i].Timestamp.Before(drained[j].Timestamp) })
	return drained
}

// evictOldestLocked drops the oldest entry to keep the queue bounded,
// mirroring the aggregator's bounded-eviction discipline so an unfulfilled
// perception future never grows the process without limit.
func (q *Queue) evictOldestLocked() {
	if len(q.order) == 0 {
		return
	}
	oldest := q.order[0]
	q.order = q.order[1:]
	delete(q.entries, oldest)
}

// Len returns the number of entries currently tracked (pending and done).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
