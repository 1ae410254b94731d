// Package slot implements the slot buffer: a fixed-size ring of N slots
// written by exactly one producer and read by any number of concurrent
// readers, used to hand the latest cycle's output to readers without
// blocking the producer on a slow reader.
//
// Grounded on the bounded-ring discipline used elsewhere in the codebase
// for fixed-capacity state windows, generalized here to single-writer,
// multi-reader access coordinated with atomics rather than a mutex so the
// producer's Put never blocks on readers.
package slot

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is returned by Put when every slot other than the one
// holding the latest value is currently held by a reader that has not yet
// released it. The producer must not block or
// panic in this case; the caller decides how to react (drop the cycle,
// warn, etc).
var ErrExhausted = errors.New("slot: buffer exhausted, no free slot")

// Buffer is a single-writer, multi-reader slot buffer holding values of
// type T. The zero value is not usable; construct with New.
type Buffer[T any] struct {
	slots   []slotEntry[T]
	current atomic.Int64 // index of the slot holding the latest published value, or -1
}

type slotEntry[T any] struct {
	value    T
	refCount atomic.Int32
	occupied atomic.Bool
}

// New returns a Buffer with n slots. n must be at least 2 so a producer
// always has somewhere to write while the previous value is still being
// read.
func New[T any](n int) *Buffer[T] {
	if n < 2 {
		n = 2
	}
	b := &Buffer[T]{slots: make([]slotEntry[T], n)}
	b.current.Store(-1)
	return b
}

// Put publishes a new value, picking any slot that is neither held by a
// reader nor the one holding the latest value. Returns ErrExhausted if no
// such slot exists.
func (b *Buffer[T]) Put(v T) error {
	for i := range b.slots {
		s := &b.slots[i]
		if s.refCount.Load() == 0 && !s.occupied.Load() {
			s.value = v
			s.occupied.Store(true)
			prev := b.current.Swap(int64(i))
			if prev >= 0 && prev != int64(i) {
				b.slots[prev].occupied.Store(false)
			}
			return nil
		}
	}
	return ErrExhausted
}

// Handle is a reader's claim on one published value. Release must be
// called exactly once to free the underlying slot for reuse.
type Handle[T any] struct {
	buf   *Buffer[T]
	index int
	value T
}

// Value returns the value the handle refers to.
func (h Handle[T]) Value() T { return h.value }

// Release returns the claimed slot to the pool. Safe to call from any
// goroutine; not safe to call twice.
func (h Handle[T]) Release() {
	h.buf.slots[h.index].refCount.Add(-1)
}

// ErrEmpty is returned by Get when nothing has been published yet.
var ErrEmpty = errors.New("slot: buffer empty, nothing published yet")

// Get claims the latest published value for reading. The returned Handle
// must be released when the reader is done with the value.
func (b *Buffer[T]) Get() (Handle[T], error) {
	for {
		idx := b.current.Load()
		if idx < 0 {
			return Handle[T]{}, ErrEmpty
		}
		s := &b.slots[idx]
		s.refCount.Add(1)
		if b.current.Load() != idx || !s.occupied.Load() {
			// the producer moved on between our load and our claim; retry
			// rather than hand back a slot that may be rewritten.
			s.refCount.Add(-1)
			continue
		}
		return Handle[T]{buf: b, index: int(idx), value: s.value}, nil
	}
}

// Len returns the number of slots in the buffer.
func (b *Buffer[T]) Len() int { return len(b.slots) }
