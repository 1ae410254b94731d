package cycler

import (
	"fmt"
	"sync"
	"time"

	"github.com/fieldcore/cyclerd/aggregator"
	"github.com/fieldcore/cyclerd/future"
	"github.com/fieldcore/cyclerd/slot"
)

// DatabaseHub holds one slot.Buffer per cycler instance, the cross-cycler
// half of steps 4/5 of §4.6: a real-time cycler's RunCycle borrows another
// cycler's latest database through the same slot-buffer discipline a
// cycler uses for its own readers, so a slow consumer never blocks the
// producing cycler's thread.
type DatabaseHub struct {
	mu      sync.RWMutex
	buffers map[string]*slot.Buffer[any]
	slots   int
}

// NewDatabaseHub returns an empty hub; slotsPerCycler is passed to each
// lazily-created slot.Buffer (minimum 2, per slot.New).
func NewDatabaseHub(slotsPerCycler int) *DatabaseHub {
	return &DatabaseHub{
		buffers: make(map[string]*slot.Buffer[any]),
		slots:   slotsPerCycler,
	}
}

// Publish makes db the latest database snapshot for cycler, creating its
// buffer on first use.
func (h *DatabaseHub) Publish(cycler string, db any) error {
	h.mu.Lock()
	b, ok := h.buffers[cycler]
	if !ok {
		b = slot.New[any](h.slots)
		h.buffers[cycler] = b
	}
	h.mu.Unlock()
	return b.Put(db)
}

// Borrow claims the latest published database for cycler. The returned
// Handle must be released once the caller is done reading it.
func (h *DatabaseHub) Borrow(cycler string) (slot.Handle[any], error) {
	h.mu.RLock()
	b, ok := h.buffers[cycler]
	h.mu.RUnlock()
	if !ok {
		return slot.Handle[any]{}, fmt.Errorf("cycler: no database published for %q yet", cycler)
	}
	return b.Get()
}

// PerceptionPipeline wires a future.Queue to an aggregator.Perception,
// implementing step 4 of §4.6 for a real-time cycler: drain every
// perception output finalized by now and fold it into the persistent
// bucket nodes read through a PerceptionInput field.
type PerceptionPipeline struct {
	queue *future.Queue
	perc  *aggregator.Perception[any]
}

// NewPerceptionPipeline returns a pipeline backed by an in-process
// future.Queue bounded to maxPending entries (<= 0 means unbounded).
func NewPerceptionPipeline(maxPending int) *PerceptionPipeline {
	return &PerceptionPipeline{
		queue: future.New(maxPending),
		perc:  aggregator.NewPerception[any](),
	}
}

// Announce registers that a perception output for ts will eventually be
// finalized; the owning perception cycler calls this at the start of the
// cycle that will produce it (§4.6 step 1/4, perception kind).
func (p *PerceptionPipeline) Announce(ts time.Time) error {
	return p.queue.Announce(ts)
}

// Finalize fills in the perception output for ts once its producing cycle
// has run (§4.6 step 7, perception kind).
func (p *PerceptionPipeline) Finalize(ts time.Time, value any) error {
	return p.queue.Finalize(ts, value)
}

// DrainAndUpdate drains every entry finalized by now and appends it to the
// persistent bucket (§4.6 step 4, real-time kind).
func (p *PerceptionPipeline) DrainAndUpdate(now time.Time) {
	drained := p.queue.Drain(now)
	if len(drained) == 0 {
		return
	}
	updates := make(map[time.Time]any, len(drained))
	for _, e := range drained {
		updates[e.Timestamp] = e.Value
	}
	p.perc.Update(now, updates)
}

// ConsumePersistent moves the persistent bucket into the temporary bucket
// and returns the moved batch, for nodes reading a PerceptionInput field
// this cycle.
func (p *PerceptionPipeline) ConsumePersistent() map[time.Time]any {
	return p.perc.ConsumePersistent()
}

// Aggregator exposes the underlying Perception holder, for the
// eviction-boundary exchange with a HistoricStore.
func (p *PerceptionPipeline) Aggregator() *aggregator.Perception[any] {
	return p.perc
}

// HistoricStore holds one aggregator.Historic window per producing
// cycler, so a node elsewhere can address another cycler's history
// through a HistoricInput field.
type HistoricStore struct {
	mu       sync.RWMutex
	dbs      map[string]*aggregator.Historic[any]
	capacity int
}

// NewHistoricStore returns an empty store; capacity bounds every window it
// creates (0 means unbounded, relying entirely on timestamp-boundary
// eviction).
func NewHistoricStore(capacity int) *HistoricStore {
	return &HistoricStore{
		dbs:      make(map[string]*aggregator.Historic[any]),
		capacity: capacity,
	}
}

// Record stores cycler's database snapshot for ts, evicting entries older
// than evictBefore first (§4.5's cross-component eviction rule).
func (s *HistoricStore) Record(cycler string, ts time.Time, value any, evictBefore time.Time) {
	s.mu.Lock()
	db, ok := s.dbs[cycler]
	if !ok {
		db = aggregator.NewHistoric[any](s.capacity)
		s.dbs[cycler] = db
	}
	s.mu.Unlock()
	db.Record(ts, value, evictBefore)
}

// For returns the Historic window for cycler, creating an empty one if it
// does not exist yet so a HistoricInput accessor never sees a nil window.
func (s *HistoricStore) For(cycler string) *aggregator.Historic[any] {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.dbs[cycler]
	if !ok {
		db = aggregator.NewHistoric[any](s.capacity)
		s.dbs[cycler] = db
	}
	return db
}
