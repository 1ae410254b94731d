// Package supervisor starts and supervises the full set of cycler runners
// that make up one process, grounded on the teacher's worker.Pool
// fan-out/fan-in shape but generalized from a bounded job pool to a fixed
// set of long-lived goroutines, one per cycler, cancelled together the
// moment any one of them returns an error — matching §7's "any error
// returned from a node call cancels all cyclers" policy.
package supervisor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fieldcore/cyclerd/cycler"
)

// Supervisor owns one cycler.Runner per registered instance and runs them
// under a shared errgroup so a single node error tears down every cycler.
type Supervisor struct {
	runID   string
	log     *logrus.Entry
	runners []*cycler.Runner
}

// New assigns a fresh run ID (attached as run_id to the supervisor's own
// log entries and returned by RunID; recorded frames do not carry it) and
// wraps one Runner per config.
func New(log *logrus.Entry, configs []cycler.Config) *Supervisor {
	runID := uuid.NewString()
	runners := make([]*cycler.Runner, len(configs))
	for i, cfg := range configs {
		runners[i] = cycler.New(cfg)
	}
	return &Supervisor{
		runID:   runID,
		log:     log.WithField("run_id", runID),
		runners: runners,
	}
}

// RunID returns the identifier assigned at New, surfaced so recording and
// observability logs can be correlated to one process lifetime.
func (s *Supervisor) RunID() string { return s.runID }

// Run starts every cycler concurrently and blocks until one of them
// returns an error (cancelling the rest via ctx) or the context is
// cancelled from outside. It returns the first non-nil error encountered.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, r := range s.runners {
		r := r
		g.Go(func() error {
			if err := r.Run(gctx); err != nil {
				s.log.WithError(err).WithField("cycler", r.Name()).Error("cycler stopped")
				return fmt.Errorf("supervisor: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
