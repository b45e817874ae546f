// Package scheduler drives the periodic reconciliation pass.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"auction-house/utils"
)

// Reconciler is the single operation the scheduler drives.
type Reconciler interface {
	Reconcile(ctx context.Context, now time.Time) error
}

// Scheduler runs the reconciliation pass on a fixed interval. Ticks never
// overlap: if a pass overruns the interval, the next tick is skipped rather
// than queued.
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
}

// New creates a scheduler ticking every interval
func New(svc Reconciler, interval time.Duration) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	spec := fmt.Sprintf("@every %s", interval)
	_, err := c.AddFunc(spec, func() {
		now := time.Now().UTC()
		if err := svc.Reconcile(context.Background(), now); err != nil {
			utils.Error("scheduler: reconciliation tick failed", map[string]any{"error": err.Error()})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid tick spec %q: %w", spec, err)
	}

	return &Scheduler{cron: c, interval: interval}, nil
}

// Start begins ticking in the background
func (s *Scheduler) Start() {
	utils.Info("scheduler started", map[string]any{"interval": s.interval.String()})
	s.cron.Start()
}

// Stop halts ticking and waits for a running pass to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	utils.Info("scheduler stopped", nil)
}
