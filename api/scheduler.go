/*
scheduler.go - Automated aggregate repair scheduler

PURPOSE:
  Periodically replays parked client adjustments and, every N ticks,
  recomputes all client totals from the projects. This is what bounds
  how long a client aggregate can stay stale after a failed increment.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Every tick: DrainAdjustments(BatchSize)
  - Every RecomputeEvery ticks: full Recompute (0 disables)
  - A run never overlaps another; RunNow shares the same lock

USAGE:
  scheduler := NewRepairScheduler(repairer, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunRepair / DrainAdjustments endpoints (manual runs)
  - billing/repair.go: Repairer
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/freelancers-dashboard/billing"
)

// RepairScheduler runs the aggregate repair job on a ticker.
type RepairScheduler struct {
	Repairer       *billing.Repairer
	Interval       time.Duration
	BatchSize      int
	RecomputeEvery int
	Enabled        bool

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	runMu  sync.Mutex
	ticks  int
}

// NewRepairScheduler creates a new scheduler.
func NewRepairScheduler(repairer *billing.Repairer, logger *slog.Logger) *RepairScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepairScheduler{
		Repairer:       repairer,
		Interval:       time.Minute,
		BatchSize:      100,
		RecomputeEvery: 60,
		Enabled:        true,
		logger:         logger.With("component", "repair_scheduler"),
	}
}

// Start begins the scheduler.
func (rs *RepairScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.logger.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run()

	rs.logger.Info("started", "interval", rs.Interval, "recompute_every", rs.RecomputeEvery)
}

// Stop stops the scheduler and waits for an in-flight run.
func (rs *RepairScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.logger.Info("stopped")
	}
}

func (rs *RepairScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.tick()

	for {
		select {
		case <-rs.ticker.C:
			rs.tick()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RepairScheduler) tick() {
	rs.runMu.Lock()
	rs.ticks++
	recompute := rs.RecomputeEvery > 0 && rs.ticks%rs.RecomputeEvery == 0
	rs.runMu.Unlock()

	rs.RunNow(recompute)
}

// RunNow drains pending adjustments and optionally recomputes all totals.
func (rs *RepairScheduler) RunNow(recompute bool) {
	rs.runMu.Lock()
	defer rs.runMu.Unlock()

	ctx := context.Background()

	report, err := rs.Repairer.DrainAdjustments(ctx, rs.BatchSize)
	if err != nil {
		rs.logger.Error("draining adjustments failed", "applied", report.Applied, "error", err)
	}

	if !recompute {
		return
	}
	rec, err := rs.Repairer.Recompute(ctx)
	if err != nil {
		rs.logger.Error("recompute failed", "error", err)
		return
	}
	rs.logger.Info("recompute completed", "clients", rec.Clients, "drifted", len(rec.Drifted), "retired", rec.Retired)
}
