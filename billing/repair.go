/*
repair.go - Out-of-band correction of client aggregates

PURPOSE:
  Project writes and client increments are separate operations, so a
  failure between them leaves totals stale. Two remedies:

  DrainAdjustments:
    Replays adjustments parked in the AdjustmentLog, oldest first.
    Cheap; fixes the common case of a transient increment failure.
    Each adjustment is marked applied before its increment runs, so a
    failed mark never leads to a second increment. An increment that
    then fails is parked again under a new ID.

  Recompute:
    Rebuilds every client's totals from a full scan of projects and
    overwrites the drifted ones. Authoritative; also fixes drift that
    never reached the log (e.g. the park itself failed). Pending
    adjustments are retired first since the recompute supersedes them.

CAVEAT:
  If the increment fails and re-parking it fails too, the adjustment is
  lost from the log. The totals stay stale until the next Recompute.

  Recompute reads projects and then writes totals without a lock. A
  project mutation landing in between can be overwritten; the next run
  corrects it. Run it off-peak or from the scheduler.

SEE ALSO:
  - aggregates.go: Where adjustments are parked
  - api/scheduler.go: Periodic runs
*/
package billing

import (
	"context"
	"log/slog"
	"time"
)

// RepairStores is what the repair job needs from a store.
type RepairStores interface {
	ClientStore
	ProjectStore
	AdjustmentLog
}

type Repairer struct {
	store  RepairStores
	logger *slog.Logger
	Now    Clock
}

func NewRepairer(store RepairStores, logger *slog.Logger) *Repairer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{store: store, logger: logger.With("component", "repair"), Now: time.Now}
}

// DrainReport summarises a DrainAdjustments run.
type DrainReport struct {
	Applied   int
	Discarded int // client no longer exists
	Failed    int
}

// DrainAdjustments applies up to limit pending adjustments.
// It stops at the first store failure other than a missing client.
// Delivery is at most once per log entry: mark first, then increment.
func (r *Repairer) DrainAdjustments(ctx context.Context, limit int) (DrainReport, error) {
	var report DrainReport

	pending, err := r.store.PendingAdjustments(ctx, limit)
	if err != nil {
		return report, wrapStore("list", "adjustment", "", err)
	}

	for _, adj := range pending {
		at := r.Now()
		if err := r.store.MarkAdjustmentApplied(ctx, adj.ID, at); err != nil {
			report.Failed++
			return report, wrapStore("update", "adjustment", adj.ID, err)
		}

		_, err := r.store.IncrementClientTotals(ctx, adj.ClientID, adj.Delta, at)
		switch {
		case err == nil:
			report.Applied++
		case IsNotFound(err):
			report.Discarded++
			r.logger.Warn("discarding adjustment for missing client",
				"adjustment_id", adj.ID, "client_id", adj.ClientID)
		default:
			report.Failed++
			r.repark(ctx, adj)
			return report, wrapStore("increment", "client", string(adj.ClientID), err)
		}
	}

	if len(pending) > 0 {
		r.logger.Info("adjustments drained",
			"applied", report.Applied, "discarded", report.Discarded)
	}
	return report, nil
}

// repark puts a copy of a failed adjustment back in the log.
func (r *Repairer) repark(ctx context.Context, adj Adjustment) {
	retry := adj
	retry.ID = NewID()
	retry.AppliedAt = nil
	if err := r.store.AppendAdjustments(ctx, []Adjustment{retry}); err != nil {
		r.logger.Error("adjustment lost, recompute required",
			"adjustment_id", adj.ID, "client_id", adj.ClientID, "error", err)
		return
	}
	r.logger.Warn("adjustment re-parked after failed increment",
		"adjustment_id", adj.ID, "retry_id", retry.ID, "client_id", adj.ClientID)
}

// Drift describes one client whose stored totals disagreed with its projects.
type Drift struct {
	ClientID ClientID
	Stored   Totals
	Actual   Totals
}

// RecomputeReport summarises a Recompute run.
type RecomputeReport struct {
	Clients int
	Retired int // pending adjustments superseded
	Drifted []Drift
}

// Recompute rebuilds client totals from the projects collection.
func (r *Repairer) Recompute(ctx context.Context) (RecomputeReport, error) {
	var report RecomputeReport

	pending, err := r.store.PendingAdjustments(ctx, 0)
	if err != nil {
		return report, wrapStore("list", "adjustment", "", err)
	}
	for _, adj := range pending {
		if err := r.store.MarkAdjustmentApplied(ctx, adj.ID, r.Now()); err != nil {
			return report, wrapStore("update", "adjustment", adj.ID, err)
		}
		report.Retired++
	}

	actual, err := r.store.SumProjectsByClient(ctx)
	if err != nil {
		return report, wrapStore("aggregate", "project", "", err)
	}
	clients, err := r.store.ListClients(ctx)
	if err != nil {
		return report, wrapStore("list", "client", "", err)
	}

	report.Clients = len(clients)
	for _, c := range clients {
		want := actual[c.ID]
		if c.Totals().Equal(want) {
			continue
		}
		if err := r.store.SetClientTotals(ctx, c.ID, want, r.Now()); err != nil {
			return report, wrapStore("update", "client", string(c.ID), err)
		}
		report.Drifted = append(report.Drifted, Drift{ClientID: c.ID, Stored: c.Totals(), Actual: want})
		r.logger.Warn("client totals corrected",
			"client_id", c.ID,
			"stored_projects", c.TotalProjects, "stored_amount", c.TotalAmount.String(),
			"actual_projects", want.Projects, "actual_amount", want.Amount.String())
	}

	return report, nil
}
