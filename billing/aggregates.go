/*
aggregates.go - Keeping client totals in step with projects

PURPOSE:
  Each Client stores TotalProjects and TotalAmount. Projects are the
  source of truth; the client fields are a cache kept correct by
  applying a delta for every project mutation.

RECONCILIATION TABLE:
  Event                               Client side effect
  ----------------------------------  ---------------------------------
  create (A, C)                       C: +1, +A
  amount A -> A', client C unchanged  C: +(A' - A)
  move C -> C', amount A unchanged    C: -1, -A     C': +1, +A
  move C -> C' and A -> A'            C: -1, -A     C': +1, +A'
  delete (A, C)                       C: -1, -A

  Whenever the client changes, the old amount leaves the old client in
  full and the new amount lands on the new client in full. No net delta
  is split across the two clients.

WRITE ORDER:
  1. Project document (authoritative)
  2. Client increments, in plan order

  There is no transaction spanning the two. If step 2 fails the project
  write stays, the unapplied adjustments are parked in the
  AdjustmentLog, and the caller gets an *AggregateError.

SEE ALSO:
  - projects.go: The service that drives these writes
  - repair.go:   Replays parked adjustments and recomputes drifted totals
*/
package billing

import (
	"context"
	"log/slog"
)

// PlanAdjustments returns the client deltas that move the aggregates from
// reflecting prev to reflecting next. A nil prev is a create, a nil next a
// delete. The result is empty when nothing relevant changed.
func PlanAdjustments(prev, next *Project) []Adjustment {
	switch {
	case prev == nil && next == nil:
		return nil

	case prev == nil:
		return []Adjustment{{
			ClientID:  next.ClientID,
			ProjectID: next.ID,
			Delta:     Totals{Projects: 1, Amount: next.Amount},
			Reason:    ReasonProjectCreated,
		}}

	case next == nil:
		return []Adjustment{{
			ClientID:  prev.ClientID,
			ProjectID: prev.ID,
			Delta:     Totals{Projects: -1, Amount: prev.Amount.Neg()},
			Reason:    ReasonProjectDeleted,
		}}

	case prev.ClientID != next.ClientID:
		return []Adjustment{
			{
				ClientID:  prev.ClientID,
				ProjectID: prev.ID,
				Delta:     Totals{Projects: -1, Amount: prev.Amount.Neg()},
				Reason:    ReasonMovedOut,
			},
			{
				ClientID:  next.ClientID,
				ProjectID: next.ID,
				Delta:     Totals{Projects: 1, Amount: next.Amount},
				Reason:    ReasonMovedIn,
			},
		}

	default:
		diff := next.Amount.Sub(prev.Amount)
		if diff.IsZero() {
			return nil
		}
		return []Adjustment{{
			ClientID:  next.ClientID,
			ProjectID: next.ID,
			Delta:     Totals{Amount: diff},
			Reason:    ReasonAmountChanged,
		}}
	}
}

// aggregateWriter applies planned adjustments as atomic increments.
type aggregateWriter struct {
	clients ClientStore
	log     AdjustmentLog
	logger  *slog.Logger
}

// apply increments each client in order. On the first failure the failed
// adjustment and everything after it are parked and an *AggregateError is
// returned; earlier increments stay applied.
func (w *aggregateWriter) apply(ctx context.Context, projectID ProjectID, adjs []Adjustment, now Clock) error {
	at := now()
	for i := range adjs {
		adjs[i].ID = NewID()
		adjs[i].CreatedAt = at
	}

	for i, adj := range adjs {
		_, err := w.clients.IncrementClientTotals(ctx, adj.ClientID, adj.Delta, at)
		if err == nil {
			continue
		}

		pending := adjs[i:]
		parked := w.park(ctx, pending)
		w.logger.Error("client aggregate update failed",
			"project_id", projectID,
			"client_id", adj.ClientID,
			"reason", adj.Reason,
			"pending", len(pending),
			"parked", parked,
			"error", err)
		return &AggregateError{ProjectID: projectID, Pending: pending, Parked: parked, Err: err}
	}
	return nil
}

// park records adjustments in the log. Failure here is logged only: the
// full recompute is the remedy of last resort.
func (w *aggregateWriter) park(ctx context.Context, adjs []Adjustment) bool {
	if w.log == nil {
		return false
	}
	// The request context may be the reason the increment failed.
	if err := w.log.AppendAdjustments(context.WithoutCancel(ctx), adjs); err != nil {
		w.logger.Error("parking client adjustments failed", "count", len(adjs), "error", err)
		return false
	}
	return true
}
