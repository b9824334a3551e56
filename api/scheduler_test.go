package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freelancers-dashboard/billing"
	"github.com/warp/freelancers-dashboard/billing/store"
)

func newTestRepairer(t *testing.T) (*billing.Repairer, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	return billing.NewRepairer(s, slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func TestRepairScheduler_RunNow(t *testing.T) {
	// GIVEN: A parked adjustment and a client with corrupted totals
	// WHEN: RunNow drains without recompute, then with recompute
	// THEN: The drain applies the adjustment; the recompute fixes the drift
	repairer, s := newTestRepairer(t)
	ctx := context.Background()

	c := billing.Client{ID: billing.ClientID(billing.NewID()), Name: "Acme", Email: "a@example.com", Company: "Acme"}
	require.NoError(t, s.InsertClient(ctx, c))
	require.NoError(t, s.AppendAdjustments(ctx, []billing.Adjustment{{
		ID:       billing.NewID(),
		ClientID: c.ID,
		Delta:    billing.Totals{Projects: 1, Amount: billing.FromCents(500)},
		Reason:   billing.ReasonProjectCreated,
	}}))

	rs := NewRepairScheduler(repairer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rs.RunNow(false)

	got, err := s.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalProjects, "drained without recompute")

	rs.RunNow(true)

	got, err = s.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Totals().IsZero(), "recompute finds no projects")
}

func TestRepairScheduler_StartStop(t *testing.T) {
	repairer, _ := newTestRepairer(t)
	rs := NewRepairScheduler(repairer, nil)
	rs.Interval = 10 * time.Millisecond
	rs.RecomputeEvery = 2

	rs.Start()
	rs.Start() // second start is a no-op
	time.Sleep(35 * time.Millisecond)
	rs.Stop()
	rs.Stop() // second stop is a no-op

	rs.runMu.Lock()
	ticks := rs.ticks
	rs.runMu.Unlock()
	assert.GreaterOrEqual(t, ticks, 1)
}

func TestRepairScheduler_Disabled(t *testing.T) {
	repairer, _ := newTestRepairer(t)
	rs := NewRepairScheduler(repairer, nil)
	rs.Enabled = false

	rs.Start()
	assert.Nil(t, rs.ticker)
	rs.Stop()
}
