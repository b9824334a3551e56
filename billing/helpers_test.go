package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/freelancers-dashboard/billing"
	"github.com/warp/freelancers-dashboard/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.June, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nextMonth() time.Time { return testNow.AddDate(0, 1, 0) }

type services struct {
	store    billing.Store
	clients  *billing.ClientService
	projects *billing.ProjectService
	invoices *billing.InvoiceService
	repair   *billing.Repairer
	stats    *billing.StatsService
}

func newServices(t *testing.T, s billing.Store) services {
	t.Helper()
	svc := services{
		store:    s,
		clients:  billing.NewClientService(s, nil),
		projects: billing.NewProjectService(s, nil),
		invoices: billing.NewInvoiceService(s, nil),
		repair:   billing.NewRepairer(s, nil),
		stats:    billing.NewStatsService(s, nil),
	}
	svc.clients.Now = fixedClock
	svc.projects.Now = fixedClock
	svc.invoices.Now = fixedClock
	svc.repair.Now = fixedClock
	svc.stats.Now = fixedClock
	return svc
}

func newTestServices(t *testing.T) services {
	return newServices(t, store.NewMemory())
}

func createClient(t *testing.T, svc services, name string) billing.Client {
	t.Helper()
	c, err := svc.clients.Create(context.Background(), billing.CreateClientRequest{
		Name:    name,
		Email:   name + "@example.com",
		Company: name + " Ltd",
	})
	require.NoError(t, err)
	return c
}

func createProject(t *testing.T, svc services, clientID billing.ClientID, amount string) billing.Project {
	t.Helper()
	p, err := svc.projects.Create(context.Background(), billing.CreateProjectRequest{
		Name:     "Website",
		ClientID: clientID,
		Amount:   dec(amount),
		Deadline: nextMonth(),
	})
	require.NoError(t, err)
	return p
}

// requireTotals checks a client's stored totals.
func requireTotals(t *testing.T, s billing.Store, id billing.ClientID, projects int64, amount string) {
	t.Helper()
	c, err := s.GetClient(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, projects, c.TotalProjects, "totalProjects of %s", id)
	require.True(t, dec(amount).Equal(c.TotalAmount), "totalAmount of %s: want %s, got %s", id, amount, c.TotalAmount)
}

// requireConsistent checks every client's totals against its projects.
func requireConsistent(t *testing.T, s billing.Store) {
	t.Helper()
	ctx := context.Background()
	actual, err := s.SumProjectsByClient(ctx)
	require.NoError(t, err)
	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	for _, c := range clients {
		want := actual[c.ID]
		require.True(t, c.Totals().Equal(want),
			"client %s: stored (%d, %s) actual (%d, %s)",
			c.ID, c.TotalProjects, c.TotalAmount, want.Projects, want.Amount)
	}
}

// =============================================================================
// FAULT INJECTION
// =============================================================================

var errStoreDown = errors.New("store unavailable")

// flakyStore fails client increments while failIncrements says so.
type flakyStore struct {
	billing.Store

	mu             sync.Mutex
	failIncrements func(id billing.ClientID, delta billing.Totals) bool
}

func (f *flakyStore) setFail(fn func(id billing.ClientID, delta billing.Totals) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failIncrements = fn
}

func (f *flakyStore) IncrementClientTotals(ctx context.Context, id billing.ClientID, delta billing.Totals, at time.Time) (billing.Client, error) {
	f.mu.Lock()
	fail := f.failIncrements != nil && f.failIncrements(id, delta)
	f.mu.Unlock()
	if fail {
		return billing.Client{}, errStoreDown
	}
	return f.Store.IncrementClientTotals(ctx, id, delta, at)
}

// collidingStore rejects the first collisions invoice inserts as duplicate
// numbers, or fails them with insertErr when set.
type collidingStore struct {
	billing.Store

	collisions int
	insertErr  error
	inserts    int
}

func (c *collidingStore) InsertInvoice(ctx context.Context, inv billing.Invoice) error {
	c.inserts++
	if c.insertErr != nil {
		return c.insertErr
	}
	if c.collisions > 0 {
		c.collisions--
		return &billing.DuplicateKeyError{Entity: "invoice", Field: "number", Value: inv.Number}
	}
	return c.Store.InsertInvoice(ctx, inv)
}

// unmarkableStore fails MarkAdjustmentApplied while failMarks is set.
type unmarkableStore struct {
	billing.Store

	failMarks bool
}

func (u *unmarkableStore) MarkAdjustmentApplied(ctx context.Context, id string, at time.Time) error {
	if u.failMarks {
		return errStoreDown
	}
	return u.Store.MarkAdjustmentApplied(ctx, id, at)
}

// interleavingStore runs afterGet once, right after the next GetProject
// returns, to slip a concurrent write between a read and the update.
type interleavingStore struct {
	billing.Store

	afterGet func()
}

func (s *interleavingStore) GetProject(ctx context.Context, id billing.ProjectID) (billing.Project, error) {
	p, err := s.Store.GetProject(ctx, id)
	if hook := s.afterGet; hook != nil {
		s.afterGet = nil
		hook()
	}
	return p, err
}

// lateProjectStore runs afterCount once, right after the next
// CountProjectsByClient returns.
type lateProjectStore struct {
	billing.Store

	afterCount func()
}

func (s *lateProjectStore) CountProjectsByClient(ctx context.Context, id billing.ClientID) (int64, error) {
	n, err := s.Store.CountProjectsByClient(ctx, id)
	if hook := s.afterCount; hook != nil {
		s.afterCount = nil
		hook()
	}
	return n, err
}

// counterFunc adapts a function to billing.CounterStore.
type counterFunc func(ctx context.Context, key string) (int64, error)

func (f counterFunc) NextSequence(ctx context.Context, key string) (int64, error) {
	return f(ctx, key)
}
