package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Stats is the dashboard summary.
type Stats struct {
	TotalProjects     int64
	ActiveClients     int64
	PendingInvoices   int64
	EarningsThisMonth decimal.Decimal // paid invoices created this UTC month
}

type StatsStores interface {
	CountProjects(ctx context.Context) (int64, error)
	CountActiveClients(ctx context.Context) (int64, error)
	CountInvoices(ctx context.Context, status InvoiceStatus) (int64, error)
	SumInvoices(ctx context.Context, status InvoiceStatus, from, to time.Time) (decimal.Decimal, error)
}

type StatsService struct {
	store  StatsStores
	logger *slog.Logger
	Now    Clock
}

func NewStatsService(store StatsStores, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{store: store, logger: logger.With("component", "stats"), Now: time.Now}
}

// Get runs the four dashboard queries concurrently.
func (s *StatsService) Get(ctx context.Context) (Stats, error) {
	var st Stats
	monthStart := StartOfMonth(s.Now())
	monthEnd := monthStart.AddDate(0, 1, 0)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalProjects, err = s.store.CountProjects(ctx)
		return wrapStore("count", "project", "", err)
	})
	g.Go(func() (err error) {
		st.ActiveClients, err = s.store.CountActiveClients(ctx)
		return wrapStore("count", "client", "", err)
	})
	g.Go(func() (err error) {
		st.PendingInvoices, err = s.store.CountInvoices(ctx, InvoicePending)
		return wrapStore("count", "invoice", "", err)
	})
	g.Go(func() (err error) {
		st.EarningsThisMonth, err = s.store.SumInvoices(ctx, InvoicePaid, monthStart, monthEnd)
		return wrapStore("sum", "invoice", "", err)
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return st, nil
}
