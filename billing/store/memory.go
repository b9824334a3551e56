// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/freelancers-dashboard/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a billing.Store held in maps. Every method takes the lock for
// its whole duration, so each call is atomic the way a single-document
// operation is in the real stores.
type Memory struct {
	mu          sync.RWMutex
	counters    map[string]int64
	clients     map[billing.ClientID]billing.Client
	projects    map[billing.ProjectID]billing.Project
	invoices    map[billing.InvoiceID]billing.Invoice
	adjustments []billing.Adjustment
}

var _ billing.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		counters: make(map[string]int64),
		clients:  make(map[billing.ClientID]billing.Client),
		projects: make(map[billing.ProjectID]billing.Project),
		invoices: make(map[billing.InvoiceID]billing.Invoice),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

// =============================================================================
// COUNTERS
// =============================================================================

func (m *Memory) NextSequence(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (m *Memory) InsertClient(_ context.Context, c billing.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.clients {
		if existing.Email == c.Email {
			return &billing.DuplicateKeyError{Entity: "client", Field: "email", Value: c.Email}
		}
	}
	m.clients[c.ID] = c
	return nil
}

func (m *Memory) GetClient(_ context.Context, id billing.ClientID) (billing.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok {
		return billing.Client{}, billing.ErrNotFound
	}
	return c, nil
}

func (m *Memory) FindClientDuplicate(_ context.Context, email, name, company string) (billing.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.clients {
		if c.Email == email || (c.Name == name && c.Company == company) {
			return c, nil
		}
	}
	return billing.Client{}, billing.ErrNotFound
}

func (m *Memory) ListClients(context.Context) ([]billing.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, string(out[i].ID), string(out[j].ID)) })
	return out, nil
}

func (m *Memory) UpdateClient(_ context.Context, id billing.ClientID, patch billing.ClientPatch, at time.Time) (billing.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok {
		return billing.Client{}, billing.ErrNotFound
	}
	if patch.Email != nil {
		for otherID, other := range m.clients {
			if otherID != id && other.Email == *patch.Email {
				return billing.Client{}, &billing.DuplicateKeyError{Entity: "client", Field: "email", Value: *patch.Email}
			}
		}
	}
	c = patch.Apply(c, at)
	m.clients[id] = c
	return c, nil
}

func (m *Memory) DeleteClient(_ context.Context, id billing.ClientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[id]; !ok {
		return billing.ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *Memory) IncrementClientTotals(_ context.Context, id billing.ClientID, delta billing.Totals, at time.Time) (billing.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok {
		return billing.Client{}, billing.ErrNotFound
	}
	c.TotalProjects += delta.Projects
	c.TotalAmount = c.TotalAmount.Add(delta.Amount)
	c.UpdatedAt = at
	m.clients[id] = c
	return c, nil
}

func (m *Memory) SetClientTotals(_ context.Context, id billing.ClientID, totals billing.Totals, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok {
		return billing.ErrNotFound
	}
	c.TotalProjects = totals.Projects
	c.TotalAmount = totals.Amount
	c.UpdatedAt = at
	m.clients[id] = c
	return nil
}

func (m *Memory) CountActiveClients(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, c := range m.clients {
		if c.TotalProjects > 0 {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// PROJECTS
// =============================================================================

func (m *Memory) InsertProject(_ context.Context, p billing.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[p.ID]; ok {
		return &billing.DuplicateKeyError{Entity: "project", Field: "id", Value: string(p.ID)}
	}
	m.projects[p.ID] = p
	return nil
}

func (m *Memory) GetProject(_ context.Context, id billing.ProjectID) (billing.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return billing.Project{}, billing.ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListProjects(context.Context) ([]billing.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, string(out[i].ID), string(out[j].ID)) })
	return out, nil
}

func (m *Memory) UpdateProject(_ context.Context, id billing.ProjectID, patch billing.ProjectPatch, at time.Time) (billing.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.projects[id]
	if !ok {
		return billing.Project{}, billing.ErrNotFound
	}
	m.projects[id] = patch.Apply(prev, at)
	return prev, nil
}

func (m *Memory) DeleteProject(_ context.Context, id billing.ProjectID) (billing.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return billing.Project{}, billing.ErrNotFound
	}
	delete(m.projects, id)
	return p, nil
}

func (m *Memory) CountProjects(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.projects)), nil
}

func (m *Memory) CountProjectsByClient(_ context.Context, id billing.ClientID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, p := range m.projects {
		if p.ClientID == id {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SumProjectsByClient(context.Context) (map[billing.ClientID]billing.Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[billing.ClientID]billing.Totals)
	for _, p := range m.projects {
		out[p.ClientID] = out[p.ClientID].Add(billing.Totals{Projects: 1, Amount: p.Amount})
	}
	return out, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) InsertInvoice(_ context.Context, inv billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.invoices {
		if existing.Number == inv.Number {
			return &billing.DuplicateKeyError{Entity: "invoice", Field: "number", Value: inv.Number}
		}
	}
	m.invoices[inv.ID] = inv
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id billing.InvoiceID) (billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok {
		return billing.Invoice{}, billing.ErrNotFound
	}
	return inv, nil
}

func (m *Memory) ListInvoices(context.Context) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return strings.Compare(out[i].Number, out[j].Number) > 0
	})
	return out, nil
}

func (m *Memory) UpdateInvoice(_ context.Context, id billing.InvoiceID, patch billing.InvoicePatch, at time.Time) (billing.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return billing.Invoice{}, billing.ErrNotFound
	}
	inv = patch.Apply(inv, at)
	m.invoices[id] = inv
	return inv, nil
}

func (m *Memory) DeleteInvoice(_ context.Context, id billing.InvoiceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invoices[id]; !ok {
		return billing.ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

func (m *Memory) CountInvoices(_ context.Context, status billing.InvoiceStatus) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, inv := range m.invoices {
		if inv.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SumInvoices(_ context.Context, status billing.InvoiceStatus, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, inv := range m.invoices {
		if inv.Status != status || inv.CreatedAt.Before(from) || !inv.CreatedAt.Before(to) {
			continue
		}
		sum = sum.Add(inv.Amount)
	}
	return sum, nil
}

// =============================================================================
// ADJUSTMENT LOG
// =============================================================================

func (m *Memory) AppendAdjustments(_ context.Context, adjs []billing.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments = append(m.adjustments, adjs...)
	return nil
}

func (m *Memory) PendingAdjustments(_ context.Context, limit int) ([]billing.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []billing.Adjustment
	for _, adj := range m.adjustments {
		if adj.AppliedAt != nil {
			continue
		}
		out = append(out, adj)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkAdjustmentApplied(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.adjustments {
		if m.adjustments[i].ID == id {
			applied := at
			m.adjustments[i].AppliedAt = &applied
			return nil
		}
	}
	return billing.ErrNotFound
}

// newerFirst orders by creation time descending, ties broken by ID so
// listings are stable.
func newerFirst(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID > bID
}
