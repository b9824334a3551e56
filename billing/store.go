/*
store.go - Persistence interfaces for the billing core

PURPOSE:
  Defines the contract between the services and the document store.
  Every operation the services need is a single-document operation:
  there are no multi-document transactions anywhere in this contract.

ATOMIC OPERATIONS REQUIRED:
  - NextSequence:          upsert + increment + read, one step
  - IncrementClientTotals: $inc-style increment on one client
  - UpdateProject:         patch one project and hand back its pre-image
  - DeleteProject:         delete one project and hand back the deleted doc

ERRORS:
  - Missing documents:     ErrNotFound (possibly wrapped)
  - Uniqueness violations: *DuplicateKeyError{Entity, Field}
  - Anything else:         returned as-is, classified Internal by callers

IMPLEMENTATIONS:
  - billing/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go:  SQLite
  - store/mongostore:        MongoDB

SEE ALSO:
  - aggregates.go: How the services sequence these calls
*/
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COUNTERS
// =============================================================================

type CounterStore interface {
	// NextSequence atomically increments the counter stored under key and
	// returns the post-increment value. A missing counter is created at 1.
	NextSequence(ctx context.Context, key string) (int64, error)
}

// =============================================================================
// CLIENTS
// =============================================================================

type ClientStore interface {
	// InsertClient fails with *DuplicateKeyError{Field: "email"} on collision.
	InsertClient(ctx context.Context, c Client) error
	GetClient(ctx context.Context, id ClientID) (Client, error)
	// FindClientDuplicate returns a client with the same email, or the same
	// name and company. ErrNotFound when there is none.
	FindClientDuplicate(ctx context.Context, email, name, company string) (Client, error)
	// ListClients returns all clients, newest first.
	ListClients(ctx context.Context) ([]Client, error)
	// UpdateClient applies the patch and returns the post-update document.
	UpdateClient(ctx context.Context, id ClientID, patch ClientPatch, at time.Time) (Client, error)
	DeleteClient(ctx context.Context, id ClientID) error

	// IncrementClientTotals atomically adds delta to the client's totals and
	// returns the post-update document. Concurrent increments never lose updates.
	IncrementClientTotals(ctx context.Context, id ClientID, delta Totals, at time.Time) (Client, error)
	// SetClientTotals overwrites the totals. Used by the repair job only.
	SetClientTotals(ctx context.Context, id ClientID, totals Totals, at time.Time) error
	// CountActiveClients counts clients with at least one project.
	CountActiveClients(ctx context.Context) (int64, error)
}

// =============================================================================
// PROJECTS
// =============================================================================

type ProjectStore interface {
	InsertProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id ProjectID) (Project, error)
	// ListProjects returns all projects, newest first.
	ListProjects(ctx context.Context) ([]Project, error)
	// UpdateProject atomically applies the patch and returns the document as
	// it was immediately before the patch. The post-update document is
	// patch.Apply(previous, at).
	UpdateProject(ctx context.Context, id ProjectID, patch ProjectPatch, at time.Time) (previous Project, err error)
	// DeleteProject atomically removes the project and returns it.
	DeleteProject(ctx context.Context, id ProjectID) (Project, error)
	CountProjects(ctx context.Context) (int64, error)
	CountProjectsByClient(ctx context.Context, id ClientID) (int64, error)
	// SumProjectsByClient aggregates every project by client. Clients with no
	// projects are absent from the result.
	SumProjectsByClient(ctx context.Context) (map[ClientID]Totals, error)
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceStore interface {
	// InsertInvoice fails with *DuplicateKeyError{Field: "number"} on collision.
	InsertInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, id InvoiceID) (Invoice, error)
	// ListInvoices returns all invoices, newest first.
	ListInvoices(ctx context.Context) ([]Invoice, error)
	UpdateInvoice(ctx context.Context, id InvoiceID, patch InvoicePatch, at time.Time) (Invoice, error)
	DeleteInvoice(ctx context.Context, id InvoiceID) error
	CountInvoices(ctx context.Context, status InvoiceStatus) (int64, error)
	// SumInvoices sums invoices with the status created in [from, to).
	SumInvoices(ctx context.Context, status InvoiceStatus, from, to time.Time) (decimal.Decimal, error)
}

// =============================================================================
// ADJUSTMENT LOG - Outbox for aggregate writes that failed
// =============================================================================

type AdjustmentLog interface {
	AppendAdjustments(ctx context.Context, adjs []Adjustment) error
	// PendingAdjustments returns unapplied adjustments, oldest first.
	// limit <= 0 means no limit.
	PendingAdjustments(ctx context.Context, limit int) ([]Adjustment, error)
	MarkAdjustmentApplied(ctx context.Context, id string, at time.Time) error
}

// =============================================================================
// STORE - Everything a deployment needs
// =============================================================================

type Store interface {
	CounterStore
	ClientStore
	ProjectStore
	InvoiceStore
	AdjustmentLog

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}
