/*
Package billing provides the core of the freelancers dashboard.

PURPOSE:
  Clients, Projects and Invoices, plus the two pieces of logic that are
  more than plain CRUD:
  - Sequence generation: year-scoped counters that mint invoice numbers
    (INV-2025-00001) safely under concurrent requests.
  - Aggregate maintenance: every Client carries TotalProjects and
    TotalAmount, kept equal to the count/sum over its Projects as
    projects are created, edited, moved between clients, or deleted.

KEY CONCEPTS IN THIS FILE (types.go):
  - Client, Project, Invoice: the stored documents
  - Totals: a (count, amount) pair used both as a client aggregate and
    as a delta applied to it
  - Money helpers: decimal in the domain, integer cents in the stores

DESIGN PRINCIPLES:
  1. Projects are authoritative, client totals are a cache
  2. Totals only move through atomic increments, never read-modify-write
  3. Money uses decimal.Decimal, persisted as int64 cents

SEE ALSO:
  - store.go: Persistence interfaces
  - aggregates.go: Reconciliation table
  - sequence.go: Invoice number minting
*/
package billing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type ProjectID string
type InvoiceID string

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether s is a well-formed identifier.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of fractional digits an amount may carry.
const MoneyPlaces = 2

// MaxAmount is the largest amount a single project or invoice may carry.
// At 1e15 cents it leaves room for thousands of maximal projects in one
// client's int64 total.
var MaxAmount = decimal.New(1, 13)

var (
	minCents = decimal.NewFromInt(math.MinInt64)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// ToCents converts an amount to integer minor units. Values outside int64
// fail with ErrAmountRange instead of wrapping.
func ToCents(d decimal.Decimal) (int64, error) {
	c := d.Shift(MoneyPlaces).Round(0)
	if c.LessThan(minCents) || c.GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %s", ErrAmountRange, d)
	}
	return c.IntPart(), nil
}

// FromCents converts integer minor units back to a decimal amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -MoneyPlaces)
}

// =============================================================================
// TOTALS - Client aggregate, and deltas applied to it
// =============================================================================

// Totals is a client aggregate: number of projects and the sum of their amounts.
// The same shape is used for the deltas applied to a client.
type Totals struct {
	Projects int64
	Amount   decimal.Decimal
}

func (t Totals) Add(o Totals) Totals {
	return Totals{Projects: t.Projects + o.Projects, Amount: t.Amount.Add(o.Amount)}
}

func (t Totals) Neg() Totals {
	return Totals{Projects: -t.Projects, Amount: t.Amount.Neg()}
}

func (t Totals) IsZero() bool {
	return t.Projects == 0 && t.Amount.IsZero()
}

func (t Totals) Equal(o Totals) bool {
	return t.Projects == o.Projects && t.Amount.Equal(o.Amount)
}

// =============================================================================
// CLIENT
// =============================================================================

type Client struct {
	ID            ClientID
	Name          string
	Email         string
	Company       string
	TotalProjects int64
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Totals returns the client's stored aggregate.
func (c Client) Totals() Totals {
	return Totals{Projects: c.TotalProjects, Amount: c.TotalAmount}
}

// ClientPatch carries the client fields a caller may change.
// Aggregates are deliberately absent: only project mutations move them.
type ClientPatch struct {
	Name    *string
	Email   *string
	Company *string
}

// Apply returns c with the patch applied.
func (p ClientPatch) Apply(c Client, at time.Time) Client {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Company != nil {
		c.Company = *p.Company
	}
	c.UpdatedAt = at
	return c
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =============================================================================
// PROJECT
// =============================================================================

type ProjectStatus string

const (
	ProjectPending    ProjectStatus = "Pending"
	ProjectInProgress ProjectStatus = "In Progress"
	ProjectCompleted  ProjectStatus = "Completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPending, ProjectInProgress, ProjectCompleted:
		return true
	}
	return false
}

type Project struct {
	ID        ProjectID
	Name      string
	ClientID  ClientID
	Status    ProjectStatus
	Amount    decimal.Decimal
	Deadline  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectPatch carries the project fields an update may change.
// Nil fields are left untouched.
type ProjectPatch struct {
	Name     *string
	ClientID *ClientID
	Status   *ProjectStatus
	Amount   *decimal.Decimal
	Deadline *time.Time
}

// Apply returns p with the patch applied. Stores use it to derive the
// post-update document from the pre-image they swapped out.
func (pp ProjectPatch) Apply(p Project, at time.Time) Project {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.ClientID != nil {
		p.ClientID = *pp.ClientID
	}
	if pp.Status != nil {
		p.Status = *pp.Status
	}
	if pp.Amount != nil {
		p.Amount = *pp.Amount
	}
	if pp.Deadline != nil {
		p.Deadline = *pp.Deadline
	}
	p.UpdatedAt = at
	return p
}

// ProjectView is a project with its client's display name.
type ProjectView struct {
	Project
	ClientName string
}

// UnknownClientName is shown for projects whose client no longer exists.
const UnknownClientName = "—"

// =============================================================================
// INVOICE
// =============================================================================

type InvoiceStatus string

const (
	InvoicePaid    InvoiceStatus = "Paid"
	InvoicePending InvoiceStatus = "Pending"
)

func (s InvoiceStatus) Valid() bool {
	return s == InvoicePaid || s == InvoicePending
}

type Invoice struct {
	ID         InvoiceID
	Number     string // INV-2025-00001, unique
	ClientID   ClientID
	ClientName string
	Amount     decimal.Decimal
	Status     InvoiceStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InvoicePatch carries the invoice fields an update may change.
// The invoice number is immutable once minted.
type InvoicePatch struct {
	ClientID   *ClientID
	ClientName *string
	Amount     *decimal.Decimal
	Status     *InvoiceStatus
}

func (p InvoicePatch) Apply(inv Invoice, at time.Time) Invoice {
	if p.ClientID != nil {
		inv.ClientID = *p.ClientID
	}
	if p.ClientName != nil {
		inv.ClientName = *p.ClientName
	}
	if p.Amount != nil {
		inv.Amount = *p.Amount
	}
	if p.Status != nil {
		inv.Status = *p.Status
	}
	inv.UpdatedAt = at
	return inv
}

// =============================================================================
// ADJUSTMENT - Pending client aggregate delta (outbox entry)
// =============================================================================

// Adjustment is a delta to apply to one client's totals.
// Adjustments are produced by PlanAdjustments; the ones that could not be
// applied are parked in the AdjustmentLog until the repair job replays them.
type Adjustment struct {
	ID        string
	ClientID  ClientID
	ProjectID ProjectID
	Delta     Totals
	Reason    AdjustmentReason
	CreatedAt time.Time
	AppliedAt *time.Time
}

type AdjustmentReason string

const (
	ReasonProjectCreated AdjustmentReason = "project_created"
	ReasonAmountChanged  AdjustmentReason = "amount_changed"
	ReasonMovedOut       AdjustmentReason = "moved_out"
	ReasonMovedIn        AdjustmentReason = "moved_in"
	ReasonProjectDeleted AdjustmentReason = "project_deleted"
)
