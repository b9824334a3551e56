/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the billing domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMAT:
  - Field names are camelCase, matching the dashboard frontend
  - Amounts are JSON numbers; requests are decoded as decimals so no
    binary rounding happens before validation
  - Timestamps are RFC 3339 in UTC; deadlines accept YYYY-MM-DD too
  - A project carries its client's name in "client"; an invoice carries
    its number in "invoiceId"

VALIDATION:
  Validation is done by the billing services, not in DTOs. DTOs only
  parse what JSON cannot express (dates).

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: Domain types
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/freelancers-dashboard/billing"
)

const dateLayout = "2006-01-02"

// =============================================================================
// CLIENTS
// =============================================================================

// ClientDTO represents a client in API responses.
type ClientDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Company       string  `json:"company"`
	TotalProjects int64   `json:"totalProjects"`
	TotalAmount   float64 `json:"totalAmount"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

type CreateClientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

// UpdateClientRequest has no totals: they are maintained by project writes.
type UpdateClientRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Company *string `json:"company"`
}

func toClientDTO(c billing.Client) ClientDTO {
	return ClientDTO{
		ID:            string(c.ID),
		Name:          c.Name,
		Email:         c.Email,
		Company:       c.Company,
		TotalProjects: c.TotalProjects,
		TotalAmount:   c.TotalAmount.InexactFloat64(),
		CreatedAt:     formatTimestamp(c.CreatedAt),
		UpdatedAt:     formatTimestamp(c.UpdatedAt),
	}
}

// =============================================================================
// PROJECTS
// =============================================================================

// ProjectDTO represents a project in API responses.
type ProjectDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ClientID  string  `json:"clientId"`
	Client    string  `json:"client"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	Deadline  string  `json:"deadline"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

type CreateProjectRequest struct {
	Name     string           `json:"name"`
	ClientID string           `json:"clientId"`
	Status   string           `json:"status"`
	Amount   *decimal.Decimal `json:"amount"`
	Deadline string           `json:"deadline"`
}

func (r CreateProjectRequest) toDomain() (billing.CreateProjectRequest, error) {
	if r.Amount == nil {
		return billing.CreateProjectRequest{}, &billing.ValidationError{Field: "amount", Message: "is required"}
	}
	deadline, err := parseDeadline(r.Deadline)
	if err != nil {
		return billing.CreateProjectRequest{}, err
	}
	return billing.CreateProjectRequest{
		Name:     r.Name,
		ClientID: billing.ClientID(r.ClientID),
		Status:   billing.ProjectStatus(r.Status),
		Amount:   *r.Amount,
		Deadline: deadline,
	}, nil
}

type UpdateProjectRequest struct {
	Name     *string          `json:"name"`
	ClientID *string          `json:"clientId"`
	Status   *string          `json:"status"`
	Amount   *decimal.Decimal `json:"amount"`
	Deadline *string          `json:"deadline"`
}

func (r UpdateProjectRequest) toDomain() (billing.UpdateProjectRequest, error) {
	out := billing.UpdateProjectRequest{
		Name:   r.Name,
		Amount: r.Amount,
	}
	if r.ClientID != nil {
		id := billing.ClientID(*r.ClientID)
		out.ClientID = &id
	}
	if r.Status != nil {
		status := billing.ProjectStatus(*r.Status)
		out.Status = &status
	}
	if r.Deadline != nil {
		deadline, err := parseDeadline(*r.Deadline)
		if err != nil {
			return out, err
		}
		out.Deadline = &deadline
	}
	return out, nil
}

func toProjectDTO(v billing.ProjectView) ProjectDTO {
	return ProjectDTO{
		ID:        string(v.ID),
		Name:      v.Name,
		ClientID:  string(v.ClientID),
		Client:    v.ClientName,
		Status:    string(v.Status),
		Amount:    v.Amount.InexactFloat64(),
		Deadline:  formatTimestamp(v.Deadline),
		CreatedAt: formatTimestamp(v.CreatedAt),
		UpdatedAt: formatTimestamp(v.UpdatedAt),
	}
}

// =============================================================================
// INVOICES
// =============================================================================

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID        string  `json:"id"`
	Number    string  `json:"invoiceId"`
	ClientID  string  `json:"clientId,omitempty"`
	Client    string  `json:"client"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// CreateInvoiceRequest takes either a clientId or a free-text client name.
// The number is always minted by the server.
type CreateInvoiceRequest struct {
	ClientID string           `json:"clientId"`
	Client   string           `json:"client"`
	Amount   *decimal.Decimal `json:"amount"`
	Status   string           `json:"status"`
}

func (r CreateInvoiceRequest) toDomain() (billing.CreateInvoiceRequest, error) {
	if r.Amount == nil {
		return billing.CreateInvoiceRequest{}, &billing.ValidationError{Field: "amount", Message: "is required"}
	}
	return billing.CreateInvoiceRequest{
		ClientID:   billing.ClientID(r.ClientID),
		ClientName: r.Client,
		Amount:     *r.Amount,
		Status:     billing.InvoiceStatus(r.Status),
	}, nil
}

type UpdateInvoiceRequest struct {
	ClientID *string          `json:"clientId"`
	Client   *string          `json:"client"`
	Amount   *decimal.Decimal `json:"amount"`
	Status   *string          `json:"status"`
}

func (r UpdateInvoiceRequest) toDomain() billing.UpdateInvoiceRequest {
	out := billing.UpdateInvoiceRequest{
		ClientName: r.Client,
		Amount:     r.Amount,
	}
	if r.ClientID != nil {
		id := billing.ClientID(*r.ClientID)
		out.ClientID = &id
	}
	if r.Status != nil {
		status := billing.InvoiceStatus(*r.Status)
		out.Status = &status
	}
	return out
}

func toInvoiceDTO(inv billing.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:        string(inv.ID),
		Number:    inv.Number,
		ClientID:  string(inv.ClientID),
		Client:    inv.ClientName,
		Amount:    inv.Amount.InexactFloat64(),
		Status:    string(inv.Status),
		CreatedAt: formatTimestamp(inv.CreatedAt),
		UpdatedAt: formatTimestamp(inv.UpdatedAt),
	}
}

// =============================================================================
// DASHBOARD / ADMIN
// =============================================================================

type StatsDTO struct {
	TotalProjects     int64   `json:"totalProjects"`
	ActiveClients     int64   `json:"activeClients"`
	PendingInvoices   int64   `json:"pendingInvoices"`
	EarningsThisMonth float64 `json:"earningsThisMonth"`
}

type HealthDTO struct {
	OK    bool   `json:"ok"`
	Store string `json:"store"`
	Error string `json:"error,omitempty"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

type DrainDTO struct {
	Applied   int `json:"applied"`
	Discarded int `json:"discarded"`
	Failed    int `json:"failed"`
}

type DriftDTO struct {
	ClientID       string  `json:"clientId"`
	StoredProjects int64   `json:"storedProjects"`
	StoredAmount   float64 `json:"storedAmount"`
	ActualProjects int64   `json:"actualProjects"`
	ActualAmount   float64 `json:"actualAmount"`
}

type RepairDTO struct {
	Clients int        `json:"clients"`
	Retired int        `json:"retired"`
	Drifted []DriftDTO `json:"drifted"`
}

func toRepairDTO(r billing.RecomputeReport) RepairDTO {
	out := RepairDTO{Clients: r.Clients, Retired: r.Retired, Drifted: make([]DriftDTO, len(r.Drifted))}
	for i, d := range r.Drifted {
		out.Drifted[i] = DriftDTO{
			ClientID:       string(d.ClientID),
			StoredProjects: d.Stored.Projects,
			StoredAmount:   d.Stored.Amount.InexactFloat64(),
			ActualProjects: d.Actual.Projects,
			ActualAmount:   d.Actual.Amount.InexactFloat64(),
		}
	}
	return out
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Helper functions

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseDeadline accepts a calendar date or a full RFC 3339 timestamp.
func parseDeadline(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &billing.ValidationError{Field: "deadline", Message: "is required"}
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &billing.ValidationError{
			Field:   "deadline",
			Message: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", s),
		}
	}
	return t, nil
}
