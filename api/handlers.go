/*
handlers.go - HTTP API handlers for the freelancers dashboard

PURPOSE:
  Exposes the billing services via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to the services.

ENDPOINTS:
  Clients:
    GET    /api/clients                 List clients (newest first)
    POST   /api/clients                 Create client
    GET    /api/clients/{id}            Get client
    PUT    /api/clients/{id}            Update name/email/company
    DELETE /api/clients/{id}            Delete client without projects

  Projects:
    GET    /api/projects                List projects with client names
    POST   /api/projects                Create project (client totals +1, +amount)
    GET    /api/projects/{id}           Get project
    PUT    /api/projects/{id}           Update project (totals reconciled)
    DELETE /api/projects/{id}           Delete project (client totals -1, -amount)

  Invoices:
    GET    /api/invoices                List invoices
    POST   /api/invoices                Create invoice (number minted here)
    GET    /api/invoices/{id}           Get invoice
    PUT    /api/invoices/{id}           Update invoice (number immutable)
    DELETE /api/invoices/{id}           Delete invoice

  Dashboard:
    GET    /api/stats                   Dashboard counters
    GET    /api/health/db               Store ping

  Admin:
    POST   /api/admin/repair            Recompute all client totals
    POST   /api/admin/adjustments/drain Replay parked adjustments

  Scenarios (scenarios.go):
    GET    /api/scenarios               List demo scenarios
    GET    /api/scenarios/current       Last loaded scenario
    POST   /api/scenarios/load          Load demo data

ERROR HANDLING:
  Errors are returned as JSON with a status derived from billing.KindOf:
  - 400: Malformed JSON body
  - 404: NotFound
  - 409: Conflict (duplicate email, client in use, numbers exhausted)
  - 422: Validation
  - 500: Internal (store failures, stale aggregates)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/freelancers-dashboard/billing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Clients  *billing.ClientService
	Projects *billing.ProjectService
	Invoices *billing.InvoiceService
	Stats    *billing.StatsService
	Repair   *billing.Repairer

	Health    Pinger
	StoreName string

	// DrainLimit caps a drain request without an explicit limit.
	DrainLimit int

	store  billing.Store
	logger *slog.Logger

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler wires every service to the given store.
func NewHandler(store billing.Store, storeName string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Clients:    billing.NewClientService(store, logger),
		Projects:   billing.NewProjectService(store, logger),
		Invoices:   billing.NewInvoiceService(store, logger),
		Stats:      billing.NewStatsService(store, logger),
		Repair:     billing.NewRepairer(store, logger),
		Health:     store,
		StoreName:  storeName,
		DrainLimit: 100,
		store:      store,
		logger:     logger.With("component", "api"),
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Clients.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.Clients.Get(r.Context(), billing.ClientID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.Clients.Create(r.Context(), billing.CreateClientRequest{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req UpdateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.Clients.Update(r.Context(), billing.ClientID(chi.URLParam(r, "id")), billing.UpdateClientRequest{
		Name:    req.Name,
		Email:   req.Email,
		Company: req.Company,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to update client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Clients.Delete(r.Context(), billing.ClientID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to delete client", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	views, err := h.Projects.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list projects", err)
		return
	}

	dtos := make([]ProjectDTO, len(views))
	for i, v := range views {
		dtos[i] = toProjectDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	v, err := h.Projects.Get(r.Context(), billing.ProjectID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(v))
}

// CreateProject creates a project and adds it to its client's totals.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, r, "Invalid project", err)
		return
	}

	p, err := h.Projects.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create project", err)
		return
	}
	h.writeProject(w, r, http.StatusCreated, p)
}

// UpdateProject patches a project and reconciles the client totals.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, r, "Invalid project", err)
		return
	}

	p, err := h.Projects.Update(r.Context(), billing.ProjectID(chi.URLParam(r, "id")), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to update project", err)
		return
	}
	h.writeProject(w, r, http.StatusOK, p)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Projects.Delete(r.Context(), billing.ProjectID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to delete project", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

func (h *Handler) writeProject(w http.ResponseWriter, r *http.Request, status int, p billing.Project) {
	v, err := h.Projects.View(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, r, "Failed to load project client", err)
		return
	}
	writeJSON(w, status, toProjectDTO(v))
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Invoices.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Invoices.Get(r.Context(), billing.InvoiceID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// CreateInvoice mints the next invoice number and stores the invoice.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, r, "Invalid invoice", err)
		return
	}

	inv, err := h.Invoices.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var req UpdateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := h.Invoices.Update(r.Context(), billing.InvoiceID(chi.URLParam(r, "id")), req.toDomain())
	if err != nil {
		h.writeServiceError(w, r, "Failed to update invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Invoices.Delete(r.Context(), billing.InvoiceID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to delete invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Stats.Get(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, StatsDTO{
		TotalProjects:     st.TotalProjects,
		ActiveClients:     st.ActiveClients,
		PendingInvoices:   st.PendingInvoices,
		EarningsThisMonth: st.EarningsThisMonth.InexactFloat64(),
	})
}

func (h *Handler) HealthDB(w http.ResponseWriter, r *http.Request) {
	if err := h.Health.Ping(r.Context()); err != nil {
		h.logger.Error("store ping failed", "store", h.StoreName, "error", err)
		writeJSON(w, http.StatusInternalServerError, HealthDTO{OK: false, Store: h.StoreName, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthDTO{OK: true, Store: h.StoreName})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunRepair recomputes every client's totals from its projects.
func (h *Handler) RunRepair(w http.ResponseWriter, r *http.Request) {
	report, err := h.Repair.Recompute(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Repair failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRepairDTO(report))
}

// DrainAdjustments replays parked adjustments. ?limit=N overrides DrainLimit.
func (h *Handler) DrainAdjustments(w http.ResponseWriter, r *http.Request) {
	limit := h.DrainLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	report, err := h.Repair.DrainAdjustments(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, "Drain failed", err)
		return
	}
	writeJSON(w, http.StatusOK, DrainDTO{Applied: report.Applied, Discarded: report.Discarded, Failed: report.Failed})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind billing.Kind) int {
	switch kind {
	case billing.KindNotFound:
		return http.StatusNotFound
	case billing.KindValidation:
		return http.StatusUnprocessableEntity
	case billing.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	kind := billing.KindOf(err)
	status := statusFor(kind)
	resp := ErrorResponse{Error: message, Code: kind.String(), Details: err.Error()}

	var verr *billing.ValidationError
	if errors.As(err, &verr) {
		resp.Details = map[string]string{"field": verr.Field, "message": verr.Message}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(message, "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
