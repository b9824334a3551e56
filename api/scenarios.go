/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	dashboard data. Every record goes through the billing services, so
	client totals and invoice numbers are produced exactly as they are
	for real requests.

AVAILABLE SCENARIOS:

	starter:        One client, one project, one pending invoice
	busy-quarter:   Several clients, projects in every status, paid and
	                pending invoices (populates every stats card)
	drifted-totals: busy-quarter, then one client's stored totals are
	                corrupted so /api/admin/repair has something to fix

HOW SCENARIOS WORK:
 1. Create clients
 2. Create projects (client totals follow)
 3. Create invoices (numbers minted from the year counter)
 4. Optionally tamper with stored totals

USAGE VIA API:

	GET  /api/scenarios
	POST /api/scenarios/load
	{"scenario_id": "busy-quarter"}

NOTE:

	Scenarios add to whatever is already stored; nothing is reset.
	Loading a scenario twice collides on client emails and fails with 409.
	Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and error mapping
  - billing/repair.go: What drifted-totals exercises
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/freelancers-dashboard/billing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "starter",
		Name:        "Starter",
		Description: "One client with a single project and a pending invoice",
	},
	{
		ID:          "busy-quarter",
		Name:        "Busy Quarter",
		Description: "Three clients, projects in every status, paid and pending invoices",
	},
	{
		ID:          "drifted-totals",
		Name:        "Drifted Totals",
		Description: "Busy quarter with one client's stored totals corrupted, for the repair job",
	},
}

// demo records, created in order
type demoClient struct {
	name, email, company string
}

type demoProject struct {
	client   int // index into the scenario's clients
	name     string
	status   billing.ProjectStatus
	amount   string
	deadline int // days from today
}

type demoInvoice struct {
	client int // -1 for a free-text client
	name   string
	amount string
	status billing.InvoiceStatus
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// One load at a time; a scenario is a sequence of dependent writes.
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "starter":
		err = h.loadStarterScenario(ctx)
	case "busy-quarter":
		_, err = h.loadBusyQuarterScenario(ctx)
	case "drifted-totals":
		err = h.loadDriftedTotalsScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		h.writeServiceError(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.logger.Info("scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStarterScenario(ctx context.Context) error {
	_, err := h.seed(ctx,
		[]demoClient{
			{"Ada Lovelace", "ada@analytical.dev", "Analytical Engines"},
		},
		[]demoProject{
			{0, "Landing page", billing.ProjectInProgress, "1200.00", 21},
		},
		[]demoInvoice{
			{0, "", "600.00", billing.InvoicePending},
		},
	)
	return err
}

func (h *Handler) loadBusyQuarterScenario(ctx context.Context) ([]billing.Client, error) {
	return h.seed(ctx,
		[]demoClient{
			{"Grace Hopper", "grace@cobol.dev", "Compiler Works"},
			{"Alan Turing", "alan@bletchley.dev", "Bombe Ltd"},
			{"Katherine Johnson", "katherine@orbits.dev", "Trajectory Labs"},
		},
		[]demoProject{
			{0, "Billing portal", billing.ProjectInProgress, "4200.00", 30},
			{0, "API hardening", billing.ProjectPending, "1800.50", 45},
			{1, "Data pipeline", billing.ProjectCompleted, "5000.00", 0},
			{1, "Dashboard redesign", billing.ProjectInProgress, "3200.00", 14},
			{2, "Mobile app MVP", billing.ProjectPending, "6000.00", 60},
		},
		[]demoInvoice{
			{0, "", "2100.00", billing.InvoicePaid},
			{1, "", "5000.00", billing.InvoicePaid},
			{1, "", "1600.00", billing.InvoicePending},
			{2, "", "1500.00", billing.InvoicePending},
			{-1, "Walk-in consulting", "350.00", billing.InvoicePaid},
		},
	)
}

func (h *Handler) loadDriftedTotalsScenario(ctx context.Context) error {
	clients, err := h.loadBusyQuarterScenario(ctx)
	if err != nil {
		return err
	}

	// Simulate an increment that never landed.
	victim := clients[0]
	drifted := victim.Totals().Add(billing.Totals{Projects: -1, Amount: decimal.RequireFromString("-1800.50")})
	if err := h.store.SetClientTotals(ctx, victim.ID, drifted, h.Clients.Now()); err != nil {
		return fmt.Errorf("corrupting totals of %s: %w", victim.ID, err)
	}
	return nil
}

// seed creates the given records through the services and returns the
// clients as stored after their projects were added.
func (h *Handler) seed(ctx context.Context, clients []demoClient, projects []demoProject, invoices []demoInvoice) ([]billing.Client, error) {
	created := make([]billing.Client, len(clients))
	for i, c := range clients {
		client, err := h.Clients.Create(ctx, billing.CreateClientRequest{Name: c.name, Email: c.email, Company: c.company})
		if err != nil {
			return nil, err
		}
		created[i] = client
	}

	today := billing.StartOfDay(h.Projects.Now())
	for _, p := range projects {
		_, err := h.Projects.Create(ctx, billing.CreateProjectRequest{
			Name:     p.name,
			ClientID: created[p.client].ID,
			Status:   p.status,
			Amount:   decimal.RequireFromString(p.amount),
			Deadline: today.AddDate(0, 0, p.deadline),
		})
		if err != nil {
			return nil, err
		}
	}

	for _, inv := range invoices {
		req := billing.CreateInvoiceRequest{
			ClientName: inv.name,
			Amount:     decimal.RequireFromString(inv.amount),
			Status:     inv.status,
		}
		if inv.client >= 0 {
			req.ClientID = created[inv.client].ID
		}
		if _, err := h.Invoices.Create(ctx, req); err != nil {
			return nil, err
		}
	}

	for i := range created {
		c, err := h.Clients.Get(ctx, created[i].ID)
		if err != nil {
			return nil, err
		}
		created[i] = c
	}
	return created, nil
}
