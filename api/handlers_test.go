/*
handlers_test.go - HTTP tests for the dashboard API

Tests for:
- Status codes per error kind (404, 409, 422, 400)
- Client totals moving with project create/update/delete
- Invoice numbers minted on create and kept on update
- Stats, health and admin repair endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freelancers-dashboard/billing"
	"github.com/warp/freelancers-dashboard/billing/store"
)

var testNow = time.Date(2025, time.June, 15, 10, 30, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	store   billing.Store
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithStore(t, store.NewMemory())
}

func newTestServerWithStore(t *testing.T, s billing.Store) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(s, "memory", logger)

	clock := func() time.Time { return testNow }
	h.Clients.Now = clock
	h.Projects.Now = clock
	h.Invoices.Now = clock
	h.Stats.Now = clock
	h.Repair.Now = clock

	return &testServer{
		t:       t,
		store:   s,
		handler: h,
		router:  NewRouter(h, RouterOptions{AllowedOrigins: []string{"http://localhost:3000"}, Logger: logger}),
	}
}

// do sends a request and decodes the JSON response into out when non-nil.
func (ts *testServer) do(method, path string, body any, out any) int {
	ts.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if out != nil {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), out), "body: %s", rec.Body.String())
	}
	return rec.Code
}

func (ts *testServer) createClient(name string) ClientDTO {
	ts.t.Helper()
	var c ClientDTO
	code := ts.do(http.MethodPost, "/api/clients", map[string]any{
		"name": name, "email": name + "@example.com", "company": name + " Ltd",
	}, &c)
	require.Equal(ts.t, http.StatusCreated, code)
	return c
}

func (ts *testServer) createProject(clientID string, amount float64) ProjectDTO {
	ts.t.Helper()
	var p ProjectDTO
	code := ts.do(http.MethodPost, "/api/projects", map[string]any{
		"name": "Website", "clientId": clientID, "amount": amount, "deadline": "2025-07-01",
	}, &p)
	require.Equal(ts.t, http.StatusCreated, code)
	return p
}

func (ts *testServer) client(id string) ClientDTO {
	ts.t.Helper()
	var c ClientDTO
	require.Equal(ts.t, http.StatusOK, ts.do(http.MethodGet, "/api/clients/"+id, nil, &c))
	return c
}

// =============================================================================
// CLIENTS
// =============================================================================

func TestClients_CreateGetList(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createClient("acme")

	assert.Equal(t, "acme@example.com", created.Email)
	assert.Zero(t, created.TotalProjects)
	assert.Zero(t, created.TotalAmount)
	assert.Equal(t, "2025-06-15T10:30:00Z", created.CreatedAt)

	var list []ClientDTO
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/clients", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestClients_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	existing := ts.createClient("acme")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"duplicate email", http.MethodPost, "/api/clients",
			map[string]any{"name": "X", "email": existing.Email, "company": "Y"}, http.StatusConflict, "conflict"},
		{"invalid email", http.MethodPost, "/api/clients",
			map[string]any{"name": "X", "email": "nope", "company": "Y"}, http.StatusUnprocessableEntity, "validation"},
		{"unknown client", http.MethodGet, "/api/clients/" + billing.NewID(), nil, http.StatusNotFound, "not_found"},
		{"malformed id", http.MethodGet, "/api/clients/abc", nil, http.StatusUnprocessableEntity, "validation"},
		{"totals are not writable", http.MethodPut, "/api/clients/" + existing.ID,
			map[string]any{"totalAmount": 1000}, http.StatusBadRequest, ""},
		{"malformed json", http.MethodPost, "/api/clients", "{", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			status := ts.do(tt.method, tt.path, tt.body, &resp)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestClients_ValidationDetails(t *testing.T) {
	ts := newTestServer(t)

	var resp struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	status := ts.do(http.MethodPost, "/api/clients", map[string]any{"name": "X", "email": "x@example.com"}, &resp)

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "company", resp.Details["field"])
}

func TestClients_DeleteBlockedByProjects(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createClient("acme")
	p := ts.createProject(c.ID, 10)

	assert.Equal(t, http.StatusConflict, ts.do(http.MethodDelete, "/api/clients/"+c.ID, nil, nil))

	require.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/projects/"+p.ID, nil, nil))

	var resp DeleteResponse
	require.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/clients/"+c.ID, nil, &resp))
	assert.True(t, resp.Deleted)
}

// =============================================================================
// PROJECTS AND CLIENT TOTALS
// =============================================================================

func TestProjects_TotalsFollowMutations(t *testing.T) {
	// GIVEN: Two clients
	// WHEN: A project is created, edited, moved and deleted over HTTP
	// THEN: Each client's totalProjects/totalAmount track the change
	ts := newTestServer(t)
	a := ts.createClient("alpha")
	b := ts.createClient("bravo")

	p := ts.createProject(a.ID, 1200.50)
	assert.Equal(t, "alpha", p.Client)
	assert.Equal(t, string(billing.ProjectPending), p.Status)
	assert.Equal(t, int64(1), ts.client(a.ID).TotalProjects)
	assert.Equal(t, 1200.50, ts.client(a.ID).TotalAmount)

	var updated ProjectDTO
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/projects/"+p.ID, map[string]any{"amount": 1000}, &updated))
	assert.Equal(t, 1000.0, ts.client(a.ID).TotalAmount)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPatch, "/api/projects/"+p.ID,
		map[string]any{"clientId": b.ID, "amount": 400.25}, &updated))
	assert.Equal(t, "bravo", updated.Client)
	assert.Equal(t, b.ID, updated.ClientID)

	assert.Zero(t, ts.client(a.ID).TotalProjects)
	assert.Zero(t, ts.client(a.ID).TotalAmount)
	assert.Equal(t, int64(1), ts.client(b.ID).TotalProjects)
	assert.Equal(t, 400.25, ts.client(b.ID).TotalAmount)

	require.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/projects/"+p.ID, nil, nil))
	assert.Zero(t, ts.client(b.ID).TotalProjects)
	assert.Zero(t, ts.client(b.ID).TotalAmount)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/projects/"+p.ID, nil, nil))
}

func TestProjects_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createClient("acme")
	p := ts.createProject(c.ID, 10)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown client", http.MethodPost, "/api/projects",
			map[string]any{"name": "X", "clientId": billing.NewID(), "amount": 1, "deadline": "2025-07-01"}, http.StatusNotFound},
		{"past deadline", http.MethodPost, "/api/projects",
			map[string]any{"name": "X", "clientId": c.ID, "amount": 1, "deadline": "2025-06-14"}, http.StatusUnprocessableEntity},
		{"bad deadline", http.MethodPost, "/api/projects",
			map[string]any{"name": "X", "clientId": c.ID, "amount": 1, "deadline": "next week"}, http.StatusUnprocessableEntity},
		{"missing amount", http.MethodPost, "/api/projects",
			map[string]any{"name": "X", "clientId": c.ID, "deadline": "2025-07-01"}, http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPut, "/api/projects/" + p.ID,
			map[string]any{"amount": -1}, http.StatusUnprocessableEntity},
		{"move to unknown client", http.MethodPut, "/api/projects/" + p.ID,
			map[string]any{"clientId": billing.NewID()}, http.StatusNotFound},
		{"unknown project", http.MethodDelete, "/api/projects/" + billing.NewID(), nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, ts.do(tt.method, tt.path, tt.body, nil))
		})
	}

	assert.Equal(t, int64(1), ts.client(c.ID).TotalProjects)
	assert.Equal(t, 10.0, ts.client(c.ID).TotalAmount)
}

func TestProjects_ListIncludesClientName(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createClient("acme")
	ts.createProject(c.ID, 10)

	var list []ProjectDTO
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/projects", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "acme", list[0].Client)
	assert.Equal(t, "2025-07-01T00:00:00Z", list[0].Deadline)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestInvoices_NumberMintedAndKept(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createClient("acme")

	var first, second InvoiceDTO
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/invoices",
		map[string]any{"client": "Walk-in", "amount": 250}, &first))
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/invoices",
		map[string]any{"clientId": c.ID, "amount": 99.99, "status": "Paid"}, &second))

	assert.Equal(t, "INV-2025-00001", first.Number)
	assert.Equal(t, "INV-2025-00002", second.Number)
	assert.Equal(t, "acme", second.Client)
	assert.Equal(t, "Pending", first.Status)

	var updated InvoiceDTO
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/invoices/"+first.ID,
		map[string]any{"status": "Paid", "amount": 300}, &updated))
	assert.Equal(t, "INV-2025-00001", updated.Number)
	assert.Equal(t, 300.0, updated.Amount)

	// The number is not a writable field
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, "/api/invoices/"+first.ID,
		map[string]any{"invoiceId": "INV-2025-99999"}, nil))

	var list []InvoiceDTO
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/invoices", nil, &list))
	assert.Len(t, list, 2)
}

func TestInvoices_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/api/invoices",
		map[string]any{"amount": 10}, nil), "no client")
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/api/invoices",
		map[string]any{"client": "Acme", "amount": 10, "status": "Overdue"}, nil), "unknown status")
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/invoices",
		map[string]any{"clientId": billing.NewID(), "amount": 10}, nil), "unknown client")
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/invoices/"+billing.NewID(), nil, nil))
}

// =============================================================================
// DASHBOARD AND ADMIN
// =============================================================================

func TestStats(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createClient("acme")
	ts.createClient("idle")
	ts.createProject(c.ID, 100)
	ts.createProject(c.ID, 50)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/invoices",
		map[string]any{"client": "Acme", "amount": 120.5, "status": "Paid"}, nil))
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/invoices",
		map[string]any{"client": "Acme", "amount": 80}, nil))

	var st StatsDTO
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/stats", nil, &st))

	assert.Equal(t, int64(2), st.TotalProjects)
	assert.Equal(t, int64(1), st.ActiveClients)
	assert.Equal(t, int64(1), st.PendingInvoices)
	assert.Equal(t, 120.5, st.EarningsThisMonth)
}

type downStore struct{ billing.Store }

func (downStore) Ping(context.Context) error { return assert.AnError }

func TestHealthDB(t *testing.T) {
	ts := newTestServer(t)
	var ok HealthDTO
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/health/db", nil, &ok))
	assert.True(t, ok.OK)
	assert.Equal(t, "memory", ok.Store)

	down := newTestServerWithStore(t, downStore{store.NewMemory()})
	var failed HealthDTO
	require.Equal(t, http.StatusInternalServerError, down.do(http.MethodGet, "/api/health/db", nil, &failed))
	assert.False(t, failed.OK)
	assert.NotEmpty(t, failed.Error)
}

func TestAdminRepair(t *testing.T) {
	// GIVEN: A client whose stored totals were corrupted
	// WHEN: POST /api/admin/repair
	// THEN: The drift is reported and fixed
	ts := newTestServer(t)
	c := ts.createClient("acme")
	ts.createProject(c.ID, 75)
	require.NoError(t, ts.store.SetClientTotals(context.Background(), billing.ClientID(c.ID),
		billing.Totals{Projects: 9}, testNow))

	var report RepairDTO
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/admin/repair", nil, &report))
	require.Len(t, report.Drifted, 1)
	assert.Equal(t, int64(9), report.Drifted[0].StoredProjects)
	assert.Equal(t, int64(1), report.Drifted[0].ActualProjects)
	assert.Equal(t, 75.0, report.Drifted[0].ActualAmount)

	assert.Equal(t, int64(1), ts.client(c.ID).TotalProjects)
	assert.Equal(t, 75.0, ts.client(c.ID).TotalAmount)
}

func TestAdminDrain(t *testing.T) {
	ts := newTestServer(t)
	c := ts.createClient("acme")
	require.NoError(t, ts.store.AppendAdjustments(context.Background(), []billing.Adjustment{{
		ID:        billing.NewID(),
		ClientID:  billing.ClientID(c.ID),
		ProjectID: billing.ProjectID(billing.NewID()),
		Delta:     billing.Totals{Projects: 1, Amount: billing.FromCents(1250)},
		Reason:    billing.ReasonProjectCreated,
		CreatedAt: testNow,
	}}))

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/admin/adjustments/drain?limit=x", nil, nil))

	var report DrainDTO
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/admin/adjustments/drain?limit=10", nil, &report))
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 12.5, ts.client(c.ID).TotalAmount)
}

func TestCORS_Preflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/clients", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
