package billing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProjectStores is what the project service needs from a store.
type ProjectStores interface {
	ClientStore
	ProjectStore
	AdjustmentLog
}

// ProjectService owns project mutations and the client aggregates they move.
type ProjectService struct {
	store  ProjectStores
	writer *aggregateWriter
	logger *slog.Logger

	// Now is the clock used for timestamps and deadline checks.
	Now Clock
}

func NewProjectService(store ProjectStores, logger *slog.Logger) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "projects")
	return &ProjectService{
		store:  store,
		writer: &aggregateWriter{clients: store, log: store, logger: logger},
		logger: logger,
		Now:    time.Now,
	}
}

// CreateProjectRequest defines project creation inputs.
type CreateProjectRequest struct {
	Name     string
	ClientID ClientID
	Status   ProjectStatus
	Amount   decimal.Decimal
	Deadline time.Time
}

// Create persists a project and adds it to its client's totals.
func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest) (Project, error) {
	if err := validateID("clientId", string(req.ClientID)); err != nil {
		return Project{}, err
	}
	if _, err := s.store.GetClient(ctx, req.ClientID); err != nil {
		return Project{}, wrapStore("get", "client", string(req.ClientID), err)
	}

	now := s.Now()
	name, err := validateName("name", req.Name, maxNameLength)
	if err != nil {
		return Project{}, err
	}
	status := req.Status
	if status == "" {
		status = ProjectPending
	}
	if !status.Valid() {
		return Project{}, invalid("status", "unknown status %q", status)
	}
	if err := ValidateAmount("amount", req.Amount); err != nil {
		return Project{}, err
	}
	if err := ValidateDeadline(req.Deadline, now); err != nil {
		return Project{}, err
	}

	p := Project{
		ID:        ProjectID(NewID()),
		Name:      name,
		ClientID:  req.ClientID,
		Status:    status,
		Amount:    req.Amount,
		Deadline:  req.Deadline.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertProject(ctx, p); err != nil {
		return Project{}, wrapStore("create", "project", string(p.ID), err)
	}

	if err := s.writer.apply(ctx, p.ID, PlanAdjustments(nil, &p), s.Now); err != nil {
		return p, err
	}

	s.logger.Info("project created", "project_id", p.ID, "client_id", p.ClientID, "amount", p.Amount.String())
	return p, nil
}

// UpdateProjectRequest carries optional changes; nil fields are untouched.
type UpdateProjectRequest struct {
	Name     *string
	ClientID *ClientID
	Status   *ProjectStatus
	Amount   *decimal.Decimal
	Deadline *time.Time
}

// Update patches a project and reconciles the affected client totals.
//
// The deltas are planned from the pre-image the store swapped out, not from
// the existence check read, so two concurrent updates of the same project
// each account for exactly the change they made. A requested client is
// always written, even when it matches that read: a concurrent move may
// have changed the client in between.
func (s *ProjectService) Update(ctx context.Context, id ProjectID, req UpdateProjectRequest) (Project, error) {
	if err := validateID("id", string(id)); err != nil {
		return Project{}, err
	}
	if _, err := s.store.GetProject(ctx, id); err != nil {
		return Project{}, wrapStore("get", "project", string(id), err)
	}

	now := s.Now()
	patch, err := s.validatePatch(ctx, req, now)
	if err != nil {
		return Project{}, err
	}

	prev, err := s.store.UpdateProject(ctx, id, patch, now)
	if err != nil {
		return Project{}, wrapStore("update", "project", string(id), err)
	}
	next := patch.Apply(prev, now)

	if err := s.writer.apply(ctx, id, PlanAdjustments(&prev, &next), s.Now); err != nil {
		return next, err
	}

	s.logger.Info("project updated", "project_id", id,
		"client_from", prev.ClientID, "client_to", next.ClientID,
		"amount_from", prev.Amount.String(), "amount_to", next.Amount.String())
	return next, nil
}

func (s *ProjectService) validatePatch(ctx context.Context, req UpdateProjectRequest, now time.Time) (ProjectPatch, error) {
	var patch ProjectPatch

	if req.Name != nil {
		name, err := validateName("name", *req.Name, maxNameLength)
		if err != nil {
			return patch, err
		}
		patch.Name = &name
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return patch, invalid("status", "unknown status %q", *req.Status)
		}
		patch.Status = req.Status
	}
	if req.Amount != nil {
		if err := ValidateAmount("amount", *req.Amount); err != nil {
			return patch, err
		}
		patch.Amount = req.Amount
	}
	if req.Deadline != nil {
		if err := ValidateDeadline(*req.Deadline, now); err != nil {
			return patch, err
		}
		deadline := req.Deadline.UTC()
		patch.Deadline = &deadline
	}
	if req.ClientID != nil {
		if err := validateID("clientId", string(*req.ClientID)); err != nil {
			return patch, err
		}
		if _, err := s.store.GetClient(ctx, *req.ClientID); err != nil {
			return patch, wrapStore("get", "client", string(*req.ClientID), err)
		}
		patch.ClientID = req.ClientID
	}
	return patch, nil
}

// Delete removes a project and takes it out of its client's totals.
func (s *ProjectService) Delete(ctx context.Context, id ProjectID) (bool, error) {
	if err := validateID("id", string(id)); err != nil {
		return false, err
	}
	deleted, err := s.store.DeleteProject(ctx, id)
	if err != nil {
		return false, wrapStore("delete", "project", string(id), err)
	}

	if err := s.writer.apply(ctx, id, PlanAdjustments(&deleted, nil), s.Now); err != nil {
		return false, err
	}

	s.logger.Info("project deleted", "project_id", id, "client_id", deleted.ClientID)
	return true, nil
}

// Get returns a project with its client's name.
func (s *ProjectService) Get(ctx context.Context, id ProjectID) (ProjectView, error) {
	if err := validateID("id", string(id)); err != nil {
		return ProjectView{}, err
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return ProjectView{}, wrapStore("get", "project", string(id), err)
	}
	return s.view(ctx, p)
}

// View resolves the client name for an already loaded project.
func (s *ProjectService) View(ctx context.Context, p Project) (ProjectView, error) {
	return s.view(ctx, p)
}

func (s *ProjectService) view(ctx context.Context, p Project) (ProjectView, error) {
	c, err := s.store.GetClient(ctx, p.ClientID)
	switch {
	case err == nil:
		return ProjectView{Project: p, ClientName: c.Name}, nil
	case IsNotFound(err):
		return ProjectView{Project: p, ClientName: UnknownClientName}, nil
	default:
		return ProjectView{}, wrapStore("get", "client", string(p.ClientID), err)
	}
}

// List returns every project, newest first, with client names.
func (s *ProjectService) List(ctx context.Context) ([]ProjectView, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, wrapStore("list", "project", "", err)
	}
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, wrapStore("list", "client", "", err)
	}

	names := make(map[ClientID]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}

	views := make([]ProjectView, len(projects))
	for i, p := range projects {
		name, ok := names[p.ClientID]
		if !ok || strings.TrimSpace(name) == "" {
			name = UnknownClientName
		}
		views[i] = ProjectView{Project: p, ClientName: name}
	}
	return views, nil
}
