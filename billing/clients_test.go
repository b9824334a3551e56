package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freelancers-dashboard/billing"
	"github.com/warp/freelancers-dashboard/billing/store"
)

func TestClientCreate_NormalizesAndStartsAtZero(t *testing.T) {
	svc := newTestServices(t)

	c, err := svc.clients.Create(context.Background(), billing.CreateClientRequest{
		Name:    "  Ada Lovelace ",
		Email:   " Ada@Example.COM ",
		Company: "Analytical Engines",
	})
	require.NoError(t, err)

	assert.True(t, billing.ValidID(string(c.ID)))
	assert.Equal(t, "Ada Lovelace", c.Name)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, testNow, c.CreatedAt)
	requireTotals(t, svc.store, c.ID, 0, "0")
}

func TestClientCreate_Validation(t *testing.T) {
	svc := newTestServices(t)

	tests := []struct {
		name  string
		req   billing.CreateClientRequest
		field string
	}{
		{"missing name", billing.CreateClientRequest{Email: "a@b.co", Company: "X"}, "name"},
		{"missing company", billing.CreateClientRequest{Name: "A", Email: "a@b.co"}, "company"},
		{"missing email", billing.CreateClientRequest{Name: "A", Company: "X"}, "email"},
		{"bad email", billing.CreateClientRequest{Name: "A", Email: "not-an-email", Company: "X"}, "email"},
		{"display-name email", billing.CreateClientRequest{Name: "A", Email: "Ada <a@b.co>", Company: "X"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.clients.Create(context.Background(), tt.req)

			var vErr *billing.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Equal(t, billing.KindValidation, billing.KindOf(err))
		})
	}
}

func TestClientCreate_Duplicates(t *testing.T) {
	// GIVEN: An existing client
	// WHEN: Creating one with the same email, or the same name and company
	// THEN: Both are conflicts naming the colliding field
	svc := newTestServices(t)
	ctx := context.Background()
	existing := createClient(t, svc, "acme")

	_, err := svc.clients.Create(ctx, billing.CreateClientRequest{
		Name: "Other", Email: "ACME@example.com", Company: "Other Co",
	})
	assert.Equal(t, billing.KindConflict, billing.KindOf(err))
	assert.True(t, billing.IsDuplicateOn(err, "client", "email"))

	_, err = svc.clients.Create(ctx, billing.CreateClientRequest{
		Name: existing.Name, Email: "fresh@example.com", Company: existing.Company,
	})
	assert.Equal(t, billing.KindConflict, billing.KindOf(err))
	assert.True(t, billing.IsDuplicateOn(err, "client", "name_company"))

	clients, err := svc.clients.List(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestClientUpdate(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	c := createClient(t, svc, "acme")
	other := createClient(t, svc, "globex")
	createProject(t, svc, c.ID, "40")

	name := "Acme Corp"
	updated, err := svc.clients.Update(ctx, c.ID, billing.UpdateClientRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.Name)
	assert.Equal(t, c.Email, updated.Email)
	requireTotals(t, svc.store, c.ID, 1, "40")

	taken := other.Email
	_, err = svc.clients.Update(ctx, c.ID, billing.UpdateClientRequest{Email: &taken})
	assert.Equal(t, billing.KindConflict, billing.KindOf(err))

	_, err = svc.clients.Update(ctx, billing.ClientID(billing.NewID()), billing.UpdateClientRequest{Name: &name})
	assert.True(t, billing.IsNotFound(err))

	blank := " "
	_, err = svc.clients.Update(ctx, c.ID, billing.UpdateClientRequest{Company: &blank})
	assert.True(t, billing.IsValidation(err))
}

func TestClientDelete(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	c := createClient(t, svc, "acme")
	p := createProject(t, svc, c.ID, "10")

	t.Run("blocked while projects reference it", func(t *testing.T) {
		_, err := svc.clients.Delete(ctx, c.ID)

		var inUse *billing.ClientInUseError
		require.ErrorAs(t, err, &inUse)
		assert.Equal(t, int64(1), inUse.Projects)
		assert.Equal(t, billing.KindConflict, billing.KindOf(err))
	})

	t.Run("allowed once empty", func(t *testing.T) {
		_, err := svc.projects.Delete(ctx, p.ID)
		require.NoError(t, err)

		deleted, err := svc.clients.Delete(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = svc.clients.Get(ctx, c.ID)
		assert.True(t, billing.IsNotFound(err))
	})

	t.Run("unknown and malformed ids", func(t *testing.T) {
		_, err := svc.clients.Delete(ctx, billing.ClientID(billing.NewID()))
		assert.Equal(t, billing.KindNotFound, billing.KindOf(err))

		_, err = svc.clients.Delete(ctx, "bogus")
		assert.Equal(t, billing.KindValidation, billing.KindOf(err))
	})
}

func TestClientDelete_ProjectAddedDuringDelete(t *testing.T) {
	// GIVEN: A store without a foreign key between projects and clients
	// WHEN: A project is created after Delete counted zero projects
	// THEN: The delete goes through and the project is listed without a client
	base := store.NewMemory()
	late := &lateProjectStore{Store: base}
	svc := newServices(t, late)
	ctx := context.Background()
	c := createClient(t, svc, "acme")

	other := newServices(t, base)
	var orphan billing.Project
	late.afterCount = func() {
		orphan = createProject(t, other, c.ID, "25")
	}

	deleted, err := svc.clients.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	view, err := svc.projects.Get(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.UnknownClientName, view.ClientName)
}
