package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freelancers-dashboard/billing"
	"github.com/warp/freelancers-dashboard/billing/store"
)

func TestInvoiceCreate_MintsSequentialNumbers(t *testing.T) {
	// GIVEN: No invoices yet in 2025
	// WHEN: Two invoices are created
	// THEN: They are numbered INV-2025-00001 and INV-2025-00002
	svc := newTestServices(t)
	ctx := context.Background()

	first, err := svc.invoices.Create(ctx, billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("500")})
	require.NoError(t, err)
	second, err := svc.invoices.Create(ctx, billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("75.10")})
	require.NoError(t, err)

	assert.Equal(t, "INV-2025-00001", first.Number)
	assert.Equal(t, "INV-2025-00002", second.Number)
	assert.Equal(t, billing.InvoicePending, first.Status, "status defaults to Pending")
}

func TestInvoiceCreate_NewYearRestartsNumbering(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	_, err := svc.invoices.Create(ctx, billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("1")})
	require.NoError(t, err)

	svc.invoices.Now = func() time.Time { return time.Date(2026, time.January, 1, 0, 0, 1, 0, time.UTC) }
	inv, err := svc.invoices.Create(ctx, billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00001", inv.Number)
}

func TestInvoiceCreate_ConcurrentNumbersAreUnique(t *testing.T) {
	svc := newTestServices(t)

	const n = 30
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := svc.invoices.Create(context.Background(), billing.CreateInvoiceRequest{
				ClientName: "Acme", Amount: dec("10"),
			})
			assert.NoError(t, err)
			numbers[i] = inv.Number
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, num := range numbers {
		assert.False(t, seen[num], "number %s issued twice", num)
		seen[num] = true
	}
}

func TestInvoiceCreate_RetriesOnDuplicateNumber(t *testing.T) {
	// GIVEN: A store that reports the first two numbers as taken
	// WHEN: An invoice is created
	// THEN: The third drawn number is used
	colliding := &collidingStore{Store: store.NewMemory(), collisions: 2}
	svc := newServices(t, colliding)

	inv, err := svc.invoices.Create(context.Background(), billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("1")})
	require.NoError(t, err)

	assert.Equal(t, "INV-2025-00003", inv.Number)
	assert.Equal(t, 3, colliding.inserts)
}

func TestInvoiceCreate_RetriesExhausted(t *testing.T) {
	colliding := &collidingStore{Store: store.NewMemory(), collisions: 100}
	svc := newServices(t, colliding)
	svc.invoices.MaxAttempts = 4

	_, err := svc.invoices.Create(context.Background(), billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("1")})
	require.Error(t, err)

	assert.ErrorIs(t, err, billing.ErrSequenceExhausted)
	assert.Equal(t, billing.KindConflict, billing.KindOf(err))
	assert.False(t, billing.IsRetryable(err))
	assert.Equal(t, 4, colliding.inserts)
}

func TestInvoiceCreate_OtherStoreErrorsAreNotRetried(t *testing.T) {
	colliding := &collidingStore{Store: store.NewMemory(), insertErr: errStoreDown}
	svc := newServices(t, colliding)

	_, err := svc.invoices.Create(context.Background(), billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("1")})
	require.Error(t, err)

	assert.Equal(t, billing.KindInternal, billing.KindOf(err))
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 1, colliding.inserts)
}

func TestInvoiceCreate_ResolvesClient(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	c := createClient(t, svc, "acme")

	inv, err := svc.invoices.Create(ctx, billing.CreateInvoiceRequest{
		ClientID:   c.ID,
		ClientName: "ignored",
		Amount:     dec("99.99"),
		Status:     billing.InvoicePaid,
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, inv.ClientID)
	assert.Equal(t, "acme", inv.ClientName)

	_, err = svc.invoices.Create(ctx, billing.CreateInvoiceRequest{
		ClientID: billing.ClientID(billing.NewID()),
		Amount:   dec("1"),
	})
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))
}

func TestInvoiceCreate_Validation(t *testing.T) {
	svc := newTestServices(t)

	tests := []struct {
		name string
		req  billing.CreateInvoiceRequest
	}{
		{"no client", billing.CreateInvoiceRequest{Amount: dec("1")}},
		{"blank client name", billing.CreateInvoiceRequest{ClientName: "  ", Amount: dec("1")}},
		{"malformed client id", billing.CreateInvoiceRequest{ClientID: "x", Amount: dec("1")}},
		{"negative amount", billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("-10")}},
		{"amount above maximum", billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("10000000000000.01")}},
		{"unknown status", billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("1"), Status: "Overdue"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.invoices.Create(context.Background(), tt.req)
			assert.Equal(t, billing.KindValidation, billing.KindOf(err), "err: %v", err)
		})
	}

	// Rejected requests never draw a number
	inv, err := svc.invoices.Create(context.Background(), billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-00001", inv.Number)
}

func TestInvoiceUpdate_KeepsNumber(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	c := createClient(t, svc, "acme")
	inv, err := svc.invoices.Create(ctx, billing.CreateInvoiceRequest{ClientName: "Walk-in", Amount: dec("10")})
	require.NoError(t, err)

	paid := billing.InvoicePaid
	amount := dec("12.50")
	updated, err := svc.invoices.Update(ctx, inv.ID, billing.UpdateInvoiceRequest{
		ClientID: &c.ID,
		Amount:   &amount,
		Status:   &paid,
	})
	require.NoError(t, err)

	assert.Equal(t, inv.Number, updated.Number)
	assert.Equal(t, c.ID, updated.ClientID)
	assert.Equal(t, "acme", updated.ClientName)
	assert.True(t, amount.Equal(updated.Amount))
	assert.Equal(t, billing.InvoicePaid, updated.Status)

	name := "Someone else"
	updated, err = svc.invoices.Update(ctx, inv.ID, billing.UpdateInvoiceRequest{ClientName: &name})
	require.NoError(t, err)
	assert.Empty(t, updated.ClientID, "a free-text name detaches the client")
	assert.Equal(t, "Someone else", updated.ClientName)
}

func TestInvoiceDelete(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()
	inv, err := svc.invoices.Create(ctx, billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("10")})
	require.NoError(t, err)

	deleted, err := svc.invoices.Delete(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = svc.invoices.Get(ctx, inv.ID)
	assert.True(t, billing.IsNotFound(err))

	// Deleted numbers are not reissued
	next, err := svc.invoices.Create(ctx, billing.CreateInvoiceRequest{ClientName: "Acme", Amount: dec("10")})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-00002", next.Number)
}
