package billing_test

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freelancers-dashboard/billing"
	"github.com/warp/freelancers-dashboard/billing/store"
)

func TestFormatInvoiceNumber(t *testing.T) {
	tests := []struct {
		year int
		seq  int64
		want string
	}{
		{2025, 1, "INV-2025-00001"},
		{2025, 42, "INV-2025-00042"},
		{2026, 99999, "INV-2026-99999"},
		{2026, 100000, "INV-2026-100000"},
		{999, 7, "INV-0999-00007"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, billing.FormatInvoiceNumber(tt.year, tt.seq))
		})
	}
}

func TestFormatInvoiceNumber_ShapeAndInjective(t *testing.T) {
	shape := regexp.MustCompile(`^INV-\d{4}-\d{5}$`)
	seen := make(map[string]bool)

	for _, year := range []int{2024, 2025} {
		for seq := int64(1); seq <= 500; seq++ {
			n := billing.FormatInvoiceNumber(year, seq)
			assert.Regexp(t, shape, n)
			assert.False(t, seen[n], "duplicate rendering %s", n)
			seen[n] = true
		}
	}
}

func TestSequence_StartsAtOneAndIncrements(t *testing.T) {
	// GIVEN: A fresh counter store
	// WHEN: Drawing three values for the same year
	// THEN: They are 1, 2, 3
	ctx := context.Background()
	seq := billing.NewSequence(store.NewMemory(), billing.InvoiceScope)

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, 2025)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSequence_YearsAreIndependent(t *testing.T) {
	ctx := context.Background()
	seq := billing.NewSequence(store.NewMemory(), billing.InvoiceScope)

	for i := 0; i < 4; i++ {
		_, err := seq.Next(ctx, 2025)
		require.NoError(t, err)
	}

	got, err := seq.Next(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "a new year starts its own counter")
	assert.Equal(t, "invoices:2026", seq.Key(2026))
}

func TestSequence_ConcurrentCallersGetDistinctValues(t *testing.T) {
	// GIVEN: 64 concurrent callers on one year
	// WHEN: Each draws one value
	// THEN: The values are exactly 1..64 with no duplicates
	ctx := context.Background()
	seq := billing.NewSequence(store.NewMemory(), billing.InvoiceScope)

	const n = 64
	values := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := seq.Next(ctx, 2025)
			assert.NoError(t, err)
			values[i] = v
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, v := range values {
		assert.False(t, seen[v], "value %d issued twice", v)
		seen[v] = true
	}
	for v := int64(1); v <= n; v++ {
		assert.True(t, seen[v], "value %d missing", v)
	}
}

func TestSequence_StoreFailureIsInternal(t *testing.T) {
	seq := billing.NewSequence(counterFunc(func(context.Context, string) (int64, error) {
		return 0, errStoreDown
	}), billing.InvoiceScope)

	_, err := seq.Next(context.Background(), 2025)
	require.Error(t, err)
	assert.Equal(t, billing.KindInternal, billing.KindOf(err))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestSequence_NonPositiveValueRejected(t *testing.T) {
	seq := billing.NewSequence(counterFunc(func(context.Context, string) (int64, error) {
		return 0, nil
	}), billing.InvoiceScope)

	_, err := seq.Next(context.Background(), 2025)
	require.Error(t, err)
	assert.Equal(t, billing.KindInternal, billing.KindOf(err))
}
