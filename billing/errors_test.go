package billing_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/freelancers-dashboard/billing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want billing.Kind
	}{
		{"nil", nil, billing.KindInternal},
		{"plain", errors.New("boom"), billing.KindInternal},
		{"not found", &billing.NotFoundError{Entity: "client", ID: "x"}, billing.KindNotFound},
		{"validation", &billing.ValidationError{Field: "amount", Message: "bad"}, billing.KindValidation},
		{"duplicate key", &billing.DuplicateKeyError{Entity: "invoice", Field: "number"}, billing.KindConflict},
		{"client in use", &billing.ClientInUseError{Projects: 2}, billing.KindConflict},
		{"exhausted", fmt.Errorf("create: %w", billing.ErrSequenceExhausted), billing.KindConflict},
		{"aggregate", &billing.AggregateError{Err: &billing.NotFoundError{Entity: "client"}}, billing.KindInternal},
		{"wrapped not found", &billing.OperationError{Op: "get", Entity: "project", Err: billing.ErrNotFound}, billing.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, billing.KindOf(tt.err))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", billing.KindNotFound.String())
	assert.Equal(t, "validation", billing.KindValidation.String())
	assert.Equal(t, "conflict", billing.KindConflict.String())
	assert.Equal(t, "internal", billing.KindInternal.String())
}

func TestIsDuplicateOn(t *testing.T) {
	err := fmt.Errorf("insert: %w", &billing.DuplicateKeyError{Entity: "invoice", Field: "number", Value: "INV-2025-00001"})

	assert.True(t, billing.IsDuplicateOn(err, "invoice", "number"))
	assert.False(t, billing.IsDuplicateOn(err, "client", "email"))
	assert.True(t, billing.IsRetryable(err))
	assert.Contains(t, err.Error(), `"INV-2025-00001"`)
}
