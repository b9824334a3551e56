package billing

import (
	"context"
	"fmt"
)

// InvoiceScope is the counter scope used for invoice numbers.
const InvoiceScope = "invoices"

// Sequence hands out strictly increasing integers per (scope, year).
//
// Each call is a single atomic increment-and-read on the counter store, so
// concurrent callers always get distinct values. Values burned by a failed
// insert are never reissued; gaps are expected, duplicates are not.
type Sequence struct {
	counters CounterStore
	scope    string
}

func NewSequence(counters CounterStore, scope string) *Sequence {
	return &Sequence{counters: counters, scope: scope}
}

// Key returns the counter key for a year, e.g. "invoices:2025".
func (s *Sequence) Key(year int) string {
	return fmt.Sprintf("%s:%d", s.scope, year)
}

// Next returns the next value for the year.
func (s *Sequence) Next(ctx context.Context, year int) (int64, error) {
	key := s.Key(year)
	seq, err := s.counters.NextSequence(ctx, key)
	if err != nil {
		return 0, &OperationError{Op: "increment", Entity: "counter", ID: key, Err: fmt.Errorf("%w: %w", ErrInternal, err)}
	}
	if seq < 1 {
		return 0, &OperationError{Op: "increment", Entity: "counter", ID: key,
			Err: fmt.Errorf("%w: store returned non-positive sequence %d", ErrInternal, seq)}
	}
	return seq, nil
}

// FormatInvoiceNumber renders INV-<year>-<seq zero-padded to 5 digits>.
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%04d-%05d", year, seq)
}
