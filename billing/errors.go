/*
errors.go - Centralized error types for the billing core

PURPOSE:
  Every error leaving this package carries one of four kinds so callers
  can decide on messaging and HTTP status without string matching:

    NotFound    referenced Client / Project / Invoice does not exist
    Validation  bad amount, past deadline, malformed identifier
    Conflict    uniqueness violation (email, invoice number)
    Internal    store unavailable or any unexpected failure

  KindOf(err) resolves the kind of any error; unknown errors are Internal.

ERROR CATEGORIES:
  1. Sentinels - use with errors.Is()
  2. Structured errors - carry entity/field context, Unwrap to a sentinel
  3. Helpers - IsNotFound, IsConflict, IsRetryable

SEE ALSO:
  - store.go: Stores return ErrNotFound and *DuplicateKeyError
  - api/handlers.go: Maps kinds to HTTP status codes
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// KINDS
// =============================================================================

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrInternal   = errors.New("internal error")

	// ErrDuplicateKey is a uniqueness constraint violation reported by a store.
	ErrDuplicateKey = fmt.Errorf("duplicate key: %w", ErrConflict)

	// ErrAggregateStale means a project write succeeded but the client
	// aggregate write did not. The project row stays; the totals drift
	// until the pending adjustments are replayed or a recompute runs.
	ErrAggregateStale = fmt.Errorf("client aggregate not updated: %w", ErrInternal)

	// ErrSequenceExhausted means invoice creation ran out of attempts.
	ErrSequenceExhausted = fmt.Errorf("invoice number retries exhausted: %w", ErrConflict)

	// ErrAmountRange means an amount does not fit the stores' int64 cents.
	// ValidateAmount keeps request amounts well below this.
	ErrAmountRange = fmt.Errorf("amount out of range: %w", ErrInternal)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string // "client", "project", "invoice"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateKeyError is returned by stores when a unique field collides.
type DuplicateKeyError struct {
	Entity string
	Field  string // "email", "number"
	Value  string
}

func (e *DuplicateKeyError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("duplicate %s %s", e.Entity, e.Field)
	}
	return fmt.Sprintf("duplicate %s %s %q", e.Entity, e.Field, e.Value)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// IsDuplicateOn reports whether err is a uniqueness violation on entity.field.
func IsDuplicateOn(err error, entity, field string) bool {
	var dup *DuplicateKeyError
	return errors.As(err, &dup) && dup.Entity == entity && dup.Field == field
}

// OperationError wraps a store failure with the operation it interrupted.
type OperationError struct {
	Op     string // "create", "update", "delete", "get", "list", "increment"
	Entity string
	ID     string
	Err    error
}

func (e *OperationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// AggregateError reports a project mutation whose client totals were not
// (fully) updated. Pending lists the adjustments that still have to be
// applied; Parked tells whether they reached the adjustment log.
type AggregateError struct {
	ProjectID ProjectID
	Pending   []Adjustment
	Parked    bool
	Err       error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("project %s saved but %d client adjustment(s) pending: %v",
		e.ProjectID, len(e.Pending), e.Err)
}

func (e *AggregateError) Unwrap() []error { return []error{ErrAggregateStale, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf classifies err. Anything unrecognised is Internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInternal):
		return KindInternal
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDuplicateKey) && !errors.Is(err, ErrSequenceExhausted)
}

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// wrapStore attaches operation context to a store error. Not-found and
// duplicate-key errors keep their kind; everything else becomes Internal.
func wrapStore(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return notFound(entity, id)
	}
	if errors.Is(err, ErrConflict) {
		return &OperationError{Op: op, Entity: entity, ID: id, Err: err}
	}
	return &OperationError{Op: op, Entity: entity, ID: id, Err: fmt.Errorf("%w: %w", ErrInternal, err)}
}
