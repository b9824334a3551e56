package billing

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	maxNameLength    = 120
	maxCompanyLength = 120
)

// Clock returns the current time. Services take one so tests can pin "today".
type Clock func() time.Time

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfMonth returns the first instant of t's month in UTC.
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ValidateAmount rejects negative amounts, amounts above MaxAmount and
// sub-cent precision.
func ValidateAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return invalid(field, "must be non-negative")
	}
	if d.GreaterThan(MaxAmount) {
		return invalid(field, "must be at most %s", MaxAmount.StringFixed(MoneyPlaces))
	}
	if !d.Equal(d.Round(MoneyPlaces)) {
		return invalid(field, "must have at most %d decimal places", MoneyPlaces)
	}
	return nil
}

// ValidateDeadline rejects deadlines before the current UTC day.
func ValidateDeadline(deadline, now time.Time) error {
	if deadline.IsZero() {
		return invalid("deadline", "is required")
	}
	if deadline.UTC().Before(StartOfDay(now)) {
		return invalid("deadline", "cannot be in the past")
	}
	return nil
}

func validateID(field, id string) error {
	if !ValidID(id) {
		return invalid(field, "malformed identifier %q", id)
	}
	return nil
}

func validateName(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalid(field, "is required")
	}
	if len(value) > max {
		return "", invalid(field, "must be at most %d characters", max)
	}
	return value, nil
}

func validateEmail(email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "%q is not a valid address", email)
	}
	return email, nil
}
