package shared

import (
	"errors"
	"fmt"
	"time"
)

// Period identifies one calendar month, formatted as "YYYY-MM". Closing
// snapshots and their boundaries are keyed by this identifier.
type Period string

// ErrInvalidPeriod indicates a malformed period identifier.
var ErrInvalidPeriod = errors.New("shared: invalid period")

// ParsePeriod validates a period identifier.
func ParsePeriod(raw string) (Period, error) {
	if _, err := time.Parse("2006-01", raw); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	return Period(raw), nil
}

// PeriodOf returns the period containing the given date.
func PeriodOf(date time.Time) Period {
	return Period(date.Format("2006-01"))
}

// Start returns the first day of the period at midnight UTC.
func (p Period) Start() time.Time {
	t, _ := time.Parse("2006-01", string(p))
	return t
}

// End returns the last day of the period at midnight UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Contains reports whether the date falls inside the period.
func (p Period) Contains(date time.Time) bool {
	return PeriodOf(date) == p
}

func (p Period) String() string { return string(p) }
