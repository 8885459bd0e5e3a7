package search

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/vault"
)

// ConstraintKind tags the variants of a temporal constraint.
type ConstraintKind string

const (
	ConstraintNone     ConstraintKind = "none"
	ConstraintRelative ConstraintKind = "relative"
	ConstraintAbsolute ConstraintKind = "absolute"
)

// TemporalConstraint optionally restricts a search to a date range: either
// "the last N days" or an explicit start/end pair (inclusive on both ends).
type TemporalConstraint struct {
	Kind  ConstraintKind
	Days  int    // relative
	Start string // absolute, YYYY-MM-DD
	End   string // absolute, YYYY-MM-DD
}

// None returns the unconstrained value.
func None() TemporalConstraint {
	return TemporalConstraint{Kind: ConstraintNone}
}

// LastDays constrains to the n days up to and including today.
func LastDays(n int) TemporalConstraint {
	return TemporalConstraint{Kind: ConstraintRelative, Days: n}
}

// Between constrains to [start, end], both inclusive.
func Between(start, end string) TemporalConstraint {
	return TemporalConstraint{Kind: ConstraintAbsolute, Start: start, End: end}
}

// Window resolves the constraint to an inclusive [start, end] date-key pair
// at evaluation time now. bounded is false for the unconstrained case.
func (tc TemporalConstraint) Window(now time.Time) (start, end string, bounded bool, err error) {
	switch tc.Kind {
	case ConstraintNone, "":
		return "", "", false, nil
	case ConstraintRelative:
		if tc.Days <= 0 {
			return "", "", false, fmt.Errorf("relative constraint needs positive days, got %d", tc.Days)
		}
		end = vault.DateKey(now)
		start = vault.DateKey(now.AddDate(0, 0, -tc.Days))
		return start, end, true, nil
	case ConstraintAbsolute:
		if _, err := vault.ParseDate(tc.Start); err != nil {
			return "", "", false, err
		}
		if _, err := vault.ParseDate(tc.End); err != nil {
			return "", "", false, err
		}
		if tc.Start > tc.End {
			return "", "", false, fmt.Errorf("constraint start %s after end %s", tc.Start, tc.End)
		}
		return tc.Start, tc.End, true, nil
	default:
		return "", "", false, fmt.Errorf("unknown constraint kind %q", tc.Kind)
	}
}

// Contains reports whether the date key falls inside the resolved window.
// Date keys compare correctly as strings because of the fixed layout.
func contains(start, end, date string) bool {
	return date >= start && date <= end
}
