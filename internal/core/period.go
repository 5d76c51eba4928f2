package core

import (
	"fmt"
	"strings"
	"time"
)

// Period is a reporting month label. It selects which Target_/Actual_ columns
// take part in a report.
type Period string

const (
	TargetPrefix = "Target_"
	ActualPrefix = "Actual_"
)

// Periods lists the recognised labels in calendar order.
var Periods = []Period{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// ParsePeriod accepts only the exact labels in Periods. Column lookups are
// case sensitive, so "jan" or "January" are rejected rather than normalised.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.TrimSpace(s))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidPeriod, s, periodList())
	}
	return p, nil
}

// PeriodOf returns the label for the month of t.
func PeriodOf(t time.Time) Period {
	return Periods[int(t.Month())-1]
}

// Valid reports whether p is one of the 12 recognised labels.
func (p Period) Valid() bool {
	for _, v := range Periods {
		if v == p {
			return true
		}
	}
	return false
}

// TargetColumn returns the config column holding targets for p, e.g. "Target_Jan".
func (p Period) TargetColumn() string {
	return TargetPrefix + string(p)
}

// ActualColumn returns the actuals column holding values for p, e.g. "Actual_Jan".
func (p Period) ActualColumn() string {
	return ActualPrefix + string(p)
}

func (p Period) String() string {
	return string(p)
}

func periodList() string {
	labels := make([]string, len(Periods))
	for i, p := range Periods {
		labels[i] = string(p)
	}
	return strings.Join(labels, ",")
}
