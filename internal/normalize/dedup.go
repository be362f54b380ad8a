package normalize

import (
	"database/sql"
	"fmt"
	"time"

	"sovpanel/pkg/contracts/domain"
)

// Policy decides which of several observations for the same country and
// source period survives.
type Policy string

const (
	// KeepFirst keeps the first observation in load order
	KeepFirst Policy = "keep_first"
	// KeepLast keeps the last observation in load order, treating later files as revisions
	KeepLast Policy = "keep_last"
	// FailOnConflict aborts when repeated observations disagree
	FailOnConflict Policy = "fail"
)

// ParsePolicy validates a policy name. An empty name means KeepFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return KeepFirst, nil
	case KeepFirst, KeepLast, FailOnConflict:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q", s)
}

// ConflictError reports two different values for the same country and period
type ConflictError struct {
	Variable string
	Country  domain.CountryCode
	Period   time.Time
	First    sql.NullFloat64
	Second   sql.NullFloat64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflicting observations for %s at %s: %s vs %s",
		e.Variable, e.Country, e.Period.Format(domain.DateLayout), formatValue(e.First), formatValue(e.Second))
}

func formatValue(v sql.NullFloat64) string {
	if !v.Valid {
		return "null"
	}
	return fmt.Sprintf("%g", v.Float64)
}

// periodKey is a country and the start of a source period
type periodKey struct {
	country domain.CountryCode
	start   time.Time
}

// periodStart maps a date to the start of the source period holding it
func periodStart(freq domain.Frequency, t time.Time) time.Time {
	t = t.UTC()
	switch freq {
	case domain.FrequencyAnnual:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case domain.FrequencyQuarterly:
		m := ((int(t.Month())-1)/3)*3 + 1
		return time.Date(t.Year(), time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	case domain.FrequencyMonthly:
		return domain.MonthStart(t)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func sameValue(a, b sql.NullFloat64) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Float64 == b.Float64
}

// dedupResult carries the surviving records and what was discarded
type dedupResult struct {
	records    []domain.LongRecord
	duplicates int
	conflicts  []*ConflictError
}

// dedup collapses repeated country-period observations according to policy.
// Record dates are replaced by their period start. Survivors keep the position
// of the first occurrence.
func dedup(table *domain.Table, policy Policy) (dedupResult, error) {
	var res dedupResult
	index := make(map[periodKey]int, len(table.Records))

	for _, r := range table.Records {
		key := periodKey{country: r.Country, start: periodStart(table.Frequency, r.Date)}
		r.Date = key.start

		i, seen := index[key]
		if !seen {
			index[key] = len(res.records)
			res.records = append(res.records, r)
			continue
		}

		res.duplicates++
		prev := res.records[i]
		if sameValue(prev.Value, r.Value) {
			continue
		}

		conflict := &ConflictError{
			Variable: table.Variable,
			Country:  r.Country,
			Period:   key.start,
			First:    prev.Value,
			Second:   r.Value,
		}
		res.conflicts = append(res.conflicts, conflict)
		if policy == FailOnConflict {
			return res, conflict
		}
		if policy == KeepLast {
			res.records[i] = r
		}
	}
	return res, nil
}
