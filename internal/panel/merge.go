package panel

import (
	"errors"
	"fmt"

	"sovpanel/pkg/contracts/domain"
)

// JoinKind selects which incoming keys a merge keeps
type JoinKind string

const (
	// JoinOuter adds rows for incoming keys the panel lacks
	JoinOuter JoinKind = "outer"
	// JoinLeft keeps only the panel's rows and drops unmatched incoming keys.
	// The first merge into an empty panel always seeds its rows.
	JoinLeft JoinKind = "left"
)

var (
	// ErrDuplicateColumn is returned when a variable is merged twice
	ErrDuplicateColumn = errors.New("column already in panel")
	// ErrNotMonthAligned is returned for input dates that are not month starts
	ErrNotMonthAligned = errors.New("observation date is not a month start")
)

// DuplicateKeyError reports a non-unique key in an incoming table
type DuplicateKeyError struct {
	Variable string
	Key      domain.ObservationKey
	Count    int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: key %s appears %d times", e.Variable, e.Key, e.Count)
}

// CardinalityError reports a merge whose row count differs from the key arithmetic
type CardinalityError struct {
	Variable string
	Before   int
	Expected int
	After    int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("%s: merge produced %d rows from %d, expected %d", e.Variable, e.After, e.Before, e.Expected)
}

// GrowthError reports a merge adding more new rows than the tolerance allows
type GrowthError struct {
	Variable string
	Before   int
	NewKeys  int
	Limit    float64
}

func (e *GrowthError) Error() string {
	return fmt.Sprintf("%s: merge would add %d rows to %d (limit %.0f%%)",
		e.Variable, e.NewKeys, e.Before, e.Limit*100)
}

// MergeOptions controls one merge
type MergeOptions struct {
	Kind JoinKind
	// MaxGrowth bounds new rows as a fraction of the existing row count.
	// Zero disables the check; it never applies to the first merge.
	MaxGrowth float64
}

// MergeReport describes the row arithmetic of one merge
type MergeReport struct {
	Variable   string   `json:"variable"`
	Kind       JoinKind `json:"kind"`
	RowsBefore int      `json:"rows_before"`
	RowsAfter  int      `json:"rows_after"`
	Incoming   int      `json:"incoming"`
	NewKeys    int      `json:"new_keys"`
	Matched    int      `json:"matched"`
	Dropped    int      `json:"dropped"`
}

// Merge folds a monthly table into the panel as a new column. Input checks
// run before the panel is touched, so a rejected table leaves it unchanged.
// The cardinality check runs after the write and asserts the row arithmetic
// of the result; a CardinalityError means the panel is no longer trustworthy.
func (p *Panel) Merge(table *domain.Table, opts MergeOptions) (MergeReport, error) {
	kind := opts.Kind
	if kind == "" {
		kind = JoinOuter
	}
	report := MergeReport{Variable: table.Variable, Kind: kind, RowsBefore: p.Len(), Incoming: table.Len()}

	if kind != JoinOuter && kind != JoinLeft {
		return report, fmt.Errorf("unknown join kind %q", kind)
	}
	if table.Variable == "" {
		return report, errors.New("table has no variable name")
	}
	if p.HasColumn(table.Variable) {
		return report, fmt.Errorf("%w: %s", ErrDuplicateColumn, table.Variable)
	}

	counts := make(map[domain.ObservationKey]int, table.Len())
	for _, r := range table.Records {
		if !r.Date.Equal(domain.MonthStart(r.Date)) {
			return report, fmt.Errorf("%w: %s %s", ErrNotMonthAligned, table.Variable, r.Date.Format(domain.DateLayout))
		}
		counts[r.Key()]++
	}
	for _, r := range table.Records {
		if n := counts[r.Key()]; n > 1 {
			return report, &DuplicateKeyError{Variable: table.Variable, Key: r.Key(), Count: n}
		}
	}

	seed := len(p.columns) == 0
	for key := range counts {
		if _, ok := p.rows[key]; ok {
			report.Matched++
		} else {
			report.NewKeys++
		}
	}
	if kind == JoinLeft && !seed {
		report.Dropped = report.NewKeys
		report.NewKeys = 0
	}
	expected := report.RowsBefore + report.NewKeys

	if opts.MaxGrowth > 0 && report.RowsBefore > 0 &&
		float64(report.NewKeys) > opts.MaxGrowth*float64(report.RowsBefore) {
		return report, &GrowthError{
			Variable: table.Variable,
			Before:   report.RowsBefore,
			NewKeys:  report.NewKeys,
			Limit:    opts.MaxGrowth,
		}
	}

	keepNew := kind == JoinOuter || seed
	col := p.addColumn(table.Variable)
	for _, r := range table.Records {
		row, ok := p.rows[r.Key()]
		if !ok {
			if !keepNew {
				continue
			}
			row = p.addRow(r.Key())
		}
		row[col] = r.Value
	}

	report.RowsAfter = p.Len()
	if report.RowsAfter != expected {
		return report, &CardinalityError{
			Variable: table.Variable,
			Before:   report.RowsBefore,
			Expected: expected,
			After:    report.RowsAfter,
		}
	}
	return report, nil
}
