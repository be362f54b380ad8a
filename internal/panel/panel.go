package panel

import (
	"database/sql"
	"sort"

	"sovpanel/pkg/contracts/domain"
)

// Panel is a wide table keyed by country and month with one column per
// variable. Keys are unique by construction and columns keep merge order.
// A Panel is not safe for concurrent use.
type Panel struct {
	columns  []string
	colIndex map[string]int
	rows     map[domain.ObservationKey][]sql.NullFloat64
}

// New returns an empty panel
func New() *Panel {
	return &Panel{
		colIndex: make(map[string]int),
		rows:     make(map[domain.ObservationKey][]sql.NullFloat64),
	}
}

// Columns returns the variable columns in merge order
func (p *Panel) Columns() []string {
	return append([]string(nil), p.columns...)
}

// HasColumn reports whether a variable is already merged
func (p *Panel) HasColumn(name string) bool {
	_, ok := p.colIndex[name]
	return ok
}

// Len returns the number of rows
func (p *Panel) Len() int {
	return len(p.rows)
}

// Keys returns all row keys sorted by country then date
func (p *Panel) Keys() []domain.ObservationKey {
	keys := make([]domain.ObservationKey, 0, len(p.rows))
	for k := range p.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Row returns a copy of the values of one row in column order
func (p *Panel) Row(key domain.ObservationKey) ([]sql.NullFloat64, bool) {
	row, ok := p.rows[key]
	if !ok {
		return nil, false
	}
	return append([]sql.NullFloat64(nil), row...), true
}

// Value returns one cell. ok is false when the row or column does not exist.
func (p *Panel) Value(key domain.ObservationKey, column string) (v sql.NullFloat64, ok bool) {
	i, hasCol := p.colIndex[column]
	row, hasRow := p.rows[key]
	if !hasCol || !hasRow {
		return sql.NullFloat64{}, false
	}
	return row[i], true
}

// Countries returns the distinct countries with at least one row, sorted
func (p *Panel) Countries() []domain.CountryCode {
	seen := make(map[domain.CountryCode]struct{})
	for k := range p.rows {
		seen[k.Country] = struct{}{}
	}
	out := make([]domain.CountryCode, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Span returns the first and last month in the panel
func (p *Panel) Span() (first, last domain.ObservationKey, ok bool) {
	for k := range p.rows {
		if !ok || k.Date.Before(first.Date) {
			first = k
		}
		if !ok || k.Date.After(last.Date) {
			last = k
		}
		ok = true
	}
	return first, last, ok
}

func (p *Panel) addColumn(name string) int {
	p.colIndex[name] = len(p.columns)
	p.columns = append(p.columns, name)
	for k, row := range p.rows {
		p.rows[k] = append(row, sql.NullFloat64{})
	}
	return len(p.columns) - 1
}

func (p *Panel) addRow(key domain.ObservationKey) []sql.NullFloat64 {
	row := make([]sql.NullFloat64, len(p.columns))
	p.rows[key] = row
	return row
}
