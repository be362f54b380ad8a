package audit

import (
	"fmt"
	"sort"
	"time"

	"sovpanel/internal/panel"
	"sovpanel/pkg/contracts/domain"
)

// CountryCoverage is the coverage of one country with at least one row
type CountryCoverage struct {
	Country      domain.CountryCode `json:"country"`
	Rows         int                `json:"rows"`
	Cells        int                `json:"cells"`
	NonNull      int                `json:"non_null"`
	Completeness float64            `json:"completeness_pct"`
	FirstMonth   time.Time          `json:"first_month"`
	LastMonth    time.Time          `json:"last_month"`
	// EmptyVariables are the columns with no value at all for this country
	EmptyVariables []string `json:"empty_variables"`
}

// VariableCoverage is the coverage of one panel column
type VariableCoverage struct {
	Variable     string  `json:"variable"`
	Cells        int     `json:"cells"`
	NonNull      int     `json:"non_null"`
	Completeness float64 `json:"completeness_pct"`
	// Countries counts countries with at least one value in this column
	Countries int `json:"countries"`
}

// Report is the coverage of a panel at one point in time
type Report struct {
	Rows      int                `json:"rows"`
	Columns   int                `json:"columns"`
	Cells     int                `json:"cells"`
	NonNull   int                `json:"non_null"`
	Overall   float64            `json:"overall_pct"`
	Countries []CountryCoverage  `json:"countries"`
	Variables []VariableCoverage `json:"variables"`
	// Absent are expected countries with no row at all. They point at a
	// resolver or merge gap and are excluded from every percentage.
	Absent []domain.CountryCode `json:"absent"`
	// Unexpected are countries in the panel that were not expected
	Unexpected []domain.CountryCode `json:"unexpected"`
	Ready      bool                 `json:"ready"`
	Issues     []string             `json:"issues"`
}

// Auditor computes coverage reports
type Auditor struct {
	// Expected lists the countries the panel should contain. Empty disables
	// the absent and unexpected checks.
	Expected []domain.CountryCode
	// MinCompleteness is the overall percentage below which a panel is not ready
	MinCompleteness float64
}

// Audit computes the coverage of p. It does not modify p and returns the
// same report for the same panel. Countries are sorted by code and
// variables keep column order.
func (a Auditor) Audit(p *panel.Panel) Report {
	columns := p.Columns()
	report := Report{Rows: p.Len(), Columns: len(columns)}

	variables := make([]VariableCoverage, len(columns))
	for i, c := range columns {
		variables[i].Variable = c
	}

	byCountry := make(map[domain.CountryCode]*CountryCoverage)
	perCountryNonNull := make(map[domain.CountryCode][]int)
	var order []domain.CountryCode

	for _, key := range p.Keys() {
		row, _ := p.Row(key)
		cc, ok := byCountry[key.Country]
		if !ok {
			cc = &CountryCoverage{Country: key.Country, FirstMonth: key.Date}
			byCountry[key.Country] = cc
			perCountryNonNull[key.Country] = make([]int, len(columns))
			order = append(order, key.Country)
		}
		cc.Rows++
		cc.LastMonth = key.Date
		counts := perCountryNonNull[key.Country]
		for i, v := range row {
			cc.Cells++
			variables[i].Cells++
			if v.Valid {
				cc.NonNull++
				variables[i].NonNull++
				counts[i]++
			}
		}
	}

	for _, c := range order {
		cc := byCountry[c]
		cc.Completeness = percent(cc.NonNull, cc.Cells)
		for i, n := range perCountryNonNull[c] {
			if n == 0 {
				cc.EmptyVariables = append(cc.EmptyVariables, columns[i])
			} else {
				variables[i].Countries++
			}
		}
		report.Countries = append(report.Countries, *cc)
		report.Cells += cc.Cells
		report.NonNull += cc.NonNull
	}
	for i := range variables {
		variables[i].Completeness = percent(variables[i].NonNull, variables[i].Cells)
	}
	report.Variables = variables
	report.Overall = percent(report.NonNull, report.Cells)

	if len(a.Expected) > 0 {
		expected := make(map[domain.CountryCode]struct{}, len(a.Expected))
		for _, c := range a.Expected {
			expected[c] = struct{}{}
			if _, ok := byCountry[c]; !ok {
				report.Absent = append(report.Absent, c)
			}
		}
		for _, c := range order {
			if _, ok := expected[c]; !ok {
				report.Unexpected = append(report.Unexpected, c)
			}
		}
		sort.Slice(report.Absent, func(i, j int) bool { return report.Absent[i] < report.Absent[j] })
		report.Absent = dedupSorted(report.Absent)
	}

	report.Issues = a.issues(report)
	report.Ready = len(report.Issues) == 0
	return report
}

func (a Auditor) issues(r Report) []string {
	var issues []string
	if r.Rows == 0 {
		issues = append(issues, "panel is empty")
	}
	if len(r.Absent) > 0 {
		issues = append(issues, fmt.Sprintf("%d expected countries have no rows: %v", len(r.Absent), r.Absent))
	}
	if r.Rows > 0 && r.Overall < a.MinCompleteness {
		issues = append(issues, fmt.Sprintf("overall completeness %.1f%% is below %.1f%%", r.Overall, a.MinCompleteness))
	}
	for _, v := range r.Variables {
		if v.Cells > 0 && v.NonNull == 0 {
			issues = append(issues, fmt.Sprintf("variable %s has no values", v.Variable))
		}
	}
	return issues
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

func dedupSorted(codes []domain.CountryCode) []domain.CountryCode {
	out := codes[:0]
	for i, c := range codes {
		if i > 0 && c == codes[i-1] {
			continue
		}
		out = append(out, c)
	}
	return out
}
