package exporter

import (
	"encoding/csv"
	"fmt"
	"strings"

	"sovpanel/internal/audit"
	"sovpanel/internal/countries"
	"sovpanel/internal/panel"
	"sovpanel/pkg/contracts/domain"
)

// WritePanel writes one row per country-month sorted by country then date,
// with the variable columns in merge order.
func (w *CSVWriter) WritePanel(filePath string, p *panel.Panel) error {
	headers := append([]string{panel.CountryColumn, panel.DateColumn}, p.Columns()...)
	return w.stream(filePath, headers, func(cw *csv.Writer) (int, error) {
		keys := p.Keys()
		record := make([]string, len(headers))
		for i, k := range keys {
			row, _ := p.Row(k)
			record[0] = string(k.Country)
			record[1] = formatDate(k.Date)
			for j, v := range row {
				record[j+2] = formatValue(v)
			}
			if err := cw.Write(record); err != nil {
				return i, fmt.Errorf("failed to write row %s: %w", k, err)
			}
		}
		return len(keys), nil
	})
}

// WriteLong writes tables as iso3,date,variable,value rows in table order
func (w *CSVWriter) WriteLong(filePath string, tables []*domain.Table) error {
	headers := []string{panel.CountryColumn, panel.DateColumn, "variable", "value"}
	return w.stream(filePath, headers, func(cw *csv.Writer) (int, error) {
		n := 0
		for _, t := range tables {
			for _, r := range t.Records {
				if err := cw.Write([]string{string(r.Country), formatDate(r.Date), t.Variable, formatValue(r.Value)}); err != nil {
					return n, err
				}
				n++
			}
		}
		return n, nil
	})
}

// WriteCountryCoverage writes the per-country section of a coverage report
func (w *CSVWriter) WriteCountryCoverage(filePath string, report audit.Report) error {
	headers := []string{"iso3", "rows", "cells", "non_null", "completeness_pct", "first_month", "last_month", "empty_variables"}
	records := make([][]string, 0, len(report.Countries)+len(report.Absent))
	for _, c := range report.Countries {
		records = append(records, []string{
			string(c.Country),
			formatInt(c.Rows),
			formatInt(c.Cells),
			formatInt(c.NonNull),
			formatPercent(c.Completeness),
			formatDate(c.FirstMonth),
			formatDate(c.LastMonth),
			strings.Join(c.EmptyVariables, ";"),
		})
	}
	// absent countries are listed with zero rows and no percentage
	for _, c := range report.Absent {
		records = append(records, []string{string(c), "0", "0", "0", "", "", "", ""})
	}
	return w.WriteCSV(filePath, WriteOptions{Headers: headers, Records: records})
}

// WriteVariableCoverage writes the per-variable section of a coverage report
func (w *CSVWriter) WriteVariableCoverage(filePath string, report audit.Report) error {
	headers := []string{"variable", "cells", "non_null", "completeness_pct", "countries"}
	records := make([][]string, 0, len(report.Variables))
	for _, v := range report.Variables {
		records = append(records, []string{
			v.Variable,
			formatInt(v.Cells),
			formatInt(v.NonNull),
			formatPercent(v.Completeness),
			formatInt(v.Countries),
		})
	}
	return w.WriteCSV(filePath, WriteOptions{Headers: headers, Records: records})
}

// WriteUnresolved writes the identifiers no country could be found for
func (w *CSVWriter) WriteUnresolved(filePath string, entries []countries.UnresolvedEntry) error {
	headers := []string{"raw", "source", "method", "candidates", "rows"}
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{e.Raw, e.Source, string(e.Method), joinCodes(e.Candidates), formatInt(e.Count)})
	}
	return w.WriteCSV(filePath, WriteOptions{Headers: headers, Records: records})
}
