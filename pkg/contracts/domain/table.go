package domain

import (
	"fmt"
	"strings"
)

// Frequency is the native sampling frequency of a source series
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
	// FrequencyEvent is an irregular series such as rating actions, where a
	// value holds until the next event.
	FrequencyEvent Frequency = "event"
)

// ParseFrequency parses a frequency name, accepting a few common spellings
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "d":
		return FrequencyDaily, nil
	case "monthly", "m":
		return FrequencyMonthly, nil
	case "quarterly", "q":
		return FrequencyQuarterly, nil
	case "annual", "yearly", "a", "y":
		return FrequencyAnnual, nil
	case "event", "irregular":
		return FrequencyEvent, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// MonthsPerPeriod is the number of months one period spans, or 0 when the
// period does not map to a fixed month count.
func (f Frequency) MonthsPerPeriod() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencyAnnual:
		return 12
	}
	return 0
}

// Table is a long-format series for one variable from one source
type Table struct {
	Variable  string       `json:"variable"`
	Source    string       `json:"source"`
	Frequency Frequency    `json:"frequency"`
	Records   []LongRecord `json:"records"`
}

// Len returns the number of records
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Countries returns the distinct countries in first-seen order
func (t *Table) Countries() []CountryCode {
	seen := make(map[CountryCode]struct{})
	var out []CountryCode
	for _, r := range t.Records {
		if _, ok := seen[r.Country]; ok {
			continue
		}
		seen[r.Country] = struct{}{}
		out = append(out, r.Country)
	}
	return out
}
