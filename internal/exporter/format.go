package exporter

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"sovpanel/pkg/contracts/domain"
)

// formatValue renders a cell with the shortest representation that reads
// back to the same float. Nulls are empty.
func formatValue(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

// formatPercent formats a percentage with exactly 2 decimal places
func formatPercent(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

func joinCodes(codes []domain.CountryCode) string {
	s := make([]string, len(codes))
	for i, c := range codes {
		s[i] = string(c)
	}
	return strings.Join(s, ";")
}
