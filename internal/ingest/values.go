package ingest

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// nullSentinels are cell contents that mean "no observation"
var nullSentinels = map[string]struct{}{
	"":     {},
	"n/a":  {},
	"na":   {},
	"nan":  {},
	"null": {},
	"none": {},
	"#n/a": {},
	"..":   {},
	"...":  {},
	"-":    {},
	"--":   {},
}

// isMissing reports whether a cell holds one of the null sentinels
func isMissing(raw string) bool {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
	_, ok := nullSentinels[strings.ToLower(s)]
	return ok
}

// ParseValue converts a raw cell into a numeric or explicitly null value.
// Thousands separators, surrounding quotes and a trailing percent sign are
// stripped. Anything else that is not a number is an error.
func ParseValue(raw string) (sql.NullFloat64, error) {
	if isMissing(raw) {
		return sql.NullFloat64{}, nil
	}
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSuffix(s, "%")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, fmt.Errorf("non-numeric value %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}, nil
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}
