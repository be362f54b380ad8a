package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	yearPattern      = regexp.MustCompile(`^(\d{4})(?:\.0+)?$`)
	quarterPattern   = regexp.MustCompile(`^(\d{4})[-_ ]?[Qq]([1-4])$`)
	monthCodePattern = regexp.MustCompile(`^(\d{4})[Mm](\d{1,2})$`)
	yearMonthPattern = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})$`)

	// serialPattern matches Excel date serials from 1927 to 2173
	serialPattern = regexp.MustCompile(`^\d{5}(?:\.\d+)?$`)
)

// dateLayouts are tried after any layout-specific formats
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"02.01.2006",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"02-Jan-2006",
	"2 Jan 2006",
}

// ParsePeriod parses a period label and returns the start of the period in UTC.
// Recognized forms are YYYY, YYYY-Qn, YYYYQn, YYYYMmm, YYYY-MM and full dates.
// formats are tried before the built-in date layouts.
func ParsePeriod(s string, formats []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty period")
	}

	if m := yearPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), nil
	}
	if m := quarterPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		return time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC), nil
	}
	if m := monthCodePattern.FindStringSubmatch(s); m != nil {
		return yearMonth(m[1], m[2], s)
	}
	if m := yearMonthPattern.FindStringSubmatch(s); m != nil {
		return yearMonth(m[1], m[2], s)
	}

	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDay(t), nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized period %q", s)
}

// parsePeriodCell is ParsePeriod plus Excel date serials for cells read
// from workbooks
func parsePeriodCell(s string, formats []string, excel bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if excel && serialPattern.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad date serial %q: %w", s, err)
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad date serial %q: %w", s, err)
		}
		return calendarDay(t), nil
	}
	return ParsePeriod(s, formats)
}

// calendarDay keeps the date as written, dropping the clock and the offset,
// so 2020-03-01T00:00+02:00 stays in March.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func yearMonth(y, m, raw string) (time.Time, error) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month out of range in %q", raw)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}
