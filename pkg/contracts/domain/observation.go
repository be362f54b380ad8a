package domain

import (
	"database/sql"
	"fmt"
	"time"
)

// CountryCode is an ISO-3166 alpha-3 country identifier
type CountryCode string

// Unresolved marks an identifier that could not be mapped to a country
const Unresolved CountryCode = ""

// String returns the code itself
func (c CountryCode) String() string {
	return string(c)
}

// IsResolved reports whether the code is a well-formed alpha-3 code
func (c CountryCode) IsResolved() bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

// MonthStart truncates t to the first day of its month in UTC
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the textual date format used for keys in files and logs
const DateLayout = "2006-01-02"

// ObservationKey identifies one country-month cell row of the panel
type ObservationKey struct {
	Country CountryCode
	Date    time.Time
}

// NewObservationKey builds a key with the date truncated to month start
func NewObservationKey(country CountryCode, date time.Time) ObservationKey {
	return ObservationKey{Country: country, Date: MonthStart(date)}
}

// String renders the key as ISO3@YYYY-MM-DD
func (k ObservationKey) String() string {
	return fmt.Sprintf("%s@%s", k.Country, k.Date.Format(DateLayout))
}

// Less orders keys by country, then date
func (k ObservationKey) Less(other ObservationKey) bool {
	if k.Country != other.Country {
		return k.Country < other.Country
	}
	return k.Date.Before(other.Date)
}

// LongRecord is one ingested observation of one variable.
// Date is the start of the source period (year, quarter, month, day or event date).
type LongRecord struct {
	Country  CountryCode     `json:"country"`
	Date     time.Time       `json:"date"`
	Variable string          `json:"variable"`
	Value    sql.NullFloat64 `json:"value"`
}

// Key returns the month-start observation key of the record
func (r LongRecord) Key() ObservationKey {
	return NewObservationKey(r.Country, r.Date)
}

// Float wraps v as a present value
func Float(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Null is an explicitly missing value
var Null = sql.NullFloat64{}
