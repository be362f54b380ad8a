// Package ingest loads raw CSV and Excel sources into long country/date
// tables.
//
// Each source is described by a declarative Layout: where the files are, which
// row is the header (found by a sentinel or by its column names), which
// columns carry the country, period and value, and which rows to keep. Wide
// files, with one column per period or per country, are unpivoted.
//
// Every record that leaves the loader has a resolved country, a parsed period
// and a numeric or explicitly null value. Rows that cannot satisfy this are
// dropped and counted by reason in LoadStats; unresolved identifiers are also
// logged and collected in a countries.Tracker. A source that yields no records
// at all fails with ErrEmptySource.
package ingest
