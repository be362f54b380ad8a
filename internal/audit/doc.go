// Package audit measures how complete a panel is, per country, per variable
// and overall.
//
// A country that has no row at all is reported in Report.Absent and kept out
// of every percentage: it signals a resolution or merge gap rather than
// missing data. Reports are plain data; ranking countries for display is up
// to the caller.
package audit
