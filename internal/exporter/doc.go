// Package exporter writes the panel, its long-format inputs and its coverage
// reports.
//
// CSVWriter is the main output. Files are written to a temporary sibling and
// renamed into place, so each run fully overwrites its targets. The panel
// layout is iso3,date followed by one column per variable in merge order;
// null cells are empty and floats use their shortest exact representation.
//
// SQLiteSink optionally mirrors the same data into tables named panel,
// coverage_country and coverage_variable.
//
// Example usage:
//
//	w := exporter.NewCSVWriter("data/out", logger)
//	if err := w.WritePanel("panel.csv", p); err != nil {
//		return err
//	}
//	if err := w.WriteVariableCoverage("coverage_variable.csv", report); err != nil {
//		return err
//	}
package exporter
