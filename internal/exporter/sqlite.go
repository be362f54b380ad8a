package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"sovpanel/internal/audit"
	"sovpanel/internal/panel"
)

// SQLiteSink mirrors the panel and its coverage into a SQLite database.
// Each write drops and recreates its table, matching the overwrite
// semantics of the CSV outputs.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens or creates the database at path
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteSink{db: db, logger: logger.With(slog.String("component", "sqlite"))}, nil
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// DB exposes the handle for read queries
func (s *SQLiteSink) DB() *sql.DB {
	return s.db
}

// quoteIdent quotes a column or table name
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// WritePanel replaces the panel table with the contents of p
func (s *SQLiteSink) WritePanel(ctx context.Context, p *panel.Panel) error {
	cols := p.Columns()

	defs := []string{"iso3 TEXT NOT NULL", "date TEXT NOT NULL"}
	names := []string{"iso3", "date"}
	for _, c := range cols {
		defs = append(defs, quoteIdent(c)+" REAL")
		names = append(names, quoteIdent(c))
	}
	defs = append(defs, "PRIMARY KEY (iso3, date)")
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")

	return s.replace(ctx, "panel", strings.Join(defs, ", "), func(tx *sql.Tx) (int, error) {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO panel (%s) VALUES (%s)",
			strings.Join(names, ", "), placeholders))
		if err != nil {
			return 0, err
		}
		defer stmt.Close()

		keys := p.Keys()
		args := make([]any, len(names))
		for _, k := range keys {
			row, _ := p.Row(k)
			args[0] = string(k.Country)
			args[1] = formatDate(k.Date)
			for i, v := range row {
				args[i+2] = v
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return 0, fmt.Errorf("inserting %s: %w", k, err)
			}
		}
		return len(keys), nil
	})
}

// WriteCoverage replaces the coverage_country and coverage_variable tables
func (s *SQLiteSink) WriteCoverage(ctx context.Context, report audit.Report) error {
	err := s.replace(ctx, "coverage_country",
		"iso3 TEXT PRIMARY KEY, rows INTEGER, cells INTEGER, non_null INTEGER, completeness_pct REAL, absent INTEGER",
		func(tx *sql.Tx) (int, error) {
			n := 0
			for _, c := range report.Countries {
				if _, err := tx.ExecContext(ctx, "INSERT INTO coverage_country VALUES (?, ?, ?, ?, ?, 0)",
					string(c.Country), c.Rows, c.Cells, c.NonNull, c.Completeness); err != nil {
					return n, err
				}
				n++
			}
			for _, c := range report.Absent {
				if _, err := tx.ExecContext(ctx, "INSERT INTO coverage_country VALUES (?, 0, 0, 0, NULL, 1)", string(c)); err != nil {
					return n, err
				}
				n++
			}
			return n, nil
		})
	if err != nil {
		return err
	}

	return s.replace(ctx, "coverage_variable",
		"variable TEXT PRIMARY KEY, cells INTEGER, non_null INTEGER, completeness_pct REAL, countries INTEGER",
		func(tx *sql.Tx) (int, error) {
			for i, v := range report.Variables {
				if _, err := tx.ExecContext(ctx, "INSERT INTO coverage_variable VALUES (?, ?, ?, ?, ?)",
					v.Variable, v.Cells, v.NonNull, v.Completeness, v.Countries); err != nil {
					return i, err
				}
			}
			return len(report.Variables), nil
		})
}

// replace recreates table inside one transaction and fills it
func (s *SQLiteSink) replace(ctx context.Context, table, columns string, fill func(*sql.Tx) (int, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), columns)); err != nil {
		return fmt.Errorf("creating %s: %w", table, err)
	}
	n, err := fill(tx)
	if err != nil {
		return fmt.Errorf("filling %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", table, err)
	}

	s.logger.Info("SQLite table written", slog.String("table", table), slog.Int("rows", n))
	return nil
}
