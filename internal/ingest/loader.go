package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sovpanel/internal/countries"
	"sovpanel/internal/files"
	"sovpanel/pkg/contracts/domain"
)

var (
	// ErrEmptySource is returned when no record survives filtering and parsing
	ErrEmptySource = errors.New("no rows survived loading")
	// ErrNoFiles is returned when a source path matches nothing
	ErrNoFiles = errors.New("no files match source path")
)

// Drop reasons reported in LoadStats.Drops
const (
	DropUnresolvedCountry = "unresolved_country"
	DropBadDate           = "bad_date"
	DropBadValue          = "bad_value"
	DropOutOfRange        = "out_of_range"
	DropNullValue         = "null_value"
	// DropMissingCountry counts rows whose country cell is empty or a null
	// marker such as NA, which would otherwise resolve to Namibia
	DropMissingCountry = "missing_country"
)

// LoadStats counts what happened to the rows of one source
type LoadStats struct {
	Source     string         `json:"source"`
	Files      int            `json:"files"`
	RowsRead   int            `json:"rows_read"`
	Filtered   int            `json:"filtered"`
	Kept       int            `json:"kept"`
	NullValues int            `json:"null_values"`
	Drops      map[string]int `json:"drops"`
}

// Dropped returns the total number of dropped observations
func (s LoadStats) Dropped() int {
	n := 0
	for _, c := range s.Drops {
		n += c
	}
	return n
}

func (s *LoadStats) drop(reason string) {
	if s.Drops == nil {
		s.Drops = make(map[string]int)
	}
	s.Drops[reason]++
}

// Result is the outcome of loading one layout
type Result struct {
	Layout Layout
	Table  *domain.Table
	Stats  LoadStats
}

// Loader turns raw files into long tables
type Loader struct {
	resolver    *countries.Resolver
	tracker     *countries.Tracker
	discovery   *files.Discovery
	logger      *slog.Logger
	parallelism int
}

// NewLoader creates a loader. A nil tracker or logger gets a default.
func NewLoader(resolver *countries.Resolver, tracker *countries.Tracker, discovery *files.Discovery, logger *slog.Logger) *Loader {
	if resolver == nil {
		resolver = countries.Default()
	}
	if tracker == nil {
		tracker = countries.NewTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		resolver:    resolver,
		tracker:     tracker,
		discovery:   discovery,
		logger:      logger.With(slog.String("component", "ingest")),
		parallelism: 1,
	}
}

// SetParallelism sets how many sources LoadAll reads at once
func (l *Loader) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	l.parallelism = n
}

// Tracker returns the unresolved-identifier tracker shared by all loads
func (l *Loader) Tracker() *countries.Tracker {
	return l.tracker
}

// LoadAll loads every layout, concurrently up to the configured parallelism.
// Results keep the order of layouts. The first failing source cancels the rest.
func (l *Loader) LoadAll(ctx context.Context, layouts []Layout) ([]Result, error) {
	results := make([]Result, len(layouts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)

	for i, layout := range layouts {
		g.Go(func() error {
			table, stats, err := l.Load(ctx, layout)
			results[i] = Result{Layout: layout, Table: table, Stats: stats}
			if err != nil {
				return fmt.Errorf("source %s: %w", layout.Name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Load reads every file matched by the layout and returns its records in
// file-name then row order.
func (l *Loader) Load(ctx context.Context, layout Layout) (*domain.Table, LoadStats, error) {
	stats := LoadStats{Source: layout.Name, Drops: make(map[string]int)}
	start := time.Now()

	if err := layout.Validate(); err != nil {
		return nil, stats, err
	}
	c, err := layout.compile()
	if err != nil {
		return nil, stats, err
	}

	matched, err := l.discovery.FindFilesByPattern(layout.Path)
	if err != nil {
		return nil, stats, err
	}
	if len(matched) == 0 {
		return nil, stats, fmt.Errorf("%w: %s", ErrNoFiles, l.discovery.Resolve(layout.Path))
	}

	table := &domain.Table{
		Variable:  layout.Variable,
		Source:    layout.Name,
		Frequency: layout.Frequency,
	}

	for _, f := range matched {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if err := l.loadFile(c, f.Path, table, &stats); err != nil {
			return nil, stats, fmt.Errorf("%s: %w", f.Name, err)
		}
		stats.Files++
	}

	stats.Kept = len(table.Records)
	l.logger.InfoContext(ctx, "Source loaded",
		slog.String("source", layout.Name),
		slog.String("variable", layout.Variable),
		slog.Int("files", stats.Files),
		slog.Int("rows_read", stats.RowsRead),
		slog.Int("filtered", stats.Filtered),
		slog.Int("kept", stats.Kept),
		slog.Int("null_values", stats.NullValues),
		slog.Any("drops", stats.Drops),
		slog.Duration("duration", time.Since(start)))

	if stats.Kept == 0 {
		return nil, stats, fmt.Errorf("%w: source %s read %d rows, %d filtered, %d dropped",
			ErrEmptySource, layout.Name, stats.RowsRead, stats.Filtered, stats.Dropped())
	}
	return table, stats, nil
}

// rawObservation is one cell waiting to be resolved and parsed
type rawObservation struct {
	country string
	period  string
	value   string
	// missing marks a country cell holding a null sentinel
	missing bool
}

func (l *Loader) loadFile(c *compiled, path string, table *domain.Table, stats *LoadStats) error {
	sheets, err := readSheets(path, c.FormatOf(path), c.Sheet)
	if err != nil {
		return err
	}

	var (
		rows      [][]string
		hdr       header
		ok        bool
		fromExcel bool
	)
	for _, s := range sheets {
		h, err := locateHeader(s.rows, c)
		if err == nil {
			rows, hdr, ok, fromExcel = s.rows, h, true, s.excel
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w (required columns %v, sentinel %v)", errHeaderNotFound, c.requiredColumns(), c.HeaderSentinel)
	}
	for _, col := range c.requiredColumns() {
		if hdr.index(col) < 0 {
			return fmt.Errorf("column %q not found in header row %d", col, hdr.row+1)
		}
	}

	source := filepath.Base(path)
	unresolved := make(map[string]countries.Resolution)
	unresolvedRows := make(map[string]int)

	emit := func(obs rawObservation) {
		if obs.missing {
			stats.drop(DropMissingCountry)
			return
		}
		res := l.resolver.Resolve(obs.country)
		if !res.Resolved() {
			l.tracker.Record(source, res)
			unresolved[obs.country] = res
			unresolvedRows[obs.country]++
			stats.drop(DropUnresolvedCountry)
			return
		}

		date, err := parsePeriodCell(obs.period, c.Date.Formats, fromExcel)
		if err != nil {
			stats.drop(DropBadDate)
			return
		}
		if (c.FromYear != 0 && date.Year() < c.FromYear) || (c.ToYear != 0 && date.Year() > c.ToYear) {
			stats.drop(DropOutOfRange)
			return
		}

		value, err := ParseValue(obs.value)
		if err != nil {
			stats.drop(DropBadValue)
			return
		}
		if !value.Valid {
			stats.NullValues++
			if c.DropNull {
				stats.drop(DropNullValue)
				return
			}
		}

		table.Records = append(table.Records, domain.LongRecord{
			Country:  res.Code,
			Date:     date,
			Variable: c.Variable,
			Value:    value,
		})
	}

	fileCountry := ""
	if c.Country.FromFilename != "" {
		fileCountry = c.countryFromFile(path)
	}

	filterIdx := make([]int, len(c.Filters))
	for i, f := range c.Filters {
		filterIdx[i] = hdr.index(f.Column)
	}
	countryIdx := hdr.index(c.Country.Column)
	dateIdx := hdr.index(c.Date.Column)
	valueIdx := hdr.index(c.Value.Column)

	type wideColumn struct {
		index int
		token string
	}
	var wideCols []wideColumn
	if c.shape() == ShapeWide {
		for i, h := range hdr.cells {
			if token, hit := c.headerCapture(h); hit {
				wideCols = append(wideCols, wideColumn{index: i, token: token})
			}
		}
	}

	for _, row := range rows[hdr.row+1:] {
		if isBlank(row) {
			continue
		}
		stats.RowsRead++

		keep := true
		for i, f := range c.Filters {
			if !f.match(cell(row, filterIdx[i])) {
				keep = false
				break
			}
		}
		if !keep {
			stats.Filtered++
			continue
		}

		country := c.Country.Fixed
		missing := false
		switch {
		case fileCountry != "":
			country = fileCountry
		case c.Country.Column != "":
			raw := cell(row, countryIdx)
			missing = isMissing(raw)
			country = c.countryFromCell(raw)
		}

		switch {
		case c.shape() == ShapeLong:
			emit(rawObservation{country: country, period: cell(row, dateIdx), value: cell(row, valueIdx), missing: missing})
		case c.wideAxis() == AxisPeriod:
			for _, wc := range wideCols {
				emit(rawObservation{country: country, period: wc.token, value: cell(row, wc.index), missing: missing})
			}
		default:
			period := cell(row, dateIdx)
			for _, wc := range wideCols {
				emit(rawObservation{country: wc.token, period: period, value: cell(row, wc.index)})
			}
		}
	}

	raws := make([]string, 0, len(unresolved))
	for raw := range unresolved {
		raws = append(raws, raw)
	}
	sort.Strings(raws)
	for _, raw := range raws {
		res := unresolved[raw]
		l.logger.Warn("Unresolved country identifier",
			slog.String("raw", raw),
			slog.String("source", c.Name),
			slog.String("file", source),
			slog.String("method", string(res.Method)),
			slog.Any("candidates", res.Candidates),
			slog.Int("rows", unresolvedRows[raw]))
	}
	return nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
