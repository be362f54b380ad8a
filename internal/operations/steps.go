package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"sovpanel/internal/audit"
	"sovpanel/internal/config"
	"sovpanel/internal/exporter"
	"sovpanel/internal/ingest"
	"sovpanel/internal/normalize"
	"sovpanel/internal/panel"
	"sovpanel/internal/worldbank"
	"sovpanel/pkg/contracts/domain"
)

// LoadStep reads every configured source and normalizes it to months
type LoadStep struct {
	BaseStep
	loader     *ingest.Loader
	normalizer *normalize.Normalizer
	layouts    []ingest.Layout
	options    normalize.Options
	tracer     *OperationTracer
	logger     *slog.Logger
}

// NewLoadStep creates the load step
func NewLoadStep(loader *ingest.Loader, normalizer *normalize.Normalizer, layouts []ingest.Layout, options normalize.Options, tracer *OperationTracer, logger *slog.Logger) *LoadStep {
	return &LoadStep{
		BaseStep:   NewBaseStep(StepIDLoad, StepNameLoad, nil),
		loader:     loader,
		normalizer: normalizer,
		layouts:    layouts,
		options:    options,
		tracer:     tracer,
		logger:     logger,
	}
}

// Validate checks every layout before any file is opened
func (s *LoadStep) Validate(state *OperationState) error {
	for i := range s.layouts {
		if err := s.layouts[i].Validate(); err != nil {
			return fmt.Errorf("source %d: %w", i, err)
		}
	}
	return nil
}

// Execute loads the sources concurrently then normalizes them in config order
func (s *LoadStep) Execute(ctx context.Context, state *OperationState) error {
	results, err := s.loader.LoadAll(ctx, s.layouts)
	state.Loads = results
	if err != nil {
		return err
	}

	records := 0
	for _, r := range results {
		source := r.Stats.Source
		s.tracer.RecordLoad(ctx, r.Stats)
		for reason, n := range r.Stats.Drops {
			state.Drops.Add(reason, source, n)
		}
		badDate, badValue := r.Stats.Drops[ingest.DropBadDate], r.Stats.Drops[ingest.DropBadValue]
		if badDate+badValue > 0 {
			state.Warn(NewRecoverableError(ErrorTypeMalformedRow, s.ID(),
				fmt.Sprintf("%d malformed rows dropped from %s", badDate+badValue, source),
				map[string]interface{}{"source": source, "bad_date": badDate, "bad_value": badValue}))
		}

		monthly, stats, err := s.normalizer.ToMonthly(r.Table, s.options)
		if err != nil {
			return fmt.Errorf("source %s: %w", source, err)
		}
		state.Drops.Add(DropDuplicate, source, stats.Duplicates)
		s.tracer.RecordDrops(ctx, source, DropDuplicate, stats.Duplicates)
		state.AddTable(monthly, stats)
		records += monthly.Len()
	}

	state.Unresolved = s.loader.Tracker().Entries()
	for _, e := range state.Unresolved {
		state.Warn(NewRecoverableError(ErrorTypeUnresolvedIdentifier, s.ID(),
			fmt.Sprintf("no country code for %q", e.Raw),
			map[string]interface{}{"source": e.Source, "method": string(e.Method), "rows": e.Count}))
	}

	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("sources", len(results))
		st.SetMetadata("monthly_records", records)
		st.SetMetadata("unresolved_identifiers", len(state.Unresolved))
	}
	s.logger.InfoContext(ctx, "Sources loaded",
		slog.Int("sources", len(results)),
		slog.Int("monthly_records", records),
		slog.Int("unresolved_identifiers", len(state.Unresolved)))
	return nil
}

// WorldBankStep fetches annual indicators for the panel's countries
type WorldBankStep struct {
	BaseStep
	client     *worldbank.Client
	normalizer *normalize.Normalizer
	indicators []worldbank.Indicator
	countries  []domain.CountryCode
	fromYear   int
	toYear     int
	options    normalize.Options
	tracer     *OperationTracer
	logger     *slog.Logger
}

// NewWorldBankStep creates the fetch step. With no countries given it
// fetches every country the loaded sources produced.
func NewWorldBankStep(client *worldbank.Client, normalizer *normalize.Normalizer, cfg config.WorldBankConfig, countries []domain.CountryCode, options normalize.Options, tracer *OperationTracer, logger *slog.Logger) *WorldBankStep {
	indicators := cfg.Indicators
	if len(indicators) == 0 {
		indicators = worldbank.DefaultIndicators()
	}
	return &WorldBankStep{
		BaseStep:   NewBaseStep(StepIDWorldBank, StepNameWorldBank, []string{StepIDLoad}),
		client:     client,
		normalizer: normalizer,
		indicators: indicators,
		countries:  countries,
		fromYear:   cfg.FromYear,
		toYear:     cfg.ToYear,
		options:    options,
		tracer:     tracer,
		logger:     logger,
	}
}

// Validate requires a client
func (s *WorldBankStep) Validate(state *OperationState) error {
	if s.client == nil {
		return errors.New("no World Bank client configured")
	}
	return nil
}

// Execute fetches the batch. Failed pairs are recorded and skipped.
func (s *WorldBankStep) Execute(ctx context.Context, state *OperationState) error {
	countries := s.countries
	if len(countries) == 0 {
		countries = tableCountries(state.Tables)
	}
	if len(countries) == 0 {
		s.logger.WarnContext(ctx, "No countries to fetch from the World Bank")
		return nil
	}

	res, err := s.client.FetchBatch(ctx, countries, s.indicators, s.fromYear, s.toYear)
	s.tracer.RecordWorldBank(ctx, res.Requests, len(res.Failures))
	if err != nil {
		return err
	}

	for _, f := range res.Failures {
		state.Drops.Add(DropExternalAPI, worldbank.SourceName, 1)
		opErr := Classify(s.ID(), f.Err)
		state.Warn(NewRecoverableError(ErrorTypeExternalAPI, s.ID(),
			fmt.Sprintf("%s for %s skipped: %s", f.Indicator, f.Country, opErr.Message),
			map[string]interface{}{"country": string(f.Country), "indicator": f.Indicator, "error": f.Err.Error()}))
	}
	s.tracer.RecordDrops(ctx, worldbank.SourceName, DropExternalAPI, len(res.Failures))

	for _, table := range res.Tables {
		monthly, stats, err := s.normalizer.ToMonthly(table, s.options)
		if err != nil {
			return fmt.Errorf("indicator %s: %w", table.Variable, err)
		}
		state.AddTable(monthly, stats)
	}

	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("countries", len(countries))
		st.SetMetadata("requests", res.Requests)
		st.SetMetadata("failures", len(res.Failures))
	}
	return nil
}

// tableCountries returns the sorted union of countries across tables
func tableCountries(tables []*domain.Table) []domain.CountryCode {
	seen := make(map[domain.CountryCode]struct{})
	for _, t := range tables {
		for _, r := range t.Records {
			seen[r.Country] = struct{}{}
		}
	}
	out := make([]domain.CountryCode, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MergeStep folds the monthly tables into one panel
type MergeStep struct {
	BaseStep
	options panel.MergeOptions
	spread  config.SpreadConfig
	lags    []config.LagConfig
	tracer  *OperationTracer
	logger  *slog.Logger
}

// NewMergeStep creates the merge step
func NewMergeStep(options panel.MergeOptions, spread config.SpreadConfig, lags []config.LagConfig, dependencies []string, tracer *OperationTracer, logger *slog.Logger) *MergeStep {
	return &MergeStep{
		BaseStep: NewBaseStep(StepIDMerge, StepNameMerge, dependencies),
		options:  options,
		spread:   spread,
		lags:     lags,
		tracer:   tracer,
		logger:   logger,
	}
}

// Validate requires at least one table
func (s *MergeStep) Validate(state *OperationState) error {
	if len(state.Tables) == 0 {
		return errors.New("no tables to merge")
	}
	return nil
}

// Execute merges the tables in order, then derives the spread and lag columns
func (s *MergeStep) Execute(ctx context.Context, state *OperationState) error {
	p := panel.New()
	for _, table := range state.Tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := p.Merge(table, s.options)
		if err != nil {
			return fmt.Errorf("merging %s from %s: %w", table.Variable, table.Source, err)
		}
		state.Merges = append(state.Merges, report)
		state.Drops.Add(DropUnmatched, table.Source, report.Dropped)
		s.tracer.RecordDrops(ctx, table.Source, DropUnmatched, report.Dropped)
		s.tracer.RecordMerge(ctx, report)

		s.logger.InfoContext(ctx, "Variable merged",
			slog.String("variable", report.Variable),
			slog.String("source", table.Source),
			slog.String("join", string(report.Kind)),
			slog.Int("rows_before", report.RowsBefore),
			slog.Int("rows_after", report.RowsAfter),
			slog.Int("new_keys", report.NewKeys),
			slog.Int("matched", report.Matched),
			slog.Int("dropped", report.Dropped))
	}

	if s.spread.Enabled() {
		n, err := p.DeriveSpread(s.spread.Column, domain.CountryCode(s.spread.Benchmark), s.spread.Target)
		if err != nil {
			return fmt.Errorf("deriving %s: %w", s.spread.Target, err)
		}
		s.logger.InfoContext(ctx, "Spread derived",
			slog.String("column", s.spread.Target),
			slog.String("benchmark", s.spread.Benchmark),
			slog.Int("values", n))
	}
	for _, l := range s.lags {
		n, err := p.DeriveLag(l.Column, l.Lag, l.Target)
		if err != nil {
			return fmt.Errorf("deriving %s: %w", l.Target, err)
		}
		s.logger.InfoContext(ctx, "Lag derived",
			slog.String("column", l.Target),
			slog.String("source_column", l.Column),
			slog.Int("lag", l.Lag),
			slog.Int("values", n))
	}

	state.Panel = p
	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("rows", p.Len())
		st.SetMetadata("columns", len(p.Columns()))
	}
	return nil
}

// AuditStep measures the coverage of the merged panel
type AuditStep struct {
	BaseStep
	auditor audit.Auditor
	logger  *slog.Logger
}

// NewAuditStep creates the audit step
func NewAuditStep(auditor audit.Auditor, logger *slog.Logger) *AuditStep {
	return &AuditStep{
		BaseStep: NewBaseStep(StepIDAudit, StepNameAudit, []string{StepIDMerge}),
		auditor:  auditor,
		logger:   logger,
	}
}

// Validate requires a panel
func (s *AuditStep) Validate(state *OperationState) error {
	if state.Panel == nil {
		return errors.New("no panel to audit")
	}
	return nil
}

// Execute audits the panel. An unready panel is reported, not failed.
func (s *AuditStep) Execute(ctx context.Context, state *OperationState) error {
	report := s.auditor.Audit(state.Panel)
	state.Report = &report

	s.logger.InfoContext(ctx, "Coverage audited",
		slog.Int("rows", report.Rows),
		slog.Int("columns", report.Columns),
		slog.Float64("overall_pct", report.Overall),
		slog.Int("absent", len(report.Absent)),
		slog.Bool("ready", report.Ready))
	for _, issue := range report.Issues {
		s.logger.WarnContext(ctx, "Coverage issue", slog.String("issue", issue))
	}

	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("ready", report.Ready)
		st.SetMetadata("overall_pct", report.Overall)
	}
	return nil
}

// ExportStep writes the panel and its reports
type ExportStep struct {
	BaseStep
	writer *exporter.CSVWriter
	output config.OutputConfig
	logger *slog.Logger
}

// NewExportStep creates the export step
func NewExportStep(writer *exporter.CSVWriter, output config.OutputConfig, logger *slog.Logger) *ExportStep {
	return &ExportStep{
		BaseStep: NewBaseStep(StepIDExport, StepNameExport, []string{StepIDAudit}),
		writer:   writer,
		output:   output,
		logger:   logger,
	}
}

// Validate requires the panel and the audit report
func (s *ExportStep) Validate(state *OperationState) error {
	if state.Panel == nil || state.Report == nil {
		return errors.New("nothing to export")
	}
	return nil
}

// Execute writes every configured output, overwriting earlier runs
func (s *ExportStep) Execute(ctx context.Context, state *OperationState) error {
	write := func(name string, fn func(string) error) error {
		if name == "" {
			return nil
		}
		if err := fn(name); err != nil {
			return err
		}
		state.AddOutput(s.writer.Path(name))
		return nil
	}

	if err := write(s.output.Panel, func(n string) error { return s.writer.WritePanel(n, state.Panel) }); err != nil {
		return err
	}
	if err := write(s.output.Long, func(n string) error { return s.writer.WriteLong(n, state.Tables) }); err != nil {
		return err
	}
	if err := write(s.output.CountryCoverage, func(n string) error { return s.writer.WriteCountryCoverage(n, *state.Report) }); err != nil {
		return err
	}
	if err := write(s.output.VariableCoverage, func(n string) error { return s.writer.WriteVariableCoverage(n, *state.Report) }); err != nil {
		return err
	}
	if err := write(s.output.Unresolved, func(n string) error { return s.writer.WriteUnresolved(n, state.Unresolved) }); err != nil {
		return err
	}

	if s.output.SQLite != "" {
		if err := s.writeSQLite(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportStep) writeSQLite(ctx context.Context, state *OperationState) error {
	path := s.writer.Path(s.output.SQLite)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	sink, err := exporter.OpenSQLite(path, s.logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := sink.WritePanel(ctx, state.Panel); err != nil {
		return err
	}
	if err := sink.WriteCoverage(ctx, *state.Report); err != nil {
		return err
	}
	state.AddOutput(path)
	return nil
}
