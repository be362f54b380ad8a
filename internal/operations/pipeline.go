package operations

import (
	"fmt"
	"log/slog"
	"net/http"

	"sovpanel/internal/audit"
	"sovpanel/internal/config"
	"sovpanel/internal/countries"
	"sovpanel/internal/exporter"
	"sovpanel/internal/files"
	"sovpanel/internal/ingest"
	"sovpanel/internal/normalize"
	"sovpanel/internal/panel"
	"sovpanel/internal/worldbank"
)

// Dependencies are the collaborators the pipeline steps share
type Dependencies struct {
	Resolver   *countries.Resolver
	Loader     *ingest.Loader
	Normalizer *normalize.Normalizer
	// WorldBank is nil when the fetch is disabled
	WorldBank *worldbank.Client
	Writer    *exporter.CSVWriter
	Tracer    *OperationTracer
	Logger    *slog.Logger
}

// NewDependencies builds the collaborators described by cfg. httpClient
// may be nil.
func NewDependencies(cfg *config.Config, httpClient *http.Client, tracer *OperationTracer, logger *slog.Logger) (Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}
	resolver, err := countries.NewResolver(
		countries.WithOverrides(cfg.Countries.Overrides),
		countries.WithSubstringFallback(cfg.Countries.SubstringFallback),
	)
	if err != nil {
		return Dependencies{}, fmt.Errorf("failed to build country resolver: %w", err)
	}

	loader := ingest.NewLoader(resolver, countries.NewTracker(), files.NewDiscovery(cfg.Paths.DataDir), logger)
	loader.SetParallelism(cfg.Pipeline.Parallelism)

	writer := exporter.NewCSVWriter(cfg.Paths.OutputDir, logger)
	writer.SetBOM(cfg.Output.BOM)

	deps := Dependencies{
		Resolver:   resolver,
		Loader:     loader,
		Normalizer: normalize.NewNormalizer(logger),
		Writer:     writer,
		Tracer:     tracer,
		Logger:     logger,
	}
	if cfg.WorldBank.Enabled {
		deps.WorldBank = worldbank.NewClient(cfg.WorldBank.ClientConfig(), httpClient, logger)
	}
	return deps, nil
}

// NewPipeline registers the steps cfg calls for and returns their manager
func NewPipeline(cfg *config.Config, deps Dependencies) (*Manager, error) {
	from, to, err := cfg.Range()
	if err != nil {
		return nil, err
	}
	policy, err := normalize.ParsePolicy(cfg.Pipeline.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	opts := normalize.Options{Policy: policy, From: from, To: to}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := NewRegistry()
	steps := []Step{
		NewLoadStep(deps.Loader, deps.Normalizer, cfg.Sources, opts, deps.Tracer, logger),
	}
	mergeDeps := []string{StepIDLoad}
	if deps.WorldBank != nil {
		steps = append(steps, NewWorldBankStep(deps.WorldBank, deps.Normalizer, cfg.WorldBank,
			cfg.ExpectedCountries(), opts, deps.Tracer, logger))
		mergeDeps = append(mergeDeps, StepIDWorldBank)
	}
	steps = append(steps,
		NewMergeStep(panel.MergeOptions{
			Kind:      panel.JoinKind(cfg.Pipeline.Join),
			MaxGrowth: cfg.Pipeline.MaxGrowth,
		}, cfg.Pipeline.Spread, cfg.Pipeline.Lags, mergeDeps, deps.Tracer, logger),
		NewAuditStep(audit.Auditor{
			Expected:        cfg.ExpectedCountries(),
			MinCompleteness: cfg.Audit.MinCompleteness,
		}, logger),
		NewExportStep(deps.Writer, cfg.Output, logger),
	)
	for _, step := range steps {
		if err := registry.Register(step); err != nil {
			return nil, err
		}
	}
	if err := registry.ValidateDependencies(); err != nil {
		return nil, err
	}

	opConfig := NewConfig()
	if cfg.Pipeline.Timeout > 0 {
		opConfig.DefaultTimeout = cfg.Pipeline.Timeout
	}
	return NewManager(registry, opConfig, deps.Tracer, logger), nil
}
