package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"sovpanel/internal/ingest"
	"sovpanel/internal/panel"
	"sovpanel/internal/worldbank"
	"sovpanel/pkg/contracts/domain"
)

// Config represents the complete pipeline configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Countries CountriesConfig `yaml:"countries" envconfig:"COUNTRIES"`
	Audit     AuditConfig     `yaml:"audit" envconfig:"AUDIT"`
	WorldBank WorldBankConfig `yaml:"worldbank" envconfig:"WORLDBANK"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`

	// Sources are merged in this order
	Sources []ingest.Layout `yaml:"sources" ignored:"true"`

	file string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout stderr file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths. Relative paths are resolved
// against the directory of the config file.
type PathsConfig struct {
	// DataDir is the root that source paths and globs are relative to
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// PipelineConfig controls normalization and merging
type PipelineConfig struct {
	Parallelism     int    `yaml:"parallelism" envconfig:"PARALLELISM" validate:"min=1,max=64"`
	DuplicatePolicy string `yaml:"duplicate_policy" envconfig:"DUPLICATE_POLICY" validate:"oneof=keep_first keep_last fail"`
	// From and To bound the panel months as YYYY-MM. To is required when a
	// source has event frequency.
	From      string        `yaml:"from" envconfig:"FROM"`
	To        string        `yaml:"to" envconfig:"TO"`
	Join      string        `yaml:"join" envconfig:"JOIN" validate:"oneof=outer left"`
	MaxGrowth float64       `yaml:"max_growth" envconfig:"MAX_GROWTH" validate:"min=0"`
	Timeout   time.Duration `yaml:"step_timeout" envconfig:"STEP_TIMEOUT"`
	Spread    SpreadConfig  `yaml:"spread" envconfig:"SPREAD"`
	// Lags are derived after the spread, in order
	Lags []LagConfig `yaml:"lags" ignored:"true" validate:"dive"`
}

// SpreadConfig derives Target as Column minus the Benchmark country's Column
type SpreadConfig struct {
	Column    string `yaml:"column" envconfig:"COLUMN"`
	Benchmark string `yaml:"benchmark" envconfig:"BENCHMARK"`
	Target    string `yaml:"target" envconfig:"TARGET"`
}

// Enabled reports whether a spread column is configured
func (s SpreadConfig) Enabled() bool {
	return s.Column != ""
}

// LagConfig derives Target as Column shifted Lag months later per country
type LagConfig struct {
	Column string `yaml:"column" validate:"required"`
	Lag    int    `yaml:"lag" validate:"min=1,max=120"`
	Target string `yaml:"target" validate:"required"`
}

// CountriesConfig tunes country resolution
type CountriesConfig struct {
	// Expected are the alpha-3 codes the panel should cover
	Expected []string `yaml:"expected" envconfig:"EXPECTED" validate:"dive,len=3,alpha,uppercase"`
	// Overrides maps raw identifiers to alpha-3 codes ahead of the substring fallback
	Overrides         map[string]string `yaml:"overrides" envconfig:"OVERRIDES"`
	SubstringFallback bool              `yaml:"substring_fallback" envconfig:"SUBSTRING_FALLBACK"`
}

// AuditConfig contains the readiness thresholds of the coverage audit
type AuditConfig struct {
	MinCompleteness float64 `yaml:"min_completeness" envconfig:"MIN_COMPLETENESS" validate:"min=0,max=100"`
}

// WorldBankConfig contains the optional World Bank fetch
type WorldBankConfig struct {
	Enabled           bool          `yaml:"enabled" envconfig:"ENABLED"`
	FromYear          int           `yaml:"from_year" envconfig:"FROM_YEAR" validate:"min=1960,max=2200"`
	ToYear            int           `yaml:"to_year" envconfig:"TO_YEAR" validate:"min=1960,max=2200,gtefield=FromYear"`
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
	MaxTries          uint          `yaml:"max_tries" envconfig:"MAX_TRIES" validate:"min=1,max=10"`
	RetryInterval     time.Duration `yaml:"retry_interval" envconfig:"RETRY_INTERVAL"`
	PerPage           int           `yaml:"per_page" envconfig:"PER_PAGE" validate:"min=1,max=32500"`

	Indicators []worldbank.Indicator `yaml:"indicators" ignored:"true" validate:"dive"`
}

// ClientConfig returns the client settings
func (w WorldBankConfig) ClientConfig() worldbank.Config {
	return worldbank.Config{
		BaseURL:           w.BaseURL,
		Timeout:           w.Timeout,
		RequestsPerSecond: w.RequestsPerSecond,
		MaxTries:          w.MaxTries,
		RetryInterval:     w.RetryInterval,
		PerPage:           w.PerPage,
	}
}

// TelemetryConfig contains tracing and metrics settings
type TelemetryConfig struct {
	Tracing string `yaml:"tracing" envconfig:"TRACING" validate:"oneof=none stdout"`
	// MetricsFile, when set, receives the run's metrics in Prometheus text format
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// OutputConfig names the files written below Paths.OutputDir. An empty
// name skips that output, except Panel which is always written.
type OutputConfig struct {
	Panel            string `yaml:"panel" envconfig:"PANEL" validate:"required"`
	Long             string `yaml:"long" envconfig:"LONG"`
	CountryCoverage  string `yaml:"country_coverage" envconfig:"COUNTRY_COVERAGE"`
	VariableCoverage string `yaml:"variable_coverage" envconfig:"VARIABLE_COVERAGE"`
	Unresolved       string `yaml:"unresolved" envconfig:"UNRESOLVED"`
	// SQLite is an optional database mirroring the panel and coverage
	SQLite string `yaml:"sqlite" envconfig:"SQLITE"`
	BOM    bool   `yaml:"bom" envconfig:"BOM"`
}

var validate = validator.New()

// Load builds the configuration from defaults, the YAML file at path (if
// any) and SOVPANEL_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()
	base, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		cfg.file = abs
		base = filepath.Dir(abs)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.resolvePaths(base)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile decodes YAML over the values already in cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// File returns the absolute path of the loaded config file, if any
func (c *Config) File() string {
	return c.file
}

// resolvePaths makes every relative path absolute against base
func (c *Config) resolvePaths(base string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	resolve(&c.Paths.DataDir)
	resolve(&c.Paths.OutputDir)
	resolve(&c.Logging.FilePath)
	resolve(&c.Telemetry.MetricsFile)
}

// Validate checks field values and the rules that span several sections
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	from, to, err := c.Range()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return fmt.Errorf("pipeline.to %s is before pipeline.from %s", c.Pipeline.To, c.Pipeline.From)
	}
	if c.Pipeline.Timeout < 0 {
		return errors.New("pipeline.step_timeout must not be negative")
	}
	if c.WorldBank.Timeout <= 0 {
		return errors.New("worldbank.timeout must be positive")
	}
	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required for output %q", c.Logging.Output)
	}

	variables := make(map[string]string)
	names := make(map[string]struct{})
	for i := range c.Sources {
		src := &c.Sources[i]
		if err := src.Validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := names[src.Name]; dup {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, src.Name)
		}
		names[src.Name] = struct{}{}
		if isKeyColumn(src.Variable) {
			return fmt.Errorf("sources[%d]: variable %q is a panel key column", i, src.Variable)
		}
		if other, dup := variables[src.Variable]; dup {
			return fmt.Errorf("sources[%d]: variable %q is already produced by %q", i, src.Variable, other)
		}
		variables[src.Variable] = src.Name
		if src.Frequency == domain.FrequencyEvent && to.IsZero() {
			return fmt.Errorf("source %q has event frequency and needs pipeline.to", src.Name)
		}
	}
	if c.WorldBank.Enabled {
		for _, ind := range c.WorldBank.Indicators {
			if isKeyColumn(ind.Variable) {
				return fmt.Errorf("worldbank indicator %s: variable %q is a panel key column", ind.Code, ind.Variable)
			}
			if other, dup := variables[ind.Variable]; dup {
				return fmt.Errorf("worldbank indicator %s: variable %q is already produced by %q", ind.Code, ind.Variable, other)
			}
			variables[ind.Variable] = "worldbank"
		}
	}

	if s := c.Pipeline.Spread; s.Enabled() {
		if s.Benchmark == "" || s.Target == "" {
			return errors.New("pipeline.spread needs column, benchmark and target")
		}
		if _, ok := variables[s.Column]; !ok {
			return fmt.Errorf("pipeline.spread.column %q is not produced by any source", s.Column)
		}
		if isKeyColumn(s.Target) {
			return fmt.Errorf("pipeline.spread.target %q is a panel key column", s.Target)
		}
		if other, dup := variables[s.Target]; dup {
			return fmt.Errorf("pipeline.spread.target %q collides with %s", s.Target, other)
		}
		if !domain.CountryCode(s.Benchmark).IsResolved() {
			return fmt.Errorf("pipeline.spread.benchmark %q is not an alpha-3 code", s.Benchmark)
		}
		variables[s.Target] = "pipeline.spread"
	}

	for i, l := range c.Pipeline.Lags {
		if _, ok := variables[l.Column]; !ok {
			return fmt.Errorf("pipeline.lags[%d]: column %q is not a panel variable", i, l.Column)
		}
		if isKeyColumn(l.Target) {
			return fmt.Errorf("pipeline.lags[%d]: target %q is a panel key column", i, l.Target)
		}
		if other, dup := variables[l.Target]; dup {
			return fmt.Errorf("pipeline.lags[%d]: target %q collides with %s", i, l.Target, other)
		}
		variables[l.Target] = fmt.Sprintf("pipeline.lags[%d]", i)
	}
	return nil
}

// isKeyColumn reports whether name would shadow a key column of the panel CSV
func isKeyColumn(name string) bool {
	return strings.EqualFold(name, panel.CountryColumn) || strings.EqualFold(name, panel.DateColumn)
}

// Range parses pipeline.from and pipeline.to. Missing bounds are zero; to
// is returned as the first day of its month.
func (c *Config) Range() (from, to time.Time, err error) {
	parse := func(name, v string) (time.Time, error) {
		if strings.TrimSpace(v) == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(MonthLayout, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("pipeline.%s %q is not YYYY-MM", name, v)
		}
		return t, nil
	}
	if from, err = parse("from", c.Pipeline.From); err != nil {
		return
	}
	to, err = parse("to", c.Pipeline.To)
	return
}

// ExpectedCountries returns countries.expected as codes
func (c *Config) ExpectedCountries() []domain.CountryCode {
	out := make([]domain.CountryCode, len(c.Countries.Expected))
	for i, s := range c.Countries.Expected {
		out[i] = domain.CountryCode(s)
	}
	return out
}

// Default returns default configuration
func Default() *Config {
	wb := worldbank.DefaultConfig()
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/sovpanel.log",
		},
		Paths: PathsConfig{
			DataDir:   "data",
			OutputDir: "data/processed",
		},
		Pipeline: PipelineConfig{
			Parallelism:     DefaultParallelism,
			DuplicatePolicy: "keep_first",
			Join:            "outer",
			Timeout:         DefaultStepTimeout,
		},
		Countries: CountriesConfig{
			SubstringFallback: true,
		},
		Audit: AuditConfig{
			MinCompleteness: DefaultMinCompleteness,
		},
		WorldBank: WorldBankConfig{
			FromYear:          2000,
			ToYear:            2023,
			BaseURL:           wb.BaseURL,
			Timeout:           wb.Timeout,
			RequestsPerSecond: wb.RequestsPerSecond,
			MaxTries:          wb.MaxTries,
			RetryInterval:     wb.RetryInterval,
			PerPage:           wb.PerPage,
			Indicators:        worldbank.DefaultIndicators(),
		},
		Telemetry: TelemetryConfig{
			Tracing: "none",
		},
		Output: OutputConfig{
			Panel:            DefaultPanelFile,
			CountryCoverage:  DefaultCountryCoverageFile,
			VariableCoverage: DefaultVariableCoverageFile,
			Unresolved:       DefaultUnresolvedFile,
		},
	}
}
