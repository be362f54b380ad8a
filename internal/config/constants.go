package config

import "time"

// Application info
const (
	AppName = "sovpanel"
	// EnvPrefix namespaces every environment override, e.g. SOVPANEL_LOGGING_LEVEL
	EnvPrefix = "SOVPANEL"
)

// Default file names below the output directory
const (
	DefaultPanelFile            = "panel.csv"
	DefaultCountryCoverageFile  = "coverage_country.csv"
	DefaultVariableCoverageFile = "coverage_variable.csv"
	DefaultUnresolvedFile       = "unresolved_countries.csv"
)

// Pipeline defaults
const (
	DefaultParallelism     = 4
	DefaultMinCompleteness = 50.0
	DefaultStepTimeout     = 30 * time.Minute
	// MonthLayout is the format of pipeline.from and pipeline.to
	MonthLayout = "2006-01"
)
