// Package config loads the pipeline configuration.
//
// # Configuration Sources
//
// Values are applied in this order, later sources winning:
//
//	1. Default()
//	2. The YAML file passed to Load (unknown keys are an error)
//	3. Environment variables prefixed with SOVPANEL
//
// Environment keys follow the section and field names:
//
//	SOVPANEL_LOGGING_LEVEL=debug
//	SOVPANEL_PIPELINE_PARALLELISM=8
//	SOVPANEL_COUNTRIES_EXPECTED=URY,USA
//	SOVPANEL_COUNTRIES_OVERRIDES=URUGUAY:URY,TURKIYE:TUR
//	SOVPANEL_WORLDBANK_ENABLED=true
//
// Source layouts and World Bank indicators are lists of structures and can
// only be set in the file.
//
// # Paths
//
// Relative paths are resolved against the directory of the config file, or
// the working directory when no file is given. Source paths and globs are
// relative to paths.data_dir; output names are relative to paths.output_dir.
//
// # Validation
//
// Load validates field values with struct tags and then the rules spanning
// sections: the month range, unique source names and variables, event
// sources needing an end month, and the spread column being produced by a
// configured source.
package config
