package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sovpanel/internal/config"
	"sovpanel/internal/files"
	"sovpanel/internal/ingest"
)

// FileValidator checks, before a run, the files the pipeline reads and writes
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "preflight")),
	}
}

// ValidateInputDirectory checks that dir exists and is a directory
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist",
			slog.String("directory", dir))
		return fmt.Errorf("input directory %s does not exist", dir)
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory",
			slog.String("path", dir))
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// ValidateOutputDirectory ensures the output directory exists and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()
	return nil
}

// ValidateSourceFile checks that path is readable and its extension fits
// the declared format
func (v *FileValidator) ValidateSourceFile(path, format string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch format {
	case "xlsx":
		if ext != ".xlsx" && ext != ".xlsm" {
			return fmt.Errorf("file %s is not an Excel workbook (extension: %s)", path, ext)
		}
		if strings.HasPrefix(filepath.Base(path), "~$") {
			return fmt.Errorf("file %s is a temporary Excel file", path)
		}
	case "csv":
		if ext == ".xlsx" || ext == ".xlsm" || ext == ".xls" {
			return fmt.Errorf("file %s is a workbook but the source format is csv", path)
		}
	}
	return nil
}

// SourceCheck is the preflight result of one source
type SourceCheck struct {
	Source  string
	Pattern string
	Files   []string
	Err     error
}

// CheckSources resolves every source path and validates the files it matches
func (v *FileValidator) CheckSources(discovery *files.Discovery, layouts []ingest.Layout) []SourceCheck {
	checks := make([]SourceCheck, 0, len(layouts))
	for i := range layouts {
		layout := &layouts[i]
		check := SourceCheck{Source: layout.Name, Pattern: discovery.Resolve(layout.Path)}

		matched, err := discovery.FindFilesByPattern(layout.Path)
		switch {
		case err != nil:
			check.Err = err
		case len(matched) == 0:
			check.Err = fmt.Errorf("%w: %s", ingest.ErrNoFiles, check.Pattern)
		}
		for _, f := range matched {
			check.Files = append(check.Files, f.Path)
			if err := v.ValidateSourceFile(f.Path, layout.FormatOf(f.Path)); err != nil && check.Err == nil {
				check.Err = err
			}
		}

		if check.Err != nil {
			v.logger.Warn("Source check failed",
				slog.String("source", check.Source),
				slog.String("pattern", check.Pattern),
				slog.String("error", check.Err.Error()))
		} else {
			v.logger.Debug("Source check passed",
				slog.String("source", check.Source),
				slog.Int("files", len(check.Files)))
		}
		checks = append(checks, check)
	}
	return checks
}

// Preflight checks the data directory, every source and the output
// directory of cfg. It returns the per-source results and every problem found.
func (v *FileValidator) Preflight(cfg *config.Config) ([]SourceCheck, error) {
	var errs []error
	if err := v.ValidateInputDirectory(cfg.Paths.DataDir); err != nil {
		errs = append(errs, err)
	}
	checks := v.CheckSources(files.NewDiscovery(cfg.Paths.DataDir), cfg.Sources)
	for _, c := range checks {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", c.Source, c.Err))
		}
	}
	if err := v.ValidateOutputDirectory(cfg.Paths.OutputDir); err != nil {
		errs = append(errs, err)
	}
	return checks, errors.Join(errs...)
}
