package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"sovpanel/pkg/contracts/domain"
)

// Shape values
const (
	ShapeLong = "long"
	ShapeWide = "wide"
)

// Wide axis values: what the matched column headers carry
const (
	AxisPeriod  = "period"
	AxisCountry = "country"
)

// Layout declares how one raw source maps onto long records
type Layout struct {
	Name      string           `yaml:"name" json:"name" validate:"required"`
	Variable  string           `yaml:"variable" json:"variable" validate:"required"`
	Path      string           `yaml:"path" json:"path" validate:"required"`
	Format    string           `yaml:"format" json:"format" validate:"omitempty,oneof=csv xlsx"`
	Sheet     string           `yaml:"sheet" json:"sheet"`
	Frequency domain.Frequency `yaml:"frequency" json:"frequency" validate:"required,oneof=daily monthly quarterly annual event"`
	Shape     string           `yaml:"shape" json:"shape" validate:"omitempty,oneof=long wide"`

	// HeaderSentinel is the leading cells of the header row. When set, rows
	// above it are treated as metadata.
	HeaderSentinel []string `yaml:"header_sentinel" json:"header_sentinel"`

	Country CountrySpec `yaml:"country" json:"country"`
	Date    DateSpec    `yaml:"date" json:"date"`
	Value   ValueSpec   `yaml:"value" json:"value"`
	Wide    WideSpec    `yaml:"wide" json:"wide"`
	Filters []Filter    `yaml:"filters" json:"filters" validate:"dive"`

	FromYear int  `yaml:"from_year" json:"from_year" validate:"omitempty,min=1800,max=2200"`
	ToYear   int  `yaml:"to_year" json:"to_year" validate:"omitempty,min=1800,max=2200"`
	DropNull bool `yaml:"drop_null" json:"drop_null"`
}

// CountrySpec says where the country identifier comes from. Exactly one of
// Column, FromFilename or Fixed is used, except for wide country layouts.
type CountrySpec struct {
	Column string `yaml:"column" json:"column"`
	// Pattern optionally extracts the identifier from the column value via
	// its first capture group, e.g. `^([A-Z]{3})\.` for series codes.
	Pattern string `yaml:"pattern" json:"pattern"`
	// FromFilename is applied to the file name without extension; the first
	// capture group is used, or the whole stem when the pattern does not match.
	FromFilename string `yaml:"from_filename" json:"from_filename"`
	Fixed        string `yaml:"fixed" json:"fixed"`
}

// DateSpec names the period column and any extra Go time layouts
type DateSpec struct {
	Column  string   `yaml:"column" json:"column"`
	Formats []string `yaml:"formats" json:"formats"`
}

// ValueSpec names the value column
type ValueSpec struct {
	Column string `yaml:"column" json:"column"`
}

// WideSpec selects the value columns of a wide file. The first capture group
// of ColumnPattern (or the full header) is a period or a country identifier.
type WideSpec struct {
	ColumnPattern string `yaml:"column_pattern" json:"column_pattern"`
	Axis          string `yaml:"axis" json:"axis" validate:"omitempty,oneof=period country"`
}

// Filter keeps or drops rows by a column's content. Comparisons ignore case.
type Filter struct {
	Column   string `yaml:"column" json:"column" validate:"required"`
	Equals   string `yaml:"equals" json:"equals"`
	Contains string `yaml:"contains" json:"contains"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	Not      bool   `yaml:"not" json:"not"`
}

var validate = validator.New()

// Validate checks field values and the cross-field rules of a layout
func (l *Layout) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("layout %q: %w", l.Name, err)
	}
	_, err := l.compile()
	return err
}

// FormatOf returns the declared format or infers it from the path extension
func (l *Layout) FormatOf(path string) string {
	if l.Format != "" {
		return l.Format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return "xlsx"
	}
	return "csv"
}

func (l *Layout) shape() string {
	if l.Shape == "" {
		return ShapeLong
	}
	return l.Shape
}

// compiled holds the parsed regular expressions of a layout
type compiled struct {
	*Layout
	countryPattern  *regexp.Regexp
	filenamePattern *regexp.Regexp
	columnPattern   *regexp.Regexp
}

func (l *Layout) compile() (*compiled, error) {
	c := &compiled{Layout: l}
	var err error
	fail := func(what string, err error) error {
		return fmt.Errorf("layout %q: %s: %w", l.Name, what, err)
	}

	if l.Country.Pattern != "" {
		if c.countryPattern, err = regexp.Compile(l.Country.Pattern); err != nil {
			return nil, fail("country.pattern", err)
		}
	}
	if l.Country.FromFilename != "" {
		if c.filenamePattern, err = regexp.Compile(l.Country.FromFilename); err != nil {
			return nil, fail("country.from_filename", err)
		}
	}
	if l.Wide.ColumnPattern != "" {
		if c.columnPattern, err = regexp.Compile(l.Wide.ColumnPattern); err != nil {
			return nil, fail("wide.column_pattern", err)
		}
	}

	sources := 0
	for _, s := range []string{l.Country.Column, l.Country.FromFilename, l.Country.Fixed} {
		if s != "" {
			sources++
		}
	}
	if l.Country.Pattern != "" && l.Country.Column == "" {
		return nil, fmt.Errorf("layout %q: country.pattern requires country.column", l.Name)
	}
	if l.FromYear != 0 && l.ToYear != 0 && l.FromYear > l.ToYear {
		return nil, fmt.Errorf("layout %q: from_year %d is after to_year %d", l.Name, l.FromYear, l.ToYear)
	}

	switch l.shape() {
	case ShapeLong:
		if sources != 1 {
			return nil, fmt.Errorf("layout %q: exactly one of country.column, country.from_filename, country.fixed is required", l.Name)
		}
		if l.Date.Column == "" || l.Value.Column == "" {
			return nil, fmt.Errorf("layout %q: long layouts need date.column and value.column", l.Name)
		}
	case ShapeWide:
		if c.columnPattern == nil {
			return nil, fmt.Errorf("layout %q: wide layouts need wide.column_pattern", l.Name)
		}
		switch l.Wide.Axis {
		case AxisPeriod, "":
			if sources != 1 {
				return nil, fmt.Errorf("layout %q: exactly one of country.column, country.from_filename, country.fixed is required", l.Name)
			}
		case AxisCountry:
			if sources != 0 {
				return nil, fmt.Errorf("layout %q: wide country layouts take the country from column headers", l.Name)
			}
			if l.Date.Column == "" {
				return nil, fmt.Errorf("layout %q: wide country layouts need date.column", l.Name)
			}
		}
	}
	return c, nil
}

func (c *compiled) wideAxis() string {
	if c.Wide.Axis == "" {
		return AxisPeriod
	}
	return c.Wide.Axis
}

// requiredColumns lists the header cells that must be present
func (c *compiled) requiredColumns() []string {
	var cols []string
	for _, s := range []string{c.Country.Column, c.Date.Column} {
		if s != "" {
			cols = append(cols, s)
		}
	}
	if c.shape() == ShapeLong {
		cols = append(cols, c.Value.Column)
	}
	for _, f := range c.Filters {
		cols = append(cols, f.Column)
	}
	return cols
}

// headerCapture returns the axis token carried by a wide column header
func (c *compiled) headerCapture(header string) (string, bool) {
	m := c.columnPattern.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

// countryFromFile derives the identifier from a file name
func (c *compiled) countryFromFile(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if m := c.filenamePattern.FindStringSubmatch(stem); len(m) > 1 {
		return m[1]
	}
	return stem
}

// countryFromCell applies the optional extraction pattern to a cell
func (c *compiled) countryFromCell(cell string) string {
	cell = strings.TrimSpace(cell)
	if c.countryPattern == nil {
		return cell
	}
	if m := c.countryPattern.FindStringSubmatch(cell); len(m) > 1 {
		return m[1]
	}
	return cell
}

// match reports whether a row passes the filter
func (f Filter) match(cell string) bool {
	cell = strings.ToLower(strings.TrimSpace(cell))
	ok := true
	if f.Equals != "" {
		ok = ok && cell == strings.ToLower(f.Equals)
	}
	if f.Contains != "" {
		ok = ok && strings.Contains(cell, strings.ToLower(f.Contains))
	}
	if f.Prefix != "" {
		ok = ok && strings.HasPrefix(cell, strings.ToLower(f.Prefix))
	}
	if f.Not {
		return !ok
	}
	return ok
}
