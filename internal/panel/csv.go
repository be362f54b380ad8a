package panel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"sovpanel/pkg/contracts/domain"
)

// Key column names of the panel CSV layout
const (
	CountryColumn = "iso3"
	DateColumn    = "date"
)

// ReadCSV parses a panel previously written in the iso3,date,<variables...>
// layout. Empty cells are nulls.
func ReadCSV(r io.Reader) (*Panel, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty panel file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if len(header) < 2 || header[0] != CountryColumn || header[1] != DateColumn {
		return nil, fmt.Errorf("panel header must start with %s,%s", CountryColumn, DateColumn)
	}

	p := New()
	for _, name := range header[2:] {
		if p.HasColumn(name) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
		}
		p.addColumn(name)
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.Parse(domain.DateLayout, rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad date %q", line, rec[1])
		}
		key := domain.NewObservationKey(domain.CountryCode(rec[0]), date)
		if !key.Country.IsResolved() {
			return nil, fmt.Errorf("line %d: bad country code %q", line, rec[0])
		}
		if _, dup := p.rows[key]; dup {
			return nil, &DuplicateKeyError{Variable: "panel", Key: key, Count: 2}
		}

		row := p.addRow(key)
		for i, raw := range rec[2:] {
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: bad value %q", line, header[i+2], raw)
			}
			row[i] = domain.Float(v)
		}
	}
	return p, nil
}
